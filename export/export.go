/*
Package export writes and reads the consumption ledger's backup document.

DOCUMENT:
  {
    "version": 1,
    "exported_at": "2025-03-04T10:00:00Z",
    "consumption_records": [
      {"id": "...", "action_id": "...", "lot_id": "...", "item": "flour",
       "quantity": "10", "cost_per_unit": "0.50", "consumed_at": "..."}
    ],
    "loss_records": [
      {"id": "...", "action_id": "...", "category": "burnt",
       "quantity": "4", "cost_per_unit": "0.2125", "note": "", "recorded_at": "..."}
    ]
  }

  Quantities and costs are always decimal strings. Loss records written by
  older versions may omit category and quantity; they import as "none" and 0.

SEE ALSO:
  - workbook.go: the same records as an XLSX workbook
*/
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

const Version = 1

type Document struct {
	Version            int               `json:"version"`
	ExportedAt         time.Time         `json:"exported_at"`
	ConsumptionRecords []ConsumptionJSON `json:"consumption_records"`
	LossRecords        []LossJSON        `json:"loss_records"`
}

type ConsumptionJSON struct {
	ID          string    `json:"id"`
	ActionID    string    `json:"action_id"`
	LotID       string    `json:"lot_id"`
	Item        string    `json:"item"`
	Quantity    string    `json:"quantity"`
	CostPerUnit string    `json:"cost_per_unit"`
	ConsumedAt  time.Time `json:"consumed_at"`
}

type LossJSON struct {
	ID          string    `json:"id"`
	ActionID    string    `json:"action_id"`
	Category    string    `json:"category,omitempty"`
	Quantity    string    `json:"quantity,omitempty"`
	CostPerUnit string    `json:"cost_per_unit"`
	Note        string    `json:"note,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Build reads every consumption and loss record from r.
func Build(ctx context.Context, r ledger.ActionReader, now time.Time) (*Document, error) {
	consumptions, err := r.ConsumptionRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading consumption records: %w", err)
	}
	losses, err := r.LossRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading loss records: %w", err)
	}

	doc := &Document{
		Version:            Version,
		ExportedAt:         now.UTC(),
		ConsumptionRecords: make([]ConsumptionJSON, 0, len(consumptions)),
		LossRecords:        make([]LossJSON, 0, len(losses)),
	}
	for _, c := range consumptions {
		doc.ConsumptionRecords = append(doc.ConsumptionRecords, ConsumptionJSON{
			ID:          string(c.ID),
			ActionID:    string(c.ActionID),
			LotID:       string(c.LotID),
			Item:        string(c.Item),
			Quantity:    c.Quantity.String(),
			CostPerUnit: c.UnitCost.String(),
			ConsumedAt:  c.ConsumedAt.UTC(),
		})
	}
	for _, l := range losses {
		doc.LossRecords = append(doc.LossRecords, LossJSON{
			ID:          string(l.ID),
			ActionID:    string(l.ActionID),
			Category:    string(l.Category),
			Quantity:    l.Quantity.String(),
			CostPerUnit: l.CostPerUnit.String(),
			Note:        l.Note,
			RecordedAt:  l.RecordedAt.UTC(),
		})
	}
	return doc, nil
}

func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse export document: %w", err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("export document version %d is newer than supported version %d", doc.Version, Version)
	}
	return &doc, nil
}

// Records converts the document back to ledger records, applying the
// defaults for fields older documents leave out. Decimal values are kept
// exactly; their text is canonical, so "1.50" is written back as "1.5".
func (doc *Document) Records() ([]ledger.ConsumptionRecord, []ledger.LossRecord, error) {
	consumptions := make([]ledger.ConsumptionRecord, 0, len(doc.ConsumptionRecords))
	for _, c := range doc.ConsumptionRecords {
		qty, err := parseDecimal(c.Quantity, "quantity", c.ID)
		if err != nil {
			return nil, nil, err
		}
		cost, err := parseDecimal(c.CostPerUnit, "cost_per_unit", c.ID)
		if err != nil {
			return nil, nil, err
		}
		consumptions = append(consumptions, ledger.ConsumptionRecord{
			ID:         ledger.RecordID(c.ID),
			ActionID:   ledger.ActionID(c.ActionID),
			LotID:      ledger.LotID(c.LotID),
			Item:       ledger.ItemKey(c.Item),
			Quantity:   qty,
			UnitCost:   cost,
			ConsumedAt: c.ConsumedAt,
		})
	}

	losses := make([]ledger.LossRecord, 0, len(doc.LossRecords))
	for _, l := range doc.LossRecords {
		category, err := ledger.ParseLossCategory(l.Category)
		if err != nil {
			return nil, nil, fmt.Errorf("loss record %s: %w", l.ID, err)
		}
		qty, err := parseDecimal(l.Quantity, "quantity", l.ID)
		if err != nil {
			return nil, nil, err
		}
		cost, err := parseDecimal(l.CostPerUnit, "cost_per_unit", l.ID)
		if err != nil {
			return nil, nil, err
		}
		losses = append(losses, ledger.LossRecord{
			ID:          ledger.RecordID(l.ID),
			ActionID:    ledger.ActionID(l.ActionID),
			Category:    category,
			Quantity:    qty,
			CostPerUnit: cost,
			Note:        l.Note,
			RecordedAt:  l.RecordedAt,
		})
	}
	return consumptions, losses, nil
}

// parseDecimal treats an empty string as zero.
func parseDecimal(s, field, id string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("record %s: invalid %s %q: %w", id, field, s, err)
	}
	return d, nil
}

// ImportResult counts what an import wrote and what it skipped because a
// record with the same ID already exists.
type ImportResult struct {
	Consumptions int `json:"consumptions"`
	Losses       int `json:"losses"`
	Skipped      int `json:"skipped"`
}

// Import appends the document's records in one transaction. Records already
// present are skipped, so importing the same backup twice is harmless.
func Import(ctx context.Context, store ledger.TxStore, doc *Document) (*ImportResult, error) {
	consumptions, losses, err := doc.Records()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err = store.WithTx(ctx, func(tx ledger.Store) error {
		for _, c := range consumptions {
			switch err := tx.AppendConsumption(ctx, c); {
			case errors.Is(err, ledger.ErrDuplicateID):
				result.Skipped++
			case err != nil:
				return fmt.Errorf("importing consumption record %s: %w", c.ID, err)
			default:
				result.Consumptions++
			}
		}
		for _, l := range losses {
			switch err := tx.AppendLoss(ctx, l); {
			case errors.Is(err, ledger.ErrDuplicateID):
				result.Skipped++
			case err != nil:
				return fmt.Errorf("importing loss record %s: %w", l.ID, err)
			default:
				result.Losses++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
