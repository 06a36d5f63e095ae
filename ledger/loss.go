package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LossCategory classifies why output fell short of the requested yield.
type LossCategory string

const (
	LossNone             LossCategory = "none"
	LossBurnt            LossCategory = "burnt"
	LossBroken           LossCategory = "broken"
	LossContaminated     LossCategory = "contaminated"
	LossDropped          LossCategory = "dropped"
	LossWrongIngredients LossCategory = "wrong_ingredients"
	LossOther            LossCategory = "other"
	LossTotal            LossCategory = "total_loss"
)

// UnrecordedShortfallNote marks a loss record the engine filled in because
// the supplied losses did not cover the whole shortfall.
const UnrecordedShortfallNote = "unrecorded shortfall"

var lossCategories = map[LossCategory]bool{
	LossNone: true, LossBurnt: true, LossBroken: true, LossContaminated: true,
	LossDropped: true, LossWrongIngredients: true, LossOther: true, LossTotal: true,
}

// ParseLossCategory accepts any known category, case-insensitively. An empty
// string is LossNone.
func ParseLossCategory(s string) (LossCategory, error) {
	if s == "" {
		return LossNone, nil
	}
	c := LossCategory(strings.ToLower(strings.TrimSpace(s)))
	if !lossCategories[c] {
		return "", fmt.Errorf("unknown loss category %q", s)
	}
	return c, nil
}

// LossInput is a loss supplied by the caller of a commit.
type LossInput struct {
	Category LossCategory
	Quantity decimal.Decimal
	Note     string
}

// LossRecord is one classified piece of an action's yield shortfall.
// CostPerUnit is the action's unit cost snapshot.
type LossRecord struct {
	ID          RecordID
	ActionID    ActionID
	Category    LossCategory
	Quantity    decimal.Decimal
	CostPerUnit decimal.Decimal
	Note        string
	RecordedAt  time.Time
}

func (r LossRecord) Cost() decimal.Decimal { return r.Quantity.Mul(r.CostPerUnit) }

// DeriveStatus is the only way an action gets a status.
func DeriveStatus(requested, actual decimal.Decimal) ActionStatus {
	switch {
	case actual.Equal(requested):
		return StatusComplete
	case actual.IsZero():
		return StatusTotalLoss
	default:
		return StatusPartialLoss
	}
}

// ValidateLosses checks caller-supplied losses against the yields before any
// ledger read.
func ValidateLosses(requested, actual decimal.Decimal, losses []LossInput) error {
	if actual.IsNegative() {
		return &InvalidQuantityError{Field: "actual_yield", Value: actual, Reason: "must not be negative"}
	}
	if actual.GreaterThan(requested) {
		return &InvalidQuantityError{Field: "actual_yield", Value: actual, Reason: "exceeds requested yield " + requested.String()}
	}

	recorded := decimal.Zero
	for _, l := range losses {
		if _, err := ParseLossCategory(string(l.Category)); err != nil {
			return &InvalidQuantityError{Field: "loss_category", Value: l.Quantity, Reason: err.Error()}
		}
		if !l.Quantity.IsPositive() {
			return &InvalidQuantityError{Field: "loss_quantity", Value: l.Quantity, Reason: "must be positive"}
		}
		if l.Category == LossTotal && !actual.IsZero() {
			return &InvalidQuantityError{Field: "loss_category", Value: l.Quantity, Reason: "total_loss requires an actual yield of 0"}
		}
		recorded = recorded.Add(l.Quantity)
	}
	if recorded.GreaterThan(requested.Sub(actual)) {
		return &LossMismatchError{RequestedYield: requested, ActualYield: actual, Recorded: recorded}
	}
	return nil
}

// =============================================================================
// LOSS RECORDER
// =============================================================================

// LossRecorder writes loss records for an action.
type LossRecorder struct {
	Store ActionStore
	Clock func() time.Time
	NewID func() string
}

func NewLossRecorder(store ActionStore) *LossRecorder {
	return &LossRecorder{Store: store, Clock: time.Now, NewID: uuid.NewString}
}

// RecordLoss appends one loss to action.
func (r *LossRecorder) RecordLoss(ctx context.Context, action ActionID, category LossCategory, qty, costPerUnit decimal.Decimal, note string) (LossRecord, error) {
	if category == "" {
		category = LossNone
	}
	if qty.IsNegative() {
		return LossRecord{}, &InvalidQuantityError{Field: "loss_quantity", Value: qty, Reason: "must not be negative"}
	}
	rec := LossRecord{
		ID:          RecordID(r.NewID()),
		ActionID:    action,
		Category:    category,
		Quantity:    qty,
		CostPerUnit: costPerUnit,
		Note:        note,
		RecordedAt:  r.Clock().UTC(),
	}
	if err := r.Store.AppendLoss(ctx, rec); err != nil {
		return LossRecord{}, err
	}
	return rec, nil
}

// Reconcile records the supplied losses, then fills any unexplained
// remainder so that requested = actual + sum(losses) holds.
func (r *LossRecorder) Reconcile(ctx context.Context, action ActionID, requested, actual, costPerUnit decimal.Decimal, losses []LossInput) ([]LossRecord, error) {
	var out []LossRecord
	recorded := decimal.Zero
	for _, l := range losses {
		rec, err := r.RecordLoss(ctx, action, l.Category, l.Quantity, costPerUnit, l.Note)
		if err != nil {
			return nil, err
		}
		recorded = recorded.Add(rec.Quantity)
		out = append(out, rec)
	}

	residual := requested.Sub(actual).Sub(recorded)
	if !residual.IsPositive() {
		return out, nil
	}
	category, note := LossOther, UnrecordedShortfallNote
	if actual.IsZero() {
		category, note = LossTotal, ""
	}
	rec, err := r.RecordLoss(ctx, action, category, residual, costPerUnit, note)
	if err != nil {
		return nil, err
	}
	return append(out, rec), nil
}
