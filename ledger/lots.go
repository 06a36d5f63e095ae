/*
lots.go - FIFO selection over inventory lots

PURPOSE:
  Answers "how much of this item is on hand" and "which lots would a draw of
  N units touch, and at what cost". Nothing in this file mutates a lot; the
  engine's commit phase is the only place lots are depleted.

ORDERING:
  Lots are consumed in ascending ReceivedAt. Two lots received at the same
  instant are ordered by Seq (insertion order), so a plan is deterministic.

EXAMPLE:
  Lot A: 10 @ day 1, Lot B: 15 @ day 2, request 12
  -> take 10 from A, 2 from B, shortfall 0

  Same lots, request 30
  -> take 10 from A, 15 from B, shortfall 5
*/
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// FIFOPlan is the preview result of drawing Requested units of Item.
type FIFOPlan struct {
	Item      ItemKey
	Requested decimal.Decimal
	Consumed  decimal.Decimal
	Shortfall decimal.Decimal
	Takings   []Taking
}

// Satisfied reports whether the plan covers the whole request.
func (p FIFOPlan) Satisfied() bool { return p.Shortfall.IsZero() }

// Cost sums the cost of every taking.
func (p FIFOPlan) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.Takings {
		total = total.Add(t.Cost())
	}
	return total
}

// SortFIFO orders lots by ReceivedAt, then Seq, in place.
func SortFIFO(lots []InventoryLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].ReceivedAt.Equal(lots[j].ReceivedAt) {
			return lots[i].ReceivedAt.Before(lots[j].ReceivedAt)
		}
		return lots[i].Seq < lots[j].Seq
	})
}

// PlanFIFO walks lots oldest-first taking min(remaining, still needed) from
// each until the request is met or the lots run out. The input slice is not
// modified. Lots of other items and depleted lots are skipped.
func PlanFIFO(item ItemKey, lots []InventoryLot, requested decimal.Decimal) FIFOPlan {
	plan := FIFOPlan{
		Item:      item,
		Requested: requested,
		Consumed:  decimal.Zero,
		Shortfall: decimal.Zero,
	}
	if !requested.IsPositive() {
		return plan
	}

	ordered := make([]InventoryLot, 0, len(lots))
	for _, lot := range lots {
		if lot.Item == item && lot.IsOpen() {
			ordered = append(ordered, lot)
		}
	}
	SortFIFO(ordered)

	needed := requested
	for _, lot := range ordered {
		if !needed.IsPositive() {
			break
		}
		take := decimal.Min(lot.Remaining, needed)
		plan.Takings = append(plan.Takings, Taking{
			LotID:    lot.ID,
			Quantity: take,
			UnitCost: lot.UnitCost,
		})
		plan.Consumed = plan.Consumed.Add(take)
		needed = needed.Sub(take)
	}
	if needed.IsPositive() {
		plan.Shortfall = needed
	}
	return plan
}

// =============================================================================
// LOT LEDGER - Read-only queries against a LotReader
// =============================================================================

// LotLedger answers stock questions from whatever LotReader it is given,
// so the same code reads committed state or a transaction's view.
type LotLedger struct {
	Lots LotReader
}

func NewLotLedger(lots LotReader) *LotLedger {
	return &LotLedger{Lots: lots}
}

// Available returns the sum of remaining quantities across open lots.
func (l *LotLedger) Available(ctx context.Context, item ItemKey) (decimal.Decimal, error) {
	lots, err := l.Lots.OpenLots(ctx, item)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading lots of %s: %w", item, err)
	}
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Remaining)
	}
	return total, nil
}

// ConsumeFIFO previews a FIFO draw. It never mutates state and reports a
// shortfall instead of failing when stock runs out.
func (l *LotLedger) ConsumeFIFO(ctx context.Context, item ItemKey, requested decimal.Decimal) (FIFOPlan, error) {
	lots, err := l.Lots.OpenLots(ctx, item)
	if err != nil {
		return FIFOPlan{}, fmt.Errorf("reading lots of %s: %w", item, err)
	}
	return PlanFIFO(item, lots, requested), nil
}

// NextCost is the unit cost the next draw of item would be charged: the
// oldest open lot's cost, or the most recent lot's cost when everything is
// depleted. ok is false when the item has never been received.
func (l *LotLedger) NextCost(ctx context.Context, item ItemKey) (cost decimal.Decimal, ok bool, err error) {
	open, err := l.Lots.OpenLots(ctx, item)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading lots of %s: %w", item, err)
	}
	if len(open) > 0 {
		SortFIFO(open)
		return open[0].UnitCost, true, nil
	}

	history, err := l.Lots.LotHistory(ctx, item)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("reading lot history of %s: %w", item, err)
	}
	if len(history) == 0 {
		return decimal.Zero, false, nil
	}
	SortFIFO(history)
	return history[len(history)-1].UnitCost, true, nil
}

// List returns the lots of item in FIFO order. Depleted lots are included
// only when includeDepleted is set.
func (l *LotLedger) List(ctx context.Context, item ItemKey, includeDepleted bool) ([]InventoryLot, error) {
	var (
		lots []InventoryLot
		err  error
	)
	if includeDepleted {
		lots, err = l.Lots.LotHistory(ctx, item)
	} else {
		lots, err = l.Lots.OpenLots(ctx, item)
	}
	if err != nil {
		return nil, fmt.Errorf("reading lots of %s: %w", item, err)
	}
	SortFIFO(lots)
	return lots, nil
}
