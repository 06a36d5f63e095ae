/*
engine.go - The check-then-commit consumption protocol

PURPOSE:
  Turns a resolved ActionSpec into depleted lots, consumption records, loss
  records and a produced lot, or into a ShortfallReport with no writes at all.

PROTOCOL:
  1. Validate: negative quantities and impossible losses are rejected
     before anything is read.
  2. Check:    requirements are summed per item and compared with what
     is available. All shortfalls are collected, not just the first.
  3. Decide:   any shortfall aborts with InsufficientResourceError.
  4. Commit:   one FIFO plan is built per item, then written.
     Every write goes through the Store the caller passed in, so the
     caller's unit of work decides whether the writes stick.

WHO OPENS THE TRANSACTION:
  Never the engine. Attempt takes a Store (usually the one handed to a
  TxStore.WithTx callback) and reports storage failures as CommitFailure.
  Returning that error from the callback rolls everything back.

SEE ALSO:
  - workshop.go: opens the transaction and calls Attempt
  - compensating.go: rollback for stores without transactions
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCostScale is the number of decimal places kept on derived unit costs.
const DefaultCostScale int32 = 6

// =============================================================================
// SHORTFALL REPORT
// =============================================================================

// Shortfall describes one insufficient requirement.
type Shortfall struct {
	Item      ItemKey
	Kind      ComponentKind
	Needed    decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

// ShortfallReport is the outcome of a check. An empty Shortfalls list means
// the action can be committed.
type ShortfallReport struct {
	Shortfalls []Shortfall
	Checked    int
}

func (r ShortfallReport) Feasible() bool { return len(r.Shortfalls) == 0 }

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Clock     func() time.Time
	NewID     func() string
	CostScale int32
}

func NewEngine() *Engine {
	return &Engine{
		Clock:     time.Now,
		NewID:     uuid.NewString,
		CostScale: DefaultCostScale,
	}
}

// Check is read-only and safe to call any number of times.
func (e *Engine) Check(ctx context.Context, lots LotReader, spec ActionSpec) (ShortfallReport, error) {
	if err := validateSpec(spec); err != nil {
		return ShortfallReport{}, err
	}
	ledger := NewLotLedger(lots)

	var report ShortfallReport
	for _, req := range spec.merged().Requirements {
		if !req.Quantity.IsPositive() {
			continue
		}
		report.Checked++
		available, err := ledger.Available(ctx, req.Item)
		if err != nil {
			return ShortfallReport{}, err
		}
		if available.LessThan(req.Quantity) {
			report.Shortfalls = append(report.Shortfalls, Shortfall{
				Item:      req.Item,
				Kind:      req.Kind,
				Needed:    req.Quantity,
				Available: available,
				Shortfall: req.Quantity.Sub(available),
			})
		}
	}
	return report, nil
}

// CommitRequest is a fully resolved action ready for Attempt.
type CommitRequest struct {
	ActionID          ActionID // generated when empty
	Kind              ActionKind
	Composition       ItemKey
	Output            ItemKey
	RequestedQuantity decimal.Decimal
	RequestedYield    decimal.Decimal
	ActualYield       decimal.Decimal
	Spec              ActionSpec
	Losses            []LossInput
	Note              string
}

// CommitReceipt is what a successful Attempt returns. OutputLot is nil when
// nothing was produced.
type CommitReceipt struct {
	Action    Action
	OutputLot *InventoryLot
}

// Attempt runs the whole protocol against uow.
func (e *Engine) Attempt(ctx context.Context, uow Store, req CommitRequest) (*CommitReceipt, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := e.Clock().UTC()
	id := req.ActionID
	if id == "" {
		id = ActionID(e.NewID())
	}
	action := Action{
		ID:                id,
		Kind:              req.Kind,
		Composition:       req.Composition,
		Output:            req.Output,
		RequestedQuantity: req.RequestedQuantity,
		RequestedYield:    req.RequestedYield,
		ActualYield:       req.ActualYield,
		Status:            DeriveStatus(req.RequestedYield, req.ActualYield),
		TotalCost:         decimal.Zero,
		UnitCost:          decimal.Zero,
		Note:              req.Note,
		CreatedAt:         now,
	}

	// Nothing requested: success with no consumption and nothing persisted.
	if req.RequestedQuantity.IsZero() {
		return &CommitReceipt{Action: action}, nil
	}

	spec := req.Spec.merged()

	// CHECK
	report, err := e.Check(ctx, uow, spec)
	if err != nil {
		return nil, err
	}
	if !report.Feasible() {
		return nil, &InsufficientResourceError{Report: report}
	}

	// PLAN - every read happens before the first write
	ledger := NewLotLedger(uow)
	var plans []FIFOPlan
	for _, r := range spec.Requirements {
		if !r.Quantity.IsPositive() {
			continue
		}
		plan, err := ledger.ConsumeFIFO(ctx, r.Item, r.Quantity)
		if err != nil {
			return nil, err
		}
		if !plan.Satisfied() {
			// Availability changed between check and plan.
			return nil, &InsufficientResourceError{Report: ShortfallReport{
				Checked: report.Checked,
				Shortfalls: []Shortfall{{
					Item: r.Item, Kind: r.Kind, Needed: r.Quantity,
					Available: plan.Consumed, Shortfall: plan.Shortfall,
				}},
			}}
		}
		plans = append(plans, plan)
		action.TotalCost = action.TotalCost.Add(plan.Cost())
	}
	if req.RequestedYield.IsPositive() {
		action.UnitCost = action.TotalCost.DivRound(req.RequestedYield, e.CostScale)
	}

	// COMMIT
	if err := uow.SaveAction(ctx, action); err != nil {
		return nil, &CommitFailure{ActionID: id, Stage: "save action", Err: err}
	}

	for _, plan := range plans {
		for _, t := range plan.Takings {
			if _, err := uow.DepleteLot(ctx, t.LotID, t.Quantity); err != nil {
				return nil, &CommitFailure{ActionID: id, Stage: "deplete lot " + string(t.LotID), Err: err}
			}
			rec := ConsumptionRecord{
				ID:         RecordID(e.NewID()),
				ActionID:   id,
				LotID:      t.LotID,
				Item:       plan.Item,
				Quantity:   t.Quantity,
				UnitCost:   t.UnitCost,
				ConsumedAt: now,
			}
			if err := uow.AppendConsumption(ctx, rec); err != nil {
				return nil, &CommitFailure{ActionID: id, Stage: "append consumption", Err: err}
			}
			action.Consumptions = append(action.Consumptions, rec)
		}
	}

	recorder := &LossRecorder{Store: uow, Clock: func() time.Time { return now }, NewID: e.NewID}
	losses, err := recorder.Reconcile(ctx, id, req.RequestedYield, req.ActualYield, action.UnitCost, req.Losses)
	if err != nil {
		return nil, &CommitFailure{ActionID: id, Stage: "record losses", Err: err}
	}
	action.Losses = losses

	receipt := &CommitReceipt{Action: action}
	if req.ActualYield.IsPositive() && req.Output != "" {
		lot, err := uow.AppendLot(ctx, InventoryLot{
			ID:         LotID(e.NewID()),
			Item:       req.Output,
			ReceivedAt: now,
			Quantity:   req.ActualYield,
			Remaining:  req.ActualYield,
			UnitCost:   action.UnitCost,
			Source:     id,
			Note:       string(req.Kind) + " of " + string(req.Composition),
		})
		if err != nil {
			return nil, &CommitFailure{ActionID: id, Stage: "receive output", Err: err}
		}
		receipt.OutputLot = &lot
	}
	return receipt, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateSpec(spec ActionSpec) error {
	for _, r := range spec.Requirements {
		if r.Quantity.IsNegative() {
			return &InvalidQuantityError{Field: "requirement " + string(r.Item), Value: r.Quantity, Reason: "must not be negative"}
		}
	}
	return nil
}

func validateRequest(req CommitRequest) error {
	if req.RequestedQuantity.IsNegative() {
		return &InvalidQuantityError{Field: "requested_quantity", Value: req.RequestedQuantity, Reason: "must not be negative"}
	}
	if req.RequestedYield.IsNegative() {
		return &InvalidQuantityError{Field: "requested_yield", Value: req.RequestedYield, Reason: "must not be negative"}
	}
	if req.RequestedQuantity.IsZero() {
		if !req.ActualYield.IsZero() || len(req.Losses) > 0 {
			return &InvalidQuantityError{Field: "actual_yield", Value: req.ActualYield, Reason: "nothing was requested"}
		}
		return nil
	}
	if err := validateSpec(req.Spec); err != nil {
		return err
	}
	return ValidateLosses(req.RequestedYield, req.ActualYield, req.Losses)
}
