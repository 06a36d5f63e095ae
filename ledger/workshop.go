/*
workshop.go - The operations the rest of the application calls

PURPOSE:
  Workshop bundles a TxStore with the engine, the graph and the cost
  propagator, and exposes the external operations: receiving lots, stock
  queries, composition edits, feasibility checks, commits and cost lookups.

TRANSACTIONS:
  Commit and SaveComposition open one transaction each. Callers that need
  several actions to succeed or fail together use Store().WithTx and call
  CommitWith inside the callback.

SEE ALSO:
  - production/, assembly/: build CommitRequests for recipes and assemblies
  - api/: HTTP surface over this type
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Workshop struct {
	store  TxStore
	engine *Engine
	log    zerolog.Logger
}

type Option func(*Workshop)

func WithLogger(l zerolog.Logger) Option {
	return func(w *Workshop) { w.log = l }
}

func WithEngine(e *Engine) Option {
	return func(w *Workshop) { w.engine = e }
}

func NewWorkshop(store TxStore, opts ...Option) *Workshop {
	w := &Workshop{
		store:  store,
		engine: NewEngine(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workshop) Store() TxStore     { return w.store }
func (w *Workshop) Engine() *Engine    { return w.engine }
func (w *Workshop) Graph() *Graph      { return NewGraph(w.store) }
func (w *Workshop) ledger() *LotLedger { return NewLotLedger(w.store) }

// =============================================================================
// LOTS
// =============================================================================

// ReceiveLot records a new receipt of stock.
func (w *Workshop) ReceiveLot(ctx context.Context, r LotReceipt) (InventoryLot, error) {
	return w.ReceiveLotWith(ctx, w.store, r)
}

// ReceiveLotWith records r against a caller-owned unit of work.
func (w *Workshop) ReceiveLotWith(ctx context.Context, dst LotStore, r LotReceipt) (InventoryLot, error) {
	if r.Item == "" {
		return InventoryLot{}, &InvalidQuantityError{Field: "item", Value: r.Quantity, Reason: "item key is required"}
	}
	if !r.Quantity.IsPositive() {
		return InventoryLot{}, &InvalidQuantityError{Field: "quantity", Value: r.Quantity, Reason: "must be positive"}
	}
	if r.UnitCost.IsNegative() {
		return InventoryLot{}, &InvalidQuantityError{Field: "unit_cost", Value: r.UnitCost, Reason: "must not be negative"}
	}
	received := r.ReceivedAt
	if received.IsZero() {
		received = w.engine.Clock()
	}

	lot, err := dst.AppendLot(ctx, InventoryLot{
		ID:         LotID(w.engine.NewID()),
		Item:       r.Item,
		ReceivedAt: received.UTC(),
		Quantity:   r.Quantity,
		Remaining:  r.Quantity,
		UnitCost:   r.UnitCost,
		Note:       r.Note,
	})
	if err != nil {
		return InventoryLot{}, fmt.Errorf("receiving lot of %s: %w", r.Item, err)
	}
	w.log.Info().
		Str("lot_id", string(lot.ID)).
		Str("item", string(lot.Item)).
		Str("quantity", lot.Quantity.String()).
		Str("unit_cost", lot.UnitCost.String()).
		Msg("lot received")
	return lot, nil
}

func (w *Workshop) Available(ctx context.Context, item ItemKey) (decimal.Decimal, error) {
	return w.ledger().Available(ctx, item)
}

func (w *Workshop) Lots(ctx context.Context, item ItemKey, includeDepleted bool) ([]InventoryLot, error) {
	return w.ledger().List(ctx, item, includeDepleted)
}

// =============================================================================
// COMPOSITIONS
// =============================================================================

// SaveComposition creates or replaces a composition after the cycle check.
func (w *Workshop) SaveComposition(ctx context.Context, c Composition) error {
	err := w.store.WithTx(ctx, func(tx Store) error {
		return w.SaveCompositionWith(ctx, tx, c)
	})
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			w.log.Warn().Str("composition", string(c.Key)).Strs("path", keyStrings(cycle.Path)).Msg("composition edit rejected")
		}
		return err
	}
	w.log.Info().Str("composition", string(c.Key)).Int("components", len(c.Components)).Msg("composition saved")
	return nil
}

// SaveCompositionWith validates and writes c inside a caller-owned unit of
// work. Reads go through uow so earlier writes in the same unit are seen.
func (w *Workshop) SaveCompositionWith(ctx context.Context, uow Store, c Composition) error {
	return NewGraph(uow).Save(ctx, uow, c)
}

func (w *Workshop) Composition(ctx context.Context, key ItemKey) (*Composition, error) {
	return w.store.GetComposition(ctx, key)
}

func (w *Workshop) Compositions(ctx context.Context) ([]Composition, error) {
	return w.store.ListCompositions(ctx)
}

// ValidateCompositionEdit returns a *CycleError if child may not be placed
// under parent. Nothing is written.
func (w *Workshop) ValidateCompositionEdit(ctx context.Context, parent, child ItemKey) error {
	return w.Graph().ValidateEdit(ctx, parent, child)
}

func (w *Workshop) Resolve(ctx context.Context, key ItemKey, qty decimal.Decimal) (ActionSpec, error) {
	if qty.IsNegative() {
		return ActionSpec{}, &InvalidQuantityError{Field: "quantity", Value: qty, Reason: "must not be negative"}
	}
	return w.Graph().Resolve(ctx, key, qty)
}

// =============================================================================
// CHECK AND COMMIT
// =============================================================================

// CheckFeasibility is a read-only preview of spec.
func (w *Workshop) CheckFeasibility(ctx context.Context, spec ActionSpec) (ShortfallReport, error) {
	report, err := w.engine.Check(ctx, w.store, spec)
	if err != nil {
		return ShortfallReport{}, err
	}
	if !report.Feasible() {
		w.log.Warn().Int("shortfalls", len(report.Shortfalls)).Msg("feasibility check found shortfalls")
	}
	return report, nil
}

// CheckComposition resolves key for qty and checks the result.
func (w *Workshop) CheckComposition(ctx context.Context, key ItemKey, qty decimal.Decimal) (ShortfallReport, error) {
	spec, err := w.Resolve(ctx, key, qty)
	if err != nil {
		return ShortfallReport{}, err
	}
	return w.CheckFeasibility(ctx, spec)
}

// Commit runs req in its own transaction.
func (w *Workshop) Commit(ctx context.Context, req CommitRequest) (*CommitReceipt, error) {
	var receipt *CommitReceipt
	err := w.store.WithTx(ctx, func(tx Store) error {
		r, err := w.CommitWith(ctx, tx, req)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CommitWith runs req against a caller-owned unit of work.
func (w *Workshop) CommitWith(ctx context.Context, uow Store, req CommitRequest) (*CommitReceipt, error) {
	receipt, err := w.engine.Attempt(ctx, uow, req)
	if err != nil {
		w.logRejection(req, err)
		return nil, err
	}

	a := receipt.Action
	w.log.Info().
		Str("action_id", string(a.ID)).
		Str("kind", string(a.Kind)).
		Str("composition", string(a.Composition)).
		Str("status", string(a.Status)).
		Str("total_cost", a.TotalCost.String()).
		Int("consumptions", len(a.Consumptions)).
		Msg("action committed")
	return receipt, nil
}

func (w *Workshop) logRejection(req CommitRequest, err error) {
	var short *InsufficientResourceError
	var failure *CommitFailure
	switch {
	case errors.As(err, &short):
		w.log.Warn().
			Str("composition", string(req.Composition)).
			Int("shortfalls", len(short.Report.Shortfalls)).
			Msg("action rejected: insufficient resources")
	case errors.As(err, &failure):
		w.log.Error().Err(failure.Err).
			Str("action_id", string(failure.ActionID)).
			Str("stage", failure.Stage).
			Msg("commit failed, rolling back")
	default:
		w.log.Warn().Err(err).Str("composition", string(req.Composition)).Msg("action rejected")
	}
}

// =============================================================================
// COSTS AND HISTORY
// =============================================================================

// GetCost returns the frozen cost of a committed action.
func (w *Workshop) GetCost(ctx context.Context, id ActionID) (decimal.Decimal, error) {
	return NewCostPropagator(w.store, w.engine.CostScale).ActionCost(ctx, id)
}

func (w *Workshop) ResolveCost(ctx context.Context, key ItemKey, mode CostMode) (*CostBreakdown, error) {
	return NewCostPropagator(w.store, w.engine.CostScale).ResolveCost(ctx, key, mode)
}

func (w *Workshop) Action(ctx context.Context, id ActionID) (*Action, error) {
	return w.store.GetAction(ctx, id)
}

func (w *Workshop) Actions(ctx context.Context) ([]Action, error) {
	return w.store.ListActions(ctx)
}

func keyStrings(keys []ItemKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
