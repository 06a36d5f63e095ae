/*
Package assembly commits finished-good assemblies against the ledger.

PURPOSE:
  "Assemble N units of A". Nested assemblies are resolved down to stocked
  items (baked goods, packaging), so one commit draws everything a gift box
  needs, however deep its definition goes.

YIELD:
  Assemblies yield one unit per unit requested. Units broken or dropped
  while assembling are passed as losses; the actual yield is what is left.

SEE ALSO:
  - production/: recipe batches, which produce the stock assemblies draw on
*/
package assembly

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

type Service struct {
	Workshop *ledger.Workshop
}

func NewService(w *ledger.Workshop) *Service {
	return &Service{Workshop: w}
}

type Request struct {
	AssemblyKey ledger.ItemKey
	UnitCount   decimal.Decimal
	Losses      []ledger.LossInput
	Note        string
}

func (s *Service) assembly(ctx context.Context, key ledger.ItemKey) (*ledger.Composition, error) {
	c, err := s.Workshop.Composition(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.Kind != ledger.KindAssembly {
		return nil, fmt.Errorf("%w: %s is a %s, not an assembly", ledger.ErrInvalidComposition, key, c.Kind)
	}
	return c, nil
}

// Plan resolves req into a CommitRequest. The actual yield is the unit count
// less the supplied losses.
func (s *Service) Plan(ctx context.Context, req Request) (ledger.CommitRequest, error) {
	if req.UnitCount.IsNegative() {
		return ledger.CommitRequest{}, &ledger.InvalidQuantityError{Field: "unit_count", Value: req.UnitCount, Reason: "must not be negative"}
	}
	lost := decimal.Zero
	for _, l := range req.Losses {
		lost = lost.Add(l.Quantity)
	}
	if lost.GreaterThan(req.UnitCount) {
		return ledger.CommitRequest{}, &ledger.LossMismatchError{RequestedYield: req.UnitCount, ActualYield: decimal.Zero, Recorded: lost}
	}

	a, err := s.assembly(ctx, req.AssemblyKey)
	if err != nil {
		return ledger.CommitRequest{}, err
	}
	spec, err := s.Workshop.Resolve(ctx, a.Key, req.UnitCount)
	if err != nil {
		return ledger.CommitRequest{}, err
	}
	return ledger.CommitRequest{
		Kind:              ledger.ActionAssembly,
		Composition:       a.Key,
		Output:            a.OutputItem(),
		RequestedQuantity: req.UnitCount,
		RequestedYield:    req.UnitCount,
		ActualYield:       req.UnitCount.Sub(lost),
		Spec:              spec,
		Losses:            req.Losses,
		Note:              req.Note,
	}, nil
}

func (s *Service) Check(ctx context.Context, key ledger.ItemKey, units decimal.Decimal) (ledger.ShortfallReport, error) {
	plan, err := s.Plan(ctx, Request{AssemblyKey: key, UnitCount: units})
	if err != nil {
		return ledger.ShortfallReport{}, err
	}
	return s.Workshop.CheckFeasibility(ctx, plan.Spec)
}

// CommitAssembly runs the assembly in its own transaction.
func (s *Service) CommitAssembly(ctx context.Context, req Request) (*ledger.CommitReceipt, error) {
	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Workshop.Commit(ctx, plan)
}
