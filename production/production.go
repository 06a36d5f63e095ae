/*
Package production commits recipe batches against the ledger.

PURPOSE:
  "Bake N batches of recipe R". The recipe's components are resolved for N
  batches, every ingredient is checked, and only then are lots drawn. The
  finished items are received as a new lot of the recipe's output item,
  priced at the batch cost spread over the expected yield.

YIELD:
  requested yield = batches x recipe yield per batch
  actual yield    = what came out (defaults to the requested yield)

  Any gap between the two must be explained by losses. Whatever the caller
  does not explain is recorded automatically (see ledger.LossRecorder).

EXAMPLE:
  svc := production.NewService(workshop)
  receipt, err := svc.CommitProduction(ctx, production.Request{
      RecipeKey:   "sugar-cookie-dough",
      BatchCount:  decimal.NewFromInt(2),
      ActualYield: &fortyFour,
      Losses: []ledger.LossInput{
          {Category: ledger.LossBurnt, Quantity: decimal.NewFromInt(4)},
      },
  })

SEE ALSO:
  - assembly/: the same protocol for finished-good assemblies
  - ledger/engine.go: check-then-commit
*/
package production

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

// Request is one production run.
type Request struct {
	RecipeKey   ledger.ItemKey
	BatchCount  decimal.Decimal
	ActualYield *decimal.Decimal // nil means everything came out
	Losses      []ledger.LossInput
	Note        string
}

// recipe loads key and rejects anything that is not a recipe.
func (s *Service) recipe(ctx context.Context, key ledger.ItemKey) (*ledger.Composition, error) {
	c, err := s.Workshop.Composition(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.Kind != ledger.KindRecipe {
		return nil, fmt.Errorf("%w: %s is a %s, not a recipe", ledger.ErrInvalidComposition, key, c.Kind)
	}
	return c, nil
}

// Plan turns req into a resolved CommitRequest without touching any lot.
func (s *Service) Plan(ctx context.Context, req Request) (ledger.CommitRequest, error) {
	if req.BatchCount.IsNegative() {
		return ledger.CommitRequest{}, &ledger.InvalidQuantityError{Field: "batch_count", Value: req.BatchCount, Reason: "must not be negative"}
	}
	recipe, err := s.recipe(ctx, req.RecipeKey)
	if err != nil {
		return ledger.CommitRequest{}, err
	}

	requested := req.BatchCount.Mul(recipe.Yield())
	actual := requested
	if req.ActualYield != nil {
		actual = *req.ActualYield
	}

	spec, err := s.Workshop.Resolve(ctx, recipe.Key, req.BatchCount)
	if err != nil {
		return ledger.CommitRequest{}, err
	}
	return ledger.CommitRequest{
		Kind:              ledger.ActionProduction,
		Composition:       recipe.Key,
		Output:            recipe.OutputItem(),
		RequestedQuantity: req.BatchCount,
		RequestedYield:    requested,
		ActualYield:       actual,
		Spec:              spec,
		Losses:            req.Losses,
		Note:              req.Note,
	}, nil
}

// Check previews batches of recipe. Nothing is written.
func (s *Service) Check(ctx context.Context, key ledger.ItemKey, batches decimal.Decimal) (ledger.ShortfallReport, error) {
	plan, err := s.Plan(ctx, Request{RecipeKey: key, BatchCount: batches})
	if err != nil {
		return ledger.ShortfallReport{}, err
	}
	return s.Workshop.CheckFeasibility(ctx, plan.Spec)
}

// CommitProduction runs the batch in its own transaction. It fails with a
// *ledger.InsufficientResourceError listing every short ingredient.
func (s *Service) CommitProduction(ctx context.Context, req Request) (*ledger.CommitReceipt, error) {
	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Workshop.Commit(ctx, plan)
}
