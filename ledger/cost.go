/*
cost.go - Cost propagation through nested compositions

PURPOSE:
  Prices a composition by walking its components post-order. Leaf items are
  priced from the ledger, nested assemblies recurse into the same walk and
  contribute their cost per output unit.

MODES:
  historical: a leaf's unit cost is the cost snapshot of its most recent
              consumption record ("what did this cost me").
  estimate:   a leaf's unit cost is the cost the next FIFO draw would be
              charged ("what would this cost me").

  A leaf with no price in the chosen mode is listed in Unpriced and counted
  as zero rather than failing the whole breakdown.

FROZEN COSTS:
  The cost of a committed action is stored on the action at commit time.
  ActionCost reads that value back and never reprices.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type CostMode string

const (
	CostHistorical CostMode = "historical"
	CostEstimate   CostMode = "estimate"
)

// ParseCostMode accepts "historical", "estimate" and "current" (an alias of
// estimate). Empty means estimate.
func ParseCostMode(s string) (CostMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "estimate", "current":
		return CostEstimate, nil
	case "historical":
		return CostHistorical, nil
	default:
		return "", fmt.Errorf("unknown cost mode %q", s)
	}
}

// CostLine is the priced contribution of one component.
type CostLine struct {
	Component ItemKey
	Kind      ComponentKind
	QtyPer    decimal.Decimal
	UnitCost  decimal.Decimal // per component unit
	Cost      decimal.Decimal // QtyPer * UnitCost
	Priced    bool
	Nested    *CostBreakdown // set for assembly components
}

// CostBreakdown prices one batch (recipe) or one unit (assembly).
type CostBreakdown struct {
	Key           ItemKey
	Mode          CostMode
	UnitCost      decimal.Decimal // per batch or unit of the composition
	PerOutputUnit decimal.Decimal // UnitCost / yield
	Lines         []CostLine
	Unpriced      []ItemKey
}

// Total is the cost of qty batches or units.
func (b CostBreakdown) Total(qty decimal.Decimal) decimal.Decimal {
	return b.UnitCost.Mul(qty)
}

type CostPropagator struct {
	Compositions CompositionReader
	Lots         LotReader
	Actions      ActionReader
	Scale        int32
}

func NewCostPropagator(store Store, scale int32) *CostPropagator {
	return &CostPropagator{Compositions: store, Lots: store, Actions: store, Scale: scale}
}

// ResolveCost prices the composition at key in the given mode.
func (p *CostPropagator) ResolveCost(ctx context.Context, key ItemKey, mode CostMode) (*CostBreakdown, error) {
	return p.resolve(ctx, key, mode, map[ItemKey]bool{}, nil)
}

func (p *CostPropagator) resolve(ctx context.Context, key ItemKey, mode CostMode, onPath map[ItemKey]bool, path []ItemKey) (*CostBreakdown, error) {
	path = append(path, key)
	if onPath[key] {
		return nil, &CycleError{Parent: path[len(path)-2], Child: key, Path: path}
	}
	onPath[key] = true
	defer delete(onPath, key)

	c, err := p.Compositions.GetComposition(ctx, key)
	if err != nil {
		return nil, err
	}

	out := &CostBreakdown{Key: key, Mode: mode, UnitCost: decimal.Zero}
	unpriced := make(map[ItemKey]bool)
	for _, comp := range c.Components {
		line := CostLine{Component: comp.Key(), Kind: comp.Kind(), QtyPer: comp.QtyPer()}

		if a, ok := comp.(Assembly); ok {
			nested, err := p.resolve(ctx, a.Composition, mode, onPath, path)
			if err != nil {
				return nil, err
			}
			line.Nested = nested
			line.UnitCost = nested.PerOutputUnit
			line.Priced = len(nested.Unpriced) == 0
			for _, k := range nested.Unpriced {
				unpriced[k] = true
			}
		} else {
			cost, ok, err := p.leafCost(ctx, comp.Key(), mode)
			if err != nil {
				return nil, err
			}
			line.UnitCost = cost
			line.Priced = ok
			if !ok {
				unpriced[comp.Key()] = true
			}
		}

		line.Cost = line.QtyPer.Mul(line.UnitCost)
		out.UnitCost = out.UnitCost.Add(line.Cost)
		out.Lines = append(out.Lines, line)
	}

	out.PerOutputUnit = out.UnitCost.DivRound(c.Yield(), p.Scale)
	for _, line := range out.Lines {
		if line.Nested != nil {
			out.Unpriced = appendUnique(out.Unpriced, line.Nested.Unpriced, unpriced)
		} else if !line.Priced {
			out.Unpriced = appendUnique(out.Unpriced, []ItemKey{line.Component}, unpriced)
		}
	}
	return out, nil
}

func (p *CostPropagator) leafCost(ctx context.Context, item ItemKey, mode CostMode) (decimal.Decimal, bool, error) {
	if mode == CostHistorical {
		rec, err := p.Actions.LatestConsumption(ctx, item)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("reading consumption of %s: %w", item, err)
		}
		if rec == nil {
			return decimal.Zero, false, nil
		}
		return rec.UnitCost, true, nil
	}
	return NewLotLedger(p.Lots).NextCost(ctx, item)
}

// appendUnique adds keys still marked in pending, clearing each as it goes.
func appendUnique(dst, keys []ItemKey, pending map[ItemKey]bool) []ItemKey {
	for _, k := range keys {
		if pending[k] {
			dst = append(dst, k)
			delete(pending, k)
		}
	}
	return dst
}

// ActionCost returns the cost frozen into the action at commit time.
func (p *CostPropagator) ActionCost(ctx context.Context, id ActionID) (decimal.Decimal, error) {
	a, err := p.Actions.GetAction(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.TotalCost, nil
}
