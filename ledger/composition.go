/*
composition.go - Compositions, the component union, and cycle detection

PURPOSE:
  A Composition says what a produced item is made of and in what quantity.
  Recipes turn raw ingredients into intermediates (with a yield per batch),
  assemblies combine intermediates, packaging and other assemblies into
  finished goods.

KEY CONCEPTS:
  Component: closed union of RawItem, Assembly and Material. Exactly one
    variant per component is a property of the type, not a runtime check.
  Graph: reachability over Assembly edges. Only Assembly components can
    close a cycle, stocked items are leaves.
  ActionSpec: the flat list of leaf requirements for one action, produced
    by resolving every nested assembly.

CYCLE RULE:
  Attaching child under parent is rejected if parent is reachable from child.
  The check runs on every save, not only on creation, so an edit that closes
  an indirect loop (A -> B -> C -> A) is caught as well.

SEE ALSO:
  - engine.go: consumes ActionSpec
  - cost.go: walks the same graph to price a composition
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPONENT UNION
// =============================================================================

type ComponentKind string

const (
	ComponentRawItem  ComponentKind = "raw_item"
	ComponentAssembly ComponentKind = "assembly"
	ComponentMaterial ComponentKind = "material"
)

// Component is one quantified child of a composition. The unexported method
// keeps the set of variants closed to this package.
type Component interface {
	Key() ItemKey
	QtyPer() decimal.Decimal
	Kind() ComponentKind
	component()
}

// RawItem is a stocked ingredient or intermediate.
type RawItem struct {
	Item     ItemKey
	Quantity decimal.Decimal
}

func (c RawItem) Key() ItemKey            { return c.Item }
func (c RawItem) QtyPer() decimal.Decimal { return c.Quantity }
func (c RawItem) Kind() ComponentKind     { return ComponentRawItem }
func (RawItem) component()                {}

// Assembly is a nested composition, resolved recursively.
type Assembly struct {
	Composition ItemKey
	Quantity    decimal.Decimal
}

func (c Assembly) Key() ItemKey            { return c.Composition }
func (c Assembly) QtyPer() decimal.Decimal { return c.Quantity }
func (c Assembly) Kind() ComponentKind     { return ComponentAssembly }
func (Assembly) component()                {}

// Material is a stocked packaging item (boxes, ribbon, bags).
type Material struct {
	Item     ItemKey
	Quantity decimal.Decimal
}

func (c Material) Key() ItemKey            { return c.Item }
func (c Material) QtyPer() decimal.Decimal { return c.Quantity }
func (c Material) Kind() ComponentKind     { return ComponentMaterial }
func (Material) component()                {}

// NewComponent builds the variant named by kind.
func NewComponent(kind ComponentKind, key ItemKey, qty decimal.Decimal) (Component, error) {
	switch kind {
	case ComponentRawItem:
		return RawItem{Item: key, Quantity: qty}, nil
	case ComponentAssembly:
		return Assembly{Composition: key, Quantity: qty}, nil
	case ComponentMaterial:
		return Material{Item: key, Quantity: qty}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidComponent, kind)
	}
}

// =============================================================================
// COMPOSITION
// =============================================================================

type CompositionKind string

const (
	KindRecipe   CompositionKind = "recipe"
	KindAssembly CompositionKind = "assembly"
)

type Composition struct {
	Key          ItemKey
	Name         string
	Kind         CompositionKind
	Output       ItemKey         // stocked item produced; defaults to Key
	YieldPerUnit decimal.Decimal // items per batch; defaults to 1
	Components   []Component
}

// OutputItem is the item whose stock a successful action increases.
func (c Composition) OutputItem() ItemKey {
	if c.Output == "" {
		return c.Key
	}
	return c.Output
}

// Yield is the number of output items per batch or unit.
func (c Composition) Yield() decimal.Decimal {
	if c.YieldPerUnit.IsZero() {
		return decimal.NewFromInt(1)
	}
	return c.YieldPerUnit
}

// Validate checks the composition on its own, without the graph.
func (c Composition) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidComposition)
	}
	switch c.Kind {
	case KindRecipe, KindAssembly:
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidComposition, c.Key, c.Kind)
	}
	if c.YieldPerUnit.IsNegative() {
		return fmt.Errorf("%w: %s yield per unit is negative", ErrInvalidComposition, c.Key)
	}
	// An assembly unit is one finished good.
	if c.Kind == KindAssembly && !c.YieldPerUnit.IsZero() && !c.Yield().Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: assembly %s must yield 1 per unit, got %s", ErrInvalidComposition, c.Key, c.YieldPerUnit)
	}

	seen := make(map[string]bool, len(c.Components))
	for i, comp := range c.Components {
		if comp == nil {
			return fmt.Errorf("%w: %s component %d is empty", ErrInvalidComponent, c.Key, i)
		}
		if comp.Key() == "" {
			return fmt.Errorf("%w: %s component %d has no key", ErrInvalidComponent, c.Key, i)
		}
		if !comp.QtyPer().IsPositive() {
			return fmt.Errorf("%w: %s component %s quantity must be positive, got %s",
				ErrInvalidComponent, c.Key, comp.Key(), comp.QtyPer())
		}
		id := string(comp.Kind()) + "/" + string(comp.Key())
		if seen[id] {
			return fmt.Errorf("%w: %s lists %s twice", ErrInvalidComponent, c.Key, id)
		}
		seen[id] = true
	}
	return nil
}

// children returns the nested composition keys, the only edges of the graph.
func (c Composition) children() []ItemKey {
	var out []ItemKey
	for _, comp := range c.Components {
		if a, ok := comp.(Assembly); ok {
			out = append(out, a.Composition)
		}
	}
	return out
}

// =============================================================================
// GRAPH
// =============================================================================

type Graph struct {
	Compositions CompositionReader
}

func NewGraph(compositions CompositionReader) *Graph {
	return &Graph{Compositions: compositions}
}

// edges loads the assembly children of key. Unknown keys have no edges.
func (g *Graph) edges(ctx context.Context, key ItemKey) ([]ItemKey, error) {
	c, err := g.Compositions.GetComposition(ctx, key)
	if errors.Is(err, ErrCompositionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.children(), nil
}

// WouldCreateCycle reports whether making child a component of parent would
// let parent reach itself. When it would, path runs from parent through child
// back to parent, e.g. [B, A, B].
func (g *Graph) WouldCreateCycle(ctx context.Context, parent, child ItemKey) (bool, []ItemKey, error) {
	if parent == child {
		return true, []ItemKey{parent, child}, nil
	}

	visited := make(map[ItemKey]bool)
	var stack []ItemKey

	var dfs func(node ItemKey) (bool, error)
	dfs = func(node ItemKey) (bool, error) {
		stack = append(stack, node)
		if node == parent {
			return true, nil
		}
		if visited[node] {
			stack = stack[:len(stack)-1]
			return false, nil
		}
		visited[node] = true

		next, err := g.edges(ctx, node)
		if err != nil {
			return false, err
		}
		for _, n := range next {
			found, err := dfs(n)
			if err != nil || found {
				return found, err
			}
		}
		stack = stack[:len(stack)-1]
		return false, nil
	}

	found, err := dfs(child)
	if err != nil {
		return false, nil, fmt.Errorf("walking components of %s: %w", child, err)
	}
	if !found {
		return false, nil, nil
	}
	return true, append([]ItemKey{parent}, stack...), nil
}

// ValidateEdit returns a *CycleError if child cannot be placed under parent.
func (g *Graph) ValidateEdit(ctx context.Context, parent, child ItemKey) error {
	cycle, path, err := g.WouldCreateCycle(ctx, parent, child)
	if err != nil {
		return err
	}
	if cycle {
		return &CycleError{Parent: parent, Child: child, Path: path}
	}
	return nil
}

// Save validates c, checks every nested assembly against the graph, and
// writes it to dst. Nested assemblies must already exist.
func (g *Graph) Save(ctx context.Context, dst CompositionStore, c Composition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, child := range c.children() {
		if err := g.ValidateEdit(ctx, c.Key, child); err != nil {
			return err
		}
		if _, err := g.Compositions.GetComposition(ctx, child); err != nil {
			if errors.Is(err, ErrCompositionNotFound) {
				return fmt.Errorf("%w: %s references unknown composition %s", ErrInvalidComponent, c.Key, child)
			}
			return err
		}
	}
	if err := dst.SaveComposition(ctx, c); err != nil {
		return fmt.Errorf("saving composition %s: %w", c.Key, err)
	}
	return nil
}

// AddComponent attaches comp to an existing parent, replacing a component of
// the same kind and key.
func (g *Graph) AddComponent(ctx context.Context, dst CompositionStore, parent ItemKey, comp Component) error {
	c, err := g.Compositions.GetComposition(ctx, parent)
	if err != nil {
		return err
	}
	updated := *c
	updated.Components = make([]Component, 0, len(c.Components)+1)
	replaced := false
	for _, existing := range c.Components {
		if existing.Kind() == comp.Kind() && existing.Key() == comp.Key() {
			updated.Components = append(updated.Components, comp)
			replaced = true
			continue
		}
		updated.Components = append(updated.Components, existing)
	}
	if !replaced {
		updated.Components = append(updated.Components, comp)
	}
	return g.Save(ctx, dst, updated)
}

// =============================================================================
// RESOLUTION - Nested compositions to a flat list of leaf requirements
// =============================================================================

// Requirement is the total quantity of one stocked item an action needs.
type Requirement struct {
	Item     ItemKey
	Kind     ComponentKind // raw_item or material
	Quantity decimal.Decimal
}

// ActionSpec is the resolved, flat input to the engine.
type ActionSpec struct {
	Requirements []Requirement
}

// merged sums requirements on the same item, keeping first-seen order, so
// each item is checked and planned once against its full quantity.
func (s ActionSpec) merged() ActionSpec {
	out := ActionSpec{Requirements: make([]Requirement, 0, len(s.Requirements))}
	index := make(map[ItemKey]int, len(s.Requirements))
	for _, r := range s.Requirements {
		if i, ok := index[r.Item]; ok {
			out.Requirements[i].Quantity = out.Requirements[i].Quantity.Add(r.Quantity)
			continue
		}
		index[r.Item] = len(out.Requirements)
		out.Requirements = append(out.Requirements, r)
	}
	return out
}

// Resolve flattens the composition at key for qty batches (recipes) or
// units (assemblies). A nested composition is resolved for
// quantity-per-unit * qty / its yield, which must divide exactly.
// Requirements on the same item are merged, in first-seen order.
func (g *Graph) Resolve(ctx context.Context, key ItemKey, qty decimal.Decimal) (ActionSpec, error) {
	var spec ActionSpec
	index := make(map[ItemKey]int)
	onPath := make(map[ItemKey]bool)

	var walk func(key ItemKey, qty decimal.Decimal, path []ItemKey) error
	walk = func(key ItemKey, qty decimal.Decimal, path []ItemKey) error {
		path = append(path, key)
		if onPath[key] {
			return &CycleError{Parent: path[len(path)-2], Child: key, Path: path}
		}
		onPath[key] = true
		defer delete(onPath, key)

		c, err := g.Compositions.GetComposition(ctx, key)
		if err != nil {
			return err
		}
		for _, comp := range c.Components {
			need := comp.QtyPer().Mul(qty)
			switch v := comp.(type) {
			case Assembly:
				nested, err := g.Compositions.GetComposition(ctx, v.Composition)
				if err != nil {
					return err
				}
				batches, err := exactDiv(need, nested.Yield(), "batches of "+string(v.Composition))
				if err != nil {
					return err
				}
				if err := walk(v.Composition, batches, path); err != nil {
					return err
				}
			default:
				if i, ok := index[comp.Key()]; ok {
					spec.Requirements[i].Quantity = spec.Requirements[i].Quantity.Add(need)
					continue
				}
				index[comp.Key()] = len(spec.Requirements)
				spec.Requirements = append(spec.Requirements, Requirement{
					Item:     comp.Key(),
					Kind:     comp.Kind(),
					Quantity: need,
				})
			}
		}
		return nil
	}

	if err := walk(key, qty, nil); err != nil {
		return ActionSpec{}, err
	}
	return spec, nil
}

// exactDiv divides n by d, rejecting quotients that would be rounded.
func exactDiv(n, d decimal.Decimal, field string) (decimal.Decimal, error) {
	q := n.Div(d)
	if !q.Mul(d).Equal(n) {
		return decimal.Zero, &InvalidQuantityError{
			Field:  field,
			Value:  n,
			Reason: "cannot be split exactly by yield " + d.String(),
		}
	}
	return q, nil
}
