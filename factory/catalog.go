/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into ledger.Composition values and lot
  receipts. A bakery's recipes, gift boxes and opening stock can then be
  kept in a file and loaded without code changes.

JSON SCHEMA:
  {
    "compositions": [
      {
        "key": "sugar-cookie-dough",
        "name": "Sugar cookie dough",
        "kind": "recipe",
        "output": "sugar-cookie",
        "yield_per_unit": "24",
        "components": [
          {"type": "raw_item", "key": "flour", "quantity": "6"},
          {"type": "raw_item", "key": "sugar", "quantity": "2"}
        ]
      },
      {
        "key": "gift-box",
        "kind": "assembly",
        "components": [
          {"type": "assembly", "key": "cookie-bag", "quantity": "2"},
          {"type": "material", "key": "box", "quantity": "1"}
        ]
      }
    ],
    "lots": [
      {"item": "flour", "quantity": "10", "unit_cost": "0.50", "received_at": "2025-03-01T08:00:00Z"}
    ]
  }

  Quantities and costs are decimal strings; JSON numbers are accepted too.

KEY FEATURES:
  - Validates every composition before anything is written
  - Orders compositions so nested ones are saved first
  - Reports a cycle inside the catalog with its path
  - Loads the whole catalog in one transaction

USAGE:
  f := factory.NewCatalogFactory()
  catalog, err := f.ParseCatalog(data)
  err = catalog.Load(ctx, workshop)

SEE ALSO:
  - ledger/composition.go: Composition and the component union
  - api/scenarios.go: demo catalogs
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type CatalogJSON struct {
	Compositions []CompositionJSON `json:"compositions"`
	Lots         []LotJSON         `json:"lots,omitempty"`
}

type CompositionJSON struct {
	Key          string          `json:"key"`
	Name         string          `json:"name,omitempty"`
	Kind         string          `json:"kind"` // recipe, assembly
	Output       string          `json:"output,omitempty"`
	YieldPerUnit decimal.Decimal `json:"yield_per_unit"`
	Components   []ComponentJSON `json:"components"`
}

type ComponentJSON struct {
	Type     string          `json:"type"` // raw_item, assembly, material
	Key      string          `json:"key"`
	Quantity decimal.Decimal `json:"quantity"`
}

type LotJSON struct {
	Item       string          `json:"item"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt string          `json:"received_at,omitempty"` // RFC 3339; empty means now
	Note       string          `json:"note,omitempty"`
}

// Catalog is a parsed, validated catalog ready to load.
type Catalog struct {
	Compositions []ledger.Composition // dependency order
	Lots         []ledger.LotReceipt
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

type CatalogFactory struct{}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses JSON bytes into a Catalog.
func (f *CatalogFactory) ParseCatalog(data []byte) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts CatalogJSON into a Catalog.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*Catalog, error) {
	comps := make([]ledger.Composition, 0, len(cj.Compositions))
	for _, c := range cj.Compositions {
		comp, err := f.CompositionFromJSON(c)
		if err != nil {
			return nil, err
		}
		comps = append(comps, comp)
	}
	ordered, err := dependencyOrder(comps)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{Compositions: ordered}
	for i, l := range cj.Lots {
		r := ledger.LotReceipt{
			Item:     ledger.ItemKey(l.Item),
			Quantity: l.Quantity,
			UnitCost: l.UnitCost,
			Note:     l.Note,
		}
		if l.ReceivedAt != "" {
			at, err := time.Parse(time.RFC3339, l.ReceivedAt)
			if err != nil {
				return nil, fmt.Errorf("lot %d (%s): invalid received_at: %w", i, l.Item, err)
			}
			r.ReceivedAt = at
		}
		catalog.Lots = append(catalog.Lots, r)
	}
	return catalog, nil
}

// CompositionFromJSON converts and validates one composition.
func (f *CatalogFactory) CompositionFromJSON(cj CompositionJSON) (ledger.Composition, error) {
	c := ledger.Composition{
		Key:          ledger.ItemKey(cj.Key),
		Name:         cj.Name,
		Kind:         parseCompositionKind(cj.Kind),
		Output:       ledger.ItemKey(cj.Output),
		YieldPerUnit: cj.YieldPerUnit,
	}
	for _, comp := range cj.Components {
		component, err := ledger.NewComponent(ledger.ComponentKind(comp.Type), ledger.ItemKey(comp.Key), comp.Quantity)
		if err != nil {
			return ledger.Composition{}, fmt.Errorf("composition %s: %w", cj.Key, err)
		}
		c.Components = append(c.Components, component)
	}
	if err := c.Validate(); err != nil {
		return ledger.Composition{}, err
	}
	return c, nil
}

// CompositionToJSON converts a Composition back to its JSON form.
func (f *CatalogFactory) CompositionToJSON(c ledger.Composition) CompositionJSON {
	cj := CompositionJSON{
		Key:          string(c.Key),
		Name:         c.Name,
		Kind:         string(c.Kind),
		Output:       string(c.Output),
		YieldPerUnit: c.Yield(),
		Components:   make([]ComponentJSON, 0, len(c.Components)),
	}
	for _, comp := range c.Components {
		cj.Components = append(cj.Components, ComponentJSON{
			Type:     string(comp.Kind()),
			Key:      string(comp.Key()),
			Quantity: comp.QtyPer(),
		})
	}
	return cj
}

// =============================================================================
// LOADING
// =============================================================================

// Load saves every composition and receives every lot in one transaction.
// Either the whole catalog is loaded or nothing is.
func (c *Catalog) Load(ctx context.Context, w *ledger.Workshop) error {
	return w.Store().WithTx(ctx, func(tx ledger.Store) error {
		for _, comp := range c.Compositions {
			if err := w.SaveCompositionWith(ctx, tx, comp); err != nil {
				return fmt.Errorf("loading composition %s: %w", comp.Key, err)
			}
		}
		for _, r := range c.Lots {
			if _, err := w.ReceiveLotWith(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCompositionKind(s string) ledger.CompositionKind {
	switch s {
	case "recipe":
		return ledger.KindRecipe
	case "assembly", "":
		return ledger.KindAssembly
	default:
		// Left as-is so Validate reports it.
		return ledger.CompositionKind(s)
	}
}

// dependencyOrder sorts comps so every nested composition defined in the
// catalog comes before the compositions that use it. References to keys not
// in the catalog are left for the graph to check against the store.
func dependencyOrder(comps []ledger.Composition) ([]ledger.Composition, error) {
	byKey := make(map[ledger.ItemKey]ledger.Composition, len(comps))
	for _, c := range comps {
		if _, dup := byKey[c.Key]; dup {
			return nil, fmt.Errorf("%w: composition %s defined twice", ledger.ErrInvalidComposition, c.Key)
		}
		byKey[c.Key] = c
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[ledger.ItemKey]int, len(comps))
	out := make([]ledger.Composition, 0, len(comps))
	var stack []ledger.ItemKey

	var visit func(key ledger.ItemKey) error
	visit = func(key ledger.ItemKey) error {
		c, ok := byKey[key]
		if !ok {
			return nil
		}
		switch state[key] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, k := range stack {
				if k == key {
					start = i
					break
				}
			}
			parent := stack[len(stack)-1]
			path := append([]ledger.ItemKey{parent}, stack[start:]...)
			return &ledger.CycleError{Parent: parent, Child: key, Path: path}
		}

		state[key] = visiting
		stack = append(stack, key)
		for _, comp := range c.Components {
			if comp.Kind() != ledger.ComponentAssembly {
				continue
			}
			if err := visit(comp.Key()); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[key] = done
		out = append(out, c)
		return nil
	}

	for _, c := range comps {
		if err := visit(c.Key); err != nil {
			return nil, err
		}
	}
	return out, nil
}
