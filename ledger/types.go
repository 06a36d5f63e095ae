/*
Package ledger provides the inventory consumption and costing engine.

PURPOSE:
  This package owns the accounting core of the bake tracker: purchased lots
  are depleted oldest-first to produce intermediate and finished goods, and
  the cost of every lot drawn is frozen at the moment of the draw. The rest
  of the application (catalog screens, planning, import/export plumbing)
  talks to this package through the Workshop.

KEY CONCEPTS IN THIS FILE (types.go):
  - ItemKey: stable key of anything that can hold stock or be composed
  - InventoryLot: one receipt of stock, the unit of FIFO ordering
  - Taking: one draw from one lot (quantity + cost snapshot)
  - ConsumptionRecord: immutable audit entry written by a commit
  - Action: one production or assembly event and its outcome

DESIGN PRINCIPLES:
  1. Precision: every quantity and amount is a decimal.Decimal, never a float
  2. Append-only history: lots and records are never deleted
  3. Derived state: stock and status are computed, never independently set
  4. Single choke point: only the Engine's commit phase depletes lots

SEE ALSO:
  - lots.go: FIFO planning over lots
  - engine.go: check-then-commit protocol
  - composition.go: component union and cycle detection
  - cost.go: cost propagation through nested assemblies
  - loss.go: yield shortfall accounting
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemKey string
type LotID string
type ActionID string
type RecordID string

// MustParseDecimal parses s or panics. Intended for constants and tests.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// INVENTORY LOT - One receipt of a stocked item
// =============================================================================

// InventoryLot is one receipt of stock.
//
// INVARIANT: 0 <= Remaining <= Quantity. Remaining only ever decreases, and a
// lot at zero stays in history (it is excluded from availability, not deleted).
type InventoryLot struct {
	ID         LotID
	Item       ItemKey
	ReceivedAt time.Time // FIFO sort key
	Seq        int64     // insertion order, breaks ReceivedAt ties
	Quantity   decimal.Decimal
	Remaining  decimal.Decimal
	UnitCost   decimal.Decimal
	Source     ActionID // set when the lot was produced by an action
	Note       string
}

func (l InventoryLot) IsOpen() bool { return l.Remaining.IsPositive() }

// LotReceipt is the input for receiving a new lot.
type LotReceipt struct {
	Item       ItemKey
	ReceivedAt time.Time
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Note       string
}

// Taking is a single draw from a lot, priced at the lot's cost when read.
type Taking struct {
	LotID    LotID
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

func (t Taking) Cost() decimal.Decimal { return t.Quantity.Mul(t.UnitCost) }

// =============================================================================
// CONSUMPTION RECORD - Immutable audit entry
// =============================================================================

// ConsumptionRecord is written once per Taking by a successful commit.
// Never mutated or deleted.
type ConsumptionRecord struct {
	ID         RecordID
	ActionID   ActionID
	LotID      LotID
	Item       ItemKey
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal // cost snapshot
	ConsumedAt time.Time
}

func (r ConsumptionRecord) Cost() decimal.Decimal { return r.Quantity.Mul(r.UnitCost) }

// =============================================================================
// ACTION - A production or assembly event
// =============================================================================

type ActionKind string

const (
	ActionProduction ActionKind = "production" // N batches of a recipe
	ActionAssembly   ActionKind = "assembly"   // N units of an assembly
)

type ActionStatus string

const (
	StatusComplete    ActionStatus = "complete"
	StatusPartialLoss ActionStatus = "partial_loss"
	StatusTotalLoss   ActionStatus = "total_loss"
)

// Action is the frozen outcome of one commit.
//
// TotalCost is the sum of the ConsumptionRecords' costs, computed once at
// commit time. UnitCost is TotalCost spread over the requested yield and is
// the cost snapshot used for losses and for the produced lot.
type Action struct {
	ID                ActionID
	Kind              ActionKind
	Composition       ItemKey
	Output            ItemKey
	RequestedQuantity decimal.Decimal // batches or units
	RequestedYield    decimal.Decimal
	ActualYield       decimal.Decimal
	Status            ActionStatus
	TotalCost         decimal.Decimal
	UnitCost          decimal.Decimal
	Note              string
	CreatedAt         time.Time

	Consumptions []ConsumptionRecord
	Losses       []LossRecord
}

// LossTotal sums the quantities of the action's loss records.
func (a Action) LossTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.Losses {
		total = total.Add(l.Quantity)
	}
	return total
}

// ConsumedCost recomputes the cost from the consumption records. It always
// equals TotalCost for a committed action.
func (a Action) ConsumedCost() decimal.Decimal {
	total := decimal.Zero
	for _, c := range a.Consumptions {
		total = total.Add(c.Cost())
	}
	return total
}
