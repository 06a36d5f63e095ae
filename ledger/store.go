/*
store.go - Persistence interfaces for lots, compositions and actions

PURPOSE:
  Defines the boundary between the engine and the database. Different
  implementations use SQLite or in-memory storage.

KEY INTERFACES:
  LotStore:         Lot receipts, FIFO reads, depletion
  CompositionStore: Composition definitions (the graph's edges)
  ActionStore:      Actions, consumption records, loss records
  Store:            All of the above
  TxStore:          Store + WithTx (all-or-nothing unit of work)
  RevertibleStore:  Store + inverse operations, for stores without transactions

UNIT OF WORK:
  The engine never opens a transaction on its own. Callers obtain a Store
  from TxStore.WithTx and pass it to Engine.Attempt, so they decide how many
  actions share one transaction and where it rolls back.

APPEND-ONLY CONTRACT:
  Lots and records are never deleted through Store. The only in-place change
  is DepleteLot, which may only decrease a lot's remaining quantity.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with real transactions
  - ledger/store/memory.go: in-memory (Memory, TxMemory)
  - compensating.go: TxStore on top of any RevertibleStore
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOTS
// =============================================================================

// LotReader is the read side of the lot collection.
type LotReader interface {
	// OpenLots returns lots of item with remaining > 0 in FIFO order.
	OpenLots(ctx context.Context, item ItemKey) ([]InventoryLot, error)

	// LotHistory returns every lot of item, depleted ones included, in FIFO order.
	LotHistory(ctx context.Context, item ItemKey) ([]InventoryLot, error)
}

type LotStore interface {
	LotReader

	// AppendLot persists a new lot and returns it with Seq assigned.
	AppendLot(ctx context.Context, lot InventoryLot) (InventoryLot, error)

	// DepleteLot reduces a lot's remaining quantity by qty. Returns
	// ErrLotOverdrawn if qty exceeds what remains.
	DepleteLot(ctx context.Context, id LotID, qty decimal.Decimal) (InventoryLot, error)
}

// =============================================================================
// COMPOSITIONS
// =============================================================================

type CompositionReader interface {
	// GetComposition returns ErrCompositionNotFound for unknown keys.
	GetComposition(ctx context.Context, key ItemKey) (*Composition, error)
	ListCompositions(ctx context.Context) ([]Composition, error)
}

type CompositionStore interface {
	CompositionReader

	// SaveComposition replaces the composition and all its components.
	// Callers go through Graph.Save so the cycle check runs first.
	SaveComposition(ctx context.Context, c Composition) error
}

// =============================================================================
// ACTIONS AND RECORDS
// =============================================================================

type ActionReader interface {
	// GetAction returns the action with its consumption and loss records.
	GetAction(ctx context.Context, id ActionID) (*Action, error)
	ListActions(ctx context.Context) ([]Action, error)

	ConsumptionRecords(ctx context.Context) ([]ConsumptionRecord, error)
	LossRecords(ctx context.Context) ([]LossRecord, error)

	// LatestConsumption returns the most recent record for item, or nil.
	LatestConsumption(ctx context.Context, item ItemKey) (*ConsumptionRecord, error)
}

type ActionStore interface {
	ActionReader

	SaveAction(ctx context.Context, a Action) error
	AppendConsumption(ctx context.Context, r ConsumptionRecord) error
	AppendLoss(ctx context.Context, r LossRecord) error
}

// =============================================================================
// COMBINED STORES
// =============================================================================

type Store interface {
	LotStore
	CompositionStore
	ActionStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Store is
	// rolled back. If fn returns nil, the writes are committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// RevertibleStore exposes the inverse of every write so a store without
// transactions can still be rolled back by replaying them.
type RevertibleStore interface {
	Store

	RemoveLot(ctx context.Context, id LotID) error
	RestoreLot(ctx context.Context, id LotID, qty decimal.Decimal) error
	RemoveComposition(ctx context.Context, key ItemKey) error
	RemoveAction(ctx context.Context, id ActionID) error
	RemoveConsumption(ctx context.Context, id RecordID) error
	RemoveLoss(ctx context.Context, id RecordID) error
}
