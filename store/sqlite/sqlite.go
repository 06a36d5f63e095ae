/*
Package sqlite provides a SQLite-backed implementation of the ledger storage interfaces.

PURPOSE:
  Implements ledger.TxStore (lots, compositions, actions, consumption and
  loss records) on SQLite, with real transactions for the commit phase.

INTERFACES IMPLEMENTED:
  ledger.LotStore:         Lot receipts, FIFO reads, depletion
  ledger.CompositionStore: Compositions and their components
  ledger.ActionStore:      Actions, consumption records, loss records
  ledger.TxStore:          WithTx over *sql.Tx

APPEND-ONLY ENFORCEMENT:
  - No DELETE on lots, actions, consumption_records or loss_records
  - The only UPDATE on lots is DepleteLot, which refuses to go below zero
  - Compositions are replaced as a whole (row + components) on save

KEY TABLES:
  lots:                   One row per receipt, remaining decreases in place
  compositions:           Recipe and assembly definitions
  composition_components: Ordered components, kind is the union tag
  actions:                Frozen outcome of each commit
  consumption_records:    One row per lot drawn
  loss_records:           Classified yield shortfall

NUMBERS AND TIMES:
  Decimals are stored as TEXT via decimal.Decimal's Valuer/Scanner, so
  values round-trip exactly. Timestamps are fixed-width UTC text, so string
  order is time order.

CONNECTIONS:
  The pool is limited to one connection. The ledger assumes a single
  writer, and ":memory:" databases are per-connection. Inside WithTx only
  the Store passed to the callback may be used.

USAGE:
  store, err := sqlite.New("./data/bake-ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  workshop := ledger.NewWorkshop(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; Store runs them on the pool, WithTx on a tx.
type queries struct {
	ex executor
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{ex: db}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	-- Lots (remaining only decreases)
	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL UNIQUE,
		item_key TEXT NOT NULL,
		received_at TEXT NOT NULL,
		quantity TEXT NOT NULL,
		remaining TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		depleted INTEGER NOT NULL DEFAULT 0,
		source_action_id TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	-- FIFO reads (hot path)
	CREATE INDEX IF NOT EXISTS idx_lots_item_fifo
		ON lots(item_key, depleted, received_at, seq);

	CREATE TABLE IF NOT EXISTS compositions (
		item_key TEXT PRIMARY KEY,
		name TEXT,
		kind TEXT NOT NULL CHECK (kind IN ('recipe', 'assembly')),
		output_key TEXT,
		yield_per_unit TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Exactly one kind per component row
	CREATE TABLE IF NOT EXISTS composition_components (
		parent_key TEXT NOT NULL REFERENCES compositions(item_key) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('raw_item', 'assembly', 'material')),
		child_key TEXT NOT NULL,
		quantity_per TEXT NOT NULL,
		PRIMARY KEY (parent_key, position)
	);

	CREATE INDEX IF NOT EXISTS idx_components_child
		ON composition_components(child_key) WHERE kind = 'assembly';

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		composition_key TEXT NOT NULL,
		output_key TEXT,
		requested_quantity TEXT NOT NULL,
		requested_yield TEXT NOT NULL,
		actual_yield TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('complete', 'partial_loss', 'total_loss')),
		total_cost TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	-- Records keep no foreign keys so archived records can be imported alone
	CREATE TABLE IF NOT EXISTS consumption_records (
		id TEXT PRIMARY KEY,
		action_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		item_key TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		consumed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_consumption_action
		ON consumption_records(action_id);
	CREATE INDEX IF NOT EXISTS idx_consumption_item
		ON consumption_records(item_key, consumed_at);

	CREATE TABLE IF NOT EXISTS loss_records (
		id TEXT PRIMARY KEY,
		action_id TEXT NOT NULL,
		category TEXT NOT NULL,
		quantity TEXT NOT NULL,
		cost_per_unit TEXT NOT NULL,
		note TEXT,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loss_action
		ON loss_records(action_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

type txStore struct {
	queries
}

// WithTx executes fn within a transaction. Returning an error from fn rolls
// back every write made through the Store it was given.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{ex: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// atomically runs fn in a transaction unless q already runs inside one.
func (q *queries) atomically(ctx context.Context, fn func(*queries) error) error {
	db, ok := q.ex.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{ex: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// LOTS
// =============================================================================

const lotColumns = `id, seq, item_key, received_at, quantity, remaining, unit_cost, source_action_id, note`

func (q *queries) OpenLots(ctx context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	return q.queryLots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE item_key = ? AND depleted = 0
		ORDER BY received_at, seq
	`, item)
}

func (q *queries) LotHistory(ctx context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	return q.queryLots(ctx, `
		SELECT `+lotColumns+` FROM lots
		WHERE item_key = ?
		ORDER BY received_at, seq
	`, item)
}

func (q *queries) AppendLot(ctx context.Context, lot ledger.InventoryLot) (ledger.InventoryLot, error) {
	err := q.atomically(ctx, func(q *queries) error {
		if err := q.ex.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM lots`).Scan(&lot.Seq); err != nil {
			return fmt.Errorf("failed to allocate lot sequence: %w", err)
		}
		_, err := q.ex.ExecContext(ctx, `
			INSERT INTO lots
			(id, seq, item_key, received_at, quantity, remaining, unit_cost, depleted, source_action_id, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			lot.ID,
			lot.Seq,
			lot.Item,
			formatTime(lot.ReceivedAt),
			lot.Quantity,
			lot.Remaining,
			lot.UnitCost,
			boolInt(!lot.IsOpen()),
			nullString(string(lot.Source)),
			nullString(lot.Note),
			formatTime(time.Now()),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("lot %s: %w", lot.ID, ledger.ErrDuplicateID)
			}
			return fmt.Errorf("failed to append lot: %w", err)
		}
		return nil
	})
	if err != nil {
		return ledger.InventoryLot{}, err
	}
	return lot, nil
}

func (q *queries) DepleteLot(ctx context.Context, id ledger.LotID, qty decimal.Decimal) (ledger.InventoryLot, error) {
	var lot ledger.InventoryLot
	err := q.atomically(ctx, func(q *queries) error {
		lots, err := q.queryLots(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(lots) == 0 {
			return fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
		}
		lot = lots[0]
		if qty.IsNegative() || qty.GreaterThan(lot.Remaining) {
			return fmt.Errorf("lot %s has %s, cannot take %s: %w", id, lot.Remaining, qty, ledger.ErrLotOverdrawn)
		}

		lot.Remaining = lot.Remaining.Sub(qty)
		_, err = q.ex.ExecContext(ctx,
			`UPDATE lots SET remaining = ?, depleted = ? WHERE id = ?`,
			lot.Remaining, boolInt(!lot.IsOpen()), id)
		if err != nil {
			return fmt.Errorf("failed to deplete lot %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return ledger.InventoryLot{}, err
	}
	return lot, nil
}

func (q *queries) queryLots(ctx context.Context, query string, args ...any) ([]ledger.InventoryLot, error) {
	rows, err := q.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []ledger.InventoryLot
	for rows.Next() {
		var (
			lot        ledger.InventoryLot
			receivedAt string
			source     sql.NullString
			note       sql.NullString
		)
		if err := rows.Scan(&lot.ID, &lot.Seq, &lot.Item, &receivedAt,
			&lot.Quantity, &lot.Remaining, &lot.UnitCost, &source, &note); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		if lot.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		lot.Source = ledger.ActionID(source.String)
		lot.Note = note.String
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// =============================================================================
// COMPOSITIONS
// =============================================================================

func (q *queries) SaveComposition(ctx context.Context, c ledger.Composition) error {
	return q.atomically(ctx, func(q *queries) error {
		_, err := q.ex.ExecContext(ctx, `
			INSERT INTO compositions (item_key, name, kind, output_key, yield_per_unit, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_key) DO UPDATE SET
				name = excluded.name,
				kind = excluded.kind,
				output_key = excluded.output_key,
				yield_per_unit = excluded.yield_per_unit,
				updated_at = excluded.updated_at
		`, c.Key, c.Name, c.Kind, nullString(string(c.Output)), c.YieldPerUnit, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to save composition: %w", err)
		}

		if _, err := q.ex.ExecContext(ctx, `DELETE FROM composition_components WHERE parent_key = ?`, c.Key); err != nil {
			return fmt.Errorf("failed to clear components: %w", err)
		}
		for i, comp := range c.Components {
			_, err := q.ex.ExecContext(ctx, `
				INSERT INTO composition_components (parent_key, position, kind, child_key, quantity_per)
				VALUES (?, ?, ?, ?, ?)
			`, c.Key, i, comp.Kind(), comp.Key(), comp.QtyPer())
			if err != nil {
				return fmt.Errorf("failed to save component %s: %w", comp.Key(), err)
			}
		}
		return nil
	})
}

func (q *queries) GetComposition(ctx context.Context, key ledger.ItemKey) (*ledger.Composition, error) {
	var (
		c      ledger.Composition
		name   sql.NullString
		output sql.NullString
	)
	err := q.ex.QueryRowContext(ctx, `
		SELECT item_key, name, kind, output_key, yield_per_unit FROM compositions WHERE item_key = ?
	`, key).Scan(&c.Key, &name, &c.Kind, &output, &c.YieldPerUnit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ledger.ErrCompositionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get composition: %w", err)
	}
	c.Name = name.String
	c.Output = ledger.ItemKey(output.String)

	if c.Components, err = q.components(ctx, key); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) ListCompositions(ctx context.Context) ([]ledger.Composition, error) {
	rows, err := q.ex.QueryContext(ctx, `SELECT item_key FROM compositions ORDER BY item_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list compositions: %w", err)
	}
	var keys []ledger.ItemKey
	for rows.Next() {
		var k ledger.ItemKey
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]ledger.Composition, 0, len(keys))
	for _, k := range keys {
		c, err := q.GetComposition(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (q *queries) components(ctx context.Context, parent ledger.ItemKey) ([]ledger.Component, error) {
	rows, err := q.ex.QueryContext(ctx, `
		SELECT kind, child_key, quantity_per FROM composition_components
		WHERE parent_key = ? ORDER BY position
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var out []ledger.Component
	for rows.Next() {
		var (
			kind ledger.ComponentKind
			key  ledger.ItemKey
			qty  decimal.Decimal
		)
		if err := rows.Scan(&kind, &key, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		comp, err := ledger.NewComponent(kind, key, qty)
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, rows.Err()
}

// =============================================================================
// ACTIONS AND RECORDS
// =============================================================================

const actionColumns = `id, kind, composition_key, output_key, requested_quantity, requested_yield,
	actual_yield, status, total_cost, unit_cost, note, created_at`

func (q *queries) SaveAction(ctx context.Context, a ledger.Action) error {
	_, err := q.ex.ExecContext(ctx, `
		INSERT INTO actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.Kind, a.Composition, nullString(string(a.Output)),
		a.RequestedQuantity, a.RequestedYield, a.ActualYield, a.Status,
		a.TotalCost, a.UnitCost, nullString(a.Note), formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("action %s: %w", a.ID, ledger.ErrDuplicateID)
		}
		return fmt.Errorf("failed to save action: %w", err)
	}
	return nil
}

func (q *queries) GetAction(ctx context.Context, id ledger.ActionID) (*ledger.Action, error) {
	actions, err := q.queryActions(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ledger.ErrActionNotFound)
	}
	a := actions[0]
	if err := q.attachRecords(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) ListActions(ctx context.Context) ([]ledger.Action, error) {
	actions, err := q.queryActions(ctx, `SELECT `+actionColumns+` FROM actions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	for i := range actions {
		if err := q.attachRecords(ctx, &actions[i]); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

func (q *queries) attachRecords(ctx context.Context, a *ledger.Action) error {
	var err error
	if a.Consumptions, err = q.queryConsumption(ctx, `
		SELECT id, action_id, lot_id, item_key, quantity, unit_cost, consumed_at
		FROM consumption_records WHERE action_id = ? ORDER BY rowid
	`, a.ID); err != nil {
		return err
	}
	a.Losses, err = q.queryLosses(ctx, `
		SELECT id, action_id, category, quantity, cost_per_unit, note, recorded_at
		FROM loss_records WHERE action_id = ? ORDER BY rowid
	`, a.ID)
	return err
}

func (q *queries) queryActions(ctx context.Context, query string, args ...any) ([]ledger.Action, error) {
	rows, err := q.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Action
	for rows.Next() {
		var (
			a         ledger.Action
			output    sql.NullString
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Composition, &output,
			&a.RequestedQuantity, &a.RequestedYield, &a.ActualYield, &a.Status,
			&a.TotalCost, &a.UnitCost, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.Output = ledger.ItemKey(output.String)
		a.Note = note.String
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *queries) AppendConsumption(ctx context.Context, r ledger.ConsumptionRecord) error {
	_, err := q.ex.ExecContext(ctx, `
		INSERT INTO consumption_records (id, action_id, lot_id, item_key, quantity, unit_cost, consumed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ActionID, r.LotID, r.Item, r.Quantity, r.UnitCost, formatTime(r.ConsumedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("consumption record %s: %w", r.ID, ledger.ErrDuplicateID)
		}
		return fmt.Errorf("failed to append consumption record: %w", err)
	}
	return nil
}

func (q *queries) AppendLoss(ctx context.Context, r ledger.LossRecord) error {
	_, err := q.ex.ExecContext(ctx, `
		INSERT INTO loss_records (id, action_id, category, quantity, cost_per_unit, note, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ActionID, r.Category, r.Quantity, r.CostPerUnit, nullString(r.Note), formatTime(r.RecordedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("loss record %s: %w", r.ID, ledger.ErrDuplicateID)
		}
		return fmt.Errorf("failed to append loss record: %w", err)
	}
	return nil
}

func (q *queries) ConsumptionRecords(ctx context.Context) ([]ledger.ConsumptionRecord, error) {
	return q.queryConsumption(ctx, `
		SELECT id, action_id, lot_id, item_key, quantity, unit_cost, consumed_at
		FROM consumption_records ORDER BY rowid
	`)
}

func (q *queries) LossRecords(ctx context.Context) ([]ledger.LossRecord, error) {
	return q.queryLosses(ctx, `
		SELECT id, action_id, category, quantity, cost_per_unit, note, recorded_at
		FROM loss_records ORDER BY rowid
	`)
}

func (q *queries) LatestConsumption(ctx context.Context, item ledger.ItemKey) (*ledger.ConsumptionRecord, error) {
	recs, err := q.queryConsumption(ctx, `
		SELECT id, action_id, lot_id, item_key, quantity, unit_cost, consumed_at
		FROM consumption_records WHERE item_key = ?
		ORDER BY consumed_at DESC, rowid DESC LIMIT 1
	`, item)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (q *queries) queryConsumption(ctx context.Context, query string, args ...any) ([]ledger.ConsumptionRecord, error) {
	rows, err := q.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption records: %w", err)
	}
	defer rows.Close()

	var out []ledger.ConsumptionRecord
	for rows.Next() {
		var (
			r          ledger.ConsumptionRecord
			consumedAt string
		)
		if err := rows.Scan(&r.ID, &r.ActionID, &r.LotID, &r.Item, &r.Quantity, &r.UnitCost, &consumedAt); err != nil {
			return nil, fmt.Errorf("failed to scan consumption record: %w", err)
		}
		if r.ConsumedAt, err = parseTime(consumedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) queryLosses(ctx context.Context, query string, args ...any) ([]ledger.LossRecord, error) {
	rows, err := q.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loss records: %w", err)
	}
	defer rows.Close()

	var out []ledger.LossRecord
	for rows.Next() {
		var (
			r          ledger.LossRecord
			note       sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&r.ID, &r.ActionID, &r.Category, &r.Quantity, &r.CostPerUnit, &note, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loss record: %w", err)
		}
		r.Note = note.String
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"loss_records", "consumption_records", "actions", "composition_components", "compositions", "lots"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
