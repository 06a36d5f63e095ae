// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by one RWMutex. It has no
// transactions of its own but implements ledger.RevertibleStore, so it can
// sit under a ledger.CompensatingStore.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// state holds the data. Its methods assume the caller holds the lock.
type state struct {
	lots         map[ledger.LotID]ledger.InventoryLot
	lotOrder     map[ledger.ItemKey][]ledger.LotID
	nextSeq      int64
	compositions map[ledger.ItemKey]ledger.Composition
	actions      map[ledger.ActionID]ledger.Action
	actionOrder  []ledger.ActionID
	consumptions []ledger.ConsumptionRecord
	losses       []ledger.LossRecord
}

func newState() *state {
	return &state{
		lots:         make(map[ledger.LotID]ledger.InventoryLot),
		lotOrder:     make(map[ledger.ItemKey][]ledger.LotID),
		compositions: make(map[ledger.ItemKey]ledger.Composition),
		actions:      make(map[ledger.ActionID]ledger.Action),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, lot := range s.lots {
		c.lots[id] = lot
	}
	for item, ids := range s.lotOrder {
		c.lotOrder[item] = append([]ledger.LotID(nil), ids...)
	}
	c.nextSeq = s.nextSeq
	for k, comp := range s.compositions {
		c.compositions[k] = copyComposition(comp)
	}
	for id, a := range s.actions {
		c.actions[id] = a
	}
	c.actionOrder = append([]ledger.ActionID(nil), s.actionOrder...)
	c.consumptions = append([]ledger.ConsumptionRecord(nil), s.consumptions...)
	c.losses = append([]ledger.LossRecord(nil), s.losses...)
	return c
}

func copyComposition(c ledger.Composition) ledger.Composition {
	c.Components = append([]ledger.Component(nil), c.Components...)
	return c
}

// ---- lots ----

func (s *state) lotsOf(item ledger.ItemKey, openOnly bool) []ledger.InventoryLot {
	var out []ledger.InventoryLot
	for _, id := range s.lotOrder[item] {
		lot := s.lots[id]
		if openOnly && !lot.IsOpen() {
			continue
		}
		out = append(out, lot)
	}
	ledger.SortFIFO(out)
	return out
}

func (s *state) appendLot(lot ledger.InventoryLot) (ledger.InventoryLot, error) {
	if _, exists := s.lots[lot.ID]; exists {
		return ledger.InventoryLot{}, fmt.Errorf("lot %s: %w", lot.ID, ledger.ErrDuplicateID)
	}
	s.nextSeq++
	lot.Seq = s.nextSeq
	s.lots[lot.ID] = lot
	s.lotOrder[lot.Item] = append(s.lotOrder[lot.Item], lot.ID)
	return lot, nil
}

func (s *state) depleteLot(id ledger.LotID, qty decimal.Decimal) (ledger.InventoryLot, error) {
	lot, ok := s.lots[id]
	if !ok {
		return ledger.InventoryLot{}, fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
	}
	if qty.IsNegative() || qty.GreaterThan(lot.Remaining) {
		return ledger.InventoryLot{}, fmt.Errorf("lot %s has %s, cannot take %s: %w", id, lot.Remaining, qty, ledger.ErrLotOverdrawn)
	}
	lot.Remaining = lot.Remaining.Sub(qty)
	s.lots[id] = lot
	return lot, nil
}

func (s *state) restoreLot(id ledger.LotID, qty decimal.Decimal) error {
	lot, ok := s.lots[id]
	if !ok {
		return fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
	}
	lot.Remaining = lot.Remaining.Add(qty)
	s.lots[id] = lot
	return nil
}

func (s *state) removeLot(id ledger.LotID) error {
	lot, ok := s.lots[id]
	if !ok {
		return fmt.Errorf("lot %s: %w", id, ledger.ErrLotNotFound)
	}
	delete(s.lots, id)
	ids := s.lotOrder[lot.Item]
	for i, other := range ids {
		if other == id {
			s.lotOrder[lot.Item] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// ---- compositions ----

func (s *state) getComposition(key ledger.ItemKey) (*ledger.Composition, error) {
	c, ok := s.compositions[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ledger.ErrCompositionNotFound)
	}
	c = copyComposition(c)
	return &c, nil
}

func (s *state) listCompositions() []ledger.Composition {
	out := make([]ledger.Composition, 0, len(s.compositions))
	for _, c := range s.compositions {
		out = append(out, copyComposition(c))
	}
	sortCompositions(out)
	return out
}

func sortCompositions(cs []ledger.Composition) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
}

// ---- actions and records ----

func (s *state) saveAction(a ledger.Action) error {
	if _, exists := s.actions[a.ID]; exists {
		return fmt.Errorf("action %s: %w", a.ID, ledger.ErrDuplicateID)
	}
	a.Consumptions, a.Losses = nil, nil
	s.actions[a.ID] = a
	s.actionOrder = append(s.actionOrder, a.ID)
	return nil
}

func (s *state) getAction(id ledger.ActionID) (*ledger.Action, error) {
	a, ok := s.actions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ledger.ErrActionNotFound)
	}
	for _, r := range s.consumptions {
		if r.ActionID == id {
			a.Consumptions = append(a.Consumptions, r)
		}
	}
	for _, r := range s.losses {
		if r.ActionID == id {
			a.Losses = append(a.Losses, r)
		}
	}
	return &a, nil
}

func (s *state) listActions() []ledger.Action {
	out := make([]ledger.Action, 0, len(s.actionOrder))
	for _, id := range s.actionOrder {
		a, _ := s.getAction(id)
		out = append(out, *a)
	}
	return out
}

func (s *state) appendConsumption(r ledger.ConsumptionRecord) error {
	for _, existing := range s.consumptions {
		if existing.ID == r.ID {
			return fmt.Errorf("consumption record %s: %w", r.ID, ledger.ErrDuplicateID)
		}
	}
	s.consumptions = append(s.consumptions, r)
	return nil
}

func (s *state) appendLoss(r ledger.LossRecord) error {
	for _, existing := range s.losses {
		if existing.ID == r.ID {
			return fmt.Errorf("loss record %s: %w", r.ID, ledger.ErrDuplicateID)
		}
	}
	s.losses = append(s.losses, r)
	return nil
}

func (s *state) latestConsumption(item ledger.ItemKey) *ledger.ConsumptionRecord {
	for i := len(s.consumptions) - 1; i >= 0; i-- {
		if s.consumptions[i].Item == item {
			r := s.consumptions[i]
			return &r
		}
	}
	return nil
}

func (s *state) removeAction(id ledger.ActionID) error {
	if _, ok := s.actions[id]; !ok {
		return fmt.Errorf("%s: %w", id, ledger.ErrActionNotFound)
	}
	delete(s.actions, id)
	for i, other := range s.actionOrder {
		if other == id {
			s.actionOrder = append(s.actionOrder[:i:i], s.actionOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *state) removeConsumption(id ledger.RecordID) error {
	for i, r := range s.consumptions {
		if r.ID == id {
			s.consumptions = append(s.consumptions[:i:i], s.consumptions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("consumption record %s not found", id)
}

func (s *state) removeLoss(id ledger.RecordID) error {
	for i, r := range s.losses {
		if r.ID == id {
			s.losses = append(s.losses[:i:i], s.losses[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("loss record %s not found", id)
}

// =============================================================================
// MEMORY - locking wrappers
// =============================================================================

func (m *Memory) OpenLots(_ context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.lotsOf(item, true), nil
}

func (m *Memory) LotHistory(_ context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.lotsOf(item, false), nil
}

func (m *Memory) AppendLot(_ context.Context, lot ledger.InventoryLot) (ledger.InventoryLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendLot(lot)
}

func (m *Memory) DepleteLot(_ context.Context, id ledger.LotID, qty decimal.Decimal) (ledger.InventoryLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.depleteLot(id, qty)
}

func (m *Memory) GetComposition(_ context.Context, key ledger.ItemKey) (*ledger.Composition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getComposition(key)
}

func (m *Memory) ListCompositions(_ context.Context) ([]ledger.Composition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listCompositions(), nil
}

func (m *Memory) SaveComposition(_ context.Context, c ledger.Composition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.compositions[c.Key] = copyComposition(c)
	return nil
}

func (m *Memory) GetAction(_ context.Context, id ledger.ActionID) (*ledger.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getAction(id)
}

func (m *Memory) ListActions(_ context.Context) ([]ledger.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listActions(), nil
}

func (m *Memory) ConsumptionRecords(_ context.Context) ([]ledger.ConsumptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.ConsumptionRecord(nil), m.st.consumptions...), nil
}

func (m *Memory) LossRecords(_ context.Context) ([]ledger.LossRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.LossRecord(nil), m.st.losses...), nil
}

func (m *Memory) LatestConsumption(_ context.Context, item ledger.ItemKey) (*ledger.ConsumptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.latestConsumption(item), nil
}

func (m *Memory) SaveAction(_ context.Context, a ledger.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveAction(a)
}

func (m *Memory) AppendConsumption(_ context.Context, r ledger.ConsumptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendConsumption(r)
}

func (m *Memory) AppendLoss(_ context.Context, r ledger.LossRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.appendLoss(r)
}

// Inverse operations (ledger.RevertibleStore).

func (m *Memory) RemoveLot(_ context.Context, id ledger.LotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.removeLot(id)
}

func (m *Memory) RestoreLot(_ context.Context, id ledger.LotID, qty decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.restoreLot(id, qty)
}

func (m *Memory) RemoveComposition(_ context.Context, key ledger.ItemKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.st.compositions, key)
	return nil
}

func (m *Memory) RemoveAction(_ context.Context, id ledger.ActionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.removeAction(id)
}

func (m *Memory) RemoveConsumption(_ context.Context, id ledger.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.removeConsumption(id)
}

func (m *Memory) RemoveLoss(_ context.Context, id ledger.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.removeLoss(id)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The lock is held for the whole callback, so fn must only use the Store it
// is given.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.clone()
	defer func() {
		if p := recover(); p != nil {
			tm.st = snapshot
			panic(p)
		}
	}()
	if err := fn(&txMemoryView{st: tm.st}); err != nil {
		tm.st = snapshot
		return err
	}
	return nil
}

// txMemoryView operates on the state directly; TxMemory.WithTx holds the lock.
type txMemoryView struct {
	st *state
}

func (v *txMemoryView) OpenLots(_ context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	return v.st.lotsOf(item, true), nil
}

func (v *txMemoryView) LotHistory(_ context.Context, item ledger.ItemKey) ([]ledger.InventoryLot, error) {
	return v.st.lotsOf(item, false), nil
}

func (v *txMemoryView) AppendLot(_ context.Context, lot ledger.InventoryLot) (ledger.InventoryLot, error) {
	return v.st.appendLot(lot)
}

func (v *txMemoryView) DepleteLot(_ context.Context, id ledger.LotID, qty decimal.Decimal) (ledger.InventoryLot, error) {
	return v.st.depleteLot(id, qty)
}

func (v *txMemoryView) GetComposition(_ context.Context, key ledger.ItemKey) (*ledger.Composition, error) {
	return v.st.getComposition(key)
}

func (v *txMemoryView) ListCompositions(_ context.Context) ([]ledger.Composition, error) {
	return v.st.listCompositions(), nil
}

func (v *txMemoryView) SaveComposition(_ context.Context, c ledger.Composition) error {
	v.st.compositions[c.Key] = copyComposition(c)
	return nil
}

func (v *txMemoryView) GetAction(_ context.Context, id ledger.ActionID) (*ledger.Action, error) {
	return v.st.getAction(id)
}

func (v *txMemoryView) ListActions(_ context.Context) ([]ledger.Action, error) {
	return v.st.listActions(), nil
}

func (v *txMemoryView) ConsumptionRecords(_ context.Context) ([]ledger.ConsumptionRecord, error) {
	return append([]ledger.ConsumptionRecord(nil), v.st.consumptions...), nil
}

func (v *txMemoryView) LossRecords(_ context.Context) ([]ledger.LossRecord, error) {
	return append([]ledger.LossRecord(nil), v.st.losses...), nil
}

func (v *txMemoryView) LatestConsumption(_ context.Context, item ledger.ItemKey) (*ledger.ConsumptionRecord, error) {
	return v.st.latestConsumption(item), nil
}

func (v *txMemoryView) SaveAction(_ context.Context, a ledger.Action) error {
	return v.st.saveAction(a)
}

func (v *txMemoryView) AppendConsumption(_ context.Context, r ledger.ConsumptionRecord) error {
	return v.st.appendConsumption(r)
}

func (v *txMemoryView) AppendLoss(_ context.Context, r ledger.LossRecord) error {
	return v.st.appendLoss(r)
}
