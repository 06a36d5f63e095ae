package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CompensatingStore gives a RevertibleStore all-or-nothing WithTx semantics
// without real transactions. Every write made inside WithTx journals its
// inverse. If the callback fails, the inverses run in reverse order.
//
// Only one writer may use the store at a time.
type CompensatingStore struct {
	RevertibleStore
}

func NewCompensatingStore(inner RevertibleStore) *CompensatingStore {
	return &CompensatingStore{RevertibleStore: inner}
}

func (s *CompensatingStore) WithTx(ctx context.Context, fn func(Store) error) error {
	j := &journal{RevertibleStore: s.RevertibleStore}
	err := fn(j)
	if err == nil {
		return nil
	}
	if rbErr := j.rollback(context.WithoutCancel(ctx)); rbErr != nil {
		return errors.Join(err, fmt.Errorf("compensating rollback: %w", rbErr))
	}
	return err
}

type undoFunc func(ctx context.Context) error

// journal records an inverse for every successful write.
type journal struct {
	RevertibleStore
	undo []undoFunc
}

func (j *journal) push(f undoFunc) { j.undo = append(j.undo, f) }

func (j *journal) rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	j.undo = nil
	return errors.Join(errs...)
}

func (j *journal) AppendLot(ctx context.Context, lot InventoryLot) (InventoryLot, error) {
	saved, err := j.RevertibleStore.AppendLot(ctx, lot)
	if err != nil {
		return saved, err
	}
	j.push(func(ctx context.Context) error { return j.RevertibleStore.RemoveLot(ctx, saved.ID) })
	return saved, nil
}

func (j *journal) DepleteLot(ctx context.Context, id LotID, qty decimal.Decimal) (InventoryLot, error) {
	lot, err := j.RevertibleStore.DepleteLot(ctx, id, qty)
	if err != nil {
		return lot, err
	}
	j.push(func(ctx context.Context) error { return j.RevertibleStore.RestoreLot(ctx, id, qty) })
	return lot, nil
}

func (j *journal) SaveComposition(ctx context.Context, c Composition) error {
	prev, err := j.RevertibleStore.GetComposition(ctx, c.Key)
	if err != nil && !errors.Is(err, ErrCompositionNotFound) {
		return err
	}
	if err := j.RevertibleStore.SaveComposition(ctx, c); err != nil {
		return err
	}
	if prev != nil {
		old := *prev
		j.push(func(ctx context.Context) error { return j.RevertibleStore.SaveComposition(ctx, old) })
	} else {
		j.push(func(ctx context.Context) error { return j.RevertibleStore.RemoveComposition(ctx, c.Key) })
	}
	return nil
}

func (j *journal) SaveAction(ctx context.Context, a Action) error {
	if err := j.RevertibleStore.SaveAction(ctx, a); err != nil {
		return err
	}
	j.push(func(ctx context.Context) error { return j.RevertibleStore.RemoveAction(ctx, a.ID) })
	return nil
}

func (j *journal) AppendConsumption(ctx context.Context, r ConsumptionRecord) error {
	if err := j.RevertibleStore.AppendConsumption(ctx, r); err != nil {
		return err
	}
	j.push(func(ctx context.Context) error { return j.RevertibleStore.RemoveConsumption(ctx, r.ID) })
	return nil
}

func (j *journal) AppendLoss(ctx context.Context, r LossRecord) error {
	if err := j.RevertibleStore.AppendLoss(ctx, r); err != nil {
		return err
	}
	j.push(func(ctx context.Context) error { return j.RevertibleStore.RemoveLoss(ctx, r.ID) })
	return nil
}
