package ledger_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return ledger.MustParseDecimal(s) }

func day(n int) time.Time {
	return time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

func lot(id string, item ledger.ItemKey, received time.Time, seq int64, qty, cost string) ledger.InventoryLot {
	return ledger.InventoryLot{
		ID: ledger.LotID(id), Item: item, ReceivedAt: received, Seq: seq,
		Quantity: dec(qty), Remaining: dec(qty), UnitCost: dec(cost),
	}
}

// newFlourWorkshop receives lot A (10 @ day 1, 0.50) and lot B (15 @ day 2, 0.60).
func newFlourWorkshop(t *testing.T) (*ledger.Workshop, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	w := ledger.NewWorkshop(mem)
	ctx := context.Background()

	_, err := w.ReceiveLot(ctx, ledger.LotReceipt{Item: "flour", ReceivedAt: day(1), Quantity: dec("10"), UnitCost: dec("0.50"), Note: "A"})
	require.NoError(t, err)
	_, err = w.ReceiveLot(ctx, ledger.LotReceipt{Item: "flour", ReceivedAt: day(2), Quantity: dec("15"), UnitCost: dec("0.60"), Note: "B"})
	require.NoError(t, err)
	return w, mem
}

// =============================================================================
// PLAN FIFO
// =============================================================================

func TestPlanFIFO_ExactSplit(t *testing.T) {
	// GIVEN: lot A (10, day 1) and lot B (15, day 2)
	// WHEN: planning a draw of 12
	// THEN: all of A and 2 of B are taken, no shortfall

	lots := []ledger.InventoryLot{
		lot("B", "flour", day(2), 2, "15", "0.60"),
		lot("A", "flour", day(1), 1, "10", "0.50"),
	}

	plan := ledger.PlanFIFO("flour", lots, dec("12"))

	require.Len(t, plan.Takings, 2)
	assert.Equal(t, ledger.LotID("A"), plan.Takings[0].LotID)
	assertDec(t, "10", plan.Takings[0].Quantity)
	assert.Equal(t, ledger.LotID("B"), plan.Takings[1].LotID)
	assertDec(t, "2", plan.Takings[1].Quantity)
	assertDec(t, "12", plan.Consumed)
	assert.True(t, plan.Satisfied())
	assertDec(t, "6.2", plan.Cost())
}

func TestPlanFIFO_Shortfall(t *testing.T) {
	lots := []ledger.InventoryLot{
		lot("A", "flour", day(1), 1, "10", "0.50"),
		lot("B", "flour", day(2), 2, "15", "0.60"),
	}

	plan := ledger.PlanFIFO("flour", lots, dec("30"))

	assertDec(t, "25", plan.Consumed)
	assertDec(t, "5", plan.Shortfall)
	assert.False(t, plan.Satisfied())
	// preview never touches the input
	assertDec(t, "10", lots[0].Remaining)
	assertDec(t, "15", lots[1].Remaining)
}

func TestPlanFIFO_TiesBrokenByInsertionOrder(t *testing.T) {
	// GIVEN: two lots received at the same instant
	// THEN: the one inserted first is drawn first

	lots := []ledger.InventoryLot{
		lot("second", "sugar", day(1), 7, "5", "2"),
		lot("first", "sugar", day(1), 3, "5", "1"),
	}

	plan := ledger.PlanFIFO("sugar", lots, dec("6"))

	require.Len(t, plan.Takings, 2)
	assert.Equal(t, ledger.LotID("first"), plan.Takings[0].LotID)
	assertDec(t, "5", plan.Takings[0].Quantity)
	assert.Equal(t, ledger.LotID("second"), plan.Takings[1].LotID)
	assertDec(t, "1", plan.Takings[1].Quantity)
}

func TestPlanFIFO_SkipsDepletedAndOtherItems(t *testing.T) {
	depleted := lot("old", "butter", day(1), 1, "4", "3")
	depleted.Remaining = decimal.Zero
	lots := []ledger.InventoryLot{
		depleted,
		lot("eggs", "eggs", day(1), 2, "12", "0.25"),
		lot("new", "butter", day(3), 3, "4", "3.5"),
	}

	plan := ledger.PlanFIFO("butter", lots, dec("1.5"))

	require.Len(t, plan.Takings, 1)
	assert.Equal(t, ledger.LotID("new"), plan.Takings[0].LotID)
	assertDec(t, "3.5", plan.Takings[0].UnitCost)
}

func TestPlanFIFO_ZeroRequest(t *testing.T) {
	plan := ledger.PlanFIFO("flour", []ledger.InventoryLot{lot("A", "flour", day(1), 1, "10", "1")}, decimal.Zero)

	assert.Empty(t, plan.Takings)
	assert.True(t, plan.Satisfied())
}

func TestPlanFIFO_ConservationAndOrdering(t *testing.T) {
	// GIVEN: random lots with distinct receipt days and fractional quantities
	// WHEN: drawing any quantity up to the total
	// THEN: takings sum exactly to the draw and never skip an older open lot

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(8)
		var lots []ledger.InventoryLot
		total := decimal.Zero
		for i := 0; i < n; i++ {
			qty := decimal.New(int64(1+rng.Intn(5000)), -3) // up to 5.000
			l := lot(fmt.Sprintf("L%d", i), "cocoa", day(1+rng.Intn(60)).Add(time.Duration(i)*time.Minute), int64(i+1), "0", "1.25")
			l.Quantity, l.Remaining = qty, qty
			lots = append(lots, l)
			total = total.Add(qty)
		}
		request := total.Mul(decimal.New(int64(rng.Intn(1001)), -3)).Round(3)

		plan := ledger.PlanFIFO("cocoa", lots, request)

		require.True(t, plan.Satisfied(), "round %d", round)
		sum := decimal.Zero
		for _, tk := range plan.Takings {
			sum = sum.Add(tk.Quantity)
		}
		require.True(t, sum.Equal(request), "round %d: takings %s != request %s", round, sum, request)

		ordered := append([]ledger.InventoryLot(nil), lots...)
		ledger.SortFIFO(ordered)
		for i, tk := range plan.Takings {
			require.Equal(t, ordered[i].ID, tk.LotID, "round %d: taking %d out of order", round, i)
			if i < len(plan.Takings)-1 {
				require.True(t, tk.Quantity.Equal(ordered[i].Remaining), "round %d: lot %s not exhausted before a newer one", round, tk.LotID)
			}
		}
	}
}

// =============================================================================
// LOT LEDGER
// =============================================================================

func TestLotLedger_AvailableAndNextCost(t *testing.T) {
	ctx := context.Background()
	w, mem := newFlourWorkshop(t)
	l := ledger.NewLotLedger(mem)

	available, err := w.Available(ctx, "flour")
	require.NoError(t, err)
	assertDec(t, "25", available)

	cost, ok, err := l.NextCost(ctx, "flour")
	require.NoError(t, err)
	assert.True(t, ok)
	assertDec(t, "0.50", cost)

	_, ok, err = l.NextCost(ctx, "saffron")
	require.NoError(t, err)
	assert.False(t, ok, "never-received items have no price")
}

func TestLotLedger_ConsumeFIFOIsPreviewOnly(t *testing.T) {
	ctx := context.Background()
	_, mem := newFlourWorkshop(t)
	l := ledger.NewLotLedger(mem)

	plan, err := l.ConsumeFIFO(ctx, "flour", dec("30"))
	require.NoError(t, err)
	assertDec(t, "5", plan.Shortfall)

	available, err := l.Available(ctx, "flour")
	require.NoError(t, err)
	assertDec(t, "25", available)
}

func TestLotLedger_NextCostFallsBackToLatestLot(t *testing.T) {
	// GIVEN: every flour lot depleted
	// THEN: the newest lot's cost is still used as the estimate

	ctx := context.Background()
	mem := store.NewTxMemory()
	a, err := mem.AppendLot(ctx, lot("A", "flour", day(1), 0, "10", "0.50"))
	require.NoError(t, err)
	b, err := mem.AppendLot(ctx, lot("B", "flour", day(2), 0, "15", "0.60"))
	require.NoError(t, err)
	_, err = mem.DepleteLot(ctx, a.ID, dec("10"))
	require.NoError(t, err)
	_, err = mem.DepleteLot(ctx, b.ID, dec("15"))
	require.NoError(t, err)

	cost, ok, err := ledger.NewLotLedger(mem).NextCost(ctx, "flour")
	require.NoError(t, err)
	assert.True(t, ok)
	assertDec(t, "0.60", cost)

	lots, err := ledger.NewLotLedger(mem).List(ctx, "flour", true)
	require.NoError(t, err)
	assert.Len(t, lots, 2, "depleted lots stay in history")
	open, err := ledger.NewLotLedger(mem).List(ctx, "flour", false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReceiveLot_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	w := ledger.NewWorkshop(store.NewTxMemory())

	_, err := w.ReceiveLot(ctx, ledger.LotReceipt{Item: "flour", Quantity: dec("0"), UnitCost: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = w.ReceiveLot(ctx, ledger.LotReceipt{Item: "flour", Quantity: dec("1"), UnitCost: dec("-1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = w.ReceiveLot(ctx, ledger.LotReceipt{Quantity: dec("1"), UnitCost: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}
