package assembly_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker-sub018/assembly"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/ledger/store"
)

func d(s string) decimal.Decimal { return ledger.MustParseDecimal(s) }

func day(n int) time.Time {
	return time.Date(2025, time.May, n, 12, 0, 0, 0, time.UTC)
}

// newPackingTable stocks cookies, fudge and packaging and defines a cookie
// bag nested inside a gift box.
func newPackingTable(t *testing.T) (*assembly.Service, *ledger.Workshop) {
	t.Helper()
	ctx := context.Background()
	w := ledger.NewWorkshop(store.NewTxMemory())
	w.Engine().Clock = func() time.Time { return day(20) }

	for _, r := range []ledger.LotReceipt{
		{Item: "sugar-cookie", ReceivedAt: day(1), Quantity: d("24"), UnitCost: d("0.25")},
		{Item: "fudge", ReceivedAt: day(1), Quantity: d("10"), UnitCost: d("1.50")},
		{Item: "bag", ReceivedAt: day(1), Quantity: d("10"), UnitCost: d("0.20")},
		{Item: "box", ReceivedAt: day(1), Quantity: d("2"), UnitCost: d("1.00")},
	} {
		_, err := w.ReceiveLot(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, w.SaveComposition(ctx, ledger.Composition{
		Key: "cookie-bag", Kind: ledger.KindAssembly,
		Components: []ledger.Component{
			ledger.RawItem{Item: "sugar-cookie", Quantity: d("6")},
			ledger.Material{Item: "bag", Quantity: d("1")},
		},
	}))
	require.NoError(t, w.SaveComposition(ctx, ledger.Composition{
		Key: "gift-box", Kind: ledger.KindAssembly,
		Components: []ledger.Component{
			ledger.Assembly{Composition: "cookie-bag", Quantity: d("2")},
			ledger.RawItem{Item: "fudge", Quantity: d("1")},
			ledger.Material{Item: "box", Quantity: d("1")},
		},
	}))
	return assembly.NewService(w), w
}

func TestCommitAssembly_NestedDrawsEverything(t *testing.T) {
	// GIVEN: a gift box holding two cookie bags
	// WHEN: one box is assembled
	// THEN: 12 cookies, 2 bags, 1 fudge and 1 box are drawn in one action

	ctx := context.Background()
	svc, w := newPackingTable(t)

	receipt, err := svc.CommitAssembly(ctx, assembly.Request{AssemblyKey: "gift-box", UnitCount: d("1")})
	require.NoError(t, err)

	a := receipt.Action
	assert.Equal(t, ledger.ActionAssembly, a.Kind)
	assert.Equal(t, ledger.StatusComplete, a.Status)
	// 12 x 0.25 + 2 x 0.20 + 1.50 + 1.00
	assert.True(t, a.TotalCost.Equal(d("5.9")), "got %s", a.TotalCost)
	assert.Len(t, a.Consumptions, 4)

	for item, want := range map[ledger.ItemKey]string{
		"sugar-cookie": "12", "bag": "8", "fudge": "9", "box": "1", "gift-box": "1",
	} {
		got, err := w.Available(ctx, item)
		require.NoError(t, err)
		assert.True(t, got.Equal(d(want)), "%s: got %s want %s", item, got, want)
	}
}

func TestCommitAssembly_BrokenUnitsReduceYield(t *testing.T) {
	ctx := context.Background()
	svc, w := newPackingTable(t)

	receipt, err := svc.CommitAssembly(ctx, assembly.Request{
		AssemblyKey: "cookie-bag", UnitCount: d("3"),
		Losses: []ledger.LossInput{{Category: ledger.LossBroken, Quantity: d("1"), Note: "crushed"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPartialLoss, receipt.Action.Status)
	assert.True(t, receipt.Action.ActualYield.Equal(d("2")))
	// 18 x 0.25 + 3 x 0.20 spread over 3 requested bags
	assert.True(t, receipt.Action.UnitCost.Equal(d("1.7")), "got %s", receipt.Action.UnitCost)

	bags, err := w.Available(ctx, "cookie-bag")
	require.NoError(t, err)
	assert.True(t, bags.Equal(d("2")))
}

func TestCommitAssembly_ShortfallListsEveryItem(t *testing.T) {
	ctx := context.Background()
	svc, w := newPackingTable(t)

	_, err := svc.CommitAssembly(ctx, assembly.Request{AssemblyKey: "gift-box", UnitCount: d("3")})
	var short *ledger.InsufficientResourceError
	require.ErrorAs(t, err, &short)

	items := map[ledger.ItemKey]string{}
	for _, s := range short.Report.Shortfalls {
		items[s.Item] = s.Shortfall.String()
	}
	assert.Equal(t, map[ledger.ItemKey]string{"sugar-cookie": "12", "box": "1"}, items)

	cookies, err := w.Available(ctx, "sugar-cookie")
	require.NoError(t, err)
	assert.True(t, cookies.Equal(d("24")))
}

func TestCommitAssembly_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, w := newPackingTable(t)
	require.NoError(t, w.SaveComposition(ctx, ledger.Composition{
		Key: "dough", Kind: ledger.KindRecipe, YieldPerUnit: d("12"),
		Components: []ledger.Component{ledger.RawItem{Item: "flour", Quantity: d("1")}},
	}))

	_, err := svc.CommitAssembly(ctx, assembly.Request{AssemblyKey: "gift-box", UnitCount: d("-2")})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = svc.CommitAssembly(ctx, assembly.Request{AssemblyKey: "dough", UnitCount: d("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidComposition)

	_, err = svc.CommitAssembly(ctx, assembly.Request{
		AssemblyKey: "cookie-bag", UnitCount: d("1"),
		Losses: []ledger.LossInput{{Category: ledger.LossDropped, Quantity: d("2")}},
	})
	assert.ErrorIs(t, err, ledger.ErrLossMismatch)
}
