package export_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kentonium3/bake-tracker-sub018/export"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/ledger/store"
)

func d(s string) decimal.Decimal { return ledger.MustParseDecimal(s) }

var exportedAt = time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)

// bakedOnce returns a store holding one committed production with a burnt
// loss: 12 flour drawn across two lots, 2 loaves requested, 1 burnt.
func bakedOnce(t *testing.T) *store.TxMemory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewTxMemory()
	w := ledger.NewWorkshop(mem)
	w.Engine().Clock = func() time.Time { return exportedAt.Add(-time.Hour) }

	for _, r := range []ledger.LotReceipt{
		{Item: "flour", ReceivedAt: exportedAt.AddDate(0, 0, -3), Quantity: d("10"), UnitCost: d("0.50")},
		{Item: "flour", ReceivedAt: exportedAt.AddDate(0, 0, -2), Quantity: d("15"), UnitCost: d("0.60")},
	} {
		_, err := w.ReceiveLot(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, w.SaveComposition(ctx, ledger.Composition{
		Key: "loaf", Kind: ledger.KindRecipe, YieldPerUnit: d("2"),
		Components: []ledger.Component{ledger.RawItem{Item: "flour", Quantity: d("12")}},
	}))
	spec, err := w.Resolve(ctx, "loaf", d("1"))
	require.NoError(t, err)
	_, err = w.Commit(ctx, ledger.CommitRequest{
		Kind: ledger.ActionProduction, Composition: "loaf", Output: "loaf",
		RequestedQuantity: d("1"), RequestedYield: d("2"), ActualYield: d("1"), Spec: spec,
		Losses: []ledger.LossInput{{Category: ledger.LossBurnt, Quantity: d("1")}},
	})
	require.NoError(t, err)
	return mem
}

func TestExport_JSONUsesDecimalStrings(t *testing.T) {
	ctx := context.Background()
	mem := bakedOnce(t)

	doc, err := export.Build(ctx, mem, exportedAt)
	require.NoError(t, err)
	require.Len(t, doc.ConsumptionRecords, 2)
	require.Len(t, doc.LossRecords, 1)

	var buf bytes.Buffer
	require.NoError(t, export.WriteJSON(&buf, doc))
	out := buf.String()
	assert.Contains(t, out, `"quantity": "10"`)
	assert.Contains(t, out, `"cost_per_unit": "0.5"`)
	assert.Contains(t, out, `"cost_per_unit": "3.1"`)
	assert.Contains(t, out, `"category": "burnt"`)
}

func TestExport_RoundTripThroughImport(t *testing.T) {
	// GIVEN: a backup of one store
	// WHEN: it is imported into an empty store, then imported again
	// THEN: every record arrives unchanged the first time and is skipped
	//       the second time

	ctx := context.Background()
	src := bakedOnce(t)
	doc, err := export.Build(ctx, src, exportedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.WriteJSON(&buf, doc))
	read, err := export.ReadJSON(&buf)
	require.NoError(t, err)

	dst := store.NewTxMemory()
	result, err := export.Import(ctx, dst, read)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Consumptions)
	assert.Equal(t, 1, result.Losses)
	assert.Zero(t, result.Skipped)

	want, err := src.ConsumptionRecords(ctx)
	require.NoError(t, err)
	got, err := dst.ConsumptionRecords(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].ActionID, got[i].ActionID)
		assert.True(t, want[i].Quantity.Equal(got[i].Quantity))
		assert.True(t, want[i].UnitCost.Equal(got[i].UnitCost))
		assert.True(t, want[i].ConsumedAt.Equal(got[i].ConsumedAt))
	}

	again, err := export.Import(ctx, dst, read)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Skipped)
	assert.Zero(t, again.Consumptions)
}

func TestExport_OlderLossRecordsGetDefaults(t *testing.T) {
	doc, err := export.ReadJSON(strings.NewReader(`{
	  "version": 1,
	  "exported_at": "2024-01-01T00:00:00Z",
	  "consumption_records": [],
	  "loss_records": [
	    {"id": "old-1", "action_id": "a-1", "cost_per_unit": "0.25", "recorded_at": "2024-01-01T00:00:00Z"}
	  ]
	}`))
	require.NoError(t, err)

	_, losses, err := doc.Records()
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.Equal(t, ledger.LossNone, losses[0].Category)
	assert.True(t, losses[0].Quantity.IsZero())
	assert.Equal(t, "0.25", losses[0].CostPerUnit.String())
}

func TestExport_ImportKeepsExactValues(t *testing.T) {
	// GIVEN: a backup written by hand with trailing zeros and long fractions
	// WHEN: it is imported and exported again
	// THEN: every value is equal to the original; the text is canonical

	ctx := context.Background()
	doc, err := export.ReadJSON(strings.NewReader(`{
	  "version": 1,
	  "exported_at": "2024-01-01T00:00:00Z",
	  "consumption_records": [
	    {"id": "c-1", "action_id": "a-1", "lot_id": "l-1", "item": "butter",
	     "quantity": "1.50", "cost_per_unit": "7.3333333333", "consumed_at": "2024-01-01T00:00:00Z"}
	  ],
	  "loss_records": []
	}`))
	require.NoError(t, err)

	dst := store.NewTxMemory()
	_, err = export.Import(ctx, dst, doc)
	require.NoError(t, err)
	again, err := export.Build(ctx, dst, exportedAt)
	require.NoError(t, err)

	require.Len(t, again.ConsumptionRecords, 1)
	c := again.ConsumptionRecords[0]
	assert.True(t, d(c.Quantity).Equal(d("1.50")))
	assert.Equal(t, "1.5", c.Quantity)
	assert.Equal(t, "7.3333333333", c.CostPerUnit)
}

func TestExport_RejectsBadDocuments(t *testing.T) {
	_, err := export.ReadJSON(strings.NewReader(`{"version": 99}`))
	assert.Error(t, err)

	doc := &export.Document{Version: 1, ConsumptionRecords: []export.ConsumptionJSON{
		{ID: "c", Quantity: "1.2.3", CostPerUnit: "1"},
	}}
	_, _, err = doc.Records()
	assert.Error(t, err)

	doc = &export.Document{Version: 1, LossRecords: []export.LossJSON{
		{ID: "l", Category: "eaten", CostPerUnit: "1"},
	}}
	_, err = export.Import(context.Background(), store.NewTxMemory(), doc)
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	ctx := context.Background()
	doc, err := export.Build(ctx, bakedOnce(t), exportedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, doc))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{export.ConsumptionSheet, export.LossSheet}, f.GetSheetList())

	rows, err := f.GetRows(export.ConsumptionSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Item", rows[0][3])
	assert.Equal(t, "flour", rows[1][3])
	assert.Equal(t, "10", rows[1][4])
	assert.Equal(t, "5", rows[1][6])

	rows, err = f.GetRows(export.LossSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "burnt", rows[1][2])
	assert.Equal(t, "3.1", rows[1][5])
}
