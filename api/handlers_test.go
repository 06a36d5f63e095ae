package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker-sub018/api"
	"github.com/kentonium3/bake-tracker-sub018/export"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/ledger/store"
	"github.com/kentonium3/bake-tracker-sub018/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *api.Handler) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := api.NewHandler(ledger.NewWorkshop(db), zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, h
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func loadScenario(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, status, string(body))
}

func TestAPI_ReceiveLotAndAvailability(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/lots", map[string]any{
		"item": "flour", "quantity": "12.5", "unit_cost": "0.48", "note": "mill",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	lot := decode[api.LotDTO](t, body)
	assert.Equal(t, "flour", lot.Item)
	assert.Equal(t, "12.5", lot.Remaining.String())

	status, body = do(t, srv, http.MethodGet, "/api/items/flour/available", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "12.5", decode[api.AvailableDTO](t, body).Available.String())

	status, body = do(t, srv, http.MethodPost, "/api/lots", map[string]any{
		"item": "flour", "quantity": "0", "unit_cost": "1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", decode[api.ErrorResponse](t, body).Code)
}

func TestAPI_AssemblyFromScenario(t *testing.T) {
	// GIVEN: the gift-boxes scenario with two cookie batches baked
	// WHEN: one gift box is assembled
	// THEN: the action draws from nested cookie bags and produces one box

	srv, _ := newTestServer(t)
	loadScenario(t, srv, "gift-boxes")

	status, body := do(t, srv, http.MethodGet, "/api/actions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]api.ActionDTO](t, body), 2)

	status, body = do(t, srv, http.MethodGet, "/api/items/sugar-cookie/available", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "44", decode[api.AvailableDTO](t, body).Available.String())

	status, body = do(t, srv, http.MethodPost, "/api/assembly", api.AssemblyRequest{
		AssemblyKey: "gift-box", UnitCount: ledger.MustParseDecimal("1"),
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	action := decode[api.ActionDTO](t, body)
	assert.Equal(t, "assembly", action.Kind)
	assert.Equal(t, "complete", action.Status)
	require.NotNil(t, action.OutputLot)
	assert.Equal(t, "gift-box", action.OutputLot.Item)

	status, body = do(t, srv, http.MethodGet, "/api/actions/"+action.ID+"/cost", nil)
	require.Equal(t, http.StatusOK, status)
	cost := decode[api.ActionCostDTO](t, body)
	assert.True(t, cost.TotalCost.Equal(action.TotalCost))

	status, body = do(t, srv, http.MethodGet, "/api/items/sugar-cookie/available", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "32", decode[api.AvailableDTO](t, body).Available.String())
}

func TestAPI_ShortfallIsConflictWithReport(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "shortfall")

	status, body := do(t, srv, http.MethodPost, "/api/feasibility", api.FeasibilityRequest{
		CompositionKey: "gift-box", Quantity: ledger.MustParseDecimal("2"),
	})
	require.Equal(t, http.StatusOK, status)
	report := decode[api.ShortfallReportDTO](t, body)
	assert.False(t, report.Feasible)

	status, body = do(t, srv, http.MethodPost, "/api/assembly", api.AssemblyRequest{
		AssemblyKey: "gift-box", UnitCount: ledger.MustParseDecimal("2"),
	})
	require.Equal(t, http.StatusConflict, status, string(body))

	var resp struct {
		Code    string                 `json:"code"`
		Details api.ShortfallReportDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "insufficient_resources", resp.Code)
	short := map[string]string{}
	for _, s := range resp.Details.Shortfalls {
		short[s.Item] = s.Shortfall.String()
	}
	assert.Equal(t, map[string]string{"sugar-cookie": "6", "gift-box-carton": "1"}, short)

	status, body = do(t, srv, http.MethodGet, "/api/items/sugar-cookie/available", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "18", decode[api.AvailableDTO](t, body).Available.String())
}

func TestAPI_CycleIsUnprocessable(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "gift-boxes")

	status, body := do(t, srv, http.MethodPut, "/api/compositions/cookie-bag", map[string]any{
		"kind": "assembly",
		"components": []map[string]any{
			{"type": "assembly", "key": "gift-box", "quantity": "1"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status, string(body))
	var resp struct {
		Code    string       `json:"code"`
		Details api.CycleDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "cycle", resp.Code)
	assert.Equal(t, []string{"cookie-bag", "gift-box", "cookie-bag"}, resp.Details.Path)

	status, _ = do(t, srv, http.MethodPost, "/api/compositions/validate", api.ValidateEditRequest{Parent: "cookie-bag", Child: "gift-box"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	status, _ = do(t, srv, http.MethodPost, "/api/compositions/validate", api.ValidateEditRequest{Parent: "gift-box", Child: "cookie-bag"})
	assert.Equal(t, http.StatusNoContent, status)

	// The rejected edit left the original definition in place
	status, body = do(t, srv, http.MethodGet, "/api/compositions/cookie-bag", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "cello-bag")
}

func TestAPI_ProductionInputErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "bakery-basics")

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"negative batches", map[string]any{"recipe_key": "sugar-cookie-dough", "batch_count": "-1"}, http.StatusBadRequest},
		{"unknown loss category", map[string]any{
			"recipe_key": "sugar-cookie-dough", "batch_count": "1", "actual_yield": "20",
			"losses": []map[string]any{{"category": "eaten", "quantity": "4"}},
		}, http.StatusBadRequest},
		{"losses exceed shortfall", map[string]any{
			"recipe_key": "sugar-cookie-dough", "batch_count": "1", "actual_yield": "22",
			"losses": []map[string]any{{"category": "burnt", "quantity": "4"}},
		}, http.StatusBadRequest},
		{"unknown recipe", map[string]any{"recipe_key": "scones", "batch_count": "1"}, http.StatusNotFound},
		{"malformed decimal", map[string]any{"recipe_key": "sugar-cookie-dough", "batch_count": "one"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, "/api/production", tt.body)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	status, body := do(t, srv, http.MethodGet, "/api/actions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]api.ActionDTO](t, body))
}

// collidingStore reports every consumption write inside a transaction as a
// duplicate id.
type collidingStore struct {
	*store.TxMemory
}

func (c collidingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return c.TxMemory.WithTx(ctx, func(tx ledger.Store) error {
		return fn(collidingView{Store: tx})
	})
}

type collidingView struct {
	ledger.Store
}

func (collidingView) AppendConsumption(_ context.Context, r ledger.ConsumptionRecord) error {
	return fmt.Errorf("consumption %s: %w", r.ID, ledger.ErrDuplicateID)
}

func TestAPI_CommitFailureIsServerError(t *testing.T) {
	// GIVEN: a store whose consumption writes collide mid-commit
	// WHEN: producing a batch
	// THEN: 500 commit_failed, even though the cause is a client-class sentinel,
	//       and the flour is untouched

	ctx := context.Background()
	mem := store.NewTxMemory()
	w := ledger.NewWorkshop(collidingStore{TxMemory: mem})
	_, err := w.ReceiveLot(ctx, ledger.LotReceipt{Item: "flour", Quantity: ledger.MustParseDecimal("10"), UnitCost: ledger.MustParseDecimal("0.5")})
	require.NoError(t, err)
	require.NoError(t, w.SaveComposition(ctx, ledger.Composition{
		Key: "loaf", Kind: ledger.KindRecipe,
		Components: []ledger.Component{ledger.RawItem{Item: "flour", Quantity: ledger.MustParseDecimal("2")}},
	}))
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(w, zerolog.Nop())))
	t.Cleanup(srv.Close)

	status, body := do(t, srv, http.MethodPost, "/api/production", map[string]any{"recipe_key": "loaf", "batch_count": "1"})

	assert.Equal(t, http.StatusInternalServerError, status, string(body))
	assert.Equal(t, "commit_failed", decode[api.ErrorResponse](t, body).Code)
	available, err := w.Available(ctx, "flour")
	require.NoError(t, err)
	assert.Equal(t, "10", available.String())
}

func TestAPI_CompositionCost(t *testing.T) {
	srv, _ := newTestServer(t)
	loadScenario(t, srv, "gift-boxes")

	status, body := do(t, srv, http.MethodGet, "/api/compositions/gift-box/cost?mode=estimate", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	b := decode[api.CostBreakdownDTO](t, body)
	assert.Equal(t, "estimate", b.Mode)
	assert.Len(t, b.Lines, 3)
	assert.Empty(t, b.Unpriced)
	assert.True(t, b.UnitCost.IsPositive())

	status, body = do(t, srv, http.MethodGet, "/api/compositions/gift-box/cost?mode=historical", nil)
	require.Equal(t, http.StatusOK, status)
	hist := decode[api.CostBreakdownDTO](t, body)
	assert.Contains(t, hist.Unpriced, "fudge", "fudge has never been consumed")

	status, _ = do(t, srv, http.MethodGet, "/api/compositions/gift-box/cost?mode=someday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = do(t, srv, http.MethodGet, "/api/compositions/nope/cost", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPI_ExportAndImport(t *testing.T) {
	// GIVEN: a baked history, exported
	// WHEN: the database is reset and the export imported
	// THEN: every record comes back

	srv, _ := newTestServer(t)
	loadScenario(t, srv, "gift-boxes")

	status, body := do(t, srv, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, status)
	doc := decode[export.Document](t, body)
	require.NotEmpty(t, doc.ConsumptionRecords)
	require.Len(t, doc.LossRecords, 1)
	assert.Equal(t, "burnt", doc.LossRecords[0].Category)

	status, _ = do(t, srv, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, srv, http.MethodPost, "/api/import", doc)
	require.Equal(t, http.StatusOK, status, string(body))
	result := decode[export.ImportResult](t, body)
	assert.Equal(t, len(doc.ConsumptionRecords), result.Consumptions)
	assert.Equal(t, 1, result.Losses)

	status, _ = do(t, srv, http.MethodPost, "/api/import", map[string]any{
		"version": 1, "loss_records": []map[string]any{{"id": "x", "category": "eaten"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := srv.Client().Get(srv.URL + "/api/export.xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
}

func TestAPI_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/api/actions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", decode[api.ErrorResponse](t, body).Code)

	status, _ = do(t, srv, http.MethodGet, "/api/compositions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
