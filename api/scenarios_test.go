package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentonium3/bake-tracker-sub018/api"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

func TestScenarios_AllLoad(t *testing.T) {
	// GIVEN: every listed scenario
	// THEN: each loads cleanly and becomes the current scenario

	srv, h := newTestServer(t)
	ctx := context.Background()

	status, body := do(t, srv, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]api.ScenarioDTO](t, body)
	require.NotEmpty(t, list)

	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			require.NoError(t, h.LoadScenarioByID(ctx, s.ID))

			status, body := do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, s.ID, decode[api.ScenarioDTO](t, body).ID)

			comps, err := h.Workshop.Compositions(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, comps)
		})
	}
}

func TestScenario_GiftBoxesHistory(t *testing.T) {
	_, h := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "gift-boxes"))

	actions, err := h.Workshop.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	statuses := map[ledger.ActionStatus]int{}
	for _, a := range actions {
		statuses[a.Status]++
	}
	assert.Equal(t, 1, statuses[ledger.StatusComplete])
	assert.Equal(t, 1, statuses[ledger.StatusPartialLoss])

	// 6 + 6 flour drawn oldest first: the 10-unit lot is empty, 2 taken from the next
	flour, err := h.Workshop.Lots(ctx, "flour", true)
	require.NoError(t, err)
	require.Len(t, flour, 2)
	assert.True(t, flour[0].Remaining.IsZero())
	assert.Equal(t, "13", flour[1].Remaining.String())
}

func TestScenarios_ResetClearsEverything(t *testing.T) {
	srv, h := newTestServer(t)
	loadScenario(t, srv, "shortfall")

	status, _ := do(t, srv, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, status)

	comps, err := h.Workshop.Compositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, comps)

	status, _ = do(t, srv, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
}
