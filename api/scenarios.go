/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a small
	bakery: ingredients and packaging in stock, recipes, nested gift boxes
	and, for some scenarios, a production history.

AVAILABLE SCENARIOS:

	bakery-basics: Flour, sugar and butter lots across two receipts; one
	               cookie dough recipe. Nothing committed yet.
	gift-boxes:    Cookie bags nested in gift boxes, with two cookie batches
	               already baked (one with burnt cookies).
	shortfall:     Gift boxes with too few cookies and boxes on hand, to
	               show a rejected commit and its shortfall report.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Load the scenario's catalog via the factory (one transaction)
 3. Optionally commit production runs to build history

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "gift-boxes"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: the rest of the API
  - factory/catalog.go: catalog JSON format
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/production"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "bakery-basics",
		Name:        "Bakery Basics",
		Description: "Ingredients received in two lots and one cookie recipe",
	},
	{
		ID:          "gift-boxes",
		Name:        "Gift Boxes",
		Description: "Nested gift box assemblies with a baked cookie history",
	},
	{
		ID:          "shortfall",
		Name:        "Shortfall",
		Description: "Not enough cookies or boxes for the holiday order",
	},
}

const pantryLots = `
    {"item": "flour", "quantity": "10", "unit_cost": "0.50", "received_at": "2025-11-01T08:00:00Z", "note": "mill delivery"},
    {"item": "flour", "quantity": "15", "unit_cost": "0.60", "received_at": "2025-11-08T08:00:00Z", "note": "mill delivery"},
    {"item": "sugar", "quantity": "8", "unit_cost": "1.00", "received_at": "2025-11-01T08:00:00Z"},
    {"item": "butter", "quantity": "4", "unit_cost": "3.20", "received_at": "2025-11-02T08:00:00Z"}`

const cookieRecipe = `
    {
      "key": "sugar-cookie-dough", "name": "Sugar cookie dough", "kind": "recipe",
      "output": "sugar-cookie", "yield_per_unit": "24",
      "components": [
        {"type": "raw_item", "key": "flour", "quantity": "6"},
        {"type": "raw_item", "key": "sugar", "quantity": "2"},
        {"type": "raw_item", "key": "butter", "quantity": "1"}
      ]
    }`

const giftBoxes = `
    {
      "key": "cookie-bag", "name": "Bag of six cookies", "kind": "assembly",
      "components": [
        {"type": "raw_item", "key": "sugar-cookie", "quantity": "6"},
        {"type": "material", "key": "cello-bag", "quantity": "1"},
        {"type": "material", "key": "ribbon", "quantity": "0.5"}
      ]
    },
    {
      "key": "gift-box", "name": "Holiday gift box", "kind": "assembly",
      "components": [
        {"type": "assembly", "key": "cookie-bag", "quantity": "2"},
        {"type": "raw_item", "key": "fudge", "quantity": "1"},
        {"type": "material", "key": "gift-box-carton", "quantity": "1"}
      ]
    }`

var scenarioCatalogs = map[string]string{
	"bakery-basics": `{"compositions": [` + cookieRecipe + `], "lots": [` + pantryLots + `]}`,

	"gift-boxes": `{"compositions": [` + cookieRecipe + `,` + giftBoxes + `], "lots": [` + pantryLots + `,
    {"item": "fudge", "quantity": "12", "unit_cost": "1.50", "received_at": "2025-11-10T08:00:00Z"},
    {"item": "cello-bag", "quantity": "50", "unit_cost": "0.10", "received_at": "2025-11-01T08:00:00Z"},
    {"item": "ribbon", "quantity": "20", "unit_cost": "0.30", "received_at": "2025-11-01T08:00:00Z"},
    {"item": "gift-box-carton", "quantity": "10", "unit_cost": "1.20", "received_at": "2025-11-01T08:00:00Z"}]}`,

	"shortfall": `{"compositions": [` + giftBoxes + `], "lots": [
    {"item": "sugar-cookie", "quantity": "18", "unit_cost": "0.25", "received_at": "2025-12-01T08:00:00Z"},
    {"item": "fudge", "quantity": "12", "unit_cost": "1.50", "received_at": "2025-11-10T08:00:00Z"},
    {"item": "cello-bag", "quantity": "50", "unit_cost": "0.10", "received_at": "2025-11-01T08:00:00Z"},
    {"item": "ribbon", "quantity": "20", "unit_cost": "0.30", "received_at": "2025-11-01T08:00:00Z"},
    {"item": "gift-box-carton", "quantity": "1", "unit_cost": "1.20", "received_at": "2025-11-01T08:00:00Z"}]}`,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := scenarioCatalogs[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// LoadScenarioByID resets the store and loads the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	raw, ok := scenarioCatalogs[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}
	catalog, err := h.Catalogs.ParseCatalog([]byte(raw))
	if err != nil {
		return err
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := catalog.Load(ctx, h.Workshop); err != nil {
		return err
	}
	if id == "gift-boxes" {
		if err := h.bakeCookieHistory(ctx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.Log.Info().Str("scenario", id).Msg("scenario loaded")
	return nil
}

// bakeCookieHistory commits two batches of cookies: one clean, one with
// four burnt.
func (h *Handler) bakeCookieHistory(ctx context.Context) error {
	one := decimal.NewFromInt(1)
	if _, err := h.Production.CommitProduction(ctx, production.Request{
		RecipeKey: "sugar-cookie-dough", BatchCount: one, Note: "morning bake",
	}); err != nil {
		return err
	}

	twenty := decimal.NewFromInt(20)
	_, err := h.Production.CommitProduction(ctx, production.Request{
		RecipeKey: "sugar-cookie-dough", BatchCount: one, ActualYield: &twenty,
		Losses: []ledger.LossInput{{Category: ledger.LossBurnt, Quantity: decimal.NewFromInt(4), Note: "oven ran hot"}},
		Note:   "afternoon bake",
	})
	return err
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Workshop.Store().(Resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}
