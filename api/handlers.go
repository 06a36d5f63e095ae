/*
handlers.go - HTTP API handlers for the bakery ledger

PURPOSE:
  Exposes the ledger's external operations via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the workshop and
  the production and assembly services.

ENDPOINTS:
  Lots:
    POST   /api/lots                         Receive a lot
    GET    /api/items/{key}/lots             Lots of an item (?include_depleted=true)
    GET    /api/items/{key}/available        Available quantity

  Compositions:
    GET    /api/compositions                 List compositions
    PUT    /api/compositions/{key}           Create or replace (cycle-checked)
    GET    /api/compositions/{key}           Get one
    GET    /api/compositions/{key}/cost      Cost breakdown (?mode=estimate|historical)
    POST   /api/compositions/validate        Would parent -> child create a cycle?

  Actions:
    POST   /api/feasibility                  Shortfall report, nothing written
    POST   /api/production                   Commit recipe batches
    POST   /api/assembly                     Commit assembled units
    GET    /api/actions                      Action history
    GET    /api/actions/{id}                 One action with its records
    GET    /api/actions/{id}/cost            Frozen cost of an action

  Backup:
    GET    /api/export                       JSON backup of consumption and loss records
    GET    /api/export.xlsx                  The same as a workbook
    POST   /api/import                       Restore records from a JSON backup

ERROR HANDLING:
  Errors are returned as ErrorResponse with a machine-readable code:
  - 400 invalid_input:           bad quantities, losses, categories, bodies
  - 404 not_found:               unknown composition, action or lot
  - 409 insufficient_resources:  details carry the full shortfall report
  - 422 cycle:                   details carry the offending path
  - 500 commit_failed / internal

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kentonium3/bake-tracker-sub018/assembly"
	"github.com/kentonium3/bake-tracker-sub018/export"
	"github.com/kentonium3/bake-tracker-sub018/factory"
	"github.com/kentonium3/bake-tracker-sub018/ledger"
	"github.com/kentonium3/bake-tracker-sub018/production"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can be wiped for demo scenarios.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Workshop   *ledger.Workshop
	Production *production.Service
	Assembly   *assembly.Service
	Catalogs   *factory.CatalogFactory
	Clock      func() time.Time
	Log        zerolog.Logger

	mu              sync.RWMutex
	currentScenario string
}

func NewHandler(w *ledger.Workshop, log zerolog.Logger) *Handler {
	return &Handler{
		Workshop:   w,
		Production: production.NewService(w),
		Assembly:   assembly.NewService(w),
		Catalogs:   factory.NewCatalogFactory(),
		Clock:      time.Now,
		Log:        log,
	}
}

// =============================================================================
// LOT HANDLERS
// =============================================================================

func (h *Handler) ReceiveLot(w http.ResponseWriter, r *http.Request) {
	var req ReceiveLotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	receipt := ledger.LotReceipt{
		Item:     ledger.ItemKey(req.Item),
		Quantity: req.Quantity,
		UnitCost: req.UnitCost,
		Note:     req.Note,
	}
	if req.ReceivedAt != nil {
		receipt.ReceivedAt = *req.ReceivedAt
	}

	lot, err := h.Workshop.ReceiveLot(r.Context(), receipt)
	if err != nil {
		h.writeLedgerError(w, "Failed to receive lot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotDTO(lot))
}

func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	item := ledger.ItemKey(chi.URLParam(r, "key"))
	includeDepleted, _ := strconv.ParseBool(r.URL.Query().Get("include_depleted"))

	lots, err := h.Workshop.Lots(r.Context(), item, includeDepleted)
	if err != nil {
		h.writeLedgerError(w, "Failed to list lots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "key")
	qty, err := h.Workshop.Available(r.Context(), ledger.ItemKey(item))
	if err != nil {
		h.writeLedgerError(w, "Failed to read availability", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailableDTO{Item: item, Available: qty})
}

// =============================================================================
// COMPOSITION HANDLERS
// =============================================================================

func (h *Handler) ListCompositions(w http.ResponseWriter, r *http.Request) {
	comps, err := h.Workshop.Compositions(r.Context())
	if err != nil {
		h.writeLedgerError(w, "Failed to list compositions", err)
		return
	}
	dtos := make([]factory.CompositionJSON, len(comps))
	for i, c := range comps {
		dtos[i] = h.Catalogs.CompositionToJSON(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetComposition(w http.ResponseWriter, r *http.Request) {
	c, err := h.Workshop.Composition(r.Context(), ledger.ItemKey(chi.URLParam(r, "key")))
	if err != nil {
		h.writeLedgerError(w, "Failed to get composition", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Catalogs.CompositionToJSON(*c))
}

// SaveComposition creates or replaces the composition at {key}. The key in
// the URL wins over any key in the body.
func (h *Handler) SaveComposition(w http.ResponseWriter, r *http.Request) {
	var body factory.CompositionJSON
	if !decodeBody(w, r, &body) {
		return
	}
	body.Key = chi.URLParam(r, "key")

	c, err := h.Catalogs.CompositionFromJSON(body)
	if err != nil {
		h.writeLedgerError(w, "Invalid composition", err)
		return
	}
	if err := h.Workshop.SaveComposition(r.Context(), c); err != nil {
		h.writeLedgerError(w, "Failed to save composition", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Catalogs.CompositionToJSON(c))
}

func (h *Handler) ValidateCompositionEdit(w http.ResponseWriter, r *http.Request) {
	var req ValidateEditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Parent == "" || req.Child == "" {
		writeError(w, http.StatusBadRequest, "parent and child are required", nil)
		return
	}
	if err := h.Workshop.ValidateCompositionEdit(r.Context(), ledger.ItemKey(req.Parent), ledger.ItemKey(req.Child)); err != nil {
		h.writeLedgerError(w, "Edit rejected", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetCompositionCost(w http.ResponseWriter, r *http.Request) {
	mode, err := ledger.ParseCostMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid cost mode", err.Error())
		return
	}
	b, err := h.Workshop.ResolveCost(r.Context(), ledger.ItemKey(chi.URLParam(r, "key")), mode)
	if err != nil {
		h.writeLedgerError(w, "Failed to resolve cost", err)
		return
	}
	writeJSON(w, http.StatusOK, toCostBreakdownDTO(b))
}

// =============================================================================
// ACTION HANDLERS
// =============================================================================

func (h *Handler) CheckFeasibility(w http.ResponseWriter, r *http.Request) {
	var req FeasibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := h.Workshop.CheckComposition(r.Context(), ledger.ItemKey(req.CompositionKey), req.Quantity)
	if err != nil {
		h.writeLedgerError(w, "Failed to check feasibility", err)
		return
	}
	writeJSON(w, http.StatusOK, toShortfallReportDTO(report))
}

func (h *Handler) CommitProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	losses, err := toLossInputs(req.Losses)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid loss", err.Error())
		return
	}

	receipt, err := h.Production.CommitProduction(r.Context(), production.Request{
		RecipeKey:   ledger.ItemKey(req.RecipeKey),
		BatchCount:  req.BatchCount,
		ActualYield: req.ActualYield,
		Losses:      losses,
		Note:        req.Note,
	})
	if err != nil {
		h.writeLedgerError(w, "Production rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

func (h *Handler) CommitAssembly(w http.ResponseWriter, r *http.Request) {
	var req AssemblyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	losses, err := toLossInputs(req.Losses)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid loss", err.Error())
		return
	}

	receipt, err := h.Assembly.CommitAssembly(r.Context(), assembly.Request{
		AssemblyKey: ledger.ItemKey(req.AssemblyKey),
		UnitCount:   req.UnitCount,
		Losses:      losses,
		Note:        req.Note,
	})
	if err != nil {
		h.writeLedgerError(w, "Assembly rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Workshop.Actions(r.Context())
	if err != nil {
		h.writeLedgerError(w, "Failed to list actions", err)
		return
	}
	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = toActionDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	a, err := h.Workshop.Action(r.Context(), ledger.ActionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, "Failed to get action", err)
		return
	}
	writeJSON(w, http.StatusOK, toActionDTO(*a))
}

func (h *Handler) GetActionCost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cost, err := h.Workshop.GetCost(r.Context(), ledger.ActionID(id))
	if err != nil {
		h.writeLedgerError(w, "Failed to get action cost", err)
		return
	}
	writeJSON(w, http.StatusOK, ActionCostDTO{ActionID: id, TotalCost: cost})
}

// =============================================================================
// BACKUP HANDLERS
// =============================================================================

func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := export.Build(r.Context(), h.Workshop.Store(), h.Clock())
	if err != nil {
		h.writeLedgerError(w, "Failed to build export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=bake-ledger.json")
	if err := export.WriteJSON(w, doc); err != nil {
		h.Log.Error().Err(err).Msg("writing export failed")
	}
}

func (h *Handler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	doc, err := export.Build(r.Context(), h.Workshop.Store(), h.Clock())
	if err != nil {
		h.writeLedgerError(w, "Failed to build export", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=bake-ledger.xlsx")
	if err := export.WriteWorkbook(w, doc); err != nil {
		h.Log.Error().Err(err).Msg("writing workbook failed")
	}
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	doc, err := export.ReadJSON(r.Body)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid export document", err.Error())
		return
	}
	if _, _, err := doc.Records(); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid export document", err.Error())
		return
	}
	result, err := export.Import(r.Context(), h.Workshop.Store(), doc)
	if err != nil {
		h.writeLedgerError(w, "Import failed", err)
		return
	}
	h.Log.Info().
		Int("consumptions", result.Consumptions).
		Int("losses", result.Losses).
		Int("skipped", result.Skipped).
		Msg("records imported")
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", "Invalid request body", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeLedgerError maps ledger errors to status codes.
func (h *Handler) writeLedgerError(w http.ResponseWriter, message string, err error) {
	var (
		short   *ledger.InsufficientResourceError
		cycle   *ledger.CycleError
		failure *ledger.CommitFailure
	)
	switch {
	case errors.As(err, &short):
		writeErrorCode(w, http.StatusConflict, "insufficient_resources", message, toShortfallReportDTO(short.Report))
	case errors.As(err, &cycle):
		writeErrorCode(w, http.StatusUnprocessableEntity, "cycle", message, CycleDTO{
			Parent: string(cycle.Parent),
			Child:  string(cycle.Child),
			Path:   keyStrings(cycle.Path),
		})
	case errors.As(err, &failure):
		// Checked first: the wrapped store error may itself be a client sentinel.
		writeErrorCode(w, http.StatusInternalServerError, "commit_failed", message, err.Error())
	case ledger.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, "not_found", message, err.Error())
	case ledger.IsClientError(err):
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", message, err.Error())
	default:
		h.Log.Error().Err(err).Msg(message)
		writeErrorCode(w, http.StatusInternalServerError, "internal", message, err.Error())
	}
}
