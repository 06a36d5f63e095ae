/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Every quantity and cost is a decimal.Decimal, which encodes as a JSON
  string ("0.2125") and decodes from either a string or a number. Binary
  floats never cross the API.

TYPES:
  Lots:         ReceiveLotRequest, LotDTO, AvailableDTO
  Compositions: factory.CompositionJSON, ValidateEditRequest, CostBreakdownDTO
  Actions:      ProductionRequest, AssemblyRequest, ActionDTO, ActionCostDTO
  Feasibility:  FeasibilityRequest, ShortfallReportDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: CompositionJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kentonium3/bake-tracker-sub018/ledger"
)

// =============================================================================
// LOTS
// =============================================================================

type ReceiveLotRequest struct {
	Item       string          `json:"item"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt *time.Time      `json:"received_at,omitempty"`
	Note       string          `json:"note,omitempty"`
}

type LotDTO struct {
	ID         string          `json:"id"`
	Item       string          `json:"item"`
	ReceivedAt time.Time       `json:"received_at"`
	Quantity   decimal.Decimal `json:"quantity"`
	Remaining  decimal.Decimal `json:"remaining"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Source     string          `json:"source_action_id,omitempty"`
	Note       string          `json:"note,omitempty"`
}

type AvailableDTO struct {
	Item      string          `json:"item"`
	Available decimal.Decimal `json:"available"`
}

// =============================================================================
// COMPOSITIONS
// =============================================================================

type ValidateEditRequest struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

type CycleDTO struct {
	Parent string   `json:"parent"`
	Child  string   `json:"child"`
	Path   []string `json:"path"`
}

type CostLineDTO struct {
	Component string            `json:"component"`
	Kind      string            `json:"kind"`
	QtyPer    decimal.Decimal   `json:"qty_per"`
	UnitCost  decimal.Decimal   `json:"unit_cost"`
	Cost      decimal.Decimal   `json:"cost"`
	Priced    bool              `json:"priced"`
	Nested    *CostBreakdownDTO `json:"nested,omitempty"`
}

type CostBreakdownDTO struct {
	Key           string          `json:"key"`
	Mode          string          `json:"mode"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	PerOutputUnit decimal.Decimal `json:"per_output_unit"`
	Lines         []CostLineDTO   `json:"lines"`
	Unpriced      []string        `json:"unpriced"`
}

// =============================================================================
// FEASIBILITY
// =============================================================================

type FeasibilityRequest struct {
	CompositionKey string          `json:"composition_key"`
	Quantity       decimal.Decimal `json:"quantity"`
}

type ShortfallDTO struct {
	Item      string          `json:"item"`
	Kind      string          `json:"kind"`
	Needed    decimal.Decimal `json:"needed"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

type ShortfallReportDTO struct {
	Feasible   bool           `json:"feasible"`
	Checked    int            `json:"checked"`
	Shortfalls []ShortfallDTO `json:"shortfalls"`
}

// =============================================================================
// ACTIONS
// =============================================================================

type LossInputDTO struct {
	Category string          `json:"category"`
	Quantity decimal.Decimal `json:"quantity"`
	Note     string          `json:"note,omitempty"`
}

type ProductionRequest struct {
	RecipeKey   string           `json:"recipe_key"`
	BatchCount  decimal.Decimal  `json:"batch_count"`
	ActualYield *decimal.Decimal `json:"actual_yield,omitempty"` // omitted means full yield
	Losses      []LossInputDTO   `json:"losses,omitempty"`
	Note        string           `json:"note,omitempty"`
}

type AssemblyRequest struct {
	AssemblyKey string          `json:"assembly_key"`
	UnitCount   decimal.Decimal `json:"unit_count"`
	Losses      []LossInputDTO  `json:"losses,omitempty"`
	Note        string          `json:"note,omitempty"`
}

type ConsumptionDTO struct {
	ID          string          `json:"id"`
	LotID       string          `json:"lot_id"`
	Item        string          `json:"item"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	ConsumedAt  time.Time       `json:"consumed_at"`
}

type LossRecordDTO struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	Note        string          `json:"note,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

type ActionDTO struct {
	ID                string           `json:"id"`
	Kind              string           `json:"kind"`
	Composition       string           `json:"composition"`
	Output            string           `json:"output,omitempty"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	RequestedYield    decimal.Decimal  `json:"requested_yield"`
	ActualYield       decimal.Decimal  `json:"actual_yield"`
	Status            string           `json:"status"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	UnitCost          decimal.Decimal  `json:"unit_cost"`
	Note              string           `json:"note,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	Consumptions      []ConsumptionDTO `json:"consumptions"`
	Losses            []LossRecordDTO  `json:"losses"`
	OutputLot         *LotDTO          `json:"output_lot,omitempty"`
}

type ActionCostDTO struct {
	ActionID  string          `json:"action_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLotDTO(l ledger.InventoryLot) LotDTO {
	return LotDTO{
		ID:         string(l.ID),
		Item:       string(l.Item),
		ReceivedAt: l.ReceivedAt,
		Quantity:   l.Quantity,
		Remaining:  l.Remaining,
		UnitCost:   l.UnitCost,
		Source:     string(l.Source),
		Note:       l.Note,
	}
}

func toActionDTO(a ledger.Action) ActionDTO {
	dto := ActionDTO{
		ID:                string(a.ID),
		Kind:              string(a.Kind),
		Composition:       string(a.Composition),
		Output:            string(a.Output),
		RequestedQuantity: a.RequestedQuantity,
		RequestedYield:    a.RequestedYield,
		ActualYield:       a.ActualYield,
		Status:            string(a.Status),
		TotalCost:         a.TotalCost,
		UnitCost:          a.UnitCost,
		Note:              a.Note,
		CreatedAt:         a.CreatedAt,
		Consumptions:      make([]ConsumptionDTO, 0, len(a.Consumptions)),
		Losses:            make([]LossRecordDTO, 0, len(a.Losses)),
	}
	for _, c := range a.Consumptions {
		dto.Consumptions = append(dto.Consumptions, ConsumptionDTO{
			ID:          string(c.ID),
			LotID:       string(c.LotID),
			Item:        string(c.Item),
			Quantity:    c.Quantity,
			CostPerUnit: c.UnitCost,
			ConsumedAt:  c.ConsumedAt,
		})
	}
	for _, l := range a.Losses {
		dto.Losses = append(dto.Losses, LossRecordDTO{
			ID:          string(l.ID),
			Category:    string(l.Category),
			Quantity:    l.Quantity,
			CostPerUnit: l.CostPerUnit,
			Note:        l.Note,
			RecordedAt:  l.RecordedAt,
		})
	}
	return dto
}

func toReceiptDTO(r *ledger.CommitReceipt) ActionDTO {
	dto := toActionDTO(r.Action)
	if r.OutputLot != nil {
		lot := toLotDTO(*r.OutputLot)
		dto.OutputLot = &lot
	}
	return dto
}

func toShortfallReportDTO(r ledger.ShortfallReport) ShortfallReportDTO {
	dto := ShortfallReportDTO{
		Feasible:   r.Feasible(),
		Checked:    r.Checked,
		Shortfalls: make([]ShortfallDTO, 0, len(r.Shortfalls)),
	}
	for _, s := range r.Shortfalls {
		dto.Shortfalls = append(dto.Shortfalls, ShortfallDTO{
			Item:      string(s.Item),
			Kind:      string(s.Kind),
			Needed:    s.Needed,
			Available: s.Available,
			Shortfall: s.Shortfall,
		})
	}
	return dto
}

func toCostBreakdownDTO(b *ledger.CostBreakdown) *CostBreakdownDTO {
	dto := &CostBreakdownDTO{
		Key:           string(b.Key),
		Mode:          string(b.Mode),
		UnitCost:      b.UnitCost,
		PerOutputUnit: b.PerOutputUnit,
		Lines:         make([]CostLineDTO, 0, len(b.Lines)),
		Unpriced:      keyStrings(b.Unpriced),
	}
	for _, l := range b.Lines {
		line := CostLineDTO{
			Component: string(l.Component),
			Kind:      string(l.Kind),
			QtyPer:    l.QtyPer,
			UnitCost:  l.UnitCost,
			Cost:      l.Cost,
			Priced:    l.Priced,
		}
		if l.Nested != nil {
			line.Nested = toCostBreakdownDTO(l.Nested)
		}
		dto.Lines = append(dto.Lines, line)
	}
	return dto
}

func toLossInputs(in []LossInputDTO) ([]ledger.LossInput, error) {
	out := make([]ledger.LossInput, 0, len(in))
	for _, l := range in {
		category, err := ledger.ParseLossCategory(l.Category)
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.LossInput{Category: category, Quantity: l.Quantity, Note: l.Note})
	}
	return out, nil
}

func keyStrings(keys []ledger.ItemKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
