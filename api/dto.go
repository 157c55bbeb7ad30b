/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine types from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Billing:
    PipelineDTO, SponsorPipelineDTO, TotalsDTO

  Budget:
    AnnualDTO, AgencyViewDTO, AgencyRowDTO, AlertDTO, BudgetResponse,
    ArchivePlanResponse

  Schedule:
    ConflictCheckRequest, SlotRequest, ConflictDTO, SlotResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

MONEY AND PERCENTAGES:
  Amounts encode as bare numbers with two decimals (money.Money). Percentages
  encode as strings with two decimals, so no float ever rounds them.

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before converting them.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
	"github.com/warp/formation-engine/schedule"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func pct(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// BILLING
// =============================================================================

type TotalsDTO struct {
	Budget             money.Money `json:"budget"`
	Quoted             money.Money `json:"quoted"`
	Invoiced           money.Money `json:"invoiced"`
	Paid               money.Money `json:"paid"`
	Credited           money.Money `json:"credited"`
	RemainingToInvoice money.Money `json:"remaining_to_invoice"`
	RemainingToCollect money.Money `json:"remaining_to_collect"`
}

type SponsorPipelineDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Subrogation string          `json:"subrogation"`
	BilledTo    []billing.Party `json:"billed_to"`
	TotalsDTO

	Quotes      map[billing.QuoteStatus]int      `json:"quotes_by_status"`
	Invoices    map[billing.InvoiceStatus]int    `json:"invoices_by_status"`
	CreditNotes map[billing.CreditNoteStatus]int `json:"credit_notes_by_status"`
}

type PipelineDTO struct {
	SessionID    string               `json:"session_id"`
	Sponsors     []SponsorPipelineDTO `json:"sponsors"`
	Totals       TotalsDTO            `json:"totals"`
	Unattributed int                  `json:"unattributed_documents"`
}

func toPipelineDTO(p billing.Pipeline) PipelineDTO {
	dto := PipelineDTO{
		SessionID:    string(p.SessionID),
		Sponsors:     make([]SponsorPipelineDTO, 0, len(p.Sponsors)),
		Unattributed: p.Unattributed.Count(),
		Totals: TotalsDTO{
			Budget:             p.Totals.Budget,
			Quoted:             p.Totals.Quoted,
			Invoiced:           p.Totals.Invoiced,
			Paid:               p.Totals.Paid,
			Credited:           p.Totals.Credited,
			RemainingToInvoice: p.Totals.RemainingToInvoice,
			RemainingToCollect: p.Totals.RemainingToCollect,
		},
	}
	for _, sp := range p.Sponsors {
		billedTo := sp.Sponsor.BilledParties()
		if billedTo == nil {
			billedTo = []billing.Party{}
		}
		dto.Sponsors = append(dto.Sponsors, SponsorPipelineDTO{
			ID:          string(sp.Sponsor.ID),
			Name:        sp.Sponsor.DisplayName(),
			Subrogation: string(sp.Sponsor.Subrogation),
			BilledTo:    billedTo,
			TotalsDTO: TotalsDTO{
				Budget:             sp.Sponsor.Budget,
				Quoted:             sp.TotalQuoted,
				Invoiced:           sp.TotalInvoiced,
				Paid:               sp.TotalPaid,
				Credited:           sp.TotalCredited,
				RemainingToInvoice: sp.RemainingToInvoice,
				RemainingToCollect: sp.RemainingToCollect,
			},
			Quotes:      sp.QuotesByStatus,
			Invoices:    sp.InvoicesByStatus,
			CreditNotes: sp.CreditNotesByStatus,
		})
	}
	return dto
}

// =============================================================================
// BUDGET
// =============================================================================

type CountsDTO struct {
	Needs    int `json:"needs"`
	Unpriced int `json:"unpriced"`
}

type AnnualDTO struct {
	EnterpriseID    string      `json:"enterprise_id"`
	FiscalYear      int         `json:"fiscal_year"`
	PlanID          string      `json:"plan_id,omitempty"`
	PlanName        string      `json:"plan_name,omitempty"`
	PlanAllocated   money.Money `json:"plan_allocated"`
	PlanEngaged     money.Money `json:"plan_engaged"`
	PlanRemaining   money.Money `json:"plan_remaining"`
	PlanConsumption string      `json:"plan_consumption_percent"`
	PlanNeeds       CountsDTO   `json:"plan_needs"`
	PunctualTotal   money.Money `json:"punctual_total"`
	PunctualNeeds   CountsDTO   `json:"punctual_needs"`
	TotalSpend      money.Money `json:"total_spend"`
}

func toAnnualDTO(a budget.Annual) AnnualDTO {
	dto := AnnualDTO{
		EnterpriseID:    string(a.EnterpriseID),
		FiscalYear:      a.FiscalYear,
		PlanAllocated:   a.PlanAllocated,
		PlanEngaged:     a.PlanEngaged,
		PlanRemaining:   a.PlanRemaining,
		PlanConsumption: pct(a.PlanConsumption),
		PlanNeeds:       CountsDTO{Needs: a.PlanNeeds.NeedCount, Unpriced: a.PlanNeeds.UnpricedCount},
		PunctualTotal:   a.PunctualTotal,
		PunctualNeeds:   CountsDTO{Needs: a.PunctualNeeds.NeedCount, Unpriced: a.PunctualNeeds.UnpricedCount},
		TotalSpend:      a.TotalSpend,
	}
	if a.Plan != nil {
		dto.PlanID = string(a.Plan.ID)
		dto.PlanName = a.Plan.Name
	}
	return dto
}

type AgencyRowDTO struct {
	AgencyID           string      `json:"agency_id"`
	Name               string      `json:"name"`
	HeadOffice         bool        `json:"head_office,omitempty"`
	Budgeted           bool        `json:"budgeted"`
	Allocated          money.Money `json:"allocated"`
	PlanEngaged        money.Money `json:"plan_engaged"`
	PunctualEngaged    money.Money `json:"punctual_engaged"`
	Engaged            money.Money `json:"engaged"`
	Remaining          money.Money `json:"remaining"`
	ConsumptionPercent string      `json:"consumption_percent"`
	CountsDTO
}

func toAgencyRowDTO(r budget.AgencyRow) AgencyRowDTO {
	return AgencyRowDTO{
		AgencyID:           string(r.AgencyID),
		Name:               r.Name,
		HeadOffice:         r.HeadOffice,
		Budgeted:           r.Budgeted,
		Allocated:          r.Allocated,
		PlanEngaged:        r.PlanEngaged,
		PunctualEngaged:    r.PunctualEngaged,
		Engaged:            r.Engaged,
		Remaining:          r.Remaining,
		ConsumptionPercent: pct(r.ConsumptionPercent),
		CountsDTO:          CountsDTO{Needs: r.NeedCount, Unpriced: r.UnpricedCount},
	}
}

type AlertDTO struct {
	Scope      string      `json:"scope"`
	Level      string      `json:"level"`
	AgencyID   string      `json:"agency_id,omitempty"`
	Name       string      `json:"name"`
	Percentage string      `json:"percentage"`
	Threshold  string      `json:"threshold"`
	Allocated  money.Money `json:"allocated"`
	Engaged    money.Money `json:"engaged"`
	Remaining  money.Money `json:"remaining"`
	Message    string      `json:"message"`
}

func toAlertDTOs(alerts []budget.Alert) []AlertDTO {
	out := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertDTO{
			Scope:      string(a.Scope),
			Level:      string(a.Level),
			AgencyID:   string(a.AgencyID),
			Name:       a.Name,
			Percentage: pct(a.Percentage),
			Threshold:  pct(a.Threshold),
			Allocated:  a.Allocated,
			Engaged:    a.Engaged,
			Remaining:  a.Remaining,
			Message:    a.String(),
		})
	}
	return out
}

type AgencyViewDTO struct {
	EnterpriseID string         `json:"enterprise_id"`
	FiscalYear   int            `json:"fiscal_year"`
	Threshold    string         `json:"threshold"`
	Rows         []AgencyRowDTO `json:"rows"`
	Global       AgencyRowDTO   `json:"global"`
	Alerts       []AlertDTO     `json:"alerts"`
}

func toAgencyViewDTO(v budget.AgencyView) AgencyViewDTO {
	dto := AgencyViewDTO{
		EnterpriseID: string(v.EnterpriseID),
		FiscalYear:   v.FiscalYear,
		Threshold:    pct(v.Threshold),
		Rows:         make([]AgencyRowDTO, 0, len(v.Rows)),
		Global:       toAgencyRowDTO(v.Global),
		Alerts:       toAlertDTOs(v.Alerts),
	}
	for _, r := range v.Rows {
		dto.Rows = append(dto.Rows, toAgencyRowDTO(r))
	}
	return dto
}

// BudgetResponse carries both views of one year, computed from one tariff batch.
type BudgetResponse struct {
	Annual   AnnualDTO     `json:"annual"`
	Agencies AgencyViewDTO `json:"agencies"`
}

type ArchivePlanResponse struct {
	PlanID     string   `json:"plan_id"`
	ArchivedAt string   `json:"archived_at"`
	Detached   []string `json:"detached_need_ids"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ConflictCheckRequest proposes a slot without saving it.
type ConflictCheckRequest struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Start         string `json:"start" validate:"required,datetime=15:04"`
	End           string `json:"end" validate:"required,datetime=15:04"`
	TrainerID     string `json:"trainer_id"`
	RoomID        string `json:"room_id"`
	ExcludeSlotID string `json:"exclude_slot_id"`
}

func (req ConflictCheckRequest) toProposal(org generic.OrganizationID) (schedule.Proposal, error) {
	date, start, end, err := parseSlotTimes(req.Date, req.Start, req.End)
	if err != nil {
		return schedule.Proposal{}, err
	}
	return schedule.Proposal{
		OrganizationID: org,
		Date:           date,
		Start:          start,
		End:            end,
		TrainerID:      schedule.TrainerID(req.TrainerID),
		RoomID:         schedule.RoomID(req.RoomID),
		ExcludeSlotID:  schedule.SlotID(req.ExcludeSlotID),
	}, nil
}

// SlotRequest creates or updates a slot. An empty ID creates a new slot.
type SlotRequest struct {
	ID               string `json:"id"`
	SessionID        string `json:"session_id" validate:"required"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	Start            string `json:"start" validate:"required,datetime=15:04"`
	End              string `json:"end" validate:"required,datetime=15:04"`
	Modality         string `json:"modality" validate:"required,oneof=in_person remote e_learning internship"`
	TrainerID        string `json:"trainer_id"`
	RoomID           string `json:"room_id"`
	RejectOnConflict bool   `json:"reject_on_conflict"`
}

func (req SlotRequest) toSlot(org generic.OrganizationID) (schedule.Slot, error) {
	date, start, end, err := parseSlotTimes(req.Date, req.Start, req.End)
	if err != nil {
		return schedule.Slot{}, err
	}
	return schedule.Slot{
		ID:             schedule.SlotID(req.ID),
		OrganizationID: org,
		Session:        generic.SessionRef{ID: generic.SessionID(req.SessionID)},
		Date:           date,
		Start:          start,
		End:            end,
		Modality:       schedule.Modality(req.Modality),
		TrainerID:      schedule.TrainerID(req.TrainerID),
		RoomID:         schedule.RoomID(req.RoomID),
	}, nil
}

func parseSlotTimes(date, start, end string) (generic.TimePoint, generic.ClockTime, generic.ClockTime, error) {
	d, err := generic.ParseDate(date)
	if err != nil {
		return generic.TimePoint{}, 0, 0, fmt.Errorf("%w: date %q", generic.ErrInvalidInput, date)
	}
	s, err := generic.ParseClockTime(start)
	if err != nil {
		return generic.TimePoint{}, 0, 0, fmt.Errorf("%w: start %q", generic.ErrInvalidInput, start)
	}
	e, err := generic.ParseClockTime(end)
	if err != nil {
		return generic.TimePoint{}, 0, 0, fmt.Errorf("%w: end %q", generic.ErrInvalidInput, end)
	}
	return d, s, e, nil
}

type ConflictDTO struct {
	Kind        string `json:"kind"`
	SlotID      string `json:"slot_id"`
	PartyID     string `json:"party_id"`
	PartyName   string `json:"party_name"`
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Message     string `json:"message"`
}

func toConflictDTOs(conflicts []schedule.Conflict) []ConflictDTO {
	out := make([]ConflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, ConflictDTO{
			Kind:        string(c.Kind),
			SlotID:      string(c.SlotID),
			PartyID:     c.PartyID,
			PartyName:   c.PartyName,
			SessionID:   string(c.Session.ID),
			SessionName: c.Session.Name,
			Date:        c.Date.String(),
			Start:       c.Start.String(),
			End:         c.End.String(),
			Message:     c.Message(),
		})
	}
	return out
}

type ConflictsResponse struct {
	Conflicts []ConflictDTO `json:"conflicts"`
}

type SlotResponse struct {
	ID        string        `json:"id"`
	Guarded   bool          `json:"guarded"`
	Conflicts []ConflictDTO `json:"conflicts"`
}

// =============================================================================
// ALERT SWEEP
// =============================================================================

type EnterpriseAlertsDTO struct {
	EnterpriseID string     `json:"enterprise_id"`
	Name         string     `json:"name"`
	Alerts       []AlertDTO `json:"alerts"`
}

type SweepDTO struct {
	RanAt       string                `json:"ran_at"`
	FiscalYear  int                   `json:"fiscal_year"`
	Enterprises []EnterpriseAlertsDTO `json:"enterprises"`
	Failures    int                   `json:"failures"`
}

func toSweepDTO(s Sweep) SweepDTO {
	out := SweepDTO{
		RanAt:       s.RanAt.Format(time.RFC3339),
		FiscalYear:  s.FiscalYear,
		Enterprises: make([]EnterpriseAlertsDTO, 0, len(s.Enterprises)),
		Failures:    s.Failures,
	}
	for _, e := range s.Enterprises {
		out.Enterprises = append(out.Enterprises, EnterpriseAlertsDTO{
			EnterpriseID: string(e.EnterpriseID),
			Name:         e.Name,
			Alerts:       toAlertDTOs(e.Alerts),
		})
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// VALIDATION
// =============================================================================

// validationFields maps each failing field to the tag it failed.
func validationFields(err error) map[string]string {
	fields := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, ve := range verrs {
			fields[ve.Field()] = ve.Tag()
		}
	}
	return fields
}
