/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates sessions, sponsors,
	documents, budgets or slots that demonstrate one engine.

AVAILABLE SCENARIOS:

	billing-pipeline:  Two sponsors, a signed quote, a partly paid invoice
	                   and a credit note reached through its invoice
	budget-vigilance:  One agency past its vigilance threshold, one agency
	                   overspent, one-off needs next to the plan
	trainer-conflict:  A trainer double-booked on overlapping slots
	full-demo:         All of the above

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Write entities through the Seeder
 3. Remember the loaded scenario for GET /api/scenarios/current

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "budget-vigilance"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
	"github.com/warp/formation-engine/schedule"
)

// Seeder writes the entities the engines read.
type Seeder interface {
	SaveSession(ctx context.Context, sess generic.Session) error
	SaveSponsor(ctx context.Context, sp billing.Sponsor) error
	SaveQuote(ctx context.Context, q billing.Quote) error
	SaveInvoice(ctx context.Context, inv billing.Invoice) error
	SaveCreditNote(ctx context.Context, cn billing.CreditNote) error

	SaveEnterprise(ctx context.Context, e budget.Enterprise) error
	SaveAgency(ctx context.Context, enterpriseID budget.EnterpriseID, id budget.AgencyID, name string) error
	SaveAgencyBudget(ctx context.Context, b budget.AgencyBudget) error
	SavePlan(ctx context.Context, p budget.Plan) error
	SaveTrainingNeed(ctx context.Context, n budget.TrainingNeed) error
	SaveProduct(ctx context.Context, id budget.ProductID, name string) error
	SaveTariff(ctx context.Context, t budget.Tariff) error

	SaveTrainer(ctx context.Context, id schedule.TrainerID, name string) error
	SaveRoom(ctx context.Context, id schedule.RoomID, name string) error
}

// Fixed identifiers of the demo data.
const (
	DemoOrganization = generic.OrganizationID("org-demo")
	DemoEnterprise   = budget.EnterpriseID("ent-demo")
	DemoPlan         = budget.PlanID("plan-demo")
	DemoSession      = generic.SessionID("sess-excel")
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "billing-pipeline",
		Name:        "Billing Pipeline",
		Description: "Company and OPCO sponsors with a signed quote, a partly paid invoice and a credit note",
		Category:    "billing",
	},
	{
		ID:          "budget-vigilance",
		Name:        "Budget Vigilance",
		Description: "Training plan with one agency past 80% and one agency overspent",
		Category:    "budget",
	},
	{
		ID:          "trainer-conflict",
		Name:        "Trainer Conflict",
		Description: "Trainer booked on two overlapping slots of different sessions",
		Category:    "schedule",
	},
	{
		ID:          "full-demo",
		Name:        "Full Demo",
		Description: "All scenarios loaded together",
		Category:    "all",
	},
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the store and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Logger.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var loaders []func(context.Context) error
	switch id {
	case "billing-pipeline":
		loaders = append(loaders, h.loadBillingPipelineScenario)
	case "budget-vigilance":
		loaders = append(loaders, h.loadBudgetVigilanceScenario)
	case "trainer-conflict":
		loaders = append(loaders, h.loadTrainerConflictScenario)
	case "full-demo":
		loaders = append(loaders, h.loadBillingPipelineScenario, h.loadBudgetVigilanceScenario, h.loadTrainerConflictScenario)
	default:
		return fmt.Errorf("%w: unknown scenario %q", generic.ErrInvalidInput, id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			return fmt.Errorf("scenario %s: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// BILLING PIPELINE
// =============================================================================

func (h *Handler) loadBillingPipelineScenario(ctx context.Context) error {
	s := h.Store
	now := h.now().UTC()

	if err := s.SaveSession(ctx, generic.Session{ID: DemoSession, OrganizationID: DemoOrganization, Name: "Excel avancé", CreatedAt: now}); err != nil {
		return err
	}

	sponsors := []billing.Sponsor{
		{
			ID:             "sp-acme",
			SessionID:      DemoSession,
			Company:        &billing.Party{ID: "acme", Name: "Acme Industries"},
			Contact:        &billing.Party{ID: "jmartin", Name: "Jeanne Martin"},
			Budget:         money.New(10000),
			Subrogation:    billing.SubrogationCompany,
			InvoiceCompany: true,
			CreatedAt:      now,
		},
		{
			ID:              "sp-opco",
			SessionID:       DemoSession,
			Financer:        &billing.Party{ID: "opco-atlas", Name: "OPCO Atlas"},
			Budget:          money.New(3000),
			Subrogation:     billing.SubrogationFinancer,
			InvoiceFinancer: true,
			CreatedAt:       now.Add(time.Minute),
		},
	}
	for _, sp := range sponsors {
		if err := s.SaveSponsor(ctx, sp); err != nil {
			return err
		}
	}

	down := decimal.NewFromInt(30)
	if err := s.SaveQuote(ctx, billing.Quote{
		Header: billing.Header{ID: "q-acme", Number: "D-2025-001", SessionID: DemoSession, SponsorID: "sp-acme", TotalBeforeTax: money.New(6000), TotalAfterTax: money.New(7200), IssuedAt: now},
		Status: billing.QuoteSigned,
	}); err != nil {
		return err
	}
	if err := s.SaveQuote(ctx, billing.Quote{
		Header: billing.Header{ID: "q-opco", Number: "D-2025-002", SessionID: DemoSession, SponsorID: "sp-opco", TotalBeforeTax: money.New(2500), TotalAfterTax: money.New(3000), IssuedAt: now},
		Status: billing.QuoteSent,
	}); err != nil {
		return err
	}
	if err := s.SaveInvoice(ctx, billing.Invoice{
		Header:             billing.Header{ID: "inv-acme", Number: "F-2025-001", SessionID: DemoSession, SponsorID: "sp-acme", TotalBeforeTax: money.New(5000), TotalAfterTax: money.New(6000), IssuedAt: now},
		Status:             billing.InvoicePartiallyPaid,
		AmountPaid:         money.New(2000),
		DownPaymentPercent: &down,
	}); err != nil {
		return err
	}
	// Linked through its invoice only
	return s.SaveCreditNote(ctx, billing.CreditNote{
		Header:    billing.Header{ID: "cn-acme", Number: "A-2025-001", SessionID: DemoSession, TotalBeforeTax: money.New(416.67), TotalAfterTax: money.New(500), IssuedAt: now.Add(24 * time.Hour)},
		Status:    billing.CreditNoteIssued,
		InvoiceID: "inv-acme",
	})
}

// =============================================================================
// BUDGET VIGILANCE
// =============================================================================

func (h *Handler) loadBudgetVigilanceScenario(ctx context.Context) error {
	s := h.Store
	year := h.currentFiscalYear()

	if err := s.SaveEnterprise(ctx, budget.Enterprise{ID: DemoEnterprise, Name: "Acme Industries"}); err != nil {
		return err
	}

	agencies := []budget.AgencyBudget{
		{AgencyID: "ag-lyon", Name: "Lyon", Allocated: money.New(1000)},
		{AgencyID: "ag-paris", Name: "Paris", Allocated: money.New(2000)},
		{AgencyID: budget.HeadOfficeID, Allocated: money.New(5000)},
	}
	for _, a := range agencies {
		if a.AgencyID != budget.HeadOfficeID {
			if err := s.SaveAgency(ctx, DemoEnterprise, a.AgencyID, a.Name); err != nil {
				return err
			}
		}
		a.EnterpriseID = DemoEnterprise
		a.FiscalYear = year
		if err := s.SaveAgencyBudget(ctx, a); err != nil {
			return err
		}
	}

	if err := s.SavePlan(ctx, budget.Plan{
		ID:             DemoPlan,
		EnterpriseID:   DemoEnterprise,
		FiscalYear:     year,
		Name:           fmt.Sprintf("Plan de développement %d", year),
		AllocatedTotal: money.New(8000),
	}); err != nil {
		return err
	}

	products := []struct {
		id      budget.ProductID
		name    string
		tariffs []budget.Tariff
	}{
		{"excel", "Excel avancé", []budget.Tariff{
			{ID: "t-excel-std", Label: "Inter-entreprise", Price: money.New(850), IsDefault: true},
			{ID: "t-excel-intra", Label: "Intra", Price: money.New(2400)},
		}},
		{"safety", "Habilitation électrique", []budget.Tariff{
			{ID: "t-safety-std", Label: "Inter-entreprise", Price: money.New(650), IsDefault: true},
		}},
		// No default tariff: needs stay unpriced
		{"lean", "Lean management", []budget.Tariff{
			{ID: "t-lean-quote", Label: "Sur devis", Price: money.New(3000)},
		}},
	}
	for _, p := range products {
		if err := s.SaveProduct(ctx, p.id, p.name); err != nil {
			return err
		}
		for _, t := range p.tariffs {
			t.ProductID = p.id
			if err := s.SaveTariff(ctx, t); err != nil {
				return err
			}
		}
	}

	needs := []budget.TrainingNeed{
		// Lyon: 850 / 1000 = 85%, vigilance
		{ID: "need-lyon-excel", Title: "Excel avancé - Lyon", PlanID: DemoPlan, ProductID: "excel", AgencyID: "ag-lyon"},
		// Paris: 2 x 850 + 650 = 2350 / 2000, overspend
		{ID: "need-paris-excel-1", Title: "Excel avancé - Paris", PlanID: DemoPlan, ProductID: "excel", AgencyID: "ag-paris"},
		{ID: "need-paris-excel-2", Title: "Excel avancé - Paris", OneOff: true, ProductID: "excel", AgencyID: "ag-paris"},
		{ID: "need-paris-safety", Title: "Habilitation électrique", PlanID: DemoPlan, ProductID: "safety", AgencyID: "ag-paris"},
		// Head office
		{ID: "need-ho-lean", Title: "Lean management", PlanID: DemoPlan, ProductID: "lean"},
		{ID: "need-ho-tbd", Title: "Management d'équipe", OneOff: true},
	}
	for _, n := range needs {
		n.EnterpriseID = DemoEnterprise
		n.FiscalYear = year
		if err := s.SaveTrainingNeed(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRAINER CONFLICT
// =============================================================================

// ConflictDemoDate is the day of the trainer-conflict scenario.
var ConflictDemoDate = generic.NewTimePoint(2025, time.March, 10)

func (h *Handler) loadTrainerConflictScenario(ctx context.Context) error {
	s := h.Store
	now := h.now().UTC()

	sessions := []generic.Session{
		{ID: "sess-word", OrganizationID: DemoOrganization, Name: "Word initiation", CreatedAt: now},
		{ID: "sess-ppt", OrganizationID: DemoOrganization, Name: "PowerPoint", CreatedAt: now},
	}
	for _, sess := range sessions {
		if err := s.SaveSession(ctx, sess); err != nil {
			return err
		}
	}
	if err := s.SaveTrainer(ctx, "tr-alice", "Alice Martin"); err != nil {
		return err
	}
	if err := s.SaveRoom(ctx, "room-rhone", "Salle Rhône"); err != nil {
		return err
	}
	if err := s.SaveRoom(ctx, "room-saone", "Salle Saône"); err != nil {
		return err
	}

	// Seeded directly: the overlap is the point of the scenario.
	slots := []schedule.Slot{
		{
			ID: "slot-word-am", Session: sessions[0].Ref(),
			Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(12, 0),
			Modality: schedule.ModalityInPerson, TrainerID: "tr-alice", RoomID: "room-rhone",
		},
		{
			ID: "slot-ppt-late", Session: sessions[1].Ref(),
			Start: generic.NewClockTime(11, 0), End: generic.NewClockTime(13, 0),
			Modality: schedule.ModalityInPerson, TrainerID: "tr-alice", RoomID: "room-saone",
		},
		{
			ID: "slot-word-pm", Session: sessions[0].Ref(),
			Start: generic.NewClockTime(14, 0), End: generic.NewClockTime(17, 0),
			Modality: schedule.ModalityRemote, TrainerID: "tr-alice",
		},
	}
	for _, slot := range slots {
		slot.OrganizationID = DemoOrganization
		slot.Date = ConflictDemoDate
		if err := s.SaveSlot(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}
