/*
handlers.go - HTTP API handlers for the formation engine

PURPOSE:
  Exposes the three engines via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engines. Handlers fetch through
  the Store, then call pure engine code; they never compute figures
  themselves.

ENDPOINTS:
  Billing:
    GET    /api/sessions/{id}/pipeline        Financial pipeline of a session
    GET    /api/sessions/{id}/pipeline.xlsx   Same, as a workbook

  Budget:
    GET    /api/enterprises                        List enterprises
    GET    /api/enterprises/{id}/budget/annual     Plan vs punctual spend
    GET    /api/enterprises/{id}/budget/agencies   Per-agency view + alerts
    GET    /api/enterprises/{id}/budget            Both views, one tariff batch
    GET    /api/enterprises/{id}/budget.xlsx       Both views, as a workbook
    POST   /api/plans/{id}/archive                 Archive a plan

  Schedule:
    POST   /api/organizations/{id}/slots/conflicts  Detect only
    POST   /api/organizations/{id}/slots            Guarded save

  Alerts:
    GET    /api/alerts             Latest sweep
    POST   /api/alerts/sweep       Sweep now

  Admin:
    GET    /api/health             Store liveness

QUERY PARAMETERS:
  year:       fiscal year (default: the fiscal year containing today)
  threshold:  vigilance threshold in percent (default: plan, then config)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid interval or year
  - 404: Session, slot, enterprise or plan not found
  - 409: Slot locked by a concurrent edit, or rejected conflicting save
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or authorization. Every query is scoped by the ids in
  the path; callers are trusted to only reach their own organization.

SEE ALSO:
  - dto.go: Request/response data structures
  - loaders.go: Per-request tariff loader
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/config"
	"github.com/warp/formation-engine/export"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/schedule"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers read and write. Both store/sqlite and
// store/memory implement it.
type Store interface {
	billing.Source
	budget.Source
	budget.TariffSource
	schedule.SlotStore
	Seeder

	GetSession(ctx context.Context, id generic.SessionID) (*generic.Session, error)
	GetSlot(ctx context.Context, id schedule.SlotID) (*schedule.Slot, error)
	ListEnterprises(ctx context.Context) ([]budget.Enterprise, error)
	ArchivePlan(ctx context.Context, id budget.PlanID, at time.Time) (budget.ArchiveResult, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Logger  logrus.FieldLogger
	Guard   *schedule.Guard // nil runs slot saves unguarded
	Sweeper *AlertSweeper   // nil disables /api/alerts

	Fiscal           generic.FiscalCalendar
	DefaultThreshold *decimal.Decimal
	Now              func() time.Time

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, logger logrus.FieldLogger) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Store:    store,
		Logger:   logger,
		Fiscal:   generic.CalendarYear,
		Now:      time.Now,
		validate: v,
	}
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Handler) currentFiscalYear() int {
	t := h.now()
	return h.Fiscal.YearOf(generic.NewTimePoint(t.Year(), t.Month(), t.Day()))
}

func (h *Handler) consolidator(ctx context.Context) *budget.Consolidator {
	return &budget.Consolidator{
		Source:           h.Store,
		Tariffs:          tariffsFor(ctx, h.Store),
		DefaultThreshold: h.DefaultThreshold,
	}
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

func (h *Handler) pipeline(r *http.Request) (billing.Pipeline, error) {
	id := generic.SessionID(chi.URLParam(r, "id"))
	return (&billing.PipelineCalculator{Source: h.Store}).Calculate(r.Context(), id)
}

// GetPipeline returns the financial pipeline of a session.
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipeline(r)
	if err != nil {
		h.fail(w, r, "Failed to compute pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, toPipelineDTO(p))
}

// ExportPipeline returns the pipeline of a session as a workbook.
func (h *Handler) ExportPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipeline(r)
	if err != nil {
		h.fail(w, r, "Failed to compute pipeline", err)
		return
	}
	f, err := export.PipelineWorkbook(p)
	if err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}
	h.writeWorkbook(w, r, f, fmt.Sprintf("pipeline-%s.xlsx", p.SessionID))
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListEnterprises returns all enterprises.
func (h *Handler) ListEnterprises(w http.ResponseWriter, r *http.Request) {
	enterprises, err := h.Store.ListEnterprises(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list enterprises", err)
		return
	}

	dtos := make([]map[string]string, 0, len(enterprises))
	for _, e := range enterprises {
		dtos = append(dtos, map[string]string{"id": string(e.ID), "name": e.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// budgetScope reads the enterprise id, the fiscal year and the optional
// threshold of a budget request.
func (h *Handler) budgetScope(r *http.Request) (budget.EnterpriseID, int, *decimal.Decimal, error) {
	id := budget.EnterpriseID(chi.URLParam(r, "id"))

	year := h.currentFiscalYear()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, nil, fmt.Errorf("%w: year %q", generic.ErrInvalidFiscalYear, raw)
		}
		year = y
	}
	if err := generic.ValidateFiscalYear(year); err != nil {
		return "", 0, nil, err
	}

	var threshold *decimal.Decimal
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return "", 0, nil, fmt.Errorf("%w: threshold %q", generic.ErrInvalidInput, raw)
		}
		threshold = &d
	}
	return id, year, threshold, nil
}

// GetAnnualBudget returns the annual view of an enterprise.
func (h *Handler) GetAnnualBudget(w http.ResponseWriter, r *http.Request) {
	id, year, _, err := h.budgetScope(r)
	if err != nil {
		h.fail(w, r, "Invalid budget request", err)
		return
	}

	annual, err := h.consolidator(r.Context()).Annual(r.Context(), id, year)
	if err != nil {
		h.fail(w, r, "Failed to compute annual budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnualDTO(annual))
}

// GetAgencyBudget returns the per-agency view of an enterprise with alerts.
func (h *Handler) GetAgencyBudget(w http.ResponseWriter, r *http.Request) {
	id, year, threshold, err := h.budgetScope(r)
	if err != nil {
		h.fail(w, r, "Invalid budget request", err)
		return
	}

	view, err := h.consolidator(r.Context()).ByAgency(r.Context(), id, year, threshold)
	if err != nil {
		h.fail(w, r, "Failed to compute agency budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgencyViewDTO(view))
}

func (h *Handler) bothViews(r *http.Request) (budget.Annual, budget.AgencyView, error) {
	id, year, threshold, err := h.budgetScope(r)
	if err != nil {
		return budget.Annual{}, budget.AgencyView{}, err
	}

	// Both views share the request's tariff loader: one store lookup.
	c := h.consolidator(r.Context())
	annual, err := c.Annual(r.Context(), id, year)
	if err != nil {
		return budget.Annual{}, budget.AgencyView{}, err
	}
	view, err := c.ByAgency(r.Context(), id, year, threshold)
	if err != nil {
		return budget.Annual{}, budget.AgencyView{}, err
	}
	return annual, view, nil
}

// GetBudget returns both budget views of an enterprise.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	annual, view, err := h.bothViews(r)
	if err != nil {
		h.fail(w, r, "Failed to compute budget", err)
		return
	}
	writeJSON(w, http.StatusOK, BudgetResponse{Annual: toAnnualDTO(annual), Agencies: toAgencyViewDTO(view)})
}

// ExportBudget returns both budget views as a workbook.
func (h *Handler) ExportBudget(w http.ResponseWriter, r *http.Request) {
	annual, view, err := h.bothViews(r)
	if err != nil {
		h.fail(w, r, "Failed to compute budget", err)
		return
	}
	f, err := export.BudgetWorkbook(annual, view)
	if err != nil {
		h.fail(w, r, "Failed to build workbook", err)
		return
	}
	h.writeWorkbook(w, r, f, fmt.Sprintf("budget-%s-%d.xlsx", annual.EnterpriseID, annual.FiscalYear))
}

// ArchivePlan archives a plan and detaches its training needs.
func (h *Handler) ArchivePlan(w http.ResponseWriter, r *http.Request) {
	id := budget.PlanID(chi.URLParam(r, "id"))

	res, err := h.Store.ArchivePlan(r.Context(), id, h.now().UTC())
	if err != nil {
		h.fail(w, r, "Failed to archive plan", err)
		return
	}

	detached := make([]string, 0, len(res.Detached))
	for _, n := range res.Detached {
		detached = append(detached, string(n.ID))
	}
	h.Logger.WithFields(logrus.Fields{"plan": id, "detached": len(detached)}).Info("plan archived")

	writeJSON(w, http.StatusOK, ArchivePlanResponse{
		PlanID:     string(res.Plan.ID),
		ArchivedAt: res.Plan.ArchivedAt.Format(time.RFC3339),
		Detached:   detached,
	})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// CheckConflicts detects the conflicts of a proposed slot without saving it.
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	org := generic.OrganizationID(chi.URLParam(r, "id"))

	var req ConflictCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := req.toProposal(org)
	if err != nil {
		h.fail(w, r, "Invalid slot", err)
		return
	}

	conflicts, err := (&schedule.Checker{Source: h.Store}).Check(r.Context(), p)
	if err != nil {
		h.fail(w, r, "Failed to check conflicts", err)
		return
	}
	writeJSON(w, http.StatusOK, ConflictsResponse{Conflicts: toConflictDTOs(conflicts)})
}

// SaveSlot creates or updates a slot under the slot guard. Conflicts are
// returned with the saved slot; with reject_on_conflict they abort the save.
func (h *Handler) SaveSlot(w http.ResponseWriter, r *http.Request) {
	org := generic.OrganizationID(chi.URLParam(r, "id"))

	var req SlotRequest
	if !h.decode(w, r, &req) {
		return
	}
	slot, err := req.toSlot(org)
	if err != nil {
		h.fail(w, r, "Invalid slot", err)
		return
	}
	if slot.ID == "" {
		slot.ID = schedule.SlotID(uuid.NewString())
	} else if err := h.checkSlotOwner(r.Context(), slot); err != nil {
		h.fail(w, r, "Failed to save slot", err)
		return
	}

	sess, err := h.Store.GetSession(r.Context(), slot.Session.ID)
	if err == nil && sess.OrganizationID != org {
		err = &generic.NotFoundError{Kind: "session", ID: string(slot.Session.ID)}
	}
	if err != nil {
		h.fail(w, r, "Failed to save slot", err)
		return
	}
	slot.Session = sess.Ref()

	res, err := (&schedule.Booker{Store: h.Store, Guard: h.Guard}).Book(r.Context(), slot, req.RejectOnConflict)
	var conflictErr *schedule.ConflictError
	if errors.As(err, &conflictErr) {
		writeJSON(w, http.StatusConflict, SlotResponse{
			ID:        string(slot.ID),
			Guarded:   h.Guard.Enabled(),
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		})
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to save slot", err)
		return
	}

	if len(res.Conflicts) > 0 {
		h.Logger.WithFields(logrus.Fields{
			"organization": org,
			"slot":         slot.ID,
			"conflicts":    len(res.Conflicts),
		}).Warn("slot saved with conflicts")
	}

	writeJSON(w, http.StatusCreated, SlotResponse{
		ID:        string(res.Slot.ID),
		Guarded:   h.Guard.Enabled(),
		Conflicts: toConflictDTOs(res.Conflicts),
	})
}

// checkSlotOwner rejects an update of a slot held by another organization.
// An unknown id creates a new slot.
func (h *Handler) checkSlotOwner(ctx context.Context, slot schedule.Slot) error {
	existing, err := h.Store.GetSlot(ctx, slot.ID)
	if generic.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.OrganizationID != slot.OrganizationID {
		return &generic.NotFoundError{Kind: "slot", ID: string(slot.ID)}
	}
	return nil
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns the latest alert sweep, or null before the first one.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusNotFound, "Alert sweeper is disabled", nil)
		return
	}
	sweep := h.Sweeper.Last()
	if sweep == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSweepDTO(*sweep))
}

// TriggerSweep runs an alert sweep immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusNotFound, "Alert sweeper is disabled", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSweepDTO(h.Sweeper.RunNow(r.Context())))
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "guarded": h.Guard.Enabled()})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

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

// statusFor maps the engine error vocabulary to HTTP statuses.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		config.LogError(h.Logger, "api", message, r.Method+" "+r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	writeError(w, status, message, err)
}

// decode reads and validates a JSON body. It writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
			Fields:  validationFields(err),
		})
		return false
	}
	return true
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, r *http.Request, f *excelize.File, filename string) {
	defer f.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(w); err != nil {
		config.LogError(h.Logger, "api", "writeWorkbook", filename, nil, err)
	}
}
