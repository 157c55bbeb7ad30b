// Package memory provides an in-memory implementation of the engine sources.
//
// It mirrors store/sqlite row for row (same not-found errors, same ordering,
// same uniqueness rules) so tests and demos can swap one for the other.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	sessions    map[generic.SessionID]generic.Session
	sponsors    map[billing.SponsorID]billing.Sponsor
	quotes      map[billing.DocumentID]billing.Quote
	invoices    map[billing.DocumentID]billing.Invoice
	creditNotes map[billing.DocumentID]billing.CreditNote

	enterprises map[budget.EnterpriseID]budget.Enterprise
	agencies    map[budget.AgencyID]string
	allocations map[allocationKey]budget.AgencyBudget
	plans       map[budget.PlanID]budget.Plan
	needs       map[budget.NeedID]budget.TrainingNeed
	tariffs     map[budget.TariffID]budget.Tariff

	trainers map[schedule.TrainerID]string
	rooms    map[schedule.RoomID]string
	slots    map[schedule.SlotID]schedule.Slot

	tariffLookups int
}

type allocationKey struct {
	EnterpriseID budget.EnterpriseID
	AgencyID     budget.AgencyID
	FiscalYear   int
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.sessions = make(map[generic.SessionID]generic.Session)
	m.sponsors = make(map[billing.SponsorID]billing.Sponsor)
	m.quotes = make(map[billing.DocumentID]billing.Quote)
	m.invoices = make(map[billing.DocumentID]billing.Invoice)
	m.creditNotes = make(map[billing.DocumentID]billing.CreditNote)
	m.enterprises = make(map[budget.EnterpriseID]budget.Enterprise)
	m.agencies = make(map[budget.AgencyID]string)
	m.allocations = make(map[allocationKey]budget.AgencyBudget)
	m.plans = make(map[budget.PlanID]budget.Plan)
	m.needs = make(map[budget.NeedID]budget.TrainingNeed)
	m.tariffs = make(map[budget.TariffID]budget.Tariff)
	m.trainers = make(map[schedule.TrainerID]string)
	m.rooms = make(map[schedule.RoomID]string)
	m.slots = make(map[schedule.SlotID]schedule.Slot)
	m.tariffLookups = 0
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }
func (m *Memory) Close() error                { return nil }

// =============================================================================
// BILLING (billing.Source)
// =============================================================================

func (m *Memory) SaveSession(_ context.Context, sess generic.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sess.ID]; ok {
		sess.CreatedAt = existing.CreatedAt
	} else if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *Memory) GetSession(_ context.Context, id generic.SessionID) (*generic.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "session", ID: string(id)}
	}
	return &sess, nil
}

func (m *Memory) SaveSponsor(_ context.Context, sp billing.Sponsor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sp.Subrogation == "" {
		sp.Subrogation = billing.SubrogationCompany
	}
	if existing, ok := m.sponsors[sp.ID]; ok {
		sp.CreatedAt = existing.CreatedAt
	}
	m.sponsors[sp.ID] = sp
	return nil
}

// SessionSponsors returns the sponsors of a session in creation order.
func (m *Memory) SessionSponsors(_ context.Context, sessionID generic.SessionID) ([]billing.Sponsor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, &generic.NotFoundError{Kind: "session", ID: string(sessionID)}
	}

	var out []billing.Sponsor
	for _, sp := range m.sponsors {
		if sp.SessionID == sessionID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveQuote(_ context.Context, q billing.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = q
	return nil
}

func (m *Memory) SaveInvoice(_ context.Context, inv billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) SaveCreditNote(_ context.Context, cn billing.CreditNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditNotes[cn.ID] = cn
	return nil
}

// SessionDocuments returns the documents of a session ordered by issue date.
func (m *Memory) SessionDocuments(_ context.Context, sessionID generic.SessionID) (billing.Documents, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs billing.Documents
	for _, q := range m.quotes {
		if q.SessionID == sessionID {
			docs.Quotes = append(docs.Quotes, q)
		}
	}
	for _, inv := range m.invoices {
		if inv.SessionID == sessionID {
			docs.Invoices = append(docs.Invoices, inv)
		}
	}
	for _, cn := range m.creditNotes {
		if cn.SessionID == sessionID {
			docs.CreditNotes = append(docs.CreditNotes, cn)
		}
	}
	sort.Slice(docs.Quotes, func(i, j int) bool { return headerLess(docs.Quotes[i].Header, docs.Quotes[j].Header) })
	sort.Slice(docs.Invoices, func(i, j int) bool { return headerLess(docs.Invoices[i].Header, docs.Invoices[j].Header) })
	sort.Slice(docs.CreditNotes, func(i, j int) bool { return headerLess(docs.CreditNotes[i].Header, docs.CreditNotes[j].Header) })
	return docs, nil
}

func headerLess(a, b billing.Header) bool {
	if !a.IssuedAt.Equal(b.IssuedAt) {
		return a.IssuedAt.Before(b.IssuedAt)
	}
	return a.ID < b.ID
}

// =============================================================================
// BUDGET (budget.Source, budget.TariffSource)
// =============================================================================

func (m *Memory) SaveEnterprise(_ context.Context, e budget.Enterprise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterprises[e.ID] = e
	return nil
}

// ListEnterprises returns all enterprises ordered by name.
func (m *Memory) ListEnterprises(_ context.Context) ([]budget.Enterprise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]budget.Enterprise, 0, len(m.enterprises))
	for _, e := range m.enterprises {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveAgency(_ context.Context, _ budget.EnterpriseID, id budget.AgencyID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agencies[id] = name
	return nil
}

func (m *Memory) SaveAgencyBudget(_ context.Context, b budget.AgencyBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b.Name = ""
	m.allocations[allocationKey{b.EnterpriseID, b.AgencyID, b.FiscalYear}] = b
	return nil
}

func (m *Memory) AgencyBudgets(_ context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) ([]budget.AgencyBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.AgencyBudget
	for k, b := range m.allocations {
		if k.EnterpriseID != enterpriseID || k.FiscalYear != fiscalYear {
			continue
		}
		b.Name = m.agencies[k.AgencyID]
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgencyID < out[j].AgencyID })
	return out, nil
}

// SavePlan upserts a plan. Only one live plan may exist per enterprise and year.
func (m *Memory) SavePlan(_ context.Context, p budget.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := generic.ValidateFiscalYear(p.FiscalYear); err != nil {
		return err
	}
	if !p.IsArchived() {
		if live := m.livePlanLocked(p.EnterpriseID, p.FiscalYear); live != nil && live.ID != p.ID {
			return fmt.Errorf("%w: enterprise %s already has a live plan for %d", generic.ErrInvalidInput, p.EnterpriseID, p.FiscalYear)
		}
	}
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) livePlanLocked(enterpriseID budget.EnterpriseID, fiscalYear int) *budget.Plan {
	for _, p := range m.plans {
		if p.EnterpriseID == enterpriseID && p.FiscalYear == fiscalYear && !p.IsArchived() {
			return &p
		}
	}
	return nil
}

// Plan returns the live plan of the year, or nil when none exists.
func (m *Memory) Plan(_ context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) (*budget.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.enterprises[enterpriseID]; !ok {
		return nil, &generic.NotFoundError{Kind: "enterprise", ID: string(enterpriseID)}
	}
	return m.livePlanLocked(enterpriseID, fiscalYear), nil
}

func (m *Memory) GetPlan(_ context.Context, id budget.PlanID) (*budget.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "plan", ID: string(id)}
	}
	return &p, nil
}

// ArchivePlan soft-deletes a plan and detaches its needs atomically.
func (m *Memory) ArchivePlan(_ context.Context, id budget.PlanID, at time.Time) (budget.ArchiveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[id]
	if !ok {
		return budget.ArchiveResult{}, &generic.NotFoundError{Kind: "plan", ID: string(id)}
	}

	var linked []budget.TrainingNeed
	for _, n := range m.needs {
		if n.PlanID == id {
			linked = append(linked, n)
		}
	}
	sort.Slice(linked, func(i, j int) bool { return linked[i].ID < linked[j].ID })

	res, err := budget.ArchivePlan(p, linked, at)
	if err != nil {
		return budget.ArchiveResult{}, err
	}

	m.plans[id] = res.Plan
	for _, n := range res.Detached {
		m.needs[n.ID] = n
	}
	return res, nil
}

func (m *Memory) SaveTrainingNeed(_ context.Context, n budget.TrainingNeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needs[n.ID] = n
	return nil
}

func (m *Memory) TrainingNeeds(_ context.Context, enterpriseID budget.EnterpriseID, fiscalYear int) ([]budget.TrainingNeed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.TrainingNeed
	for _, n := range m.needs {
		if n.EnterpriseID == enterpriseID && n.FiscalYear == fiscalYear {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveProduct is a no-op: products only exist through their tariffs here.
func (m *Memory) SaveProduct(_ context.Context, _ budget.ProductID, _ string) error { return nil }

// SaveTariff upserts a tariff. Only one default tariff may exist per product.
func (m *Memory) SaveTariff(_ context.Context, t budget.Tariff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.IsDefault {
		for _, other := range m.tariffs {
			if other.ID != t.ID && other.ProductID == t.ProductID && other.IsDefault {
				return fmt.Errorf("%w: product %s already has a default tariff", generic.ErrInvalidInput, t.ProductID)
			}
		}
	}
	m.tariffs[t.ID] = t
	return nil
}

// DefaultTariffs resolves the default tariff of every requested product.
// Each call counts as one lookup.
func (m *Memory) DefaultTariffs(_ context.Context, productIDs []budget.ProductID) (budget.Prices, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tariffLookups++

	wanted := make(map[budget.ProductID]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var rows []budget.Tariff
	for _, t := range m.tariffs {
		if wanted[t.ProductID] {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return budget.SelectDefaultTariffs(rows), nil
}

// TariffLookups returns how many DefaultTariffs calls were served.
func (m *Memory) TariffLookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tariffLookups
}

// =============================================================================
// SCHEDULE (schedule.SlotStore)
// =============================================================================

func (m *Memory) SaveTrainer(_ context.Context, id schedule.TrainerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainers[id] = name
	return nil
}

func (m *Memory) SaveRoom(_ context.Context, id schedule.RoomID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[id] = name
	return nil
}

// SaveSlot upserts a slot. Display names are resolved on read. A slot id
// held by another organization is reported as not found.
func (m *Memory) SaveSlot(_ context.Context, slot schedule.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slot.Interval().Valid() {
		return &generic.InvalidIntervalError{Date: slot.Date, Interval: slot.Interval()}
	}
	if existing, ok := m.slots[slot.ID]; ok && existing.OrganizationID != slot.OrganizationID {
		return &generic.NotFoundError{Kind: "slot", ID: string(slot.ID)}
	}
	slot.Session.Name = ""
	slot.TrainerName = ""
	slot.RoomName = ""
	m.slots[slot.ID] = slot
	return nil
}

// GetSlot returns one slot with its display names.
func (m *Memory) GetSlot(_ context.Context, id schedule.SlotID) (*schedule.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sl, ok := m.slots[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "slot", ID: string(id)}
	}
	sl.Session.Name = m.sessions[sl.Session.ID].Name
	sl.TrainerName = m.trainers[sl.TrainerID]
	sl.RoomName = m.rooms[sl.RoomID]
	return &sl, nil
}

// SlotsOn returns the slots of an organization on one date, ordered by start.
func (m *Memory) SlotsOn(_ context.Context, organizationID generic.OrganizationID, date generic.TimePoint) ([]schedule.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.Slot
	for _, sl := range m.slots {
		if sl.OrganizationID != organizationID || !sl.Date.Equal(date) {
			continue
		}
		sl.Session.Name = m.sessions[sl.Session.ID].Name
		sl.TrainerName = m.trainers[sl.TrainerID]
		sl.RoomName = m.rooms[sl.RoomID]
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
