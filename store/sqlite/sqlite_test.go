package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
	"github.com/warp/formation-engine/schedule"
	"github.com/warp/formation-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func eur(v float64) money.Money { return money.New(v) }

var t0 = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// =============================================================================
// BILLING
// =============================================================================

func seedBilling(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, generic.Session{ID: "sess-1", OrganizationID: "org-1", Name: "Excel avancé"}))
	require.NoError(t, store.SaveSponsor(ctx, billing.Sponsor{
		ID: "s2", SessionID: "sess-1",
		Financer:    &billing.Party{ID: "opco", Name: "OPCO Atlas"},
		Budget:      eur(3000),
		Subrogation: billing.SubrogationFinancer,
		CreatedAt:   t0.Add(time.Hour),
	}))
	require.NoError(t, store.SaveSponsor(ctx, billing.Sponsor{
		ID: "s1", SessionID: "sess-1",
		Company:        &billing.Party{ID: "acme", Name: "Acme"},
		Contact:        &billing.Party{ID: "jm", Name: "Jeanne Martin"},
		Budget:         eur(10000),
		Subrogation:    billing.SubrogationCompany,
		InvoiceCompany: true,
		CreatedAt:      t0,
	}))

	down := decimal.NewFromInt(30)
	require.NoError(t, store.SaveQuote(ctx, billing.Quote{
		Header: billing.Header{ID: "q-1", Number: "D-001", SessionID: "sess-1", SponsorID: "s1", TotalAfterTax: eur(7200)},
		Status: billing.QuoteSigned,
	}))
	require.NoError(t, store.SaveInvoice(ctx, billing.Invoice{
		Header:             billing.Header{ID: "inv-1", Number: "F-001", SessionID: "sess-1", SponsorID: "s1", TotalBeforeTax: eur(5000), TotalAfterTax: eur(6000), IssuedAt: t0},
		Status:             billing.InvoicePartiallyPaid,
		AmountPaid:         eur(2000),
		DownPaymentPercent: &down,
	}))
	require.NoError(t, store.SaveCreditNote(ctx, billing.CreditNote{
		Header:    billing.Header{ID: "cn-1", Number: "A-001", SessionID: "sess-1", TotalAfterTax: eur(500), IssuedAt: t0.Add(24 * time.Hour)},
		Status:    billing.CreditNoteIssued,
		InvoiceID: "inv-1",
	}))
}

func TestStore_SessionSponsors(t *testing.T) {
	store := newStore(t)
	seedBilling(t, store)

	sponsors, err := store.SessionSponsors(context.Background(), "sess-1")

	require.NoError(t, err)
	require.Len(t, sponsors, 2)
	assert.Equal(t, billing.SponsorID("s1"), sponsors[0].ID, "creation order")

	s1 := sponsors[0]
	require.NotNil(t, s1.Company)
	assert.Equal(t, "Acme", s1.Company.Name)
	require.NotNil(t, s1.Contact)
	assert.Equal(t, "Jeanne Martin", s1.Contact.Name)
	assert.Nil(t, s1.Financer)
	assert.True(t, eur(10000).Equal(s1.Budget))
	assert.True(t, s1.InvoiceCompany)

	s2 := sponsors[1]
	assert.Nil(t, s2.Company)
	assert.Equal(t, billing.SubrogationFinancer, s2.Subrogation)
}

func TestStore_SessionSponsors_UnknownSession(t *testing.T) {
	store := newStore(t)

	_, err := store.SessionSponsors(context.Background(), "nope")

	assert.True(t, generic.IsNotFound(err))
}

func TestStore_SessionDocuments(t *testing.T) {
	store := newStore(t)
	seedBilling(t, store)

	docs, err := store.SessionDocuments(context.Background(), "sess-1")

	require.NoError(t, err)
	require.Len(t, docs.Quotes, 1)
	require.Len(t, docs.Invoices, 1)
	require.Len(t, docs.CreditNotes, 1)

	inv := docs.Invoices[0]
	assert.Equal(t, billing.InvoicePartiallyPaid, inv.Status)
	assert.True(t, eur(2000).Equal(inv.AmountPaid))
	require.NotNil(t, inv.DownPaymentPercent)
	assert.True(t, inv.DownPaymentPercent.Equal(decimal.NewFromInt(30)))
	assert.True(t, inv.IssuedAt.Equal(t0))

	cn := docs.CreditNotes[0]
	assert.False(t, cn.HasSponsor())
	assert.Equal(t, billing.DocumentID("inv-1"), cn.InvoiceID)
}

func TestStore_PipelineEndToEnd(t *testing.T) {
	// GIVEN: The worked example persisted in SQLite
	// WHEN: Running the pipeline calculator over the store
	// THEN: The credit note reaches s1 through its invoice

	store := newStore(t)
	seedBilling(t, store)

	p, err := (&billing.PipelineCalculator{Source: store}).Calculate(context.Background(), "sess-1")

	require.NoError(t, err)
	s1 := p.Sponsors[0]
	assert.True(t, eur(4000).Equal(s1.RemainingToInvoice))
	assert.True(t, eur(3500).Equal(s1.RemainingToCollect))
	assert.True(t, eur(13000).Equal(p.Totals.Budget))
}

// =============================================================================
// BUDGET
// =============================================================================

func seedBudget(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	threshold := decimal.NewFromInt(75)
	require.NoError(t, store.SaveEnterprise(ctx, budget.Enterprise{ID: "ent-1", Name: "Acme"}))
	require.NoError(t, store.SaveAgency(ctx, "ent-1", "ag-lyon", "Lyon"))
	require.NoError(t, store.SaveAgencyBudget(ctx, budget.AgencyBudget{EnterpriseID: "ent-1", AgencyID: "ag-lyon", FiscalYear: 2025, Allocated: eur(1000)}))
	require.NoError(t, store.SaveAgencyBudget(ctx, budget.AgencyBudget{EnterpriseID: "ent-1", FiscalYear: 2025, Allocated: eur(5000)}))
	require.NoError(t, store.SavePlan(ctx, budget.Plan{ID: "plan-2025", EnterpriseID: "ent-1", FiscalYear: 2025, AllocatedTotal: eur(6000), VigilanceThreshold: &threshold}))

	require.NoError(t, store.SaveProduct(ctx, "excel", "Excel"))
	require.NoError(t, store.SaveProduct(ctx, "safety", "Safety"))
	require.NoError(t, store.SaveTariff(ctx, budget.Tariff{ID: "t1", ProductID: "excel", Price: eur(850), IsDefault: true}))
	require.NoError(t, store.SaveTariff(ctx, budget.Tariff{ID: "t2", ProductID: "excel", Price: eur(990)}))
	require.NoError(t, store.SaveTariff(ctx, budget.Tariff{ID: "t3", ProductID: "safety", Price: eur(300)}))

	require.NoError(t, store.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n1", EnterpriseID: "ent-1", FiscalYear: 2025, PlanID: "plan-2025", ProductID: "excel", AgencyID: "ag-lyon"}))
	require.NoError(t, store.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n2", EnterpriseID: "ent-1", FiscalYear: 2025, PlanID: "plan-2025", ProductID: "safety"}))
	require.NoError(t, store.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n3", EnterpriseID: "ent-1", FiscalYear: 2025, OneOff: true, ProductID: "excel"}))
	require.NoError(t, store.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n4", EnterpriseID: "ent-1", FiscalYear: 2024, OneOff: true, ProductID: "excel"}))
}

func TestStore_DefaultTariffs(t *testing.T) {
	store := newStore(t)
	seedBudget(t, store)

	prices, err := store.DefaultTariffs(context.Background(), []budget.ProductID{"excel", "safety", "unknown"})

	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, eur(850).Equal(prices["excel"]))
}

func TestStore_SecondDefaultTariffRejected(t *testing.T) {
	store := newStore(t)
	seedBudget(t, store)

	err := store.SaveTariff(context.Background(), budget.Tariff{ID: "t9", ProductID: "excel", Price: eur(1), IsDefault: true})

	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestStore_ConsolidationEndToEnd(t *testing.T) {
	store := newStore(t)
	seedBudget(t, store)
	c := &budget.Consolidator{Source: store, Tariffs: store}
	ctx := context.Background()

	annual, err := c.Annual(ctx, "ent-1", 2025)
	require.NoError(t, err)
	assert.True(t, eur(850).Equal(annual.PlanEngaged))
	assert.Equal(t, budget.Counts{NeedCount: 2, UnpricedCount: 1}, annual.PlanNeeds)
	assert.True(t, eur(850).Equal(annual.PunctualTotal))

	view, err := c.ByAgency(ctx, "ent-1", 2025, nil)
	require.NoError(t, err)
	assert.True(t, view.Threshold.Equal(decimal.NewFromInt(75)), "plan threshold applies")
	require.Len(t, view.Rows, 2)
	assert.True(t, view.Rows[0].HeadOffice)
	assert.Equal(t, "Lyon", view.Rows[1].Name)
	require.Len(t, view.Alerts, 1)
	assert.Equal(t, budget.LevelVigilance, view.Alerts[0].Level)
	assert.Equal(t, budget.AgencyID("ag-lyon"), view.Alerts[0].AgencyID)
}

func TestStore_Plan_UnknownEnterprise(t *testing.T) {
	store := newStore(t)

	_, err := store.Plan(context.Background(), "ghost", 2025)

	assert.True(t, generic.IsNotFound(err))
}

func TestStore_ArchivePlan(t *testing.T) {
	// GIVEN: A live plan with two linked needs
	// WHEN: Archiving it
	// THEN: The plan is no longer live and its needs are one-off

	store := newStore(t)
	seedBudget(t, store)
	ctx := context.Background()
	at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	res, err := store.ArchivePlan(ctx, "plan-2025", at)
	require.NoError(t, err)
	assert.Len(t, res.Detached, 2)

	live, err := store.Plan(ctx, "ent-1", 2025)
	require.NoError(t, err)
	assert.Nil(t, live)

	archived, err := store.GetPlan(ctx, "plan-2025")
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)
	assert.True(t, archived.ArchivedAt.Equal(at))

	needs, err := store.TrainingNeeds(ctx, "ent-1", 2025)
	require.NoError(t, err)
	for _, n := range needs {
		assert.True(t, n.IsOneOff(), "need %s", n.ID)
	}

	_, err = store.ArchivePlan(ctx, "plan-2025", at)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	_, err = store.ArchivePlan(ctx, "missing", at)
	assert.True(t, generic.IsNotFound(err))

	// A new live plan can now be created for the same year
	assert.NoError(t, store.SavePlan(ctx, budget.Plan{ID: "plan-2025b", EnterpriseID: "ent-1", FiscalYear: 2025, AllocatedTotal: eur(100)}))
}

func TestStore_SecondLivePlanRejected(t *testing.T) {
	store := newStore(t)
	seedBudget(t, store)

	err := store.SavePlan(context.Background(), budget.Plan{ID: "other", EnterpriseID: "ent-1", FiscalYear: 2025})

	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestStore_Slots(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	day := generic.NewTimePoint(2025, time.March, 10)

	require.NoError(t, store.SaveSession(ctx, generic.Session{ID: "sess-1", OrganizationID: "org-1", Name: "Excel"}))
	require.NoError(t, store.SaveTrainer(ctx, "tr-1", "Alice Martin"))
	require.NoError(t, store.SaveRoom(ctx, "room-1", "Salle Rhône"))

	existing := schedule.Slot{
		ID: "slot-1", OrganizationID: "org-1", Session: generic.SessionRef{ID: "sess-1"},
		Date: day, Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(12, 0),
		Modality: schedule.ModalityInPerson, TrainerID: "tr-1", RoomID: "room-1",
	}
	require.NoError(t, store.SaveSlot(ctx, existing))

	other := existing
	other.ID = "slot-2"
	other.Date = day.AddDays(1)
	require.NoError(t, store.SaveSlot(ctx, other))

	slots, err := store.SlotsOn(ctx, "org-1", day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Excel", slots[0].Session.Name)
	assert.Equal(t, "Alice Martin", slots[0].TrainerName)
	assert.Equal(t, "Salle Rhône", slots[0].RoomName)
	assert.True(t, slots[0].Date.Equal(day))

	// Guarded booking through the store, without redis
	b := &schedule.Booker{Store: store}
	res, err := b.Book(ctx, schedule.Slot{
		ID: "slot-3", OrganizationID: "org-1", Session: generic.SessionRef{ID: "sess-1"},
		Date: day, Start: generic.NewClockTime(11, 0), End: generic.NewClockTime(13, 0),
		Modality: schedule.ModalityRemote, TrainerID: "tr-1",
	}, false)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Alice Martin", res.Conflicts[0].PartyName)

	slots, err = store.SlotsOn(ctx, "org-1", day)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestStore_SaveSlot_KeepsOwnerOrganization(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	day := generic.NewTimePoint(2025, time.March, 10)

	require.NoError(t, store.SaveSession(ctx, generic.Session{ID: "sess-a", OrganizationID: "org-a", Name: "Excel"}))
	require.NoError(t, store.SaveSession(ctx, generic.Session{ID: "sess-b", OrganizationID: "org-b", Name: "Word"}))

	slot := schedule.Slot{
		ID: "slot-x", OrganizationID: "org-a", Session: generic.SessionRef{ID: "sess-a"},
		Date: day, Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(12, 0),
		Modality: schedule.ModalityRemote,
	}
	require.NoError(t, store.SaveSlot(ctx, slot))

	// Same id written from another organization
	stolen := slot
	stolen.OrganizationID = "org-b"
	stolen.Session = generic.SessionRef{ID: "sess-b"}
	err := store.SaveSlot(ctx, stolen)
	assert.True(t, generic.IsNotFound(err), "got %v", err)

	slots, err := store.SlotsOn(ctx, "org-a", day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, generic.SessionID("sess-a"), slots[0].Session.ID)

	slots, err = store.SlotsOn(ctx, "org-b", day)
	require.NoError(t, err)
	assert.Empty(t, slots)

	got, err := store.GetSlot(ctx, "slot-x")
	require.NoError(t, err)
	assert.Equal(t, generic.OrganizationID("org-a"), got.OrganizationID)
	assert.Equal(t, "Excel", got.Session.Name)

	_, err = store.GetSlot(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}
