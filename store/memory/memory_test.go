package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
	"github.com/warp/formation-engine/schedule"
	"github.com/warp/formation-engine/store/memory"
)

func eur(v float64) money.Money { return money.New(v) }

func TestMemory_SponsorsInCreationOrder(t *testing.T) {
	m := memory.NewMemory()
	ctx := context.Background()
	t0 := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveSession(ctx, generic.Session{ID: "sess-1", OrganizationID: "org-1"}))
	require.NoError(t, m.SaveSponsor(ctx, billing.Sponsor{ID: "late", SessionID: "sess-1", CreatedAt: t0.Add(time.Hour)}))
	require.NoError(t, m.SaveSponsor(ctx, billing.Sponsor{ID: "early", SessionID: "sess-1", CreatedAt: t0}))
	require.NoError(t, m.SaveSponsor(ctx, billing.Sponsor{ID: "other", SessionID: "sess-2", CreatedAt: t0}))

	sponsors, err := m.SessionSponsors(ctx, "sess-1")

	require.NoError(t, err)
	require.Len(t, sponsors, 2)
	assert.Equal(t, billing.SponsorID("early"), sponsors[0].ID)
	assert.Equal(t, billing.SubrogationCompany, sponsors[0].Subrogation, "defaults to company")

	_, err = m.SessionSponsors(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestMemory_PipelineThroughCalculator(t *testing.T) {
	m := memory.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveSession(ctx, generic.Session{ID: "sess-1"}))
	require.NoError(t, m.SaveSponsor(ctx, billing.Sponsor{ID: "s1", SessionID: "sess-1", Budget: eur(10000)}))
	require.NoError(t, m.SaveQuote(ctx, billing.Quote{Header: billing.Header{ID: "q", SessionID: "sess-1", SponsorID: "s1", TotalAfterTax: eur(7200)}}))
	require.NoError(t, m.SaveInvoice(ctx, billing.Invoice{Header: billing.Header{ID: "i", SessionID: "sess-1", SponsorID: "s1", TotalAfterTax: eur(6000)}, AmountPaid: eur(2000)}))
	require.NoError(t, m.SaveCreditNote(ctx, billing.CreditNote{Header: billing.Header{ID: "c", SessionID: "sess-1", SponsorID: "s1", TotalAfterTax: eur(500)}}))

	p, err := (&billing.PipelineCalculator{Source: m}).Calculate(ctx, "sess-1")

	require.NoError(t, err)
	require.Len(t, p.Sponsors, 1)
	assert.True(t, eur(4000).Equal(p.Sponsors[0].RemainingToInvoice))
	assert.True(t, eur(3500).Equal(p.Sponsors[0].RemainingToCollect))
}

func seedBudget(t *testing.T, m *memory.Memory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, m.SaveEnterprise(ctx, budget.Enterprise{ID: "ent-1", Name: "Acme"}))
	require.NoError(t, m.SaveAgency(ctx, "ent-1", "ag-lyon", "Lyon"))
	require.NoError(t, m.SaveAgencyBudget(ctx, budget.AgencyBudget{EnterpriseID: "ent-1", AgencyID: "ag-lyon", FiscalYear: 2025, Allocated: eur(1000)}))
	require.NoError(t, m.SavePlan(ctx, budget.Plan{ID: "p1", EnterpriseID: "ent-1", FiscalYear: 2025, AllocatedTotal: eur(5000)}))
	require.NoError(t, m.SaveTariff(ctx, budget.Tariff{ID: "t1", ProductID: "excel", Price: eur(450), IsDefault: true}))
	require.NoError(t, m.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n1", EnterpriseID: "ent-1", FiscalYear: 2025, PlanID: "p1", ProductID: "excel", AgencyID: "ag-lyon"}))
	require.NoError(t, m.SaveTrainingNeed(ctx, budget.TrainingNeed{ID: "n2", EnterpriseID: "ent-1", FiscalYear: 2025, OneOff: true, ProductID: "excel"}))
}

func TestMemory_ConsolidatorUsesOneTariffLookupPerView(t *testing.T) {
	m := memory.NewMemory()
	seedBudget(t, m)
	c := &budget.Consolidator{Source: m, Tariffs: m}
	ctx := context.Background()

	annual, err := c.Annual(ctx, "ent-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TariffLookups())
	assert.True(t, eur(900).Equal(annual.TotalSpend))

	view, err := c.ByAgency(ctx, "ent-1", 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.TariffLookups())
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "Lyon", view.Rows[1].Name)
	assert.False(t, view.Rows[0].Budgeted, "head office has no allocation")
}

func TestMemory_PlanRules(t *testing.T) {
	m := memory.NewMemory()
	seedBudget(t, m)
	ctx := context.Background()

	err := m.SavePlan(ctx, budget.Plan{ID: "p2", EnterpriseID: "ent-1", FiscalYear: 2025})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	err = m.SaveTariff(ctx, budget.Tariff{ID: "t2", ProductID: "excel", IsDefault: true})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = m.Plan(ctx, "ghost", 2025)
	assert.True(t, generic.IsNotFound(err))

	res, err := m.ArchivePlan(ctx, "p1", time.Now())
	require.NoError(t, err)
	require.Len(t, res.Detached, 1)

	live, err := m.Plan(ctx, "ent-1", 2025)
	require.NoError(t, err)
	assert.Nil(t, live)

	needs, err := m.TrainingNeeds(ctx, "ent-1", 2025)
	require.NoError(t, err)
	for _, n := range needs {
		assert.True(t, n.IsOneOff())
	}
}

func TestMemory_SlotsResolveNames(t *testing.T) {
	m := memory.NewMemory()
	ctx := context.Background()
	day := generic.NewTimePoint(2025, time.March, 10)

	require.NoError(t, m.SaveSession(ctx, generic.Session{ID: "sess-1", Name: "Excel"}))
	require.NoError(t, m.SaveTrainer(ctx, "tr-1", "Alice Martin"))
	require.NoError(t, m.SaveSlot(ctx, schedule.Slot{
		ID: "b", OrganizationID: "org-1", Session: generic.SessionRef{ID: "sess-1"}, Date: day,
		Start: generic.NewClockTime(14, 0), End: generic.NewClockTime(17, 0), TrainerID: "tr-1",
	}))
	require.NoError(t, m.SaveSlot(ctx, schedule.Slot{
		ID: "a", OrganizationID: "org-1", Session: generic.SessionRef{ID: "sess-1"}, Date: day,
		Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(12, 0), TrainerID: "tr-1",
	}))

	err := m.SaveSlot(ctx, schedule.Slot{ID: "bad", Date: day, Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(9, 0)})
	assert.ErrorIs(t, err, generic.ErrInvalidInterval)

	slots, err := m.SlotsOn(ctx, "org-1", day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, schedule.SlotID("a"), slots[0].ID)
	assert.Equal(t, "Alice Martin", slots[0].TrainerName)
	assert.Equal(t, "Excel", slots[0].Session.Name)

	conflicts := schedule.Detect(schedule.Proposal{
		OrganizationID: "org-1", Date: day,
		Start: generic.NewClockTime(11, 0), End: generic.NewClockTime(15, 0), TrainerID: "tr-1",
	}, slots)
	assert.Len(t, conflicts, 2)
}

func TestMemory_SaveSlot_KeepsOwnerOrganization(t *testing.T) {
	m := memory.NewMemory()
	ctx := context.Background()
	day := generic.NewTimePoint(2025, time.March, 10)

	slot := schedule.Slot{
		ID: "slot-x", OrganizationID: "org-a", Session: generic.SessionRef{ID: "sess-a"},
		Date: day, Start: generic.NewClockTime(9, 0), End: generic.NewClockTime(12, 0),
	}
	require.NoError(t, m.SaveSlot(ctx, slot))

	stolen := slot
	stolen.OrganizationID = "org-b"
	stolen.Session = generic.SessionRef{ID: "sess-b"}
	assert.True(t, generic.IsNotFound(m.SaveSlot(ctx, stolen)))

	got, err := m.GetSlot(ctx, "slot-x")
	require.NoError(t, err)
	assert.Equal(t, generic.OrganizationID("org-a"), got.OrganizationID)
	assert.Equal(t, generic.SessionID("sess-a"), got.Session.ID)

	// The owner can still move its slot
	moved := slot
	moved.Start = generic.NewClockTime(13, 0)
	moved.End = generic.NewClockTime(14, 0)
	require.NoError(t, m.SaveSlot(ctx, moved))

	_, err = m.GetSlot(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}
