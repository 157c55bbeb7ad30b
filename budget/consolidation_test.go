package budget_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func eur(v float64) money.Money { return money.New(v) }

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertMoney(t *testing.T, want float64, got money.Money, field string) {
	t.Helper()
	assert.True(t, eur(want).Equal(got), "%s: expected %v, got %v", field, want, got)
}

func plan(allocated float64) *budget.Plan {
	return &budget.Plan{ID: "plan-2025", EnterpriseID: "ent-1", FiscalYear: 2025, AllocatedTotal: eur(allocated)}
}

func planNeed(id, product, agency string) budget.TrainingNeed {
	return budget.TrainingNeed{
		ID: budget.NeedID(id), EnterpriseID: "ent-1", FiscalYear: 2025,
		PlanID: "plan-2025", ProductID: budget.ProductID(product), AgencyID: budget.AgencyID(agency),
	}
}

func oneOffNeed(id, product, agency string) budget.TrainingNeed {
	return budget.TrainingNeed{
		ID: budget.NeedID(id), EnterpriseID: "ent-1", FiscalYear: 2025,
		OneOff: true, ProductID: budget.ProductID(product), AgencyID: budget.AgencyID(agency),
	}
}

var prices = budget.Prices{
	"excel":  eur(450),
	"safety": eur(1200.5),
	"lead":   eur(2000),
}

// =============================================================================
// ANNUAL VIEW
// =============================================================================

func TestComputeAnnual_PlanAndOneOff(t *testing.T) {
	// GIVEN: A 10000 plan with two priced needs and one unpriced need,
	//        plus two one-off needs (one priced, one with no default tariff)
	// WHEN: Computing the annual view
	// THEN: Unpriced needs are counted but contribute zero

	a := budget.ComputeAnnual(budget.Scope{
		EnterpriseID: "ent-1",
		FiscalYear:   2025,
		Plan:         plan(10000),
		Needs: []budget.TrainingNeed{
			planNeed("n1", "excel", ""),
			planNeed("n2", "safety", "ag-lyon"),
			planNeed("n3", "", ""),
			oneOffNeed("n4", "lead", ""),
			oneOffNeed("n5", "no-default", ""),
		},
		Prices: prices,
	})

	assertMoney(t, 1650.5, a.PlanEngaged, "PlanEngaged")
	assertMoney(t, 8349.5, a.PlanRemaining, "PlanRemaining")
	assertMoney(t, 2000, a.PunctualTotal, "PunctualTotal")
	assertMoney(t, 3650.5, a.TotalSpend, "TotalSpend")
	assert.Equal(t, budget.Counts{NeedCount: 3, UnpricedCount: 1}, a.PlanNeeds)
	assert.Equal(t, budget.Counts{NeedCount: 2, UnpricedCount: 1}, a.PunctualNeeds)
	assert.True(t, a.PlanConsumption.Equal(decimal.RequireFromString("16.51")), "got %s", a.PlanConsumption)
}

func TestComputeAnnual_NeedWithoutPlanIsOneOff(t *testing.T) {
	// A need with no plan reference is one-off even without the flag
	need := planNeed("n1", "excel", "")
	need.PlanID = ""

	a := budget.ComputeAnnual(budget.Scope{Plan: plan(1000), Needs: []budget.TrainingNeed{need}, Prices: prices})

	assert.True(t, a.PlanEngaged.IsZero())
	assertMoney(t, 450, a.PunctualTotal, "PunctualTotal")
}

func TestComputeAnnual_NoPlan(t *testing.T) {
	// GIVEN: No live plan for the year; a need still references an old plan
	// THEN: Everything is out-of-plan and consumption is zero, not an error

	a := budget.ComputeAnnual(budget.Scope{
		Needs:  []budget.TrainingNeed{planNeed("n1", "excel", ""), oneOffNeed("n2", "lead", "")},
		Prices: prices,
	})

	assert.Nil(t, a.Plan)
	assert.True(t, a.PlanAllocated.IsZero())
	assert.True(t, a.PlanConsumption.IsZero())
	assertMoney(t, 2450, a.PunctualTotal, "PunctualTotal")
	assertMoney(t, 2450, a.TotalSpend, "TotalSpend")
}

// =============================================================================
// PER-AGENCY VIEW
// =============================================================================

func TestComputeByAgency_Buckets(t *testing.T) {
	// GIVEN: Budgets for head office, Lyon and Annecy; needs on Lyon, on no
	//        agency, and on an agency with no budget row
	// WHEN: Computing the per-agency view
	// THEN: Head office comes first, agencies follow by name, and the global
	//       row sums every row

	s := budget.Scope{
		EnterpriseID: "ent-1",
		FiscalYear:   2025,
		Plan:         plan(10000),
		Agencies: []budget.AgencyBudget{
			{AgencyID: "ag-lyon", Name: "Lyon", Allocated: eur(3000)},
			{AgencyID: budget.HeadOfficeID, Allocated: eur(5000)},
			{AgencyID: "ag-annecy", Name: "Annecy", Allocated: eur(1000)},
		},
		Needs: []budget.TrainingNeed{
			planNeed("n1", "excel", "ag-lyon"),
			oneOffNeed("n2", "safety", "ag-lyon"),
			planNeed("n3", "lead", ""),
			oneOffNeed("n4", "excel", "ag-ghost"),
			planNeed("n5", "", "ag-lyon"),
		},
		Prices: prices,
	}

	v := budget.ComputeByAgency(s, pct(80))

	require.Len(t, v.Rows, 4)
	names := []string{v.Rows[0].Name, v.Rows[1].Name, v.Rows[2].Name, v.Rows[3].Name}
	assert.Equal(t, []string{budget.HeadOfficeName, "Annecy", "Lyon", "ag-ghost"}, names)

	head := v.Rows[0]
	assert.True(t, head.HeadOffice)
	assertMoney(t, 2000, head.Engaged, "head office engaged")
	assertMoney(t, 3000, head.Remaining, "head office remaining")

	annecy := v.Rows[1]
	assert.True(t, annecy.Engaged.IsZero())
	assert.True(t, annecy.ConsumptionPercent.IsZero())

	lyon := v.Rows[2]
	assertMoney(t, 450, lyon.PlanEngaged, "lyon plan")
	assertMoney(t, 1200.5, lyon.PunctualEngaged, "lyon one-off")
	assertMoney(t, 1650.5, lyon.Engaged, "lyon engaged")
	assert.Equal(t, 3, lyon.NeedCount)
	assert.Equal(t, 1, lyon.UnpricedCount)

	ghost := v.Rows[3]
	assert.False(t, ghost.Budgeted)
	assert.True(t, ghost.Allocated.IsZero())
	assertMoney(t, -450, ghost.Remaining, "ghost remaining")

	assert.True(t, v.Global.Global)
	assertMoney(t, 9000, v.Global.Allocated, "global allocated")
	assertMoney(t, 4100.5, v.Global.Engaged, "global engaged")
	assert.Equal(t, 5, v.Global.NeedCount)

	annual := budget.ComputeAnnual(s)
	assert.True(t, annual.TotalSpend.Equal(v.Global.Engaged), "annual total spend equals the global row")
}

func TestComputeByAgency_GlobalIsSumOfRows(t *testing.T) {
	s := budget.Scope{
		Agencies: []budget.AgencyBudget{
			{AgencyID: "a", Name: "A", Allocated: eur(100.01)},
			{AgencyID: "b", Name: "B", Allocated: eur(200.02)},
		},
		Needs: []budget.TrainingNeed{
			oneOffNeed("n1", "excel", "a"),
			oneOffNeed("n2", "safety", "b"),
			oneOffNeed("n3", "safety", "b"),
			oneOffNeed("n4", "lead", ""),
		},
		Prices: prices,
	}

	v := budget.ComputeByAgency(s, pct(80))

	allocated, engaged, remaining := money.Zero(), money.Zero(), money.Zero()
	for _, r := range v.Rows {
		allocated = allocated.Add(r.Allocated)
		engaged = engaged.Add(r.Engaged)
		remaining = remaining.Add(r.Remaining)
	}
	assert.True(t, allocated.Equal(v.Global.Allocated))
	assert.True(t, engaged.Equal(v.Global.Engaged))
	assert.True(t, remaining.Equal(v.Global.Remaining))
}

func TestComputeByAgency_EmptyScope(t *testing.T) {
	v := budget.ComputeByAgency(budget.Scope{}, pct(80))

	assert.Empty(t, v.Rows)
	assert.True(t, v.Global.Engaged.IsZero())
	assert.True(t, v.Global.ConsumptionPercent.IsZero())
	assert.Empty(t, v.Alerts)
}
