package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/money"
)

func agencyRow(allocated, engaged float64) budget.AgencyRow {
	r := budget.AgencyRow{AgencyID: "ag-1", Name: "Lyon", Allocated: eur(allocated), Engaged: eur(engaged)}
	r.Remaining = r.Allocated.Sub(r.Engaged)
	r.ConsumptionPercent = money.Percent(r.Engaged, r.Allocated)
	return r
}

func TestEvaluate_BudgetAlertExample(t *testing.T) {
	// GIVEN: Agency allocated 1000, threshold 80%
	// WHEN: Engaged is 850, then 1100
	// THEN: Vigilance at 85%, then overspend with remaining -100

	vigilance := budget.Evaluate(agencyRow(1000, 850), pct(80))
	require.NotNil(t, vigilance)
	assert.Equal(t, budget.LevelVigilance, vigilance.Level)
	assert.Equal(t, budget.ScopeAgency, vigilance.Scope)
	assert.True(t, vigilance.Percentage.Equal(pct(85)), "got %s", vigilance.Percentage)

	overspend := budget.Evaluate(agencyRow(1000, 1100), pct(80))
	require.NotNil(t, overspend)
	assert.Equal(t, budget.LevelOverspend, overspend.Level)
	assertMoney(t, -100, overspend.Remaining, "Remaining")
}

func TestEvaluate_Thresholds(t *testing.T) {
	cases := []struct {
		name      string
		allocated float64
		engaged   float64
		want      budget.AlertLevel // empty = no alert
	}{
		{"below threshold", 1000, 799, ""},
		{"exactly at threshold", 1000, 800, budget.LevelVigilance},
		{"exactly fully consumed", 1000, 1000, budget.LevelVigilance},
		{"one cent over", 1000, 1000.01, budget.LevelOverspend},
		{"zero allocation zero spend", 0, 0, ""},
		{"zero allocation with spend", 0, 10, budget.LevelOverspend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := budget.Evaluate(agencyRow(tc.allocated, tc.engaged), pct(80))
			if tc.want == "" {
				assert.Nil(t, a)
				return
			}
			require.NotNil(t, a)
			assert.Equal(t, tc.want, a.Level)
		})
	}
}

func TestEvaluate_ZeroAllocationPercentIsZero(t *testing.T) {
	r := agencyRow(0, 0)
	assert.True(t, r.ConsumptionPercent.IsZero())

	a := budget.Evaluate(agencyRow(0, 25), pct(80))
	require.NotNil(t, a)
	assert.True(t, a.Percentage.IsZero())
	assertMoney(t, -25, a.Remaining, "Remaining")
}

func TestEvaluateAlerts_RowsAreIndependent(t *testing.T) {
	// GIVEN: Lyon at 90% of its allocation, the enterprise at 45% globally
	// THEN: Lyon raises vigilance; the global row raises nothing
	// AND: when the global row crosses too, both alerts fire

	lyon := agencyRow(1000, 900)
	quiet := budget.AgencyRow{Name: "Global", Global: true, Allocated: eur(2000), Engaged: eur(900)}
	quiet.Remaining = quiet.Allocated.Sub(quiet.Engaged)
	quiet.ConsumptionPercent = money.Percent(quiet.Engaged, quiet.Allocated)

	alerts := budget.EvaluateAlerts([]budget.AgencyRow{lyon}, quiet, pct(80))
	require.Len(t, alerts, 1)
	assert.Equal(t, budget.ScopeAgency, alerts[0].Scope)

	hot := quiet
	hot.Allocated = eur(1000)
	hot.Remaining = hot.Allocated.Sub(hot.Engaged)
	hot.ConsumptionPercent = money.Percent(hot.Engaged, hot.Allocated)

	alerts = budget.EvaluateAlerts([]budget.AgencyRow{lyon}, hot, pct(80))
	require.Len(t, alerts, 2)
	assert.Equal(t, budget.ScopeAgency, alerts[0].Scope)
	assert.Equal(t, budget.ScopeGlobal, alerts[1].Scope)
	assert.Equal(t, budget.LevelVigilance, alerts[1].Level)
}

func TestComputeByAgency_AlertsUseGivenThreshold(t *testing.T) {
	s := budget.Scope{
		Agencies: []budget.AgencyBudget{{AgencyID: "ag-1", Name: "Lyon", Allocated: eur(1000)}},
		Needs:    []budget.TrainingNeed{oneOffNeed("n1", "excel", "ag-1")},
		Prices:   prices,
	}

	assert.Empty(t, budget.ComputeByAgency(s, pct(80)).Alerts, "45% is under 80%")

	alerts := budget.ComputeByAgency(s, pct(40)).Alerts
	require.Len(t, alerts, 2, "agency and global both cross 40%")
	assert.Equal(t, budget.AgencyID("ag-1"), alerts[0].AgencyID)
	assert.True(t, alerts[0].Threshold.Equal(pct(40)))
}
