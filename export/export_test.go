package export_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/export"
	"github.com/warp/formation-engine/money"
	"github.com/xuri/excelize/v2"
)

func eur(v float64) money.Money { return money.New(v) }

func TestPipelineWorkbook(t *testing.T) {
	// GIVEN: One sponsor with the worked example documents and a stray quote
	// WHEN: Rendering the workbook
	// THEN: Sponsor row, total row and an unattributed sheet are written

	p := billing.Aggregate(billing.Input{
		SessionID: "sess-1",
		Sponsors: []billing.Sponsor{{
			ID: "s1", Company: &billing.Party{ID: "acme", Name: "Acme"}, Budget: eur(10000),
		}},
		Documents: billing.Documents{
			Quotes: []billing.Quote{
				{Header: billing.Header{ID: "q1", SponsorID: "s1", TotalAfterTax: eur(7200)}},
				{Header: billing.Header{ID: "q2", Number: "D-009", SponsorID: "ghost", TotalAfterTax: eur(99)}},
			},
			Invoices:    []billing.Invoice{{Header: billing.Header{ID: "i1", SponsorID: "s1", TotalAfterTax: eur(6000)}, AmountPaid: eur(2000)}},
			CreditNotes: []billing.CreditNote{{Header: billing.Header{ID: "c1", SponsorID: "s1", TotalAfterTax: eur(500)}}},
		},
	})

	f, err := export.PipelineWorkbook(p)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Sponsors", "Unattributed"}, f.GetSheetList())

	rows, err := f.GetRows("Sponsors")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Remaining to collect", rows[0][7])
	assert.Equal(t, []string{"Acme", "10000", "7200", "6000", "2000", "500", "4000", "3500"}, rows[1])
	assert.Equal(t, "Total", rows[2][0])

	loose, err := f.GetRows("Unattributed")
	require.NoError(t, err)
	require.Len(t, loose, 2)
	assert.Equal(t, []string{"quote", "D-009", "ghost", "99"}, loose[1])
}

func TestPipelineWorkbook_NoUnattributedSheet(t *testing.T) {
	f, err := export.PipelineWorkbook(billing.Aggregate(billing.Input{SessionID: "empty"}))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Sponsors"}, f.GetSheetList())
}

func TestBudgetWorkbook(t *testing.T) {
	scope := budget.Scope{
		EnterpriseID: "ent-1",
		FiscalYear:   2025,
		Plan:         &budget.Plan{ID: "p1", Name: "Plan 2025", AllocatedTotal: eur(1000)},
		Needs: []budget.TrainingNeed{
			{ID: "n1", PlanID: "p1", ProductID: "excel", AgencyID: "ag-lyon"},
		},
		Agencies: []budget.AgencyBudget{{AgencyID: "ag-lyon", Name: "Lyon", Allocated: eur(1000)}},
		Prices:   budget.Prices{"excel": eur(900)},
	}
	threshold := decimal.NewFromInt(80)

	f, err := export.BudgetWorkbook(budget.ComputeAnnual(scope), budget.ComputeByAgency(scope, threshold))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Annual", "Agencies", "Alerts"}, f.GetSheetList())

	annual, err := f.GetRows("Annual")
	require.NoError(t, err)
	assert.Equal(t, []string{"Plan", "Plan 2025"}, annual[2])
	assert.Equal(t, []string{"Plan engaged", "900"}, annual[4])

	agencies, err := f.GetRows("Agencies")
	require.NoError(t, err)
	require.Len(t, agencies, 3, "header, Lyon, global")
	assert.Equal(t, "Lyon", agencies[1][0])
	assert.Equal(t, "90", agencies[1][6])
	assert.Equal(t, "Global", agencies[2][0])

	alerts, err := f.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, alerts, 3, "agency then global vigilance")
	assert.Equal(t, []string{"agency", "vigilance", "Lyon"}, alerts[1][:3])
	assert.Equal(t, "global", alerts[2][0])

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	reopened, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Len(t, reopened.GetSheetList(), 3)
}
