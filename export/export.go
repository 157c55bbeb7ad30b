/*
Package export renders engine views as XLSX workbooks.

WORKBOOKS:
  PipelineWorkbook:  one row per sponsor plus a session total row, and an
                     "Unattributed" sheet when documents reach no sponsor
  BudgetWorkbook:    "Annual" (plan vs punctual), "Agencies" (one row per
                     bucket plus the global row) and "Alerts"

Amounts are written as numbers so the sheets stay summable. Values come
from the engines already rounded to cents; nothing is recomputed here.
*/
package export

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/budget"
	"github.com/warp/formation-engine/money"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// BILLING PIPELINE
// =============================================================================

// PipelineWorkbook renders the pipeline of one session.
func PipelineWorkbook(p billing.Pipeline) (*excelize.File, error) {
	headings := []string{
		"Sponsor", "Budget", "Quoted", "Invoiced", "Paid", "Credited",
		"Remaining to invoice", "Remaining to collect",
	}

	rows := make([][]any, 0, len(p.Sponsors)+1)
	for _, sp := range p.Sponsors {
		rows = append(rows, []any{
			sp.Sponsor.DisplayName(),
			amount(sp.Sponsor.Budget), amount(sp.TotalQuoted), amount(sp.TotalInvoiced),
			amount(sp.TotalPaid), amount(sp.TotalCredited),
			amount(sp.RemainingToInvoice), amount(sp.RemainingToCollect),
		})
	}
	t := p.Totals
	rows = append(rows, []any{
		"Total",
		amount(t.Budget), amount(t.Quoted), amount(t.Invoiced),
		amount(t.Paid), amount(t.Credited),
		amount(t.RemainingToInvoice), amount(t.RemainingToCollect),
	})

	w := newWorkbook()
	if err := w.sheet("Sponsors", headings, rows); err != nil {
		return nil, w.fail(err)
	}

	if p.Unattributed.Count() > 0 {
		var loose [][]any
		for _, q := range p.Unattributed.Quotes {
			loose = append(loose, []any{string(billing.KindQuote), q.Number, string(q.SponsorID), amount(q.TotalAfterTax)})
		}
		for _, inv := range p.Unattributed.Invoices {
			loose = append(loose, []any{string(billing.KindInvoice), inv.Number, string(inv.SponsorID), amount(inv.TotalAfterTax)})
		}
		for _, cn := range p.Unattributed.CreditNotes {
			loose = append(loose, []any{string(billing.KindCreditNote), cn.Number, string(cn.SponsorID), amount(cn.TotalAfterTax)})
		}
		if err := w.sheet("Unattributed", []string{"Kind", "Number", "Sponsor reference", "Total incl. tax"}, loose); err != nil {
			return nil, w.fail(err)
		}
	}

	return w.f, nil
}

// =============================================================================
// BUDGET CONSOLIDATION
// =============================================================================

// BudgetWorkbook renders the annual view and the per-agency view of one
// enterprise and fiscal year.
func BudgetWorkbook(a budget.Annual, v budget.AgencyView) (*excelize.File, error) {
	w := newWorkbook()

	planName := ""
	if a.Plan != nil {
		planName = a.Plan.Name
	}
	annual := [][]any{
		{"Fiscal year", a.FiscalYear},
		{"Plan", planName},
		{"Plan allocated", amount(a.PlanAllocated)},
		{"Plan engaged", amount(a.PlanEngaged)},
		{"Plan remaining", amount(a.PlanRemaining)},
		{"Plan consumption %", percent(a.PlanConsumption)},
		{"Plan needs", a.PlanNeeds.NeedCount},
		{"Plan needs without price", a.PlanNeeds.UnpricedCount},
		{"Punctual spend", amount(a.PunctualTotal)},
		{"Punctual needs", a.PunctualNeeds.NeedCount},
		{"Total spend", amount(a.TotalSpend)},
	}
	if err := w.sheet("Annual", []string{"Indicator", "Value"}, annual); err != nil {
		return nil, w.fail(err)
	}

	agencyRow := func(r budget.AgencyRow) []any {
		return []any{
			r.Name, amount(r.Allocated), amount(r.PlanEngaged), amount(r.PunctualEngaged),
			amount(r.Engaged), amount(r.Remaining), percent(r.ConsumptionPercent),
			r.NeedCount, r.UnpricedCount,
		}
	}
	agencies := make([][]any, 0, len(v.Rows)+1)
	for _, r := range v.Rows {
		agencies = append(agencies, agencyRow(r))
	}
	agencies = append(agencies, agencyRow(v.Global))
	if err := w.sheet("Agencies", []string{
		"Agency", "Allocated", "Plan engaged", "Punctual engaged", "Engaged",
		"Remaining", "Consumption %", "Needs", "Needs without price",
	}, agencies); err != nil {
		return nil, w.fail(err)
	}

	alerts := make([][]any, 0, len(v.Alerts))
	for _, al := range v.Alerts {
		alerts = append(alerts, []any{
			string(al.Scope), string(al.Level), al.Name,
			percent(al.Percentage), percent(al.Threshold),
			amount(al.Allocated), amount(al.Engaged), amount(al.Remaining),
		})
	}
	if err := w.sheet("Alerts", []string{
		"Scope", "Level", "Name", "Consumption %", "Threshold %", "Allocated", "Engaged", "Remaining",
	}, alerts); err != nil {
		return nil, w.fail(err)
	}

	return w.f, nil
}

// =============================================================================
// SHEET WRITER
// =============================================================================

type workbook struct {
	f      *excelize.File
	sheets int
	header int // style id
}

func newWorkbook() *workbook {
	return &workbook{f: excelize.NewFile()}
}

func (w *workbook) fail(err error) error {
	w.f.Close()
	return err
}

// sheet writes headings on row 1 and rows below. The first sheet renames
// the default "Sheet1".
func (w *workbook) sheet(name string, headings []string, rows [][]any) error {
	if w.sheets == 0 {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
		style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		w.header = style
	} else if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	w.sheets++

	for col, h := range headings {
		if err := w.set(name, col+1, 1, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headings), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A1", last, w.header); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}
	if err := w.f.SetColWidth(name, "A", "A", 28); err != nil {
		return err
	}

	for i, row := range rows {
		for col, value := range row {
			if err := w.set(name, col+1, i+2, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *workbook) set(sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := w.f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func amount(m money.Money) float64 { return money.RoundCents(m).Float64() }

func percent(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
