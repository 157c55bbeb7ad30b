/*
consolidation.go - Annual and per-agency budget views

PURPOSE:
  Both views run over the same priced Scope of one (enterprise, fiscal year)
  and never perform I/O. A need contributes the default tariff of its
  product, or zero when unpriced.

ANNUAL VIEW:
  PlanEngaged   = sum(cost of needs linked to the live plan)
  PlanRemaining = Plan.AllocatedTotal - PlanEngaged
  PunctualTotal = sum(cost of every other need of the year)
  TotalSpend    = PlanEngaged + PunctualTotal

  A need linked to a plan that is not the live plan of the year (archived
  or unknown) is out-of-plan spend. TotalSpend therefore always equals the
  engaged amount of the per-agency global row.

PER-AGENCY VIEW:
  Needs are bucketed by AgencyID; an empty AgencyID lands in the head office
  bucket. Every row carries its own allocation, so:
    Remaining          = Allocated - Engaged
    ConsumptionPercent = Engaged / Allocated * 100   (0 when Allocated == 0)
  The global row is the sum of all rows. A need pointing to an agency with
  no budget row still gets a row, with a zero allocation.

ROW ORDER:
  head office first, then agencies by name, then by id.
*/
package budget

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// OUTPUT
// =============================================================================

// Counts distinguishes counted needs from needs that could not be priced.
type Counts struct {
	NeedCount     int
	UnpricedCount int
}

func (c *Counts) add(priced bool) {
	c.NeedCount++
	if !priced {
		c.UnpricedCount++
	}
}

func (c Counts) plus(o Counts) Counts {
	return Counts{NeedCount: c.NeedCount + o.NeedCount, UnpricedCount: c.UnpricedCount + o.UnpricedCount}
}

// Annual is the plan vs one-off view of a fiscal year.
type Annual struct {
	EnterpriseID EnterpriseID
	FiscalYear   int
	Plan         *Plan // nil when the year has no live plan

	PlanAllocated   money.Money
	PlanEngaged     money.Money
	PlanRemaining   money.Money
	PlanConsumption decimal.Decimal
	PlanNeeds       Counts

	PunctualTotal money.Money
	PunctualNeeds Counts

	TotalSpend money.Money
}

// AgencyRow is one line of the per-agency view. The global row uses the
// same shape with an empty AgencyID and Global set.
type AgencyRow struct {
	AgencyID   AgencyID
	Name       string
	HeadOffice bool
	Global     bool
	Budgeted   bool // false when no budget row exists for the agency

	Allocated          money.Money
	Engaged            money.Money
	PlanEngaged        money.Money
	PunctualEngaged    money.Money
	Remaining          money.Money
	ConsumptionPercent decimal.Decimal
	Counts
}

// AgencyView is the per-agency consolidation with its alerts.
type AgencyView struct {
	EnterpriseID EnterpriseID
	FiscalYear   int
	Threshold    decimal.Decimal
	Rows         []AgencyRow
	Global       AgencyRow
	Alerts       []Alert // row alerts in row order, then the global alert
}

// =============================================================================
// ANNUAL
// =============================================================================

// ComputeAnnual builds the annual view of a scope.
func ComputeAnnual(s Scope) Annual {
	a := Annual{
		EnterpriseID:  s.EnterpriseID,
		FiscalYear:    s.FiscalYear,
		Plan:          s.Plan,
		PlanAllocated: money.Zero(),
	}

	var planCosts, punctualCosts []money.Money
	for _, n := range s.Needs {
		cost, priced := s.Prices.PriceOf(n.ProductID)
		if inPlan(n, s.Plan) {
			planCosts = append(planCosts, cost)
			a.PlanNeeds.add(priced)
			continue
		}
		punctualCosts = append(punctualCosts, cost)
		a.PunctualNeeds.add(priced)
	}

	if s.Plan != nil {
		a.PlanAllocated = s.Plan.AllocatedTotal
	}
	a.PlanEngaged = money.Sum(planCosts...)
	a.PlanRemaining = a.PlanAllocated.Sub(a.PlanEngaged)
	a.PlanConsumption = money.Percent(a.PlanEngaged, a.PlanAllocated)
	a.PunctualTotal = money.Sum(punctualCosts...)
	a.TotalSpend = a.PlanEngaged.Add(a.PunctualTotal)
	return a
}

func inPlan(n TrainingNeed, plan *Plan) bool {
	return plan != nil && !plan.IsArchived() && !n.IsOneOff() && n.PlanID == plan.ID
}

// =============================================================================
// PER AGENCY
// =============================================================================

// ComputeByAgency builds the per-agency view and evaluates its alerts
// against threshold.
func ComputeByAgency(s Scope, threshold decimal.Decimal) AgencyView {
	rows := make(map[AgencyID]*AgencyRow)
	row := func(id AgencyID) *AgencyRow {
		if r, ok := rows[id]; ok {
			return r
		}
		r := &AgencyRow{
			AgencyID:        id,
			Name:            string(id),
			HeadOffice:      id == HeadOfficeID,
			Allocated:       money.Zero(),
			Engaged:         money.Zero(),
			PlanEngaged:     money.Zero(),
			PunctualEngaged: money.Zero(),
		}
		if r.HeadOffice {
			r.Name = HeadOfficeName
		}
		rows[id] = r
		return r
	}

	for _, b := range s.Agencies {
		r := row(b.AgencyID)
		r.Budgeted = true
		r.Allocated = money.Sum(r.Allocated, b.Allocated)
		if b.Name != "" {
			r.Name = b.Name
		}
	}

	for _, n := range s.Needs {
		r := row(n.AgencyID)
		cost, priced := s.Prices.PriceOf(n.ProductID)
		r.Counts.add(priced)
		if inPlan(n, s.Plan) {
			r.PlanEngaged = money.Sum(r.PlanEngaged, cost)
		} else {
			r.PunctualEngaged = money.Sum(r.PunctualEngaged, cost)
		}
	}

	view := AgencyView{
		EnterpriseID: s.EnterpriseID,
		FiscalYear:   s.FiscalYear,
		Threshold:    threshold,
		Rows:         make([]AgencyRow, 0, len(rows)),
	}
	for _, r := range rows {
		r.Engaged = r.PlanEngaged.Add(r.PunctualEngaged)
		finish(r)
		view.Rows = append(view.Rows, *r)
	}
	sort.Slice(view.Rows, func(i, j int) bool { return rowLess(view.Rows[i], view.Rows[j]) })

	view.Global = globalRow(view.Rows)
	view.Alerts = EvaluateAlerts(view.Rows, view.Global, threshold)
	return view
}

func finish(r *AgencyRow) {
	r.Remaining = r.Allocated.Sub(r.Engaged)
	r.ConsumptionPercent = money.Percent(r.Engaged, r.Allocated)
}

func rowLess(a, b AgencyRow) bool {
	if a.HeadOffice != b.HeadOffice {
		return a.HeadOffice
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.AgencyID < b.AgencyID
}

func globalRow(rows []AgencyRow) AgencyRow {
	g := AgencyRow{
		Name:            "Global",
		Global:          true,
		Budgeted:        true,
		Allocated:       money.Zero(),
		PlanEngaged:     money.Zero(),
		PunctualEngaged: money.Zero(),
	}
	for _, r := range rows {
		g.Allocated = g.Allocated.Add(r.Allocated)
		g.PlanEngaged = g.PlanEngaged.Add(r.PlanEngaged)
		g.PunctualEngaged = g.PunctualEngaged.Add(r.PunctualEngaged)
		g.Counts = g.Counts.plus(r.Counts)
	}
	g.Engaged = g.PlanEngaged.Add(g.PunctualEngaged)
	finish(&g)
	return g
}
