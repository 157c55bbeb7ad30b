package budget

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// DEFAULT TARIFFS
// =============================================================================

// Prices maps a product to its default tariff price. Missing products price
// at zero.
type Prices map[ProductID]money.Money

// PriceOf returns the default price of a product and whether one exists.
func (p Prices) PriceOf(id ProductID) (money.Money, bool) {
	if id == "" {
		return money.Zero(), false
	}
	price, ok := p[id]
	if !ok {
		return money.Zero(), false
	}
	return price, true
}

// SelectDefaultTariffs keeps, per product, the first row flagged default.
// Products without a default row are absent from the result.
func SelectDefaultTariffs(rows []Tariff) Prices {
	prices := make(Prices)
	for _, r := range rows {
		if !r.IsDefault {
			continue
		}
		if _, seen := prices[r.ProductID]; seen {
			continue
		}
		prices[r.ProductID] = r.Price
	}
	return prices
}

// DistinctProducts returns the sorted distinct product ids referenced by
// the needs. Needs without a product are skipped.
func DistinctProducts(needs []TrainingNeed) []ProductID {
	seen := make(map[ProductID]bool)
	var ids []ProductID
	for _, n := range needs {
		if n.ProductID == "" || seen[n.ProductID] {
			continue
		}
		seen[n.ProductID] = true
		ids = append(ids, n.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// SOURCES - Read projections supplied by the caller
// =============================================================================

// TariffSource resolves default tariffs for a batch of products in one call.
type TariffSource interface {
	DefaultTariffs(ctx context.Context, productIDs []ProductID) (Prices, error)
}

// Source provides the rows of one (enterprise, fiscal year) scope.
type Source interface {
	// Plan returns the live plan of the year, or nil when none exists.
	Plan(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int) (*Plan, error)

	// TrainingNeeds returns plan-linked and one-off needs of the year.
	TrainingNeeds(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int) ([]TrainingNeed, error)

	// AgencyBudgets returns the allocation of every agency for the year.
	AgencyBudgets(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int) ([]AgencyBudget, error)
}

// =============================================================================
// CONSOLIDATOR - Fetch, batch-price, then compute
// =============================================================================

// Consolidator fetches a scope, prices every distinct product with ONE
// tariff lookup and runs the pure computations.
type Consolidator struct {
	Source  Source
	Tariffs TariffSource

	// Fallback threshold when neither request nor plan sets one;
	// nil uses DefaultVigilanceThreshold
	DefaultThreshold *decimal.Decimal
}

// Scope is the fetched, priced input of one (enterprise, fiscal year).
type Scope struct {
	EnterpriseID EnterpriseID
	FiscalYear   int
	Plan         *Plan
	Needs        []TrainingNeed
	Agencies     []AgencyBudget
	Prices       Prices
}

// Load fetches and prices a scope. Any failed fetch short-circuits.
func (c *Consolidator) Load(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int) (Scope, error) {
	plan, err := c.Source.Plan(ctx, enterpriseID, fiscalYear)
	if err != nil {
		return Scope{}, fmt.Errorf("load plan %s/%d: %w", enterpriseID, fiscalYear, err)
	}
	needs, err := c.Source.TrainingNeeds(ctx, enterpriseID, fiscalYear)
	if err != nil {
		return Scope{}, fmt.Errorf("load training needs %s/%d: %w", enterpriseID, fiscalYear, err)
	}
	agencies, err := c.Source.AgencyBudgets(ctx, enterpriseID, fiscalYear)
	if err != nil {
		return Scope{}, fmt.Errorf("load agency budgets %s/%d: %w", enterpriseID, fiscalYear, err)
	}

	prices := Prices{}
	if ids := DistinctProducts(needs); len(ids) > 0 {
		prices, err = c.Tariffs.DefaultTariffs(ctx, ids)
		if err != nil {
			return Scope{}, fmt.Errorf("load default tariffs: %w", err)
		}
	}

	return Scope{
		EnterpriseID: enterpriseID,
		FiscalYear:   fiscalYear,
		Plan:         plan,
		Needs:        needs,
		Agencies:     agencies,
		Prices:       prices,
	}, nil
}

// Annual loads the scope and computes the annual view.
func (c *Consolidator) Annual(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int) (Annual, error) {
	scope, err := c.Load(ctx, enterpriseID, fiscalYear)
	if err != nil {
		return Annual{}, err
	}
	return ComputeAnnual(scope), nil
}

// ByAgency loads the scope and computes the per-agency view with alerts.
// A nil threshold falls back to the plan's, then to the default.
func (c *Consolidator) ByAgency(ctx context.Context, enterpriseID EnterpriseID, fiscalYear int, threshold *decimal.Decimal) (AgencyView, error) {
	scope, err := c.Load(ctx, enterpriseID, fiscalYear)
	if err != nil {
		return AgencyView{}, err
	}
	return ComputeByAgency(scope, c.resolveThreshold(threshold, scope.Plan)), nil
}

// resolveThreshold picks the request threshold, then the plan's, then the
// configured default.
func (c *Consolidator) resolveThreshold(requested *decimal.Decimal, plan *Plan) decimal.Decimal {
	if requested != nil {
		return *requested
	}
	if plan != nil && plan.VigilanceThreshold != nil {
		return *plan.VigilanceThreshold
	}
	if c.DefaultThreshold != nil {
		return *c.DefaultThreshold
	}
	return DefaultVigilanceThreshold
}
