/*
Package budget consolidates training budgets across an enterprise hierarchy.

PURPOSE:
  An enterprise plans its training spend per fiscal year. Spend comes from
  two places: training needs attached to the annual Plan, and one-off needs
  outside any plan. Needs may be recorded against a branch agency or against
  the head office. This package rolls committed spend up to the plan, to each
  agency and to the enterprise, and raises vigilance / overspend alerts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Plan: unique per (enterprise, fiscal year); soft-deleted via ArchivedAt
  - AgencyBudget: the allocation of one branch agency for a fiscal year
  - TrainingNeed: a need, optionally priced through a catalog product
  - Tariff: a priced variant of a product; the default one is the cost source

PRICING:
  A need never stores a price. Its committed cost is the DEFAULT tariff of
  its product. No product, or no default tariff, means a zero contribution:
  the need is still counted (NeedCount) and flagged unpriced (UnpricedCount),
  so "not priced yet" stays distinguishable from "free".

SEE ALSO:
  - consolidation.go: annual and per-agency views
  - alerts.go: threshold evaluation
  - tariffs.go: default-tariff selection and the batched Consolidator
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EnterpriseID string
type AgencyID string
type PlanID string
type NeedID string
type ProductID string
type TariffID string

// HeadOfficeID is the synthetic bucket for needs recorded without an agency.
const HeadOfficeID AgencyID = ""

// HeadOfficeName labels the synthetic head office bucket.
const HeadOfficeName = "Head office"

// DefaultVigilanceThreshold applies when neither the caller nor the plan
// provides one.
var DefaultVigilanceThreshold = decimal.NewFromInt(80)

// Enterprise is a client company whose training budget is consolidated.
type Enterprise struct {
	ID   EnterpriseID
	Name string
}

// =============================================================================
// PLAN - Annual training plan
// =============================================================================

type Plan struct {
	ID             PlanID
	EnterpriseID   EnterpriseID
	FiscalYear     int
	Name           string
	AllocatedTotal money.Money

	// Vigilance threshold in percent; nil uses the configured default
	VigilanceThreshold *decimal.Decimal

	ArchivedAt *time.Time
}

func (p Plan) IsArchived() bool { return p.ArchivedAt != nil }

// =============================================================================
// AGENCY BUDGET - Allocation of one branch agency
// =============================================================================

type AgencyBudget struct {
	AgencyID     AgencyID // HeadOfficeID for the head office allocation
	EnterpriseID EnterpriseID
	FiscalYear   int
	Name         string
	Allocated    money.Money
}

// =============================================================================
// TRAINING NEED
// =============================================================================

type TrainingNeed struct {
	ID           NeedID
	EnterpriseID EnterpriseID
	FiscalYear   int
	Title        string

	PlanID PlanID // empty when not attached to a plan
	OneOff bool   // explicit out-of-plan flag

	ProductID ProductID // empty = not priced yet
	AgencyID  AgencyID  // empty = head office
}

// IsOneOff reports whether the need is out-of-plan spend.
func (n TrainingNeed) IsOneOff() bool { return n.OneOff || n.PlanID == "" }

// =============================================================================
// TARIFF
// =============================================================================

type Tariff struct {
	ID        TariffID
	ProductID ProductID
	Label     string
	Price     money.Money
	IsDefault bool
}
