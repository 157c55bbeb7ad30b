package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// ALERTS - Derived, never persisted
// =============================================================================

type AlertScope string

const (
	ScopeAgency AlertScope = "agency"
	ScopeGlobal AlertScope = "global"
)

type AlertLevel string

const (
	LevelVigilance AlertLevel = "vigilance"
	LevelOverspend AlertLevel = "overspend"
)

type Alert struct {
	Scope      AlertScope
	Level      AlertLevel
	AgencyID   AgencyID // empty for the global row and the head office
	Name       string
	Percentage decimal.Decimal
	Threshold  decimal.Decimal
	Allocated  money.Money
	Engaged    money.Money
	Remaining  money.Money
}

func (a Alert) String() string {
	return fmt.Sprintf("%s %s on %s: %s%% (%s / %s)", a.Level, a.Scope, a.Name, a.Percentage.StringFixed(2), a.Engaged, a.Allocated)
}

// Evaluate returns the alert of one row, or nil.
//
//	remaining < 0                    -> overspend
//	consumption percent >= threshold -> vigilance
//
// A zero allocation with positive spend has a negative remaining and is
// therefore an overspend; zero allocation and zero spend raises nothing.
func Evaluate(row AgencyRow, threshold decimal.Decimal) *Alert {
	var level AlertLevel
	switch {
	case row.Remaining.IsNegative():
		level = LevelOverspend
	case row.Allocated.IsPositive() && row.ConsumptionPercent.GreaterThanOrEqual(threshold):
		level = LevelVigilance
	default:
		return nil
	}

	scope := ScopeAgency
	if row.Global {
		scope = ScopeGlobal
	}
	return &Alert{
		Scope:      scope,
		Level:      level,
		AgencyID:   row.AgencyID,
		Name:       row.Name,
		Percentage: row.ConsumptionPercent,
		Threshold:  threshold,
		Allocated:  row.Allocated,
		Engaged:    row.Engaged,
		Remaining:  row.Remaining,
	}
}

// EvaluateAlerts evaluates every row independently, then the global row.
// An agency alert never suppresses or escalates the global one.
func EvaluateAlerts(rows []AgencyRow, global AgencyRow, threshold decimal.Decimal) []Alert {
	var alerts []Alert
	for _, r := range rows {
		if a := Evaluate(r, threshold); a != nil {
			alerts = append(alerts, *a)
		}
	}
	if a := Evaluate(global, threshold); a != nil {
		alerts = append(alerts, *a)
	}
	return alerts
}
