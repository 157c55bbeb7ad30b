/*
Package money provides the decimal arithmetic shared by every aggregator.

PURPOSE:
  All monetary figures in the engine (sponsor budgets, document totals,
  committed spend, allocations) flow through the Money value object. The
  helpers in math.go implement the legacy rounding rules: amounts are
  rounded to the cent after EVERY line accumulation, not only at the end.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: an amount in the organization's currency, backed by decimal
  - Zero(): the explicit typed default used wherever a value is missing
    (no product, no tariff, no allocation)

ROUNDING RULE:
  Legacy totals are persisted per line and later summed independently.
  Rounding only the grand total produces totals that disagree with the sum
  of the persisted lines, so:

    total := money.Zero()
    for _, l := range lines {
        total = total.Add(money.LineAmount(l.Quantity, l.UnitPrice)) // rounded per line
    }

SEE ALSO:
  - math.go: LineAmount, LineTax, RoundCents, Sum, DocumentTotals
*/
package money

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount in the organization's currency
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Zero is the explicit default for missing prices and allocations.
func Zero() Money { return Money{Value: decimal.Zero} }

func New(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }

func FromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }

func FromCents(cents int64) Money { return Money{Value: decimal.New(cents, -2)} }

func FromDecimal(d decimal.Decimal) Money { return Money{Value: d} }

// Parse reads a decimal string such as "1234.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero(), err
	}
	return Money{Value: d}, nil
}

// MustParse is Parse for literals; malformed input yields zero.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		return Zero()
	}
	return m
}

func (m Money) Add(o Money) Money           { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money           { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(f decimal.Decimal) Money { return Money{Value: m.Value.Mul(f)} }
func (m Money) Neg() Money                  { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsPositive() bool            { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool          { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool    { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool       { return m.Value.LessThan(o.Value) }
func (m Money) Cents() int64                { return RoundCents(m).Value.Shift(2).IntPart() }
func (m Money) Float64() float64            { f, _ := m.Value.Float64(); return f }
func (m Money) String() string              { return m.Value.StringFixed(2) }

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m.LessThan(o) {
		return o
	}
	return m
}

// MarshalJSON encodes the amount as a bare number with two decimals,
// rounded the same way as every computed amount.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(RoundCents(m).Value.StringFixed(2)), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Value.UnmarshalJSON(data)
}
