package money

import "github.com/shopspring/decimal"

var half = decimal.New(5, -1)

// RoundCents rounds half-up to two decimals.
// Half-up means ties move toward +infinity: 2.675 -> 2.68, -1.005 -> -1.00.
func RoundCents(m Money) Money {
	return Money{Value: m.Value.Shift(2).Add(half).Floor().Shift(-2)}
}

// LineAmount returns quantity * unit price excluding tax, rounded to the cent.
func LineAmount(quantity decimal.Decimal, unitPriceExclTax Money) Money {
	return RoundCents(Money{Value: quantity.Mul(unitPriceExclTax.Value)})
}

// LineTax returns the tax for a line amount at the given percentage rate,
// rounded to the cent.
func LineTax(amount Money, taxRatePercent decimal.Decimal) Money {
	return PercentOf(amount, taxRatePercent)
}

// PercentOf returns pct% of amount, rounded to the cent.
func PercentOf(amount Money, pct decimal.Decimal) Money {
	return RoundCents(Money{Value: amount.Value.Mul(pct).Div(hundred)})
}

// Sum accumulates amounts, rounding after every step.
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = RoundCents(total.Add(a))
	}
	return total
}

// Percent returns part / whole * 100 rounded to the cent.
// A zero whole yields zero rather than a division error.
func Percent(part, whole Money) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return RoundCents(Money{Value: part.Value.Mul(hundred).Div(whole.Value)}).Value
}

// =============================================================================
// DOCUMENT TOTALS - Line items to header totals
// =============================================================================

// Line is a priced line item of a quote, invoice or credit note.
type Line struct {
	Quantity       decimal.Decimal
	UnitPrice      Money // excluding tax
	TaxRatePercent decimal.Decimal
}

// Totals are the header figures of a billing document.
type Totals struct {
	BeforeTax Money
	Tax       Money
	AfterTax  Money
}

// DocumentTotals computes header totals the way they are persisted: each
// line amount and line tax is rounded before it is accumulated.
// AfterTax always equals BeforeTax + Tax.
func DocumentTotals(lines []Line) Totals {
	before := Zero()
	tax := Zero()
	for _, l := range lines {
		amount := LineAmount(l.Quantity, l.UnitPrice)
		before = RoundCents(before.Add(amount))
		tax = RoundCents(tax.Add(LineTax(amount, l.TaxRatePercent)))
	}
	return Totals{BeforeTax: before, Tax: tax, AfterTax: before.Add(tax)}
}
