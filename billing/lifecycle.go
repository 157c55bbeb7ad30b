package billing

import (
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// STATUS LIFECYCLES
// =============================================================================

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteDraft:  {QuoteSent},
	QuoteSent:   {QuoteSigned, QuoteRefused, QuoteExpired},
	QuoteSigned: {QuoteConverted},
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:         {InvoiceSent},
	InvoiceSent:          {InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue},
	InvoiceOverdue:       {InvoicePartiallyPaid, InvoicePaid},
	InvoicePartiallyPaid: {InvoicePaid, InvoiceOverdue},
}

var creditNoteTransitions = map[CreditNoteStatus][]CreditNoteStatus{
	CreditNoteDraft:  {CreditNoteIssued},
	CreditNoteIssued: {CreditNoteApplied},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (q Quote) CanTransition(to QuoteStatus) bool { return allowed(quoteTransitions, q.Status, to) }

func (i Invoice) CanTransition(to InvoiceStatus) bool { return allowed(invoiceTransitions, i.Status, to) }

func (c CreditNote) CanTransition(to CreditNoteStatus) bool {
	return allowed(creditNoteTransitions, c.Status, to)
}

// Transition moves the quote to a new status. Refused, expired and
// converted quotes are terminal.
func (q *Quote) Transition(to QuoteStatus) error {
	if !q.CanTransition(to) {
		return &generic.TransitionError{Document: "quote " + q.Number, From: string(q.Status), To: string(to)}
	}
	q.Status = to
	return nil
}

// Transition moves the invoice to a new status. Paid invoices are terminal.
func (i *Invoice) Transition(to InvoiceStatus) error {
	if !i.CanTransition(to) {
		return &generic.TransitionError{Document: "invoice " + i.Number, From: string(i.Status), To: string(to)}
	}
	i.Status = to
	return nil
}

// Transition moves the credit note to a new status. Applied is terminal.
func (c *CreditNote) Transition(to CreditNoteStatus) error {
	if !c.CanTransition(to) {
		return &generic.TransitionError{Document: "credit note " + c.Number, From: string(c.Status), To: string(to)}
	}
	c.Status = to
	return nil
}

// =============================================================================
// INVOICE FIGURES
// =============================================================================

// DownPaymentAmount is the share of the total requested as a down payment.
// Zero when the invoice carries no down-payment percentage.
func (i Invoice) DownPaymentAmount() money.Money {
	if i.DownPaymentPercent == nil {
		return money.Zero()
	}
	return money.PercentOf(i.TotalAfterTax, *i.DownPaymentPercent)
}

// Outstanding is what is still to be paid on this invoice, never negative.
func (i Invoice) Outstanding() money.Money {
	return i.TotalAfterTax.Sub(i.AmountPaid).Max(money.Zero())
}

// =============================================================================
// BILLED PARTIES
// =============================================================================

// BilledParties returns who actually receives invoices for this sponsor.
//
//   company mode:  the company (contact as fallback)
//   financer mode: the financing body
//   split mode:    whichever parties have their invoice flag set
//
// The InvoiceCompany / InvoiceFinancer flags can further restrict the first
// two modes; when both are false the mode alone decides.
func (s Sponsor) BilledParties() []Party {
	company := s.Company
	if company == nil {
		company = s.Contact
	}

	var parties []Party
	add := func(p *Party) {
		if p != nil {
			parties = append(parties, *p)
		}
	}

	switch s.Subrogation {
	case SubrogationSplit:
		if s.InvoiceCompany {
			add(company)
		}
		if s.InvoiceFinancer {
			add(s.Financer)
		}
	case SubrogationFinancer:
		if s.InvoiceCompany {
			add(company)
		}
		if s.InvoiceFinancer || !s.InvoiceCompany {
			add(s.Financer)
		}
	default:
		if s.InvoiceCompany || !s.InvoiceFinancer {
			add(company)
		}
		if s.InvoiceFinancer {
			add(s.Financer)
		}
	}
	return parties
}

// SplitTotal is the sum of the fixed split amounts in split mode.
func (s Sponsor) SplitTotal() money.Money {
	if s.Subrogation != SubrogationSplit {
		return money.Zero()
	}
	return money.Sum(s.CompanyShare, s.FinancerShare)
}
