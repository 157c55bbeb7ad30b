/*
Package billing reconciles the billing documents of a training session.

PURPOSE:
  A session is funded by one or more sponsors ("commanditaires"). Quotes,
  invoices and credit notes are issued against those sponsors, each with its
  own lifecycle. This package turns the flat document lists of a session into
  a live financial pipeline: per-sponsor totals, session totals and the two
  remaining-balance figures the back-office watches.

KEY CONCEPTS IN THIS FILE (types.go):
  - Sponsor: funding relationship for one session (company, contact,
    financing body, budget ceiling, subrogation mode)
  - Header: the shape shared by every billing document
  - Quote / Invoice / CreditNote: the three document variants

SPONSOR LINKS:
  Every document may reference a sponsor. An empty SponsorID means the
  document is unlinked: it is reported but excluded from sponsor rollups.
  Credit notes may instead reach a sponsor through the invoice they cancel.

SEE ALSO:
  - pipeline.go: Aggregate (the rollup)
  - lifecycle.go: status transitions, billed parties, down payments
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SponsorID string
type DocumentID string

// =============================================================================
// SPONSOR - Funding relationship for one session
// =============================================================================

// SubrogationMode decides who is billed for a sponsor.
type SubrogationMode string

const (
	SubrogationCompany  SubrogationMode = "company"  // the company pays everything
	SubrogationFinancer SubrogationMode = "financer" // the financing body is billed directly
	SubrogationSplit    SubrogationMode = "split"    // fixed amounts to each party
)

// Party is an embedded company, contact or financer projection.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Sponsor struct {
	ID        SponsorID
	SessionID generic.SessionID

	Company  *Party // at most one company
	Contact  *Party // at most one company contact
	Financer *Party // at most one external financing body

	// Allocated ceiling for this sponsor
	Budget money.Money

	Subrogation SubrogationMode

	// Fixed split amounts, meaningful when Subrogation == SubrogationSplit
	CompanyShare  money.Money
	FinancerShare money.Money

	// Which parties are actually invoiced
	InvoiceCompany  bool
	InvoiceFinancer bool

	CreatedAt time.Time
}

// DisplayName returns the most specific party name available.
func (s Sponsor) DisplayName() string {
	switch {
	case s.Company != nil && s.Financer != nil:
		return s.Company.Name + " / " + s.Financer.Name
	case s.Company != nil:
		return s.Company.Name
	case s.Financer != nil:
		return s.Financer.Name
	case s.Contact != nil:
		return s.Contact.Name
	default:
		return string(s.ID)
	}
}

// =============================================================================
// BILLING DOCUMENTS
// =============================================================================

type DocumentKind string

const (
	KindQuote      DocumentKind = "quote"
	KindInvoice    DocumentKind = "invoice"
	KindCreditNote DocumentKind = "credit_note"
)

// Header is the shape shared by quotes, invoices and credit notes.
type Header struct {
	ID             DocumentID
	Number         string // display number, e.g. "F-2025-0042"
	SessionID      generic.SessionID
	SponsorID      SponsorID // empty = not linked to a sponsor
	IssuedAt       time.Time
	TotalBeforeTax money.Money
	TotalAfterTax  money.Money
}

// HasSponsor reports whether the document is linked to a sponsor.
func (h Header) HasSponsor() bool { return h.SponsorID != "" }

type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteSigned    QuoteStatus = "signed"
	QuoteRefused   QuoteStatus = "refused"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
)

type Quote struct {
	Header
	Status QuoteStatus
}

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
)

type Invoice struct {
	Header
	Status     InvoiceStatus
	AmountPaid money.Money

	// Down-payment percentage of the total, nil when not a down-payment invoice
	DownPaymentPercent *decimal.Decimal
}

type CreditNoteStatus string

const (
	CreditNoteDraft   CreditNoteStatus = "draft"
	CreditNoteIssued  CreditNoteStatus = "issued"
	CreditNoteApplied CreditNoteStatus = "applied"
)

type CreditNote struct {
	Header
	Status    CreditNoteStatus
	InvoiceID DocumentID // empty = not tied to an invoice
}

// FromLines fills header totals from line items using the per-line
// rounding rule.
func (h *Header) FromLines(lines []money.Line) {
	totals := money.DocumentTotals(lines)
	h.TotalBeforeTax = totals.BeforeTax
	h.TotalAfterTax = totals.AfterTax
}
