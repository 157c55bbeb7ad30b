/*
pipeline.go - Per-sponsor and session-level financial pipeline

PURPOSE:
  Answers "where does the money of this session stand?" for every sponsor:
  what was quoted, invoiced, paid and credited, what is left to invoice
  against the sponsor budget, and what is left to collect.

ALGORITHM:
  1. Index every document list by sponsor once (O(n)), never filter the
     lists per sponsor (O(n*m)).
  2. Credit notes reach a sponsor directly (SponsorID) or through the
     invoice they reference (InvoiceID -> invoice -> SponsorID).
  3. Per sponsor:
       TotalQuoted        = sum(quote.TotalAfterTax)
       TotalInvoiced      = sum(invoice.TotalAfterTax)
       TotalPaid          = sum(invoice.AmountPaid)
       TotalCredited      = sum(creditNote.TotalAfterTax)
       RemainingToInvoice = Budget - TotalInvoiced
       RemainingToCollect = TotalInvoiced - TotalPaid - TotalCredited
  4. Session totals are the sum of the sponsor totals, never re-derived from
     the flat lists, so session == sum(sponsors) even with unlinked documents.

EXAMPLE:
  Budget 10000, one invoice 6000 (2000 paid), one credit note 500 on it:
    TotalInvoiced=6000 TotalPaid=2000 TotalCredited=500
    RemainingToInvoice=4000 RemainingToCollect=3500

SEE ALSO:
  - types.go: Sponsor and document model
  - money/math.go: Sum (rounds after every step)
*/
package billing

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/money"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Documents are the three flat document lists of one session.
type Documents struct {
	Quotes      []Quote
	Invoices    []Invoice
	CreditNotes []CreditNote
}

// Input is everything the aggregator needs, already fetched by the caller.
type Input struct {
	SessionID generic.SessionID
	Sponsors  []Sponsor
	Documents
}

// SponsorPipeline is the rollup of one sponsor.
type SponsorPipeline struct {
	Sponsor     Sponsor
	Quotes      []Quote
	Invoices    []Invoice
	CreditNotes []CreditNote

	TotalQuoted        money.Money
	TotalInvoiced      money.Money
	TotalPaid          money.Money
	TotalCredited      money.Money
	RemainingToInvoice money.Money
	RemainingToCollect money.Money

	QuotesByStatus      map[QuoteStatus]int
	InvoicesByStatus    map[InvoiceStatus]int
	CreditNotesByStatus map[CreditNoteStatus]int
}

// SessionTotals sums the sponsor rollups of a session.
type SessionTotals struct {
	Budget             money.Money
	Quoted             money.Money
	Invoiced           money.Money
	Paid               money.Money
	Credited           money.Money
	RemainingToInvoice money.Money
	RemainingToCollect money.Money
}

// Unattributed lists documents that reach no known sponsor of the session.
// They are reported for the UI and excluded from every total.
type Unattributed struct {
	Quotes      []Quote
	Invoices    []Invoice
	CreditNotes []CreditNote
}

func (u Unattributed) Count() int { return len(u.Quotes) + len(u.Invoices) + len(u.CreditNotes) }

type Pipeline struct {
	SessionID    generic.SessionID
	Sponsors     []SponsorPipeline // sponsor creation order
	Totals       SessionTotals
	Unattributed Unattributed
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate builds the financial pipeline of a session. It is pure: no I/O,
// no errors. A sponsor without documents yields zero totals.
func Aggregate(in Input) Pipeline {
	sponsors := make([]Sponsor, len(in.Sponsors))
	copy(sponsors, in.Sponsors)
	sort.SliceStable(sponsors, func(i, j int) bool {
		return sponsors[i].CreatedAt.Before(sponsors[j].CreatedAt)
	})

	known := make(map[SponsorID]bool, len(sponsors))
	for _, s := range sponsors {
		known[s.ID] = true
	}

	var unattributed Unattributed

	// 1. Index documents by sponsor, once
	quotesBy := make(map[SponsorID][]Quote)
	for _, q := range in.Quotes {
		if !known[q.SponsorID] {
			unattributed.Quotes = append(unattributed.Quotes, q)
			continue
		}
		quotesBy[q.SponsorID] = append(quotesBy[q.SponsorID], q)
	}

	invoicesBy := make(map[SponsorID][]Invoice)
	invoiceSponsor := make(map[DocumentID]SponsorID, len(in.Invoices))
	for _, inv := range in.Invoices {
		if !known[inv.SponsorID] {
			unattributed.Invoices = append(unattributed.Invoices, inv)
			continue
		}
		invoicesBy[inv.SponsorID] = append(invoicesBy[inv.SponsorID], inv)
		invoiceSponsor[inv.ID] = inv.SponsorID
	}

	// 2. Credit notes: direct link first, then through the invoice
	creditNotesBy := make(map[SponsorID][]CreditNote)
	for _, cn := range in.CreditNotes {
		owner, ok := creditNoteOwner(cn, known, invoiceSponsor)
		if !ok {
			unattributed.CreditNotes = append(unattributed.CreditNotes, cn)
			continue
		}
		creditNotesBy[owner] = append(creditNotesBy[owner], cn)
	}

	// 3. Per-sponsor rollups, 4. session totals from the rollups
	pipeline := Pipeline{
		SessionID:    in.SessionID,
		Sponsors:     make([]SponsorPipeline, 0, len(sponsors)),
		Unattributed: unattributed,
	}
	totals := SessionTotals{
		Budget:             money.Zero(),
		Quoted:             money.Zero(),
		Invoiced:           money.Zero(),
		Paid:               money.Zero(),
		Credited:           money.Zero(),
		RemainingToInvoice: money.Zero(),
		RemainingToCollect: money.Zero(),
	}

	for _, s := range sponsors {
		sp := rollup(s, quotesBy[s.ID], invoicesBy[s.ID], creditNotesBy[s.ID])
		pipeline.Sponsors = append(pipeline.Sponsors, sp)

		totals.Budget = totals.Budget.Add(s.Budget)
		totals.Quoted = totals.Quoted.Add(sp.TotalQuoted)
		totals.Invoiced = totals.Invoiced.Add(sp.TotalInvoiced)
		totals.Paid = totals.Paid.Add(sp.TotalPaid)
		totals.Credited = totals.Credited.Add(sp.TotalCredited)
		totals.RemainingToInvoice = totals.RemainingToInvoice.Add(sp.RemainingToInvoice)
		totals.RemainingToCollect = totals.RemainingToCollect.Add(sp.RemainingToCollect)
	}
	pipeline.Totals = totals

	return pipeline
}

// creditNoteOwner resolves the sponsor of a credit note. A direct link to a
// known sponsor wins; otherwise the referenced invoice decides. A credit note
// is never attributed to two sponsors.
func creditNoteOwner(cn CreditNote, known map[SponsorID]bool, invoiceSponsor map[DocumentID]SponsorID) (SponsorID, bool) {
	if known[cn.SponsorID] {
		return cn.SponsorID, true
	}
	if cn.InvoiceID != "" {
		if owner, ok := invoiceSponsor[cn.InvoiceID]; ok {
			return owner, true
		}
	}
	return "", false
}

func rollup(s Sponsor, quotes []Quote, invoices []Invoice, creditNotes []CreditNote) SponsorPipeline {
	sp := SponsorPipeline{
		Sponsor:             s,
		Quotes:              quotes,
		Invoices:            invoices,
		CreditNotes:         creditNotes,
		QuotesByStatus:      make(map[QuoteStatus]int),
		InvoicesByStatus:    make(map[InvoiceStatus]int),
		CreditNotesByStatus: make(map[CreditNoteStatus]int),
	}

	quoted := make([]money.Money, 0, len(quotes))
	for _, q := range quotes {
		quoted = append(quoted, q.TotalAfterTax)
		sp.QuotesByStatus[q.Status]++
	}

	invoiced := make([]money.Money, 0, len(invoices))
	paid := make([]money.Money, 0, len(invoices))
	for _, inv := range invoices {
		invoiced = append(invoiced, inv.TotalAfterTax)
		paid = append(paid, inv.AmountPaid)
		sp.InvoicesByStatus[inv.Status]++
	}

	credited := make([]money.Money, 0, len(creditNotes))
	for _, cn := range creditNotes {
		credited = append(credited, cn.TotalAfterTax)
		sp.CreditNotesByStatus[cn.Status]++
	}

	sp.TotalQuoted = money.Sum(quoted...)
	sp.TotalInvoiced = money.Sum(invoiced...)
	sp.TotalPaid = money.Sum(paid...)
	sp.TotalCredited = money.Sum(credited...)
	sp.RemainingToInvoice = s.Budget.Sub(sp.TotalInvoiced)
	sp.RemainingToCollect = sp.TotalInvoiced.Sub(sp.TotalPaid).Sub(sp.TotalCredited)
	return sp
}

// =============================================================================
// PIPELINE CALCULATOR - Fetch, then aggregate
// =============================================================================

// Source provides the read projections of one session.
type Source interface {
	// SessionSponsors returns the sponsors of a session with embedded party
	// names. Returns a NotFoundError if the session does not exist.
	SessionSponsors(ctx context.Context, sessionID generic.SessionID) ([]Sponsor, error)

	// SessionDocuments returns every quote, invoice and credit note of a session.
	SessionDocuments(ctx context.Context, sessionID generic.SessionID) (Documents, error)
}

// PipelineCalculator fetches a session's rows and aggregates them.
// A failed fetch short-circuits before the aggregator runs.
type PipelineCalculator struct {
	Source Source
}

func (pc *PipelineCalculator) Calculate(ctx context.Context, sessionID generic.SessionID) (Pipeline, error) {
	sponsors, err := pc.Source.SessionSponsors(ctx, sessionID)
	if err != nil {
		return Pipeline{}, fmt.Errorf("load sponsors of session %s: %w", sessionID, err)
	}
	docs, err := pc.Source.SessionDocuments(ctx, sessionID)
	if err != nil {
		return Pipeline{}, fmt.Errorf("load documents of session %s: %w", sessionID, err)
	}
	return Aggregate(Input{SessionID: sessionID, Sponsors: sponsors, Documents: docs}), nil
}
