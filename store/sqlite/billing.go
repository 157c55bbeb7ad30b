package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/formation-engine/billing"
	"github.com/warp/formation-engine/generic"
)

// =============================================================================
// SESSIONS
// =============================================================================

// SaveSession upserts a session.
func (s *Store) SaveSession(ctx context.Context, sess generic.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, organization_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET organization_id = excluded.organization_id, name = excluded.name
	`, sess.ID, sess.OrganizationID, sess.Name, formatTime(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns a session or a NotFoundError.
func (s *Store) GetSession(ctx context.Context, id generic.SessionID) (*generic.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getSession(ctx, id)
}

func (s *Store) getSession(ctx context.Context, id generic.SessionID) (*generic.Session, error) {
	var sess generic.Session
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, organization_id, name, created_at FROM sessions WHERE id = ?", id,
	).Scan(&sess.ID, &sess.OrganizationID, &sess.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "session", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.CreatedAt = parseTime(createdAt)
	return &sess, nil
}

// =============================================================================
// SPONSORS (billing.Source)
// =============================================================================

// SaveSponsor upserts a sponsor and its embedded parties.
func (s *Store) SaveSponsor(ctx context.Context, sp billing.Sponsor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range []*billing.Party{sp.Company, sp.Contact, sp.Financer} {
		if err := saveParty(ctx, tx, p); err != nil {
			return err
		}
	}

	subrogation := sp.Subrogation
	if subrogation == "" {
		subrogation = billing.SubrogationCompany
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sponsors
		(id, session_id, company_id, contact_id, financer_id, budget, subrogation,
		 company_share, financer_share, invoice_company, invoice_financer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			contact_id = excluded.contact_id,
			financer_id = excluded.financer_id,
			budget = excluded.budget,
			subrogation = excluded.subrogation,
			company_share = excluded.company_share,
			financer_share = excluded.financer_share,
			invoice_company = excluded.invoice_company,
			invoice_financer = excluded.invoice_financer
	`,
		sp.ID, sp.SessionID,
		partyID(sp.Company), partyID(sp.Contact), partyID(sp.Financer),
		sp.Budget.Value.String(), subrogation,
		sp.CompanyShare.Value.String(), sp.FinancerShare.Value.String(),
		sp.InvoiceCompany, sp.InvoiceFinancer,
		formatTime(sp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save sponsor: %w", err)
	}
	return tx.Commit()
}

func saveParty(ctx context.Context, db execer, p *billing.Party) error {
	if p == nil || p.ID == "" {
		return nil
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO parties (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save party %s: %w", p.ID, err)
	}
	return nil
}

func partyID(p *billing.Party) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(p.ID)
}

// SessionSponsors returns the sponsors of a session with embedded party names,
// in creation order. Returns a NotFoundError if the session does not exist.
func (s *Store) SessionSponsors(ctx context.Context, sessionID generic.SessionID) ([]billing.Sponsor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.id, sp.session_id,
		       sp.company_id, co.name, sp.contact_id, ct.name, sp.financer_id, fi.name,
		       sp.budget, sp.subrogation, sp.company_share, sp.financer_share,
		       sp.invoice_company, sp.invoice_financer, sp.created_at
		FROM sponsors sp
		LEFT JOIN parties co ON co.id = sp.company_id
		LEFT JOIN parties ct ON ct.id = sp.contact_id
		LEFT JOIN parties fi ON fi.id = sp.financer_id
		WHERE sp.session_id = ?
		ORDER BY sp.created_at ASC, sp.id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sponsors: %w", err)
	}
	defer rows.Close()

	var sponsors []billing.Sponsor
	for rows.Next() {
		var (
			sp                                           billing.Sponsor
			companyID, companyName, contactID            sql.NullString
			contactName, financerID, financerName        sql.NullString
			budget, companyShare, financerShare, created string
		)
		if err := rows.Scan(
			&sp.ID, &sp.SessionID,
			&companyID, &companyName, &contactID, &contactName, &financerID, &financerName,
			&budget, &sp.Subrogation, &companyShare, &financerShare,
			&sp.InvoiceCompany, &sp.InvoiceFinancer, &created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sponsor: %w", err)
		}

		sp.Company = embeddedParty(companyID, companyName)
		sp.Contact = embeddedParty(contactID, contactName)
		sp.Financer = embeddedParty(financerID, financerName)
		if sp.Budget, err = parseMoney(budget); err != nil {
			return nil, err
		}
		if sp.CompanyShare, err = parseMoney(companyShare); err != nil {
			return nil, err
		}
		if sp.FinancerShare, err = parseMoney(financerShare); err != nil {
			return nil, err
		}
		sp.CreatedAt = parseTime(created)
		sponsors = append(sponsors, sp)
	}
	return sponsors, rows.Err()
}

// embeddedParty normalizes a LEFT JOIN: no id means no party.
func embeddedParty(id, name sql.NullString) *billing.Party {
	if !id.Valid || id.String == "" {
		return nil
	}
	return &billing.Party{ID: id.String, Name: name.String}
}

// =============================================================================
// DOCUMENTS (billing.Source)
// =============================================================================

type documentRow struct {
	kind               billing.DocumentKind
	header             billing.Header
	status             string
	amountPaid         string
	downPaymentPercent sql.NullString
	invoiceID          string
}

func (s *Store) saveDocument(ctx context.Context, d documentRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var issuedAt sql.NullString
	if !d.header.IssuedAt.IsZero() {
		issuedAt = sql.NullString{String: formatTime(d.header.IssuedAt), Valid: true}
	}
	amountPaid := d.amountPaid
	if amountPaid == "" {
		amountPaid = "0"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
		(id, kind, number, session_id, sponsor_id, status, issued_at,
		 total_before_tax, total_after_tax, amount_paid, down_payment_percent, invoice_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			sponsor_id = excluded.sponsor_id,
			status = excluded.status,
			issued_at = excluded.issued_at,
			total_before_tax = excluded.total_before_tax,
			total_after_tax = excluded.total_after_tax,
			amount_paid = excluded.amount_paid,
			down_payment_percent = excluded.down_payment_percent,
			invoice_id = excluded.invoice_id
	`,
		d.header.ID, d.kind, d.header.Number, d.header.SessionID, nullString(string(d.header.SponsorID)),
		d.status, issuedAt,
		d.header.TotalBeforeTax.Value.String(), d.header.TotalAfterTax.Value.String(),
		amountPaid, d.downPaymentPercent, nullString(d.invoiceID),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", d.kind, d.header.ID, err)
	}
	return nil
}

// SaveQuote upserts a quote.
func (s *Store) SaveQuote(ctx context.Context, q billing.Quote) error {
	return s.saveDocument(ctx, documentRow{kind: billing.KindQuote, header: q.Header, status: string(q.Status)})
}

// SaveInvoice upserts an invoice.
func (s *Store) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	return s.saveDocument(ctx, documentRow{
		kind:               billing.KindInvoice,
		header:             inv.Header,
		status:             string(inv.Status),
		amountPaid:         inv.AmountPaid.Value.String(),
		downPaymentPercent: nullDecimal(inv.DownPaymentPercent),
	})
}

// SaveCreditNote upserts a credit note.
func (s *Store) SaveCreditNote(ctx context.Context, cn billing.CreditNote) error {
	return s.saveDocument(ctx, documentRow{
		kind:      billing.KindCreditNote,
		header:    cn.Header,
		status:    string(cn.Status),
		invoiceID: string(cn.InvoiceID),
	})
}

// SessionDocuments returns every quote, invoice and credit note of a session.
func (s *Store) SessionDocuments(ctx context.Context, sessionID generic.SessionID) (billing.Documents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, number, session_id, sponsor_id, status, issued_at,
		       total_before_tax, total_after_tax, amount_paid, down_payment_percent, invoice_id
		FROM documents
		WHERE session_id = ?
		ORDER BY issued_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return billing.Documents{}, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs billing.Documents
	for rows.Next() {
		var (
			h                      billing.Header
			kind, status           string
			sponsorID, issuedAt    sql.NullString
			before, after, paid    string
			downPayment, invoiceID sql.NullString
		)
		if err := rows.Scan(
			&h.ID, &kind, &h.Number, &h.SessionID, &sponsorID, &status, &issuedAt,
			&before, &after, &paid, &downPayment, &invoiceID,
		); err != nil {
			return billing.Documents{}, fmt.Errorf("failed to scan document: %w", err)
		}

		h.SponsorID = billing.SponsorID(sponsorID.String)
		if issuedAt.Valid {
			h.IssuedAt = parseTime(issuedAt.String)
		}
		if h.TotalBeforeTax, err = parseMoney(before); err != nil {
			return billing.Documents{}, err
		}
		if h.TotalAfterTax, err = parseMoney(after); err != nil {
			return billing.Documents{}, err
		}

		switch billing.DocumentKind(kind) {
		case billing.KindQuote:
			docs.Quotes = append(docs.Quotes, billing.Quote{Header: h, Status: billing.QuoteStatus(status)})
		case billing.KindInvoice:
			inv := billing.Invoice{Header: h, Status: billing.InvoiceStatus(status)}
			if inv.AmountPaid, err = parseMoney(paid); err != nil {
				return billing.Documents{}, err
			}
			if inv.DownPaymentPercent, err = parseOptionalDecimal(downPayment); err != nil {
				return billing.Documents{}, err
			}
			docs.Invoices = append(docs.Invoices, inv)
		case billing.KindCreditNote:
			docs.CreditNotes = append(docs.CreditNotes, billing.CreditNote{
				Header:    h,
				Status:    billing.CreditNoteStatus(status),
				InvoiceID: billing.DocumentID(invoiceID.String),
			})
		}
	}
	return docs, rows.Err()
}
