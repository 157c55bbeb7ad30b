/*
Package sqlite provides a SQLite-backed implementation of the engine sources.

PURPOSE:
  The engines never fetch anything themselves. This package is the
  collaborator that reads the projections they consume and writes the few
  rows the engine layer owns (slots, plan archives, seed data).

INTERFACES IMPLEMENTED:
  billing.Source:       Sponsors and documents of a session
  budget.Source:        Plan, training needs and agency budgets of a year
  budget.TariffSource:  Default tariffs of a batch of products (one query)
  schedule.SlotStore:   Slots of an organization on a date, slot upsert

KEY TABLES:
  sessions, parties, sponsors, documents     billing pipeline
  enterprises, agencies, agency_budgets,
  plans, training_needs, products, tariffs   budget consolidation
  trainers, rooms, slots                     schedule conflicts

INDEXES:
  - idx_plans_live: one live (non-archived) plan per enterprise and year
  - idx_tariffs_default: one default tariff per product
  - idx_slots_org_date: the conflict scan reads one organization-day

MONEY:
  Amounts are stored as decimal TEXT and parsed with shopspring/decimal, so
  no value ever passes through a float.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode lets readers proceed while
  a single writer commits.

USAGE:
  store, err := sqlite.New("./data/formation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  calc := &billing.PipelineCalculator{Source: store}

SEE ALSO:
  - store/memory: in-memory implementation of the same interfaces
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/formation-engine/money"
)

// Store implements all engine sources using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Billing pipeline
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sponsors (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		company_id TEXT,
		contact_id TEXT,
		financer_id TEXT,
		budget TEXT NOT NULL DEFAULT '0',
		subrogation TEXT NOT NULL DEFAULT 'company',
		company_share TEXT NOT NULL DEFAULT '0',
		financer_share TEXT NOT NULL DEFAULT '0',
		invoice_company BOOLEAN NOT NULL DEFAULT TRUE,
		invoice_financer BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sponsors_session
		ON sponsors(session_id, created_at);

	-- Quotes, invoices and credit notes share one table, discriminated by kind
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('quote', 'invoice', 'credit_note')),
		number TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		sponsor_id TEXT,
		status TEXT NOT NULL,
		issued_at TEXT,
		total_before_tax TEXT NOT NULL DEFAULT '0',
		total_after_tax TEXT NOT NULL DEFAULT '0',
		amount_paid TEXT NOT NULL DEFAULT '0',
		down_payment_percent TEXT,
		invoice_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_documents_session
		ON documents(session_id, kind);

	-- Budget consolidation
	CREATE TABLE IF NOT EXISTS enterprises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agencies (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
		name TEXT NOT NULL
	);

	-- agency_id '' is the head office allocation
	CREATE TABLE IF NOT EXISTS agency_budgets (
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
		agency_id TEXT NOT NULL DEFAULT '',
		fiscal_year INTEGER NOT NULL,
		allocated TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (enterprise_id, agency_id, fiscal_year)
	);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
		fiscal_year INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		allocated_total TEXT NOT NULL DEFAULT '0',
		vigilance_threshold TEXT,
		archived_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_live
		ON plans(enterprise_id, fiscal_year) WHERE archived_at IS NULL;

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tariffs (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		label TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_tariffs_default
		ON tariffs(product_id) WHERE is_default;

	CREATE TABLE IF NOT EXISTS training_needs (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
		fiscal_year INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		plan_id TEXT,
		one_off BOOLEAN NOT NULL DEFAULT FALSE,
		product_id TEXT,
		agency_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_training_needs_scope
		ON training_needs(enterprise_id, fiscal_year);
	CREATE INDEX IF NOT EXISTS idx_training_needs_plan
		ON training_needs(plan_id) WHERE plan_id IS NOT NULL;

	-- Schedule
	CREATE TABLE IF NOT EXISTS trainers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS slots (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		date TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		modality TEXT NOT NULL,
		trainer_id TEXT,
		room_id TEXT,
		CHECK (end_minute > start_minute)
	);

	CREATE INDEX IF NOT EXISTS idx_slots_org_date
		ON slots(organization_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"slots", "rooms", "trainers",
		"training_needs", "tariffs", "products", "plans", "agency_budgets", "agencies", "enterprises",
		"documents", "sponsors", "parties", "sessions",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// timestampLayout has a fixed width so text ordering is chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseMoney(s string) (money.Money, error) {
	m, err := money.Parse(s)
	if err != nil {
		return money.Zero(), fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return m, nil
}

func parseOptionalDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt decimal %q: %w", ns.String, err)
	}
	return &d, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
