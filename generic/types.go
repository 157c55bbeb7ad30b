/*
Package generic provides the shared kernel of the formation engine.

PURPOSE:
  This package contains the domain-agnostic types that the three engines
  (billing pipeline, budget consolidation, schedule conflicts) build on:
  identifiers that cross engine boundaries, calendar dates, clock times,
  half-open intervals, fiscal periods and the error vocabulary of the
  boundary around the engines.

KEY CONCEPTS IN THIS FILE (types.go):
  - OrganizationID: the tenant scope every query is restricted to
  - SessionID: a training session; owns sponsors, documents and slots
  - Session: the session row itself

DESIGN PRINCIPLES:
  1. Purity: nothing here performs I/O or holds state
  2. Type Safety: distinct ID types prevent mixing tenants and sessions
  3. Explicit defaults: zero values are meaningful (empty ID = no reference)

SEE ALSO:
  - time.go: TimePoint, ClockTime, Interval
  - period.go: FiscalCalendar
  - errors.go: sentinel and structured errors
*/
package generic

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OrganizationID string
type SessionID string

// SessionRef is the display projection of a session embedded in other rows.
type SessionRef struct {
	ID   SessionID `json:"id"`
	Name string    `json:"name"`
}

// Session is a training session of an organization.
type Session struct {
	ID             SessionID      `json:"id"`
	OrganizationID OrganizationID `json:"organization_id"`
	Name           string         `json:"name"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (s Session) Ref() SessionRef { return SessionRef{ID: s.ID, Name: s.Name} }
