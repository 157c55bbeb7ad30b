/*
Package schedule detects trainer and room double-bookings between time slots.

PURPOSE:
  A slot belongs to one session and covers [Start, End) on one date. It may
  be assigned a trainer and a room. Within an organization, the same trainer
  or the same room must not be booked on two overlapping slots of the same
  date. The check is advisory: Detect only reports, callers decide.

KEY CONCEPTS IN THIS FILE (types.go):
  - Slot: an existing booking, with trainer/room/session display names
  - Proposal: a slot about to be saved, possibly the new version of an
    existing slot (ExcludeSlotID)
  - Conflict: one existing slot clashing with the proposal on one resource

SEE ALSO:
  - detect.go: the overlap scans
  - guard.go: optional redis advisory lock around check-then-save
  - booking.go: the guarded save flow
*/
package schedule

import (
	"fmt"

	"github.com/warp/formation-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SlotID string
type TrainerID string
type RoomID string

// Modality is how a slot is delivered.
type Modality string

const (
	ModalityInPerson   Modality = "in_person"
	ModalityRemote     Modality = "remote"
	ModalityELearning  Modality = "e_learning"
	ModalityInternship Modality = "internship"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityInPerson, ModalityRemote, ModalityELearning, ModalityInternship:
		return true
	}
	return false
}

// =============================================================================
// SLOT
// =============================================================================

type Slot struct {
	ID             SlotID
	OrganizationID generic.OrganizationID
	Session        generic.SessionRef
	Date           generic.TimePoint
	Start          generic.ClockTime
	End            generic.ClockTime
	Modality       Modality

	TrainerID   TrainerID // empty = no trainer
	TrainerName string
	RoomID      RoomID // empty = no room
	RoomName    string
}

func (s Slot) Interval() generic.Interval { return generic.Interval{Start: s.Start, End: s.End} }

// Proposal returns the proposal that re-saves this slot unchanged.
func (s Slot) Proposal() Proposal {
	return Proposal{
		OrganizationID: s.OrganizationID,
		Date:           s.Date,
		Start:          s.Start,
		End:            s.End,
		TrainerID:      s.TrainerID,
		RoomID:         s.RoomID,
		ExcludeSlotID:  s.ID,
	}
}

// =============================================================================
// PROPOSAL
// =============================================================================

type Proposal struct {
	OrganizationID generic.OrganizationID
	Date           generic.TimePoint
	Start          generic.ClockTime
	End            generic.ClockTime
	TrainerID      TrainerID
	RoomID         RoomID
	ExcludeSlotID  SlotID // the slot being edited, never a conflict with itself
}

func (p Proposal) Interval() generic.Interval { return generic.Interval{Start: p.Start, End: p.End} }

// HasResources reports whether the proposal names a trainer or a room.
// Without either, detection is skipped.
func (p Proposal) HasResources() bool { return p.TrainerID != "" || p.RoomID != "" }

// Validate rejects empty or inverted intervals and a missing date.
func (p Proposal) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("%w: slot date is required", generic.ErrInvalidInput)
	}
	if !p.Interval().Valid() {
		return &generic.InvalidIntervalError{Date: p.Date, Interval: p.Interval()}
	}
	return nil
}

// =============================================================================
// CONFLICT
// =============================================================================

type ConflictKind string

const (
	ConflictTrainer ConflictKind = "trainer"
	ConflictRoom    ConflictKind = "room"
)

// Conflict names the clashing party and the existing slot's own range.
type Conflict struct {
	Kind      ConflictKind
	SlotID    SlotID
	PartyID   string
	PartyName string
	Session   generic.SessionRef
	Date      generic.TimePoint
	Start     generic.ClockTime
	End       generic.ClockTime
}

// Message renders the conflict for a user, e.g.
// "trainer Alice Martin is already booked on session Excel from 09:00 to 12:00".
func (c Conflict) Message() string {
	name := c.PartyName
	if name == "" {
		name = c.PartyID
	}
	session := c.Session.Name
	if session == "" {
		session = string(c.Session.ID)
	}
	return fmt.Sprintf("%s %s is already booked on session %s from %s to %s", c.Kind, name, session, c.Start, c.End)
}
