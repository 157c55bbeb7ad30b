package schedule

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/formation-engine/generic"
)

// =============================================================================
// DETECTION - Two independent half-open overlap scans
// =============================================================================

// Detect reports every existing slot that books the proposal's trainer or
// room over an overlapping interval on the same date and organization.
//
// Rules:
//   - [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1; touching is fine
//   - the slot named by ExcludeSlotID is skipped
//   - a proposal with neither trainer nor room returns no conflicts
//   - one slot sharing both trainer and room yields two conflicts
//
// Output order: trainer conflicts, then room conflicts, each by start time
// then slot id.
func Detect(p Proposal, existing []Slot) []Conflict {
	if !p.HasResources() {
		return nil
	}

	want := p.Interval()
	var conflicts []Conflict
	for _, s := range existing {
		if s.ID != "" && s.ID == p.ExcludeSlotID {
			continue
		}
		if s.OrganizationID != p.OrganizationID || !s.Date.Equal(p.Date) {
			continue
		}
		if !s.Interval().Overlaps(want) {
			continue
		}
		if p.TrainerID != "" && s.TrainerID == p.TrainerID {
			conflicts = append(conflicts, conflictOf(ConflictTrainer, s, string(s.TrainerID), s.TrainerName))
		}
		if p.RoomID != "" && s.RoomID == p.RoomID {
			conflicts = append(conflicts, conflictOf(ConflictRoom, s, string(s.RoomID), s.RoomName))
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Kind != b.Kind {
			return a.Kind == ConflictTrainer
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.SlotID < b.SlotID
	})
	return conflicts
}

func conflictOf(kind ConflictKind, s Slot, partyID, partyName string) Conflict {
	return Conflict{
		Kind:      kind,
		SlotID:    s.ID,
		PartyID:   partyID,
		PartyName: partyName,
		Session:   s.Session,
		Date:      s.Date,
		Start:     s.Start,
		End:       s.End,
	}
}

// =============================================================================
// CHECKER - Validate, fetch, detect
// =============================================================================

// SlotSource provides the slots of one organization on one date.
type SlotSource interface {
	SlotsOn(ctx context.Context, organizationID generic.OrganizationID, date generic.TimePoint) ([]Slot, error)
}

type Checker struct {
	Source SlotSource
}

// Check validates the proposal and detects its conflicts. Proposals without
// trainer or room never hit the source.
func (c *Checker) Check(ctx context.Context, p Proposal) ([]Conflict, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !p.HasResources() {
		return nil, nil
	}
	existing, err := c.Source.SlotsOn(ctx, p.OrganizationID, p.Date)
	if err != nil {
		return nil, fmt.Errorf("load slots of %s on %s: %w", p.OrganizationID, p.Date, err)
	}
	return Detect(p, existing), nil
}
