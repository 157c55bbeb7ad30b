package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/formation-engine/generic"
)

// =============================================================================
// BOOKING - Guarded check-then-save
// =============================================================================

// SlotWriter persists a slot (insert or update by ID).
type SlotWriter interface {
	SaveSlot(ctx context.Context, slot Slot) error
}

// SlotStore reads and writes slots.
type SlotStore interface {
	SlotSource
	SlotWriter
}

// ConflictError is returned by Book when RejectOnConflict is set and the
// detector found conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message())
	}
	return fmt.Sprintf("%s: %s", generic.ErrSlotConflict, strings.Join(msgs, "; "))
}

func (e *ConflictError) Unwrap() error { return generic.ErrSlotConflict }

// BookingResult is the saved slot and the conflicts found while saving it.
// Conflicts do not block the save unless the request says so.
type BookingResult struct {
	Slot      Slot
	Conflicts []Conflict
}

// Booker saves slots. With a non-nil Guard the check and the save run under
// the resource locks of the slot.
type Booker struct {
	Store SlotStore
	Guard *Guard
}

// Book checks a slot against the bookings of its date, then saves it.
// With rejectOnConflict, any conflict aborts the save with a ConflictError.
func (b *Booker) Book(ctx context.Context, slot Slot, rejectOnConflict bool) (BookingResult, error) {
	if !slot.Modality.Valid() {
		return BookingResult{}, fmt.Errorf("%w: modality %q", generic.ErrInvalidInput, slot.Modality)
	}
	p := slot.Proposal()
	if err := p.Validate(); err != nil {
		return BookingResult{}, err
	}

	var result BookingResult
	err := b.Guard.Do(ctx, p, func(ctx context.Context) error {
		conflicts, err := (&Checker{Source: b.Store}).Check(ctx, p)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 && rejectOnConflict {
			return &ConflictError{Conflicts: conflicts}
		}
		if err := b.Store.SaveSlot(ctx, slot); err != nil {
			return fmt.Errorf("save slot %s: %w", slot.ID, err)
		}
		result = BookingResult{Slot: slot, Conflicts: conflicts}
		return nil
	})
	if err != nil {
		return BookingResult{}, err
	}
	return result, nil
}
