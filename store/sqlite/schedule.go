package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/formation-engine/generic"
	"github.com/warp/formation-engine/schedule"
)

// =============================================================================
// TRAINERS AND ROOMS
// =============================================================================

// SaveTrainer upserts a trainer.
func (s *Store) SaveTrainer(ctx context.Context, id schedule.TrainerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO trainers (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		id, name)
	if err != nil {
		return fmt.Errorf("failed to save trainer: %w", err)
	}
	return nil
}

// SaveRoom upserts a room.
func (s *Store) SaveRoom(ctx context.Context, id schedule.RoomID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rooms (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name",
		id, name)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// =============================================================================
// SLOTS (schedule.SlotStore)
// =============================================================================

// SaveSlot inserts or updates a slot. Display names are not stored: they are
// joined from sessions, trainers and rooms on read. A slot id held by another
// organization is reported as not found and left untouched.
func (s *Store) SaveSlot(ctx context.Context, slot schedule.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (id, organization_id, session_id, date, start_minute, end_minute, modality, trainer_id, room_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			date = excluded.date,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			modality = excluded.modality,
			trainer_id = excluded.trainer_id,
			room_id = excluded.room_id
		WHERE slots.organization_id = excluded.organization_id
	`,
		slot.ID, slot.OrganizationID, slot.Session.ID, slot.Date.String(),
		int(slot.Start), int(slot.End), slot.Modality,
		nullString(string(slot.TrainerID)), nullString(string(slot.RoomID)),
	)
	if err != nil {
		return fmt.Errorf("failed to save slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save slot: %w", err)
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: "slot", ID: string(slot.ID)}
	}
	return nil
}

const slotSelect = `
	SELECT sl.id, sl.organization_id, sl.session_id, COALESCE(se.name, ''), sl.date,
	       sl.start_minute, sl.end_minute, sl.modality,
	       sl.trainer_id, COALESCE(tr.name, ''), sl.room_id, COALESCE(ro.name, '')
	FROM slots sl
	LEFT JOIN sessions se ON se.id = sl.session_id
	LEFT JOIN trainers tr ON tr.id = sl.trainer_id
	LEFT JOIN rooms ro ON ro.id = sl.room_id`

func scanSlot(row rowScanner) (schedule.Slot, error) {
	var (
		sl                schedule.Slot
		date              string
		start, end        int
		trainerID, roomID sql.NullString
	)
	if err := row.Scan(
		&sl.ID, &sl.OrganizationID, &sl.Session.ID, &sl.Session.Name, &date,
		&start, &end, &sl.Modality,
		&trainerID, &sl.TrainerName, &roomID, &sl.RoomName,
	); err != nil {
		return schedule.Slot{}, err
	}
	d, err := generic.ParseDate(date)
	if err != nil {
		return schedule.Slot{}, err
	}
	sl.Date = d
	sl.Start = generic.ClockTime(start)
	sl.End = generic.ClockTime(end)
	sl.TrainerID = schedule.TrainerID(trainerID.String)
	sl.RoomID = schedule.RoomID(roomID.String)
	return sl, nil
}

// GetSlot returns one slot with its display names.
func (s *Store) GetSlot(ctx context.Context, id schedule.SlotID) (*schedule.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, err := scanSlot(s.db.QueryRowContext(ctx, slotSelect+` WHERE sl.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "slot", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &sl, nil
}

// SlotsOn returns the slots of an organization on one date, ordered by start.
func (s *Store) SlotsOn(ctx context.Context, organizationID generic.OrganizationID, date generic.TimePoint) ([]schedule.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, slotSelect+`
		WHERE sl.organization_id = ? AND sl.date = ?
		ORDER BY sl.start_minute, sl.id
	`, organizationID, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []schedule.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}
