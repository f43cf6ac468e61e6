package slots

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medcore/hospital-ops/pkg/database"
	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Repository implements the SlotRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new slot repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.SlotRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const slotColumns = `id, practitioner_id, slot_date, start_time, end_time, duration_minutes,
	max_patients, booked_count, slot_type, status, block_reason, block_description, blocked_by,
	created_at, updated_at`

// CreateSlot inserts a new slot
func (r *Repository) CreateSlot(ctx context.Context, slot *types.Slot) error {
	query := `
		INSERT INTO slots (
			id, practitioner_id, slot_date, start_time, end_time, duration_minutes,
			max_patients, booked_count, slot_type, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		slot.ID,
		slot.PractitionerID,
		slot.SlotDate,
		slot.StartTime,
		slot.EndTime,
		slot.DurationMinutes,
		slot.MaxPatients,
		slot.BookedCount,
		slot.Type,
		slot.Status,
	)

	if err != nil {
		r.logger.Errorf("Failed to create slot: %v", err)
		return fmt.Errorf("failed to create slot: %w", err)
	}

	r.logger.Infof("Created slot %s for practitioner %s", slot.ID, slot.PractitionerID)
	return nil
}

// GetSlotByID retrieves a slot by ID
func (r *Repository) GetSlotByID(ctx context.Context, id string) (*types.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("slot not found: %s", id))
		}
		r.logger.Errorf("Failed to get slot %s: %v", id, err)
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	return slot, nil
}

// GetOverlappingSlots returns slots whose window overlaps [start, end) for the
// given practitioner and date
func (r *Repository) GetOverlappingSlots(ctx context.Context, practitionerID string, date, start, end time.Time) ([]*types.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE practitioner_id = $1
		  AND slot_date = $2
		  AND start_time < $3
		  AND end_time > $4
		  AND status <> 'COMPLETED'
		ORDER BY start_time ASC`

	return r.querySlots(ctx, query, practitionerID, date, end, start)
}

// GetSlots retrieves slots for a practitioner in a date range, optionally
// filtered by status
func (r *Repository) GetSlots(ctx context.Context, practitionerID string, from, to time.Time, status types.SlotStatus) ([]*types.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE practitioner_id = $1
		  AND slot_date >= $2
		  AND slot_date <= $3`

	args := []interface{}{practitionerID, from, to}

	if status != "" {
		query += ` AND status = $4`
		args = append(args, status)
	}

	query += ` ORDER BY start_time ASC`

	return r.querySlots(ctx, query, args...)
}

// ReserveSlot performs the atomic compare-and-swap reservation. The update
// only matches while the slot is AVAILABLE with capacity headroom, so a lost
// race shows up as zero affected rows rather than an overbooked slot.
func (r *Repository) ReserveSlot(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE slots
		SET booked_count = booked_count + 1,
		    status = CASE WHEN booked_count + 1 >= max_patients THEN 'BOOKED' ELSE status END,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'AVAILABLE'
		  AND booked_count < max_patients`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Errorf("Failed to reserve slot %s: %v", id, err)
		return false, fmt.Errorf("failed to reserve slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// ReleaseSlot undoes a reservation: decrements the booking count and restores
// AVAILABLE on a previously full slot
func (r *Repository) ReleaseSlot(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE slots
		SET booked_count = booked_count - 1,
		    status = CASE WHEN status = 'BOOKED' THEN 'AVAILABLE' ELSE status END,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count > 0
		  AND status IN ('AVAILABLE', 'BOOKED')`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Errorf("Failed to release slot %s: %v", id, err)
		return false, fmt.Errorf("failed to release slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// BlockSlot marks a slot BLOCKED. Only an empty AVAILABLE slot can be blocked.
func (r *Repository) BlockSlot(ctx context.Context, id, reason, description, actorID string) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'BLOCKED',
		    block_reason = $2,
		    block_description = $3,
		    blocked_by = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'AVAILABLE'
		  AND booked_count = 0`

	result, err := r.db.ExecContext(ctx, query, id, reason, description, actorID)
	if err != nil {
		r.logger.Errorf("Failed to block slot %s: %v", id, err)
		return false, fmt.Errorf("failed to block slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// UnblockSlot restores a BLOCKED slot to AVAILABLE and clears the blocking metadata
func (r *Repository) UnblockSlot(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'AVAILABLE',
		    block_reason = NULL,
		    block_description = NULL,
		    blocked_by = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'BLOCKED'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Errorf("Failed to unblock slot %s: %v", id, err)
		return false, fmt.Errorf("failed to unblock slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// CompleteSlot moves a slot to its terminal COMPLETED state
func (r *Repository) CompleteSlot(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE slots
		SET status = 'COMPLETED',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('AVAILABLE', 'BOOKED')`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Errorf("Failed to complete slot %s: %v", id, err)
		return false, fmt.Errorf("failed to complete slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *Repository) querySlots(ctx context.Context, query string, args ...interface{}) ([]*types.Slot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Errorf("Failed to query slots: %v", err)
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var result []*types.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			r.logger.Errorf("Failed to scan slot: %v", err)
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		result = append(result, slot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	return result, nil
}

// rowScanner matches both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*types.Slot, error) {
	slot := &types.Slot{}
	var blockReason, blockDescription, blockedBy sql.NullString

	err := row.Scan(
		&slot.ID,
		&slot.PractitionerID,
		&slot.SlotDate,
		&slot.StartTime,
		&slot.EndTime,
		&slot.DurationMinutes,
		&slot.MaxPatients,
		&slot.BookedCount,
		&slot.Type,
		&slot.Status,
		&blockReason,
		&blockDescription,
		&blockedBy,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	slot.BlockReason = blockReason.String
	slot.BlockDescription = blockDescription.String
	slot.BlockedBy = blockedBy.String

	return slot, nil
}
