package slots

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcore/hospital-ops/pkg/database"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db := database.NewFromSQL(sqlDB, logger.New("error"))
	return &Repository{db: db, logger: logger.New("error")}, mock
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "practitioner_id", "slot_date", "start_time", "end_time", "duration_minutes",
		"max_patients", "booked_count", "slot_type", "status", "block_reason", "block_description",
		"blocked_by", "created_at", "updated_at",
	})
}

func TestCreateSlot(t *testing.T) {
	repo, mock := newTestRepository(t)

	slot := &types.Slot{
		ID:              "slot-1",
		PractitionerID:  "prac-1",
		SlotDate:        time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime:       time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2026, 9, 14, 9, 30, 0, 0, time.UTC),
		DurationMinutes: 30,
		MaxPatients:     1,
		Type:            types.SlotTypeRegular,
		Status:          types.SlotAvailable,
	}

	mock.ExpectExec("INSERT INTO slots").
		WithArgs(slot.ID, slot.PractitionerID, slot.SlotDate, slot.StartTime, slot.EndTime,
			slot.DurationMinutes, slot.MaxPatients, slot.BookedCount, slot.Type, slot.Status).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateSlot(context.Background(), slot)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSlotByID_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM slots WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	slot, err := repo.GetSlotByID(context.Background(), "missing")
	assert.Nil(t, slot)

	var opsErr *types.OpsError
	require.True(t, errors.As(err, &opsErr))
	assert.Equal(t, types.ErrorTypeNotFound, opsErr.Type)
}

func TestGetSlotByID_ScansBlockMetadata(t *testing.T) {
	repo, mock := newTestRepository(t)

	now := time.Now()
	rows := slotRows().AddRow(
		"slot-1", "prac-1", now, now, now.Add(30*time.Minute), 30,
		1, 0, "regular", "BLOCKED", "emergency", "surgery overrun", "prac-1", now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM slots WHERE id").
		WithArgs("slot-1").
		WillReturnRows(rows)

	slot, err := repo.GetSlotByID(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.Equal(t, types.SlotBlocked, slot.Status)
	assert.Equal(t, "emergency", slot.BlockReason)
	assert.Equal(t, "prac-1", slot.BlockedBy)
}

func TestReserveSlot_Won(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reserved, err := repo.ReserveSlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestReserveSlot_LostRace(t *testing.T) {
	repo, mock := newTestRepository(t)

	// Precondition no longer holds: zero rows matched, no error
	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	reserved, err := repo.ReserveSlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestReleaseSlot(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	released, err := repo.ReleaseSlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.True(t, released)
}

func TestReleaseSlot_NothingToRelease(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	released, err := repo.ReleaseSlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestBlockSlot(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1", "vacation", "out of office", "prac-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	blocked, err := repo.BlockSlot(context.Background(), "slot-1", "vacation", "out of office", "prac-1")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlockSlot_SlotNotEmpty(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1", "vacation", "", "prac-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	blocked, err := repo.BlockSlot(context.Background(), "slot-1", "vacation", "", "prac-1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestUnblockSlot(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE slots").
		WithArgs("slot-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	unblocked, err := repo.UnblockSlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.True(t, unblocked)
}

func TestGetOverlappingSlots(t *testing.T) {
	repo, mock := newTestRepository(t)

	date := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	rows := slotRows().AddRow(
		"slot-1", "prac-1", date, start, end, 60,
		1, 0, "regular", "AVAILABLE", nil, nil, nil, date, date,
	)

	mock.ExpectQuery("SELECT (.+) FROM slots").
		WithArgs("prac-1", date, end, start).
		WillReturnRows(rows)

	slots, err := repo.GetOverlappingSlots(context.Background(), "prac-1", date, start, end)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "slot-1", slots[0].ID)
}

func TestGetSlots_StatusFilter(t *testing.T) {
	repo, mock := newTestRepository(t)

	from := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM slots").
		WithArgs("prac-1", from, to, types.SlotAvailable).
		WillReturnRows(slotRows())

	slots, err := repo.GetSlots(context.Background(), "prac-1", from, to, types.SlotAvailable)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}
