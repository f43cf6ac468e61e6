package booking

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

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "practitioner_id", "slot_id", "scheduled_at",
		"duration_minutes", "reason", "department", "fee", "status", "priority",
		"created_at", "updated_at",
	})
}

func TestCreateAppointment_Insert(t *testing.T) {
	repo, mock := newTestRepository(t)

	apt := &types.Appointment{
		ID:              "apt-1",
		PatientID:       "patient-1",
		PractitionerID:  "prac-1",
		SlotID:          "slot-1",
		ScheduledAt:     time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Reason:          "persistent chest pain during exercise",
		Department:      "cardiology",
		Fee:             150.00,
		Status:          types.StatusScheduled,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(apt.ID, apt.PatientID, apt.PractitionerID, apt.SlotID, apt.ScheduledAt,
			apt.DurationMinutes, apt.Reason, apt.Department, apt.Fee, apt.Status, apt.Priority).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateAppointment(context.Background(), apt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentByID_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	apt, err := repo.GetAppointmentByID(context.Background(), "missing")
	assert.Nil(t, apt)

	var opsErr *types.OpsError
	require.True(t, errors.As(err, &opsErr))
	assert.Equal(t, types.ErrorTypeNotFound, opsErr.Type)
}

func TestUpdateAppointmentStatus_Transition(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", types.StatusScheduled, types.StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateAppointmentStatus(context.Background(), "apt-1", types.StatusScheduled, types.StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateAppointmentStatus_StaleFromState(t *testing.T) {
	repo, mock := newTestRepository(t)

	// Appointment left the from state: precondition fails with zero rows
	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", types.StatusScheduled, types.StatusCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateAppointmentStatus(context.Background(), "apt-1", types.StatusScheduled, types.StatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateAppointmentSlot_ActiveAppointment(t *testing.T) {
	repo, mock := newTestRepository(t)

	scheduledAt := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", "slot-2", scheduledAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateAppointmentSlot(context.Background(), "apt-1", "slot-2", scheduledAt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateAppointmentSlot_InactiveAppointmentRejected(t *testing.T) {
	repo, mock := newTestRepository(t)

	scheduledAt := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)

	// Appointment was cancelled after the caller's read: the active-state
	// precondition matches zero rows
	mock.ExpectExec("UPDATE appointments").
		WithArgs("apt-1", "slot-2", scheduledAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateAppointmentSlot(context.Background(), "apt-1", "slot-2", scheduledAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAppointments_FilterBuilding(t *testing.T) {
	repo, mock := newTestRepository(t)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := appointmentRows().AddRow(
		"apt-1", "patient-1", "prac-1", "slot-1", from.Add(34*time.Hour),
		30, "persistent chest pain during exercise", "cardiology", 150.00, "scheduled", false,
		now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE patient_id = (.+) AND status = (.+) AND scheduled_at >=").
		WithArgs("patient-1", types.StatusScheduled, from, 50).
		WillReturnRows(rows)

	appointments, err := repo.GetAppointments(context.Background(), &types.AppointmentFilters{
		PatientID: "patient-1",
		Status:    types.StatusScheduled,
		FromDate:  from,
		Limit:     50,
	})
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "apt-1", appointments[0].ID)
}

func TestMarkPaymentRefunded_Conditional(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE payments").
		WithArgs("pay-1", 150.00, "appointment cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkPaymentRefunded(context.Background(), "pay-1", 150.00, "appointment cancelled")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkPaymentRefunded_DoubleRefundRejected(t *testing.T) {
	repo, mock := newTestRepository(t)

	// Already refunded: status precondition no longer matches
	mock.ExpectExec("UPDATE payments").
		WithArgs("pay-1", 150.00, "duplicate").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkPaymentRefunded(context.Background(), "pay-1", 150.00, "duplicate")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetPaymentByAppointmentID_ScansNullables(t *testing.T) {
	repo, mock := newTestRepository(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "appointment_id", "patient_id", "amount", "currency", "method",
		"status", "transaction_id", "refund_amount", "refund_reason", "needs_review",
		"created_at", "updated_at",
	}).AddRow("pay-1", "apt-1", "patient-1", 150.00, "USD", "card",
		"completed", "txn-1", nil, nil, false, now, now)

	mock.ExpectQuery("SELECT (.+) FROM payments").
		WithArgs("apt-1").
		WillReturnRows(rows)

	payment, err := repo.GetPaymentByAppointmentID(context.Background(), "apt-1")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", payment.TransactionID)
	assert.Zero(t, payment.RefundAmount)
}

func TestFlagPaymentForReview(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec("UPDATE payments").
		WithArgs("pay-1", "refund failed during cancellation").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.FlagPaymentForReview(context.Background(), "pay-1", "refund failed during cancellation")
	assert.NoError(t, err)
}
