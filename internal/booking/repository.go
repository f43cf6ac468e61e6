package booking

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medcore/hospital-ops/pkg/database"
	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Repository implements the AppointmentRepository interface
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new appointment repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.AppointmentRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const appointmentColumns = `id, patient_id, practitioner_id, slot_id, scheduled_at,
	duration_minutes, reason, department, fee, status, priority, created_at, updated_at`

// CreateAppointment inserts a new appointment
func (r *Repository) CreateAppointment(ctx context.Context, apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, practitioner_id, slot_id, scheduled_at,
			duration_minutes, reason, department, fee, status, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.PractitionerID,
		apt.SlotID,
		apt.ScheduledAt,
		apt.DurationMinutes,
		apt.Reason,
		apt.Department,
		apt.Fee,
		apt.Status,
		apt.Priority,
	)
	if err != nil {
		r.logger.Errorf("Failed to create appointment: %v", err)
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	r.logger.Infof("Created appointment %s for patient %s", apt.ID, apt.PatientID)
	return nil
}

// GetAppointmentByID retrieves an appointment by ID
func (r *Repository) GetAppointmentByID(ctx context.Context, id string) (*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	apt := &types.Appointment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&apt.ID,
		&apt.PatientID,
		&apt.PractitionerID,
		&apt.SlotID,
		&apt.ScheduledAt,
		&apt.DurationMinutes,
		&apt.Reason,
		&apt.Department,
		&apt.Fee,
		&apt.Status,
		&apt.Priority,
		&apt.CreatedAt,
		&apt.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment not found: %s", id))
		}
		r.logger.Errorf("Failed to get appointment %s: %v", id, err)
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return apt, nil
}

// GetAppointments retrieves appointments matching the given filters
func (r *Repository) GetAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, clause+"$"+strconv.Itoa(len(args)))
	}

	if filters.PatientID != "" {
		addCondition("patient_id = ", filters.PatientID)
	}
	if filters.PractitionerID != "" {
		addCondition("practitioner_id = ", filters.PractitionerID)
	}
	if filters.Status != "" {
		addCondition("status = ", filters.Status)
	}
	if !filters.FromDate.IsZero() {
		addCondition("scheduled_at >= ", filters.FromDate)
	}
	if !filters.ToDate.IsZero() {
		addCondition("scheduled_at <= ", filters.ToDate)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY scheduled_at ASC"

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Errorf("Failed to query appointments: %v", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt := &types.Appointment{}
		err := rows.Scan(
			&apt.ID,
			&apt.PatientID,
			&apt.PractitionerID,
			&apt.SlotID,
			&apt.ScheduledAt,
			&apt.DurationMinutes,
			&apt.Reason,
			&apt.Department,
			&apt.Fee,
			&apt.Status,
			&apt.Priority,
			&apt.CreatedAt,
			&apt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, apt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}

	return appointments, nil
}

// UpdateAppointmentStatus applies a conditional from-to transition. Zero
// affected rows means the appointment was no longer in the from state.
func (r *Repository) UpdateAppointmentStatus(ctx context.Context, id string, from, to types.AppointmentStatus) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		r.logger.Errorf("Failed to update appointment %s status: %v", id, err)
		return false, fmt.Errorf("failed to update appointment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// UpdateAppointmentSlot re-points an active appointment at a new slot. Zero
// affected rows means the appointment left the active states between the
// caller's read and this write, so the reschedule lost the race.
func (r *Repository) UpdateAppointmentSlot(ctx context.Context, id, slotID string, scheduledAt time.Time) (bool, error) {
	query := `
		UPDATE appointments
		SET slot_id = $2, scheduled_at = $3, updated_at = now()
		WHERE id = $1 AND status IN ('scheduled', 'confirmed')`

	result, err := r.db.ExecContext(ctx, query, id, slotID, scheduledAt)
	if err != nil {
		r.logger.Errorf("Failed to update appointment %s slot: %v", id, err)
		return false, fmt.Errorf("failed to update appointment slot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// CreatePayment inserts a payment record
func (r *Repository) CreatePayment(ctx context.Context, payment *types.Payment) error {
	query := `
		INSERT INTO payments (
			id, appointment_id, patient_id, amount, currency, method,
			status, transaction_id, needs_review
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.AppointmentID,
		payment.PatientID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Status,
		payment.TransactionID,
		payment.NeedsReview,
	)
	if err != nil {
		r.logger.Errorf("Failed to create payment: %v", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetPaymentByAppointmentID retrieves the payment tied to an appointment
func (r *Repository) GetPaymentByAppointmentID(ctx context.Context, appointmentID string) (*types.Payment, error) {
	query := `
		SELECT id, appointment_id, patient_id, amount, currency, method,
			status, transaction_id, refund_amount, refund_reason, needs_review,
			created_at, updated_at
		FROM payments
		WHERE appointment_id = $1`

	payment := &types.Payment{}
	var transactionID, refundReason sql.NullString
	var refundAmount sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, appointmentID).Scan(
		&payment.ID,
		&payment.AppointmentID,
		&payment.PatientID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&transactionID,
		&refundAmount,
		&refundReason,
		&payment.NeedsReview,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("no payment for appointment: %s", appointmentID))
		}
		r.logger.Errorf("Failed to get payment for appointment %s: %v", appointmentID, err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	payment.TransactionID = transactionID.String
	payment.RefundAmount = refundAmount.Float64
	payment.RefundReason = refundReason.String

	return payment, nil
}

// MarkPaymentRefunded transitions a completed payment to refunded. The
// conditional update makes a double refund impossible at the storage level.
func (r *Repository) MarkPaymentRefunded(ctx context.Context, paymentID string, amount float64, reason string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'refunded', refund_amount = $2, refund_reason = $3, updated_at = now()
		WHERE id = $1 AND status = 'completed' AND $2 <= amount`

	result, err := r.db.ExecContext(ctx, query, paymentID, amount, reason)
	if err != nil {
		r.logger.Errorf("Failed to mark payment %s refunded: %v", paymentID, err)
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// FlagPaymentForReview marks a payment for manual reconciliation
func (r *Repository) FlagPaymentForReview(ctx context.Context, paymentID, reason string) error {
	query := `
		UPDATE payments
		SET needs_review = true, refund_reason = $2, updated_at = now()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, paymentID, reason)
	if err != nil {
		r.logger.Errorf("Failed to flag payment %s for review: %v", paymentID, err)
		return fmt.Errorf("failed to flag payment for review: %w", err)
	}

	r.logger.Warnf("Payment %s flagged for manual review: %s", paymentID, reason)
	return nil
}
