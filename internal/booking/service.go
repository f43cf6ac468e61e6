package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Service orchestrates the booking transaction: business-rule validation,
// atomic slot reservation, payment capture, persistence and compensating
// rollback of completed steps when a later step fails.
type Service struct {
	repository interfaces.AppointmentRepository
	slots      interfaces.SlotService
	payments   interfaces.PaymentProcessor
	identity   interfaces.IdentityClient
	audit      interfaces.AuditSink
	policy     config.BookingConfig
	metrics    *monitoring.MetricsCollector
	logger     *logger.Logger

	now func() time.Time
}

// NewService creates the booking orchestrator
func NewService(
	repo interfaces.AppointmentRepository,
	slots interfaces.SlotService,
	payments interfaces.PaymentProcessor,
	identity interfaces.IdentityClient,
	audit interfaces.AuditSink,
	policy config.BookingConfig,
	metrics *monitoring.MetricsCollector,
	log *logger.Logger,
) *Service {
	return &Service{
		repository: repo,
		slots:      slots,
		payments:   payments,
		identity:   identity,
		audit:      audit,
		policy:     policy,
		metrics:    metrics,
		logger:     log,
		now:        time.Now,
	}
}

// CreateAppointment runs the booking flow. Validation happens before any
// mutation; once the slot is reserved every later failure unwinds the
// completed steps in reverse before the error is surfaced.
func (s *Service) CreateAppointment(ctx context.Context, req *types.BookingRequest, actor *types.UserClaims) (*types.Appointment, error) {
	s.logger.Infof("Booking request: patient %s, practitioner %s, slot %s",
		req.PatientID, req.PractitionerID, req.SlotID)

	if err := s.validateBookingRequest(req, actor); err != nil {
		return nil, err
	}

	if err := s.validateParticipants(ctx, req); err != nil {
		return nil, err
	}

	slot, err := s.slots.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}

	if slot.PractitionerID != req.PractitionerID {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"slot does not belong to the requested practitioner", nil)
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = slot.StartTime
	}

	if scheduledAt.Before(slot.StartTime) || !scheduledAt.Before(slot.EndTime) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"scheduled time falls outside the slot window", nil)
	}

	if err := s.validateTemporalPolicy(scheduledAt); err != nil {
		return nil, err
	}

	if err := s.payments.Validate(req.Payment); err != nil {
		return nil, err
	}

	if err := s.payments.CheckFraud(ctx, req.Payment); err != nil {
		return nil, err
	}

	// Nothing has been persisted up to this point. From here on, every
	// completed step registers its undo action.
	comp := newCompensator(s.metrics, s.logger)

	if err := s.slots.Reserve(ctx, req.SlotID); err != nil {
		return nil, err
	}
	comp.add("reserve_slot", func(ctx context.Context) error {
		return s.slots.Release(ctx, req.SlotID)
	})

	chargeResult, err := s.payments.Charge(ctx, req.Payment)
	if err != nil {
		comp.rollback(ctx)
		return nil, err
	}
	comp.add("charge_payment", func(ctx context.Context) error {
		_, refundErr := s.payments.Refund(ctx, &types.Payment{
			Amount:        req.Payment.Amount,
			Currency:      req.Payment.Currency,
			Method:        req.Payment.Method,
			Status:        types.PaymentCompleted,
			TransactionID: chargeResult.TransactionID,
		}, req.Payment.Amount, "booking rolled back")
		return refundErr
	})

	apt := &types.Appointment{
		ID:              uuid.New().String(),
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		SlotID:          req.SlotID,
		ScheduledAt:     scheduledAt,
		DurationMinutes: slot.DurationMinutes,
		Reason:          strings.TrimSpace(req.Reason),
		Department:      req.Department,
		Fee:             req.Payment.Amount,
		Status:          types.StatusScheduled,
		Priority:        req.Priority,
	}

	if err := s.repository.CreateAppointment(ctx, apt); err != nil {
		comp.rollback(ctx)
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to persist appointment", err)
	}
	comp.add("persist_appointment", func(ctx context.Context) error {
		_, undoErr := s.repository.UpdateAppointmentStatus(ctx, apt.ID, types.StatusScheduled, types.StatusCancelled)
		return undoErr
	})

	payment := &types.Payment{
		ID:            uuid.New().String(),
		AppointmentID: apt.ID,
		PatientID:     req.PatientID,
		Amount:        req.Payment.Amount,
		Currency:      req.Payment.Currency,
		Method:        req.Payment.Method,
		Status:        types.PaymentCompleted,
		TransactionID: chargeResult.TransactionID,
	}
	if err := s.repository.CreatePayment(ctx, payment); err != nil {
		comp.rollback(ctx)
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to persist payment", err)
	}

	s.recordAudit(actor, types.ActionCreateAppointment, "appointment", apt.ID, apt.PatientID,
		nil, appointmentSnapshot(apt), types.OutcomeSuccess)
	s.recordAudit(actor, types.ActionProcessPayment, "payment", payment.ID, apt.PatientID,
		nil, map[string]interface{}{
			"amount":         payment.Amount,
			"currency":       payment.Currency,
			"method":         string(payment.Method),
			"transaction_id": payment.TransactionID,
		}, types.OutcomeSuccess)

	s.logger.Infof("Appointment %s booked: slot %s, transaction %s", apt.ID, apt.SlotID, payment.TransactionID)
	return apt, nil
}

// RescheduleAppointment reserves the new slot first; only on success is the
// old slot released and the appointment re-pointed. A reservation conflict
// leaves the original booking untouched.
func (s *Service) RescheduleAppointment(ctx context.Context, appointmentID, newSlotID string, actor *types.UserClaims) (*types.Appointment, error) {
	apt, err := s.repository.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeActor(actor, apt); err != nil {
		return nil, err
	}

	if !apt.IsActive() {
		return nil, types.NewBusinessLogicError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot reschedule a %s appointment", apt.Status), nil)
	}

	newSlot, err := s.slots.GetSlot(ctx, newSlotID)
	if err != nil {
		return nil, err
	}

	if newSlot.PractitionerID != apt.PractitionerID {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"new slot belongs to a different practitioner", nil)
	}

	if err := s.validateTemporalPolicy(newSlot.StartTime); err != nil {
		return nil, err
	}

	if err := s.slots.Reserve(ctx, newSlotID); err != nil {
		return nil, err
	}

	oldSlotID := apt.SlotID
	moved, err := s.repository.UpdateAppointmentSlot(ctx, appointmentID, newSlotID, newSlot.StartTime)
	if err != nil {
		s.metrics.RecordCompensation("reserve_slot")
		if releaseErr := s.slots.Release(ctx, newSlotID); releaseErr != nil {
			s.logger.Errorf("Failed to release slot %s after reschedule failure: %v", newSlotID, releaseErr)
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to update appointment", err)
	}
	if !moved {
		// A concurrent cancel or completion moved the appointment out of its
		// active state after the read above. The reschedule loses: give the
		// new slot back and leave the appointment as the winner left it.
		s.metrics.RecordCompensation("reserve_slot")
		if releaseErr := s.slots.Release(ctx, newSlotID); releaseErr != nil {
			s.logger.Errorf("Failed to release slot %s after losing reschedule race: %v", newSlotID, releaseErr)
		}
		return nil, types.NewConflictError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("appointment %s is no longer active", appointmentID))
	}

	if err := s.slots.Release(ctx, oldSlotID); err != nil {
		// The appointment already points at the new slot. Stale capacity on
		// the old slot is an operational cleanup, not a booking failure.
		s.logger.Errorf("Failed to release old slot %s after reschedule: %v", oldSlotID, err)
	}

	s.recordAudit(actor, types.ActionRescheduleAppointment, "appointment", apt.ID, apt.PatientID,
		map[string]interface{}{"slot_id": oldSlotID, "scheduled_at": apt.ScheduledAt},
		map[string]interface{}{"slot_id": newSlotID, "scheduled_at": newSlot.StartTime},
		types.OutcomeSuccess)

	apt.SlotID = newSlotID
	apt.ScheduledAt = newSlot.StartTime

	s.logger.Infof("Appointment %s rescheduled from slot %s to %s", apt.ID, oldSlotID, newSlotID)
	return apt, nil
}

// CancelAppointment marks the appointment cancelled, releases its slot and
// refunds a completed payment. A failed refund does not revert the
// cancellation: releasing a slot is always safe to keep, while re-issuing a
// refund risks a duplicate payout, so the payment is flagged for manual
// reconciliation instead.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error {
	apt, err := s.repository.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	if err := s.authorizeActor(actor, apt); err != nil {
		return err
	}

	if !apt.IsActive() {
		return types.NewBusinessLogicError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot cancel a %s appointment", apt.Status), nil)
	}

	now := s.now()
	if apt.ScheduledAt.Before(now) {
		return types.NewBusinessLogicError(types.ErrCodeCancellationPolicy,
			"cannot cancel a past appointment", nil)
	}

	if sameCalendarDay(apt.ScheduledAt, now) {
		return types.NewBusinessLogicError(types.ErrCodeCancellationPolicy,
			"cannot cancel on the appointment day", nil)
	}

	transitioned, err := s.repository.UpdateAppointmentStatus(ctx, appointmentID, apt.Status, types.StatusCancelled)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to cancel appointment", err)
	}
	if !transitioned {
		return types.NewConflictError(types.ErrCodeInvalidTransition,
			"appointment state changed, please retry")
	}

	if err := s.slots.Release(ctx, apt.SlotID); err != nil {
		s.logger.Errorf("Failed to release slot %s after cancellation: %v", apt.SlotID, err)
	}

	s.recordAudit(actor, types.ActionCancelAppointment, "appointment", apt.ID, apt.PatientID,
		appointmentSnapshot(apt),
		map[string]interface{}{"status": string(types.StatusCancelled)},
		types.OutcomeSuccess)

	return s.refundCancelledAppointment(ctx, apt, actor)
}

// refundCancelledAppointment drives the refund leg of a cancellation
func (s *Service) refundCancelledAppointment(ctx context.Context, apt *types.Appointment, actor *types.UserClaims) error {
	payment, err := s.repository.GetPaymentByAppointmentID(ctx, apt.ID)
	if err != nil {
		var opsErr *types.OpsError
		if errors.As(err, &opsErr) && opsErr.Type == types.ErrorTypeNotFound {
			return nil
		}
		return err
	}

	if payment.Status != types.PaymentCompleted {
		return nil
	}

	result, err := s.payments.Refund(ctx, payment, payment.Amount, "appointment cancelled")
	if err != nil {
		if flagErr := s.repository.FlagPaymentForReview(ctx, payment.ID, "refund failed during cancellation"); flagErr != nil {
			s.logger.Errorf("Failed to flag payment %s for review: %v", payment.ID, flagErr)
		}

		s.recordAudit(actor, types.ActionRefundPayment, "payment", payment.ID, apt.PatientID,
			nil, map[string]interface{}{"error": err.Error()}, types.OutcomeFailure)

		return types.NewExternalServiceError(types.ErrCodeRefundFailed,
			"appointment cancelled but refund failed, flagged for manual review", err)
	}

	refunded, err := s.repository.MarkPaymentRefunded(ctx, payment.ID, payment.Amount, "appointment cancelled")
	if err != nil || !refunded {
		if flagErr := s.repository.FlagPaymentForReview(ctx, payment.ID, "refund issued but not recorded"); flagErr != nil {
			s.logger.Errorf("Failed to flag payment %s for review: %v", payment.ID, flagErr)
		}
		s.logger.Errorf("Refund %s issued but payment %s not marked refunded", result.RefundID, payment.ID)
		return nil
	}

	s.recordAudit(actor, types.ActionRefundPayment, "payment", payment.ID, apt.PatientID,
		map[string]interface{}{"status": string(types.PaymentCompleted)},
		map[string]interface{}{"status": string(types.PaymentRefunded), "refund_id": result.RefundID},
		types.OutcomeSuccess)

	return nil
}

// ConfirmAppointment moves scheduled to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error {
	return s.transition(ctx, appointmentID, types.StatusScheduled, types.StatusConfirmed, actor)
}

// CompleteAppointment moves confirmed to completed and closes out the slot
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error {
	apt, err := s.repository.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, appointmentID, types.StatusConfirmed, types.StatusCompleted, actor); err != nil {
		return err
	}

	if err := s.slots.Complete(ctx, apt.SlotID); err != nil {
		s.logger.Errorf("Failed to complete slot %s: %v", apt.SlotID, err)
	}

	return nil
}

func (s *Service) transition(ctx context.Context, appointmentID string, from, to types.AppointmentStatus, actor *types.UserClaims) error {
	apt, err := s.repository.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	if err := s.authorizeActor(actor, apt); err != nil {
		return err
	}

	transitioned, err := s.repository.UpdateAppointmentStatus(ctx, appointmentID, from, to)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update appointment", err)
	}
	if !transitioned {
		return types.NewConflictError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("appointment is not in the %s state", from))
	}

	s.logger.Infof("Appointment %s moved %s -> %s", appointmentID, from, to)
	return nil
}

// GetAppointment retrieves a single appointment
func (s *Service) GetAppointment(ctx context.Context, appointmentID string) (*types.Appointment, error) {
	return s.repository.GetAppointmentByID(ctx, appointmentID)
}

// GetAppointments retrieves appointments matching the filters
func (s *Service) GetAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	return s.repository.GetAppointments(ctx, filters)
}

func (s *Service) validateBookingRequest(req *types.BookingRequest, actor *types.UserClaims) error {
	if req.PatientID == "" || req.PractitionerID == "" || req.SlotID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"patient, practitioner and slot are required", nil)
	}

	if req.Payment == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "payment data is required", nil)
	}

	reason := strings.TrimSpace(req.Reason)
	if len(reason) < s.policy.MinReasonLength || len(reason) > s.policy.MaxReasonLength {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("reason for visit must be between %d and %d characters",
				s.policy.MinReasonLength, s.policy.MaxReasonLength), nil)
	}

	if actor.Role == types.RolePatient && actor.UserID != req.PatientID {
		return types.NewUnauthorizedError(types.ErrCodeUnauthorized,
			"patients can only book appointments for themselves")
	}

	return nil
}

func (s *Service) validateParticipants(ctx context.Context, req *types.BookingRequest) error {
	patient, err := s.identity.FindUserByID(ctx, req.PatientID)
	if err != nil {
		return err
	}
	if patient.Role != types.RolePatient {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("user %s is not a patient", req.PatientID), nil)
	}

	practitioner, err := s.identity.FindUserByID(ctx, req.PractitionerID)
	if err != nil {
		return err
	}
	if practitioner.Role != types.RolePractitioner {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("user %s is not a practitioner", req.PractitionerID), nil)
	}

	if req.Department != "" && !strings.EqualFold(practitioner.Specialty, req.Department) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("practitioner specialty %q does not match department %q",
				practitioner.Specialty, req.Department), nil)
	}

	return nil
}

// validateTemporalPolicy enforces the advance-booking window and business
// day/hour rules
func (s *Service) validateTemporalPolicy(scheduledAt time.Time) error {
	now := s.now()

	if !scheduledAt.After(now) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"appointment time must be in the future", nil)
	}

	advance := scheduledAt.Sub(now)
	if advance < time.Duration(s.policy.MinAdvanceHours)*time.Hour {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("appointments must be booked at least %d hours in advance", s.policy.MinAdvanceHours), nil)
	}

	if advance > time.Duration(s.policy.MaxAdvanceDays)*24*time.Hour {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("appointments cannot be booked more than %d days in advance", s.policy.MaxAdvanceDays), nil)
	}

	if !s.isBusinessDay(scheduledAt.Weekday()) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			"appointments must fall on a business day", nil)
	}

	hour := scheduledAt.Hour()
	if hour < s.policy.BusinessStartHour || hour >= s.policy.BusinessEndHour {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("appointments must fall between %02d:00 and %02d:00",
				s.policy.BusinessStartHour, s.policy.BusinessEndHour), nil)
	}

	return nil
}

func (s *Service) isBusinessDay(day time.Weekday) bool {
	for _, d := range s.policy.BusinessDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// authorizeActor allows admins, the appointment's patient and its practitioner
func (s *Service) authorizeActor(actor *types.UserClaims, apt *types.Appointment) error {
	if actor.Role == types.RoleAdmin {
		return nil
	}
	if actor.UserID == apt.PatientID || actor.UserID == apt.PractitionerID {
		return nil
	}
	return types.NewUnauthorizedError(types.ErrCodeUnauthorized,
		"not authorized to modify this appointment")
}

func (s *Service) recordAudit(actor *types.UserClaims, action types.AuditAction, resourceType, resourceID, patientID string, before, after map[string]interface{}, outcome types.AuditOutcome) {
	s.audit.Record(&types.AuditEvent{
		ActorID:      actor.UserID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		PatientID:    patientID,
		Before:       before,
		After:        after,
		Outcome:      outcome,
		CreatedAt:    s.now(),
	})
}

func appointmentSnapshot(apt *types.Appointment) map[string]interface{} {
	return map[string]interface{}{
		"status":       string(apt.Status),
		"slot_id":      apt.SlotID,
		"scheduled_at": apt.ScheduledAt,
		"fee":          apt.Fee,
	}
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var _ interfaces.BookingService = (*Service)(nil)
