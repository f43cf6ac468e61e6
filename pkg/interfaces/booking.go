package interfaces

import (
	"context"
	"time"

	"github.com/medcore/hospital-ops/pkg/types"
)

// SlotService defines the interface for slot management
type SlotService interface {
	// Slot creation
	CreateSlot(ctx context.Context, input *types.SlotInput, actorID string) (*types.Slot, error)
	CreateRecurringSlots(ctx context.Context, input *types.SlotInput, pattern *types.RecurrencePattern, actorID string) ([]types.RecurringSlotResult, error)

	// Conflict checks and reservation
	CheckConflicts(ctx context.Context, practitionerID string, date, start, end time.Time) ([]*types.Slot, error)
	Reserve(ctx context.Context, slotID string) error
	Release(ctx context.Context, slotID string) error

	// Manual overrides
	Block(ctx context.Context, slotID, reason, description, actorID string) error
	Unblock(ctx context.Context, slotID, actorID string) error

	// Complete moves a slot to its terminal state after the appointment occurs
	Complete(ctx context.Context, slotID string) error

	// Read-only queries
	GetSlot(ctx context.Context, slotID string) (*types.Slot, error)
	GetAvailableSlots(ctx context.Context, practitionerID string, date time.Time) ([]*types.Slot, error)
	GetPractitionerAvailability(ctx context.Context, practitionerID string, from, to time.Time) ([]*types.Slot, error)
}

// SlotRepository defines the interface for slot persistence
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot *types.Slot) error
	GetSlotByID(ctx context.Context, id string) (*types.Slot, error)
	GetOverlappingSlots(ctx context.Context, practitionerID string, date, start, end time.Time) ([]*types.Slot, error)
	GetSlots(ctx context.Context, practitionerID string, from, to time.Time, status types.SlotStatus) ([]*types.Slot, error)

	// ReserveSlot performs the atomic compare-and-swap reservation. It returns
	// true when the precondition held and the booking count was incremented.
	ReserveSlot(ctx context.Context, id string) (bool, error)
	ReleaseSlot(ctx context.Context, id string) (bool, error)

	BlockSlot(ctx context.Context, id, reason, description, actorID string) (bool, error)
	UnblockSlot(ctx context.Context, id string) (bool, error)
	CompleteSlot(ctx context.Context, id string) (bool, error)
}

// BookingService defines the interface for the booking orchestrator
type BookingService interface {
	CreateAppointment(ctx context.Context, req *types.BookingRequest, actor *types.UserClaims) (*types.Appointment, error)
	RescheduleAppointment(ctx context.Context, appointmentID, newSlotID string, actor *types.UserClaims) (*types.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error
	ConfirmAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error
	CompleteAppointment(ctx context.Context, appointmentID string, actor *types.UserClaims) error

	GetAppointment(ctx context.Context, appointmentID string) (*types.Appointment, error)
	GetAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error)
}

// AppointmentRepository defines the interface for appointment persistence
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, apt *types.Appointment) error
	GetAppointmentByID(ctx context.Context, id string) (*types.Appointment, error)
	GetAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error)

	// UpdateAppointmentStatus applies a conditional from-to transition and
	// returns false when the appointment was no longer in the from state.
	UpdateAppointmentStatus(ctx context.Context, id string, from, to types.AppointmentStatus) (bool, error)

	// UpdateAppointmentSlot re-points an appointment at a new slot, guarded
	// by the same active-state precondition, and returns false when the
	// appointment was no longer reschedulable.
	UpdateAppointmentSlot(ctx context.Context, id, slotID string, scheduledAt time.Time) (bool, error)

	CreatePayment(ctx context.Context, payment *types.Payment) error
	GetPaymentByAppointmentID(ctx context.Context, appointmentID string) (*types.Payment, error)
	MarkPaymentRefunded(ctx context.Context, paymentID string, amount float64, reason string) (bool, error)
	FlagPaymentForReview(ctx context.Context, paymentID, reason string) error
}

// PaymentProcessor defines the interface for the payment gateway adapter
type PaymentProcessor interface {
	Validate(data *types.PaymentData) error
	CheckFraud(ctx context.Context, data *types.PaymentData) error
	Charge(ctx context.Context, data *types.PaymentData) (*types.ChargeResult, error)
	Refund(ctx context.Context, payment *types.Payment, amount float64, reason string) (*types.RefundResult, error)
}

// IdentityClient defines the narrow contract to the identity subsystem
type IdentityClient interface {
	FindUserByID(ctx context.Context, id string) (*types.User, error)
}

// AuditSink defines the fire-and-forget audit recording contract
type AuditSink interface {
	Record(event *types.AuditEvent)
	Close()
}
