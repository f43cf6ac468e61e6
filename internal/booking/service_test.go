package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Tuesday, within business hours
var fixedNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

// fakeSlotStore is a mutex-guarded in-memory slot service. The mutex stands
// in for the storage-level conditional update so the reservation stays a
// compare-and-swap under concurrent callers.
type fakeSlotStore struct {
	mu           sync.Mutex
	slots        map[string]*types.Slot
	releaseCalls int
}

func newFakeSlotStore(slots ...*types.Slot) *fakeSlotStore {
	store := &fakeSlotStore{slots: make(map[string]*types.Slot)}
	for _, slot := range slots {
		store.slots[slot.ID] = slot
	}
	return store
}

func (f *fakeSlotStore) CreateSlot(ctx context.Context, input *types.SlotInput, actorID string) (*types.Slot, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSlotStore) CreateRecurringSlots(ctx context.Context, input *types.SlotInput, pattern *types.RecurrencePattern, actorID string) ([]types.RecurringSlotResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSlotStore) CheckConflicts(ctx context.Context, practitionerID string, date, start, end time.Time) ([]*types.Slot, error) {
	return nil, nil
}

func (f *fakeSlotStore) Reserve(ctx context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[slotID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "slot not found")
	}

	if slot.Status != types.SlotAvailable || slot.BookedCount >= slot.MaxPatients {
		return types.NewConflictError(types.ErrCodeSlotUnavailable, "slot no longer available")
	}

	slot.BookedCount++
	if slot.BookedCount >= slot.MaxPatients {
		slot.Status = types.SlotBooked
	}
	return nil
}

func (f *fakeSlotStore) Release(ctx context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseCalls++
	slot, ok := f.slots[slotID]
	if !ok || slot.BookedCount == 0 {
		return types.NewConflictError(types.ErrCodeSlotUnavailable, "nothing to release")
	}

	slot.BookedCount--
	if slot.Status == types.SlotBooked {
		slot.Status = types.SlotAvailable
	}
	return nil
}

func (f *fakeSlotStore) Block(ctx context.Context, slotID, reason, description, actorID string) error {
	return errors.New("not implemented")
}

func (f *fakeSlotStore) Unblock(ctx context.Context, slotID, actorID string) error {
	return errors.New("not implemented")
}

func (f *fakeSlotStore) Complete(ctx context.Context, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[slotID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "slot not found")
	}
	slot.Status = types.SlotCompleted
	return nil
}

func (f *fakeSlotStore) GetSlot(ctx context.Context, slotID string) (*types.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[slotID]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "slot not found")
	}
	copied := *slot
	return &copied, nil
}

func (f *fakeSlotStore) GetAvailableSlots(ctx context.Context, practitionerID string, date time.Time) ([]*types.Slot, error) {
	return nil, nil
}

func (f *fakeSlotStore) GetPractitionerAvailability(ctx context.Context, practitionerID string, from, to time.Time) ([]*types.Slot, error) {
	return nil, nil
}

func (f *fakeSlotStore) slot(id string) *types.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[id]
}

// memRepository is an in-memory appointment and payment store
type memRepository struct {
	mu           sync.Mutex
	appointments map[string]*types.Appointment
	payments     map[string]*types.Payment

	failCreateAppointment bool
	failUpdateSlot        bool

	// beforeUpdateSlot runs just before the slot update applies its state
	// precondition, standing in for a write that lands between the
	// orchestrator's read and its own write.
	beforeUpdateSlot func()
}

func newMemRepository() *memRepository {
	return &memRepository{
		appointments: make(map[string]*types.Appointment),
		payments:     make(map[string]*types.Payment),
	}
}

func (m *memRepository) CreateAppointment(ctx context.Context, apt *types.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCreateAppointment {
		return errors.New("insert failed")
	}
	copied := *apt
	m.appointments[apt.ID] = &copied
	return nil
}

func (m *memRepository) GetAppointmentByID(ctx context.Context, id string) (*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.appointments[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "appointment not found")
	}
	copied := *apt
	return &copied, nil
}

func (m *memRepository) GetAppointments(ctx context.Context, filters *types.AppointmentFilters) ([]*types.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Appointment
	for _, apt := range m.appointments {
		copied := *apt
		result = append(result, &copied)
	}
	return result, nil
}

func (m *memRepository) UpdateAppointmentStatus(ctx context.Context, id string, from, to types.AppointmentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apt, ok := m.appointments[id]
	if !ok || apt.Status != from {
		return false, nil
	}
	apt.Status = to
	return true, nil
}

func (m *memRepository) UpdateAppointmentSlot(ctx context.Context, id, slotID string, scheduledAt time.Time) (bool, error) {
	if m.beforeUpdateSlot != nil {
		m.beforeUpdateSlot()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdateSlot {
		return false, errors.New("update failed")
	}
	apt, ok := m.appointments[id]
	if !ok || !apt.IsActive() {
		return false, nil
	}
	apt.SlotID = slotID
	apt.ScheduledAt = scheduledAt
	return true, nil
}

func (m *memRepository) CreatePayment(ctx context.Context, payment *types.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *payment
	m.payments[payment.ID] = &copied
	return nil
}

func (m *memRepository) GetPaymentByAppointmentID(ctx context.Context, appointmentID string) (*types.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, payment := range m.payments {
		if payment.AppointmentID == appointmentID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "no payment for appointment")
}

func (m *memRepository) MarkPaymentRefunded(ctx context.Context, paymentID string, amount float64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok || payment.Status != types.PaymentCompleted || amount > payment.Amount {
		return false, nil
	}
	payment.Status = types.PaymentRefunded
	payment.RefundAmount = amount
	payment.RefundReason = reason
	return true, nil
}

func (m *memRepository) FlagPaymentForReview(ctx context.Context, paymentID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if payment, ok := m.payments[paymentID]; ok {
		payment.NeedsReview = true
	}
	return nil
}

func (m *memRepository) payment(appointmentID string) *types.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, payment := range m.payments {
		if payment.AppointmentID == appointmentID {
			return payment
		}
	}
	return nil
}

func (m *memRepository) appointmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appointments)
}

// stubProcessor scripts charge/refund outcomes
type stubProcessor struct {
	mu          sync.Mutex
	chargeErr   error
	refundErr   error
	chargeCalls int
	refundCalls int
}

func (p *stubProcessor) Validate(data *types.PaymentData) error {
	if data == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "payment data is required", nil)
	}
	return nil
}

func (p *stubProcessor) CheckFraud(ctx context.Context, data *types.PaymentData) error {
	return nil
}

func (p *stubProcessor) Charge(ctx context.Context, data *types.PaymentData) (*types.ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chargeCalls++
	if p.chargeErr != nil {
		return nil, p.chargeErr
	}
	return &types.ChargeResult{TransactionID: "txn-" + uuid.New().String()[:8], Status: "completed"}, nil
}

func (p *stubProcessor) Refund(ctx context.Context, payment *types.Payment, amount float64, reason string) (*types.RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refundCalls++
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	return &types.RefundResult{RefundID: "ref-1", Amount: amount}, nil
}

func (p *stubProcessor) calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chargeCalls, p.refundCalls
}

// fakeIdentity resolves users from a fixed map
type fakeIdentity struct {
	users map[string]*types.User
}

func (f *fakeIdentity) FindUserByID(ctx context.Context, id string) (*types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "user not found")
	}
	return user, nil
}

// nullAuditSink discards events
type nullAuditSink struct{}

func (nullAuditSink) Record(event *types.AuditEvent) {}
func (nullAuditSink) Close()                         {}

type fixture struct {
	service  *Service
	repo     *memRepository
	slots    *fakeSlotStore
	payments *stubProcessor
}

func bookingPolicy() config.BookingConfig {
	return config.BookingConfig{
		MinAdvanceHours:   24,
		MaxAdvanceDays:    90,
		BusinessStartHour: 9,
		BusinessEndHour:   17,
		BusinessDays:      []int{1, 2, 3, 4, 5},
		MinReasonLength:   10,
		MaxReasonLength:   500,
	}
}

func newFixture(slots ...*types.Slot) *fixture {
	repo := newMemRepository()
	store := newFakeSlotStore(slots...)
	processor := &stubProcessor{}
	identity := &fakeIdentity{users: map[string]*types.User{
		"patient-1":  {ID: "patient-1", Name: "Alex Rivera", Role: types.RolePatient},
		"patient-2":  {ID: "patient-2", Name: "Sam Okafor", Role: types.RolePatient},
		"prac-1":     {ID: "prac-1", Name: "Dr. Chen", Role: types.RolePractitioner, Specialty: "cardiology"},
		"not-a-prac": {ID: "not-a-prac", Name: "Jo Admin", Role: types.RoleAdmin},
	}}

	svc := NewService(repo, store, processor, identity, nullAuditSink{},
		bookingPolicy(), monitoring.NewMetricsCollector("test"), logger.New("error"))
	svc.now = func() time.Time { return fixedNow }

	return &fixture{service: svc, repo: repo, slots: store, payments: processor}
}

// bookableSlot starts 25 hours after fixedNow, a Wednesday at 10:00
func bookableSlot(id string, capacity int) *types.Slot {
	start := fixedNow.Add(25 * time.Hour)
	return &types.Slot{
		ID:              id,
		PractitionerID:  "prac-1",
		SlotDate:        start.Truncate(24 * time.Hour),
		StartTime:       start,
		EndTime:         start.Add(30 * time.Minute),
		DurationMinutes: 30,
		MaxPatients:     capacity,
		Status:          types.SlotAvailable,
	}
}

func bookingRequest(slotID string) *types.BookingRequest {
	return &types.BookingRequest{
		PatientID:      "patient-1",
		PractitionerID: "prac-1",
		SlotID:         slotID,
		Reason:         "persistent chest pain during exercise",
		Department:     "cardiology",
		Payment: &types.PaymentData{
			Method:   types.MethodCard,
			Amount:   150.00,
			Currency: "USD",
			Card: &types.CardDetails{
				Number: "4111111111111111", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123",
			},
		},
	}
}

func patientClaims() *types.UserClaims {
	return &types.UserClaims{UserID: "patient-1", Role: types.RolePatient}
}

func assertErrorType(t *testing.T, err error, errorType types.ErrorType) *types.OpsError {
	t.Helper()
	var opsErr *types.OpsError
	require.True(t, errors.As(err, &opsErr), "expected OpsError, got %v", err)
	assert.Equal(t, errorType, opsErr.Type)
	return opsErr
}

func TestCreateAppointment_Success(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	apt, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())
	require.NoError(t, err)

	assert.Equal(t, types.StatusScheduled, apt.Status)
	assert.Equal(t, "slot-1", apt.SlotID)
	assert.Equal(t, 150.00, apt.Fee)

	slot := f.slots.slot("slot-1")
	assert.Equal(t, 1, slot.BookedCount)
	assert.Equal(t, types.SlotBooked, slot.Status)

	payment := f.repo.payment(apt.ID)
	require.NotNil(t, payment)
	assert.Equal(t, types.PaymentCompleted, payment.Status)
	assert.NotEmpty(t, payment.TransactionID)
}

func TestCreateAppointment_TemporalPolicy(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		valid bool
	}{
		{"one hour ahead rejected", fixedNow.Add(time.Hour), false},
		{"91 days ahead rejected", fixedNow.Add(91 * 24 * time.Hour), false},
		{"25 hours ahead on a weekday accepted", fixedNow.Add(25 * time.Hour), true},
		{"weekend rejected", fixedNow.Add(4*24*time.Hour + time.Hour), false}, // Saturday
		{"outside business hours rejected", fixedNow.Add(46 * time.Hour), false}, // Thursday 07:00
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := bookableSlot("slot-1", 1)
			slot.StartTime = tt.start
			slot.EndTime = tt.start.Add(30 * time.Minute)

			f := newFixture(slot)
			_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())

			if tt.valid {
				assert.NoError(t, err)
			} else {
				assertErrorType(t, err, types.ErrorTypeValidation)
			}
		})
	}
}

func TestCreateAppointment_ReasonLength(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	req := bookingRequest("slot-1")
	req.Reason = "too short"

	_, err := f.service.CreateAppointment(context.Background(), req, patientClaims())
	assertErrorType(t, err, types.ErrorTypeValidation)
}

func TestCreateAppointment_SpecialtyMismatch(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	req := bookingRequest("slot-1")
	req.Department = "dermatology"

	_, err := f.service.CreateAppointment(context.Background(), req, patientClaims())
	assertErrorType(t, err, types.ErrorTypeValidation)
}

func TestCreateAppointment_WrongRoles(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	req := bookingRequest("slot-1")
	req.PractitionerID = "not-a-prac"

	_, err := f.service.CreateAppointment(context.Background(), req, &types.UserClaims{UserID: "patient-1", Role: types.RolePatient})
	assertErrorType(t, err, types.ErrorTypeValidation)
}

func TestCreateAppointment_PatientBooksOnlySelf(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	req := bookingRequest("slot-1")
	req.PatientID = "patient-2"

	_, err := f.service.CreateAppointment(context.Background(), req, patientClaims())
	assertErrorType(t, err, types.ErrorTypeUnauthorized)
}

func TestCreateAppointment_SlotConflictAbortsBeforePayment(t *testing.T) {
	slot := bookableSlot("slot-1", 1)
	slot.BookedCount = 1
	slot.Status = types.SlotBooked

	f := newFixture(slot)
	_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())

	assertErrorType(t, err, types.ErrorTypeConflict)

	chargeCalls, _ := f.payments.calls()
	assert.Equal(t, 0, chargeCalls)
	assert.Equal(t, 0, f.repo.appointmentCount())
}

func TestCreateAppointment_PaymentFailureReleasesSlot(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	f.payments.chargeErr = types.NewBusinessLogicError(types.ErrCodePaymentDeclined, "card declined", nil)

	_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())

	opsErr := assertErrorType(t, err, types.ErrorTypeBusinessLogic)
	assert.Equal(t, types.ErrCodePaymentDeclined, opsErr.Code)

	// Compensation: slot back to AVAILABLE, nothing persisted
	slot := f.slots.slot("slot-1")
	assert.Equal(t, 0, slot.BookedCount)
	assert.Equal(t, types.SlotAvailable, slot.Status)
	assert.Equal(t, 0, f.repo.appointmentCount())
}

func TestCreateAppointment_PersistFailureRefundsAndReleases(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	f.repo.failCreateAppointment = true

	_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())
	assertErrorType(t, err, types.ErrorTypeInternal)

	_, refundCalls := f.payments.calls()
	assert.Equal(t, 1, refundCalls)

	slot := f.slots.slot("slot-1")
	assert.Equal(t, 0, slot.BookedCount)
	assert.Equal(t, 0, f.repo.appointmentCount())
}

func TestCreateAppointment_NoDoubleBooking(t *testing.T) {
	const attempts = 8
	f := newFixture(bookableSlot("slot-1", 1))

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var opsErr *types.OpsError
		require.True(t, errors.As(err, &opsErr))
		assert.Equal(t, types.ErrorTypeConflict, opsErr.Type)
		conflicts++
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.repo.appointmentCount())
	assert.Equal(t, 1, f.slots.slot("slot-1").BookedCount)
}

func TestCreateAppointment_MultiCapacitySlot(t *testing.T) {
	const attempts = 6
	const capacity = 3
	f := newFixture(bookableSlot("slot-1", capacity))

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		}
	}

	assert.Equal(t, capacity, successes)
	assert.Equal(t, capacity, f.slots.slot("slot-1").BookedCount)
}

func bookAppointment(t *testing.T, f *fixture, slotID string) *types.Appointment {
	t.Helper()
	apt, err := f.service.CreateAppointment(context.Background(), bookingRequest(slotID), patientClaims())
	require.NoError(t, err)
	return apt
}

func TestCancelAppointment_Success(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	apt := bookAppointment(t, f, "slot-1")

	err := f.service.CancelAppointment(context.Background(), apt.ID, patientClaims())
	require.NoError(t, err)

	stored, err := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, stored.Status)

	slot := f.slots.slot("slot-1")
	assert.Equal(t, 0, slot.BookedCount)
	assert.Equal(t, types.SlotAvailable, slot.Status)

	payment := f.repo.payment(apt.ID)
	assert.Equal(t, types.PaymentRefunded, payment.Status)
	assert.Equal(t, payment.Amount, payment.RefundAmount)
}

func TestCancelAppointment_SameDayRejected(t *testing.T) {
	slot := bookableSlot("slot-1", 1)
	f := newFixture(slot)
	apt := bookAppointment(t, f, "slot-1")

	// Move the clock to the appointment's calendar day
	f.service.now = func() time.Time { return apt.ScheduledAt.Add(-2 * time.Hour) }

	err := f.service.CancelAppointment(context.Background(), apt.ID, patientClaims())
	opsErr := assertErrorType(t, err, types.ErrorTypeBusinessLogic)
	assert.Equal(t, types.ErrCodeCancellationPolicy, opsErr.Code)

	stored, _ := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	assert.Equal(t, types.StatusScheduled, stored.Status)
}

func TestCancelAppointment_PastRejected(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	apt := bookAppointment(t, f, "slot-1")

	f.service.now = func() time.Time { return apt.ScheduledAt.Add(48 * time.Hour) }

	err := f.service.CancelAppointment(context.Background(), apt.ID, patientClaims())
	assertErrorType(t, err, types.ErrorTypeBusinessLogic)
}

func TestCancelAppointment_RefundFailureKeepsCancellation(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	apt := bookAppointment(t, f, "slot-1")

	f.payments.refundErr = errors.New("gateway timeout")

	err := f.service.CancelAppointment(context.Background(), apt.ID, patientClaims())
	opsErr := assertErrorType(t, err, types.ErrorTypeExternal)
	assert.Equal(t, types.ErrCodeRefundFailed, opsErr.Code)

	// Cancellation is not reverted, the slot stays released and the payment
	// is flagged for manual reconciliation
	stored, _ := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	assert.Equal(t, types.StatusCancelled, stored.Status)
	assert.Equal(t, 0, f.slots.slot("slot-1").BookedCount)

	payment := f.repo.payment(apt.ID)
	assert.True(t, payment.NeedsReview)
	assert.Equal(t, types.PaymentCompleted, payment.Status)
}

func TestCancelAppointment_UnauthorizedActor(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	apt := bookAppointment(t, f, "slot-1")

	err := f.service.CancelAppointment(context.Background(), apt.ID,
		&types.UserClaims{UserID: "patient-2", Role: types.RolePatient})
	assertErrorType(t, err, types.ErrorTypeUnauthorized)
}

func TestRescheduleAppointment_Success(t *testing.T) {
	newStart := fixedNow.Add(49 * time.Hour) // Thursday 10:00
	newSlot := bookableSlot("slot-2", 1)
	newSlot.StartTime = newStart
	newSlot.EndTime = newStart.Add(30 * time.Minute)

	f := newFixture(bookableSlot("slot-1", 1), newSlot)
	apt := bookAppointment(t, f, "slot-1")

	updated, err := f.service.RescheduleAppointment(context.Background(), apt.ID, "slot-2", patientClaims())
	require.NoError(t, err)

	assert.Equal(t, "slot-2", updated.SlotID)
	assert.Equal(t, newStart, updated.ScheduledAt)

	assert.Equal(t, 0, f.slots.slot("slot-1").BookedCount)
	assert.Equal(t, 1, f.slots.slot("slot-2").BookedCount)
}

func TestRescheduleAppointment_NewSlotConflictLeavesOriginal(t *testing.T) {
	takenSlot := bookableSlot("slot-2", 1)
	takenSlot.BookedCount = 1
	takenSlot.Status = types.SlotBooked

	f := newFixture(bookableSlot("slot-1", 1), takenSlot)
	apt := bookAppointment(t, f, "slot-1")

	_, err := f.service.RescheduleAppointment(context.Background(), apt.ID, "slot-2", patientClaims())
	assertErrorType(t, err, types.ErrorTypeConflict)

	// Original booking untouched
	stored, _ := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	assert.Equal(t, "slot-1", stored.SlotID)
	assert.Equal(t, 1, f.slots.slot("slot-1").BookedCount)
}

func TestRescheduleAppointment_ConcurrentCancelLosesRace(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1), bookableSlot("slot-2", 1))
	apt := bookAppointment(t, f, "slot-1")

	// Cancellation lands after the reschedule has read the appointment but
	// before its write: the state precondition must reject the re-point.
	f.repo.beforeUpdateSlot = func() {
		f.repo.mu.Lock()
		f.repo.appointments[apt.ID].Status = types.StatusCancelled
		f.repo.mu.Unlock()
	}

	_, err := f.service.RescheduleAppointment(context.Background(), apt.ID, "slot-2", patientClaims())
	assertErrorType(t, err, types.ErrorTypeConflict)

	// The cancelled appointment keeps its original slot and the new slot's
	// reservation was given back
	stored, _ := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	assert.Equal(t, types.StatusCancelled, stored.Status)
	assert.Equal(t, "slot-1", stored.SlotID)
	assert.Equal(t, 0, f.slots.slot("slot-2").BookedCount)
}

func TestRescheduleAppointment_UpdateFailureReleasesNewSlot(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1), bookableSlot("slot-2", 1))
	apt := bookAppointment(t, f, "slot-1")

	f.repo.failUpdateSlot = true

	_, err := f.service.RescheduleAppointment(context.Background(), apt.ID, "slot-2", patientClaims())
	assertErrorType(t, err, types.ErrorTypeInternal)

	assert.Equal(t, 0, f.slots.slot("slot-2").BookedCount)
	assert.Equal(t, 1, f.slots.slot("slot-1").BookedCount)
}

func TestConfirmAndCompleteTransitions(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))
	apt := bookAppointment(t, f, "slot-1")

	// Completing a scheduled appointment skips a state and is rejected
	err := f.service.CompleteAppointment(context.Background(), apt.ID, patientClaims())
	assertErrorType(t, err, types.ErrorTypeConflict)

	require.NoError(t, f.service.ConfirmAppointment(context.Background(), apt.ID, patientClaims()))

	// Confirming twice is rejected
	err = f.service.ConfirmAppointment(context.Background(), apt.ID, patientClaims())
	assertErrorType(t, err, types.ErrorTypeConflict)

	require.NoError(t, f.service.CompleteAppointment(context.Background(), apt.ID, patientClaims()))

	stored, _ := f.repo.GetAppointmentByID(context.Background(), apt.ID)
	assert.Equal(t, types.StatusCompleted, stored.Status)
	assert.Equal(t, types.SlotCompleted, f.slots.slot("slot-1").Status)

	// Terminal state, cancel is rejected
	err = f.service.CancelAppointment(context.Background(), apt.ID, patientClaims())
	assertErrorType(t, err, types.ErrorTypeBusinessLogic)
}

func TestCreateAppointment_ScheduledTimeOutsideSlotWindow(t *testing.T) {
	f := newFixture(bookableSlot("slot-1", 1))

	req := bookingRequest("slot-1")
	req.ScheduledAt = fixedNow.Add(30 * time.Hour)

	_, err := f.service.CreateAppointment(context.Background(), req, patientClaims())
	assertErrorType(t, err, types.ErrorTypeValidation)
}

func TestCreateAppointment_SlotPractitionerMismatch(t *testing.T) {
	slot := bookableSlot("slot-1", 1)
	slot.PractitionerID = "someone-else"

	f := newFixture(slot)
	_, err := f.service.CreateAppointment(context.Background(), bookingRequest("slot-1"), patientClaims())
	assertErrorType(t, err, types.ErrorTypeValidation)
}
