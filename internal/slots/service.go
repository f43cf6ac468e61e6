package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
	"github.com/medcore/hospital-ops/pkg/types"
)

const (
	// FrequencyDaily and FrequencyWeekly are the supported recurrence frequencies
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"

	maxRecurrenceOccurrences = 52
)

// Service implements the SlotService interface
type Service struct {
	repository interfaces.SlotRepository
	audit      interfaces.AuditSink
	metrics    *monitoring.MetricsCollector
	logger     *logger.Logger
}

// NewService creates a new slot service
func NewService(repo interfaces.SlotRepository, audit interfaces.AuditSink, metrics *monitoring.MetricsCollector, log *logger.Logger) *Service {
	return &Service{
		repository: repo,
		audit:      audit,
		metrics:    metrics,
		logger:     log,
	}
}

// CreateSlot validates and creates a single slot after a conflict check
func (s *Service) CreateSlot(ctx context.Context, input *types.SlotInput, actorID string) (*types.Slot, error) {
	s.logger.Infof("Creating slot for practitioner %s on %s", input.PractitionerID, input.SlotDate.Format("2006-01-02"))

	if err := validateSlotInput(input); err != nil {
		return nil, err
	}

	conflicts, err := s.repository.GetOverlappingSlots(ctx, input.PractitionerID, input.SlotDate, input.StartTime, input.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to check for conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, types.NewConflictError(types.ErrCodeSlotConflict,
			fmt.Sprintf("slot overlaps existing slot %s", conflicts[0].ID))
	}

	slot := buildSlot(input)
	if err := s.repository.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}

	s.recordAudit(actorID, types.ActionCreateSlots, slot.ID, "", nil, slotSnapshot(slot), types.OutcomeSuccess)

	s.logger.Infof("Successfully created slot %s", slot.ID)
	return slot, nil
}

// CreateRecurringSlots expands a recurrence pattern into individual slot
// insertions. Each occurrence is conflict-checked independently; failures are
// reported per occurrence instead of aborting the batch.
func (s *Service) CreateRecurringSlots(ctx context.Context, input *types.SlotInput, pattern *types.RecurrencePattern, actorID string) ([]types.RecurringSlotResult, error) {
	s.logger.Infof("Creating recurring slots for practitioner %s (%s x%d)",
		input.PractitionerID, pattern.Frequency, pattern.Occurrences)

	if err := validateSlotInput(input); err != nil {
		return nil, err
	}
	if err := validatePattern(pattern); err != nil {
		return nil, err
	}

	step := 24 * time.Hour
	if pattern.Frequency == FrequencyWeekly {
		step = 7 * 24 * time.Hour
	}

	results := make([]types.RecurringSlotResult, 0, pattern.Occurrences)
	created := 0

	for i := 0; i < pattern.Occurrences; i++ {
		offset := time.Duration(i) * step
		occurrence := &types.SlotInput{
			PractitionerID:  input.PractitionerID,
			SlotDate:        input.SlotDate.Add(offset),
			StartTime:       input.StartTime.Add(offset),
			EndTime:         input.EndTime.Add(offset),
			DurationMinutes: input.DurationMinutes,
			MaxPatients:     input.MaxPatients,
		}

		result := types.RecurringSlotResult{SlotDate: occurrence.SlotDate}

		conflicts, err := s.repository.GetOverlappingSlots(ctx, occurrence.PractitionerID, occurrence.SlotDate, occurrence.StartTime, occurrence.EndTime)
		if err != nil {
			result.Error = fmt.Sprintf("conflict check failed: %v", err)
			results = append(results, result)
			continue
		}
		if len(conflicts) > 0 {
			result.Error = fmt.Sprintf("slot overlaps existing slot %s", conflicts[0].ID)
			results = append(results, result)
			continue
		}

		slot := buildSlot(occurrence)
		slot.Type = types.SlotTypeRecurring
		if err := s.repository.CreateSlot(ctx, slot); err != nil {
			result.Error = fmt.Sprintf("insert failed: %v", err)
			results = append(results, result)
			continue
		}

		result.Slot = slot
		results = append(results, result)
		created++
	}

	outcome := types.OutcomeSuccess
	if created == 0 {
		outcome = types.OutcomeFailure
	}
	s.recordAudit(actorID, types.ActionCreateSlots, input.PractitionerID, "", nil,
		map[string]interface{}{"requested": pattern.Occurrences, "created": created}, outcome)

	s.logger.Infof("Recurring slot creation finished: %d/%d created", created, pattern.Occurrences)
	return results, nil
}

// CheckConflicts returns slots overlapping [start, end) for the practitioner and date
func (s *Service) CheckConflicts(ctx context.Context, practitionerID string, date, start, end time.Time) ([]*types.Slot, error) {
	return s.repository.GetOverlappingSlots(ctx, practitionerID, date, start, end)
}

// Reserve atomically claims capacity on the slot. A lost race surfaces as a
// conflict error; the caller must re-query and pick a different slot.
func (s *Service) Reserve(ctx context.Context, slotID string) error {
	reserved, err := s.repository.ReserveSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	if !reserved {
		s.metrics.RecordSlotReservation("conflict")
		s.logger.Warnf("Reservation conflict on slot %s", slotID)
		return types.NewConflictError(types.ErrCodeSlotUnavailable, "slot no longer available")
	}

	s.metrics.RecordSlotReservation("won")
	s.logger.Infof("Reserved slot %s", slotID)
	return nil
}

// Release undoes a reservation, restoring capacity
func (s *Service) Release(ctx context.Context, slotID string) error {
	released, err := s.repository.ReleaseSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	if !released {
		s.logger.Warnf("Release of slot %s matched no reserved slot", slotID)
		return types.NewConflictError(types.ErrCodeSlotUnavailable, "slot has no reservation to release")
	}

	s.logger.Infof("Released slot %s", slotID)
	return nil
}

// Block applies a manual override to a slot. Only the owning practitioner may
// block, and the slot must have no active bookings.
func (s *Service) Block(ctx context.Context, slotID, reason, description, actorID string) error {
	slot, err := s.repository.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}

	if slot.PractitionerID != actorID {
		s.recordAudit(actorID, types.ActionBlockSlots, slotID, "", slotSnapshot(slot), nil, types.OutcomeFailure)
		return types.NewUnauthorizedError(types.ErrCodeUnauthorized, "only the owning practitioner can block a slot")
	}

	if slot.BookedCount > 0 {
		return types.NewConflictError(types.ErrCodeSlotConflict, "cannot block a slot with active bookings")
	}

	blocked, err := s.repository.BlockSlot(ctx, slotID, reason, description, actorID)
	if err != nil {
		return fmt.Errorf("failed to block slot: %w", err)
	}
	if !blocked {
		return types.NewConflictError(types.ErrCodeSlotConflict, "slot state changed, cannot block")
	}

	s.recordAudit(actorID, types.ActionBlockSlots, slotID, "", slotSnapshot(slot),
		map[string]interface{}{"status": string(types.SlotBlocked), "reason": reason}, types.OutcomeSuccess)

	s.logger.Infof("Blocked slot %s (%s)", slotID, reason)
	return nil
}

// Unblock removes a manual override
func (s *Service) Unblock(ctx context.Context, slotID, actorID string) error {
	slot, err := s.repository.GetSlotByID(ctx, slotID)
	if err != nil {
		return err
	}

	if slot.PractitionerID != actorID {
		s.recordAudit(actorID, types.ActionUnblockSlots, slotID, "", slotSnapshot(slot), nil, types.OutcomeFailure)
		return types.NewUnauthorizedError(types.ErrCodeUnauthorized, "only the owning practitioner can unblock a slot")
	}

	unblocked, err := s.repository.UnblockSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to unblock slot: %w", err)
	}
	if !unblocked {
		return types.NewConflictError(types.ErrCodeSlotConflict, "slot is not blocked")
	}

	s.recordAudit(actorID, types.ActionUnblockSlots, slotID, "", slotSnapshot(slot),
		map[string]interface{}{"status": string(types.SlotAvailable)}, types.OutcomeSuccess)

	s.logger.Infof("Unblocked slot %s", slotID)
	return nil
}

// Complete moves a slot to its terminal COMPLETED state
func (s *Service) Complete(ctx context.Context, slotID string) error {
	completed, err := s.repository.CompleteSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to complete slot: %w", err)
	}

	if !completed {
		return types.NewConflictError(types.ErrCodeSlotConflict, "slot is not in a completable state")
	}

	s.logger.Infof("Completed slot %s", slotID)
	return nil
}

// GetSlot retrieves a single slot
func (s *Service) GetSlot(ctx context.Context, slotID string) (*types.Slot, error) {
	return s.repository.GetSlotByID(ctx, slotID)
}

// GetAvailableSlots returns bookable slots for a practitioner on a date
func (s *Service) GetAvailableSlots(ctx context.Context, practitionerID string, date time.Time) ([]*types.Slot, error) {
	slots, err := s.repository.GetSlots(ctx, practitionerID, date, date, types.SlotAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to get available slots: %w", err)
	}

	available := make([]*types.Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.HasCapacity() {
			available = append(available, slot)
		}
	}

	return available, nil
}

// GetPractitionerAvailability returns all non-completed slots in a date range
func (s *Service) GetPractitionerAvailability(ctx context.Context, practitionerID string, from, to time.Time) ([]*types.Slot, error) {
	if to.Before(from) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "date range is inverted", nil)
	}

	return s.repository.GetSlots(ctx, practitionerID, from, to, "")
}

func (s *Service) recordAudit(actorID string, action types.AuditAction, resourceID, patientID string, before, after map[string]interface{}, outcome types.AuditOutcome) {
	s.audit.Record(&types.AuditEvent{
		ActorID:      actorID,
		ActorRole:    types.RolePractitioner,
		Action:       action,
		ResourceType: "slot",
		ResourceID:   resourceID,
		PatientID:    patientID,
		Before:       before,
		After:        after,
		Outcome:      outcome,
		CreatedAt:    time.Now(),
	})
}

func buildSlot(input *types.SlotInput) *types.Slot {
	duration := input.DurationMinutes
	if duration == 0 {
		duration = int(input.EndTime.Sub(input.StartTime) / time.Minute)
	}

	maxPatients := input.MaxPatients
	if maxPatients == 0 {
		maxPatients = 1
	}

	now := time.Now()
	return &types.Slot{
		ID:              uuid.New().String(),
		PractitionerID:  input.PractitionerID,
		SlotDate:        input.SlotDate,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: duration,
		MaxPatients:     maxPatients,
		BookedCount:     0,
		Type:            types.SlotTypeRegular,
		Status:          types.SlotAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func validateSlotInput(input *types.SlotInput) error {
	if input.PractitionerID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "practitioner ID is required", nil)
	}
	if input.SlotDate.IsZero() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "slot date is required", nil)
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return types.NewValidationError(types.ErrCodeInvalidInput, "start and end time are required", nil)
	}
	if !input.EndTime.After(input.StartTime) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "end time must be after start time", nil)
	}
	if input.MaxPatients < 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "max patients cannot be negative", nil)
	}
	return nil
}

func validatePattern(pattern *types.RecurrencePattern) error {
	if pattern == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "recurrence pattern is required", nil)
	}
	if pattern.Frequency != FrequencyDaily && pattern.Frequency != FrequencyWeekly {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported recurrence frequency: %s", pattern.Frequency), nil)
	}
	if pattern.Occurrences < 1 || pattern.Occurrences > maxRecurrenceOccurrences {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("occurrences must be between 1 and %d", maxRecurrenceOccurrences), nil)
	}
	return nil
}

func slotSnapshot(slot *types.Slot) map[string]interface{} {
	return map[string]interface{}{
		"status":       string(slot.Status),
		"booked_count": slot.BookedCount,
		"max_patients": slot.MaxPatients,
	}
}
