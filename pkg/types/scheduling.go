package types

import "time"

// SlotStatus represents slot status values
type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotBooked    SlotStatus = "BOOKED"
	SlotBlocked   SlotStatus = "BLOCKED"
	SlotCompleted SlotStatus = "COMPLETED"
)

// SlotType represents how a slot was created
type SlotType string

const (
	SlotTypeRegular   SlotType = "regular"
	SlotTypeRecurring SlotType = "recurring"
)

// Slot represents a bookable time window owned by a practitioner
type Slot struct {
	ID               string     `json:"id" db:"id"`
	PractitionerID   string     `json:"practitioner_id" db:"practitioner_id"`
	SlotDate         time.Time  `json:"slot_date" db:"slot_date"`
	StartTime        time.Time  `json:"start_time" db:"start_time"`
	EndTime          time.Time  `json:"end_time" db:"end_time"`
	DurationMinutes  int        `json:"duration_minutes" db:"duration_minutes"`
	MaxPatients      int        `json:"max_patients" db:"max_patients"`
	BookedCount      int        `json:"booked_count" db:"booked_count"`
	Type             SlotType   `json:"type" db:"slot_type"`
	Status           SlotStatus `json:"status" db:"status"`
	BlockReason      string     `json:"block_reason,omitempty" db:"block_reason"`
	BlockDescription string     `json:"block_description,omitempty" db:"block_description"`
	BlockedBy        string     `json:"blocked_by,omitempty" db:"blocked_by"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// HasCapacity returns true if the slot can accept another booking
func (s *Slot) HasCapacity() bool {
	return s.BookedCount < s.MaxPatients
}

// IsBookable returns true if a new appointment may claim this slot
func (s *Slot) IsBookable() bool {
	return (s.Status == SlotAvailable || s.Status == SlotBooked) && s.HasCapacity()
}

// SlotInput represents the input for slot creation
type SlotInput struct {
	PractitionerID  string    `json:"practitioner_id"`
	SlotDate        time.Time `json:"slot_date"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxPatients     int       `json:"max_patients"`
}

// RecurrencePattern describes how a recurring slot batch expands
type RecurrencePattern struct {
	Frequency   string `json:"frequency"` // daily or weekly
	Occurrences int    `json:"occurrences"`
}

// RecurringSlotResult reports the outcome of one occurrence in a recurring batch
type RecurringSlotResult struct {
	SlotDate time.Time `json:"slot_date"`
	Slot     *Slot     `json:"slot,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment represents a confirmed reservation linking a patient,
// a practitioner and a slot
type Appointment struct {
	ID              string            `json:"id" db:"id"`
	PatientID       string            `json:"patient_id" db:"patient_id"`
	PractitionerID  string            `json:"practitioner_id" db:"practitioner_id"`
	SlotID          string            `json:"slot_id" db:"slot_id"`
	ScheduledAt     time.Time         `json:"scheduled_at" db:"scheduled_at"`
	DurationMinutes int               `json:"duration_minutes" db:"duration_minutes"`
	Reason          string            `json:"reason" db:"reason"`
	Department      string            `json:"department" db:"department"`
	Fee             float64           `json:"fee" db:"fee"`
	Status          AppointmentStatus `json:"status" db:"status"`
	Priority        bool              `json:"priority" db:"priority"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// IsActive returns true while the appointment still holds its slot
func (a *Appointment) IsActive() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// AppointmentFilters represents filters for appointment queries
type AppointmentFilters struct {
	PatientID      string            `json:"patient_id,omitempty"`
	PractitionerID string            `json:"practitioner_id,omitempty"`
	Status         AppointmentStatus `json:"status,omitempty"`
	FromDate       time.Time         `json:"from_date,omitempty"`
	ToDate         time.Time         `json:"to_date,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Offset         int               `json:"offset,omitempty"`
}

// BookingRequest represents an inbound booking request
type BookingRequest struct {
	PatientID      string       `json:"patient_id"`
	PractitionerID string       `json:"practitioner_id"`
	SlotID         string       `json:"slot_id"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	Reason         string       `json:"reason"`
	Department     string       `json:"department"`
	Fee            float64      `json:"fee"`
	Priority       bool         `json:"priority"`
	Payment        *PaymentData `json:"payment"`
}
