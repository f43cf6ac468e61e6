package types

import "time"

// AuditAction enumerates the actions recorded by the audit sink
type AuditAction string

const (
	ActionCreateSlots           AuditAction = "CREATE_SLOTS"
	ActionBlockSlots            AuditAction = "BLOCK_SLOTS"
	ActionUnblockSlots          AuditAction = "UNBLOCK_SLOTS"
	ActionCreateAppointment     AuditAction = "CREATE_APPOINTMENT"
	ActionRescheduleAppointment AuditAction = "RESCHEDULE_APPOINTMENT"
	ActionCancelAppointment     AuditAction = "CANCEL_APPOINTMENT"
	ActionProcessPayment        AuditAction = "PROCESS_PAYMENT"
	ActionRefundPayment         AuditAction = "REFUND_PAYMENT"
)

// AuditOutcome represents the outcome recorded with an audit event
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// AuditEvent represents one append-only audit record
type AuditEvent struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"actor_id"`
	ActorRole    UserRole               `json:"actor_role"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	PatientID    string                 `json:"patient_id,omitempty"`
	Before       map[string]interface{} `json:"before,omitempty"`
	After        map[string]interface{} `json:"after,omitempty"`
	Outcome      AuditOutcome           `json:"outcome"`
	CreatedAt    time.Time              `json:"created_at"`
}
