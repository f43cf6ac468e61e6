package types

import "fmt"

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeBusinessLogic ErrorType = "business_logic"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeInternal      ErrorType = "internal"
)

// OpsError represents a structured error in the hospital-ops system
type OpsError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *OpsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *OpsError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *OpsError {
	return &OpsError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *OpsError {
	return &OpsError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *OpsError {
	return &OpsError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewBusinessLogicError creates a new business logic error
func NewBusinessLogicError(code, message string, details map[string]interface{}) *OpsError {
	return &OpsError{
		Type:    ErrorTypeBusinessLogic,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewExternalServiceError creates a new external service error
func NewExternalServiceError(code, message string, cause error) *OpsError {
	return &OpsError{
		Type:    ErrorTypeExternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(code, message string) *OpsError {
	return &OpsError{
		Type:    ErrorTypeUnauthorized,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *OpsError {
	return &OpsError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeSlotConflict       = "SLOT_CONFLICT"
	ErrCodeSlotUnavailable    = "SLOT_UNAVAILABLE"
	ErrCodePaymentDeclined    = "PAYMENT_DECLINED"
	ErrCodeFraudBlocked       = "FRAUD_BLOCKED"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeRefundFailed       = "REFUND_FAILED"
	ErrCodeCancellationPolicy = "CANCELLATION_POLICY"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
)
