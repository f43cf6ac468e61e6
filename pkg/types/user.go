package types

import "time"

// UserRole represents user role values
type UserRole string

const (
	RolePatient      UserRole = "patient"
	RolePractitioner UserRole = "practitioner"
	RoleAdmin        UserRole = "admin"
)

// User represents an identity record returned by the identity service
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	Specialty string    `json:"specialty,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserClaims represents the authenticated actor extracted from a bearer token
type UserClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}
