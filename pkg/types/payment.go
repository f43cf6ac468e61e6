package types

import "time"

// PaymentMethod represents supported payment methods
type PaymentMethod string

const (
	MethodCard          PaymentMethod = "card"
	MethodDigitalWallet PaymentMethod = "digital_wallet"
	MethodInsurance     PaymentMethod = "insurance"
	MethodCash          PaymentMethod = "cash"
	MethodBankTransfer  PaymentMethod = "bank_transfer"
)

// PaymentStatus represents payment status values
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment represents a record of funds movement tied to one appointment
type Payment struct {
	ID            string        `json:"id" db:"id"`
	AppointmentID string        `json:"appointment_id" db:"appointment_id"`
	PatientID     string        `json:"patient_id" db:"patient_id"`
	Amount        float64       `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	Method        PaymentMethod `json:"method" db:"method"`
	Status        PaymentStatus `json:"status" db:"status"`
	TransactionID string        `json:"transaction_id,omitempty" db:"transaction_id"`
	RefundAmount  float64       `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundReason  string        `json:"refund_reason,omitempty" db:"refund_reason"`
	NeedsReview   bool          `json:"needs_review" db:"needs_review"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// CardDetails holds card payment fields
type CardDetails struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
	HolderName  string `json:"holder_name"`
}

// WalletDetails holds digital wallet payment fields
type WalletDetails struct {
	WalletType string `json:"wallet_type"`
	WalletID   string `json:"wallet_id"`
}

// InsuranceDetails holds insurance payment fields
type InsuranceDetails struct {
	PolicyNumber string `json:"policy_number"`
	Provider     string `json:"provider"`
}

// PaymentData represents payment input supplied with a booking request
type PaymentData struct {
	Method    PaymentMethod     `json:"method"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Card      *CardDetails      `json:"card,omitempty"`
	Wallet    *WalletDetails    `json:"wallet,omitempty"`
	Insurance *InsuranceDetails `json:"insurance,omitempty"`
}

// ChargeResult represents a successful gateway charge response
type ChargeResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// RefundResult represents a successful gateway refund response
type RefundResult struct {
	RefundID    string    `json:"refund_id"`
	Amount      float64   `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}
