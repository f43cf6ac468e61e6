package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/medcore/hospital-ops/pkg/types"
)

var supportedWalletTypes = map[string]bool{
	"apple_pay":  true,
	"google_pay": true,
	"paypal":     true,
	"venmo":      true,
}

// validatePaymentData performs method-specific structural validation.
// Failures are terminal and never retried.
func validatePaymentData(data *types.PaymentData) error {
	if data == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "payment data is required", nil)
	}

	if data.Amount <= 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "payment amount must be positive", nil)
	}

	if data.Currency == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "currency is required", nil)
	}

	switch data.Method {
	case types.MethodCard:
		return validateCard(data.Card)
	case types.MethodDigitalWallet:
		return validateWallet(data.Wallet)
	case types.MethodInsurance:
		return validateInsurance(data.Insurance)
	case types.MethodCash, types.MethodBankTransfer:
		return nil
	default:
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported payment method: %s", data.Method), nil)
	}
}

func validateCard(card *types.CardDetails) error {
	if card == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "card details are required", nil)
	}

	number := strings.ReplaceAll(card.Number, " ", "")
	if len(number) < 13 || len(number) > 19 || !luhnValid(number) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "card number failed checksum validation", nil)
	}

	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "card expiry month is invalid", nil)
	}

	if cardExpired(card.ExpiryMonth, card.ExpiryYear, time.Now()) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "card has expired", nil)
	}

	if len(card.CVV) < 3 || len(card.CVV) > 4 || !allDigits(card.CVV) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "card CVV must be 3 or 4 digits", nil)
	}

	return nil
}

func validateWallet(wallet *types.WalletDetails) error {
	if wallet == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "wallet details are required", nil)
	}

	if !supportedWalletTypes[wallet.WalletType] {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported wallet type: %s", wallet.WalletType), nil)
	}

	if wallet.WalletID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "wallet identifier is required", nil)
	}

	return nil
}

func validateInsurance(insurance *types.InsuranceDetails) error {
	if insurance == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "insurance details are required", nil)
	}

	if insurance.PolicyNumber == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "insurance policy number is required", nil)
	}

	if insurance.Provider == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "insurance provider name is required", nil)
	}

	return nil
}

// luhnValid runs the Luhn checksum over a card number
func luhnValid(number string) bool {
	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}

		digit := int(c - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// cardExpired checks whether the card expiry is in the past. A card is valid
// through the last day of its expiry month.
func cardExpired(month, year int, now time.Time) bool {
	if year < now.Year() {
		return true
	}
	if year == now.Year() && month < int(now.Month()) {
		return true
	}
	return false
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// maskCardNumber reduces a card number to its last four digits for logging
func maskCardNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 4 {
		return "****"
	}
	return "****" + number[len(number)-4:]
}
