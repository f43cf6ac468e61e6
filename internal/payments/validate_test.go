package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcore/hospital-ops/pkg/types"
)

func validCardData() *types.PaymentData {
	return &types.PaymentData{
		Method:   types.MethodCard,
		Amount:   150.00,
		Currency: "USD",
		Card: &types.CardDetails{
			Number:      "4111111111111111",
			ExpiryMonth: 12,
			ExpiryYear:  time.Now().Year() + 2,
			CVV:         "123",
			HolderName:  "Jordan Smith",
		},
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var opsErr *types.OpsError
	require.True(t, errors.As(err, &opsErr))
	assert.Equal(t, types.ErrorTypeValidation, opsErr.Type)
}

func TestValidateCard_LuhnChecksum(t *testing.T) {
	data := validCardData()
	assert.NoError(t, validatePaymentData(data))

	data.Card.Number = "4111111111111112"
	assertValidationError(t, validatePaymentData(data))
}

func TestValidateCard_AcceptsSpacedNumber(t *testing.T) {
	data := validCardData()
	data.Card.Number = "4111 1111 1111 1111"
	assert.NoError(t, validatePaymentData(data))
}

func TestValidateCard_ExpiredCard(t *testing.T) {
	data := validCardData()
	data.Card.ExpiryYear = time.Now().Year() - 1
	assertValidationError(t, validatePaymentData(data))
}

func TestValidateCard_CVVLength(t *testing.T) {
	data := validCardData()

	data.Card.CVV = "12"
	assertValidationError(t, validatePaymentData(data))

	data.Card.CVV = "12345"
	assertValidationError(t, validatePaymentData(data))

	data.Card.CVV = "1234"
	assert.NoError(t, validatePaymentData(data))

	data.Card.CVV = "12a"
	assertValidationError(t, validatePaymentData(data))
}

func TestValidateCard_MissingDetails(t *testing.T) {
	data := validCardData()
	data.Card = nil
	assertValidationError(t, validatePaymentData(data))
}

func TestValidateWallet(t *testing.T) {
	data := &types.PaymentData{
		Method:   types.MethodDigitalWallet,
		Amount:   75.00,
		Currency: "USD",
		Wallet:   &types.WalletDetails{WalletType: "apple_pay", WalletID: "wallet-123"},
	}
	assert.NoError(t, validatePaymentData(data))

	data.Wallet.WalletType = "crypto"
	assertValidationError(t, validatePaymentData(data))

	data.Wallet.WalletType = "paypal"
	data.Wallet.WalletID = ""
	assertValidationError(t, validatePaymentData(data))
}

func TestValidateInsurance(t *testing.T) {
	data := &types.PaymentData{
		Method:    types.MethodInsurance,
		Amount:    220.00,
		Currency:  "USD",
		Insurance: &types.InsuranceDetails{PolicyNumber: "POL-991", Provider: "Acme Health"},
	}
	assert.NoError(t, validatePaymentData(data))

	data.Insurance.PolicyNumber = ""
	assertValidationError(t, validatePaymentData(data))

	data.Insurance.PolicyNumber = "POL-991"
	data.Insurance.Provider = ""
	assertValidationError(t, validatePaymentData(data))
}

func TestValidate_AmountAndCurrency(t *testing.T) {
	data := validCardData()

	data.Amount = 0
	assertValidationError(t, validatePaymentData(data))

	data.Amount = -10
	assertValidationError(t, validatePaymentData(data))

	data = validCardData()
	data.Currency = ""
	assertValidationError(t, validatePaymentData(data))
}

func TestValidate_CashNeedsNoDetails(t *testing.T) {
	data := &types.PaymentData{Method: types.MethodCash, Amount: 50, Currency: "USD"}
	assert.NoError(t, validatePaymentData(data))
}

func TestValidate_UnsupportedMethod(t *testing.T) {
	data := &types.PaymentData{Method: "barter", Amount: 50, Currency: "USD"}
	assertValidationError(t, validatePaymentData(data))
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "****1111", maskCardNumber("4111111111111111"))
	assert.Equal(t, "****1111", maskCardNumber("4111 1111 1111 1111"))
	assert.Equal(t, "****", maskCardNumber("12"))
}
