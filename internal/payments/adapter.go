package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
	"github.com/medcore/hospital-ops/pkg/retry"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Processor wraps the remote gateway with validation, fraud checks, bounded
// retry and masked logging. It implements the PaymentProcessor interface.
type Processor struct {
	gateway Gateway
	policy  *retry.Policy
	config  config.GatewayConfig
	metrics *monitoring.MetricsCollector
	logger  *logger.Logger
}

// NewProcessor creates a payment processor backed by the given gateway
func NewProcessor(gateway Gateway, cfg config.GatewayConfig, metrics *monitoring.MetricsCollector, log *logger.Logger) *Processor {
	policy := retry.NewPolicy(cfg.MaxChargeAttempts, time.Second, isTransportFailure)

	return &Processor{
		gateway: gateway,
		policy:  policy,
		config:  cfg,
		metrics: metrics,
		logger:  log,
	}
}

// isTransportFailure classifies gateway errors. Declines and structured
// errors are terminal; everything else is assumed to be a transport or
// availability failure worth retrying.
func isTransportFailure(err error) bool {
	var decline *DeclineError
	if errors.As(err, &decline) {
		return false
	}

	var opsErr *types.OpsError
	return !errors.As(err, &opsErr)
}

// Validate performs method-specific structural validation
func (p *Processor) Validate(data *types.PaymentData) error {
	return validatePaymentData(data)
}

// CheckFraud scores the transaction. A score above the block threshold is a
// terminal rejection; above the warn threshold it is logged and allowed.
func (p *Processor) CheckFraud(ctx context.Context, data *types.PaymentData) error {
	score := riskScore(data)

	if score >= p.config.FraudBlockThreshold {
		p.logger.Warnf("Blocking transaction with risk score %.2f (%s, %.2f %s)",
			score, data.Method, data.Amount, data.Currency)
		return types.NewBusinessLogicError(types.ErrCodeFraudBlocked,
			"transaction blocked by fraud screening",
			map[string]interface{}{"risk_score": score})
	}

	if score >= p.config.FraudWarnThreshold {
		p.logger.Warnf("Elevated risk score %.2f for %s payment of %.2f %s",
			score, data.Method, data.Amount, data.Currency)
	}

	return nil
}

// Charge calls the remote gateway. Business declines surface immediately and
// are never retried; transport failures are retried with exponential backoff
// and surface as a gateway-unavailable error once the budget is exhausted.
func (p *Processor) Charge(ctx context.Context, data *types.PaymentData) (*types.ChargeResult, error) {
	if err := p.Validate(data); err != nil {
		return nil, err
	}

	p.logger.Infof("Charging %.2f %s via %s (%s)",
		data.Amount, data.Currency, data.Method, paymentReference(data))

	request := &ChargeRequest{
		Method:    data.Method,
		Amount:    data.Amount,
		Currency:  data.Currency,
		Card:      data.Card,
		Wallet:    data.Wallet,
		Insurance: data.Insurance,
	}

	var response *ChargeResponse
	attempts := 0

	err := p.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			p.metrics.RecordPaymentRetry()
			p.logger.Warnf("Retrying gateway charge, attempt %d/%d", attempts, p.policy.MaxAttempts)
		}

		var chargeErr error
		response, chargeErr = p.gateway.Charge(ctx, request)
		return chargeErr
	})

	if err != nil {
		var decline *DeclineError
		if errors.As(err, &decline) {
			p.metrics.RecordPaymentAttempt(string(data.Method), "declined")
			p.logger.Warnf("Payment declined for %s: %s", paymentReference(data), decline.Reason)
			return nil, types.NewBusinessLogicError(types.ErrCodePaymentDeclined, decline.Reason, nil)
		}

		p.metrics.RecordPaymentAttempt(string(data.Method), "gateway_unavailable")
		p.logger.Errorf("Gateway unreachable after %d attempts: %v", attempts, err)
		return nil, types.NewExternalServiceError(types.ErrCodeGatewayUnavailable,
			fmt.Sprintf("payment gateway unavailable after %d attempts", attempts), err)
	}

	p.metrics.RecordPaymentAttempt(string(data.Method), "completed")
	p.logger.Infof("Charge completed, transaction %s", response.TransactionID)

	return &types.ChargeResult{
		TransactionID: response.TransactionID,
		Status:        response.Status,
		ProcessedAt:   time.Now(),
	}, nil
}

// Refund is a single-attempt call. Failures are surfaced for manual
// re-trigger rather than retried, to avoid duplicate refunds.
func (p *Processor) Refund(ctx context.Context, payment *types.Payment, amount float64, reason string) (*types.RefundResult, error) {
	if payment.Status == types.PaymentRefunded {
		return nil, types.NewBusinessLogicError(types.ErrCodeRefundFailed,
			"payment has already been refunded", nil)
	}

	if payment.Status != types.PaymentCompleted {
		return nil, types.NewBusinessLogicError(types.ErrCodeRefundFailed,
			fmt.Sprintf("cannot refund a payment in state %s", payment.Status), nil)
	}

	if amount <= 0 || amount > payment.Amount {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"refund amount must be positive and cannot exceed the original amount",
			map[string]interface{}{"original_amount": payment.Amount, "requested": amount})
	}

	p.logger.Infof("Refunding %.2f %s on transaction %s", amount, payment.Currency, payment.TransactionID)

	response, err := p.gateway.Refund(ctx, &RefundRequest{
		TransactionID: payment.TransactionID,
		Amount:        amount,
		Reason:        reason,
	})
	if err != nil {
		p.metrics.RecordPaymentAttempt(string(payment.Method), "refund_failed")
		p.logger.Errorf("Refund failed on transaction %s: %v", payment.TransactionID, err)
		return nil, types.NewExternalServiceError(types.ErrCodeRefundFailed, "gateway refund call failed", err)
	}

	p.metrics.RecordPaymentAttempt(string(payment.Method), "refunded")
	p.logger.Infof("Refund %s completed for transaction %s", response.RefundID, payment.TransactionID)

	return &types.RefundResult{
		RefundID:    response.RefundID,
		Amount:      response.Amount,
		ProcessedAt: time.Now(),
	}, nil
}

// WithRetryPolicy replaces the retry policy. Used by tests to remove delays.
func (p *Processor) WithRetryPolicy(policy *retry.Policy) *Processor {
	p.policy = policy
	return p
}

// riskScore is a coarse heuristic over amount and method. High-value
// transactions on instruments with weak verification score higher.
func riskScore(data *types.PaymentData) float64 {
	score := 0.0

	switch {
	case data.Amount >= 10000:
		score += 0.7
	case data.Amount >= 5000:
		score += 0.5
	case data.Amount >= 1000:
		score += 0.2
	}

	switch data.Method {
	case types.MethodBankTransfer:
		score += 0.2
	case types.MethodDigitalWallet:
		score += 0.1
	case types.MethodCash:
		score += 0.3
	}

	return score
}

// paymentReference produces a log-safe reference for a payment instrument.
// Card numbers show only their last four digits, the CVV is never logged.
func paymentReference(data *types.PaymentData) string {
	switch data.Method {
	case types.MethodCard:
		if data.Card != nil {
			return "card " + maskCardNumber(data.Card.Number)
		}
		return "card"
	case types.MethodDigitalWallet:
		if data.Wallet != nil {
			return "wallet " + data.Wallet.WalletType
		}
		return "wallet"
	case types.MethodInsurance:
		if data.Insurance != nil {
			return "insurance " + data.Insurance.Provider
		}
		return "insurance"
	default:
		return string(data.Method)
	}
}

var _ interfaces.PaymentProcessor = (*Processor)(nil)
