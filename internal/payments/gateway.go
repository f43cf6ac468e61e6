package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Gateway is the call/response contract to the remote payment gateway
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
}

// ChargeRequest is the wire format for a gateway charge call
type ChargeRequest struct {
	Method    types.PaymentMethod     `json:"method"`
	Amount    float64                 `json:"amount"`
	Currency  string                  `json:"currency"`
	Card      *types.CardDetails      `json:"card,omitempty"`
	Wallet    *types.WalletDetails    `json:"wallet,omitempty"`
	Insurance *types.InsuranceDetails `json:"insurance,omitempty"`
}

// ChargeResponse is the wire format for a gateway charge response
type ChargeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

// RefundRequest is the wire format for a gateway refund call
type RefundRequest struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

// RefundResponse is the wire format for a gateway refund response
type RefundResponse struct {
	Success  bool    `json:"success"`
	RefundID string  `json:"refund_id"`
	Amount   float64 `json:"amount"`
	Error    string  `json:"error,omitempty"`
}

// DeclineError marks a business decline: the gateway responded but rejected
// the transaction. Never retried.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// HTTPGateway implements the Gateway contract over HTTP
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPGateway creates a gateway client from configuration
func NewHTTPGateway(cfg config.GatewayConfig, log *logger.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: log,
	}
}

// Charge posts a charge request to the gateway. Transport failures come back
// as plain errors; a gateway-level rejection comes back as a DeclineError.
func (g *HTTPGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	var response ChargeResponse
	if err := g.post(ctx, "/api/v1/charges", req, &response); err != nil {
		return nil, err
	}

	if !response.Success {
		return nil, &DeclineError{Reason: response.DeclineReason}
	}

	return &response, nil
}

// Refund posts a refund request to the gateway
func (g *HTTPGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	var response RefundResponse
	if err := g.post(ctx, "/api/v1/refunds", req, &response); err != nil {
		return nil, err
	}

	if !response.Success {
		return nil, fmt.Errorf("gateway rejected refund: %s", response.Error)
	}

	return &response, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := g.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("gateway call failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, response.Body)
		return fmt.Errorf("gateway returned status %d", response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}
