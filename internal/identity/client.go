package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/interfaces"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/types"
)

// Client resolves user references against the identity service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates an identity service client
func NewClient(cfg config.IdentityConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: log,
	}
}

// FindUserByID fetches a user record. An unknown ID comes back as a
// structured not-found error so callers can reject the reference.
func (c *Client) FindUserByID(ctx context.Context, id string) (*types.User, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, id)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Errorf("Identity service call failed: %v", err)
		return nil, types.NewExternalServiceError(types.ErrCodeInternalError, "identity service unreachable", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, response.Body)
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}

	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, response.Body)
		return nil, types.NewExternalServiceError(types.ErrCodeInternalError,
			fmt.Sprintf("identity service returned status %d", response.StatusCode), nil)
	}

	var envelope struct {
		Data *types.User `json:"data"`
	}
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}

	if envelope.Data == nil {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("user not found: %s", id))
	}

	return envelope.Data, nil
}

var _ interfaces.IdentityClient = (*Client)(nil)
