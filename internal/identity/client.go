package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"audiovault/internal/config"
	"audiovault/internal/logging"
	"audiovault/internal/services"
)

const maxBodyBytes = 1 << 20

// HTTPDoer describes the HTTP client used to reach the identity service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// User is the verified account behind a bearer token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	// StorageQuota is the ceiling granted by the identity service, or 0 when
	// it does not report one.
	StorageQuota int64 `json:"storage_quota,omitempty"`
}

// Client verifies tokens with the identity service.
type Client struct {
	baseURL string
	client  HTTPDoer
	logger  *slog.Logger
}

// New returns a Client configured from cfg.Identity.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := 10 * time.Second
	if cfg.Identity.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Identity.TimeoutSeconds) * time.Second
	}
	return NewWithDoer(cfg.Identity.URL, &http.Client{Timeout: timeout}, logger)
}

// NewWithDoer returns a Client that sends requests through client.
func NewWithDoer(baseURL string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		logger:  logging.NewComponentLogger(logger, "identity"),
	}
}

// Verify resolves token to a User. Rejected tokens are classified as
// ErrUnauthorized or ErrForbidden; everything else the service does wrong is
// ErrUnavailable.
func (c *Client) Verify(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, services.Wrap(services.ErrUnauthorized, "identity", "verify", "missing bearer token", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/me", nil)
	if err != nil {
		return User{}, services.Wrap(services.ErrUnavailable, "identity", "verify", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	logger := logging.WithContext(ctx, c.logger)
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Error("identity service unreachable", logging.Error(err))
		return User{}, services.Wrap(services.ErrUnavailable, "identity", "verify", "identity service unavailable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		logger.Warn("token rejected")
		return User{}, services.Wrap(services.ErrUnauthorized, "identity", "verify", "invalid or expired token", nil)
	case http.StatusForbidden:
		logger.Warn("access forbidden")
		return User{}, services.Wrap(services.ErrForbidden, "identity", "verify", "access forbidden", nil)
	default:
		logger.Error("unexpected identity service status", logging.Int("status", resp.StatusCode))
		return User{}, services.Wrap(services.ErrUnavailable, "identity", "verify", fmt.Sprintf("identity service returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return User{}, services.Wrap(services.ErrUnavailable, "identity", "verify", "read response", err)
	}
	user, err := decodeUser(body)
	if err != nil {
		return User{}, services.Wrap(services.ErrUnavailable, "identity", "verify", "decode response", err)
	}
	if user.ID == "" || user.Email == "" {
		logger.Error("identity service returned incomplete user")
		return User{}, services.Wrap(services.ErrUnauthorized, "identity", "verify", "invalid user data from identity service", nil)
	}
	logger.Debug("token verified", logging.String(logging.FieldOwner, user.ID))
	return user, nil
}

func decodeUser(body []byte) (User, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return User{}, err
	}
	raw, ok := envelope["user"]
	if !ok || string(raw) == "null" {
		raw = body
	}

	var fields struct {
		ID           json.RawMessage `json:"id"`
		Email        string          `json:"email"`
		StorageQuota json.Number     `json:"storage_quota"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return User{}, err
	}
	user := User{ID: scalarString(fields.ID), Email: strings.TrimSpace(fields.Email)}
	if fields.StorageQuota != "" {
		if quota, err := fields.StorageQuota.Int64(); err == nil && quota > 0 {
			user.StorageQuota = quota
		}
	}
	return user, nil
}

// scalarString renders a JSON string or number id as text.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
