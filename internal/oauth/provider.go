// Package oauth holds the credential-exchange collaborators: each
// provider turns an authorization code into a bearer token. No business
// logic beyond the exchange lives here.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured means the provider's client credentials are missing
// from the service configuration (a deployment problem, not a caller
// problem).
var ErrNotConfigured = errors.New("oauth credentials not configured")

// ExchangeError is a rejection by the provider: bad code, expired code,
// revoked app. Surfaced to callers as a 400-equivalent.
type ExchangeError struct {
	Provider string
	Reason   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s oauth error: %s", e.Provider, e.Reason)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, accept string) (map[string]any, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode token response: %w", err)
	}
	return out, resp.StatusCode, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// providerErrorReason extracts the provider's own error description
// when present, falling back to the HTTP status.
func providerErrorReason(data map[string]any, status int) string {
	if d := stringField(data, "error_description"); d != "" {
		return d
	}
	if e := stringField(data, "error"); e != "" {
		return e
	}
	return fmt.Sprintf("unexpected status %d", status)
}
