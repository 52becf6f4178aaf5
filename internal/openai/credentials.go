package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultCredentialPath is the backend route that issues short-lived realtime
// credentials.
const DefaultCredentialPath = "/api/v1/openai/realtime/sessions"

var ErrEmptySecret = errors.New("credential response carried no client secret")

// CredentialSource issues the bearer secret used for one SDP negotiation.
type CredentialSource interface {
	ClientSecret(ctx context.Context, voice string) (string, error)
}

// SessionRequest is the body accepted by the credential endpoint.
type SessionRequest struct {
	Voice string `json:"voice"`
}

// ClientSecret is the ephemeral key part of a realtime session response.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// SessionResponse is the subset of the credential response this package reads.
type SessionResponse struct {
	ID           string       `json:"id,omitempty"`
	Model        string       `json:"model,omitempty"`
	Voice        string       `json:"voice,omitempty"`
	ClientSecret ClientSecret `json:"client_secret"`
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http status %d: %s", e.Op, e.Status, e.Body)
}

// CredentialClient asks the AdBuddy backend for a realtime credential.
type CredentialClient struct {
	url         string
	bearerToken string
	client      *http.Client
}

// NewCredentialClient targets baseURL+DefaultCredentialPath. bearerToken is the
// caller's backend access token and may be empty.
func NewCredentialClient(baseURL, bearerToken string) *CredentialClient {
	return &CredentialClient{
		url:         strings.TrimRight(strings.TrimSpace(baseURL), "/") + DefaultCredentialPath,
		bearerToken: strings.TrimSpace(bearerToken),
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *CredentialClient) ClientSecret(ctx context.Context, voice string) (string, error) {
	payload, err := json.Marshal(SessionRequest{Voice: voice})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send credential request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &StatusError{Op: "fetch credential", Status: res.StatusCode, Body: readExcerpt(res.Body)}
	}

	var out SessionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode credential response: %w", err)
	}
	if strings.TrimSpace(out.ClientSecret.Value) == "" {
		return "", ErrEmptySecret
	}
	return out.ClientSecret.Value, nil
}

func readExcerpt(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	return strings.TrimSpace(string(body))
}
