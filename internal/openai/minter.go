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

	"github.com/ssd39/adbuddy-voice/internal/reliability"
)

const (
	DefaultAPIBaseURL    = "https://api.openai.com"
	DefaultRealtimeModel = "gpt-4o-realtime-preview-2025-06-03"
)

var ErrMissingAPIKey = errors.New("openai api key not configured")

type MinterConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Backoff    time.Duration
}

// SessionMinter creates ephemeral realtime sessions with the account API key.
// It backs the credential endpoint and can serve as an in-process
// CredentialSource.
type SessionMinter struct {
	cfg    MinterConfig
	client *http.Client
}

func NewSessionMinter(cfg MinterConfig) *SessionMinter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultRealtimeModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &SessionMinter{cfg: cfg, client: &http.Client{Timeout: 20 * time.Second}}
}

func (m *SessionMinter) Configured() bool {
	return strings.TrimSpace(m.cfg.APIKey) != ""
}

// Mint returns the raw upstream session JSON.
func (m *SessionMinter) Mint(ctx context.Context, voice string) ([]byte, error) {
	if !m.Configured() {
		return nil, ErrMissingAPIKey
	}
	payload, err := json.Marshal(map[string]string{"model": m.cfg.Model, "voice": voice})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, m.cfg.Backoff, 5*time.Second)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		body, err := m.mintOnce(ctx, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !reliability.IsRetryableHTTPStatus(statusErr.Status) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (m *SessionMinter) mintOnce(ctx context.Context, payload []byte) ([]byte, error) {
	url := strings.TrimRight(m.cfg.BaseURL, "/") + "/v1/realtime/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	res, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send mint request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "mint realtime session", Status: res.StatusCode, Body: readExcerpt(res.Body)}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read mint response: %w", err)
	}
	return body, nil
}

func (m *SessionMinter) ClientSecret(ctx context.Context, voice string) (string, error) {
	raw, err := m.Mint(ctx, voice)
	if err != nil {
		return "", err
	}
	var out SessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode mint response: %w", err)
	}
	if strings.TrimSpace(out.ClientSecret.Value) == "" {
		return "", ErrEmptySecret
	}
	return out.ClientSecret.Value, nil
}
