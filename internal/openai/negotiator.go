package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultRealtimeURL = "https://api.openai.com/v1/realtime"

var ErrEmptyAnswer = errors.New("negotiation returned an empty answer")

// Negotiator trades a local SDP offer for the provider's answer.
type Negotiator struct {
	url         string
	model       string
	credentials CredentialSource
	client      *http.Client
}

type NegotiatorConfig struct {
	// RealtimeURL defaults to DefaultRealtimeURL.
	RealtimeURL string
	// Model is appended as ?model= when set.
	Model       string
	Credentials CredentialSource
}

func NewNegotiator(cfg NegotiatorConfig) *Negotiator {
	u := strings.TrimSpace(cfg.RealtimeURL)
	if u == "" {
		u = DefaultRealtimeURL
	}
	return &Negotiator{
		url:         u,
		model:       strings.TrimSpace(cfg.Model),
		credentials: cfg.Credentials,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *Negotiator) Exchange(ctx context.Context, voice, offer string) (string, error) {
	if n.credentials == nil {
		return "", errors.New("negotiator has no credential source")
	}
	secret, err := n.credentials.ClientSecret(ctx, voice)
	if err != nil {
		return "", fmt.Errorf("obtain credential: %w", err)
	}

	endpoint := n.url
	if n.model != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parse realtime url: %w", err)
		}
		q := u.Query()
		q.Set("model", n.model)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+secret)

	res, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send offer: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &StatusError{Op: "exchange sdp", Status: res.StatusCode, Body: readExcerpt(res.Body)}
	}
	answer, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if strings.TrimSpace(string(answer)) == "" {
		return "", ErrEmptyAnswer
	}
	return string(answer), nil
}
