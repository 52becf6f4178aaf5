package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the realtime voice service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool
	// APIToken, when set, is required as a bearer token on credential minting.
	APIToken string

	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIRealtimeURL   string
	OpenAIRealtimeModel string
	MintMaxRetries      int

	// CredentialVoice is the default voice for minted credentials; the
	// original backend used "verse".
	CredentialVoice string
	// SessionVoice is the default voice for bridged sessions.
	SessionVoice string

	STUNURL          string
	ICEGatherTimeout time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "adbuddy_voice"),
		AllowAnyOrigin:           false,
		APIToken:                 stringsTrimSpace("APP_API_TOKEN"),
		OpenAIAPIKey:             stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:            envOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIRealtimeURL:        envOrDefault("OPENAI_REALTIME_URL", "https://api.openai.com/v1/realtime"),
		OpenAIRealtimeModel:      envOrDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview-2025-06-03"),
		MintMaxRetries:           2,
		CredentialVoice:          envOrDefault("REALTIME_CREDENTIAL_VOICE", "verse"),
		SessionVoice:             envOrDefault("REALTIME_DEFAULT_VOICE", "alloy"),
		STUNURL:                  envOrDefault("REALTIME_STUN_URL", "stun:stun.l.google.com:19302"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
		ICEGatherTimeout:         10 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ICEGatherTimeout, err = durationFromEnv("REALTIME_ICE_GATHER_TIMEOUT", cfg.ICEGatherTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MintMaxRetries, err = intFromEnv("OPENAI_MINT_MAX_RETRIES", cfg.MintMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ICEGatherTimeout <= 0 {
		return Config{}, fmt.Errorf("REALTIME_ICE_GATHER_TIMEOUT must be positive")
	}
	if cfg.MintMaxRetries < 0 {
		return Config{}, fmt.Errorf("OPENAI_MINT_MAX_RETRIES must be >= 0")
	}
	if !strings.HasPrefix(cfg.STUNURL, "stun:") && !strings.HasPrefix(cfg.STUNURL, "turn:") {
		return Config{}, fmt.Errorf("REALTIME_STUN_URL must be a stun: or turn: url")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
