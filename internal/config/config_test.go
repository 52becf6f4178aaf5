package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.CredentialVoice != "verse" || cfg.SessionVoice != "alloy" {
		t.Fatalf("voices = %q/%q, want verse/alloy", cfg.CredentialVoice, cfg.SessionVoice)
	}
	if cfg.ICEGatherTimeout != 10*time.Second {
		t.Fatalf("ICEGatherTimeout = %v, want 10s", cfg.ICEGatherTimeout)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("OpenAIAPIKey = %q, want empty default", cfg.OpenAIAPIKey)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("OPENAI_API_KEY", "  sk-test \n")
	t.Setenv("REALTIME_ICE_GATHER_TIMEOUT", "3s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("OpenAIAPIKey = %q, want trimmed value", cfg.OpenAIAPIKey)
	}
	if cfg.ICEGatherTimeout != 3*time.Second {
		t.Fatalf("ICEGatherTimeout = %v, want 3s", cfg.ICEGatherTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"APP_SESSION_INACTIVITY_TIMEOUT": "1s",
		"REALTIME_ICE_GATHER_TIMEOUT":    "soon",
		"OPENAI_MINT_MAX_RETRIES":        "-1",
		"APP_ALLOW_ANY_ORIGIN":           "maybe",
		"REALTIME_STUN_URL":              "http://stun.example",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q expected error", key, value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_API_TOKEN",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_REALTIME_URL",
		"OPENAI_REALTIME_MODEL",
		"OPENAI_MINT_MAX_RETRIES",
		"REALTIME_CREDENTIAL_VOICE",
		"REALTIME_DEFAULT_VOICE",
		"REALTIME_STUN_URL",
		"REALTIME_ICE_GATHER_TIMEOUT",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
