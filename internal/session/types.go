package session

import "time"

// CreateRequest defines payload for registering a bridged voice session.
type CreateRequest struct {
	SystemPrompt    string `json:"system_prompt"`
	Voice           string `json:"voice"`
	InitialGreeting string `json:"initial_greeting"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Status          Status    `json:"status"`
	Voice           string    `json:"voice"`
	HasGreeting     bool      `json:"has_greeting"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
