package memory

import (
	"context"
	"time"
)

// TurnRecord stores one finalized user or assistant transcript line.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves session transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	// Transcript returns a session's turns in chronological order.
	Transcript(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
