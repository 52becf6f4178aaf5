package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerCreateAttachEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create(CreateRequest{SystemPrompt: "be brief", Voice: "alloy", InitialGreeting: "Say hi"})
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", s.Status, StatusPending)
	}

	attached, err := m.Attach(s.ID)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if attached.Status != StatusActive || attached.Voice != "alloy" {
		t.Fatalf("unexpected session state: %+v", attached)
	}
	if _, err := m.Attach(s.ID); !errors.Is(err, ErrAlreadyAttached) {
		t.Fatalf("second Attach() error = %v, want ErrAlreadyAttached", err)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.Attach(s.ID); !errors.Is(err, ErrEnded) {
		t.Fatalf("Attach() after End error = %v, want ErrEnded", err)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

func TestManagerTracksRealtimeStateAndTurns(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create(CreateRequest{})
	if err := m.SetRealtimeState(s.ID, "connected"); err != nil {
		t.Fatalf("SetRealtimeState() error = %v", err)
	}
	if err := m.RecordTextTurn(s.ID); err != nil {
		t.Fatalf("RecordTextTurn() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RealtimeState != "connected" || got.TextTurns != 1 {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if err := m.Touch("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create(CreateRequest{})
	var hooked atomic.Int32
	m.SetExpireHook(func(expired *Session) {
		if expired.ID == s.ID {
			hooked.Add(1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if hooked.Load() != 1 {
		t.Fatalf("expire hook calls = %d, want 1", hooked.Load())
	}
}
