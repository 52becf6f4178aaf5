package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageText(t *testing.T) {
	raw := []byte(`{"type":"client_text","session_id":"s1","text":"We sell shoes"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	text, ok := msg.(ClientText)
	if !ok {
		t.Fatalf("message type = %T, want ClientText", msg)
	}
	if text.SessionID != "s1" || text.Text != "We sell shoes" {
		t.Fatalf("unexpected client text: %+v", text)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	for _, action := range []string{ActionMute, ActionUnmute, ActionEnd} {
		raw := []byte(`{"type":"client_control","session_id":"s1","action":"` + action + `"}`)
		msg, err := ParseClientMessage(raw)
		if err != nil {
			t.Fatalf("ParseClientMessage(%s) error = %v", action, err)
		}
		control, ok := msg.(ClientControl)
		if !ok {
			t.Fatalf("message type = %T, want ClientControl", msg)
		}
		if control.Action != action {
			t.Fatalf("Action = %q, want %q", control.Action, action)
		}
	}
}

func TestParseClientMessageRejectsInvalidPayloads(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"client_text","session_id":"s1","text":"   "}`,
		`{"type":"client_text","text":"hi"}`,
		`{"type":"client_control","session_id":"s1","action":"reboot"}`,
		`{"type":"client_control","action":"mute"}`,
	} {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) expected error", raw)
		}
	}
}

func TestTranscriptEventShape(t *testing.T) {
	got, err := json.Marshal(TranscriptEvent{Type: TypeTranscriptFinal, SessionID: "s1", Role: RoleAssistant, Text: "Hello"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"type":"transcript_final","session_id":"s1","role":"assistant","text":"Hello"}`
	if string(got) != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}
