package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event tags on the realtime data channel.
const (
	TypeSessionCreated             = "session.created"
	TypeSessionUpdated             = "session.updated"
	TypeTextDelta                  = "response.text.delta"
	TypeTextDone                   = "response.text.done"
	TypeAudioTranscriptDelta       = "response.audio_transcript.delta"
	TypeAudioTranscriptDone        = "response.audio_transcript.done"
	TypeUserTranscriptionDelta     = "conversation.item.input_audio_transcription.delta"
	TypeUserTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeServerError                = "error"
)

// ErrMalformedEvent wraps every decode failure. Malformed frames are dropped
// by the session; they never end it.
var ErrMalformedEvent = errors.New("malformed realtime event")

// Event is one decoded inbound frame. The set of implementations is closed.
type Event interface {
	EventType() string
	isEvent()
}

type SessionCreated struct{}

type SessionUpdated struct{}

type TextDelta struct{ Text string }

type TextDone struct{ Text string }

type AudioTranscriptDelta struct{ Delta string }

type AudioTranscriptDone struct{ Transcript string }

type UserTranscriptionDelta struct{ Delta string }

type UserTranscriptionCompleted struct{ Transcript string }

// ServerError is the provider's own error report for a request it rejected.
type ServerError struct {
	ErrType string
	Code    string
	Message string
}

// Unknown preserves frames with a tag this package does not handle.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (SessionCreated) EventType() string             { return TypeSessionCreated }
func (SessionUpdated) EventType() string             { return TypeSessionUpdated }
func (TextDelta) EventType() string                  { return TypeTextDelta }
func (TextDone) EventType() string                   { return TypeTextDone }
func (AudioTranscriptDelta) EventType() string       { return TypeAudioTranscriptDelta }
func (AudioTranscriptDone) EventType() string        { return TypeAudioTranscriptDone }
func (UserTranscriptionDelta) EventType() string     { return TypeUserTranscriptionDelta }
func (UserTranscriptionCompleted) EventType() string { return TypeUserTranscriptionCompleted }
func (ServerError) EventType() string                { return TypeServerError }
func (u Unknown) EventType() string                  { return u.Type }

func (SessionCreated) isEvent()             {}
func (SessionUpdated) isEvent()             {}
func (TextDelta) isEvent()                  {}
func (TextDone) isEvent()                   {}
func (AudioTranscriptDelta) isEvent()       {}
func (AudioTranscriptDone) isEvent()        {}
func (UserTranscriptionDelta) isEvent()     {}
func (UserTranscriptionCompleted) isEvent() {}
func (ServerError) isEvent()                {}
func (Unknown) isEvent()                    {}

type envelope struct {
	Type *string `json:"type"`
}

// DecodeEvent parses a single data channel frame.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == nil || *env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	decode, ok := decoders[*env.Type]
	if !ok {
		return Unknown{Type: *env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	ev, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, *env.Type, err)
	}
	return ev, nil
}

var decoders = map[string]func([]byte) (Event, error){
	TypeSessionCreated: func([]byte) (Event, error) { return SessionCreated{}, nil },
	TypeSessionUpdated: func([]byte) (Event, error) { return SessionUpdated{}, nil },
	TypeTextDelta:      decodeTextDelta,
	TypeTextDone: func(raw []byte) (Event, error) {
		s, err := requiredString(raw, "text")
		return TextDone{Text: s}, err
	},
	TypeAudioTranscriptDelta: func(raw []byte) (Event, error) {
		s, err := requiredString(raw, "delta")
		return AudioTranscriptDelta{Delta: s}, err
	},
	TypeAudioTranscriptDone: func(raw []byte) (Event, error) {
		s, err := requiredString(raw, "transcript")
		return AudioTranscriptDone{Transcript: s}, err
	},
	TypeUserTranscriptionDelta: func(raw []byte) (Event, error) {
		s, err := requiredString(raw, "delta")
		return UserTranscriptionDelta{Delta: s}, err
	},
	TypeUserTranscriptionCompleted: func(raw []byte) (Event, error) {
		s, err := requiredString(raw, "transcript")
		return UserTranscriptionCompleted{Transcript: s}, err
	},
	TypeServerError: decodeServerError,
}

func requiredString(raw []byte, field string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	v, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("missing %s", field)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	if s == "" {
		return "", fmt.Errorf("empty %s", field)
	}
	return s, nil
}

// decodeTextDelta accepts delta as {"text": "..."} or as a bare string; the
// provider has shipped both shapes.
func decodeTextDelta(raw []byte) (Event, error) {
	var msg struct {
		Delta json.RawMessage `json:"delta"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if len(msg.Delta) == 0 {
		return nil, errors.New("missing delta")
	}
	var text string
	if err := json.Unmarshal(msg.Delta, &text); err != nil {
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Delta, &obj); err != nil {
			return nil, fmt.Errorf("delta: %w", err)
		}
		text = obj.Text
	}
	if text == "" {
		return nil, errors.New("empty delta.text")
	}
	return TextDelta{Text: text}, nil
}

func decodeServerError(raw []byte) (Event, error) {
	var msg struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return ServerError{ErrType: msg.Error.Type, Code: msg.Error.Code, Message: msg.Error.Message}, nil
}
