package voice

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ssd39/adbuddy-voice/internal/realtime"
	"github.com/ssd39/adbuddy-voice/internal/rtc"
)

const mockAnswerSDP = "v=0\r\ns=mock-realtime\r\n"

// MockNegotiator is a local fallback used when no OpenAI key is configured.
// It pairs with MockTransport.
type MockNegotiator struct{}

func (MockNegotiator) Exchange(_ context.Context, _ string, offer string) (string, error) {
	return mockAnswerSDP, nil
}

// NewMockTransportFactory builds transports that simulate the realtime server
// in-process: they connect immediately, acknowledge configuration and answer
// text turns with a canned assistant transcript.
func NewMockTransportFactory() realtime.TransportFactory {
	return func(obs rtc.Observer) rtc.Transport {
		return NewMockTransport(obs)
	}
}

type MockTransport struct {
	observer rtc.Observer

	mu       sync.Mutex
	events   chan func()
	open     bool
	closed   bool
	lastText string
	sent     []string
}

func NewMockTransport(observer rtc.Observer) *MockTransport {
	return &MockTransport{observer: observer, events: make(chan func(), 64)}
}

func (t *MockTransport) Open(_ context.Context, _ rtc.LocalAudio) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", rtc.ErrTransportClosed
	}
	return "v=0\r\ns=mock-offer\r\n", nil
}

func (t *MockTransport) ApplyAnswer(sdp string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return rtc.ErrTransportClosed
	}
	t.open = true
	t.mu.Unlock()

	go t.pump()
	t.emit(func() { t.observer.OnConnState(rtc.ConnConnected) })
	t.emit(t.observer.OnChannelOpen)
	t.emitFrame(map[string]any{"type": realtime.TypeSessionCreated, "session": map[string]any{"id": "mock"}})
	return nil
}

func (t *MockTransport) Send(frame []byte) error {
	var env struct {
		Type string `json:"type"`
		Item struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"item"`
		Response *struct {
			Instructions string `json:"instructions"`
		} `json:"response"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}

	t.mu.Lock()
	if !t.open || t.closed {
		t.mu.Unlock()
		return rtc.ErrChannelNotOpen
	}
	t.sent = append(t.sent, env.Type)
	if env.Type == realtime.TypeConversationItemCreate && len(env.Item.Content) > 0 {
		t.lastText = env.Item.Content[0].Text
	}
	lastText := t.lastText
	t.mu.Unlock()

	switch env.Type {
	case realtime.TypeSessionUpdate:
		t.emitFrame(map[string]any{"type": realtime.TypeSessionUpdated})
	case realtime.TypeResponseCreate:
		reply := "Hi, I'm AdBuddy. What kind of campaign are you planning?"
		if env.Response == nil && lastText != "" {
			reply = "You said: " + lastText
		}
		t.emitTranscript(reply)
	}
	return nil
}

func (t *MockTransport) ChannelOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && !t.closed
}

func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.events)
	return nil
}

// Sent returns the outbound event types in send order.
func (t *MockTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *MockTransport) emitTranscript(reply string) {
	words := strings.Fields(reply)
	for i, w := range words {
		if i < len(words)-1 {
			w += " "
		}
		t.emitFrame(map[string]any{"type": realtime.TypeAudioTranscriptDelta, "delta": w})
	}
	t.emitFrame(map[string]any{"type": realtime.TypeAudioTranscriptDone, "transcript": reply})
}

func (t *MockTransport) emitFrame(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	t.emit(func() { t.observer.OnMessage(data) })
}

// emit queues fn for the pump goroutine so observer calls keep their order
// and never run on the caller's goroutine.
func (t *MockTransport) emit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- fn:
	default:
	}
}

func (t *MockTransport) pump() {
	for fn := range t.events {
		fn()
	}
}
