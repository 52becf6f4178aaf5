package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ssd39/adbuddy-voice/internal/config"
	"github.com/ssd39/adbuddy-voice/internal/memory"
	"github.com/ssd39/adbuddy-voice/internal/observability"
	"github.com/ssd39/adbuddy-voice/internal/openai"
	"github.com/ssd39/adbuddy-voice/internal/protocol"
	"github.com/ssd39/adbuddy-voice/internal/session"
	"github.com/ssd39/adbuddy-voice/internal/voice"
)

var metricsSeq atomic.Int64

func newTestMetrics(prefix string) *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("%s_%d", prefix, metricsSeq.Add(1)))
}

type testServer struct {
	ts       *httptest.Server
	sessions *session.Manager
	store    *memory.InMemoryStore
}

func newTestServer(t *testing.T, cfg config.Config, minter CredentialMinter) *testServer {
	t.Helper()
	if cfg.SessionInactivityTimeout == 0 {
		cfg.SessionInactivityTimeout = 2 * time.Minute
	}
	if cfg.CredentialVoice == "" {
		cfg.CredentialVoice = "verse"
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	store := memory.NewInMemoryStore()
	metrics := newTestMetrics("test_httpapi")
	orch := voice.NewOrchestrator(voice.OrchestratorConfig{
		Sessions:     sessions,
		Memory:       store,
		Negotiator:   voice.MockNegotiator{},
		NewTransport: voice.NewMockTransportFactory(),
		Metrics:      metrics,
	})
	srv := New(cfg, sessions, orch, minter, store, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{ts: ts, sessions: sessions, store: store}
}

func (s *testServer) createSession(t *testing.T, body map[string]string) map[string]any {
	t.Helper()
	raw, _ := json.Marshal(body)
	res, err := http.Post(s.ts.URL+"/v1/voice/session", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if id, _ := created["session_id"].(string); id == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	return created
}

func TestCreateAndEndSession(t *testing.T) {
	s := newTestServer(t, config.Config{SessionVoice: "alloy"}, nil)

	created := s.createSession(t, map[string]string{"system_prompt": "be brief"})
	sessionID := created["session_id"].(string)
	if created["voice"] != "alloy" || created["status"] != string(session.StatusPending) {
		t.Fatalf("unexpected create response: %+v", created)
	}

	endRes, err := http.Post(s.ts.URL+"/v1/voice/session/"+sessionID+"/end", "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}

	missing, err := http.Post(s.ts.URL+"/v1/voice/session/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end missing request error = %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("end missing status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestMintRealtimeSession(t *testing.T) {
	var gotVoice atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotVoice.Store(body["voice"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"sess_1","client_secret":{"value":"ek_test","expires_at":1}}`)
	}))
	defer upstream.Close()

	minter := openai.NewSessionMinter(openai.MinterConfig{APIKey: "sk-test", BaseURL: upstream.URL})
	s := newTestServer(t, config.Config{}, minter)

	res, err := http.Post(s.ts.URL+"/v1/openai/realtime/sessions", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("mint request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mint status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out openai.SessionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode mint response: %v", err)
	}
	if out.ClientSecret.Value != "ek_test" {
		t.Fatalf("client secret = %q, want ek_test", out.ClientSecret.Value)
	}
	if v := gotVoice.Load(); v != "verse" {
		t.Fatalf("upstream voice = %v, want default verse", v)
	}

	// The original web client path resolves to the same handler.
	client := openai.NewCredentialClient(s.ts.URL, "")
	secret, err := client.ClientSecret(context.Background(), "alloy")
	if err != nil {
		t.Fatalf("ClientSecret() error = %v", err)
	}
	if v := gotVoice.Load(); secret != "ek_test" || v != "alloy" {
		t.Fatalf("ClientSecret() = %q with voice %v", secret, v)
	}
}

func TestMintRealtimeSessionWithoutKey(t *testing.T) {
	s := newTestServer(t, config.Config{}, openai.NewSessionMinter(openai.MinterConfig{}))

	res, err := http.Post(s.ts.URL+"/v1/openai/realtime/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("mint request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("mint status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
}

func TestMintRealtimeSessionRequiresToken(t *testing.T) {
	minter := openai.NewSessionMinter(openai.MinterConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	s := newTestServer(t, config.Config{APIToken: "secret"}, minter)

	res, err := http.Post(s.ts.URL+"/v1/openai/realtime/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("mint request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mint status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionWebsocketBridge(t *testing.T) {
	s := newTestServer(t, config.Config{}, nil)
	sessionID := s.createSession(t, map[string]string{})["session_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/v1/voice/session/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	readUntil := func(what string, match func(map[string]any) bool) {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("waiting for %s: %v", what, err)
			}
			if match(msg) {
				return
			}
		}
	}
	final := func(role, prefix string) func(map[string]any) bool {
		return func(m map[string]any) bool {
			text, _ := m["text"].(string)
			return m["type"] == string(protocol.TypeTranscriptFinal) && m["role"] == role && strings.HasPrefix(text, prefix)
		}
	}

	readUntil("greeting", final(protocol.RoleAssistant, "Hi, I'm AdBuddy"))

	// A second bridge for the same session is refused.
	if _, res, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatalf("second Dial() succeeded, want conflict")
	} else if res == nil || res.StatusCode != http.StatusConflict {
		t.Fatalf("second Dial() response = %v, want 409", res)
	}

	if err := conn.WriteJSON(protocol.ClientText{Type: protocol.TypeClientText, SessionID: sessionID, Text: "We sell shoes"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readUntil("text reply", final(protocol.RoleAssistant, "You said: We sell shoes"))

	if err := conn.WriteJSON(map[string]string{"type": "client_audio_chunk"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readUntil("invalid message error", func(m map[string]any) bool {
		return m["type"] == string(protocol.TypeErrorEvent) && m["code"] == "invalid_client_message"
	})

	if err := conn.WriteJSON(protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: sessionID, Action: protocol.ActionEnd}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readUntil("disconnected status", func(m map[string]any) bool {
		return m["type"] == string(protocol.TypeStatusEvent) && m["code"] == protocol.StatusDisconnected
	})

	var body struct {
		Turns []memory.TurnRecord `json:"turns"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, err := http.Get(s.ts.URL + "/v1/voice/session/" + sessionID + "/transcript")
		if err != nil {
			t.Fatalf("transcript request error = %v", err)
		}
		_ = json.NewDecoder(res.Body).Decode(&body)
		res.Body.Close()
		if len(body.Turns) == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(body.Turns) != 3 {
		t.Fatalf("transcript turns = %d, want 3: %+v", len(body.Turns), body.Turns)
	}
	if body.Turns[1].Role != protocol.RoleUser || body.Turns[1].Content != "We sell shoes" {
		t.Fatalf("unexpected user turn: %+v", body.Turns[1])
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	s := newTestServer(t, config.Config{}, nil)
	res, err := http.Get(s.ts.URL + "/v1/voice/session/missing/transcript")
	if err != nil {
		t.Fatalf("transcript request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestHealthReportsStoreMode(t *testing.T) {
	s := newTestServer(t, config.Config{}, nil)
	res, err := http.Get(s.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["transcript_store"] != "in-memory" || payload["openai_configured"] != false {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}
