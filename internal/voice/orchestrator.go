package voice

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ssd39/adbuddy-voice/internal/memory"
	"github.com/ssd39/adbuddy-voice/internal/observability"
	"github.com/ssd39/adbuddy-voice/internal/policy"
	"github.com/ssd39/adbuddy-voice/internal/protocol"
	"github.com/ssd39/adbuddy-voice/internal/realtime"
	"github.com/ssd39/adbuddy-voice/internal/rtc"
	"github.com/ssd39/adbuddy-voice/internal/session"
)

const (
	memorySaveTimeout      = 2 * time.Second
	criticalSendTimeout    = 600 * time.Millisecond
	transcriptDeltaTimeout = 50 * time.Millisecond
)

// OrchestratorConfig wires the dependencies of bridged realtime sessions.
// Nil Microphone and NewTransport fall back to the realtime defaults.
type OrchestratorConfig struct {
	Sessions     *session.Manager
	Memory       memory.Store
	Negotiator   realtime.Negotiator
	Microphone   rtc.Microphone
	NewTransport realtime.TransportFactory
	Metrics      *observability.Metrics
	Logger       *log.Logger
	DefaultVoice string
}

// Orchestrator runs one realtime session per websocket bridge and relays its
// callbacks to the browser as protocol messages.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger *log.Logger

	mu   sync.Mutex
	live map[string]*realtime.Session
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if strings.TrimSpace(cfg.DefaultVoice) == "" {
		cfg.DefaultVoice = realtime.DefaultVoice
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger,
		live:   make(map[string]*realtime.Session),
	}
}

// RunConnection drives a realtime session for one websocket connection. It
// returns when the client ends the session, the inbound channel closes, ctx is
// cancelled, or the remote side disconnects.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	rs := realtime.New(o.realtimeConfig(s, outbound), realtime.Deps{
		Microphone:   o.cfg.Microphone,
		NewTransport: o.cfg.NewTransport,
		Negotiator:   o.cfg.Negotiator,
		Logger:       o.logger,
		Metrics:      o.cfg.Metrics,
	})
	if !o.register(s.ID, rs) {
		o.send(outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.ID,
			Code:      "session_busy",
			Source:    "gateway",
			Detail:    "session already has a live bridge",
		})
		return session.ErrAlreadyAttached
	}
	defer o.unregister(s.ID, rs)
	defer rs.Disconnect()

	if err := rs.Connect(ctx); err != nil {
		// OnError has already reported connection failures to the client.
		if errors.Is(err, realtime.ErrClosed) {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rs.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			_ = o.cfg.Sessions.Touch(s.ID)
			switch m := msg.(type) {
			case protocol.ClientText:
				o.handleClientText(rs, s.ID, m.Text, outbound)
			case protocol.ClientControl:
				switch m.Action {
				case protocol.ActionMute:
					rs.Mute()
					o.sendStatus(outbound, s.ID, protocol.StatusMuted)
				case protocol.ActionUnmute:
					rs.Unmute()
					o.sendStatus(outbound, s.ID, protocol.StatusUnmuted)
				case protocol.ActionEnd:
					rs.Disconnect()
					return nil
				}
			}
		}
	}
}

// EndSession disconnects the live bridge for sessionID, if any. It is used by
// explicit end requests and the inactivity janitor.
func (o *Orchestrator) EndSession(sessionID string) bool {
	o.mu.Lock()
	rs, ok := o.live[sessionID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	rs.Disconnect()
	return true
}

// LiveCount reports how many bridges currently hold a realtime session.
func (o *Orchestrator) LiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.live)
}

func (o *Orchestrator) register(id string, rs *realtime.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.live[id]; exists {
		return false
	}
	o.live[id] = rs
	o.cfg.Metrics.SetActiveSessions(len(o.live))
	return true
}

func (o *Orchestrator) unregister(id string, rs *realtime.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live[id] == rs {
		delete(o.live, id)
	}
	o.cfg.Metrics.SetActiveSessions(len(o.live))
}

func (o *Orchestrator) handleClientText(rs *realtime.Session, sessionID, text string, outbound chan<- any) {
	if rs.State() != realtime.StateConnected {
		o.send(outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "not_connected",
			Source:    "realtime",
			Retryable: true,
			Detail:    "realtime session is " + rs.State().String(),
		})
		return
	}
	rs.SendText(text)
	_ = o.cfg.Sessions.RecordTextTurn(sessionID)
	o.saveTurnBestEffort(sessionID, protocol.RoleUser, text)
}

func (o *Orchestrator) realtimeConfig(s *session.Session, outbound chan<- any) realtime.Config {
	prompt := strings.TrimSpace(s.SystemPrompt)
	greeting := strings.TrimSpace(s.InitialGreeting)
	if prompt == "" {
		prompt = CampaignSpecialistPrompt
		if greeting == "" {
			greeting = CampaignSpecialistGreeting
		}
	}
	voiceID := strings.TrimSpace(s.Voice)
	if voiceID == "" {
		voiceID = o.cfg.DefaultVoice
	}

	id := s.ID
	setState := func(state realtime.State) {
		_ = o.cfg.Sessions.SetRealtimeState(id, state.String())
	}
	return realtime.Config{
		SystemPrompt:    prompt,
		Voice:           voiceID,
		InitialGreeting: greeting,
		Callbacks: realtime.Callbacks{
			OnConnecting: func() {
				setState(realtime.StateConnecting)
				o.sendStatus(outbound, id, protocol.StatusConnecting)
			},
			OnConnected: func() {
				setState(realtime.StateConnected)
				o.sendStatus(outbound, id, protocol.StatusConnected)
			},
			OnSessionReady: func() {
				o.sendStatus(outbound, id, protocol.StatusReady)
			},
			OnTranscript: func(text string, final bool) {
				o.relayTranscript(outbound, id, protocol.RoleAssistant, text, final)
			},
			OnUserTranscript: func(text string, final bool) {
				o.relayTranscript(outbound, id, protocol.RoleUser, text, final)
			},
			OnError: func(err error) {
				source := "setup"
				if realtime.IsNegotiation(err) {
					source = "negotiation"
				}
				o.send(outbound, protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: id,
					Code:      "realtime_connect_failed",
					Source:    source,
					Retryable: source == "negotiation",
					Detail:    err.Error(),
				})
			},
			OnDisconnect: func() {
				setState(realtime.StateDisconnected)
				o.sendStatus(outbound, id, protocol.StatusDisconnected)
			},
		},
	}
}

func (o *Orchestrator) relayTranscript(outbound chan<- any, sessionID, role, text string, final bool) {
	_ = o.cfg.Sessions.Touch(sessionID)
	msgType := protocol.TypeTranscriptDelta
	if final {
		msgType = protocol.TypeTranscriptFinal
	}
	o.send(outbound, protocol.TranscriptEvent{
		Type:      msgType,
		SessionID: sessionID,
		Role:      role,
		Text:      text,
	})
	if final {
		o.saveTurnBestEffort(sessionID, role, text)
	}
}

func (o *Orchestrator) sendStatus(outbound chan<- any, sessionID, code string) {
	o.send(outbound, protocol.StatusEvent{
		Type:      protocol.TypeStatusEvent,
		SessionID: sessionID,
		Code:      code,
	})
}

// send never blocks the realtime dispatch goroutine for long: deltas wait
// briefly, everything else gets the critical budget before being dropped.
func (o *Orchestrator) send(outbound chan<- any, msg any) {
	timeout := criticalSendTimeout
	if m, ok := msg.(protocol.TranscriptEvent); ok && m.Type == protocol.TypeTranscriptDelta {
		timeout = transcriptDeltaTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
	case <-timer.C:
		o.cfg.Metrics.SessionEvent("outbound_drop")
	}
}

func (o *Orchestrator) saveTurnBestEffort(sessionID, role, text string) {
	if o.cfg.Memory == nil {
		return
	}
	content, redacted := policy.RedactTranscript(text)
	if content == "" {
		return
	}
	record := memory.TurnRecord{
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		PIIRedacted: redacted,
		CreatedAt:   time.Now().UTC(),
	}
	go func(r memory.TurnRecord) {
		saveCtx, cancel := context.WithTimeout(context.Background(), memorySaveTimeout)
		defer cancel()
		if err := o.cfg.Memory.SaveTurn(saveCtx, r); err != nil {
			o.cfg.Metrics.SessionEvent("memory_save_failed")
			o.logger.Printf("transcript save failed session_id=%s: %v", r.SessionID, err)
		}
	}(record)
}
