package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ssd39/adbuddy-voice/internal/observability"
	"github.com/ssd39/adbuddy-voice/internal/reliability"
	"github.com/ssd39/adbuddy-voice/internal/rtc"
)

const DefaultVoice = "alloy"

const inboxSize = 256

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Callbacks are optional; nil handlers are skipped. Event-driven handlers run
// on the session's dispatch goroutine, one at a time.
type Callbacks struct {
	OnConnecting     func()
	OnConnected      func()
	OnSessionReady   func()
	OnTranscript     func(text string, final bool)
	OnUserTranscript func(text string, final bool)
	OnError          func(err error)
	OnDisconnect     func()
}

type Config struct {
	SystemPrompt    string
	Voice           string
	InitialGreeting string
	Callbacks       Callbacks
}

// Negotiator exchanges the local offer for the remote answer.
type Negotiator interface {
	Exchange(ctx context.Context, voice, offer string) (string, error)
}

// TransportFactory builds the transport for one session, reporting to obs.
type TransportFactory func(obs rtc.Observer) rtc.Transport

type Deps struct {
	Microphone   rtc.Microphone
	NewTransport TransportFactory
	Negotiator   Negotiator
	Logger       *log.Logger
	Metrics      *observability.Metrics
}

// Session is a single realtime voice conversation. It cannot be reconnected
// after Disconnect; create a new one instead.
type Session struct {
	cfg     Config
	deps    Deps
	logger  *log.Logger
	metrics *observability.Metrics

	mu            sync.Mutex
	state         State
	muted         bool
	audio         rtc.LocalAudio
	transport     rtc.Transport
	connectCancel context.CancelFunc

	// Only touched by the dispatch goroutine.
	configSent   bool
	greetingSent bool

	sendMu    sync.Mutex
	inbox     chan inbound
	done      chan struct{}
	closeOnce sync.Once
}

type inboundKind int

const (
	inboundFrame inboundKind = iota
	inboundChannelOpen
	inboundConnState
)

type inbound struct {
	kind  inboundKind
	data  []byte
	state rtc.ConnState
}

func New(cfg Config, deps Deps) *Session {
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = DefaultVoice
	}
	if deps.Microphone == nil {
		deps.Microphone = rtc.SilenceMicrophone{}
	}
	if deps.NewTransport == nil {
		deps.NewTransport = func(obs rtc.Observer) rtc.Transport {
			return rtc.NewPeerTransport(rtc.PeerConfig{}, obs)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		metrics: deps.Metrics,
		inbox:   make(chan inbound, inboxSize),
		done:    make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Connect runs the offer/answer handshake. It returns once the remote answer
// is applied; OnConnected fires later when ICE connects. Calls while
// connecting or connected are no-ops.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		return nil
	case StateDisconnected:
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateConnecting
	ctx, cancel := context.WithCancel(ctx)
	s.connectCancel = cancel
	s.mu.Unlock()
	defer cancel()

	startedAt := time.Now()
	go s.dispatchLoop()
	s.metrics.SessionEvent("connecting")
	if s.cfg.Callbacks.OnConnecting != nil {
		s.cfg.Callbacks.OnConnecting()
	}

	if s.deps.Negotiator == nil {
		return s.failConnect(&ConnectionError{Kind: KindNegotiation, Op: "exchange description", Err: errors.New("no negotiator configured")})
	}

	audio, err := s.deps.Microphone.Acquire(ctx)
	if err != nil {
		return s.failConnect(&ConnectionError{Kind: KindSetup, Op: "acquire microphone", Err: err})
	}
	if !s.adopt(func() { s.audio = audio }) {
		audio.Stop()
		return ErrClosed
	}

	transport := s.deps.NewTransport(sessionObserver{s: s})
	if !s.adopt(func() { s.transport = transport }) {
		_ = transport.Close()
		return ErrClosed
	}

	offer, err := transport.Open(ctx, audio)
	if err != nil {
		kind := KindSetup
		if errors.Is(err, rtc.ErrGatheringTimeout) {
			kind = KindNegotiation
		}
		return s.failConnect(&ConnectionError{Kind: kind, Op: "open transport", Err: err})
	}

	answer, err := s.deps.Negotiator.Exchange(ctx, s.cfg.Voice, offer)
	if err != nil {
		return s.failConnect(&ConnectionError{Kind: KindNegotiation, Op: "exchange description", Err: err})
	}
	if err := transport.ApplyAnswer(answer); err != nil {
		return s.failConnect(&ConnectionError{Kind: KindNegotiation, Op: "apply answer", Err: err})
	}

	s.metrics.ObserveConnectLatency(time.Since(startedAt))
	return nil
}

// adopt records a resource unless the session was disconnected meanwhile.
func (s *Session) adopt(set func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	set()
	return true
}

func (s *Session) failConnect(err error) error {
	if !s.shutdown(false) {
		return ErrClosed
	}
	s.logger.Printf("realtime connect failed: %v", err)
	s.metrics.SessionEvent("connect_failed")
	if s.cfg.Callbacks.OnError != nil {
		s.cfg.Callbacks.OnError(err)
	}
	return err
}

// Disconnect tears the session down. Safe from any state and any goroutine;
// OnDisconnect fires at most once.
func (s *Session) Disconnect() {
	s.shutdown(true)
}

// shutdown reports whether this call performed the teardown.
func (s *Session) shutdown(notify bool) bool {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.mu.Lock()
		s.state = StateDisconnected
		transport, audio, cancel := s.transport, s.audio, s.connectCancel
		s.transport, s.audio, s.connectCancel = nil, nil, nil
		s.mu.Unlock()

		close(s.done)
		if cancel != nil {
			cancel()
		}
		if transport != nil {
			if err := transport.Close(); err != nil {
				s.logger.Printf("realtime transport close: %v", err)
			}
		}
		if audio != nil {
			audio.Stop()
		}
		s.metrics.SessionEvent("disconnected")
		if notify && s.cfg.Callbacks.OnDisconnect != nil {
			s.cfg.Callbacks.OnDisconnect()
		}
	})
	return first
}

func (s *Session) Mute()   { s.setMuted(true) }
func (s *Session) Unmute() { s.setMuted(false) }

func (s *Session) setMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return
	}
	s.audio.SetEnabled(!muted)
	s.muted = muted
}

// SendText adds a user message to the conversation and asks for a response.
// Without an open data channel it logs and sends nothing.
func (s *Session) SendText(text string) {
	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport == nil || !transport.ChannelOpen() {
		s.logger.Printf("realtime data channel not ready, dropping text")
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.writeFrame(transport, TypeConversationItemCreate, userTextFrame(text)); err != nil {
		s.logger.Printf("realtime send text: %v", err)
		return
	}
	if err := s.writeFrame(transport, TypeResponseCreate, responseCreateFrame()); err != nil {
		s.logger.Printf("realtime send response.create: %v", err)
	}
}

func (s *Session) send(eventType string, frame any) error {
	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport == nil || !transport.ChannelOpen() {
		return rtc.ErrChannelNotOpen
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.writeFrame(transport, eventType, frame)
}

func (s *Session) writeFrame(transport rtc.Transport, eventType string, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	if err := transport.Send(payload); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	s.metrics.ObserveFrame("outbound", eventType)
	return nil
}

func (s *Session) enqueue(item inbound) {
	select {
	case s.inbox <- item:
	case <-s.done:
	}
}

func (s *Session) dispatchLoop() {
	for {
		select {
		case <-s.done:
			return
		case item := <-s.inbox:
			select {
			case <-s.done:
				return
			default:
			}
			s.handle(item)
		}
	}
}

func (s *Session) handle(item inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("realtime handler panic: %v", r)
		}
	}()
	switch item.kind {
	case inboundChannelOpen:
		s.metrics.SessionEvent("channel_open")
	case inboundConnState:
		s.handleConnState(item.state)
	case inboundFrame:
		s.handleFrame(item.data)
	}
}

func (s *Session) handleConnState(state rtc.ConnState) {
	switch {
	case state == rtc.ConnConnected:
		s.mu.Lock()
		promote := s.state == StateConnecting
		if promote {
			s.state = StateConnected
		}
		s.mu.Unlock()
		if !promote {
			return
		}
		s.metrics.SessionEvent("connected")
		if s.cfg.Callbacks.OnConnected != nil {
			s.cfg.Callbacks.OnConnected()
		}
	case state.Terminal():
		s.logger.Printf("realtime ice connection %s, ending session", state)
		s.metrics.SessionEvent("transport_" + string(state))
		s.shutdown(true)
	}
}

func (s *Session) handleFrame(data []byte) {
	ev, err := DecodeEvent(data)
	if err != nil {
		s.logger.Printf("realtime dropping frame: %v", err)
		s.metrics.ObserveMalformed()
		return
	}
	s.metrics.ObserveFrame("inbound", ev.EventType())

	cb := s.cfg.Callbacks
	switch e := ev.(type) {
	case SessionCreated:
		s.configure()
	case SessionUpdated:
		if cb.OnSessionReady != nil {
			cb.OnSessionReady()
		}
		s.greet()
	case TextDelta:
		transcript(cb.OnTranscript, e.Text, false)
	case TextDone:
		transcript(cb.OnTranscript, e.Text, true)
	case AudioTranscriptDelta:
		transcript(cb.OnTranscript, e.Delta, false)
	case AudioTranscriptDone:
		transcript(cb.OnTranscript, e.Transcript, true)
	case UserTranscriptionDelta:
		transcript(cb.OnUserTranscript, e.Delta, false)
	case UserTranscriptionCompleted:
		transcript(cb.OnUserTranscript, e.Transcript, true)
	case ServerError:
		retryable := reliability.IsRetryableServerErrorType(e.ErrType)
		s.logger.Printf("realtime server error type=%s code=%s retryable=%v: %s", e.ErrType, e.Code, retryable, e.Message)
		s.metrics.ObserveServerError(e.ErrType, retryable)
	case Unknown:
	}
}

func transcript(fn func(string, bool), text string, final bool) {
	if fn != nil {
		fn(text, final)
	}
}

// configure sends the one session.update of this session.
func (s *Session) configure() {
	if s.configSent {
		s.logger.Printf("realtime duplicate session.created ignored")
		return
	}
	if err := s.send(TypeSessionUpdate, sessionUpdateFrame(s.cfg.SystemPrompt)); err != nil {
		s.logger.Printf("realtime configure session: %v", err)
		return
	}
	s.configSent = true
}

// greet triggers the opening utterance, only after our configuration was
// acknowledged and only once.
func (s *Session) greet() {
	if !s.configSent || s.greetingSent || strings.TrimSpace(s.cfg.InitialGreeting) == "" {
		return
	}
	if err := s.send(TypeResponseCreate, greetingFrame(s.cfg.InitialGreeting)); err != nil {
		s.logger.Printf("realtime send greeting: %v", err)
		return
	}
	s.greetingSent = true
}

type sessionObserver struct {
	s *Session
}

func (o sessionObserver) OnChannelOpen() {
	o.s.enqueue(inbound{kind: inboundChannelOpen})
}

func (o sessionObserver) OnMessage(data []byte) {
	o.s.enqueue(inbound{kind: inboundFrame, data: append([]byte(nil), data...)})
}

func (o sessionObserver) OnConnState(state rtc.ConnState) {
	o.s.enqueue(inbound{kind: inboundConnState, state: state})
}
