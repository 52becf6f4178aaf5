package rtc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	DefaultSTUNURL       = "stun:stun.l.google.com:19302"
	DefaultGatherTimeout = 10 * time.Second
	EventsChannelLabel   = "oai-events"
)

var (
	ErrGatheringTimeout = errors.New("ice gathering timed out")
	ErrChannelNotOpen   = errors.New("data channel not open")
	ErrTransportClosed  = errors.New("transport closed")
)

// ConnState mirrors the ICE connection states a session cares about.
type ConnState string

const (
	ConnChecking     ConnState = "checking"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnFailed       ConnState = "failed"
	ConnClosed       ConnState = "closed"
	ConnOther        ConnState = "other"
)

// Terminal reports whether the state ends a session.
func (s ConnState) Terminal() bool {
	return s == ConnDisconnected || s == ConnFailed || s == ConnClosed
}

// Observer receives transport notifications in delivery order.
type Observer interface {
	OnChannelOpen()
	OnMessage(data []byte)
	OnConnState(state ConnState)
}

// Transport is one peer connection carrying an audio stream and the events
// data channel.
type Transport interface {
	Open(ctx context.Context, audio LocalAudio) (string, error)
	ApplyAnswer(sdp string) error
	Send(frame []byte) error
	ChannelOpen() bool
	Close() error
}

// Speaker is the playback sink for the remote audio track.
type Speaker interface {
	Attach(track *webrtc.TrackRemote)
	Detach()
}

type PeerConfig struct {
	STUNURL       string
	GatherTimeout time.Duration
	Speaker       Speaker
}

// PeerTransport implements Transport on a pion peer connection.
type PeerTransport struct {
	cfg      PeerConfig
	observer Observer

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	audio  LocalAudio
	closed bool
}

func NewPeerTransport(cfg PeerConfig, observer Observer) *PeerTransport {
	if strings.TrimSpace(cfg.STUNURL) == "" {
		cfg.STUNURL = DefaultSTUNURL
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = DefaultGatherTimeout
	}
	if cfg.Speaker == nil {
		cfg.Speaker = &DiscardSpeaker{}
	}
	return &PeerTransport{cfg: cfg, observer: observer}
}

func (t *PeerTransport) Open(ctx context.Context, audio LocalAudio) (string, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{t.cfg.STUNURL}}},
	})
	if err != nil {
		return "", fmt.Errorf("create peer connection: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = pc.Close()
		return "", ErrTransportClosed
	}
	t.pc = pc
	t.audio = audio
	t.mu.Unlock()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			t.cfg.Speaker.Attach(track)
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		t.observer.OnConnState(connStateOf(state))
	})

	if audio != nil {
		if _, err := pc.AddTrack(audio.Track()); err != nil {
			return "", fmt.Errorf("add audio track: %w", err)
		}
	}

	dc, err := pc.CreateDataChannel(EventsChannelLabel, nil)
	if err != nil {
		return "", fmt.Errorf("create data channel: %w", err)
	}
	dc.OnOpen(t.observer.OnChannelOpen)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.observer.OnMessage(msg.Data)
	})
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	timer := time.NewTimer(t.cfg.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		return "", ErrGatheringTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}

	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("local description missing after gathering")
	}
	return local.SDP, nil
}

func (t *PeerTransport) ApplyAnswer(sdp string) error {
	t.mu.Lock()
	pc := t.pc
	closed := t.closed
	t.mu.Unlock()
	if closed || pc == nil {
		return ErrTransportClosed
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (t *PeerTransport) Send(frame []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return dc.SendText(string(frame))
}

func (t *PeerTransport) ChannelOpen() bool {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	return dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Close releases the audio, data channel and peer connection. Safe to call
// more than once.
func (t *PeerTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	pc, dc, audio := t.pc, t.dc, t.audio
	t.pc, t.dc, t.audio = nil, nil, nil
	t.mu.Unlock()

	if audio != nil {
		audio.Stop()
	}
	var errs []error
	if dc != nil {
		if err := dc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data channel: %w", err))
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close peer connection: %w", err))
		}
	}
	t.cfg.Speaker.Detach()
	return errors.Join(errs...)
}

func connStateOf(s webrtc.ICEConnectionState) ConnState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return ConnChecking
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return ConnConnected
	case webrtc.ICEConnectionStateDisconnected:
		return ConnDisconnected
	case webrtc.ICEConnectionStateFailed:
		return ConnFailed
	case webrtc.ICEConnectionStateClosed:
		return ConnClosed
	default:
		return ConnOther
	}
}
