package rtc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// ErrAudioStopped is returned when writing to a stopped local track.
var ErrAudioStopped = errors.New("local audio stopped")

// LocalAudio is the outbound audio track of a session. Disabling it gates the
// samples; the track itself stays attached to the peer connection.
type LocalAudio interface {
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Enabled() bool
	Stop()
}

// Microphone yields the local audio for one session.
type Microphone interface {
	Acquire(ctx context.Context) (LocalAudio, error)
}

// SampleTrack wraps an Opus sample track with an enable gate.
type SampleTrack struct {
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	once    sync.Once
}

func NewSampleTrack(streamID string) (*SampleTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		streamID,
	)
	if err != nil {
		return nil, err
	}
	t := &SampleTrack{track: track, stopCh: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *SampleTrack) Track() webrtc.TrackLocal { return t.track }

func (t *SampleTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *SampleTrack) Enabled() bool { return t.enabled.Load() }

// WriteSample forwards one encoded sample unless the track is muted.
func (t *SampleTrack) WriteSample(s media.Sample) error {
	if t.stopped.Load() {
		return ErrAudioStopped
	}
	if !t.enabled.Load() {
		return nil
	}
	return t.track.WriteSample(s)
}

func (t *SampleTrack) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stopCh)
	})
}

// Done is closed once the track is stopped.
func (t *SampleTrack) Done() <-chan struct{} { return t.stopCh }

// opusSilence is a single 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// SilenceMicrophone feeds Opus silence into a fresh track. Headless sessions
// use it so the remote VAD sees a live but quiet input.
type SilenceMicrophone struct {
	StreamID string
}

func (m SilenceMicrophone) Acquire(_ context.Context) (LocalAudio, error) {
	streamID := m.StreamID
	if streamID == "" {
		streamID = "adbuddy"
	}
	t, err := NewSampleTrack(streamID)
	if err != nil {
		return nil, err
	}
	go pumpSilence(t)
	return t, nil
}

func pumpSilence(t *SampleTrack) {
	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame}); errors.Is(err, ErrAudioStopped) {
				return
			}
		}
	}
}
