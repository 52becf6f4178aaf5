package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// DiscardSpeaker drains the remote audio track without playing it. Pion keeps
// buffering RTP for tracks nobody reads, so a headless session still needs a
// reader attached.
type DiscardSpeaker struct {
	mu      sync.Mutex
	tracks  int
	stopped bool
}

func (s *DiscardSpeaker) Attach(track *webrtc.TrackRemote) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.tracks++
	s.mu.Unlock()

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
		}
	}()
}

func (s *DiscardSpeaker) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Attached reports how many remote tracks were handed to the speaker.
func (s *DiscardSpeaker) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}
