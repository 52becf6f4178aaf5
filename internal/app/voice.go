package app

import (
	"fmt"

	"github.com/ssd39/adbuddy-voice/internal/config"
	"github.com/ssd39/adbuddy-voice/internal/openai"
	"github.com/ssd39/adbuddy-voice/internal/realtime"
	"github.com/ssd39/adbuddy-voice/internal/rtc"
	"github.com/ssd39/adbuddy-voice/internal/voice"
)

type realtimeSetup struct {
	minter       *openai.SessionMinter
	negotiator   realtime.Negotiator
	newTransport realtime.TransportFactory
	provider     string
	detail       string
}

// resolveRealtimeProvider picks OpenAI over WebRTC when an API key is present
// and the in-process mock otherwise.
func resolveRealtimeProvider(cfg config.Config) realtimeSetup {
	minter := openai.NewSessionMinter(openai.MinterConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIRealtimeModel,
		MaxRetries: cfg.MintMaxRetries,
	})
	if !minter.Configured() {
		return realtimeSetup{
			minter:       minter,
			negotiator:   voice.MockNegotiator{},
			newTransport: voice.NewMockTransportFactory(),
			provider:     "mock",
			detail:       "mock (OPENAI_API_KEY not set)",
		}
	}

	peerCfg := rtc.PeerConfig{STUNURL: cfg.STUNURL, GatherTimeout: cfg.ICEGatherTimeout}
	return realtimeSetup{
		minter: minter,
		negotiator: openai.NewNegotiator(openai.NegotiatorConfig{
			RealtimeURL: cfg.OpenAIRealtimeURL,
			Model:       cfg.OpenAIRealtimeModel,
			Credentials: minter,
		}),
		newTransport: func(obs rtc.Observer) rtc.Transport {
			return rtc.NewPeerTransport(peerCfg, obs)
		},
		provider: "openai",
		detail:   fmt.Sprintf("openai webrtc model=%s stun=%s", cfg.OpenAIRealtimeModel, cfg.STUNURL),
	}
}
