package app

import (
	"context"
	"fmt"
	"log"

	"github.com/ssd39/adbuddy-voice/internal/config"
	"github.com/ssd39/adbuddy-voice/internal/httpapi"
	"github.com/ssd39/adbuddy-voice/internal/memory"
	"github.com/ssd39/adbuddy-voice/internal/observability"
	"github.com/ssd39/adbuddy-voice/internal/session"
	"github.com/ssd39/adbuddy-voice/internal/voice"
)

type RealtimeInfo struct {
	Provider string
	Detail   string
	Voice    string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *voice.Orchestrator
	Transcripts  memory.Store
	Metrics      *observability.Metrics
	Realtime     RealtimeInfo

	// Cleanup releases the transcript store.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	transcripts, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	setup := resolveRealtimeProvider(cfg)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	orchestrator := voice.NewOrchestrator(voice.OrchestratorConfig{
		Sessions:     sessions,
		Memory:       transcripts,
		Negotiator:   setup.negotiator,
		NewTransport: setup.newTransport,
		Metrics:      metrics,
		DefaultVoice: cfg.SessionVoice,
	})
	sessions.SetExpireHook(func(s *session.Session) {
		metrics.SessionEvent("expired")
		if orchestrator.EndSession(s.ID) {
			log.Printf("session expired session_id=%s", s.ID)
		}
	})

	api := httpapi.New(cfg, sessions, orchestrator, setup.minter, transcripts, metrics)

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Transcripts:  transcripts,
		Metrics:      metrics,
		Realtime: RealtimeInfo{
			Provider: setup.provider,
			Detail:   setup.detail,
			Voice:    cfg.SessionVoice,
		},
		Cleanup: transcripts.Close,
	}, nil
}
