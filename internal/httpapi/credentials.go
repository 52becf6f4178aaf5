package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ssd39/adbuddy-voice/internal/openai"
)

// handleMintRealtimeSession returns the upstream realtime session JSON, which
// carries the ephemeral client_secret a browser or CLI uses for the SDP
// exchange.
func (s *Server) handleMintRealtimeSession(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}
	if s.minter == nil || !s.minter.Configured() {
		respondError(w, http.StatusInternalServerError, "openai_not_configured", openai.ErrMissingAPIKey.Error())
		return
	}

	var req openai.SessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = s.cfg.CredentialVoice
	}

	body, err := s.minter.Mint(r.Context(), voice)
	if err != nil {
		s.metrics.SessionEvent("mint_failed")
		respondError(w, http.StatusInternalServerError, "realtime_session_failed", "failed to create realtime session: "+err.Error())
		return
	}
	s.metrics.SessionEvent("minted")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.APIToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && strings.TrimSpace(token) == s.cfg.APIToken
}
