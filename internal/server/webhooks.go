package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/zyrolabs/zyro/internal/dedup"
	"github.com/zyrolabs/zyro/internal/webhook"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// handleGitHubWebhook handles POST /v1/webhooks/github.
func (s *ZyroServer) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, dedup.ProviderGitHub)
}

// handleSlackWebhook handles POST /v1/webhooks/slack. Slack's
// url_verification handshake is answered before the pipeline runs;
// everything else goes through signature verification and dedup.
func (s *ZyroServer) handleSlackWebhook(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, dedup.ProviderSlack)
}

func (s *ZyroServer) handleWebhook(w http.ResponseWriter, r *http.Request, provider dedup.Provider) {
	if s.ingestor == nil {
		writeError(w, http.StatusNotFound, "webhooks not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	receipt, err := s.ingestor.Handle(r.Context(), provider, r.Header, body)
	switch {
	case err == nil:
		if provider == dedup.ProviderSlack {
			if challenge := webhook.SlackChallenge(body); challenge != "" {
				writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
				return
			}
		}
		writeJSON(w, http.StatusOK, receipt)
	case errors.Is(err, webhook.ErrDuplicateDelivery):
		// Providers retry until they see 2xx; a replay of an applied
		// delivery is acknowledged without reprocessing.
		writeJSON(w, http.StatusOK, receipt)
	case errors.Is(err, webhook.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, webhook.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, "malformed payload")
	default:
		writeError(w, http.StatusInternalServerError, "failed to process delivery")
	}
}
