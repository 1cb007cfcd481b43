package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/pipeline"
	"server/internal/providers/render"
)

// WebhookHandler is the inbound completion callback endpoint. It is wired
// into its own binary so it can be deployed independently of the API; it
// shares nothing with the API process but the status store.
type WebhookHandler struct {
	Log            zerolog.Logger
	Jobs           domain.JobRepository
	FallbackSecret string
}

type webhookPayload struct {
	UID          string                 `json:"uid"`
	Status       render.Status          `json:"status"`
	ImageURLs    map[string]string      `json:"image_urls,omitempty"`
	Images       []render.RenderedImage `json:"images,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Handle processes one delivery. Duplicate deliveries and races with an
// in-flight poll attempt are no-ops: the conditional transition only ever
// lands once, and both writers carry the same external outcome.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "invalid payload"})
		return
	}

	job, err := h.Jobs.GetByUID(r.Context(), payload.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown job: possibly a record-creation race or a stale
			// delivery. Not retryable from the sender's side.
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_job", "message": "no job for uid"})
			return
		}
		h.Log.Error().Err(err).Str("uid", payload.UID).Msg("webhook: row read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": "store unavailable"})
		return
	}

	if !h.authorized(r, job) {
		h.Log.Warn().Str("uid", payload.UID).Msg("webhook: secret mismatch")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth_mismatch", "message": "bad webhook secret"})
		return
	}

	if job.Phase.Terminal() {
		// Idempotent re-delivery.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	coll := render.Collection{
		UID:          payload.UID,
		Status:       payload.Status,
		ImageURLs:    payload.ImageURLs,
		Images:       payload.Images,
		ErrorMessage: payload.ErrorMessage,
	}
	outcome, terminal := pipeline.OutcomeFromCollection(&coll)
	if !terminal {
		// Progress-only delivery: record it opportunistically.
		if completed, total := coll.CompletedImages(); total > 0 {
			if err := h.Jobs.RecordSubProgress(r.Context(), payload.UID, domain.SubProgress{CompletedUnits: completed, TotalUnits: total}); err != nil {
				h.Log.Warn().Err(err).Str("uid", payload.UID).Msg("webhook: sub-progress write failed")
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	applied, err := pipeline.ApplyTerminal(r.Context(), h.Jobs, payload.UID, outcome)
	if err != nil {
		h.Log.Error().Err(err).Str("uid", payload.UID).Msg("webhook: terminal write failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": "store unavailable"})
		return
	}
	if applied {
		h.Log.Info().Str("uid", payload.UID).Str("phase", string(outcome.Phase)).Msg("webhook: terminal transition applied")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health answers the rendering service's endpoint verification probe.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "webhook receiver running"})
}

// authorized checks the delivery secret in constant time against the job's
// own token and the service-level fallback secret.
func (h *WebhookHandler) authorized(r *http.Request, job *domain.Job) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	token := header[len(prefix):]
	if job.WebhookToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(job.WebhookToken)) == 1 {
		return true
	}
	if h.FallbackSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.FallbackSecret)) == 1 {
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
