package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/captions"
	"server/internal/domain"
	"server/internal/middleware"
)

type generateCaptionRequest struct {
	Category     string            `json:"category"`
	Platform     string            `json:"platform,omitempty"`
	Brief        map[string]string `json:"brief"`
	ForceUnique  bool              `json:"force_unique,omitempty"`
	SessionAvoid []string          `json:"session_avoid,omitempty"`
}

type generateCaptionResponse struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GenerateCaption produces history-aware marketing copy for the caller.
func (a *App) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateCaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	result, err := a.Generator.Generate(r.Context(), captions.Request{
		OwnerID:      ownerID,
		Category:     req.Category,
		Brief:        captions.Brief{Platform: req.Platform, Fields: req.Brief},
		ForceUnique:  req.ForceUnique,
		SessionAvoid: req.SessionAvoid,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, domain.ErrGenerationFormat):
			a.error(w, http.StatusBadGateway, "generation_format", "model returned an unusable response, retry")
		case errors.Is(err, domain.ErrGenerationTimeout):
			a.error(w, http.StatusGatewayTimeout, "generation_timeout", "text generation timed out, retry")
		default:
			a.Log.Error().Err(err).Msg("captions: generation failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to generate caption")
		}
		return
	}
	a.json(w, http.StatusOK, generateCaptionResponse{Heading: result.Heading, Body: result.Body})
}
