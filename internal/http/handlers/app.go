package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/captions"
	"server/internal/domain"
	"server/internal/pipeline"
)

// App carries the wired dependencies of the caller-facing API.
type App struct {
	Log        zerolog.Logger
	Jobs       domain.JobRepository
	Submitter  *pipeline.Submitter
	Reconciler *pipeline.Reconciler
	Generator  *captions.Generator
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorResponse{Error: kind, Message: msg})
}

// Health reports service liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
