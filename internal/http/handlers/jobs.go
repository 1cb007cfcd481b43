package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/pipeline"
	"server/internal/progress"
)

type submitJobRequest struct {
	Kind        domain.JobKind       `json:"kind"`
	TemplateSet string               `json:"template_set"`
	Slots       []pipeline.SlotInput `json:"slots"`
}

type jobView struct {
	UID         string             `json:"uid"`
	Kind        domain.JobKind     `json:"kind"`
	Phase       domain.Phase       `json:"phase"`
	Progress    progress.Snapshot  `json:"progress"`
	Artifacts   []domain.Artifact  `json:"artifacts"`
	Error       *domain.JobError   `json:"error,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func viewOf(job *domain.Job) jobView {
	plan := progress.PlanFor(job.Kind)
	artifacts := job.Artifacts
	if artifacts == nil {
		artifacts = []domain.Artifact{}
	}
	return jobView{
		UID:         job.UID,
		Kind:        job.Kind,
		Phase:       job.Phase,
		Progress:    plan.Snapshot(job),
		Artifacts:   artifacts,
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}

// SubmitJob accepts a batch-rendering submission and returns the job
// identifier without waiting for rendering.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Submitter.Submit(r.Context(), pipeline.SubmitRequest{
		OwnerID:     ownerID,
		Kind:        req.Kind,
		TemplateSet: req.TemplateSet,
		Slots:       req.Slots,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, domain.ErrServiceRejected):
			a.error(w, http.StatusUnprocessableEntity, "render_rejected", err.Error())
		case errors.Is(err, domain.ErrServiceUnavailable):
			a.error(w, http.StatusServiceUnavailable, "render_unavailable", "rendering service unavailable, retry later")
		default:
			a.Log.Error().Err(err).Msg("jobs: submission failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		}
		return
	}
	a.json(w, http.StatusAccepted, viewOf(job))
}

// JobStatus returns the last known-good row. Transient reconciliation
// failures never surface here; a hard failure only ever appears as
// phase=failed with error detail populated.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

type pollJobRequest struct {
	MaxAttempts int `json:"max_attempts"`
	IntervalMS  int `json:"interval_ms"`
}

type pollJobResponse struct {
	TimedOut bool    `json:"timed_out"`
	Job      jobView `json:"job"`
}

// PollJob runs the reconciliation loop as a fallback when the webhook has
// not (yet) arrived. A timeout is a caller-visible signal to stop waiting,
// not a job failure.
func (a *App) PollJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	var req pollJobRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	polled, err := a.Reconciler.Poll(r.Context(), job.UID, pipeline.PollOptions{
		MaxAttempts: req.MaxAttempts,
		Interval:    time.Duration(req.IntervalMS) * time.Millisecond,
	})
	switch {
	case err == nil:
		a.json(w, http.StatusOK, pollJobResponse{TimedOut: false, Job: viewOf(polled)})
	case errors.Is(err, domain.ErrPollTimeout):
		if polled == nil {
			// Every read inside the loop failed; fall back to the row
			// loaded for the ownership check.
			polled = job
		}
		a.json(w, http.StatusOK, pollJobResponse{TimedOut: true, Job: viewOf(polled)})
	case errors.Is(err, r.Context().Err()):
		// Caller went away; nothing useful to write.
	default:
		a.Log.Error().Err(err).Str("uid", job.UID).Msg("jobs: poll failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to poll job")
	}
}

// HoldJob pauses the flow for caller confirmation (testimonial text review,
// tip selection). Driven entirely by caller action.
func (a *App) HoldJob(w http.ResponseWriter, r *http.Request) {
	a.advance(w, r, domain.PhaseAwaitingUserInput)
}

// ConfirmJob resumes a held flow.
func (a *App) ConfirmJob(w http.ResponseWriter, r *http.Request) {
	a.advance(w, r, domain.PhaseFinalizing)
}

func (a *App) advance(w http.ResponseWriter, r *http.Request, next domain.Phase) {
	job, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	applied, err := a.Jobs.AdvancePhase(r.Context(), job.UID, next)
	if err != nil {
		a.Log.Error().Err(err).Str("uid", job.UID).Msg("jobs: phase advance failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update job")
		return
	}
	if !applied {
		a.error(w, http.StatusConflict, "phase_conflict", "job phase does not permit this action")
		return
	}
	updated, err := a.Jobs.GetByUID(r.Context(), job.UID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, viewOf(updated))
}

// ownedJob loads the job named in the URL and scopes it to the caller.
// Another owner's job is indistinguishable from a missing one.
func (a *App) ownedJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "uid required")
		return nil, false
	}
	job, err := a.Jobs.GetByUID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		} else {
			a.Log.Error().Err(err).Str("uid", uid).Msg("jobs: row read failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		}
		return nil, false
	}
	if job.OwnerID != ownerID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	return job, true
}
