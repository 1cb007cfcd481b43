package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/render"
)

// SlotInput supplies content for one named template slot. A required slot
// must resolve to a text value, an image URL, or its declared default.
type SlotInput struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// SubmitRequest describes one batch-rendering submission.
type SubmitRequest struct {
	OwnerID     string
	Kind        domain.JobKind
	TemplateSet string
	Slots       []SlotInput
}

// Submitter validates slot inputs, submits the batch to the rendering
// service and creates the job row. It never waits for rendering.
type Submitter struct {
	jobs       domain.JobRepository
	render     render.Client
	webhookURL string
	log        zerolog.Logger
}

// NewSubmitter wires a submitter. webhookURL is passed through to the
// rendering service so it knows where to deliver completion callbacks; empty
// means poll-only operation.
func NewSubmitter(jobs domain.JobRepository, client render.Client, webhookURL string, log zerolog.Logger) *Submitter {
	return &Submitter{jobs: jobs, render: client, webhookURL: webhookURL, log: log}
}

// Submit sends the batch request and records the job. Exactly one row is
// created per successful submission; no row is created when the rendering
// service refuses or is unreachable.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	mods, err := buildModifications(req)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	coll, err := s.render.CreateCollection(ctx, render.CreateCollectionRequest{
		TemplateSet:   req.TemplateSet,
		Modifications: mods,
		WebhookURL:    s.webhookURL,
		Metadata:      token,
	})
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		UID:          coll.UID,
		OwnerID:      req.OwnerID,
		Kind:         req.Kind,
		Phase:        domain.PhaseSubmitted,
		WebhookToken: token,
	}
	if err := s.createWithRetry(ctx, job); err != nil {
		// The external service has accepted the batch already; without a row
		// the webhook will 404 and the caller must resubmit.
		s.log.Error().Err(err).Str("uid", coll.UID).Msg("submitter: job row creation failed after accept")
		return nil, fmt.Errorf("create job row: %w", err)
	}

	s.log.Info().
		Str("uid", job.UID).
		Str("owner", job.OwnerID).
		Str("kind", string(job.Kind)).
		Int("modifications", len(mods)).
		Msg("submitter: batch accepted")
	return job, nil
}

func (s *Submitter) createWithRetry(ctx context.Context, job *domain.Job) error {
	var lastErr error
	for attempt := 0; attempt < storeRetries; attempt++ {
		if lastErr = s.jobs.Create(ctx, job); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return lastErr
}

// buildModifications resolves slot inputs into the service's modification
// list, rejecting submissions with unresolved required slots.
func buildModifications(req SubmitRequest) ([]render.Modification, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrValidation, req.Kind)
	}
	if strings.TrimSpace(req.TemplateSet) == "" {
		return nil, fmt.Errorf("%w: template_set is required", domain.ErrValidation)
	}
	if len(req.Slots) == 0 {
		return nil, fmt.Errorf("%w: at least one slot is required", domain.ErrValidation)
	}

	var missing []string
	mods := make([]render.Modification, 0, len(req.Slots))
	for _, slot := range req.Slots {
		name := strings.TrimSpace(slot.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: slot with empty name", domain.ErrValidation)
		}
		mod := render.Modification{Name: name}
		switch {
		case slot.ImageURL != "":
			mod.ImageURL = slot.ImageURL
		case slot.Text != "":
			mod.Text = slot.Text
		case slot.Default != "":
			mod.Text = slot.Default
		default:
			if slot.Required {
				missing = append(missing, name)
			}
			continue
		}
		mods = append(mods, mod)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unresolved required slots: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return mods, nil
}
