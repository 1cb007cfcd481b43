package pipeline

import (
	"context"
	"errors"
	"mime"
	"net/url"
	"path"
	"sort"
	"time"

	"server/internal/domain"
	"server/internal/providers/render"
)

// storeRetries bounds the internal retry of the row write. The conditional
// terminal write is the invariant-preserving operation, so transient store
// errors are retried here instead of surfacing to the delivery path.
const (
	storeRetries    = 3
	storeRetryDelay = 100 * time.Millisecond
)

// OutcomeFromCollection reduces a collection report to a terminal outcome.
// The second return is false while the collection is still pending. Both the
// webhook receiver and the poller apply outcomes through this single mapping,
// which is what makes their concurrent writes commutative: the same external
// report always reduces to the same row state.
func OutcomeFromCollection(coll *render.Collection) (domain.TerminalOutcome, bool) {
	switch coll.Status {
	case render.StatusCompleted:
		return domain.TerminalOutcome{
			Phase:     domain.PhaseCompleted,
			Artifacts: artifactsFromCollection(coll),
		}, true
	case render.StatusFailed:
		msg := coll.ErrorMessage
		if msg == "" {
			msg = "rendering failed"
		}
		return domain.TerminalOutcome{
			Phase: domain.PhaseFailed,
			Error: &domain.JobError{Kind: "render_failed", Message: msg},
		}, true
	default:
		return domain.TerminalOutcome{}, false
	}
}

// ApplyTerminal performs the conditional terminal write with a small bounded
// retry on store errors. Returns whether this writer won the transition;
// false with nil error means another writer already landed a terminal state.
func ApplyTerminal(ctx context.Context, jobs domain.JobRepository, uid string, outcome domain.TerminalOutcome) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < storeRetries; attempt++ {
		applied, err := jobs.TransitionTerminal(ctx, uid, outcome)
		if err == nil {
			return applied, nil
		}
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPhaseConflict) {
			return false, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(storeRetryDelay):
		}
	}
	return false, lastErr
}

func artifactsFromCollection(coll *render.Collection) []domain.Artifact {
	if len(coll.Images) > 0 {
		artifacts := make([]domain.Artifact, 0, len(coll.Images))
		for _, img := range coll.Images {
			artifacts = append(artifacts, domain.Artifact{
				SlotName: img.TemplateName,
				URL:      img.ImageURL,
				MIMEType: mimeTypeForURL(img.ImageURL),
			})
		}
		return artifacts
	}
	names := make([]string, 0, len(coll.ImageURLs))
	for name := range coll.ImageURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	artifacts := make([]domain.Artifact, 0, len(names))
	for _, name := range names {
		artifacts = append(artifacts, domain.Artifact{
			SlotName: name,
			URL:      coll.ImageURLs[name],
			MIMEType: mimeTypeForURL(coll.ImageURLs[name]),
		})
	}
	return artifacts
}

func mimeTypeForURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return mime.TypeByExtension(path.Ext(u.Path))
}
