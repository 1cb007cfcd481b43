package domain

import "time"

// JobKind enumerates supported content generation flows.
type JobKind string

const (
	JobKindProperty    JobKind = "property"
	JobKindTestimonial JobKind = "testimonial"
	JobKindTip         JobKind = "tip"
	JobKindCarousel    JobKind = "carousel"
	JobKindVideo       JobKind = "video"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindProperty, JobKindTestimonial, JobKindTip, JobKindCarousel, JobKindVideo:
		return true
	}
	return false
}

// Phase enumerates job lifecycle states in strict forward order.
type Phase string

const (
	PhaseSubmitted         Phase = "submitted"
	PhaseRendering         Phase = "rendering"
	PhaseAwaitingUserInput Phase = "awaiting_user_input"
	PhaseFinalizing        Phase = "finalizing"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// phaseRank orders the forward progression. failed is reachable from any
// non-terminal phase and carries no rank of its own.
var phaseRank = map[Phase]int{
	PhaseSubmitted:         0,
	PhaseRendering:         1,
	PhaseAwaitingUserInput: 2,
	PhaseFinalizing:        3,
	PhaseCompleted:         4,
}

// Terminal reports whether no further transitions are permitted from p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// CanTransition reports whether a row currently in p may move to next.
// Terminal phases are immutable; failed is a side-transition from any
// non-terminal phase; everything else must move strictly forward.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	from, ok := phaseRank[p]
	if !ok {
		return false
	}
	to, ok := phaseRank[next]
	if !ok {
		return false
	}
	return to > from
}

// PhasesBefore lists the non-terminal phases a row may occupy immediately
// before moving to next, ordered by rank. Used to build conditional updates.
func PhasesBefore(next Phase) []Phase {
	to, ok := phaseRank[next]
	if !ok {
		return nil
	}
	ordered := []Phase{PhaseSubmitted, PhaseRendering, PhaseAwaitingUserInput, PhaseFinalizing}
	var out []Phase
	for _, p := range ordered {
		if phaseRank[p] < to {
			out = append(out, p)
		}
	}
	return out
}

// SubProgress tracks partial batch completion while rendering.
type SubProgress struct {
	CompletedUnits int `json:"completed_units"`
	TotalUnits     int `json:"total_units"`
}

// Artifact is a single rendered output tied to a named template slot.
type Artifact struct {
	SlotName string `json:"slot_name"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type,omitempty"`
}

// JobError is the structured failure detail persisted on failed rows.
type JobError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Job tracks one batch-rendering request through its lifecycle. The UID is
// assigned by the rendering service when submission succeeds and keys the row.
type Job struct {
	UID          string
	OwnerID      string
	Kind         JobKind
	Phase        Phase
	SubProgress  *SubProgress
	Artifacts    []Artifact
	Error        *JobError
	WebhookToken string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

// TerminalOutcome is the externally reported end state both completion paths
// (webhook and poller) reduce to before writing.
type TerminalOutcome struct {
	Phase     Phase
	Artifacts []Artifact
	Error     *JobError
}
