// Package progress maps job phases onto the ordered step sequence a client
// renders. One generic plan type is parameterized by job kind; kind-specific
// step labels are configuration data, not per-kind control flow.
package progress

import "server/internal/domain"

// Step is one UI-facing stage of a generation flow.
type Step struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Plan is the ordered step sequence for one job kind.
type Plan struct {
	Kind  domain.JobKind
	Steps []Step

	phaseIndex map[domain.Phase]int
}

// Snapshot is what the status API exposes so a client can render step
// indicators without re-deriving pipeline logic. StepIndex is -1 for failed
// jobs, which have no meaningful position in the forward sequence.
type Snapshot struct {
	StepIndex   int                 `json:"step_index"`
	StepCount   int                 `json:"step_count"`
	StepKey     string              `json:"step_key"`
	StepLabel   string              `json:"step_label"`
	SubProgress *domain.SubProgress `json:"sub_progress,omitempty"`
}

// phasesFor returns the phases a kind passes through, in order. Testimonial
// and tip flows pause for the caller to confirm extracted text or pick a tip;
// the other kinds run straight through.
func phasesFor(kind domain.JobKind) []domain.Phase {
	switch kind {
	case domain.JobKindTestimonial, domain.JobKindTip:
		return []domain.Phase{
			domain.PhaseSubmitted,
			domain.PhaseRendering,
			domain.PhaseAwaitingUserInput,
			domain.PhaseFinalizing,
			domain.PhaseCompleted,
		}
	default:
		return []domain.Phase{
			domain.PhaseSubmitted,
			domain.PhaseRendering,
			domain.PhaseFinalizing,
			domain.PhaseCompleted,
		}
	}
}

// stepLabels carries the per-kind display labels keyed by phase. Kinds not
// listed here fall back to the property labels.
var stepLabels = map[domain.JobKind]map[domain.Phase]Step{
	domain.JobKindProperty: {
		domain.PhaseSubmitted:  {Key: "submitting", Label: "Submitting Designs"},
		domain.PhaseRendering:  {Key: "generating_images", Label: "Generating Images"},
		domain.PhaseFinalizing: {Key: "finalizing", Label: "Finalizing Designs"},
		domain.PhaseCompleted:  {Key: "done", Label: "Done"},
	},
	domain.JobKindTestimonial: {
		domain.PhaseSubmitted:         {Key: "submitting", Label: "Preparing Testimonial"},
		domain.PhaseRendering:         {Key: "generating_images", Label: "Generating Designs"},
		domain.PhaseAwaitingUserInput: {Key: "confirm_text", Label: "Confirm Testimonial Text"},
		domain.PhaseFinalizing:        {Key: "finalizing", Label: "Finalizing Designs"},
		domain.PhaseCompleted:         {Key: "done", Label: "Done"},
	},
	domain.JobKindTip: {
		domain.PhaseSubmitted:         {Key: "fetching_tips", Label: "Finding Tips"},
		domain.PhaseRendering:         {Key: "generating_image", Label: "Generating Image"},
		domain.PhaseAwaitingUserInput: {Key: "selecting_tip", Label: "Select Tip"},
		domain.PhaseFinalizing:        {Key: "finalizing", Label: "Finalizing Design"},
		domain.PhaseCompleted:         {Key: "done", Label: "Done"},
	},
	domain.JobKindCarousel: {
		domain.PhaseSubmitted:  {Key: "submitting", Label: "Preparing Slides"},
		domain.PhaseRendering:  {Key: "generating_slides", Label: "Generating Slides"},
		domain.PhaseFinalizing: {Key: "finalizing", Label: "Assembling Carousel"},
		domain.PhaseCompleted:  {Key: "done", Label: "Done"},
	},
	domain.JobKindVideo: {
		domain.PhaseSubmitted:  {Key: "submitting", Label: "Preparing Video"},
		domain.PhaseRendering:  {Key: "rendering_video", Label: "Rendering Video"},
		domain.PhaseFinalizing: {Key: "finalizing", Label: "Finalizing Video"},
		domain.PhaseCompleted:  {Key: "done", Label: "Done"},
	},
}

// PlanFor builds the step plan for a job kind.
func PlanFor(kind domain.JobKind) Plan {
	labels, ok := stepLabels[kind]
	if !ok {
		labels = stepLabels[domain.JobKindProperty]
	}
	phases := phasesFor(kind)
	plan := Plan{
		Kind:       kind,
		Steps:      make([]Step, 0, len(phases)),
		phaseIndex: make(map[domain.Phase]int, len(phases)),
	}
	for i, phase := range phases {
		step, ok := labels[phase]
		if !ok {
			step = Step{Key: string(phase), Label: string(phase)}
		}
		plan.Steps = append(plan.Steps, step)
		plan.phaseIndex[phase] = i
	}
	return plan
}

// StepIndex maps a phase to its position in the plan. Failed returns -1.
// Phases a kind skips (awaiting_user_input for straight-through flows) map to
// the nearest earlier step so a stale client never sees an out-of-range index.
func (p Plan) StepIndex(phase domain.Phase) int {
	if phase == domain.PhaseFailed {
		return -1
	}
	if i, ok := p.phaseIndex[phase]; ok {
		return i
	}
	best := 0
	for known, i := range p.phaseIndex {
		if known.CanTransition(phase) && i > best {
			best = i
		}
	}
	return best
}

// Snapshot projects a job row into the UI-facing progress view.
func (p Plan) Snapshot(job *domain.Job) Snapshot {
	idx := p.StepIndex(job.Phase)
	snap := Snapshot{
		StepIndex: idx,
		StepCount: len(p.Steps),
	}
	if idx >= 0 && idx < len(p.Steps) {
		snap.StepKey = p.Steps[idx].Key
		snap.StepLabel = p.Steps[idx].Label
	} else {
		snap.StepKey = "failed"
		snap.StepLabel = "Failed"
	}
	if job.Phase == domain.PhaseRendering {
		snap.SubProgress = job.SubProgress
	}
	return snap
}
