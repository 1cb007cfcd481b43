package domain

import "testing"

func TestPhaseTerminal(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		phase Phase
		want  bool
	}{
		{PhaseSubmitted, false},
		{PhaseRendering, false},
		{PhaseAwaitingUserInput, false},
		{PhaseFinalizing, false},
		{PhaseCompleted, true},
		{PhaseFailed, true},
	} {
		if got := tc.phase.Terminal(); got != tc.want {
			t.Errorf("Terminal(%s) = %v, want %v", tc.phase, got, tc.want)
		}
	}
}

func TestPhaseCanTransition(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{name: "submitted_to_rendering", from: PhaseSubmitted, to: PhaseRendering, want: true},
		{name: "submitted_to_completed", from: PhaseSubmitted, to: PhaseCompleted, want: true},
		{name: "rendering_to_finalizing", from: PhaseRendering, to: PhaseFinalizing, want: true},
		{name: "rendering_to_awaiting", from: PhaseRendering, to: PhaseAwaitingUserInput, want: true},
		{name: "awaiting_to_finalizing", from: PhaseAwaitingUserInput, to: PhaseFinalizing, want: true},
		{name: "backwards_rendering_to_submitted", from: PhaseRendering, to: PhaseSubmitted, want: false},
		{name: "backwards_finalizing_to_rendering", from: PhaseFinalizing, to: PhaseRendering, want: false},
		{name: "failed_from_any_nonterminal", from: PhaseFinalizing, to: PhaseFailed, want: true},
		{name: "completed_is_immutable", from: PhaseCompleted, to: PhaseFailed, want: false},
		{name: "failed_is_immutable", from: PhaseFailed, to: PhaseCompleted, want: false},
		{name: "self_transition_rejected", from: PhaseRendering, to: PhaseRendering, want: false},
		{name: "unknown_phase_rejected", from: PhaseSubmitted, to: Phase("archived"), want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestPhasesBefore(t *testing.T) {
	t.Parallel()
	got := PhasesBefore(PhaseFinalizing)
	want := []Phase{PhaseSubmitted, PhaseRendering, PhaseAwaitingUserInput}
	if len(got) != len(want) {
		t.Fatalf("PhasesBefore(finalizing) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PhasesBefore(finalizing)[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if ps := PhasesBefore(PhaseFailed); ps != nil {
		t.Fatalf("PhasesBefore(failed) = %v, want nil", ps)
	}
	if ps := PhasesBefore(PhaseSubmitted); len(ps) != 0 {
		t.Fatalf("PhasesBefore(submitted) = %v, want empty", ps)
	}
}

func TestJobKindValid(t *testing.T) {
	t.Parallel()
	for _, kind := range []JobKind{JobKindProperty, JobKindTestimonial, JobKindTip, JobKindCarousel, JobKindVideo} {
		if !kind.Valid() {
			t.Errorf("kind %s should be valid", kind)
		}
	}
	if JobKind("banner").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
