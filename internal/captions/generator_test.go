package captions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/providers/caption"
)

// fakeModel scripts completions and records every request it receives.
type fakeModel struct {
	responses []string
	err       error
	requests  []caption.CompletionRequest
}

func (f *fakeModel) Complete(ctx context.Context, req caption.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func listingRequest() Request {
	return Request{
		OwnerID:  "owner-1",
		Category: "New Listing",
		Brief: Brief{
			Platform: "instagram",
			Fields:   map[string]string{"address": "12 Elm Road", "price": "£450,000"},
		},
	}
}

func TestGenerateAppendsHistory(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	model := &fakeModel{responses: []string{`{"heading":"Sunlit Corner Flat","body":"Bright rooms on a quiet street."}`}}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	result, err := gen.Generate(context.Background(), listingRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Heading != "Sunlit Corner Flat" {
		t.Fatalf("heading = %q", result.Heading)
	}

	entries, err := store.ListRecent(context.Background(), "owner-1", "New Listing", 10)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(entries) != 1 || entries[0] != "Sunlit Corner Flat|Bright rooms on a quiet street." {
		t.Fatalf("history = %v", entries)
	}
}

func TestGenerateFeedsHistoryIntoPrompt(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	if err := store.Append(context.Background(), "owner-1", "New Listing", "Old Heading|old body text", 10); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	model := &fakeModel{responses: []string{`{"heading":"Fresh Heading","body":"fresh body"}`}}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	if _, err := gen.Generate(context.Background(), listingRequest()); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	prompt := model.requests[0].User
	if !strings.Contains(prompt, "Old Heading - old body text") {
		t.Fatalf("prompt missing avoid entry:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Avoid repeating") {
		t.Fatalf("prompt missing avoid instruction:\n%s", prompt)
	}
	if model.requests[0].Temperature != defaultTemperature {
		t.Fatalf("temperature = %v, want %v", model.requests[0].Temperature, defaultTemperature)
	}
}

func TestGenerateForceUnique(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	model := &fakeModel{responses: []string{`{"heading":"Entirely New","body":"entirely new body"}`}}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	req := listingRequest()
	req.ForceUnique = true
	req.SessionAvoid = []string{"Session Heading|seen seconds ago"}
	if _, err := gen.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	got := model.requests[0]
	if got.Temperature != forceUniqueTemperature {
		t.Fatalf("temperature = %v, want %v", got.Temperature, forceUniqueTemperature)
	}
	if !strings.Contains(got.User, "Session Heading - seen seconds ago") {
		t.Fatalf("prompt missing session avoid entry:\n%s", got.User)
	}
	if !strings.Contains(got.User, "CRITICAL") {
		t.Fatalf("prompt missing regeneration instruction:\n%s", got.User)
	}
}

// Five regenerations in one session: every attempt must carry all previously
// produced outputs in its avoid list, so the model is never asked blind.
func TestRegenerationSessionAccumulatesAvoidList(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	responses := make([]string, 5)
	for i := range responses {
		responses[i] = fmt.Sprintf(`{"heading":"Take %d","body":"body %d"}`, i+1, i+1)
	}
	model := &fakeModel{responses: responses}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	var session []string
	for i := 0; i < 5; i++ {
		req := listingRequest()
		req.ForceUnique = true
		req.SessionAvoid = append([]string(nil), session...)
		result, err := gen.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("regeneration %d returned error: %v", i+1, err)
		}
		session = append(session, result.Heading+"|"+result.Body)
	}

	last := model.requests[4].User
	for i := 1; i <= 4; i++ {
		if !strings.Contains(last, fmt.Sprintf("Take %d", i)) {
			t.Fatalf("final prompt missing earlier output %d:\n%s", i, last)
		}
	}
}

func TestGenerateFormatErrorLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	model := &fakeModel{responses: []string{`this is not json`}}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	_, err := gen.Generate(context.Background(), listingRequest())
	if !errors.Is(err, domain.ErrGenerationFormat) {
		t.Fatalf("err = %v, want ErrGenerationFormat", err)
	}
	entries, _ := store.ListRecent(context.Background(), "owner-1", "New Listing", 10)
	if len(entries) != 0 {
		t.Fatalf("history = %v, want empty after format error", entries)
	}
}

func TestGenerateStripsCodeFence(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	model := &fakeModel{responses: []string{
		"```json\n{\"heading\":\"Fenced Heading\",\"body\":\"fenced body\"}\n```",
	}}
	gen := NewGenerator(model, store, 10, zerolog.Nop())

	result, err := gen.Generate(context.Background(), listingRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Heading != "Fenced Heading" {
		t.Fatalf("heading = %q", result.Heading)
	}
}

func TestTipHeadingShape(t *testing.T) {
	t.Parallel()
	tipRequest := func() Request {
		return Request{
			OwnerID:  "owner-1",
			Category: "Mortgage Tip",
			Brief:    Brief{Fields: map[string]string{"audience": "first-time buyers"}},
		}
	}

	t.Run("long_heading_trimmed_and_uppercased", func(t *testing.T) {
		t.Parallel()
		model := &fakeModel{responses: []string{`{"heading":"compare mortgage rates early and often","body":"Shop around before committing."}`}}
		gen := NewGenerator(model, repo.NewMemoryStore(), 10, zerolog.Nop())
		result, err := gen.Generate(context.Background(), tipRequest())
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if result.Heading != "COMPARE MORTGAGE RATES" {
			t.Fatalf("heading = %q, want COMPARE MORTGAGE RATES", result.Heading)
		}
	})

	t.Run("short_heading_is_format_error", func(t *testing.T) {
		t.Parallel()
		store := repo.NewMemoryStore()
		model := &fakeModel{responses: []string{`{"heading":"Rate tips","body":"Shop around."}`}}
		gen := NewGenerator(model, store, 10, zerolog.Nop())
		_, err := gen.Generate(context.Background(), tipRequest())
		if !errors.Is(err, domain.ErrGenerationFormat) {
			t.Fatalf("err = %v, want ErrGenerationFormat", err)
		}
		entries, _ := store.ListRecent(context.Background(), "owner-1", "Mortgage Tip", 10)
		if len(entries) != 0 {
			t.Fatal("rejected heading must not be appended to history")
		}
	})

	t.Run("exact_heading_passes_through", func(t *testing.T) {
		t.Parallel()
		model := &fakeModel{responses: []string{`{"heading":"CHECK CREDIT SCORE","body":"Lenders look at it first."}`}}
		gen := NewGenerator(model, repo.NewMemoryStore(), 10, zerolog.Nop())
		result, err := gen.Generate(context.Background(), tipRequest())
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if result.Heading != "CHECK CREDIT SCORE" {
			t.Fatalf("heading = %q", result.Heading)
		}
	})
}

// failingHistory always errors; generation must still succeed with dedup off.
type failingHistory struct{}

func (failingHistory) ListRecent(ctx context.Context, ownerID, category string, limit int) ([]string, error) {
	return nil, errors.New("history store down")
}

func (failingHistory) Append(ctx context.Context, ownerID, category, entry string, window int) error {
	return errors.New("history store down")
}

func TestGenerateSurvivesHistoryFailure(t *testing.T) {
	t.Parallel()
	model := &fakeModel{responses: []string{`{"heading":"Still Works Fine","body":"history is advisory"}`}}
	gen := NewGenerator(model, failingHistory{}, 10, zerolog.Nop())

	result, err := gen.Generate(context.Background(), listingRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Heading == "" {
		t.Fatal("expected a result despite history failure")
	}
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(&fakeModel{responses: []string{"{}"}}, repo.NewMemoryStore(), 10, zerolog.Nop())
	cases := []Request{
		{Category: "New Listing", Brief: Brief{Fields: map[string]string{"a": "b"}}},
		{OwnerID: "owner-1", Brief: Brief{Fields: map[string]string{"a": "b"}}},
		{OwnerID: "owner-1", Category: "New Listing"},
	}
	for i, req := range cases {
		if _, err := gen.Generate(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
}

func TestGenerateModelTimeoutPassesThrough(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(&fakeModel{err: domain.ErrGenerationTimeout}, repo.NewMemoryStore(), 10, zerolog.Nop())
	_, err := gen.Generate(context.Background(), listingRequest())
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Fatalf("err = %v, want ErrGenerationTimeout", err)
	}
}
