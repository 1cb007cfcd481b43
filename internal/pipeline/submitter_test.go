package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/providers/render"
)

// stubRenderClient scripts the rendering service for one test.
type stubRenderClient struct {
	createFn func(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error)
	getFn    func(ctx context.Context, uid string) (*render.Collection, error)
	getCalls int
}

func (s *stubRenderClient) CreateCollection(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error) {
	return s.createFn(ctx, req)
}

func (s *stubRenderClient) GetCollection(ctx context.Context, uid string) (*render.Collection, error) {
	s.getCalls++
	return s.getFn(ctx, uid)
}

func acceptingClient(uid string) *stubRenderClient {
	return &stubRenderClient{
		createFn: func(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error) {
			return &render.Collection{UID: uid, Status: render.StatusPending}, nil
		},
	}
}

func TestSubmitCreatesExactlyOneRow(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	var captured render.CreateCollectionRequest
	client := &stubRenderClient{
		createFn: func(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error) {
			captured = req
			return &render.Collection{UID: "abc123", Status: render.StatusPending}, nil
		},
	}
	sub := NewSubmitter(store, client, "https://hooks.test/webhook", zerolog.Nop())

	job, err := sub.Submit(context.Background(), SubmitRequest{
		OwnerID:     "owner-1",
		Kind:        domain.JobKindProperty,
		TemplateSet: "setA",
		Slots: []SlotInput{
			{Name: "property_price", Text: "£450,000"},
			{Name: "agent_name", Default: "Your Local Agent"},
			{Name: "property_image", ImageURL: "https://img.test/1.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if job.UID != "abc123" || job.Phase != domain.PhaseSubmitted {
		t.Fatalf("job = %+v", job)
	}
	if job.WebhookToken == "" {
		t.Fatal("job should carry a webhook token")
	}

	if captured.WebhookURL != "https://hooks.test/webhook" {
		t.Fatalf("webhook_url = %q", captured.WebhookURL)
	}
	if len(captured.Modifications) != 3 {
		t.Fatalf("modifications = %d, want 3", len(captured.Modifications))
	}
	if captured.Modifications[1].Text != "Your Local Agent" {
		t.Fatalf("default not applied: %+v", captured.Modifications[1])
	}

	stored, err := store.GetByUID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("row not created: %v", err)
	}
	if stored.WebhookToken != job.WebhookToken {
		t.Fatal("stored token differs from returned token")
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		req     SubmitRequest
		wantMsg string
	}{
		{
			name:    "unknown_kind",
			req:     SubmitRequest{Kind: "banner", TemplateSet: "setA", Slots: []SlotInput{{Name: "x", Text: "y"}}},
			wantMsg: "unknown kind",
		},
		{
			name:    "missing_template_set",
			req:     SubmitRequest{Kind: domain.JobKindProperty, Slots: []SlotInput{{Name: "x", Text: "y"}}},
			wantMsg: "template_set",
		},
		{
			name:    "no_slots",
			req:     SubmitRequest{Kind: domain.JobKindProperty, TemplateSet: "setA"},
			wantMsg: "at least one slot",
		},
		{
			name: "unresolved_required_slots",
			req: SubmitRequest{
				Kind:        domain.JobKindProperty,
				TemplateSet: "setA",
				Slots: []SlotInput{
					{Name: "property_price", Required: true},
					{Name: "agent_photo", Required: true},
					{Name: "footer", Text: "ok"},
				},
			},
			wantMsg: "property_price, agent_photo",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := repo.NewMemoryStore()
			client := acceptingClient("abc123")
			sub := NewSubmitter(store, client, "", zerolog.Nop())

			_, err := sub.Submit(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("err = %q, want mention of %q", err, tc.wantMsg)
			}
			if _, err := store.GetByUID(context.Background(), "abc123"); err != domain.ErrNotFound {
				t.Fatal("validation failure must not create a row")
			}
		})
	}
}

func TestSubmitOptionalEmptySlotIsSkipped(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	var captured render.CreateCollectionRequest
	client := &stubRenderClient{
		createFn: func(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error) {
			captured = req
			return &render.Collection{UID: "abc123", Status: render.StatusPending}, nil
		},
	}
	sub := NewSubmitter(store, client, "", zerolog.Nop())

	_, err := sub.Submit(context.Background(), SubmitRequest{
		OwnerID:     "owner-1",
		Kind:        domain.JobKindProperty,
		TemplateSet: "setA",
		Slots: []SlotInput{
			{Name: "headline", Text: "OPEN HOUSE"},
			{Name: "subtitle"},
		},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(captured.Modifications) != 1 {
		t.Fatalf("modifications = %d, want 1", len(captured.Modifications))
	}
}

func TestSubmitNoRowWhenServiceRefuses(t *testing.T) {
	t.Parallel()
	store := repo.NewMemoryStore()
	client := &stubRenderClient{
		createFn: func(ctx context.Context, req render.CreateCollectionRequest) (*render.Collection, error) {
			return nil, domain.ErrServiceUnavailable
		},
	}
	sub := NewSubmitter(store, client, "", zerolog.Nop())

	_, err := sub.Submit(context.Background(), SubmitRequest{
		OwnerID:     "owner-1",
		Kind:        domain.JobKindProperty,
		TemplateSet: "setA",
		Slots:       []SlotInput{{Name: "headline", Text: "x"}},
	})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}
