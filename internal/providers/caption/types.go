package caption

import "context"

// CompletionRequest is one chat-completion call.
type CompletionRequest struct {
	System       string
	User         string
	Temperature  float64
	MaxTokens    int
	JSONResponse bool
}

// Completer abstracts the underlying language model so the generator can be
// tested without network access.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Platform-specific caption length budgets, in characters.
const (
	MaxLenInstagram = 2200
	MaxLenFacebook  = 2000
	MaxLenLinkedIn  = 3000
)

// MaxLenForPlatform returns the caption budget for a social platform,
// defaulting to the Instagram limit for unknown platforms.
func MaxLenForPlatform(platform string) int {
	switch platform {
	case "facebook":
		return MaxLenFacebook
	case "linkedin":
		return MaxLenLinkedIn
	default:
		return MaxLenInstagram
	}
}
