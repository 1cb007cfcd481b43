// Package captions generates marketing copy through a language model while
// steering it away from the caller's recent outputs. History is dedup
// context only; losing an entry degrades variety, never correctness.
package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/providers/caption"
)

const (
	defaultTemperature = 0.7
	// forceUniqueTemperature is deliberately at the top of the sampling
	// range: a user regenerating expects visibly different output now, not
	// just different-from-last-week.
	forceUniqueTemperature = 1.0

	tipHeadingWords = 3
)

var upperCaser = cases.Upper(language.English)

// Brief carries the structured content the text is based on.
type Brief struct {
	Platform string            `json:"platform,omitempty"`
	Fields   map[string]string `json:"fields"`
}

// Request is one generation call.
type Request struct {
	OwnerID  string
	Category string
	Brief    Brief
	// ForceUnique marks an explicit regeneration: sampling temperature is
	// raised and SessionAvoid joins the avoid list.
	ForceUnique bool
	// SessionAvoid holds outputs from the current regeneration session that
	// have not been persisted to history yet.
	SessionAvoid []string
}

// Result is the generated copy.
type Result struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Generator wraps the model call with the bounded history window.
type Generator struct {
	model   caption.Completer
	history domain.HistoryRepository
	window  int
	log     zerolog.Logger
}

// NewGenerator wires a generator. window <= 0 falls back to the default.
func NewGenerator(model caption.Completer, history domain.HistoryRepository, window int, log zerolog.Logger) *Generator {
	if window <= 0 {
		window = domain.DefaultHistoryWindow
	}
	return &Generator{model: model, history: history, window: window, log: log}
}

// Generate produces one heading/body pair. On success the output is appended
// to the owner's history window; a malformed model response returns
// domain.ErrGenerationFormat without touching history.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, fmt.Errorf("%w: topic category is required", domain.ErrValidation)
	}
	if len(req.Brief.Fields) == 0 {
		return nil, fmt.Errorf("%w: brief fields are required", domain.ErrValidation)
	}

	avoid, err := g.history.ListRecent(ctx, req.OwnerID, req.Category, g.window)
	if err != nil {
		// Degraded dedup beats a failed generation.
		g.log.Warn().Err(err).Str("owner", req.OwnerID).Str("category", req.Category).Msg("captions: history read failed")
		avoid = nil
	}
	if req.ForceUnique {
		avoid = append(avoid, req.SessionAvoid...)
	}

	temperature := defaultTemperature
	if req.ForceUnique {
		temperature = forceUniqueTemperature
	}

	raw, err := g.model.Complete(ctx, caption.CompletionRequest{
		System:       systemPrompt(req.Category),
		User:         userPrompt(req, avoid),
		Temperature:  temperature,
		MaxTokens:    maxTokensFor(req.Brief.Platform),
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseResult(raw, req.Category)
	if err != nil {
		return nil, err
	}

	entry := result.Heading + "|" + result.Body
	if err := g.history.Append(ctx, req.OwnerID, req.Category, entry, g.window); err != nil {
		g.log.Warn().Err(err).Str("owner", req.OwnerID).Str("category", req.Category).Msg("captions: history append failed")
	}
	return result, nil
}

func systemPrompt(category string) string {
	if domain.TipCategories[category] {
		return "You are an experienced real estate content writer producing short, actionable tips for agents to share. " +
			"Respond only with a valid JSON object containing a \"heading\" key (exactly three words, a complete standalone phrase) " +
			"and a \"body\" key (1-3 helpful sentences). No markdown, no text outside the JSON."
	}
	return "You are a highly experienced real estate copywriter who crafts sophisticated, emotionally resonant marketing copy. " +
		"Write in plain text with emojis only; no asterisks or markdown. " +
		"Respond only with a valid JSON object containing a \"heading\" key (a short title) and a \"body\" key (the caption text)."
}

func userPrompt(req Request, avoid []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create marketing copy about %q.\n\nContent brief:\n", req.Category)
	for _, key := range sortedKeys(req.Brief.Fields) {
		fmt.Fprintf(&b, "- %s: %s\n", key, req.Brief.Fields[key])
	}
	if req.Brief.Platform != "" {
		fmt.Fprintf(&b, "\nTarget platform: %s. Keep the body under %d characters.\n",
			req.Brief.Platform, caption.MaxLenForPlatform(req.Brief.Platform))
	}
	if domain.TipCategories[req.Category] {
		b.WriteString("\nThe heading must be EXACTLY 3 words forming a complete, meaningful phrase ")
		b.WriteString("(good: \"COMPARE MORTGAGE RATES\"; bad: \"READ THE FINE\").\n")
	}
	if len(avoid) > 0 {
		b.WriteString("\nIMPORTANT: Avoid repeating or closely paraphrasing any of the following previous outputs:\n")
		for _, entry := range avoid {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(entry, "|", " - "))
		}
	}
	if req.ForceUnique {
		b.WriteString("\nCRITICAL: This is an explicit regeneration request. The user has already seen the outputs above ")
		b.WriteString("and expects ENTIRELY NEW content. Do not reuse any heading or phrasing from the avoid list.\n")
	}
	return b.String()
}

func maxTokensFor(platform string) int {
	// Rough chars-per-token conversion with headroom for the JSON wrapper.
	return caption.MaxLenForPlatform(platform) * 3 / 2 / 4
}

func parseResult(raw, category string) (*Result, error) {
	cleaned := stripCodeFence(raw)
	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFormat, err)
	}
	result.Body = strings.TrimSpace(strings.ReplaceAll(result.Body, "*", ""))
	result.Heading = strings.TrimSpace(result.Heading)
	if result.Body == "" || result.Heading == "" {
		return nil, fmt.Errorf("%w: empty heading or body", domain.ErrGenerationFormat)
	}
	if domain.TipCategories[category] {
		heading, err := normalizeTipHeading(result.Heading)
		if err != nil {
			return nil, err
		}
		result.Heading = heading
	}
	return &result, nil
}

// normalizeTipHeading enforces the exactly-three-word uppercase heading
// shape. Over-long headings keep their first three words; shorter ones are a
// format error the caller may retry.
func normalizeTipHeading(heading string) (string, error) {
	words := strings.Fields(heading)
	if len(words) < tipHeadingWords {
		return "", fmt.Errorf("%w: heading %q has fewer than %d words", domain.ErrGenerationFormat, heading, tipHeadingWords)
	}
	if len(words) > tipHeadingWords {
		words = words[:tipHeadingWords]
	}
	return upperCaser.String(strings.Join(words, " ")), nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
