package domain

import "time"

// DefaultHistoryWindow bounds how many recent outputs are kept per owner and
// topic category for repetition avoidance. Older entries evict oldest-first.
const DefaultHistoryWindow = 10

// HistoryEntry is one previously generated output, kept only as dedup
// context for future generations.
type HistoryEntry struct {
	OwnerID   string
	Category  string
	Text      string
	CreatedAt time.Time
}

// TipCategories lists the topic categories that carry the 3-word heading
// constraint on generated output.
var TipCategories = map[string]bool{
	"Home Selling Tip": true,
	"Home Buying Tip":  true,
	"Tip for Buyers":   true,
	"Tip for Renters":  true,
	"Mortgage Tip":     true,
}
