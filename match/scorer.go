package match

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Scorer computes a 0-100 similarity between two already-normalised
// strings. The matcher depends only on this interface so the algorithm can
// change without touching the selection or tie-break logic.
type Scorer interface {
	Score(a, b string) int
}

// RatioScorer scores with the Levenshtein-based simple ratio.
type RatioScorer struct{}

func (RatioScorer) Score(a, b string) int {
	return fuzzy.Ratio(a, b)
}

// TokenSetScorer scores order-insensitively on word sets. Useful for
// sticker lines that reorder words ("Heated Front Seats" vs "Front Heated
// Seats").
type TokenSetScorer struct{}

func (TokenSetScorer) Score(a, b string) int {
	return fuzzy.TokenSetRatio(a, b)
}
