// Package match maps raw window-sticker feature strings to canonical
// checkbox ids by fuzzy similarity. The engine is pure: identical inputs
// always produce identical output, which keeps retries safe and tests
// deterministic.
package match

import (
	"regexp"
	"strings"
)

// Match is one accepted raw-feature → checkbox mapping.
type Match struct {
	CheckboxID string `json:"checkbox_id"`
	Score      int    `json:"score"`
}

// FeatureMapping is the result of matching one vehicle's feature set.
// Every distinct raw feature string appears in exactly one of Matched or
// Unmatched.
type FeatureMapping struct {
	VehicleID string           `json:"vehicle_id"`
	Matched   map[string]Match `json:"matched"`
	Unmatched []string         `json:"unmatched"`

	// order holds the matched raw strings in input order, so checkbox ids
	// come out deterministically.
	order []string
}

// CheckboxIDs returns the distinct checkbox ids to apply, in first-match
// order over the input features.
func (m *FeatureMapping) CheckboxIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, f := range m.order {
		mt, ok := m.Matched[f]
		if !ok || seen[mt.CheckboxID] {
			continue
		}
		seen[mt.CheckboxID] = true
		ids = append(ids, mt.CheckboxID)
	}
	return ids
}

// Override short-circuits fuzzy matching: when Pattern occurs as a
// substring of the normalised feature, the feature maps to Checkbox with
// score 100. Dealership-specific, checked in order.
type Override struct {
	Pattern  string
	Checkbox string
}

// Matcher holds the read-only inputs of the matching run.
type Matcher struct {
	Dict      *Dictionary
	Threshold int // 0-100; matches below are recorded unmatched
	Scorer    Scorer
	Overrides []Override
}

// NewMatcher builds a Matcher with the default ratio scorer and a 90
// threshold when zero values are given.
func NewMatcher(dict *Dictionary, threshold int) *Matcher {
	if threshold <= 0 {
		threshold = 90
	}
	return &Matcher{Dict: dict, Threshold: threshold, Scorer: RatioScorer{}}
}

// Map runs the matcher over an ordered feature list. Duplicate raw strings
// collapse to one entry.
func (m *Matcher) Map(vehicleID string, features []string) FeatureMapping {
	out := FeatureMapping{
		VehicleID: vehicleID,
		Matched:   map[string]Match{},
	}

	seen := map[string]bool{}
	for _, raw := range features {
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true

		if mt, ok := m.mapOne(raw); ok {
			out.Matched[raw] = mt
			out.order = append(out.order, raw)
		} else {
			out.Unmatched = append(out.Unmatched, raw)
		}
	}
	return out
}

func (m *Matcher) mapOne(raw string) (Match, bool) {
	norm := Normalize(raw)
	if norm == "" {
		return Match{}, false
	}

	// Dealership overrides beat everything.
	for _, ov := range m.Overrides {
		if strings.Contains(norm, Normalize(ov.Pattern)) {
			return Match{CheckboxID: ov.Checkbox, Score: 100}, true
		}
	}

	// Exact alias hit short-circuits scoring.
	if id, ok := m.Dict.LookupAlias(norm); ok {
		return Match{CheckboxID: id, Score: 100}, true
	}

	scorer := m.Scorer
	if scorer == nil {
		scorer = RatioScorer{}
	}

	best := Match{Score: -1}
	bestCanonical := -1 // canonical-form score of the current best entry

	for _, e := range m.Dict.Entries() {
		canonical := scorer.Score(norm, Normalize(e.ID))
		entryBest := canonical
		for _, alias := range e.Aliases {
			if s := scorer.Score(norm, Normalize(alias)); s > entryBest {
				entryBest = s
			}
		}

		// Strictly-greater keeps dictionary insertion order as the final
		// tie-break; equal scores prefer the entry whose canonical form
		// was closer.
		if entryBest > best.Score || (entryBest == best.Score && canonical > bestCanonical) {
			best = Match{CheckboxID: e.ID, Score: entryBest}
			bestCanonical = canonical
		}
	}

	if best.Score >= m.Threshold && best.CheckboxID != "" {
		return best, true
	}
	return Match{}, false
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips punctuation, and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
