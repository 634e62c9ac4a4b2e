package sticker

import (
	"regexp"
	"strings"
)

// Manufacturer sticker layouts differ in how they label equipment
// sections. Each entry captures the body of the three sections that carry
// feature lines; "default" is the keyword fallback for unrecognised
// layouts.
type sectionPatterns struct {
	standard *regexp.Regexp
	optional *regexp.Regexp
	safety   *regexp.Regexp
}

var manufacturerPatterns = map[string]sectionPatterns{
	"ford": {
		standard: regexp.MustCompile(`(?s)STANDARD EQUIPMENT\s*(?:INCLUDED AT NO EXTRA CHARGE|:)(.*?)(?:OPTIONAL|PRICE|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)OPTIONAL EQUIPMENT(?:/OTHER|/MISC)?\s*:?(.*?)(?:SUBTOTAL|TOTAL|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
	"gm": {
		standard: regexp.MustCompile(`(?s)STANDARD (?:VEHICLE )?(?:EQUIPMENT|FEATURES)\s*:?(.*?)(?:OPTIONS|ADDED|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)(?:OPTIONAL|ADDED) (?:EQUIPMENT|FEATURES)\s*:?(.*?)(?:TOTAL|SUBTOTAL|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
	"fca": {
		standard: regexp.MustCompile(`(?s)STANDARD EQUIPMENT\s*:?(.*?)(?:OPTIONAL|ADDED|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)OPTIONAL EQUIPMENT\s*:?(.*?)(?:TOTAL|SUBTOTAL|DESTINATION|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
	"toyota": {
		standard: regexp.MustCompile(`(?s)STANDARD(?:[^\n]*EQUIPMENT|[^\n]*FEATURES)\s*:?(.*?)(?:ACCESSORIES|OPTIONAL|ADDED|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)(?:OPTIONAL EQUIPMENT|ACCESSORIES)\s*:?(.*?)(?:TOTAL|SUBTOTAL|DELIVERY|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
	"honda": {
		standard: regexp.MustCompile(`(?s)STANDARD (?:FEATURES|EQUIPMENT)\s*:?(.*?)(?:ACCESSORIES|INSTALLED|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)(?:INSTALLED|ACCESSORIES|ADDED)(?:[^\n]*EQUIPMENT)?\s*:?(.*?)(?:TOTAL|SUBTOTAL|DESTINATION|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
	"nissan": {
		standard: regexp.MustCompile(`(?s)STANDARD\s*:?(.*?)(?:OPTIONAL|PACKAGES|TOTAL|$)`),
		optional: regexp.MustCompile(`(?s)(?:OPTIONAL|PACKAGES)\s*:?(.*?)(?:TOTAL|DESTINATION|$)`),
		safety:   regexp.MustCompile(`(?s)SAFETY(?:/SECURITY)?\s*:?(.*?)(?:TOTAL|$)`),
	},
}

// manufacturerMarkers is ordered: the first brand whose marker appears
// wins, so detection is stable across calls and across retries of the same
// vehicle. Word boundaries keep short marks like RAM from firing inside
// ordinary words.
var manufacturerMarkers = []struct {
	name   string
	marker *regexp.Regexp
}{
	{"ford", regexp.MustCompile(`\b(FORD|LINCOLN)\b`)},
	{"gm", regexp.MustCompile(`\b(CHEVROLET|GMC|BUICK|CADILLAC|GENERAL MOTORS)\b`)},
	{"fca", regexp.MustCompile(`\b(JEEP|DODGE|CHRYSLER|RAM)\b`)},
	{"toyota", regexp.MustCompile(`\b(TOYOTA|LEXUS)\b`)},
	{"honda", regexp.MustCompile(`\b(HONDA|ACURA)\b`)},
	{"nissan", regexp.MustCompile(`\b(NISSAN|INFINITI)\b`)},
}

// detectManufacturer picks a layout from brand markers in the text.
func detectManufacturer(text string) string {
	upper := strings.ToUpper(text)
	for _, m := range manufacturerMarkers {
		if m.marker.MatchString(upper) {
			return m.name
		}
	}
	return ""
}

// SegmentFeatures splits raw sticker text into individual feature strings.
// Labeled equipment sections are preferred; when no section label is
// recognised every plausible line is a candidate. Order of appearance is
// preserved.
func SegmentFeatures(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	upper := strings.ToUpper(text)

	var bodies []string
	if mfr := detectManufacturer(text); mfr != "" {
		p := manufacturerPatterns[mfr]
		for _, re := range []*regexp.Regexp{p.standard, p.optional, p.safety} {
			if m := re.FindStringSubmatch(upper); len(m) > 1 {
				bodies = append(bodies, m[1])
			}
		}
	}
	if len(bodies) == 0 {
		bodies = []string{upper}
	}

	var features []string
	for _, body := range bodies {
		for _, line := range strings.Split(body, "\n") {
			if f := cleanFeatureLine(line); f != "" {
				features = append(features, f)
			}
		}
	}
	return features
}

var (
	priceRe      = regexp.MustCompile(`\$\s*[\d,]+`)
	bulletRe     = regexp.MustCompile(`^[\s•·*\-–—]+`)
	sectionWords = regexp.MustCompile(`^(STANDARD|OPTIONAL|ADDED|INSTALLED|EQUIPMENT|FEATURES|ACCESSORIES|PACKAGES|SAFETY|SECURITY|TOTAL|SUBTOTAL|MSRP|DESTINATION|DELIVERY|PRICE)\b`)
)

// cleanFeatureLine strips bullets, prices and section headers. Returns ""
// for lines that are not feature items.
func cleanFeatureLine(line string) string {
	line = bulletRe.ReplaceAllString(strings.TrimSpace(line), "")
	line = priceRe.ReplaceAllString(line, "")
	line = strings.TrimSpace(strings.TrimRight(line, ".-– "))

	if len(line) < 4 {
		return ""
	}
	if sectionWords.MatchString(strings.ToUpper(line)) {
		return ""
	}
	// Mostly-numeric lines are codes and totals, not features.
	digits := 0
	for _, r := range line {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits*2 > len(line) {
		return ""
	}
	return line
}
