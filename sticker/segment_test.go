package sticker

import (
	"strings"
	"testing"
)

const fordSticker = `2024 FORD F-150 XLT
STANDARD EQUIPMENT INCLUDED AT NO EXTRA CHARGE
• Remote Keyless Entry
• SiriusXM Radio
Rear View Camera
OPTIONAL EQUIPMENT/OTHER
Trailer Tow Package $1,095
TOTAL MSRP $45,980
`

func TestSegmentLabeledSections(t *testing.T) {
	// WHAT: A recognised manufacturer layout yields only the lines inside
	// the labeled equipment sections, in order of appearance, with bullets
	// and prices stripped.
	got := SegmentFeatures(fordSticker)

	want := []string{
		"REMOTE KEYLESS ENTRY",
		"SIRIUSXM RADIO",
		"REAR VIEW CAMERA",
		"TRAILER TOW PACKAGE",
	}
	if len(got) != len(want) {
		t.Fatalf("features: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("feature %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentUnrecognisedLayout(t *testing.T) {
	// WHAT: With no brand marker, every plausible line is a candidate;
	// prices, short lines and mostly-numeric lines are still dropped.
	text := "Heated Seats\nBackup Camera\n$23,500\nA12\n1234567\n"
	got := SegmentFeatures(text)

	want := []string{"HEATED SEATS", "BACKUP CAMERA"}
	if len(got) != len(want) {
		t.Fatalf("features: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("feature %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSegmentEmpty(t *testing.T) {
	// WHAT: Blank input is nil, not a panic or a single empty feature.
	if got := SegmentFeatures("  \n\t\n"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestDetectManufacturer(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"2024 Chevrolet Silverado", "gm"},
		{"TOYOTA CAMRY LE", "toyota"},
		{"Jeep Grand Cherokee", "fca"},
		{"RAM 1500 BIG HORN", "fca"},
		{"MAINTENANCE PROGRAM INCLUDED", ""}, // RAM inside a word is not a brand
		{"Some Generic Sticker", ""},
	}
	for _, c := range cases {
		if got := detectManufacturer(c.text); got != c.want {
			t.Errorf("detectManufacturer(%q): got %q, want %q", c.text, got, c.want)
		}
	}
}

func TestDetectManufacturerStable(t *testing.T) {
	// WHAT: A sticker mentioning two brands resolves to the same layout on
	// every call, by fixed precedence.
	// WHY: Detection feeds segmentation; a flapping answer would produce
	// different feature sets across retries of the same vehicle.
	text := "TOYOTA COROLLA, compare at your local HONDA dealer"
	first := detectManufacturer(text)
	if first != "toyota" {
		t.Fatalf("precedence: got %q, want toyota", first)
	}
	for i := 0; i < 200; i++ {
		if got := detectManufacturer(text); got != first {
			t.Fatalf("call %d: got %q, earlier %q", i, got, first)
		}
	}
}

func TestCleanFeatureLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"• Power Moonroof", "Power Moonroof"},
		{"- Lane Keeping Assist $0", "Lane Keeping Assist"},
		{"TOTAL MSRP", ""},
		{"ab", ""},
		{"12345 678", ""},
		{"  Trailer Hitch  ", "Trailer Hitch"},
	}
	for _, c := range cases {
		if got := cleanFeatureLine(c.in); got != c.want {
			t.Errorf("cleanFeatureLine(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripMarkdown(t *testing.T) {
	// WHAT: Converter markers come off and each item keeps its own line.
	md := "# Standard Equipment\n\n- Heated Seats\n- **Backup Camera**\n"
	got := stripMarkdown(md)
	want := "Standard Equipment\nHeated Seats\nBackup Camera"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCollectTextFallback(t *testing.T) {
	// WHAT: The DOM walker skips script/style and keeps block boundaries.
	doc := `<html><head><style>.x{}</style></head><body>
<script>alert(1)</script>
<ul><li>Heated Seats</li><li>Backup Camera</li></ul>
</body></html>`

	got, err := collectText([]byte(doc))
	if err != nil {
		t.Fatalf("collectText: %v", err)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, ".x{}") {
		t.Errorf("script/style leaked into text: %q", got)
	}
	for _, want := range []string{"Heated Seats", "Backup Camera"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
