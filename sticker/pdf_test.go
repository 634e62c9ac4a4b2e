package sticker

import "testing"

func TestNeedsOCR(t *testing.T) {
	// WHAT: The two scanned-sticker signals: thin text over image streams,
	// or a garbled text layer. Clean born-digital PDFs trip neither.
	cases := []struct {
		name string
		q    PDFQuality
		want bool
	}{
		{"born digital", PDFQuality{PageCount: 1, CharsPerPage: 900, PrintableRatio: 0.99}, false},
		{"scan with stub text", PDFQuality{PageCount: 1, CharsPerPage: 12, PrintableRatio: 0.95, HasImageStreams: true}, true},
		{"thin text no images", PDFQuality{PageCount: 1, CharsPerPage: 12, PrintableRatio: 0.95}, false},
		{"garbled text layer", PDFQuality{PageCount: 1, CharsPerPage: 800, PrintableRatio: 0.40}, true},
	}
	for _, c := range cases {
		if got := c.q.NeedsOCR(); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestTextFromContentStream(t *testing.T) {
	// WHAT: Tj/TJ operators yield text and cursor moves become line breaks,
	// so equipment column items land on separate lines.
	stream := []byte("BT\n" +
		"(REMOTE KEYLESS ENTRY) Tj\n" +
		"0 -14 Td\n" +
		"[(SIRIUSXM) ( RADIO)] TJ\n" +
		"T*\n" +
		"(REAR VIEW CAMERA) Tj\n" +
		"ET\n")

	got := textFromContentStream(stream)
	want := "REMOTE KEYLESS ENTRY\nSIRIUSXM RADIO\nREAR VIEW CAMERA"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodePDFString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`PANORAMIC ROOF`, "PANORAMIC ROOF"},
		{`A\(B\)`, "A(B)"},
		{`TAB\tSTOP`, "TAB\tSTOP"},
		{`OCTAL\101`, "OCTALA"},
	}
	for _, c := range cases {
		if got := decodePDFString([]byte(c.in)); got != c.want {
			t.Errorf("decodePDFString(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPrintableRatio(t *testing.T) {
	// WHAT: Private Use Area glyphs from synthetic text layers count as
	// garbage and drag the ratio down.
	if r := printableRatio("CLEAN STICKER TEXT"); r != 1.0 {
		t.Errorf("clean text ratio: got %v", r)
	}
	garbled := "AB" + string(rune(0xE001)) + string(rune(0xE002))
	if r := printableRatio(garbled); r != 0.5 {
		t.Errorf("garbled ratio: got %v", r)
	}
}
