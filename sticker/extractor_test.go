package sticker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/driver/drivertest"
	"github.com/dealerops/featuresync/inventory"
)

func noOCR(t *testing.T) OCRFunc {
	t.Helper()
	return func(ctx context.Context, png []byte) (string, error) {
		t.Fatal("ocr invoked on the text path")
		return "", nil
	}
}

func TestExtractFromPanelText(t *testing.T) {
	// WHAT: Without a linked document the detail page's sticker panel is
	// the text source; a non-empty result never reaches OCR.
	fake := drivertest.New()
	fake.Texts["vehicle_detail/sticker_content"] = fordSticker

	e := NewExtractor(Config{OCR: noOCR(t)})
	fs, err := e.Extract(context.Background(), fake, inventory.VehicleRecord{ID: "VIN100"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fs.Method != MethodText {
		t.Errorf("method: got %s, want text", fs.Method)
	}
	if fs.LowConfidence {
		t.Error("text path flagged low confidence")
	}
	if len(fs.Features) == 0 {
		t.Error("no features from panel text")
	}
	if fake.Page != driver.PageVehicle {
		t.Errorf("page: got %q", fake.Page)
	}
}

func TestExtractOCRFallback(t *testing.T) {
	// WHAT: An empty text path captures the panel image and OCRs it once;
	// OCR results are flagged low confidence.
	fake := drivertest.New()
	fake.Texts["vehicle_detail/sticker_content"] = ""
	fake.Images["sticker_content"] = []byte("png-bytes")

	calls := 0
	e := NewExtractor(Config{OCR: func(ctx context.Context, png []byte) (string, error) {
		calls++
		if string(png) != "png-bytes" {
			t.Errorf("ocr input: got %q", png)
		}
		return "Heated Seats\nBackup Camera\n", nil
	}})

	fs, err := e.Extract(context.Background(), fake, inventory.VehicleRecord{ID: "VIN100"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if calls != 1 {
		t.Errorf("ocr calls: got %d, want 1", calls)
	}
	if fs.Method != MethodOCR || !fs.LowConfidence {
		t.Errorf("got method %s low_confidence %v", fs.Method, fs.LowConfidence)
	}
	if len(fs.Features) != 2 {
		t.Errorf("features: got %v", fs.Features)
	}
}

func TestExtractNothingEitherPath(t *testing.T) {
	// WHAT: Empty text and empty OCR is a MethodNone set, not an error.
	// WHY: The vehicle must still appear in the run report as unmapped.
	fake := drivertest.New()
	fake.Images["sticker_content"] = []byte("png")

	e := NewExtractor(Config{OCR: func(context.Context, []byte) (string, error) {
		return "", nil
	}})

	fs, err := e.Extract(context.Background(), fake, inventory.VehicleRecord{ID: "VIN100"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fs.Method != MethodNone {
		t.Errorf("method: got %s, want none", fs.Method)
	}
	if len(fs.Features) != 0 {
		t.Errorf("features: got %v", fs.Features)
	}
}

func TestExtractLinkedHTMLDocument(t *testing.T) {
	// WHAT: A sticker URL on the record is downloaded and parsed instead of
	// reading the panel.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><h2>Standard Equipment</h2>
<ul><li>Heated Seats</li><li>Backup Camera</li></ul></body></html>`))
	}))
	defer srv.Close()

	fake := drivertest.New()
	e := NewExtractor(Config{OCR: noOCR(t)})

	fs, err := e.Extract(context.Background(), fake, inventory.VehicleRecord{
		ID:         "VIN200",
		StickerRef: srv.URL + "/sticker",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fs.Method != MethodText {
		t.Errorf("method: got %s", fs.Method)
	}
	if fake.OpCount("read_text:sticker_content") != 0 {
		t.Error("panel read despite linked document")
	}
	found := false
	for _, f := range fs.Features {
		if f == "HEATED SEATS" {
			found = true
		}
	}
	if !found {
		t.Errorf("features: got %v", fs.Features)
	}
}

func TestExtractDownloadFailure(t *testing.T) {
	// WHAT: A failing sticker URL is a vehicle-scoped extraction error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fake := drivertest.New()
	e := NewExtractor(Config{OCR: noOCR(t)})

	_, err := e.Extract(context.Background(), fake, inventory.VehicleRecord{
		ID:         "VIN300",
		StickerRef: srv.URL + "/missing.pdf",
	})

	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if ee.VehicleID != "VIN300" || ee.Step != "download" {
		t.Errorf("got vehicle %q step %q", ee.VehicleID, ee.Step)
	}
}
