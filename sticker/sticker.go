// Package sticker extracts a vehicle's factory feature list from its
// window sticker. Primary path is structured text (PDF or HTML document, or
// the sticker panel's visible text); when that yields nothing the sticker
// is captured as an image and OCRed, once. An empty result after both paths
// is a legitimate empty-sticker case, not an error.
package sticker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/inventory"
)

// Method records how a feature set was obtained.
type Method string

const (
	MethodText Method = "text" // structured text extraction
	MethodOCR  Method = "ocr"  // image capture + OCR fallback
	MethodNone Method = "none" // both paths yielded nothing
)

// FeatureSet is the ordered raw feature strings read off one sticker.
type FeatureSet struct {
	VehicleID     string   `json:"vehicle_id"`
	Features      []string `json:"features"`
	Method        Method   `json:"method"`
	LowConfidence bool     `json:"low_confidence"`
}

// ExtractionError is a vehicle-scoped failure; the orchestrator retries it
// up to the vehicle budget and then marks the vehicle failed.
type ExtractionError struct {
	VehicleID string
	Step      string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("sticker: %s: %s: %v", e.VehicleID, e.Step, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// OCRFunc runs optical character recognition over a PNG image. Split out
// so tests run without a tesseract install.
type OCRFunc func(ctx context.Context, png []byte) (string, error)

// Config tunes the extractor.
type Config struct {
	// HTTPClient downloads linked sticker documents. Default: 30s timeout.
	HTTPClient *http.Client
	// OCR is the fallback recogniser. Default: tesseract via gosseract.
	OCR OCRFunc
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.OCR == nil {
		c.OCR = TesseractOCR
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor reads window stickers through a session's driver.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// Extract produces the vehicle's feature set. The returned error is always
// an *ExtractionError; a sticker with no recognisable features returns a
// MethodNone set and no error so the vehicle still flows into the report.
func (e *Extractor) Extract(ctx context.Context, d driver.Driver, v inventory.VehicleRecord) (*FeatureSet, error) {
	log := e.cfg.Logger

	if err := d.Navigate(ctx, driver.PageVehicle, map[string]string{"vehicle_id": v.ID}); err != nil {
		return nil, &ExtractionError{VehicleID: v.ID, Step: "navigate", Err: err}
	}

	text, err := e.stickerText(ctx, d, v)
	if err != nil {
		return nil, err
	}

	features := SegmentFeatures(text)
	if len(features) > 0 {
		log.Debug("sticker: text extraction", "vehicle", v.ID, "features", len(features))
		return &FeatureSet{VehicleID: v.ID, Features: features, Method: MethodText}, nil
	}

	// Fallback: capture the sticker panel and OCR it. At most once.
	log.Info("sticker: text path empty, trying ocr", "vehicle", v.ID)
	img, err := d.CaptureImage(ctx, "sticker_content")
	if err != nil {
		return nil, &ExtractionError{VehicleID: v.ID, Step: "capture_image", Err: err}
	}
	ocrText, err := e.cfg.OCR(ctx, img)
	if err != nil {
		return nil, &ExtractionError{VehicleID: v.ID, Step: "ocr", Err: err}
	}

	features = SegmentFeatures(ocrText)
	if len(features) == 0 {
		log.Info("sticker: unmapped, no features either path", "vehicle", v.ID)
		return &FeatureSet{VehicleID: v.ID, Method: MethodNone}, nil
	}
	return &FeatureSet{VehicleID: v.ID, Features: features, Method: MethodOCR, LowConfidence: true}, nil
}

// stickerText resolves the sticker's raw text: a linked PDF or HTML
// document when the record carries one, otherwise the panel's visible text.
func (e *Extractor) stickerText(ctx context.Context, d driver.Driver, v inventory.VehicleRecord) (string, error) {
	if v.StickerRef == "" {
		text, err := d.ReadText(ctx, "sticker_content")
		if err != nil {
			return "", &ExtractionError{VehicleID: v.ID, Step: "read_text", Err: err}
		}
		return text, nil
	}

	body, contentType, err := e.download(ctx, v.StickerRef)
	if err != nil {
		return "", &ExtractionError{VehicleID: v.ID, Step: "download", Err: err}
	}

	switch {
	case strings.Contains(contentType, "pdf") || strings.HasSuffix(strings.ToLower(v.StickerRef), ".pdf"):
		text, quality, err := ExtractPDFText(body)
		if err != nil {
			return "", &ExtractionError{VehicleID: v.ID, Step: "pdf", Err: err}
		}
		if quality.NeedsOCR() {
			// Garbage text; let the caller fall through to the OCR path.
			e.cfg.Logger.Debug("sticker: pdf looks image-based", "vehicle", v.ID,
				"chars_per_page", quality.CharsPerPage, "printable", quality.PrintableRatio)
			return "", nil
		}
		return text, nil
	case strings.Contains(contentType, "html"):
		return HTMLToText(body)
	default:
		return string(body), nil
	}
}

func (e *Extractor) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	// Stickers are single-page documents; 10MB is already generous.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
