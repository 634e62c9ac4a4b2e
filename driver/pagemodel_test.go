package driver

import (
	"errors"
	"strings"
	"testing"
)

func testModel() *PageModel {
	return &PageModel{
		Version: "v3",
		BaseURL: "https://app.example.test/",
		Pages: map[string]Page{
			PageVehicle: {
				Path: "/vehicles/{vehicle_id}",
				Selectors: map[string]string{
					"sticker_content": "#sticker .content",
				},
			},
			PageLogin: {Path: "/login"},
		},
	}
}

func TestURLSubstitution(t *testing.T) {
	// WHAT: Path placeholders are filled from params; base and path join
	// without a doubled slash.
	m := testModel()
	got, err := m.URL(PageVehicle, map[string]string{"vehicle_id": "VIN100"})
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	want := "https://app.example.test/vehicles/VIN100"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestURLUnresolvedPlaceholder(t *testing.T) {
	// WHAT: A placeholder left unfilled is an error, not a literal URL.
	m := testModel()
	_, err := m.URL(PageVehicle, nil)
	if err == nil || !strings.Contains(err.Error(), "unresolved") {
		t.Errorf("got %v", err)
	}
}

func TestURLUnknownPage(t *testing.T) {
	m := testModel()
	if _, err := m.URL("service_bay", nil); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestSelectorLookup(t *testing.T) {
	// WHAT: Unknown element names resolve to ErrUnknownElement so callers
	// can tell a model gap from a UI failure.
	m := testModel()

	sel, err := m.Selector(PageVehicle, "sticker_content")
	if err != nil || sel != "#sticker .content" {
		t.Errorf("got %q, %v", sel, err)
	}

	_, err = m.Selector(PageVehicle, "ejector_seat")
	if !errors.Is(err, ErrUnknownElement) {
		t.Errorf("got %v, want ErrUnknownElement", err)
	}
}
