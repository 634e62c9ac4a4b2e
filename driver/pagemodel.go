package driver

import (
	"fmt"
	"strings"
)

// PageModel describes the fixed structure of the target application: one
// entry per page, each with a URL template and a table of named selectors.
// The model is versioned so a UI change ships as a model bump, not a code
// change.
type PageModel struct {
	Version string          `yaml:"version"`
	BaseURL string          `yaml:"base_url"`
	Pages   map[string]Page `yaml:"pages"`
}

// Page is one screen of the target application.
type Page struct {
	// Path is appended to BaseURL. Placeholders use {name} syntax and are
	// filled from Navigate params.
	Path string `yaml:"path"`
	// Selectors maps logical element names to CSS selectors.
	Selectors map[string]string `yaml:"selectors"`
}

// Well-known page ids. The model file must define all of them.
const (
	PageLogin      = "login"
	PageTwoFactor  = "two_factor"
	PageDashboard  = "dashboard"
	PageInventory  = "inventory"
	PageVehicle    = "vehicle_detail"
	PageAttributes = "vehicle_attributes"
)

// URL resolves the full URL for a page, substituting params into the path
// template.
func (m *PageModel) URL(pageID string, params map[string]string) (string, error) {
	p, ok := m.Pages[pageID]
	if !ok {
		return "", fmt.Errorf("driver: page %q not in model %s", pageID, m.Version)
	}
	path := p.Path
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	if strings.Contains(path, "{") {
		return "", fmt.Errorf("driver: page %q: unresolved placeholder in %q", pageID, path)
	}
	return strings.TrimRight(m.BaseURL, "/") + path, nil
}

// Selector resolves a logical element name on a page.
func (m *PageModel) Selector(pageID, name string) (string, error) {
	p, ok := m.Pages[pageID]
	if !ok {
		return "", fmt.Errorf("driver: page %q not in model %s", pageID, m.Version)
	}
	sel, ok := p.Selectors[name]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrUnknownElement, name, pageID)
	}
	return sel, nil
}
