package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dealerops/featuresync/match"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const minimalConfig = `
page_model:
  base_url: https://app.example.test
dealerships:
  - id: dealer-1
    name: Main Street Motors
    credentials:
      username: u
      password: p
      auth_email: codes@d.test
  - id: dealer-2
    credentials:
      username: u2
      password: p2
    max_vehicles_per_batch: 10
    confidence_threshold: 95
`

func TestLoadFileDefaults(t *testing.T) {
	// WHAT: Omitted settings land on documented defaults, and profiles
	// inherit the processing block unless they override it.
	cfg, err := LoadFile(writeFile(t, "config.yaml", minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p := cfg.Processing
	if p.MaxVehiclesPerBatch != 50 || p.ConfidenceThreshold != 90 || p.MaxAgeDays != 1 {
		t.Errorf("processing defaults: %+v", p)
	}
	if p.VehicleAttempts != 3 || p.LoginAttempts != 3 || p.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("processing defaults: %+v", p)
	}
	if cfg.AuthEmail.Mailbox != "INBOX" || cfg.AuthEmail.PollInterval != 5*time.Second || cfg.AuthEmail.Deadline != 120*time.Second {
		t.Errorf("auth email defaults: %+v", cfg.AuthEmail)
	}

	d1, d2 := cfg.Dealerships[0], cfg.Dealerships[1]
	if d1.MaxVehiclesPerBatch != 50 || d1.ConfidenceThreshold != 90 {
		t.Errorf("dealer-1 inheritance: %+v", d1)
	}
	if d2.MaxVehiclesPerBatch != 10 || d2.ConfidenceThreshold != 95 {
		t.Errorf("dealer-2 override: %+v", d2)
	}
}

func TestLoadFileValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"no dealerships",
			"page_model:\n  base_url: https://x.test\n",
			"no dealerships",
		},
		{
			"missing credentials",
			"page_model:\n  base_url: https://x.test\ndealerships:\n  - id: d1\n",
			"missing credentials",
		},
		{
			"duplicate ids",
			"page_model:\n  base_url: https://x.test\ndealerships:\n" +
				"  - {id: d1, credentials: {username: u, password: p}}\n" +
				"  - {id: d1, credentials: {username: u, password: p}}\n",
			"duplicate",
		},
		{
			"missing base url",
			"dealerships:\n  - {id: d1, credentials: {username: u, password: p}}\n",
			"base_url",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, "config.yaml", c.content))
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("got %v, want %q", err, c.wantErr)
			}
		})
	}
}

func TestLoadDictionaryPreservesOrder(t *testing.T) {
	// WHAT: Dictionary entries come out in file order.
	// WHY: File order is the matcher's final tie-break; a scrambled load
	// would make equal-score matches nondeterministic.
	const doc = `
Bluetooth:
  - Bluetooth Connection
Sunroof:
  - Moonroof
  - Panoramic Roof
Heated Seats: []
`
	dict, err := LoadDictionary(writeFile(t, "dictionary.yaml", doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"Bluetooth", "Sunroof", "Heated Seats"}
	entries := dict.Entries()
	if len(entries) != len(want) {
		t.Fatalf("entries: got %d, want %d", len(entries), len(want))
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].ID, id)
		}
	}
	if id, ok := dict.LookupAlias(match.Normalize("Panoramic Roof")); !ok || id != "Sunroof" {
		t.Errorf("alias lookup: %q %v", id, ok)
	}
}

func TestLoadDictionaryRejectsEmpty(t *testing.T) {
	_, err := LoadDictionary(writeFile(t, "dictionary.yaml", "{}\n"))
	if err == nil {
		t.Fatal("expected error for empty dictionary")
	}
}
