// Package inventory lists the vehicles that qualify for feature
// verification: recent arrivals, in the order the inventory grid presents
// them.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/retry"
	"github.com/dealerops/featuresync/session"
)

// VehicleRecord is one vehicle as discovered. Read-only downstream.
type VehicleRecord struct {
	ID           string    `json:"id"`
	AgeDays      int       `json:"age_days"`
	DiscoveredAt time.Time `json:"discovered_at"`
	// StickerRef is the window sticker document URL when the grid exposes
	// one; empty means the sticker panel on the detail page is the source.
	StickerRef string `json:"sticker_ref,omitempty"`
}

// DiscoveryError reports a failed listing. Fatal errors (invalid session,
// listing unreachable after retry) abort the batch.
type DiscoveryError struct {
	Fatal bool
	Err   error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("inventory: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Config tunes discovery.
type Config struct {
	Retry  retry.Policy
	Logger *slog.Logger
}

// Discovery lists vehicles through an authenticated session.
type Discovery struct {
	cfg Config
}

// NewDiscovery creates a Discovery.
func NewDiscovery(cfg Config) *Discovery {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discovery{cfg: cfg}
}

// List returns vehicles no older than maxAgeDays, in grid order. An empty
// inventory is an empty slice, not an error.
func (d *Discovery) List(ctx context.Context, sess *session.Session, maxAgeDays int) ([]VehicleRecord, error) {
	if sess.Expired(time.Now()) {
		return nil, &DiscoveryError{Fatal: true, Err: fmt.Errorf("session expired")}
	}

	drv := sess.Driver
	var raw string
	err := d.cfg.Retry.Do(ctx, func() error {
		if err := drv.Navigate(ctx, driver.PageInventory, nil); err != nil {
			return err
		}
		text, err := drv.ReadText(ctx, "vehicle_rows")
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, &DiscoveryError{Fatal: true, Err: fmt.Errorf("listing unreachable: %w", err)}
	}
	sess.Touch()

	records := parseRows(raw, maxAgeDays, time.Now())
	d.cfg.Logger.Info("inventory: discovered", "dealership", sess.DealershipID,
		"vehicles", len(records), "max_age_days", maxAgeDays)
	return records, nil
}

var ageRe = regexp.MustCompile(`\d+`)

// parseRows reads the grid's text rendering: one vehicle per line, tab
// separated as id, age, optional sticker URL. Rows that do not parse or
// exceed the age filter are skipped; surviving rows keep grid order.
func parseRows(raw string, maxAgeDays int, now time.Time) []VehicleRecord {
	records := []VehicleRecord{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			continue
		}

		id := strings.TrimSpace(cols[0])
		ageStr := ageRe.FindString(cols[1])
		if id == "" || ageStr == "" {
			continue
		}
		age, err := strconv.Atoi(ageStr)
		if err != nil || age < 0 || age > maxAgeDays {
			continue
		}

		rec := VehicleRecord{ID: id, AgeDays: age, DiscoveredAt: now}
		if len(cols) >= 3 {
			rec.StickerRef = strings.TrimSpace(cols[2])
		}
		records = append(records, rec)
	}
	return records
}
