// Package mapstore persists operator corrections of mis-mapped features
// and distills them into dictionary alias suggestions. Corrections are
// recorded between runs; the dictionary itself never changes mid-batch.
package mapstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dealerops/featuresync/match"
)

// Correction is one operator fix: the feature string was mapped to
// OldCheckbox (empty when unmatched) and should have been NewCheckbox.
type Correction struct {
	FeatureText  string
	OldCheckbox  string
	NewCheckbox  string
	DealershipID string
	CreatedAt    time.Time
}

// Suggestion proposes adding FeatureText as an alias of Checkbox, backed
// by Count agreeing corrections.
type Suggestion struct {
	FeatureText string
	Checkbox    string
	Count       int
}

// Store wraps the corrections database.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the corrections database at path and
// applies the schema. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("mapstore: open %s: %w", path, err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("mapstore: schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// NewStore wraps an already-opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// RecordCorrection appends one correction.
func (s *Store) RecordCorrection(ctx context.Context, c Correction) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO corrections (feature_text, old_checkbox, new_checkbox, dealership_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.FeatureText, c.OldCheckbox, c.NewCheckbox, c.DealershipID, c.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("mapstore: record: %w", err)
	}
	return nil
}

// Suggestions returns alias proposals for feature strings corrected at
// least minCount times where one target checkbox accounts for at least
// minShare of the corrections. Defaults: 3 and 0.75.
func (s *Store) Suggestions(ctx context.Context, minCount int, minShare float64) ([]Suggestion, error) {
	if minCount <= 0 {
		minCount = 3
	}
	if minShare <= 0 {
		minShare = 0.75
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT feature_text, new_checkbox, COUNT(*) AS n,
		       (SELECT COUNT(*) FROM corrections t WHERE t.feature_text = c.feature_text) AS total
		FROM corrections c
		GROUP BY feature_text, new_checkbox
		ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("mapstore: suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		var total int
		if err := rows.Scan(&sg.FeatureText, &sg.Checkbox, &sg.Count, &total); err != nil {
			return nil, fmt.Errorf("mapstore: scan: %w", err)
		}
		if total < minCount {
			continue
		}
		if float64(sg.Count)/float64(total) < minShare {
			continue
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// ApplySuggestions folds the current suggestions into the dictionary as
// aliases and returns how many were added. Called at startup, before any
// batch runs.
func (s *Store) ApplySuggestions(ctx context.Context, dict *match.Dictionary) (int, error) {
	suggestions, err := s.Suggestions(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, sg := range suggestions {
		if dict.AddAlias(sg.Checkbox, sg.FeatureText) {
			added++
		}
	}
	return added, nil
}
