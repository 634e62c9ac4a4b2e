package mapstore

import "database/sql"

// Schema holds the corrections ledger. This is deliberately not a vehicle
// database: only operator feedback about mis-mapped feature strings lives
// here.
const Schema = `
CREATE TABLE IF NOT EXISTS corrections (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    feature_text  TEXT NOT NULL,
    old_checkbox  TEXT NOT NULL DEFAULT '',
    new_checkbox  TEXT NOT NULL,
    dealership_id TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corrections_feature ON corrections(feature_text);
`

// ApplySchema creates the corrections tables and indexes.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
