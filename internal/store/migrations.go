package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version and
// either SQL or a function for changes that depend on the existing schema.
// Function migrations are recorded in schema_version by the runner.
type migration struct {
	version int
	sql     string
	apply   func(db *sqlx.DB) error
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	email    TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	protocol TEXT NOT NULL CHECK (protocol IN ('imap', 'pop3')),
	server   TEXT NOT NULL,
	port     INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS approved_users (
	user_id INTEGER PRIMARY KEY,
	expiry  TEXT,
	granted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_approved_users_expiry ON approved_users(expiry);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		// Databases created by earlier releases of the bot have accounts
		// and approved_users without the bookkeeping columns, and
		// CREATE TABLE IF NOT EXISTS above leaves them untouched.
		version: 3,
		apply: func(db *sqlx.DB) error {
			if err := addColumnIfMissing(db, "accounts", "updated_at", "DATETIME"); err != nil {
				return err
			}
			return addColumnIfMissing(db, "approved_users", "granted_at", "DATETIME")
		},
	},
}

// addColumnIfMissing adds column to table unless it already exists.
// SQLite rejects non-constant defaults in ALTER TABLE, so added columns
// are nullable and filled by every write.
func addColumnIfMissing(db *sqlx.DB, table, column, decl string) error {
	var columns []string
	if err := db.Select(&columns, "SELECT name FROM pragma_table_info(?)", table); err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}
	for _, c := range columns {
		if c == column {
			return nil
		}
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}
