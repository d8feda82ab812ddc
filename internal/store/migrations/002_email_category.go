package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upEmailCategory, downEmailCategory)
}

func upEmailCategory(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE emails
			ADD COLUMN IF NOT EXISTS category TEXT NOT NULL DEFAULT 'none',
			ADD COLUMN IF NOT EXISTS is_categorized BOOLEAN NOT NULL DEFAULT FALSE;
	`)
	return err
}

func downEmailCategory(tx *sql.Tx) error {
	_, err := tx.Exec(`
		ALTER TABLE emails
			DROP COLUMN IF EXISTS category,
			DROP COLUMN IF EXISTS is_categorized;
	`)
	return err
}
