package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			google_refresh_token TEXT,
			email_tagging_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			google_access TEXT NOT NULL DEFAULT 'none'
				CHECK (google_access IN ('none', 'full', 'gmail_only', 'legacy'))
		);`,

		`CREATE TABLE IF NOT EXISTS emails (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_id TEXT NOT NULL,
			thread_id TEXT NOT NULL DEFAULT '',
			sender TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (user_id, message_id)
		);`,

		`CREATE INDEX IF NOT EXISTS idx_emails_user_id ON emails(user_id);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downInitial(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS emails;`,
		`DROP TABLE IF EXISTS users;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
