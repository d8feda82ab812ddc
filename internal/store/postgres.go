package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/amurex/inboxtagger/internal/logging"

	// Register migrations with goose
	_ "github.com/amurex/inboxtagger/internal/store/migrations"
)

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// Postgres stores accounts and email records in Postgres.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres opens and pings the database.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	p := NewPostgresFromDB(db, logger)
	p.logger.Info("connected to postgres")
	return p, nil
}

// NewPostgresFromDB wraps an open database handle.
func NewPostgresFromDB(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		db:     db,
		logger: logging.WithService(logger, "postgres"),
	}
}

// DB returns the underlying database handle.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate runs a goose command ("up", "down", "status", ...) against the
// registered migrations.
func (p *Postgres) Migrate(ctx context.Context, command string, args ...string) error {
	goose.SetLogger(logging.NewGooseLogger(p.logger))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, p.db, ".", args...); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	version, err := goose.GetDBVersionContext(ctx, p.db)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	p.logger.Info("migrations complete", slog.String("command", command), slog.Int64("version", version))
	return nil
}

// GetAccount returns the account with the given id.
func (p *Postgres) GetAccount(ctx context.Context, id string) (*Account, error) {
	const query = `
		SELECT id, created_at, google_refresh_token, email_tagging_enabled, google_access
		FROM users
		WHERE id = $1
	`

	var (
		a       Account
		refresh sql.NullString
		access  sql.NullString
	)
	err := p.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.CreatedAt, &refresh, &a.EmailTaggingEnabled, &access)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.RefreshToken = refresh.String
	a.GoogleAccess = access.String
	if a.GoogleAccess == "" {
		a.GoogleAccess = AccessNone
	}
	return &a, nil
}

// CreatedAt returns the account's creation time.
func (p *Postgres) CreatedAt(ctx context.Context, id string) (time.Time, error) {
	var createdAt time.Time
	err := p.db.QueryRowContext(ctx, `SELECT created_at FROM users WHERE id = $1`, id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrAccountNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get account creation time: %w", err)
	}
	return createdAt, nil
}

// ListMessageIDs returns the ids of all messages stored for userID.
func (p *Postgres) ListMessageIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT message_id FROM emails WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	return ids, nil
}

// Exists reports whether the message is stored for userID.
func (p *Postgres) Exists(ctx context.Context, userID, messageID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM emails WHERE user_id = $1 AND message_id = $2)`,
		userID, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// Store inserts rec unless it is already stored and reports whether a row
// was inserted. A failed existence check is logged and the insert is still
// attempted; the unique (user_id, message_id) constraint keeps it idempotent.
// An insert rejected because of an optional column is retried once without
// the optional columns.
func (p *Postgres) Store(ctx context.Context, rec EmailRecord) (bool, error) {
	logger := p.logger.With(logging.User(rec.UserID), logging.MessageID(rec.MessageID))

	exists, err := p.Exists(ctx, rec.UserID, rec.MessageID)
	if err != nil {
		logger.Warn("existence check failed, attempting insert", logging.Err(err))
	} else if exists {
		return false, nil
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	inserted, err := p.insert(ctx, rec, true)
	if err != nil && IsOptionalColumnError(err) {
		logger.Warn("insert rejected optional columns, retrying without them", logging.Err(err))
		inserted, err = p.insert(ctx, rec, false)
	}
	if err != nil {
		return false, fmt.Errorf("store email: %w", err)
	}
	if inserted {
		logger.Debug("email stored", slog.Int("content_length", len(rec.Content)))
	}
	return inserted, nil
}

func (p *Postgres) insert(ctx context.Context, rec EmailRecord, withOptional bool) (bool, error) {
	query, args := buildInsert(rec, withOptional)
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// buildInsert renders the email insert. Conflicting rows are left untouched.
func buildInsert(rec EmailRecord, withOptional bool) (string, []any) {
	cols := []string{"user_id", "message_id", "thread_id", "sender", "subject", "content", "snippet", "received_at", "created_at", "is_read"}
	args := []any{rec.UserID, rec.MessageID, rec.ThreadID, rec.Sender, rec.Subject, rec.Content, rec.Snippet, rec.ReceivedAt, rec.CreatedAt, rec.IsRead}
	if withOptional {
		cols = append(cols, optionalColumns...)
		args = append(args, string(rec.Category), rec.IsCategorized)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}

	query := "INSERT INTO emails (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (user_id, message_id) DO NOTHING"
	return query, args
}
