package google

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/logging"
)

// Generation names one of the two registered OAuth clients.
type Generation string

const (
	// Legacy is the client that connected accounts created before the cutoff.
	Legacy Generation = instrumentation.CredentialLegacy
	// Current is the client for accounts created at or after the cutoff.
	Current Generation = instrumentation.CredentialCurrent
)

// DefaultCutoff is the moment the current OAuth client replaced the legacy one.
var DefaultCutoff = time.Date(2025, time.March, 28, 8, 33, 14, 696710000, time.UTC)

// CreationLookup returns when an account was created.
type CreationLookup interface {
	CreatedAt(ctx context.Context, accountID string) (time.Time, error)
}

// SelectorConfig configures a CredentialSelector.
type SelectorConfig struct {
	Cutoff  time.Time
	Legacy  ClientCredentials
	Current ClientCredentials

	// Endpoint overrides the Google OAuth endpoint (tests only).
	Endpoint oauth2.Endpoint
}

// CredentialSelector picks the OAuth client an account's refresh token was
// issued to.
type CredentialSelector struct {
	cutoff  time.Time
	configs map[Generation]*oauth2.Config
	lookup  CreationLookup
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewCredentialSelector creates a selector. A zero cutoff uses DefaultCutoff.
func NewCredentialSelector(cfg SelectorConfig, lookup CreationLookup, metrics *instrumentation.Metrics, logger *slog.Logger) *CredentialSelector {
	if cfg.Cutoff.IsZero() {
		cfg.Cutoff = DefaultCutoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialSelector{
		cutoff: cfg.Cutoff,
		configs: map[Generation]*oauth2.Config{
			Legacy:  OAuthConfig(cfg.Legacy, cfg.Endpoint),
			Current: OAuthConfig(cfg.Current, cfg.Endpoint),
		},
		lookup:  lookup,
		metrics: metrics,
		logger:  logging.WithOperation(logger, "google.credentials"),
	}
}

// SelectByCreatedAt returns Legacy for accounts created strictly before the
// cutoff and Current otherwise.
func (s *CredentialSelector) SelectByCreatedAt(createdAt time.Time) Generation {
	if createdAt.Before(s.cutoff) {
		return Legacy
	}
	return Current
}

// Select looks up the account's creation time and returns the generation and
// its OAuth configuration. A failed lookup selects Legacy.
func (s *CredentialSelector) Select(ctx context.Context, accountID string) (Generation, *oauth2.Config) {
	gen := Legacy
	createdAt, err := s.lookup.CreatedAt(ctx, accountID)
	if err != nil {
		s.logger.Warn("account creation time unavailable, using legacy credentials",
			logging.User(accountID),
			logging.Err(err))
	} else {
		gen = s.SelectByCreatedAt(createdAt)
	}

	s.metrics.RecordCredentialSelection(ctx, string(gen))
	s.logger.Debug("selected credentials",
		logging.User(accountID),
		slog.String("generation", string(gen)))
	return gen, s.configs[gen]
}

// Config returns the OAuth configuration of a generation.
func (s *CredentialSelector) Config(gen Generation) *oauth2.Config {
	return s.configs[gen]
}

// TokenSource selects the credentials for accountID and returns a token
// source for its refresh token. Refresh outcomes are recorded as metrics.
func (s *CredentialSelector) TokenSource(ctx context.Context, accountID, refreshToken string) oauth2.TokenSource {
	_, conf := s.Select(ctx, accountID)
	return NewMeteredTokenSource(ctx, RefreshTokenSource(ctx, conf, refreshToken), s.metrics)
}
