package google

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/amurex/inboxtagger/internal/instrumentation"
)

// MeteredTokenSource wraps a refreshing token source and records every
// refresh attempt. Cached tokens are returned without touching the metric.
type MeteredTokenSource struct {
	ctx     context.Context
	base    oauth2.TokenSource
	metrics *instrumentation.Metrics

	mu      sync.Mutex
	current *oauth2.Token
}

// NewMeteredTokenSource wraps base.
func NewMeteredTokenSource(ctx context.Context, base oauth2.TokenSource, metrics *instrumentation.Metrics) *MeteredTokenSource {
	return &MeteredTokenSource{
		ctx:     ctx,
		base:    base,
		metrics: metrics,
	}
}

// Token returns a valid access token, refreshing it when needed.
func (s *MeteredTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}

	tok, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to refresh Google access token: %w", err)
	}
	s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultSuccess)
	s.current = tok
	return tok, nil
}
