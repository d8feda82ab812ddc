package pipeline

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/gmail"
	"github.com/amurex/inboxtagger/internal/google"
	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/store"
)

// Mailbox is the Gmail surface a run needs.
type Mailbox interface {
	ListLabels(ctx context.Context) (map[string]string, error)
	CreateLabel(ctx context.Context, name string, color *category.Color) (string, error)
	ListUnread(ctx context.Context, limit int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	AddLabels(ctx context.Context, id string, labelIDs ...string) error
}

// MailboxFactory opens the mailbox of an account.
type MailboxFactory interface {
	Mailbox(ctx context.Context, account *store.Account) (Mailbox, error)
}

// GmailMailboxes opens Gmail mailboxes with the OAuth client the account's
// refresh token was issued to.
type GmailMailboxes struct {
	selector *google.CredentialSelector
	metrics  *instrumentation.Metrics
	opts     []option.ClientOption
}

// NewGmailMailboxes creates a factory. Extra client options are appended to
// the token source option (tests point them at a fake endpoint).
func NewGmailMailboxes(selector *google.CredentialSelector, metrics *instrumentation.Metrics, opts ...option.ClientOption) *GmailMailboxes {
	return &GmailMailboxes{
		selector: selector,
		metrics:  metrics,
		opts:     opts,
	}
}

// Mailbox implements MailboxFactory.
func (f *GmailMailboxes) Mailbox(ctx context.Context, account *store.Account) (Mailbox, error) {
	ts := f.selector.TokenSource(ctx, account.ID, account.RefreshToken)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)
	client, err := gmail.NewClient(ctx, f.metrics, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}
	return client, nil
}
