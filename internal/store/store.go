package store

import (
	"errors"
	"strings"
	"time"

	"github.com/amurex/inboxtagger/internal/category"
)

// ErrAccountNotFound is returned when no account has the requested id.
var ErrAccountNotFound = errors.New("account not found")

// Google access levels an account can hold.
const (
	AccessNone      = "none"
	AccessFull      = "full"
	AccessGmailOnly = "gmail_only"
	AccessLegacy    = "legacy"
)

// Account is the subset of a user row the pipeline reads.
type Account struct {
	ID                  string
	CreatedAt           time.Time
	RefreshToken        string
	EmailTaggingEnabled bool
	GoogleAccess        string
}

// HasRefreshToken reports whether the account has connected Gmail.
func (a *Account) HasRefreshToken() bool {
	return a != nil && strings.TrimSpace(a.RefreshToken) != ""
}

// EmailRecord is one stored message, unique per (UserID, MessageID).
type EmailRecord struct {
	UserID     string
	MessageID  string
	ThreadID   string
	Sender     string
	Subject    string
	Content    string
	Snippet    string
	ReceivedAt time.Time
	CreatedAt  time.Time
	IsRead     bool

	// Optional columns. Older schemas do not have them; see Store.
	Category      category.Category
	IsCategorized bool
}

// optionalColumns are dropped on retry when the schema rejects them.
var optionalColumns = []string{"category", "is_categorized"}

// IsOptionalColumnError reports whether err was caused by one of the
// optional email columns, e.g. `column "category" of relation "emails" does
// not exist`.
func IsOptionalColumnError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, c := range optionalColumns {
		if strings.Contains(msg, c) {
			return true
		}
	}
	return false
}
