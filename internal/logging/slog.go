package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Attribute keys shared by every package so log queries can rely on them.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyUser      = "user_id"
	KeyUserHash  = "user_hash"
	KeyMessageID = "message_id"
	KeyCategory  = "category"
	KeyRequestID = "request_id"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// WithOperation scopes logger to one named operation, e.g. "pipeline.run".
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithService scopes logger to a component such as "gmail" or "store".
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// WithUser scopes logger to an Amurex account.
func WithUser(logger *slog.Logger, userID string) *slog.Logger {
	return logger.With(User(userID))
}

// WithRequestID scopes logger to one HTTP request.
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String(KeyRequestID, requestID))
}

// User is the Amurex account id. It is an opaque UUID, not an address.
func User(userID string) slog.Attr { return slog.String(KeyUser, userID) }

// MessageID is the provider-assigned message id.
func MessageID(id string) slog.Attr { return slog.String(KeyMessageID, id) }

// Category is the label name a message was filed under.
func Category(name string) slog.Attr { return slog.String(KeyCategory, name) }

func Duration(d time.Duration) slog.Attr { return slog.Duration(KeyDuration, d) }

func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Err is safe to call with a nil error; the empty group it returns is
// dropped by every slog handler.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// UserHash logs a sender or recipient address as a short stable hash so that
// entries can be correlated without writing the address itself.
func UserHash(email string) slog.Attr {
	if email == "" {
		return slog.String(KeyUserHash, "")
	}
	sum := sha256.Sum256([]byte(email))
	return slog.String(KeyUserHash, "user:"+hex.EncodeToString(sum[:8]))
}

// SanitizeToken reduces a credential to its length. No prefix is kept:
// token headers alone can identify the issuer and key.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
