package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Mailbox change actions.
const (
	ActionLabelCreated = "label_created"
	ActionLabelApplied = "label_applied"
)

// MailboxChange captures a write made to a user's mailbox for the audit trail.
//
// # Privacy Considerations
//
// Sender contains PII. Unless the audit logger is configured to include PII,
// only the sender domain is logged.
type MailboxChange struct {
	Action string

	// Account the change was made in
	UserID string

	// Target of the change
	MessageID string
	Label     string
	Category  string
	Sender    string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewMailboxChange creates a MailboxChange with timing started.
// Call Complete when the Gmail call returns.
func NewMailboxChange(action, userID string) *MailboxChange {
	return &MailboxChange{
		Action:    action,
		UserID:    userID,
		StartTime: time.Now(),
	}
}

// WithMessage sets the message the change applies to.
func (mc *MailboxChange) WithMessage(messageID, sender string) *MailboxChange {
	mc.MessageID = messageID
	mc.Sender = sender
	return mc
}

// WithLabel sets the label and category involved.
func (mc *MailboxChange) WithLabel(label, category string) *MailboxChange {
	mc.Label = label
	mc.Category = category
	return mc
}

// WithSpanContext extracts trace context from the current span.
func (mc *MailboxChange) WithSpanContext(ctx context.Context) *MailboxChange {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		mc.TraceID = span.SpanContext().TraceID().String()
		mc.SpanID = span.SpanContext().SpanID().String()
	}
	return mc
}

// Complete marks the change as finished and calculates duration.
func (mc *MailboxChange) Complete(err error) *MailboxChange {
	mc.Duration = time.Since(mc.StartTime)
	mc.Success = err == nil
	if err != nil {
		mc.Error = err.Error()
	}
	return mc
}

// Status returns "success" or "error" based on the Success field.
func (mc *MailboxChange) Status() string {
	if mc.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the change. The sender is reduced to
// its domain unless includePII is set.
func (mc *MailboxChange) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", mc.Action),
		slog.String("user_id", mc.UserID),
		slog.Duration("duration", mc.Duration),
		slog.Bool("success", mc.Success),
	}

	if mc.MessageID != "" {
		attrs = append(attrs, slog.String("message_id", mc.MessageID))
	}
	if mc.Label != "" {
		attrs = append(attrs, slog.String("label", mc.Label))
	}
	if mc.Category != "" {
		attrs = append(attrs, slog.String("category", mc.Category))
	}
	if mc.Sender != "" {
		if includePII {
			attrs = append(attrs, slog.String("sender", mc.Sender))
		} else {
			attrs = append(attrs, slog.String("sender_domain", ExtractUserDomain(mc.Sender)))
		}
	}
	if mc.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", mc.TraceID))
	}
	if mc.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", mc.SpanID))
	}
	if mc.Error != "" {
		attrs = append(attrs, slog.String("error", mc.Error))
	}

	return attrs
}

// AuditLogger records mailbox changes as structured log lines.
// A nil *AuditLogger is valid and logs nothing.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogMailboxChange logs a completed mailbox change.
func (al *AuditLogger) LogMailboxChange(mc *MailboxChange) {
	if al == nil || !al.enabled || mc == nil {
		return
	}

	attrs := mc.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if mc.Success {
		al.logger.Info("mailbox_changed", args...)
	} else {
		al.logger.Warn("mailbox_change_failed", args...)
	}
}
