package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/classifier"
	"github.com/amurex/inboxtagger/internal/gmail"
	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/lock"
	"github.com/amurex/inboxtagger/internal/logging"
	"github.com/amurex/inboxtagger/internal/store"
)

// Defaults for Options.
const (
	DefaultPageSize    = 10
	DefaultClassifyCap = 20
)

// Options tune a run.
type Options struct {
	LabelPrefix   string `koanf:"label_prefix"`
	PageSize      int    `koanf:"page_size"`
	ClassifyCap   int    `koanf:"classify_cap"`
	ExcerptLength int    `koanf:"excerpt_length"`
}

func (o *Options) applyDefaults() {
	if o.LabelPrefix == "" {
		o.LabelPrefix = gmail.DefaultLabelPrefix
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.ClassifyCap < 0 {
		o.ClassifyCap = 0
	} else if o.ClassifyCap == 0 {
		o.ClassifyCap = DefaultClassifyCap
	}
	if o.ExcerptLength <= 0 {
		o.ExcerptLength = classifier.DefaultExcerptLength
	}
}

// AccountStore reads accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*store.Account, error)
}

// EmailStore persists email records.
type EmailStore interface {
	ListMessageIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	Store(ctx context.Context, rec store.EmailRecord) (bool, error)
}

// Classifier picks a category for a message.
type Classifier interface {
	Classify(ctx context.Context, in classifier.Input) (category.Category, error)
}

// Locker serializes runs per account.
type Locker interface {
	Acquire(ctx context.Context, userID string) (lock.Release, error)
}

// Request starts a run.
type Request struct {
	UserID            string
	UseStandardColors bool
	// AccessToken is the caller's session token. It is only logged in
	// sanitized form; stores use their own credentials.
	AccessToken string
}

// Result is the per-message entry of a run's summary.
type Result struct {
	MessageID string `json:"messageId"`
	Subject   string `json:"subject"`
	Category  string `json:"category"`
	Success   bool   `json:"success"`
}

// Outcome summarizes a successful run.
type Outcome struct {
	Message string
	// NothingToDo is set when there was no unread mail or all of it was
	// already stored. Only Message and Processed are meaningful then.
	NothingToDo bool
	Processed   int
	TotalStored int
	TotalFound  int
	Results     []Result
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Accounts   AccountStore
	Emails     EmailStore
	Mailboxes  MailboxFactory
	Classifier Classifier
	// Locker defaults to lock.Noop.
	Locker  Locker
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Pipeline ingests and classifies the unread mail of one account per run.
type Pipeline struct {
	accounts   AccountStore
	emails     EmailStore
	mailboxes  MailboxFactory
	classifier Classifier
	locker     Locker
	reconciler *gmail.LabelReconciler
	opts       Options
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	logger     *slog.Logger
}

// New creates a pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Accounts == nil:
		return nil, errors.New("account store is required")
	case deps.Emails == nil:
		return nil, errors.New("email store is required")
	case deps.Mailboxes == nil:
		return nil, errors.New("mailbox factory is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	}
	opts.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = lock.Noop{}
	}

	return &Pipeline{
		accounts:   deps.Accounts,
		emails:     deps.Emails,
		mailboxes:  deps.Mailboxes,
		classifier: deps.Classifier,
		locker:     locker,
		reconciler: gmail.NewLabelReconciler(opts.LabelPrefix, logger),
		opts:       opts,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		logger:     logging.WithOperation(logger, "pipeline.run"),
	}, nil
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run processes the unread mail of req.UserID. Failures are returned as
// *Error; per-message failures are reported in the results instead.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	ctx, span := instrumentation.StartRunSpan(ctx, req.UserID, req.UseStandardColors)
	defer span.End()

	logger := logging.WithUser(p.logger, req.UserID)
	if id := instrumentation.TraceID(ctx); id != "" {
		logger = logger.With(slog.String("trace_id", id))
	}
	if req.AccessToken != "" {
		logger.Debug("request carries caller token", slog.String("token", logging.SanitizeToken(req.AccessToken)))
	}

	out, err := p.run(ctx, logger, req)

	runOutcome := instrumentation.RunProcessed
	switch {
	case err != nil:
		runOutcome = runOutcomeOf(err)
		logger.Warn("run failed", logging.Status(runOutcome), logging.Err(err))
	case out.NothingToDo:
		runOutcome = instrumentation.RunNothingToDo
	}
	instrumentation.SetSpanStatus(span, err)
	p.metrics.RecordPipelineRun(ctx, runOutcome, req.UserID, time.Since(start))

	if out != nil && !out.NothingToDo {
		logger.Info("run complete",
			slog.Int("processed", out.Processed),
			slog.Int("total_stored", out.TotalStored),
			slog.Int("total_found", out.TotalFound),
			logging.Duration(time.Since(start)))
	}
	return out, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, badRequest(MsgUserIDRequired)
	}

	account, err := p.accounts.GetAccount(ctx, req.UserID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, badRequest(MsgCredentialsMissing)
	}
	if err != nil {
		return nil, internal(fmt.Errorf("failed to load account: %w", err))
	}
	if !account.HasRefreshToken() {
		return nil, badRequest(MsgCredentialsMissing)
	}
	if !account.EmailTaggingEnabled {
		return nil, &Error{Kind: KindBadRequest, Msg: MsgTaggingDisabled, Err: errTaggingDisabled}
	}

	release, err := p.locker.Acquire(ctx, account.ID)
	switch {
	case errors.Is(err, lock.ErrLocked):
		return nil, &Error{Kind: KindLocked, Msg: MsgLocked, Err: err}
	case err != nil:
		// Record storage is idempotent, so a run without the lock is safe.
		logger.Warn("account lock unavailable, continuing without it", logging.Err(err))
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release account lock", logging.Err(err))
			}
		}()
	}

	mailbox, err := p.mailboxes.Mailbox(ctx, account)
	if err != nil {
		return nil, mailboxError(err)
	}

	labels, err := p.reconcileLabels(ctx, mailbox, account.ID, req.UseStandardColors)
	if err != nil {
		return nil, err
	}

	ids, err := mailbox.ListUnread(ctx, p.opts.PageSize)
	if err != nil {
		return nil, mailboxError(err)
	}
	if len(ids) == 0 {
		logger.Info("no unread emails")
		return &Outcome{Message: MsgNothingToDo, NothingToDo: true}, nil
	}

	stored, err := p.emails.ListMessageIDs(ctx, account.ID)
	if err != nil {
		logger.Warn("failed to load stored message ids, treating all unread as new", logging.Err(err))
		stored = nil
	}
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := stored[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	logger.Info("found unread emails", slog.Int("unread", len(ids)), slog.Int("new", len(fresh)))
	if len(fresh) == 0 {
		return &Outcome{Message: MsgNothingToDo, NothingToDo: true}, nil
	}

	out := &Outcome{
		Message:    MsgProcessed,
		TotalFound: len(fresh),
		Results:    make([]Result, 0, min(len(fresh), p.opts.ClassifyCap)),
	}
	for i, id := range fresh {
		if err := p.processMessage(ctx, logger, mailbox, labels, account.ID, id, i < p.opts.ClassifyCap, out); err != nil {
			return nil, err
		}
	}
	out.Processed = len(out.Results)
	return out, nil
}

var errTaggingDisabled = errors.New("email tagging disabled")

// reconcileLabels lists the mailbox labels and creates the missing category
// labels. Created labels are audited.
func (p *Pipeline) reconcileLabels(ctx context.Context, mailbox Mailbox, userID string, standardColors bool) (gmail.LabelSet, error) {
	existing, err := mailbox.ListLabels(ctx)
	if err != nil {
		return nil, mailboxError(err)
	}

	labels, err := p.reconciler.Reconcile(ctx, mailbox, existing, standardColors)
	if err != nil {
		return nil, mailboxError(err)
	}

	for _, e := range category.All() {
		name := e.Category.LabelName(p.reconciler.Prefix())
		if _, had := existing[name]; had {
			continue
		}
		if _, ok := labels[e.Category]; ok {
			p.audit.LogMailboxChange(instrumentation.NewMailboxChange(instrumentation.ActionLabelCreated, userID).
				WithLabel(name, e.Category.String()).
				WithSpanContext(ctx).
				Complete(nil))
		}
	}
	return labels, nil
}

// processMessage fetches, optionally classifies and labels, and stores one
// message. Only permission failures are returned; everything else is logged
// and reflected in the message's result.
func (p *Pipeline) processMessage(ctx context.Context, logger *slog.Logger, mailbox Mailbox, labels gmail.LabelSet, userID, id string, eligible bool, out *Outcome) error {
	logger = logger.With(logging.MessageID(id))

	msg, err := mailbox.GetMessage(ctx, id)
	if err != nil {
		if gmail.IsPermissionError(err) {
			return permissionDenied(err)
		}
		logger.Warn("failed to fetch message, skipping", logging.Err(err))
		p.metrics.RecordMessage(ctx, instrumentation.MessageFetchFailed)
		if eligible {
			out.Results = append(out.Results, Result{MessageID: id, Category: string(category.None), Success: false})
		}
		return nil
	}

	rec := store.EmailRecord{
		UserID:     userID,
		MessageID:  msg.ID,
		ThreadID:   msg.ThreadID,
		Sender:     msg.From,
		Subject:    msg.Subject,
		Snippet:    msg.Snippet,
		ReceivedAt: msg.ReceivedAt,
		IsRead:     !msg.Unread,
		Category:   category.None,
	}

	switch {
	case !eligible:
		rec.Content = msg.Body()

	default:
		if existing, ok := labels.CategoryOf(msg.LabelIDs); ok {
			logger.Debug("message already labeled", logging.Category(existing.String()))
			p.metrics.RecordMessage(ctx, instrumentation.MessageAlreadyLabeled)
			rec.Content = msg.Body()
			rec.Category = existing
			rec.IsCategorized = true
			out.Results = append(out.Results, Result{
				MessageID: msg.ID,
				Subject:   msg.Subject,
				Category:  category.AlreadyLabeled,
				Success:   true,
			})
			break
		}

		rec.Content = msg.Body()
		cat := p.classify(ctx, logger, msg, rec.Content)
		rec.Category = cat
		rec.IsCategorized = true

		success := true
		if cat != category.None {
			if err := p.applyLabel(ctx, mailbox, labels, userID, msg, cat); err != nil {
				if gmail.IsPermissionError(err) {
					return permissionDenied(err)
				}
				logger.Warn("failed to apply label", logging.Category(cat.String()), logging.Err(err))
				p.metrics.RecordMessage(ctx, instrumentation.MessageLabelFailed)
				success = false
			} else {
				instrumentation.MessageLabeled(ctx, msg.ID, cat)
			}
		}
		if success {
			p.metrics.RecordMessage(ctx, instrumentation.MessageClassified)
		}
		out.Results = append(out.Results, Result{
			MessageID: msg.ID,
			Subject:   msg.Subject,
			Category:  cat.String(),
			Success:   success,
		})
	}

	inserted, err := p.emails.Store(ctx, rec)
	if err != nil {
		logger.Error("failed to store email", logging.Err(err))
		p.metrics.RecordMessage(ctx, instrumentation.MessageStoreFailed)
		return nil
	}
	if inserted {
		out.TotalStored++
	}
	return nil
}

// classify is the single place where a classification failure becomes
// category.None.
func (p *Pipeline) classify(ctx context.Context, logger *slog.Logger, msg *gmail.Message, body string) category.Category {
	cat, err := p.classifier.Classify(ctx, classifier.Input{
		From:    msg.From,
		Subject: msg.Subject,
		Body:    classifier.Excerpt(body, p.opts.ExcerptLength),
	})
	if err != nil {
		logger.Warn("classification failed, using none", logging.Err(err))
		cat = category.None
	}
	p.metrics.RecordClassification(ctx, cat)
	return cat
}

// applyLabel adds the category label. A category whose label could not be
// reconciled is skipped.
func (p *Pipeline) applyLabel(ctx context.Context, mailbox Mailbox, labels gmail.LabelSet, userID string, msg *gmail.Message, cat category.Category) error {
	labelID, ok := labels[cat]
	if !ok {
		return nil
	}

	change := instrumentation.NewMailboxChange(instrumentation.ActionLabelApplied, userID).
		WithMessage(msg.ID, msg.From).
		WithLabel(cat.LabelName(p.reconciler.Prefix()), cat.String()).
		WithSpanContext(ctx)
	err := mailbox.AddLabels(ctx, msg.ID, labelID)
	p.audit.LogMailboxChange(change.Complete(err))
	return err
}

func mailboxError(err error) *Error {
	if gmail.IsPermissionError(err) {
		return permissionDenied(err)
	}
	return internal(err)
}

func runOutcomeOf(err error) string {
	if errors.Is(err, errTaggingDisabled) {
		return instrumentation.RunTaggingDisabled
	}
	switch KindOf(err) {
	case KindBadRequest:
		return instrumentation.RunBadRequest
	case KindPermission:
		return instrumentation.RunPermission
	case KindLocked:
		return instrumentation.RunLocked
	default:
		return instrumentation.RunError
	}
}
