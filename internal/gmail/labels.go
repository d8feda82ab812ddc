package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/logging"
)

// DefaultLabelPrefix namespaces category labels away from user labels.
const DefaultLabelPrefix = "Amurex"

// LabelCreator creates a label and returns its provider id.
type LabelCreator interface {
	CreateLabel(ctx context.Context, name string, color *category.Color) (string, error)
}

// LabelSet maps each reconciled category to its Gmail label id.
type LabelSet map[category.Category]string

// CategoryOf returns the category of the first label in labelIDs that belongs
// to the set.
func (s LabelSet) CategoryOf(labelIDs []string) (category.Category, bool) {
	if len(s) == 0 {
		return "", false
	}
	byID := make(map[string]category.Category, len(s))
	for c, id := range s {
		byID[id] = c
	}
	for _, id := range labelIDs {
		if c, ok := byID[id]; ok {
			return c, true
		}
	}
	return "", false
}

// LabelReconciler makes sure every category has a namespaced label.
type LabelReconciler struct {
	prefix string
	logger *slog.Logger
}

// NewLabelReconciler creates a reconciler using prefix for label names.
// An empty prefix falls back to DefaultLabelPrefix.
func NewLabelReconciler(prefix string, logger *slog.Logger) *LabelReconciler {
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelReconciler{
		prefix: prefix,
		logger: logging.WithOperation(logger, "gmail.labels.reconcile"),
	}
}

// Prefix returns the label namespace.
func (r *LabelReconciler) Prefix() string {
	return r.prefix
}

// Reconcile returns the label id of every category, reusing labels that
// already exist (existing maps label name to id) and creating the rest.
//
// Colours are requested unless standardColors is set. A rejected colour is
// retried once without one. Labels that still cannot be created are left out
// of the result. A permission failure aborts the whole reconciliation and
// returns an error matching ErrPermissionDenied.
func (r *LabelReconciler) Reconcile(ctx context.Context, creator LabelCreator, existing map[string]string, standardColors bool) (LabelSet, error) {
	labels := make(LabelSet, len(category.All()))

	for _, entry := range category.All() {
		name := entry.Category.LabelName(r.prefix)
		if id, ok := existing[name]; ok {
			labels[entry.Category] = id
			continue
		}

		var color *category.Color
		if !standardColors {
			c := entry.Color
			color = &c
		}

		id, err := r.create(ctx, creator, name, color)
		switch {
		case err == nil:
			labels[entry.Category] = id
		case errors.Is(err, ErrPermissionDenied):
			return nil, fmt.Errorf("failed to create label %q: %w", name, err)
		default:
			r.logger.Warn("skipping label",
				slog.String("label", name),
				logging.Err(err))
		}
	}

	return labels, nil
}

func (r *LabelReconciler) create(ctx context.Context, creator LabelCreator, name string, color *category.Color) (string, error) {
	id, err := creator.CreateLabel(ctx, name, color)
	if err == nil || color == nil || !errors.Is(err, ErrBadRequest) {
		return id, err
	}

	r.logger.Warn("label colour rejected, retrying without colour",
		slog.String("label", name),
		logging.Err(err))

	id, err = creator.CreateLabel(ctx, name, nil)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return "", err
		}
		return "", fmt.Errorf("failed to create label without colour: %w", err)
	}
	return id, nil
}
