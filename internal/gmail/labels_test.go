package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/amurex/inboxtagger/internal/category"
)

type createCall struct {
	name  string
	color *category.Color
}

// fakeLabels records label creation and keeps the created labels so that a
// second reconciliation sees them as existing.
type fakeLabels struct {
	calls    []createCall
	existing map[string]string
	failWith func(name string, color *category.Color) error
}

func newFakeLabels() *fakeLabels {
	return &fakeLabels{existing: map[string]string{}}
}

func (f *fakeLabels) CreateLabel(_ context.Context, name string, color *category.Color) (string, error) {
	f.calls = append(f.calls, createCall{name: name, color: color})
	if f.failWith != nil {
		if err := f.failWith(name, color); err != nil {
			return "", err
		}
	}
	id := fmt.Sprintf("Label_%d", len(f.existing)+1)
	f.existing[name] = id
	return id, nil
}

func apiError(op string, code int, reason string) error {
	return wrapError(op, &googleapi.Error{
		Code:   code,
		Errors: []googleapi.ErrorItem{{Reason: reason}},
	})
}

func TestReconcileCreatesMissingLabels(t *testing.T) {
	r := NewLabelReconciler("", nil)
	fake := newFakeLabels()

	first, err := r.Reconcile(context.Background(), fake, map[string]string{"INBOX": "INBOX"}, false)
	require.NoError(t, err)
	assert.Len(t, first, len(category.All()))
	assert.Len(t, fake.calls, len(category.All()))

	for _, call := range fake.calls {
		require.NotNil(t, call.color, "label %s should carry a colour", call.name)
	}
	assert.Equal(t, "Amurex/to respond", fake.calls[0].name)
	assert.Equal(t, category.ToRespond.Color(), *fake.calls[0].color)

	// A second pass with the now existing labels creates nothing.
	existing := make(map[string]string, len(fake.existing))
	for k, v := range fake.existing {
		existing[k] = v
	}
	fake.calls = nil
	second, err := r.Reconcile(context.Background(), fake, existing, false)
	require.NoError(t, err)
	assert.Empty(t, fake.calls)
	assert.Equal(t, first, second)
}

func TestReconcileStandardColors(t *testing.T) {
	r := NewLabelReconciler("Amurex", nil)
	fake := newFakeLabels()

	_, err := r.Reconcile(context.Background(), fake, nil, true)
	require.NoError(t, err)
	require.NotEmpty(t, fake.calls)
	for _, call := range fake.calls {
		assert.Nil(t, call.color)
	}
}

func TestReconcileRetriesWithoutColour(t *testing.T) {
	r := NewLabelReconciler("Amurex", nil)
	fake := newFakeLabels()
	promotions := category.Promotions.LabelName("Amurex")
	fake.failWith = func(name string, color *category.Color) error {
		if name == promotions && color != nil {
			return apiError("labels.create", http.StatusBadRequest, "invalidArgument")
		}
		return nil
	}

	labels, err := r.Reconcile(context.Background(), fake, nil, false)
	require.NoError(t, err)
	assert.Len(t, labels, len(category.All()))
	assert.Contains(t, labels, category.Promotions)

	var attempts []createCall
	for _, c := range fake.calls {
		if c.name == promotions {
			attempts = append(attempts, c)
		}
	}
	require.Len(t, attempts, 2)
	assert.NotNil(t, attempts[0].color)
	assert.Nil(t, attempts[1].color)
}

func TestReconcileSkipsFailedLabel(t *testing.T) {
	r := NewLabelReconciler("Amurex", nil)
	fake := newFakeLabels()
	fyi := category.FYI.LabelName("Amurex")
	fake.failWith = func(name string, _ *category.Color) error {
		if name == fyi {
			return apiError("labels.create", http.StatusConflict, "duplicate")
		}
		return nil
	}

	labels, err := r.Reconcile(context.Background(), fake, nil, false)
	require.NoError(t, err)
	assert.Len(t, labels, len(category.All())-1)
	assert.NotContains(t, labels, category.FYI)
}

func TestReconcileAbortsOnPermissionError(t *testing.T) {
	r := NewLabelReconciler("Amurex", nil)
	fake := newFakeLabels()
	fake.failWith = func(string, *category.Color) error {
		return apiError("labels.create", http.StatusForbidden, "insufficientPermissions")
	}

	labels, err := r.Reconcile(context.Background(), fake, nil, false)
	require.Error(t, err)
	assert.Nil(t, labels)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.Len(t, fake.calls, 1)
}

func TestLabelSetCategoryOf(t *testing.T) {
	set := LabelSet{
		category.ToRespond: "Label_1",
		category.FYI:       "Label_2",
	}

	c, ok := set.CategoryOf([]string{"INBOX", "UNREAD", "Label_2"})
	assert.True(t, ok)
	assert.Equal(t, category.FYI, c)

	_, ok = set.CategoryOf([]string{"INBOX"})
	assert.False(t, ok)

	_, ok = LabelSet(nil).CategoryOf([]string{"Label_1"})
	assert.False(t, ok)
}
