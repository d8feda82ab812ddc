package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/lock"
	"github.com/amurex/inboxtagger/internal/store"
)

const testUser = "user-1"

type harness struct {
	store      *store.Memory
	mailbox    *fakeMailbox
	factory    *fakeFactory
	classifier *fakeClassifier
	locker     *fakeLocker
}

func newHarness() *harness {
	h := &harness{
		store:      store.NewMemory(),
		mailbox:    newFakeMailbox(),
		classifier: &fakeClassifier{def: category.FYI},
		locker:     &fakeLocker{},
	}
	h.factory = &fakeFactory{mailbox: h.mailbox}
	h.store.PutAccount(store.Account{
		ID:                  testUser,
		CreatedAt:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RefreshToken:        "refresh",
		EmailTaggingEnabled: true,
		GoogleAccess:        store.AccessFull,
	})
	return h
}

func (h *harness) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(Deps{
		Accounts:   h.store,
		Emails:     h.store,
		Mailboxes:  h.factory,
		Classifier: h.classifier,
		Locker:     h.locker,
	}, opts)
	require.NoError(t, err)
	return p
}

func (h *harness) run(t *testing.T, opts Options, req Request) (*Outcome, error) {
	t.Helper()
	if req.UserID == "" {
		req.UserID = testUser
	}
	return h.pipeline(t, opts).Run(context.Background(), req)
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr), "expected *Error, got %T: %v", err, err)
	assert.Equal(t, kind, perr.Kind)
	return perr
}

func TestRunThreeNewMessages(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "Alice <alice@example.com>", "Please reply", "Can you confirm?")
	h.mailbox.addMessage("m2", "news@shop.example", "Big sale", "50% off")
	h.mailbox.addMessage("m3", "bot@ci.example", "Build passed", "All green")
	h.classifier.bySubject = map[string]category.Category{
		"Please reply": category.ToRespond,
		"Big sale":     category.Promotions,
		"Build passed": category.Notification,
	}

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)

	assert.Equal(t, MsgProcessed, out.Message)
	assert.False(t, out.NothingToDo)
	assert.Equal(t, 3, out.Processed)
	assert.Equal(t, 3, out.TotalFound)
	assert.Equal(t, 3, out.TotalStored)
	require.Len(t, out.Results, 3)
	assert.Equal(t, Result{MessageID: "m1", Subject: "Please reply", Category: "to respond", Success: true}, out.Results[0])
	assert.Equal(t, "promotions", out.Results[1].Category)
	assert.Equal(t, "notification", out.Results[2].Category)

	// All nine labels were created and the classified ones applied.
	assert.Len(t, h.mailbox.creates, 9)
	assert.Equal(t, []string{h.mailbox.labels["Amurex/to respond"]}, h.mailbox.added["m1"])
	assert.Equal(t, []string{h.mailbox.labels["Amurex/promotions"]}, h.mailbox.added["m2"])

	records := h.store.Records(testUser)
	require.Len(t, records, 3)
	assert.Equal(t, "Can you confirm?", records[0].Content)
	assert.Equal(t, category.ToRespond, records[0].Category)
	assert.True(t, records[0].IsCategorized)
	assert.Equal(t, "t-m1", records[0].ThreadID)
	assert.False(t, records[0].IsRead)
	assert.Equal(t, 1, h.locker.released)
	assert.Equal(t, DefaultPageSize, h.mailbox.listLimit)
}

func TestRunClassificationCap(t *testing.T) {
	h := newHarness()
	for i := 0; i < 25; i++ {
		h.mailbox.addMessage(fmt.Sprintf("m%02d", i), "a@example.com", fmt.Sprintf("subject %d", i), "body")
	}

	out, err := h.run(t, Options{PageSize: 50, ClassifyCap: 20}, Request{})
	require.NoError(t, err)

	assert.Equal(t, 20, out.Processed)
	assert.Len(t, out.Results, 20)
	assert.Equal(t, 25, out.TotalFound)
	assert.Equal(t, 25, out.TotalStored)
	assert.Len(t, h.classifier.inputs, 20)
	assert.Len(t, h.mailbox.added, 20)

	records := h.store.Records(testUser)
	require.Len(t, records, 25)
	for _, r := range records[20:] {
		assert.Equal(t, category.None, r.Category)
		assert.False(t, r.IsCategorized)
		assert.Equal(t, "body", r.Content)
		assert.Empty(t, h.mailbox.added[r.MessageID])
	}
}

func TestRunPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		account *store.Account
		userID  string
		wantMsg string
	}{
		{
			name:    "missing user id",
			userID:  "  ",
			wantMsg: MsgUserIDRequired,
		},
		{
			name:    "unknown account",
			userID:  "nobody",
			wantMsg: MsgCredentialsMissing,
		},
		{
			name:    "no refresh token",
			account: &store.Account{ID: testUser, EmailTaggingEnabled: true},
			wantMsg: MsgCredentialsMissing,
		},
		{
			name:    "tagging disabled",
			account: &store.Account{ID: testUser, RefreshToken: "refresh", EmailTaggingEnabled: false},
			wantMsg: MsgTaggingDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.mailbox.addMessage("m1", "a@example.com", "s", "b")
			if tt.account != nil {
				h.store.PutAccount(*tt.account)
			}

			_, err := h.run(t, Options{}, Request{UserID: tt.userID})
			perr := requireKind(t, err, KindBadRequest)
			assert.Equal(t, tt.wantMsg, perr.Msg)

			assert.Zero(t, h.factory.calls, "mailbox must not be opened")
			assert.Empty(t, h.mailbox.creates)
			assert.Empty(t, h.mailbox.fetched)
		})
	}
}

func TestRunDeduplicates(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.addMessage("m2", "a@example.com", "two", "b2")
	h.mailbox.addMessage("m3", "a@example.com", "three", "b3")
	_, err := h.store.Store(context.Background(), store.EmailRecord{UserID: testUser, MessageID: "m2", Subject: "stored earlier"})
	require.NoError(t, err)

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TotalFound)
	assert.Equal(t, 2, out.TotalStored)
	assert.NotContains(t, h.mailbox.fetched, "m2")

	records := h.store.Records(testUser)
	require.Len(t, records, 3)
	assert.Equal(t, "stored earlier", records[1].Subject)

	// A second run finds nothing new and stores nothing.
	out, err = h.run(t, Options{}, Request{})
	require.NoError(t, err)
	assert.True(t, out.NothingToDo)
	assert.Equal(t, MsgNothingToDo, out.Message)
	assert.Zero(t, out.Processed)
	assert.Len(t, h.store.Records(testUser), 3)

	// Labels were created only once.
	assert.Len(t, h.mailbox.creates, 9)
}

func TestRunNoUnreadMail(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	assert.True(t, out.NothingToDo)
	assert.Equal(t, MsgNothingToDo, out.Message)
	assert.Nil(t, out.Results)
}

func TestRunLabelPermissionDenied(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "s", "b")
	h.mailbox.createErr = func(string, *category.Color) error {
		return gmailErr("labels.create", http.StatusForbidden)
	}

	out, err := h.run(t, Options{}, Request{})
	assert.Nil(t, out)
	perr := requireKind(t, err, KindPermission)
	assert.Equal(t, MsgPermission, perr.Msg)

	assert.Empty(t, h.mailbox.fetched)
	assert.Empty(t, h.store.Records(testUser))
}

func TestRunPromotionsColourRetry(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "shop@example.com", "Sale", "cheap")
	h.classifier.def = category.Promotions
	h.mailbox.createErr = func(name string, color *category.Color) error {
		if name == "Amurex/promotions" && color != nil {
			return gmailErr("labels.create", http.StatusBadRequest)
		}
		return nil
	}

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)

	id, ok := h.mailbox.labels["Amurex/promotions"]
	require.True(t, ok)
	assert.Equal(t, []string{id}, h.mailbox.added["m1"])
	assert.Len(t, h.mailbox.creates, 10)
}

func TestRunStandardColours(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, Options{}, Request{UseStandardColors: true})
	require.NoError(t, err)
	require.Len(t, h.mailbox.creates, 9)
	for _, c := range h.mailbox.creates {
		assert.Nil(t, c.color, c.name)
	}
}

func TestRunCustomLabelPrefix(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, Options{LabelPrefix: "Triage"}, Request{})
	require.NoError(t, err)
	assert.Contains(t, h.mailbox.labels, "Triage/FYI")
}

func TestRunAlreadyLabeled(t *testing.T) {
	h := newHarness()
	h.mailbox.labels["Amurex/comment"] = "Label_comment"
	h.mailbox.addMessage("m1", "a@example.com", "Old thread", "real body text", "Label_comment")

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, Result{MessageID: "m1", Subject: "Old thread", Category: category.AlreadyLabeled, Success: true}, out.Results[0])
	assert.Empty(t, h.classifier.inputs)
	assert.Empty(t, h.mailbox.added)

	records := h.store.Records(testUser)
	require.Len(t, records, 1)
	assert.Equal(t, "real body text", records[0].Content)
	assert.Equal(t, category.Comment, records[0].Category)
	assert.Equal(t, 1, out.TotalStored)
}

func TestRunLabelApplyFailure(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.addMessage("m2", "a@example.com", "two", "b2")
	h.mailbox.addErr = gmailErr("messages.modify", http.StatusInternalServerError)

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	for _, r := range out.Results {
		assert.False(t, r.Success)
		assert.Equal(t, "FYI", r.Category)
	}
	assert.Equal(t, 2, out.TotalStored)
}

func TestRunLabelApplyPermissionDenied(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.addErr = gmailErr("messages.modify", http.StatusUnauthorized)

	_, err := h.run(t, Options{}, Request{})
	requireKind(t, err, KindPermission)
}

func TestRunClassifierFailureFallsBackToNone(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.classifier.err = errors.New("model unavailable")

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "none", out.Results[0].Category)
	assert.True(t, out.Results[0].Success)
	assert.Empty(t, h.mailbox.added)
	assert.Equal(t, category.None, h.store.Records(testUser)[0].Category)
}

func TestRunExcerptsBody(t *testing.T) {
	h := newHarness()
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	h.mailbox.addMessage("m1", "a@example.com", "long", string(long))

	_, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, h.classifier.inputs, 1)
	assert.Len(t, h.classifier.inputs[0].Body, 1503)
	assert.Len(t, h.store.Records(testUser)[0].Content, 2000)
}

func TestRunStoreFailureContinues(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.addMessage("m2", "a@example.com", "two", "b2")
	h.store.InsertErr = errors.New("database unavailable")

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Processed)
	assert.Zero(t, out.TotalStored)
	assert.Equal(t, 2, out.TotalFound)
}

func TestRunFetchFailureSkipsMessage(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.addMessage("m2", "a@example.com", "two", "b2")
	h.mailbox.getErr["m1"] = gmailErr("messages.get", http.StatusInternalServerError)

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.False(t, out.Results[0].Success)
	assert.True(t, out.Results[1].Success)
	assert.Equal(t, 1, out.TotalStored)
}

func TestRunFetchPermissionDenied(t *testing.T) {
	h := newHarness()
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")
	h.mailbox.getErr["m1"] = gmailErr("messages.get", http.StatusForbidden)

	_, err := h.run(t, Options{}, Request{})
	requireKind(t, err, KindPermission)
	assert.Empty(t, h.store.Records(testUser))
}

func TestRunListFailure(t *testing.T) {
	h := newHarness()
	h.mailbox.listErr = gmailErr("messages.list", http.StatusInternalServerError)

	_, err := h.run(t, Options{}, Request{})
	perr := requireKind(t, err, KindInternal)
	assert.Contains(t, perr.Msg, "Error processing emails: ")
}

func TestRunMailboxOpenFailure(t *testing.T) {
	h := newHarness()
	h.factory.err = errors.New("no transport")

	_, err := h.run(t, Options{}, Request{})
	requireKind(t, err, KindInternal)
}

func TestRunLocked(t *testing.T) {
	h := newHarness()
	h.locker.err = lock.ErrLocked

	_, err := h.run(t, Options{}, Request{})
	requireKind(t, err, KindLocked)
	assert.Zero(t, h.factory.calls)
}

func TestRunLockUnavailableContinues(t *testing.T) {
	h := newHarness()
	h.locker.err = errors.New("redis down")
	h.mailbox.addMessage("m1", "a@example.com", "one", "b1")

	out, err := h.run(t, Options{}, Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Processed)
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBadRequest, KindOf(badRequest("x")))
	assert.Equal(t, KindPermission, KindOf(fmt.Errorf("wrapped: %w", permissionDenied(errors.New("x")))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
