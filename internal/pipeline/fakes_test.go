package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/amurex/inboxtagger/internal/category"
	"github.com/amurex/inboxtagger/internal/classifier"
	"github.com/amurex/inboxtagger/internal/gmail"
	"github.com/amurex/inboxtagger/internal/lock"
	"github.com/amurex/inboxtagger/internal/store"
)

func gmailErr(op string, code int) error {
	return &gmail.APIError{Op: op, Code: code, Err: &googleapi.Error{Code: code, Message: http.StatusText(code)}}
}

type labelCreate struct {
	name  string
	color *category.Color
}

// fakeMailbox is a scripted in-memory Gmail mailbox.
type fakeMailbox struct {
	mu sync.Mutex

	labels   map[string]string
	unread   []string
	messages map[string]*gmailapi.Message

	createErr func(name string, color *category.Color) error
	listErr   error
	getErr    map[string]error
	addErr    error

	creates   []labelCreate
	added     map[string][]string
	fetched   []string
	listLimit int
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		labels:   map[string]string{},
		messages: map[string]*gmailapi.Message{},
		getErr:   map[string]error{},
		added:    map[string][]string{},
	}
}

// addMessage adds an unread plain text message.
func (f *fakeMailbox) addMessage(id, from, subject, body string, labelIDs ...string) {
	f.unread = append(f.unread, id)
	f.messages[id] = &gmailapi.Message{
		Id:           id,
		ThreadId:     "t-" + id,
		Snippet:      body,
		InternalDate: 1700000000000,
		LabelIds:     append([]string{gmail.LabelUnread, "INBOX"}, labelIDs...),
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
}

func (f *fakeMailbox) ListLabels(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.labels))
	for k, v := range f.labels {
		out[k] = v
	}
	return out, nil
}

func (f *fakeMailbox) CreateLabel(_ context.Context, name string, color *category.Color) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, labelCreate{name: name, color: color})
	if f.createErr != nil {
		if err := f.createErr(name, color); err != nil {
			return "", err
		}
	}
	id := fmt.Sprintf("Label_%d", len(f.labels)+1)
	f.labels[name] = id
	return id, nil
}

func (f *fakeMailbox) ListUnread(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.unread) > limit {
		return append([]string(nil), f.unread[:limit]...), nil
	}
	return append([]string(nil), f.unread...), nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	m, ok := f.messages[id]
	if !ok {
		return nil, gmailErr("messages.get", http.StatusNotFound)
	}
	return gmail.NewMessage(m), nil
}

func (f *fakeMailbox) AddLabels(_ context.Context, id string, labelIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added[id] = append(f.added[id], labelIDs...)
	return nil
}

type fakeFactory struct {
	mailbox *fakeMailbox
	err     error
	calls   int
}

func (f *fakeFactory) Mailbox(context.Context, *store.Account) (Mailbox, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.mailbox, nil
}

// fakeClassifier answers by subject, falling back to def.
type fakeClassifier struct {
	bySubject map[string]category.Category
	def       category.Category
	err       error
	inputs    []classifier.Input
}

func (f *fakeClassifier) Classify(_ context.Context, in classifier.Input) (category.Category, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	if c, ok := f.bySubject[in.Subject]; ok {
		return c, nil
	}
	return f.def, nil
}

type fakeLocker struct {
	err      error
	released int
}

func (f *fakeLocker) Acquire(context.Context, string) (lock.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}
