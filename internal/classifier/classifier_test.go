package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amurex/inboxtagger/internal/category"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt Prompt
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, p Prompt) (string, error) {
	f.calls++
	f.prompt = p
	return f.reply, f.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    category.Category
		wantErr error
	}{
		{name: "bare digit", reply: "1", want: category.ToRespond},
		{name: "digit with text", reply: "Category: 3 (comment)", want: category.Comment},
		{name: "first digit wins", reply: "8 or maybe 2", want: category.Promotions},
		{name: "none", reply: "9", want: category.None},
		{name: "whitespace", reply: "\n 5 \n", want: category.MeetingUpdate},
		{name: "zero", reply: "0", wantErr: ErrOutOfRange},
		{name: "multi digit uses first", reply: "12", want: category.ToRespond},
		{name: "no digit", reply: "promotions", wantErr: ErrNoDigit},
		{name: "empty", reply: "", wantErr: ErrNoDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.reply)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	fc := &fakeCompleter{reply: "Category: 3 (comment)"}
	c := New(fc)

	got, err := c.Classify(context.Background(), Input{
		From:    "Alice <alice@example.com>",
		Subject: "Review my doc",
		Body:    "Please have a look.",
	})
	require.NoError(t, err)
	assert.Equal(t, category.Comment, got)
	assert.Equal(t, 1, fc.calls)

	assert.Equal(t, "Email from: Alice <alice@example.com>\nSubject: Review my doc\n\nBody: Please have a look.", fc.prompt.User)
	assert.Equal(t, SystemPrompt(), fc.prompt.System)
}

func TestClassifyTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	c := New(&fakeCompleter{err: boom})

	got, err := c.Classify(context.Background(), Input{Subject: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "classification request failed")
	assert.Empty(t, got)
}

func TestClassifyUnparseableReply(t *testing.T) {
	c := New(&fakeCompleter{reply: "I cannot decide"})

	_, err := c.Classify(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrNoDigit)
}

func TestSystemPromptListsCategories(t *testing.T) {
	p := SystemPrompt()
	for _, e := range category.All() {
		assert.Contains(t, p, e.Category.String())
	}
	assert.Contains(t, p, "1 = to respond\n")
	assert.Contains(t, p, "9 = none\n")
	assert.Contains(t, p, "single digit number")
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int
		want  string
	}{
		{name: "short", body: "hello", limit: 10, want: "hello"},
		{name: "exact", body: "hello", limit: 5, want: "hello"},
		{name: "cut", body: "hello world", limit: 5, want: "hello..."},
		{name: "runes", body: "héllo wörld", limit: 4, want: "héll..."},
		{name: "empty", body: "", limit: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Excerpt(tt.body, tt.limit))
		})
	}
}

func TestExcerptDefaultLength(t *testing.T) {
	body := strings.Repeat("a", 2000)
	got := Excerpt(body, 0)
	assert.Len(t, got, DefaultExcerptLength+len("..."))
	assert.True(t, strings.HasSuffix(got, "..."))

	exact := strings.Repeat("b", DefaultExcerptLength)
	assert.Equal(t, exact, Excerpt(exact, 0))
}
