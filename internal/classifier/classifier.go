package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/amurex/inboxtagger/internal/category"
)

var (
	// ErrNoDigit is returned when the model reply contains no digit.
	ErrNoDigit = errors.New("reply contains no category number")

	// ErrOutOfRange is returned when the first digit of the reply is not a
	// category number.
	ErrOutOfRange = errors.New("category number out of range")
)

// DefaultExcerptLength is the number of body characters sent to the model.
const DefaultExcerptLength = 1500

const ellipsis = "..."

// Prompt is a single-turn instruction and user message pair.
type Prompt struct {
	System string
	User   string
}

// Completer sends a prompt to a text generation model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Input is what the classifier sees of a message.
type Input struct {
	From    string
	Subject string
	// Body should already be an excerpt; see Excerpt.
	Body string
}

// Classifier assigns one of the nine categories to a message.
type Classifier struct {
	completer Completer
	system    string
}

// New creates a Classifier backed by completer.
func New(completer Completer) *Classifier {
	return &Classifier{
		completer: completer,
		system:    SystemPrompt(),
	}
}

// Classify asks the model for a category number and maps it to a category.
// It never falls back to category.None itself; callers decide what an error
// means.
func (c *Classifier) Classify(ctx context.Context, in Input) (category.Category, error) {
	reply, err := c.completer.Complete(ctx, Prompt{
		System: c.system,
		User:   UserPrompt(in),
	})
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	return Parse(reply)
}

// Parse extracts the first digit anywhere in reply and maps it to a category.
func Parse(reply string) (category.Category, error) {
	i := strings.IndexFunc(reply, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrNoDigit, reply)
	}
	n := int(reply[i] - '0')
	c, ok := category.FromNumber(n)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return c, nil
}

// SystemPrompt is the fixed instruction listing the numbered categories.
func SystemPrompt() string {
	return "You are an email classifier. Classify the email into one of these categories:\n" +
		category.PromptList() +
		"\nRespond ONLY with the number (1-9). Use category 9 (none) if the email doesn't fit into any of the other categories. " +
		"Do not include any other text, just the single digit number."
}

// UserPrompt renders the message for the model.
func UserPrompt(in Input) string {
	return "Email from: " + in.From + "\nSubject: " + in.Subject + "\n\nBody: " + in.Body
}

// Excerpt truncates body to limit characters and appends "..." when it was
// cut. A limit of zero or less uses DefaultExcerptLength.
func Excerpt(body string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLength
	}
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	n := 0
	for i := range body {
		if n == limit {
			return body[:i] + ellipsis
		}
		n++
	}
	return body
}
