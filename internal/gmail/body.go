package gmail

import (
	"encoding/base64"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	gmail "google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"

	// SnippetMarker is appended to bodies recovered from the message snippet.
	SnippetMarker = " [Extracted from snippet]"

	// NoContentPlaceholder is returned when neither the body nor the snippet
	// yields any text.
	NoContentPlaceholder = "[No content could be extracted]"
)

var (
	numericEntity = regexp.MustCompile(`&#(\d+);`)
	tagLike       = regexp.MustCompile(`<[^>]*>`)

	stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)
)

// ExtractBody returns the best plain-text representation of msg.
//
// A text/plain part anywhere in the payload wins over any text/html part.
// HTML is used only when no plain part exists and is reduced to text. When the
// payload yields nothing, the snippet is used with SnippetMarker appended, and
// when that is empty too NoContentPlaceholder is returned. ExtractBody never
// fails; undecodable parts are skipped.
func ExtractBody(payload *gmail.MessagePart, snippet string) string {
	if text, ok := ExtractText(payload); ok {
		return text
	}
	if snippet != "" {
		return decodeNumericEntities(snippet) + SnippetMarker
	}
	return NoContentPlaceholder
}

// ExtractText walks the payload tree and returns the text it carries.
// The boolean is false when the tree has no usable text.
func ExtractText(payload *gmail.MessagePart) (string, bool) {
	if payload == nil {
		return "", false
	}
	if text, ok := findPart(payload, mimeTextPlain); ok {
		return text, true
	}
	if markup, ok := findPart(payload, mimeTextHTML); ok {
		if text := StripHTML(markup); text != "" {
			return text, true
		}
	}
	// Single-part messages without a declared text type still carry their
	// content inline.
	if len(payload.Parts) == 0 && !isMultipart(payload.MimeType) {
		if text, ok := decodeBody(payload.Body); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

// findPart returns the decoded body of the first part with the given MIME type
// in depth-first pre-order.
func findPart(part *gmail.MessagePart, mimeType string) (string, bool) {
	if part == nil {
		return "", false
	}
	if baseMimeType(part.MimeType) == mimeType {
		if text, ok := decodeBody(part.Body); ok && text != "" {
			return text, true
		}
	}
	for _, sub := range part.Parts {
		if text, ok := findPart(sub, mimeType); ok {
			return text, true
		}
	}
	return "", false
}

// decodeBody decodes the base64url data of a message part body.
// Gmail usually omits padding, but padded and standard alphabets show up too.
func decodeBody(body *gmail.MessagePartBody) (string, bool) {
	if body == nil || body.Data == "" {
		return "", false
	}
	data := strings.TrimRight(body.Data, "=")
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return "", false
		}
	}
	return string(decoded), true
}

// StripHTML reduces markup to text: every tag becomes a space, runs of
// whitespace collapse to one space and the result is trimmed. Escaped angle
// brackets that decode into something tag-shaped are removed as well, so the
// result never contains a <...> sequence.
func StripHTML(markup string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(markup))
	text = tagLike.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func decodeNumericEntities(s string) string {
	return numericEntity.ReplaceAllStringFunc(s, func(ref string) string {
		n, err := strconv.Atoi(ref[2 : len(ref)-1])
		if err != nil || n <= 0 || n > 0x10FFFF {
			return ref
		}
		return string(rune(n))
	})
}

func baseMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func isMultipart(mimeType string) bool {
	return strings.HasPrefix(baseMimeType(mimeType), "multipart/")
}
