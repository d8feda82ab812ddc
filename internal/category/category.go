package category

import (
	"strconv"
	"strings"
)

// Category is one of the nine fixed email classifications.
// The zero value is not a valid category; use None for "unclassified".
type Category string

// The fixed category list. Order matters: the classifier prompt numbers
// categories 1..9 in this order.
const (
	ToRespond     Category = "to respond"
	FYI           Category = "FYI"
	Comment       Category = "comment"
	Notification  Category = "notification"
	MeetingUpdate Category = "meeting update"
	AwaitingReply Category = "awaiting reply"
	Actioned      Category = "actioned"
	Promotions    Category = "promotions"
	None          Category = "none"
)

// AlreadyLabeled is reported in pipeline results for messages that carried a
// category label before the run. It is not a member of the table.
const AlreadyLabeled = "already_labeled"

// Color is a Gmail label colour pair.
type Color struct {
	Background string
	Text       string
}

// Entry describes a category: its prompt number, name and label colour.
type Entry struct {
	Number   int
	Category Category
	Color    Color
}

var table = []Entry{
	{1, ToRespond, Color{"#fb4c2f", "#ffffff"}},
	{2, FYI, Color{"#16a766", "#ffffff"}},
	{3, Comment, Color{"#ffad47", "#ffffff"}},
	{4, Notification, Color{"#42d692", "#ffffff"}},
	{5, MeetingUpdate, Color{"#8e63ce", "#ffffff"}},
	{6, AwaitingReply, Color{"#ffad47", "#ffffff"}},
	{7, Actioned, Color{"#4986e7", "#ffffff"}},
	{8, Promotions, Color{"#2da2bb", "#ffffff"}},
	{9, None, Color{"#999999", "#ffffff"}},
}

var (
	byNumber = make(map[int]Entry, len(table))
	byName   = make(map[Category]Entry, len(table))
)

func init() {
	for _, e := range table {
		byNumber[e.Number] = e
		byName[e.Category] = e
	}
}

// All returns the category table in prompt order. The returned slice is a copy.
func All() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}

// FromNumber returns the category numbered n (1..9).
func FromNumber(n int) (Category, bool) {
	e, ok := byNumber[n]
	return e.Category, ok
}

// Parse returns the category with the given name.
func Parse(name string) (Category, bool) {
	e, ok := byName[Category(name)]
	return e.Category, ok
}

// Number returns the prompt number of c, or 0 if c is not in the table.
func (c Category) Number() int {
	return byName[c].Number
}

// Color returns the label colour of c.
func (c Category) Color() Color {
	return byName[c].Color
}

// Valid reports whether c is one of the nine categories.
func (c Category) Valid() bool {
	_, ok := byName[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// LabelName returns the namespaced Gmail label name for c, e.g. "Amurex/FYI".
func (c Category) LabelName(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return string(c)
	}
	return prefix + "/" + string(c)
}

// PromptList renders the numbered list used in the classifier instruction.
func PromptList() string {
	var b strings.Builder
	for _, e := range table {
		b.WriteString(strconv.Itoa(e.Number))
		b.WriteString(" = ")
		b.WriteString(string(e.Category))
		b.WriteString("\n")
	}
	return b.String()
}
