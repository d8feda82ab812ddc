package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// Label values that come from user data or model output are reduced to a
// fixed set before they reach a metric.

// Outcome values for pipeline runs.
const (
	RunProcessed       = "processed"
	RunNothingToDo     = "nothing_to_do"
	RunTaggingDisabled = "tagging_disabled"
	RunBadRequest      = "bad_request"
	RunPermission      = "insufficient_permissions"
	RunLocked          = "locked"
	RunError           = "error"
)

// Outcome values for individual messages.
const (
	MessageClassified     = "classified"
	MessageAlreadyLabeled = "already_labeled"
	MessageLabelFailed    = "label_failed"
	MessageFetchFailed    = "fetch_failed"
	MessageStoreFailed    = "store_failed"
)

// Credential generations.
const (
	CredentialLegacy  = "legacy"
	CredentialCurrent = "current"
)

const labelOther = "other"

// BoundedLabel returns value when it is one of allowed and "other" otherwise.
//
// Example:
//
//	BoundedLabel("fyi", "fyi", "none")        // "fyi"
//	BoundedLabel("I think 3", "fyi", "none")  // "other"
func BoundedLabel(value string, allowed ...string) string {
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return labelOther
}

// ExtractUserDomain extracts the domain part from an email address or a
// "Name <address>" header value.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")               // "example.com"
//	ExtractUserDomain("Jane <jane@example.com>")        // "example.com"
//	ExtractUserDomain("invalid")                        // "unknown"
func ExtractUserDomain(email string) string {
	if i := strings.LastIndexByte(email, '<'); i >= 0 {
		email = strings.TrimSuffix(email[i+1:], ">")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}
