package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run for the caller.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindPermission Kind = "insufficient_permissions"
	KindLocked     Kind = "locked"
	KindInternal   Kind = "internal_error"
)

// Caller-facing messages.
const (
	MsgUserIDRequired     = "User ID is required"
	MsgCredentialsMissing = "Google credentials not found"
	MsgTaggingDisabled    = "Email tagging is not enabled for this user"
	MsgPermission         = "Insufficient Gmail permissions. Please disconnect and reconnect your Google account with the necessary permissions."
	MsgLocked             = "Emails are already being processed for this user"
	MsgNothingToDo        = "No new emails to process"
	MsgProcessed          = "Emails processed successfully"
)

// Error is returned by Run. Msg is safe to show to the caller.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Msg: msg}
}

func permissionDenied(err error) *Error {
	return &Error{Kind: KindPermission, Msg: MsgPermission, Err: err}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "Error processing emails: " + err.Error(), Err: err}
}

// KindOf returns the kind of err, KindInternal for errors not produced by Run.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}
