package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrPermissionDenied is matched by errors caused by a revoked or
	// insufficient Gmail grant. The user has to reconnect their account.
	ErrPermissionDenied = errors.New("insufficient Gmail permissions")

	// ErrBadRequest is matched by errors the Gmail API rejected as invalid
	// (for example an unsupported label colour).
	ErrBadRequest = errors.New("gmail rejected the request")
)

// APIError wraps an error returned by a Gmail API call with the operation
// that produced it and the HTTP status code, if one was reported.
type APIError struct {
	Op   string
	Code int
	Err  error
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gmail %s failed (status %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gmail %s failed: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers match APIError against ErrPermissionDenied and ErrBadRequest.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return isPermissionError(e.Err)
	case ErrBadRequest:
		return e.Code == http.StatusBadRequest
	}
	return false
}

// wrapError annotates err with op and status code. nil stays nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Op: op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr.Code = gerr.Code
	}
	var rerr *oauth2.RetrieveError
	if apiErr.Code == 0 && errors.As(err, &rerr) && rerr.Response != nil {
		apiErr.Code = rerr.Response.StatusCode
	}
	return apiErr
}

// IsPermissionError reports whether err is an authentication or authorization
// failure from Gmail or from the OAuth token endpoint.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func isPermissionError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return true
		case http.StatusForbidden:
			return !isRateLimited(gerr)
		}
		return false
	}

	// A refresh token that was revoked or issued to another client fails at
	// the token endpoint before any Gmail call is made.
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		switch rerr.ErrorCode {
		case "invalid_grant", "unauthorized_client", "invalid_client":
			return true
		}
		return rerr.Response != nil && (rerr.Response.StatusCode == http.StatusUnauthorized || rerr.Response.StatusCode == http.StatusForbidden)
	}
	return false
}

// isRateLimited distinguishes quota 403s from permission 403s.
func isRateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return true
		}
	}
	return strings.Contains(strings.ToLower(gerr.Message), "rate limit")
}
