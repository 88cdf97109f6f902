package sts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Canonical store failure messages.
const (
	MsgDuplicateUserName      = "Duplicate username"
	MsgDuplicateUserID        = "Duplicate user id"
	MsgDuplicateExternalLogin = "Duplicate external login"
	MsgUnknownUser            = "Unknown user"
)

// OperationResult is the outcome of a mutating store call. Business rule
// violations are reported here; I/O failures travel as errors.
type OperationResult struct {
	Succeeded bool     `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

// Success returns a successful result.
func Success() OperationResult {
	return OperationResult{Succeeded: true}
}

// Failed returns a failed result carrying the given messages in order.
func Failed(msgs ...string) OperationResult {
	errs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m = strings.TrimSpace(m); m != "" {
			errs = append(errs, m)
		}
	}
	return OperationResult{Succeeded: false, Errors: errs}
}

// FirstError returns the first error message, or a generic one for failed
// results without messages.
func (r OperationResult) FirstError() string {
	if r.Succeeded {
		return ""
	}
	if len(r.Errors) == 0 {
		return "operation failed"
	}
	return r.Errors[0]
}

// HasError reports whether msg is one of the result messages.
func (r OperationResult) HasError(msg string) bool {
	for _, e := range r.Errors {
		if e == msg {
			return true
		}
	}
	return false
}

// Err converts a failed result into an error, nil on success.
func (r OperationResult) Err() error {
	if r.Succeeded {
		return nil
	}

	msg := r.FirstError()
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithTextCode(textCodeForMessage(msg)).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"errors": r.Errors})
}

func textCodeForMessage(msg string) string {
	switch msg {
	case MsgDuplicateUserName:
		return TextCodeDuplicateUserName
	case MsgDuplicateUserID:
		return TextCodeDuplicateUserID
	case MsgDuplicateExternalLogin:
		return TextCodeDuplicateLogin
	case MsgUnknownUser:
		return TextCodeUnknownUser
	default:
		return TextCodeOperationFailed
	}
}
