// Package diagnostics implements the split between fatal errors, which abort
// the current operation, and advisory warnings, which are broadcast on a
// session scoped sink and never alter control flow.
package diagnostics

import (
	"fmt"
)

// Code is a stable, machine readable identifier for an error or warning.
type Code string

// Fatal codes.
const (
	CodeElementNotFound    Code = "ELEMENT_NOT_FOUND"
	CodeElementUnfocusable Code = "ELEMENT_UNFOCUSABLE"
	CodeInvalidMarkup      Code = "INVALID_MARKUP"
	CodeTimeout            Code = "TIMEOUT"
)

// Advisory codes.
const (
	CodeAmbiguousReference Code = "AMBIGUOUS_REFERENCE"
	CodePoorSemantics      Code = "POOR_SEMANTICS"
)

// messageTemplates are interpolated with an Error's Args when no overriding
// Message is set.
var messageTemplates = map[Code]string{
	CodeElementNotFound:    "Unable to locate element with selector %q",
	CodeElementUnfocusable: "Element with selector %q could not receive focus",
	CodeInvalidMarkup:      "Element with selector %q has invalid markup (%s)",
	CodeTimeout:            "Expected state for element with selector %q did not appear in time",
}

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrElementNotFound    = &Error{Code: CodeElementNotFound}
	ErrElementUnfocusable = &Error{Code: CodeElementUnfocusable}
	ErrInvalidMarkup      = &Error{Code: CodeInvalidMarkup}
	ErrTimeout            = &Error{Code: CodeTimeout}
)

// Error is a fatal failure of the current operation.
type Error struct {
	Code    Code
	Args    []interface{}
	Message string
	Link    string
	Err     error
}

// NewError builds an Error for code with positional message arguments.
func NewError(code Code, args ...interface{}) *Error {
	return &Error{Code: code, Args: args}
}

// WithLink sets the documentation link and returns the receiver.
func (e *Error) WithLink(link string) *Error {
	e.Link = link
	return e
}

// WithCause records the underlying error and returns the receiver.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if tmpl, ok := messageTemplates[e.Code]; ok && len(e.Args) > 0 {
			msg = fmt.Sprintf(tmpl, e.Args...)
		} else {
			msg = string(e.Code)
		}
	}
	msg = fmt.Sprintf("%s: %s", e.Code, msg)
	if e.Link != "" {
		msg += " (see " + e.Link + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
