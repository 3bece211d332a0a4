// Package apperror defines the error taxonomy shared by the engine, the orchestrator and the
// HTTP layer.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "availability_conflict"
	KindInvalidTransition Kind = "invalid_state_transition"
	KindTransient         Kind = "transient_store"
)

// Store-level sentinels. Repositories wrap these; the orchestrator turns them into *Error.
var (
	ErrNotFound  = errors.New("record not found")
	ErrSlotTaken = errors.New("slot already taken")
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString("(" + e.Reason + ")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found", Err: ErrNotFound}
}

// Conflict carries the machine-readable reason code next to the message shown to the client.
func Conflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Reason:  from + "->" + to,
		Message: fmt.Sprintf("cannot move appointment from %s to %s", from, to),
	}
}

func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Message: op + " failed", Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// FromStore classifies an error returned by a repository. Typed errors pass through, the
// not-found sentinel becomes NotFound(what), and anything else is treated as transient.
func FromStore(op, what string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return NotFound(what)
	}
	return Transient(op, err)
}
