package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedToken
	KindLoginFailure
	KindAuthorization
	KindForbidden
	KindVersionConflict
	KindPreconditionMissing
	KindNotFound
	KindValidation
	KindUnreachable
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindMalformedToken:      "malformed_token",
	KindLoginFailure:        "login_failure",
	KindAuthorization:       "authorization_failure",
	KindForbidden:           "forbidden",
	KindVersionConflict:     "version_conflict",
	KindPreconditionMissing: "precondition_missing",
	KindNotFound:            "not_found",
	KindValidation:          "validation_failure",
	KindUnreachable:         "unreachable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// sentinel maps a kind to the sentinel matched by errors.Is.
func (k Kind) sentinel() error {
	switch k {
	case KindMalformedToken:
		return ErrMalformedToken
	case KindLoginFailure:
		return ErrLoginFailed
	case KindAuthorization:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindVersionConflict:
		return ErrVersionConflict
	case KindPreconditionMissing:
		return ErrPreconditionRequired
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindUnreachable:
		return ErrUnreachable
	}
	return nil
}

// Error is a classified failure with a human-readable message.
// Status is the HTTP status that produced it (0 when none).
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details []string
	Err     error // underlying cause, optional
}

// New builds a classified error.
func New(kind Kind, msg string, details ...string) *Error {
	return &Error{Kind: kind, Message: msg, Details: details}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the kind of err, deriving it from sentinels for plain errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{
		KindMalformedToken, KindLoginFailure, KindAuthorization, KindForbidden,
		KindVersionConflict, KindPreconditionMissing, KindNotFound, KindValidation, KindUnreachable,
	} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
