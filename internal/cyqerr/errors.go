// Package cyqerr defines the tagged error taxonomy shared across the query
// engine, so every layer from the parser down to storage reports failures
// the same way instead of inventing its own error type.
//
// Kinds: ParserError, BinderError,
// ConversionError, CopyError, RuntimeError, InternalError, IOError. Callers
// either propagate a *Error unchanged or wrap it with pkg/errors when they
// need to attach call-site context without losing the original Kind.
package cyqerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags an Error with the taxonomy bucket it belongs to.
type Kind string

const (
	KindParser     Kind = "ParserError"
	KindBinder     Kind = "BinderError"
	KindConversion Kind = "ConversionError"
	KindCopy       Kind = "CopyError"
	KindRuntime    Kind = "RuntimeError"
	KindInternal   Kind = "InternalError"
	KindIO         Kind = "IOError"
)

// Position is a 1-based line/column in source text, used by ParserError and
// by CSV errors to report the offending location.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	if p.Line == 0 && p.Column == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is the tagged error type propagated through the engine. It is
// comparable by Kind via errors.Is against a message-less New(kind, "")
// value, and supports errors.Unwrap so pkg/errors.Wrap call sites still
// chain.
type Error struct {
	Kind Kind
	Msg  string
	Pos  Position
	// Substr is the offending substring for ConversionError/CopyError, used
	// to build the user-visible message without re-deriving it at the
	// call site.
	Substr string
	cause  error
}

func (e *Error) Error() string {
	if e.Pos.Line != 0 || e.Pos.Column != 0 {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Msg, e.Pos)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is a *Error with the same Kind (and, when
// target carries a message or position, the same Msg), enabling
// errors.Is(err, cyqerr.New(KindBinder, "")) style Kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Pos == (Position{}) {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// New builds a bare *Error, suitable as an errors.Is sentinel pattern:
//
//	if errors.Is(err, cyqerr.New(cyqerr.KindBinder, "")) { ... }
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds a *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// At attaches a source position to a copy of the error.
func (e *Error) At(pos Position) *Error {
	cp := *e
	cp.Pos = pos
	return &cp
}

// WithSubstr attaches the offending substring to a copy of the error.
func (e *Error) WithSubstr(s string) *Error {
	cp := *e
	cp.Substr = s
	return &cp
}

// Wrap attaches cause as the Unwrap() target while keeping Kind/Msg, mirroring
// pkg/errors.Wrap's "add context, keep the chain" idiom for call sites that
// need to note where a lower-level error was observed.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, cause: errors.WithMessage(err, msg)}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// KindInternal — any error escaping the engine without a Kind is treated as
// a bug to be investigated, not a user-data problem.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
