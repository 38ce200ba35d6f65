// Package errs defines the engine-wide error taxonomy (spec §7).
//
// Every error that crosses a package boundary in graphqlite carries a Kind — one of
// Scanner/Parse/Transform/Execute/Schema/Resource — a location when one is known, and the
// underlying cause when one exists (typically a host SQL error). The six Kinds are
// gopkg.in/src-d/go-errors.v1 Kinds, which give typed, comparable sentinel errors
// (test code branches with `errs.Parse.Is(err)`) instead of string-matching; host-originated
// errors are attached as the cause via github.com/pkg/errors so the original stack survives
// Cause().
package errs

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	kinderrors "gopkg.in/src-d/go-errors.v1"
)

// The six error kinds named by spec §7, each a distinct comparable sentinel.
var (
	Scanner   = kinderrors.NewKind("scanner error: %s")
	Parse     = kinderrors.NewKind("parse error: %s")
	Transform = kinderrors.NewKind("transform error: %s")
	Execute   = kinderrors.NewKind("execute error: %s")
	Schema    = kinderrors.NewKind("schema error: %s")
	Resource  = kinderrors.NewKind("resource error: %s")
)

// Error decorates a kinderrors.Error with the source location and offending-token context spec
// §7 requires ("a kind tag, a source location... and the offending token or construct").
type Error struct {
	kind  *kinderrors.Kind
	base  error
	pos   string
	token string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e.pos != "" && e.token != "":
		return fmt.Sprintf("%s at %s (near %q)", e.base, e.pos, e.token)
	case e.pos != "":
		return fmt.Sprintf("%s at %s", e.base, e.pos)
	default:
		return e.base.Error()
	}
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Cause() error  { return e.cause }

// Is lets kind.Is(err) (the real go-errors.v1 Kind method) recognize values built here.
func (e *Error) Is(target error) bool { return e.kind.Is(target) }

// Pos is a plain line/column pair; callers format their own ast.Pos into this string.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// New builds an Error with no location information.
func New(kind *kinderrors.Kind, format string, args ...any) *Error {
	return &Error{kind: kind, base: kind.New(fmt.Sprintf(format, args...))}
}

// At builds an Error carrying a source position.
func At(kind *kinderrors.Kind, pos Pos, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.pos = pos.String()
	return e
}

// AtToken builds an Error carrying a position and the offending token text.
func AtToken(kind *kinderrors.Kind, pos Pos, token, format string, args ...any) *Error {
	e := At(kind, pos, format, args...)
	e.token = token
	return e
}

// Wrap attaches a Kind to an existing error (typically a host SQL error), preserving it as the
// Cause so github.com/pkg/errors-style chains still reach the original stack.
func Wrap(kind *kinderrors.Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	e := New(kind, format, args...)
	e.cause = pkgerrors.WithStack(cause)
	return e
}
