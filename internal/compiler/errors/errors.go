// Package errors defines the compiler's diagnostic error kinds and funnels
// every span-carrying error through span.FormatDiagnostic.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/sh2c/sh2c/internal/compiler/span"
)

// Kind enumerates the compiler's diagnostic categories.
type Kind string

const (
	Lex      Kind = "lex"
	Parse    Kind = "parse"
	Import   Kind = "import"
	Semantic Kind = "semantic"
	Lower    Kind = "lower"
	Codegen  Kind = "codegen"
	Lint     Kind = "lint"
)

// CompileError is a single diagnostic with a source position. It is the only
// error type the lexer, parser, loader, binder, lower, and codegen packages
// produce; the driver renders it with Format before returning exit code 2.
type CompileError struct {
	Kind    Kind
	Message string
	File    string
	Span    span.Span
	SM      *span.SourceMap // nil if the SourceMap is unavailable (e.g. a sub-parser hole remapped after the fact)
}

func (e *CompileError) Error() string {
	if e.SM == nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.File, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Format renders the error through span.FormatDiagnostic when a SourceMap is
// available, falling back to a bare one-liner otherwise.
func (e *CompileError) Format() string {
	if e.SM == nil {
		return fmt.Sprintf("error: %s\n--> %s\n", e.Message, e.File)
	}
	return span.FormatDiagnostic(e.SM, e.Message, e.Span)
}

// New constructs a CompileError anchored at sp within sm.
func New(kind Kind, sm *span.SourceMap, sp span.Span, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    sm.File,
		Span:    sp,
		SM:      sm,
	}
}

// List accumulates CompileErrors. The parser uses it for fail-fast: the
// caller stops at the first entry in practice, but List supports collecting
// the (typically one) fatal error plus any trailing recovery noise for
// debugging.
type List struct {
	Errors []*CompileError
}

func (l *List) Add(e *CompileError) { l.Errors = append(l.Errors, e) }
func (l *List) HasErrors() bool     { return len(l.Errors) > 0 }

func (l *List) String() string {
	s := ""
	for _, e := range l.Errors {
		s += e.Format() + "\n"
	}
	return s
}

// IOError wraps a file-system failure. It carries no span — a failed read
// or write of a whole file has no source position to point at — so it is plumbed through
// github.com/pkg/errors instead of CompileError, giving the driver a stack
// trace on request (%+v) without inventing a parallel diagnostic format.
func IOError(op, path string, cause error) error {
	return pkgerrors.Wrapf(cause, "%s %s", op, path)
}
