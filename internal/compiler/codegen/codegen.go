// Package codegen renders a lowered ir.Program to POSIX or Bash shell text:
// a single pass over the IR that writes only the prelude helpers actually
// referenced, then one `name() { … }` per function.
package codegen

import (
	"fmt"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/ir"
)

// Target selects the emitted dialect.
type Target int

const (
	Bash Target = iota
	POSIX
)

// Emitter holds the mutable state of one emit run: output buffer,
// indentation, and the small set of counters needed across the whole
// run (prelude usage, FIFO chain ids).
type Emitter struct {
	target      Target
	buf         strings.Builder
	indent      int
	usage       usageSet
	fifoCounter int
	errs        *errors.List
}

// Emit renders prog for target, returning the script text or a non-nil
// error list on the first unsupported construct for that target.
func Emit(prog *ir.Program, target Target) (string, *errors.List) {
	e := &Emitter{target: target, usage: scanProgram(prog), errs: &errors.List{}}

	if target == Bash {
		e.writeln("#!/usr/bin/env bash")
		e.writeln("set -u")
	} else {
		e.writeln("#!/bin/sh")
	}
	e.writeln("")
	e.writeln(`__sh2_status=0`)

	for _, block := range preludeHelpers(e.usage, target) {
		e.writeln(block)
		e.writeln("")
	}

	hasMain := false
	for _, fn := range prog.Functions {
		if fn.Name == "main" {
			hasMain = true
		}
		e.emitFunction(fn)
		if e.errs.HasErrors() {
			return "", e.errs
		}
	}

	if hasMain {
		e.writeln(`main "$@"`)
	}

	text := e.buf.String()
	if target == POSIX {
		if lintErrs := lintPOSIX(text); len(lintErrs) > 0 {
			for _, msg := range lintErrs {
				e.errs.Add(bareError(errors.Lint, msg))
			}
			return "", e.errs
		}
	}
	return text, e.errs
}

// bareError builds a CompileError with no SourceMap, for diagnostics raised
// after lexing/parsing (codegen, lint) that have no source span of their own.
func bareError(kind errors.Kind, format string, args ...interface{}) *errors.CompileError {
	return &errors.CompileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Emitter) emitFunction(fn *ir.Function) {
	e.writeln(fmt.Sprintf("%s() {", fn.Name))
	e.indent++
	for i, p := range fn.Params {
		if e.target == Bash {
			e.writelnf(`local %s="${%d:-}"`, p, i+1)
		} else {
			e.writelnf(`%s="${%d:-}"`, p, i+1)
		}
	}
	for _, c := range fn.Body {
		e.emitCmd(c, ctxStatement)
		if e.errs.HasErrors() {
			return
		}
	}
	e.indent--
	e.writeln("}")
	e.writeln("")
}

func locString(l *ir.Loc) string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// checkMode distinguishes "exit" (plain statement context) from "return"
// (inside try/condition context).
type checkMode int

const (
	ctxStatement checkMode = iota
	ctxReturn
)

func (e *Emitter) emitCheck(l *ir.Loc, allowFail bool, mode checkMode) {
	e.writelnf(`__sh2_status=$?`)
	if allowFail {
		return
	}
	m := "exit"
	if mode == ctxReturn {
		m = "return"
	}
	e.writelnf(`__sh2_loc=%s`, shQuote(locString(l)))
	e.writelnf(`__sh2_check "$__sh2_status" "$__sh2_loc" %s`, shQuote(m))
}

func (e *Emitter) writeln(s string) {
	if s == "" {
		e.buf.WriteString("\n")
		return
	}
	e.buf.WriteString(strings.Repeat("  ", e.indent))
	e.buf.WriteString(s)
	e.buf.WriteString("\n")
}

func (e *Emitter) writelnf(format string, args ...interface{}) {
	e.writeln(fmt.Sprintf(format, args...))
}

func (e *Emitter) fail(format string, args ...interface{}) {
	e.errs.Add(bareError(errors.Codegen, format, args...))
}
