// Package driver orchestrates the compiler's stages end to end: load,
// bind, lower, emit, and map the outcome to an exit code the CLI front end
// can return directly.
package driver

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/binder"
	"github.com/sh2c/sh2c/internal/compiler/codegen"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/formatter"
	"github.com/sh2c/sh2c/internal/compiler/ir"
	"github.com/sh2c/sh2c/internal/compiler/loader"
	"github.com/sh2c/sh2c/internal/compiler/lower"
)

// Mode selects which stage's output the driver returns.
type Mode int

const (
	ModeDefault Mode = iota
	ModeCheck
	ModeEmitAst
	ModeEmitIr
	ModeEmitSh
	ModeFmt
)

// Options bundles the `{ target, include_diagnostics, out_path?, chmod_x,
// mode }` knobs a single compile run needs.
type Options struct {
	Target             codegen.Target
	IncludeDiagnostics bool
	OutPath            string
	ChmodX             bool
	Mode               Mode
}

// ExitCode: 0 success, 1 file I/O error, 2 compile error.
type ExitCode int

const (
	ExitOK      ExitCode = 0
	ExitIOError ExitCode = 1
	ExitCompile ExitCode = 2
)

// Result is what Run hands back to a CLI or test harness.
type Result struct {
	Text string
	Code ExitCode
}

var log = logrus.New()

// Run executes the pipeline against entryPath per opts.
func Run(entryPath string, opts Options) Result {
	if _, err := os.Stat(entryPath); err != nil {
		log.WithError(err).Error("cannot read entry file")
		return Result{Code: ExitIOError}
	}

	ld := loader.New()
	prog, errs := ld.Load(entryPath)
	if errs.HasErrors() {
		return diagResult(errs, opts, ExitCompile)
	}

	if opts.Mode == ModeEmitAst {
		return Result{Text: dumpAst(prog), Code: ExitOK}
	}

	if opts.Mode == ModeFmt {
		return Result{Text: formatEntryFile(prog), Code: ExitOK}
	}

	if errs := binder.Bind(prog, prog.SourceMaps); errs.HasErrors() {
		return diagResult(errs, opts, ExitCompile)
	}

	irProg, errs := lower.Lower(prog, prog.SourceMaps)
	if errs.HasErrors() {
		return diagResult(errs, opts, ExitCompile)
	}

	if opts.Mode == ModeEmitIr {
		return Result{Text: dumpIr(irProg), Code: ExitOK}
	}

	text, errs := codegen.Emit(irProg, opts.Target)
	if errs.HasErrors() {
		return diagResult(errs, opts, ExitCompile)
	}

	if opts.Mode == ModeCheck {
		return Result{Code: ExitOK}
	}

	if opts.OutPath != "" {
		if err := writeOutput(opts.OutPath, text, opts.ChmodX); err != nil {
			log.WithError(err).Error("failed to write output")
			return Result{Code: ExitIOError}
		}
	}

	return Result{Text: text, Code: ExitOK}
}

func diagResult(errs *errors.List, opts Options, code ExitCode) Result {
	if opts.IncludeDiagnostics {
		fmt.Fprint(os.Stderr, errs.String())
	}
	return Result{Code: code}
}

func writeOutput(path, text string, chmodX bool) error {
	mode := os.FileMode(0o644)
	if chmodX {
		mode = 0o755
	}
	if err := os.WriteFile(path, []byte(text), mode); err != nil {
		return errors.IOError("write", path, err)
	}
	return nil
}

// formatEntryFile renders the entry file's own imports and functions back to
// canonical source text. It formats only the entry file, not every
// transitively-imported file, mirroring how gofmt formats one file at a
// time rather than a whole merged build.
func formatEntryFile(prog *ast.Program) string {
	for _, f := range prog.Files {
		if f.Path == prog.EntryFile {
			return formatter.Format(f)
		}
	}
	return ""
}

func dumpAst(prog *ast.Program) string {
	var out string
	for _, fn := range prog.Functions {
		out += fmt.Sprintf("func %s(%v)\n", fn.Name, fn.Params)
	}
	return out
}

func dumpIr(prog *ir.Program) string {
	var out string
	for _, fn := range prog.Functions {
		out += fmt.Sprintf("func %s(%v) { %d stmts }\n", fn.Name, fn.Params, len(fn.Body))
	}
	return out
}
