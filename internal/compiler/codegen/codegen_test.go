package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ir"
)

func prog(body ...ir.Cmd) *ir.Program {
	return &ir.Program{Functions: []*ir.Function{{Name: "main", Params: []string{}, Body: body}}}
}

func TestEmitBashShebangAndPosixShebang(t *testing.T) {
	text, errs := Emit(prog(&ir.Print{Value: ir.StringLit{Value: "hi"}}), Bash)
	require.False(t, errs.HasErrors())
	require.True(t, strings.HasPrefix(text, "#!/usr/bin/env bash\n"))

	text, errs = Emit(prog(&ir.Print{Value: ir.StringLit{Value: "hi"}}), POSIX)
	require.False(t, errs.HasErrors())
	require.True(t, strings.HasPrefix(text, "#!/bin/sh\n"))
}

func TestEmitRunEmitsCheckHelperOnlyWhenUsed(t *testing.T) {
	text, errs := Emit(prog(&ir.Run{Argv: []ir.Val{ir.StringLit{Value: "ls"}}}), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "__sh2_check() {")
	require.Contains(t, text, "'ls'")
	require.Contains(t, text, "__sh2_check \"$__sh2_status\"")
}

func TestEmitPrintOmitsCheckHelper(t *testing.T) {
	text, errs := Emit(prog(&ir.Print{Value: ir.StringLit{Value: "hi"}}), Bash)
	require.False(t, errs.HasErrors())
	require.NotContains(t, text, "__sh2_check() {")
}

func TestEmitBoolLetMaterializesPredicate(t *testing.T) {
	let := &ir.Let{
		Name:   "ok",
		IsBool: true,
		Value: ir.Predicate{Name: "is_dir", Args: []ir.Val{ir.StringLit{Value: "/tmp"}}},
	}
	text, errs := Emit(prog(let), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, `ok=$(if [ -d '/tmp' ]; then printf 1; else printf 0; fi)`)
}

func TestEmitIfOnBoolVarUsesStringCompare(t *testing.T) {
	ifStmt := &ir.If{
		Cond: ir.BoolVar{Name: "ok"},
		Then: []ir.Cmd{&ir.Print{Value: ir.StringLit{Value: "yes"}}},
	}
	text, errs := Emit(prog(ifStmt), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, `if [ "$ok" = "1" ]; then`)
}

func TestEmitCaseLiteralAndWildcardPatterns(t *testing.T) {
	c := &ir.Case{
		Expr: ir.Var{Name: "x"},
		Arms: []ir.CaseArm{
			{Patterns: []ir.CasePattern{{Kind: 0, Text: "a"}}, Body: []ir.Cmd{&ir.Print{Value: ir.StringLit{Value: "A"}}}},
			{Patterns: []ir.CasePattern{{Kind: 2, Text: ""}}, Body: []ir.Cmd{&ir.Print{Value: ir.StringLit{Value: "other"}}}},
		},
	}
	text, errs := Emit(prog(c), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "case \"$x\" in")
	require.Contains(t, text, "'a')")
	require.Contains(t, text, "*)")
	require.Contains(t, text, "esac")
}

func TestEmitForListBashUsesArrayExpansion(t *testing.T) {
	f := &ir.ForList{
		Var:  "item",
		List: ir.Var{Name: "items"},
		Body: []ir.Cmd{&ir.Print{Value: ir.Var{Name: "item"}}},
	}
	text, errs := Emit(prog(f), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, `for item in "${items[@]}"; do`)
}

func TestEmitForListPosixUsesWordSplit(t *testing.T) {
	f := &ir.ForList{
		Var:  "item",
		List: ir.Var{Name: "items"},
		Body: []ir.Cmd{&ir.Print{Value: ir.Var{Name: "item"}}},
	}
	text, errs := Emit(prog(f), POSIX)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "for item in $items; do")
}

func TestEmitPipeBashUsesPipefail(t *testing.T) {
	p := &ir.Pipe{
		Segments: []ir.PipeSeg{
			{Kind: ir.PipeSegArgv, Argv: []ir.Val{ir.StringLit{Value: "cat"}}},
			{Kind: ir.PipeSegArgv, Argv: []ir.Val{ir.StringLit{Value: "grep"}, ir.StringLit{Value: "x"}}},
		},
	}
	text, errs := Emit(prog(p), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "set -o pipefail")
	require.Contains(t, text, "'cat' | 'grep' 'x'")
}

func TestEmitPipeArgvOnlyPosixUsesFifoChain(t *testing.T) {
	p := &ir.Pipe{
		Segments: []ir.PipeSeg{
			{Kind: ir.PipeSegArgv, Argv: []ir.Val{ir.StringLit{Value: "grep"}, ir.StringLit{Value: "x"}}},
			{Kind: ir.PipeSegArgv, Argv: []ir.Val{ir.StringLit{Value: "wc"}, ir.StringLit{Value: "-l"}}},
		},
	}
	text, errs := Emit(prog(p), POSIX)
	require.False(t, errs.HasErrors())
	require.NotContains(t, text, "set -o pipefail")
	require.Contains(t, text, "mkfifo")
	require.Contains(t, text, "wait")
	require.Contains(t, text, "'grep' 'x'")
	require.Contains(t, text, "'wc' '-l'")
}

func TestEmitPipeBlocksPosixUsesFifoChain(t *testing.T) {
	pb := &ir.PipeBlocks{
		Segments: []ir.PipeSeg{
			{Kind: ir.PipeSegArgv, Argv: []ir.Val{ir.StringLit{Value: "cat"}}},
			{Kind: ir.PipeSegBlock, Block: []ir.Cmd{&ir.Print{Value: ir.StringLit{Value: "x"}}}},
		},
	}
	text, errs := Emit(prog(pb), POSIX)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "mkfifo")
	require.Contains(t, text, "wait")
}

func TestEmitWithRedirectMultiSinkUsesTeeOnBash(t *testing.T) {
	wr := &ir.WithRedirect{
		Stdout: []ir.RedirectTarget{
			{Kind: ir.RedirectFile, Path: ir.StringLit{Value: "a.log"}},
			{Kind: ir.RedirectFile, Path: ir.StringLit{Value: "b.log"}},
		},
		Body: []ir.Cmd{&ir.Print{Value: ir.StringLit{Value: "x"}}},
	}
	text, errs := Emit(prog(wr), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "| tee")
}

func TestEmitRequireAndSh2CCheckWiring(t *testing.T) {
	req := &ir.Require{Argv: []ir.Val{ir.StringLit{Value: "curl"}}}
	text, errs := Emit(prog(req), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "__sh2_require() {")
	require.Contains(t, text, "__sh2_require 'curl'")
}

func TestEmitLogWiresTimestampFlag(t *testing.T) {
	l := &ir.Log{Level: "warn", Msg: ir.StringLit{Value: "careful"}, Timestamp: true}
	text, errs := Emit(prog(l), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "__sh2_log 'warn' 'careful' '1'")
}

func TestShQuoteEscapesEmbeddedSingleQuote(t *testing.T) {
	require.Equal(t, `'it'\''s'`, shQuote("it's"))
	require.Equal(t, `'plain'`, shQuote("plain"))
}

func TestEmitExecReplaceUsesExec(t *testing.T) {
	text, errs := Emit(prog(&ir.ExecReplace{Argv: []ir.Val{ir.StringLit{Value: "sh"}}}), Bash)
	require.False(t, errs.HasErrors())
	require.Contains(t, text, "exec 'sh'")
}

func TestEmitMainCallAppendedWhenMainFunctionPresent(t *testing.T) {
	text, errs := Emit(prog(&ir.Print{Value: ir.StringLit{Value: "hi"}}), Bash)
	require.False(t, errs.HasErrors())
	require.True(t, strings.HasSuffix(strings.TrimRight(text, "\n"), `main "$@"`))
}
