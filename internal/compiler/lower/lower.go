// Package lower translates a validated ast.Program into ir.Program: a
// syntax-directed pass that erases source sugar and pins down semantics the
// parser and binder left implicit (capture shapes, arg(N) static/dynamic
// split, sudo option canonicalisation, boolean-valued comparisons against
// literals).
package lower

import (
	"strconv"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/binder"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/ir"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

// Lowerer carries per-function state needed for the Field{base,status|
// stdout|stderr} rewrite onto an auxiliary variable.
type Lowerer struct {
	sourceMaps map[string]*span.SourceMap
	errs       *errors.List

	captureVars   map[string]bool // names bound by try_run(...) or capture(..., allow_fail=true)
	boolVars      map[string]bool // names known to hold a boolean value
	stderrWant    map[string]bool // capture vars whose .stderr field is referenced anywhere in the function
	parseArgsVars map[string]bool // names bound by parse_args(...), for .flags/.positionals routing
}

// Lower translates prog into an ir.Program, or returns accumulated
// diagnostics on the first unrecoverable constraint violation.
func Lower(prog *ast.Program, sourceMaps map[string]*span.SourceMap) (*ir.Program, *errors.List) {
	l := &Lowerer{sourceMaps: sourceMaps, errs: &errors.List{}}
	out := &ir.Program{}
	for _, fn := range prog.Functions {
		l.captureVars = map[string]bool{}
		l.boolVars = map[string]bool{}
		l.stderrWant = map[string]bool{}
		l.parseArgsVars = map[string]bool{}
		l.scanStderrRefs(fn.Body)

		body := l.lowerBlock(fn.Body, fn.File)
		if l.errs.HasErrors() {
			return nil, l.errs
		}
		out.Functions = append(out.Functions, &ir.Function{Name: fn.Name, Params: fn.Params, Body: body})
	}
	return out, l.errs
}

func (l *Lowerer) sm(file string) *span.SourceMap { return l.sourceMaps[file] }

func (l *Lowerer) fail(file string, sp span.Span, format string, args ...interface{}) {
	l.errs.Add(errors.New(errors.Lower, l.sm(file), sp, format, args...))
}

func (l *Lowerer) loc(file string, sp span.Span) *ir.Loc {
	position := l.sm(file).LineCol(sp.Start)
	return &ir.Loc{File: file, Line: position.Line, Column: position.Column}
}

// scanStderrRefs is a pre-pass so Capture lowering knows, at the point it
// emits the binding, whether a later `.stderr` access needs a second
// tempfile. A single forward scan over the whole function body is enough:
// sh2c has no closures capturing a binding from an outer function.
func (l *Lowerer) scanStderrRefs(stmts []ast.Statement) {
	var walkExpr func(e ast.Expression)
	walkExpr = func(e ast.Expression) {
		if e == nil {
			return
		}
		if f, ok := e.(*ast.FieldExpr); ok && f.Name == "stderr" {
			if v, ok := f.Base.(*ast.Var); ok {
				l.stderrWant[v.Name] = true
			}
		}
		switch ex := e.(type) {
		case *ast.FieldExpr:
			walkExpr(ex.Base)
		case *ast.BinOp:
			walkExpr(ex.Left)
			walkExpr(ex.Right)
		case *ast.UnaryOp:
			walkExpr(ex.Operand)
		case *ast.IndexExpr:
			walkExpr(ex.Base)
			walkExpr(ex.Index)
		case *ast.CallExpr:
			for _, a := range ex.Args {
				walkExpr(a)
			}
		case *ast.ListLit:
			for _, it := range ex.Items {
				walkExpr(it)
			}
		case *ast.InterpString:
			for _, p := range ex.Parts {
				if p.IsExpr {
					walkExpr(p.Expr)
				}
			}
		}
	}
	var walkStmt func(s ast.Statement)
	walkStmt = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.LetStmt:
			walkExpr(st.Value)
		case *ast.SetStmt:
			walkExpr(st.Value)
		case *ast.PrintStmt:
			walkExpr(st.Value)
		case *ast.IfStmt:
			walkExpr(st.Cond)
			for _, x := range st.Then {
				walkStmt(x)
			}
			for _, e := range st.Elifs {
				walkExpr(e.Cond)
				for _, x := range e.Body {
					walkStmt(x)
				}
			}
			for _, x := range st.Else {
				walkStmt(x)
			}
		case *ast.WhileStmt:
			walkExpr(st.Cond)
			for _, x := range st.Body {
				walkStmt(x)
			}
		case *ast.ForStmt:
			for _, x := range st.Body {
				walkStmt(x)
			}
		case *ast.CallStmt:
			for _, a := range st.Args {
				walkExpr(a)
			}
		}
	}
	for _, s := range stmts {
		walkStmt(s)
	}
}

func (l *Lowerer) lowerBlock(stmts []ast.Statement, file string) []ir.Cmd {
	var out []ir.Cmd
	for _, s := range stmts {
		if c := l.lowerStmt(s, file); c != nil {
			out = append(out, c)
		}
		if l.errs.HasErrors() {
			return out
		}
	}
	return out
}

func (l *Lowerer) lowerStmt(s ast.Statement, file string) ir.Cmd {
	switch st := s.(type) {
	case *ast.LetStmt:
		return l.lowerLet(st, file)
	case *ast.SetStmt:
		target, isEnv := lvalueName(st.Target)
		return &ir.Set{Target: target, IsEnv: isEnv, Value: l.lowerVal(st.Value, file), Loc: l.loc(file, st.Span)}
	case *ast.RunStmt:
		return &ir.Run{Argv: l.lowerVals(st.Args, file), AllowFail: st.AllowFail, Loc: l.loc(file, st.Span)}
	case *ast.ExecStmt:
		return &ir.ExecReplace{Argv: l.lowerVals(st.Args, file), Loc: l.loc(file, st.Span)}
	case *ast.PrintStmt:
		return &ir.Print{Value: l.lowerVal(st.Value, file), Err: st.Err}
	case *ast.IfStmt:
		node := &ir.If{Cond: l.lowerVal(st.Cond, file), Then: l.lowerBlock(st.Then, file)}
		for _, e := range st.Elifs {
			node.Elifs = append(node.Elifs, ir.ElifClause{Cond: l.lowerVal(e.Cond, file), Body: l.lowerBlock(e.Body, file)})
		}
		node.Else = l.lowerBlock(st.Else, file)
		return node
	case *ast.WhileStmt:
		return &ir.While{Cond: l.lowerVal(st.Cond, file), Body: l.lowerBlock(st.Body, file)}
	case *ast.ForStmt:
		return l.lowerFor(st, file)
	case *ast.ForMapStmt:
		return &ir.ForMap{KeyVar: st.KeyVar, ValVar: st.ValVar, Map: l.lowerVal(st.Map, file), Body: l.lowerBlock(st.Body, file)}
	case *ast.CaseStmt:
		return l.lowerCase(st, file)
	case *ast.PipeStmt:
		return l.lowerPipe(st.Segments, l.loc(file, st.Span), file)
	case *ast.TryCatchStmt:
		return &ir.TryCatch{Try: l.lowerBlock(st.Try, file), Catch: l.lowerBlock(st.Catch, file)}
	case *ast.AndOrStmt:
		left := l.lowerStmt(st.Left, file)
		right := l.lowerStmt(st.Right, file)
		if st.IsAnd {
			return &ir.AndThen{Left: left, Right: right}
		}
		return &ir.OrElse{Left: left, Right: right}
	case *ast.WithEnvStmt:
		node := &ir.WithEnv{Body: l.lowerBlock(st.Body, file)}
		for _, b := range st.Bindings {
			node.Bindings = append(node.Bindings, ir.EnvBinding{Name: b.Name, Value: l.lowerVal(b.Value, file)})
		}
		return node
	case *ast.WithCwdStmt:
		lit, _ := st.Path.(*ast.StringLit)
		path := ""
		if lit != nil {
			path = lit.Value
		}
		return &ir.WithCwd{Path: path, Body: l.lowerBlock(st.Body, file)}
	case *ast.WithLogStmt:
		return &ir.WithLog{Path: l.lowerVal(st.Path, file), Append: st.Append, Body: l.lowerBlock(st.Body, file)}
	case *ast.WithRedirectStmt:
		return &ir.WithRedirect{
			Stdout: l.lowerRedirects(st.Redirects.Stdout, file),
			Stderr: l.lowerRedirects(st.Redirects.Stderr, file),
			Stdin:  l.lowerRedirects(st.Redirects.Stdin, file),
			Body:   l.lowerBlock(st.Body, file),
		}
	case *ast.SubshellStmt:
		return &ir.Subshell{Body: l.lowerBlock(st.Body, file)}
	case *ast.GroupStmt:
		return &ir.Group{Body: l.lowerBlock(st.Body, file)}
	case *ast.SpawnStmt:
		return &ir.Spawn{Body: l.lowerStmt(st.Body, file)}
	case *ast.WaitStmt:
		var pid ir.Val
		if st.Pid != nil {
			pid = l.lowerVal(st.Pid, file)
		}
		return &ir.Wait{Pid: pid}
	case *ast.ReturnStmt:
		var v ir.Val
		if st.Value != nil {
			v = l.lowerVal(st.Value, file)
		}
		return &ir.Return{Value: v}
	case *ast.ExitStmt:
		var v ir.Val
		if st.Code != nil {
			v = l.lowerVal(st.Code, file)
		}
		return &ir.Exit{Code: v}
	case *ast.BreakStmt:
		return &ir.Break{}
	case *ast.ContinueStmt:
		return &ir.Continue{}
	case *ast.ExportStmt:
		var v ir.Val
		if st.Value != nil {
			v = l.lowerVal(st.Value, file)
		}
		return &ir.Export{Name: st.Name, Value: v}
	case *ast.UnsetStmt:
		return &ir.Unset{Name: st.Name}
	case *ast.SourceStmt:
		return &ir.Source{Path: l.lowerVal(st.Path, file), Loc: l.loc(file, st.Span)}
	case *ast.CdStmt:
		return &ir.Cd{Path: l.lowerVal(st.Path, file), Loc: l.loc(file, st.Span)}
	case *ast.ShStmt:
		return &ir.Raw{Argv: []ir.Val{ir.StringLit{Value: "sh"}, ir.StringLit{Value: "-c"}, l.lowerVal(st.Cmd, file)}, Loc: l.loc(file, st.Span)}
	case *ast.ShBlockStmt:
		// A raw block is emitted as a sequence of passthrough lines sharing
		// the block's opening location.
		loc := l.loc(file, st.Span)
		if len(st.Lines) == 1 {
			return &ir.RawLine{Line: st.Lines[0], Loc: loc}
		}
		group := &ir.Group{}
		for _, line := range st.Lines {
			group.Body = append(group.Body, &ir.RawLine{Line: line, Loc: loc})
		}
		return group
	case *ast.CallStmt:
		return l.lowerCallStmt(st, file)
	default:
		return nil
	}
}

func lvalueName(lv ast.LValue) (name string, isEnv bool) {
	switch t := lv.(type) {
	case ast.VarLValue:
		return t.Name, false
	case ast.EnvLValue:
		return t.Name, true
	}
	return "", false
}

func (l *Lowerer) lowerLet(st *ast.LetStmt, file string) ir.Cmd {
	switch v := st.Value.(type) {
	case *ast.TryRunExpr:
		l.captureVars[st.Name] = true
		return &ir.Let{
			Name:  st.Name,
			Value: ir.TryRun{Argv: l.lowerVals(v.Args, file)},
			Loc:   l.loc(file, st.Span),
		}
	case *ast.CaptureExpr:
		if v.AllowFail {
			l.captureVars[st.Name] = true
		}
		return &ir.Let{
			Name: st.Name,
			Value: ir.Capture{
				Inner:      l.lowerVal(v.Inner, file),
				AllowFail:  v.AllowFail,
				WithStderr: l.stderrWant[st.Name],
			},
			Loc: l.loc(file, st.Span),
		}
	}
	if call, ok := st.Value.(*ast.CallExpr); ok && call.Name == "parse_args" {
		l.parseArgsVars[st.Name] = true
	}
	val := l.lowerVal(st.Value, file)
	isBool := l.exprIsBoolean(st.Value)
	if isBool {
		l.boolVars[st.Name] = true
	}
	return &ir.Let{Name: st.Name, Value: val, IsBool: isBool, Loc: l.loc(file, st.Span)}
}

// exprIsBoolean recognises the known boolean-valued forms so codegen can
// apply the boolean storage convention ("1"/"0").
func (l *Lowerer) exprIsBoolean(e ast.Expression) bool {
	switch ex := e.(type) {
	case *ast.BoolLit:
		return true
	case *ast.BinOp:
		switch ex.Op {
		case "&&", "||", "==", "!=", "<", "<=", ">", ">=":
			return true
		}
		return false
	case *ast.UnaryOp:
		return ex.Op == "!"
	case *ast.PathPredicate, *ast.StringPredicate, *ast.ConfirmExpr:
		return true
	case *ast.CallExpr:
		return binder.BooleanBuiltins[ex.Name]
	}
	return false
}

func (l *Lowerer) lowerFor(st *ast.ForStmt, file string) ir.Cmd {
	body := l.lowerBlock(st.Body, file)
	switch st.Iterable.Kind {
	case ast.IterList:
		return &ir.ForList{Var: st.Var, List: l.lowerVal(st.Iterable.List, file), Body: body}
	case ast.IterRange:
		return &ir.ForRange{Var: st.Var, Start: l.lowerVal(st.Iterable.RangeStart, file), End: l.lowerVal(st.Iterable.RangeEnd, file), Body: body}
	case ast.IterStdinLines:
		return &ir.ForLines{Var: st.Var, Text: nil, Body: body}
	case ast.IterFind0:
		return &ir.ForFind0{Var: st.Var, Spec: l.lowerVal(st.Iterable.FindSpec, file), Body: body}
	}
	return &ir.ForList{Var: st.Var, Body: body}
}

func (l *Lowerer) lowerCase(st *ast.CaseStmt, file string) ir.Cmd {
	node := &ir.Case{Expr: l.lowerVal(st.Expr, file)}
	for _, arm := range st.Arms {
		irArm := ir.CaseArm{Body: l.lowerBlock(arm.Body, file)}
		for _, p := range arm.Patterns {
			irArm.Patterns = append(irArm.Patterns, ir.CasePattern{Kind: int(p.Kind), Text: p.Text})
		}
		node.Arms = append(node.Arms, irArm)
	}
	return node
}

func (l *Lowerer) lowerRedirects(targets []ast.RedirectTarget, file string) []ir.RedirectTarget {
	var out []ir.RedirectTarget
	for _, t := range targets {
		var path ir.Val
		if t.Path != nil {
			path = l.lowerVal(t.Path, file)
		}
		out = append(out, ir.RedirectTarget{Kind: ir.RedirectKind(t.Kind), Path: path, Append: t.Append})
	}
	return out
}

func (l *Lowerer) lowerPipe(segs []ast.PipeSegment, loc *ir.Loc, file string) ir.Cmd {
	allArgv := true
	var irSegs []ir.PipeSeg
	for _, s := range segs {
		switch s.Kind {
		case ast.SegRun:
			irSegs = append(irSegs, ir.PipeSeg{Kind: ir.PipeSegArgv, Argv: l.lowerVals(s.Args, file), AllowFail: s.AllowFail})
		case ast.SegSudo:
			argv := l.lowerSudo(s.Args, s.Options, file, span.Span{})
			irSegs = append(irSegs, ir.PipeSeg{Kind: ir.PipeSegArgv, Argv: argv, AllowFail: s.AllowFail})
		case ast.SegBlock:
			allArgv = false
			irSegs = append(irSegs, ir.PipeSeg{Kind: ir.PipeSegBlock, Block: l.lowerBlock(s.Block, file)})
		case ast.SegEachLine:
			allArgv = false
			irSegs = append(irSegs, ir.PipeSeg{Kind: ir.PipeSegEachLine, EachVar: s.EachVar, EachBody: l.lowerBlock(s.EachBody, file)})
		}
	}
	if allArgv {
		return &ir.Pipe{Segments: irSegs, Loc: loc}
	}
	return &ir.PipeBlocks{Segments: irSegs, Loc: loc}
}

// lowerCallStmt recognises the statement-form builtins by name (sh, sudo,
// run, require, log, save_envfile, write_file); everything else, capture and
// confirm included, is a plain user-function or argv call.
func (l *Lowerer) lowerCallStmt(st *ast.CallStmt, file string) ir.Cmd {
	switch st.Name {
	case "sh":
		var cmd ir.Val
		if len(st.Args) > 0 {
			cmd = l.lowerVal(st.Args[0], file)
		}
		shellOpt, args := ir.Val(ir.StringLit{Value: "sh"}), []ir.Val{}
		for _, o := range st.Options {
			if o.Name == "shell" {
				shellOpt = l.lowerVal(o.Value, file)
			}
			if o.Name == "args" {
				args = append(args, l.lowerVal(o.Value, file))
			}
		}
		argv := append([]ir.Val{shellOpt, ir.StringLit{Value: "-c"}, cmd}, args...)
		return &ir.Raw{Argv: argv, Loc: l.loc(file, st.Span)}
	case "sudo":
		argv := l.lowerSudo(st.Args, st.Options, file, st.Span)
		return &ir.Run{Argv: argv, AllowFail: st.AllowFail, Loc: l.loc(file, st.Span)}
	case "run":
		return &ir.Run{Argv: l.lowerVals(st.Args, file), AllowFail: st.AllowFail, Loc: l.loc(file, st.Span)}
	case "require":
		return &ir.Require{Argv: l.lowerVals(st.Args, file), Loc: l.loc(file, st.Span)}
	case "log":
		node := ir.Log{Msg: l.lowerVal(st.Args[min(1, len(st.Args)-1)], file)}
		if len(st.Args) > 0 {
			if lit, ok := st.Args[0].(*ast.StringLit); ok {
				node.Level = lit.Value
			}
		}
		for _, o := range st.Options {
			if o.Name == "timestamp" {
				if b, ok := o.Value.(*ast.BoolLit); ok {
					node.Timestamp = b.Value
				}
			}
		}
		return &node
	case "save_envfile":
		return &ir.SaveEnvfile{Path: l.lowerVal(arg(st.Args, 0), file), Map: l.lowerVal(arg(st.Args, 1), file)}
	case "write_file":
		node := &ir.WriteFile{Path: l.lowerVal(arg(st.Args, 0), file), Content: l.lowerVal(arg(st.Args, 1), file), Loc: l.loc(file, st.Span)}
		if len(st.Args) > 2 {
			if b, ok := st.Args[2].(*ast.BoolLit); ok {
				node.Append = b.Value
			}
		}
		return node
	default:
		return &ir.ExprStmt{Value: ir.Call{Name: st.Name, Args: l.lowerVals(st.Args, file)}, Loc: l.loc(file, st.Span)}
	}
}

// sudoOption is the fixed, ordered option table sudo's flags are emitted
// from, so flag order stays deterministic regardless of source order.
type sudoOption struct {
	name  string
	flag  string
	isStr bool
	isList bool
}

var sudoOptionOrder = []sudoOption{
	{name: "user", flag: "-u", isStr: true},
	{name: "n", flag: "-n"},
	{name: "k", flag: "-k"},
	{name: "prompt", flag: "-p", isStr: true},
	{name: "E", flag: "-E"},
	{name: "env_keep", flag: "--preserve-env", isList: true},
}

func validSudoKeys() string {
	return "user, n, k, prompt, E, env_keep, allow_fail"
}

// lowerSudo validates sudo(...) options per the §4.6.a table and flattens
// to argv starting with "sudo", the fixed flag order, "--", then user args.
func (l *Lowerer) lowerSudo(args []ast.Expression, opts []ast.CallOption, file string, sp span.Span) []ir.Val {
	seen := map[string]bool{}
	vals := map[string]ast.Expression{}
	for _, o := range opts {
		if o.Name == "allow_fail" {
			continue
		}
		known := false
		for _, so := range sudoOptionOrder {
			if so.name == o.Name {
				known = true
			}
		}
		if !known {
			l.fail(file, o.Span, "unknown sudo option %q; supported options are %s", o.Name, validSudoKeys())
			continue
		}
		if seen[o.Name] {
			l.fail(file, o.Span, "sudo option %q specified more than once", o.Name)
			continue
		}
		seen[o.Name] = true
		vals[o.Name] = o.Value
	}

	argv := []ir.Val{ir.StringLit{Value: "sudo"}}
	for _, so := range sudoOptionOrder {
		e, ok := vals[so.name]
		if !ok {
			continue
		}
		switch {
		case so.isStr:
			lit, ok := e.(*ast.StringLit)
			if !ok {
				l.fail(file, e.Spn(), "sudo option %q must be a string literal", so.name)
				continue
			}
			argv = append(argv, ir.StringLit{Value: so.flag}, ir.StringLit{Value: lit.Value})
		case so.isList:
			list, ok := e.(*ast.ListLit)
			if !ok {
				l.fail(file, e.Spn(), "sudo option %q must be a list of string literals", so.name)
				continue
			}
			var parts []string
			for _, item := range list.Items {
				s, ok := item.(*ast.StringLit)
				if !ok {
					l.fail(file, item.Spn(), "sudo option %q must be a list of string literals", so.name)
					continue
				}
				parts = append(parts, s.Value)
			}
			joined := ""
			for i, p := range parts {
				if i > 0 {
					joined += ","
				}
				joined += p
			}
			argv = append(argv, ir.StringLit{Value: so.flag + "=" + joined})
		default:
			b, ok := e.(*ast.BoolLit)
			if !ok {
				l.fail(file, e.Spn(), "sudo option %q must be a boolean literal", so.name)
				continue
			}
			if b.Value {
				argv = append(argv, ir.StringLit{Value: so.flag})
			}
		}
	}
	argv = append(argv, ir.StringLit{Value: "--"})
	argv = append(argv, l.lowerVals(args, file)...)
	return argv
}

func (l *Lowerer) lowerVals(exprs []ast.Expression, file string) []ir.Val {
	out := make([]ir.Val, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, l.lowerVal(e, file))
	}
	return out
}

// lowerVal translates one expression, applying the literal-add-is-concat
// and boolean-literal-comparison rewrites.
func (l *Lowerer) lowerVal(e ast.Expression, file string) ir.Val {
	switch ex := e.(type) {
	case nil:
		return nil
	case *ast.StringLit:
		return ir.StringLit{Value: ex.Value}
	case *ast.InterpString:
		var parts []ir.InterpPart
		for _, p := range ex.Parts {
			if p.IsExpr {
				parts = append(parts, ir.InterpPart{Expr: l.lowerVal(p.Expr, file)})
			} else {
				parts = append(parts, ir.InterpPart{Text: p.Text})
			}
		}
		return ir.Interp{Parts: parts}
	case *ast.NumberLit:
		return ir.NumberLit{Value: ex.Value}
	case *ast.BoolLit:
		if ex.Value {
			return ir.NumberLit{Value: "1"}
		}
		return ir.NumberLit{Value: "0"}
	case *ast.ListLit:
		return ir.ListLit{Items: l.lowerVals(ex.Items, file)}
	case *ast.MapLit:
		return ir.MapLiteral{Keys: ex.Keys, Values: l.lowerVals(ex.Values, file)}
	case *ast.Var:
		if l.boolVars[ex.Name] {
			return ir.BoolVar{Name: ex.Name}
		}
		return ir.Var{Name: ex.Name}
	case *ast.BinOp:
		return l.lowerBinOp(ex, file)
	case *ast.UnaryOp:
		if ex.Op == "!" {
			return ir.Not{Operand: l.lowerVal(ex.Operand, file)}
		}
		return ir.Arith{Op: "-", Left: ir.NumberLit{Value: "0"}, Right: l.lowerVal(ex.Operand, file)}
	case *ast.PathPredicate:
		return ir.Predicate{Name: ex.Name, Args: []ir.Val{l.lowerVal(ex.Arg, file)}}
	case *ast.StringPredicate:
		switch ex.Name {
		case "matches":
			return ir.Matches{Text: l.lowerVal(ex.Args[0], file), Glob: l.lowerVal(ex.Args[1], file)}
		case "contains", "contains_line":
			return ir.ContainsOp{Name: ex.Name, Haystack: l.lowerVal(ex.Args[0], file), Needle: l.lowerVal(ex.Args[1], file)}
		}
		return ir.Predicate{Name: ex.Name, Args: l.lowerVals(ex.Args, file)}
	case *ast.LenExpr:
		return ir.Call{Name: "len", Args: []ir.Val{l.lowerVal(ex.Arg, file)}}
	case *ast.CountExpr:
		return ir.Call{Name: "count", Args: []ir.Val{l.lowerVal(ex.Arg, file)}}
	case *ast.ArgExpr:
		if n, ok := ex.Index.(*ast.NumberLit); ok {
			if i, err := strconv.Atoi(n.Value); err == nil && i >= 1 {
				return ir.ArgStatic{Index: i}
			}
		}
		return ir.ArgDynamic{Index: l.lowerVal(ex.Index, file)}
	case *ast.IndexExpr:
		return ir.Index{Base: l.lowerVal(ex.Base, file), Index: l.lowerVal(ex.Index, file)}
	case *ast.FieldExpr:
		return l.lowerField(ex, file)
	case *ast.JoinExpr:
		return ir.Join{List: l.lowerVal(ex.List, file), Sep: l.lowerVal(ex.Sep, file)}
	case *ast.NiladicExpr:
		return ir.Niladic{Name: ex.Name}
	case *ast.EnvExpr:
		return ir.EnvDynamic{Name: l.lowerVal(ex.Name, file)}
	case *ast.EnvDotExpr:
		return ir.EnvVar{Name: ex.Name}
	case *ast.InputExpr:
		var prompt ir.Val
		if ex.Prompt != nil {
			prompt = l.lowerVal(ex.Prompt, file)
		}
		return ir.Input{Prompt: prompt}
	case *ast.ConfirmExpr:
		node := ir.Confirm{}
		if ex.Prompt != nil {
			node.Prompt = l.lowerVal(ex.Prompt, file)
		}
		if ex.Default != nil {
			node.Default = l.lowerVal(ex.Default, file)
		}
		return node
	case *ast.CommandExpr:
		return ir.Command{Argv: l.lowerVals(ex.Args, file)}
	case *ast.CommandPipeExpr:
		var segs [][]ir.Val
		for _, s := range ex.Segments {
			segs = append(segs, l.lowerVals(s, file))
		}
		return ir.CommandPipe{Segments: segs}
	case *ast.CaptureExpr:
		return ir.Capture{Inner: l.lowerVal(ex.Inner, file), AllowFail: ex.AllowFail}
	case *ast.TryRunExpr:
		return ir.TryRun{Argv: l.lowerVals(ex.Args, file)}
	case *ast.ShExpr:
		var shell ir.Val = ir.StringLit{Value: "sh"}
		for _, o := range ex.Options {
			if o.Name == "shell" {
				shell = l.lowerVal(o.Value, file)
			}
		}
		return ir.Command{Argv: []ir.Val{shell, ir.StringLit{Value: "-c"}, l.lowerVal(ex.Cmd, file)}}
	case *ast.SudoExpr:
		return ir.Command{Argv: l.lowerSudo(ex.Args, ex.Options, file, ex.Span)}
	case *ast.MapIndexExpr:
		return ir.MapIndex{Map: l.lowerVal(ex.Map, file), Key: l.lowerVal(ex.Key, file)}
	case *ast.CallExpr:
		return l.lowerCallExpr(ex, file)
	}
	return ir.StringLit{Value: ""}
}

// lowerField rewrites base.status/.stdout/.stderr on a try_run/capture
// binding to the auxiliary variable `base__name`.
func (l *Lowerer) lowerField(ex *ast.FieldExpr, file string) ir.Val {
	if v, ok := ex.Base.(*ast.Var); ok {
		if l.captureVars[v.Name] {
			switch ex.Name {
			case "status", "stdout", "stderr":
				return ir.AuxVar{Name: v.Name + "__" + ex.Name}
			}
		}
		if l.parseArgsVars[v.Name] {
			switch ex.Name {
			case "flags":
				return ir.ArgsFlags{}
			case "positionals":
				return ir.ArgsPositionals{}
			}
		}
	}
	return ir.Field{Base: l.lowerVal(ex.Base, file), Name: ex.Name}
}

// lowerCallExpr routes the helper-backed builtins to their dedicated IR
// shape; anything else is a plain Call (user function or a builtin codegen
// can emit inline without a helper).
func (l *Lowerer) lowerCallExpr(ex *ast.CallExpr, file string) ir.Val {
	switch ex.Name {
	case "which":
		return ir.Which{Name: l.lowerVal(arg(ex.Args, 0), file)}
	case "read_file":
		return ir.ReadFile{Path: l.lowerVal(arg(ex.Args, 0), file)}
	case "home":
		return ir.Home{}
	case "path_join":
		return ir.PathJoin{Parts: l.lowerVals(ex.Args, file)}
	case "lines":
		return ir.Lines{Text: l.lowerVal(arg(ex.Args, 0), file)}
	case "split":
		return ir.Split{Text: l.lowerVal(arg(ex.Args, 0), file), Sep: l.lowerVal(arg(ex.Args, 1), file)}
	case "starts_with":
		return ir.StartsWith{Text: l.lowerVal(arg(ex.Args, 0), file), Prefix: l.lowerVal(arg(ex.Args, 1), file)}
	case "load_envfile":
		return ir.LoadEnvfile{Path: l.lowerVal(arg(ex.Args, 0), file)}
	case "json_kv":
		return l.lowerJSONKv(ex, file)
	case "parse_args":
		return ir.ParseArgs{Spec: l.lowerVal(arg(ex.Args, 0), file), Argv: l.lowerVal(arg(ex.Args, 1), file)}
	default:
		return ir.Call{Name: ex.Name, Args: l.lowerVals(ex.Args, file)}
	}
}

func arg(args []ast.Expression, i int) ast.Expression {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// lowerJSONKv flattens json_kv(map_literal) into an ordered key/value list,
// reusing ir.InterpPart as the carrier: Text holds the key, Expr the lowered
// value.
func (l *Lowerer) lowerJSONKv(ex *ast.CallExpr, file string) ir.Val {
	m, ok := arg(ex.Args, 0).(*ast.MapLit)
	if !ok {
		l.fail(file, ex.Span, "json_kv expects a map literal argument")
		return ir.JsonKv{}
	}
	var pairs []ir.InterpPart
	for i, k := range m.Keys {
		pairs = append(pairs, ir.InterpPart{Text: k, Expr: l.lowerVal(m.Values[i], file)})
	}
	return ir.JsonKv{Pairs: pairs}
}

// lowerBinOp applies the "+ with a literal operand means string Concat" and
// boolean-literal-comparison rewrites.
func (l *Lowerer) lowerBinOp(ex *ast.BinOp, file string) ir.Val {
	left := l.lowerVal(ex.Left, file)
	right := l.lowerVal(ex.Right, file)

	if ex.Op == "&" {
		return ir.Concat{Left: left, Right: right}
	}
	if ex.Op == "+" && (isLiteralExpr(ex.Left) || isLiteralExpr(ex.Right)) {
		return ir.Concat{Left: left, Right: right}
	}
	switch ex.Op {
	case "+", "-", "*", "/", "%":
		return ir.Arith{Op: ex.Op, Left: left, Right: right}
	case "&&", "||":
		return ir.Logical{Op: ex.Op, Left: left, Right: right}
	case "==", "!=":
		if rewritten, ok := rewriteBoolCompare(ex); ok {
			return l.lowerVal(rewritten, file)
		}
		return ir.Compare{Op: ex.Op, Left: left, Right: right}
	default:
		return ir.Compare{Op: ex.Op, Left: left, Right: right}
	}
}

func isLiteralExpr(e ast.Expression) bool {
	switch e.(type) {
	case *ast.StringLit, *ast.InterpString:
		return true
	}
	return false
}

// rewriteBoolCompare implements the truth table {Eq×true: pred, Eq×false:
// ¬pred, NotEq×true: ¬pred, NotEq×false: pred} for `bool_literal == pred`
// and its three symmetric variants.
func rewriteBoolCompare(ex *ast.BinOp) (ast.Expression, bool) {
	var lit *ast.BoolLit
	var pred ast.Expression
	if b, ok := ex.Left.(*ast.BoolLit); ok {
		lit, pred = b, ex.Right
	} else if b, ok := ex.Right.(*ast.BoolLit); ok {
		lit, pred = b, ex.Left
	} else {
		return nil, false
	}
	negate := (ex.Op == "==" && !lit.Value) || (ex.Op == "!=" && lit.Value)
	if negate {
		return &ast.UnaryOp{Op: "!", Operand: pred, Span: ex.Span}, true
	}
	return pred, true
}
