// Package binder implements sh2c's semantic analysis pass: declaration-
// before-use and set-requires-prior-let, merged path-sensitively over
// branching control flow. It rewrites nothing in the AST; it only validates
// it, so lowering can assume every Var reference and Set target is
// well-formed.
package binder

import (
	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

// BooleanBuiltins lists the builtins lowering must tag as boolean-valued.
var BooleanBuiltins = map[string]bool{
	"exists": true, "is_dir": true, "is_file": true, "is_symlink": true,
	"is_exec": true, "is_readable": true, "is_writable": true, "is_non_empty": true,
	"matches": true, "contains": true, "contains_line": true, "confirm": true,
}

type nameSet map[string]bool

func (s nameSet) clone() nameSet {
	out := make(nameSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func intersect(a, b nameSet) nameSet {
	out := nameSet{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

// Binder walks one function at a time; sm/errs are shared across the whole
// program so diagnostics carry the defining file's source map.
type Binder struct {
	sourceMaps map[string]*span.SourceMap
	errs       *errors.List
}

// Bind validates every function in prog, returning accumulated diagnostics.
// It stops at the function whose validation first fails: fail-fast, since a
// dependent function's errors would just be noise once its callee is broken.
func Bind(prog *ast.Program, sourceMaps map[string]*span.SourceMap) *errors.List {
	b := &Binder{sourceMaps: sourceMaps, errs: &errors.List{}}
	for _, fn := range prog.Functions {
		assigned := nameSet{}
		for _, p := range fn.Params {
			assigned[p] = true
		}
		b.checkBlock(fn.Body, assigned, b.sm(fn.File))
		if b.errs.HasErrors() {
			return b.errs
		}
	}
	return b.errs
}

func (b *Binder) sm(file string) *span.SourceMap { return b.sourceMaps[file] }

func (b *Binder) fail(sm *span.SourceMap, sp span.Span, format string, args ...interface{}) {
	b.errs.Add(errors.New(errors.Semantic, sm, sp, format, args...))
}

// checkBlock is its own lexical scope for redeclaration tracking: a fresh
// declaredOnPath starts at every block.
func (b *Binder) checkBlock(stmts []ast.Statement, assigned nameSet, sm *span.SourceMap) nameSet {
	declaredOnPath := nameSet{}
	cur := assigned.clone()
	for _, s := range stmts {
		if b.errs.HasErrors() {
			return cur
		}
		cur = b.checkStmt(s, cur, declaredOnPath, sm)
	}
	return cur
}

func (b *Binder) checkStmt(s ast.Statement, assigned, declaredOnPath nameSet, sm *span.SourceMap) nameSet {
	switch st := s.(type) {
	case *ast.LetStmt:
		b.checkExprTop(st.Value, assigned, true, sm)
		if declaredOnPath[st.Name] {
			b.fail(sm, st.Span, "variable %q is already declared in this scope; use 'set' to reassign it", st.Name)
			return assigned
		}
		declaredOnPath[st.Name] = true
		out := assigned.clone()
		out[st.Name] = true
		return out

	case *ast.SetStmt:
		b.checkExprTop(st.Value, assigned, false, sm)
		switch tgt := st.Target.(type) {
		case ast.VarLValue:
			if !assigned[tgt.Name] {
				b.fail(sm, st.Span, "variable %q is not declared on every path reaching this point; use 'let' first", tgt.Name)
				return assigned
			}
		case ast.EnvLValue:
			// environment assignment never requires prior declaration.
		}
		return assigned

	case *ast.RunStmt:
		b.checkExprList(st.Args, assigned, sm)
		b.checkOptions(st.Options, assigned, sm)
		return assigned

	case *ast.ExecStmt:
		b.checkExprList(st.Args, assigned, sm)
		return assigned

	case *ast.PrintStmt:
		b.checkExprTop(st.Value, assigned, false, sm)
		return assigned

	case *ast.IfStmt:
		var outcomes []nameSet
		outcomes = append(outcomes, b.checkBlock(st.Then, assigned, sm))
		for _, e := range st.Elifs {
			b.checkExprTop(e.Cond, assigned, false, sm)
			outcomes = append(outcomes, b.checkBlock(e.Body, assigned, sm))
		}
		if st.Else != nil {
			outcomes = append(outcomes, b.checkBlock(st.Else, assigned, sm))
		} else {
			outcomes = append(outcomes, assigned)
		}
		b.checkExprTop(st.Cond, assigned, false, sm)
		merged := outcomes[0]
		for _, o := range outcomes[1:] {
			merged = intersect(merged, o)
		}
		return merged

	case *ast.WhileStmt:
		b.checkExprTop(st.Cond, assigned, false, sm)
		post := b.checkBlock(st.Body, assigned, sm)
		return intersect(post, assigned)

	case *ast.ForStmt:
		b.checkIterable(st.Iterable, assigned, sm)
		preLoop := assigned
		withVar := assigned.clone()
		withVar[st.Var] = true
		post := b.checkBlock(st.Body, withVar, sm)
		merged := intersect(post, preLoop)
		merged[st.Var] = true
		return merged

	case *ast.ForMapStmt:
		b.checkExprTop(st.Map, assigned, false, sm)
		preLoop := assigned
		withVars := assigned.clone()
		withVars[st.KeyVar] = true
		withVars[st.ValVar] = true
		post := b.checkBlock(st.Body, withVars, sm)
		merged := intersect(post, preLoop)
		merged[st.KeyVar] = true
		merged[st.ValVar] = true
		return merged

	case *ast.CaseStmt:
		b.checkExprTop(st.Expr, assigned, false, sm)
		hasWildcard := false
		var outcomes []nameSet
		for _, arm := range st.Arms {
			for _, pat := range arm.Patterns {
				if pat.Kind == ast.PatternWildcard {
					hasWildcard = true
				}
			}
			outcomes = append(outcomes, b.checkBlock(arm.Body, assigned, sm))
		}
		if !hasWildcard {
			outcomes = append(outcomes, assigned)
		}
		if len(outcomes) == 0 {
			return assigned
		}
		merged := outcomes[0]
		for _, o := range outcomes[1:] {
			merged = intersect(merged, o)
		}
		return merged

	case *ast.PipeStmt:
		for _, seg := range st.Segments {
			b.checkExprList(seg.Args, assigned, sm)
			b.checkOptions(seg.Options, assigned, sm)
			if seg.Block != nil {
				b.checkBlock(seg.Block, assigned, sm)
			}
			if seg.EachBody != nil {
				withVar := assigned.clone()
				withVar[seg.EachVar] = true
				b.checkBlock(seg.EachBody, withVar, sm)
			}
		}
		return assigned

	case *ast.TryCatchStmt:
		postTry := b.checkBlock(st.Try, assigned, sm)
		postCatch := b.checkBlock(st.Catch, assigned, sm)
		return intersect(postTry, postCatch)

	case *ast.AndOrStmt:
		left := b.checkStmt(st.Left, assigned, nameSet{}, sm)
		right := b.checkStmt(st.Right, left, nameSet{}, sm)
		return intersect(left, right)

	case *ast.WithEnvStmt:
		for _, bind := range st.Bindings {
			b.checkExprTop(bind.Value, assigned, false, sm)
		}
		return b.checkBlock(st.Body, assigned, sm)

	case *ast.WithCwdStmt:
		if _, ok := st.Path.(*ast.StringLit); !ok {
			b.fail(sm, st.Span, "with cwd(...) requires a literal path")
		}
		return b.checkBlock(st.Body, assigned, sm)

	case *ast.WithLogStmt:
		b.checkExprTop(st.Path, assigned, false, sm)
		return b.checkBlock(st.Body, assigned, sm)

	case *ast.WithRedirectStmt:
		for _, t := range st.Redirects.Stdout {
			if t.Path != nil {
				b.checkExprTop(t.Path, assigned, false, sm)
			}
		}
		for _, t := range st.Redirects.Stderr {
			if t.Path != nil {
				b.checkExprTop(t.Path, assigned, false, sm)
			}
		}
		for _, t := range st.Redirects.Stdin {
			if t.Path != nil {
				b.checkExprTop(t.Path, assigned, false, sm)
			}
		}
		return b.checkBlock(st.Body, assigned, sm)

	case *ast.SubshellStmt:
		b.checkBlock(st.Body, assigned, sm) // discarded: a real subshell, assignments don't escape
		return assigned

	case *ast.GroupStmt:
		return b.checkBlock(st.Body, assigned, sm)

	case *ast.SpawnStmt:
		b.checkStmt(st.Body, assigned, nameSet{}, sm) // discarded, same reasoning as Subshell
		return assigned

	case *ast.WaitStmt:
		if st.Pid != nil {
			b.checkExprTop(st.Pid, assigned, false, sm)
		}
		return assigned

	case *ast.ReturnStmt:
		if st.Value != nil {
			b.checkExprTop(st.Value, assigned, false, sm)
		}
		return assigned

	case *ast.ExitStmt:
		if st.Code != nil {
			b.checkExprTop(st.Code, assigned, false, sm)
		}
		return assigned

	case *ast.BreakStmt, *ast.ContinueStmt:
		return assigned

	case *ast.ExportStmt:
		if st.Value != nil {
			b.checkExprTop(st.Value, assigned, false, sm)
		}
		return assigned

	case *ast.UnsetStmt:
		return assigned

	case *ast.SourceStmt:
		b.checkExprTop(st.Path, assigned, false, sm)
		return assigned

	case *ast.CdStmt:
		b.checkExprTop(st.Path, assigned, false, sm)
		return assigned

	case *ast.ShStmt:
		b.checkExprTop(st.Cmd, assigned, false, sm)
		b.checkOptions(st.Options, assigned, sm)
		return assigned

	case *ast.ShBlockStmt:
		return assigned

	case *ast.CallStmt:
		b.checkExprList(st.Args, assigned, sm)
		b.checkOptions(st.Options, assigned, sm)
		if st.Name == "write_file" {
			b.checkWriteFileArgs(st.Args, sm, st.Span)
		}
		return assigned

	default:
		return assigned
	}
}

func (b *Binder) checkIterable(it ast.Iterable, assigned nameSet, sm *span.SourceMap) {
	switch it.Kind {
	case ast.IterList:
		b.checkExprTop(it.List, assigned, false, sm)
	case ast.IterRange:
		b.checkExprTop(it.RangeStart, assigned, false, sm)
		b.checkExprTop(it.RangeEnd, assigned, false, sm)
	case ast.IterFind0:
		if it.FindSpec != nil {
			b.checkExprTop(it.FindSpec, assigned, false, sm)
		}
	case ast.IterStdinLines:
		// no sub-expression to check
	}
}

func (b *Binder) checkExprList(exprs []ast.Expression, assigned nameSet, sm *span.SourceMap) {
	for _, e := range exprs {
		b.checkExprTop(e, assigned, false, sm)
	}
}

func (b *Binder) checkOptions(opts []ast.CallOption, assigned nameSet, sm *span.SourceMap) {
	for _, o := range opts {
		b.checkExprTop(o.Value, assigned, false, sm)
	}
}

func (b *Binder) checkWriteFileArgs(args []ast.Expression, sm *span.SourceMap, sp span.Span) {
	if len(args) < 3 {
		return
	}
	if _, ok := args[2].(*ast.BoolLit); !ok {
		b.fail(sm, sp, "write_file's third argument (append) must be a boolean literal")
	}
}

// checkExprTop is the entry point for one expression position; isLetRHS is
// true only when e is the direct, unwrapped right-hand side of a Let
// statement (invariants 6 and 7: try_run/allow_fail-capture are legal only
// there).
func (b *Binder) checkExprTop(e ast.Expression, assigned nameSet, isLetRHS bool, sm *span.SourceMap) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ast.TryRunExpr:
		if !isLetRHS {
			b.fail(sm, ex.Span, "try_run(...) is only allowed as the right-hand side of a let statement")
		}
		b.checkExprList(ex.Args, assigned, sm)
		return
	case *ast.CaptureExpr:
		if ex.AllowFail && !isLetRHS {
			b.fail(sm, ex.Span, "capture(..., allow_fail=true) is only allowed as the right-hand side of a let statement")
		}
	case *ast.CallExpr:
		if ex.Name == "stdin_lines" || ex.Name == "find0" {
			b.fail(sm, ex.Span, "%s() is only allowed as a for-loop iterable", ex.Name)
		}
	}
	b.checkExpr(e, assigned, sm)
}

// checkExpr walks e's subexpressions checking every Var reference against
// assigned. It never treats nested nodes as a Let RHS.
func (b *Binder) checkExpr(e ast.Expression, assigned nameSet, sm *span.SourceMap) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ast.Var:
		if !assigned[ex.Name] {
			b.fail(sm, ex.Span, "variable %q is not declared on every path reaching this point", ex.Name)
		}
	case *ast.StringLit, *ast.NumberLit, *ast.BoolLit, *ast.NiladicExpr, *ast.EnvDotExpr:
		// leaves
	case *ast.InterpString:
		for _, part := range ex.Parts {
			if part.IsExpr {
				b.checkExpr(part.Expr, assigned, sm)
			}
		}
	case *ast.ListLit:
		b.checkExprList(ex.Items, assigned, sm)
	case *ast.MapLit:
		b.checkExprList(ex.Values, assigned, sm)
	case *ast.BinOp:
		b.checkExpr(ex.Left, assigned, sm)
		b.checkExpr(ex.Right, assigned, sm)
	case *ast.UnaryOp:
		b.checkExpr(ex.Operand, assigned, sm)
	case *ast.PathPredicate:
		b.checkExpr(ex.Arg, assigned, sm)
	case *ast.StringPredicate:
		b.checkExprList(ex.Args, assigned, sm)
	case *ast.LenExpr:
		b.checkExpr(ex.Arg, assigned, sm)
	case *ast.CountExpr:
		b.checkExpr(ex.Arg, assigned, sm)
	case *ast.ArgExpr:
		b.checkExpr(ex.Index, assigned, sm)
	case *ast.IndexExpr:
		b.checkExpr(ex.Base, assigned, sm)
		b.checkExpr(ex.Index, assigned, sm)
	case *ast.FieldExpr:
		b.checkExpr(ex.Base, assigned, sm)
	case *ast.JoinExpr:
		b.checkExpr(ex.List, assigned, sm)
		b.checkExpr(ex.Sep, assigned, sm)
	case *ast.EnvExpr:
		b.checkExpr(ex.Name, assigned, sm)
	case *ast.InputExpr:
		if ex.Prompt != nil {
			b.checkExpr(ex.Prompt, assigned, sm)
		}
	case *ast.ConfirmExpr:
		if ex.Prompt != nil {
			b.checkExpr(ex.Prompt, assigned, sm)
		}
		if ex.Default != nil {
			b.checkExpr(ex.Default, assigned, sm)
		}
	case *ast.CommandExpr:
		b.checkExprList(ex.Args, assigned, sm)
	case *ast.CommandPipeExpr:
		for _, seg := range ex.Segments {
			b.checkExprList(seg, assigned, sm)
		}
	case *ast.CaptureExpr:
		b.checkExpr(ex.Inner, assigned, sm)
		b.checkOptions(ex.Options, assigned, sm)
	case *ast.TryRunExpr:
		b.checkExprList(ex.Args, assigned, sm)
	case *ast.ShExpr:
		b.checkExpr(ex.Cmd, assigned, sm)
		b.checkOptions(ex.Options, assigned, sm)
	case *ast.SudoExpr:
		b.checkExprList(ex.Args, assigned, sm)
		b.checkOptions(ex.Options, assigned, sm)
	case *ast.MapIndexExpr:
		b.checkExpr(ex.Map, assigned, sm)
		b.checkExpr(ex.Key, assigned, sm)
	case *ast.CallExpr:
		b.checkExprList(ex.Args, assigned, sm)
		b.checkOptions(ex.Options, assigned, sm)
	}
}
