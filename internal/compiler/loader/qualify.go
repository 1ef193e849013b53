package loader

import (
	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

// resolveQualifiedCalls rewrites every `alias.name(...)` call in file against
// aliasTargets (this file's own import aliases, mapped to the resolved path
// of the imported file) and declared (each already-loaded path's own
// directly-declared function names). A file only grants qualified access to
// functions it declares itself, not to names it in turn imported.
//
// Functions carry a single globally unique name across the whole program
// (loadFile rejects collisions on merge), so resolution here never needs to
// invent a mangled name distinct from the target's own: once an alias and
// callee are validated, the call's Qualifier is simply cleared and Name is
// left as the target's already-unique function name, after which the
// binder, lower, and codegen stages see an ordinary call.
func (l *Loader) resolveQualifiedCalls(file *ast.File, sm *span.SourceMap, aliasTargets map[string]string, declared map[string]map[string]bool) bool {
	for _, fn := range file.Functions {
		if !l.resolveBlock(fn.Body, sm, aliasTargets, declared) {
			return false
		}
	}
	return true
}

func (l *Loader) qualifiedTarget(qualifier string, qualSpan span.Span, sm *span.SourceMap, aliasTargets map[string]string, declared map[string]map[string]bool, name string, sp span.Span) (string, bool) {
	target, ok := aliasTargets[qualifier]
	if !ok {
		l.errs.Add(errors.New(errors.Import, sm, qualSpan, "unknown import alias %q", qualifier))
		return "", false
	}
	if !declared[target][name] {
		l.errs.Add(errors.New(errors.Import, sm, sp, "unknown function %q.%q", qualifier, name))
		return "", false
	}
	return target, true
}

func (l *Loader) resolveBlock(stmts []ast.Statement, sm *span.SourceMap, aliasTargets map[string]string, declared map[string]map[string]bool) bool {
	for _, s := range stmts {
		if !l.resolveStmt(s, sm, aliasTargets, declared) {
			return false
		}
	}
	return true
}

func (l *Loader) resolveStmt(s ast.Statement, sm *span.SourceMap, aliasTargets map[string]string, declared map[string]map[string]bool) bool {
	ok := true
	chk := func(e ast.Expression) {
		if ok {
			ok = l.resolveExpr(e, sm, aliasTargets, declared)
		}
	}
	chkList := func(es []ast.Expression) {
		for _, e := range es {
			chk(e)
		}
	}
	chkOpts := func(opts []ast.CallOption) {
		for _, o := range opts {
			chk(o.Value)
		}
	}
	chkBlock := func(b []ast.Statement) {
		if ok {
			ok = l.resolveBlock(b, sm, aliasTargets, declared)
		}
	}

	switch st := s.(type) {
	case *ast.LetStmt:
		chk(st.Value)
	case *ast.SetStmt:
		chk(st.Value)
	case *ast.RunStmt:
		chkList(st.Args)
		chkOpts(st.Options)
	case *ast.ExecStmt:
		chkList(st.Args)
	case *ast.PrintStmt:
		chk(st.Value)
	case *ast.IfStmt:
		chk(st.Cond)
		chkBlock(st.Then)
		for _, e := range st.Elifs {
			chk(e.Cond)
			chkBlock(e.Body)
		}
		if st.Else != nil {
			chkBlock(st.Else)
		}
	case *ast.WhileStmt:
		chk(st.Cond)
		chkBlock(st.Body)
	case *ast.ForStmt:
		if st.Iterable.List != nil {
			chk(st.Iterable.List)
		}
		if st.Iterable.RangeStart != nil {
			chk(st.Iterable.RangeStart)
		}
		if st.Iterable.RangeEnd != nil {
			chk(st.Iterable.RangeEnd)
		}
		if st.Iterable.FindSpec != nil {
			chk(st.Iterable.FindSpec)
		}
		chkBlock(st.Body)
	case *ast.ForMapStmt:
		chk(st.Map)
		chkBlock(st.Body)
	case *ast.CaseStmt:
		chk(st.Expr)
		for _, arm := range st.Arms {
			chkBlock(arm.Body)
		}
	case *ast.PipeStmt:
		for _, seg := range st.Segments {
			chkList(seg.Args)
			chkOpts(seg.Options)
			if seg.Block != nil {
				chkBlock(seg.Block)
			}
			if seg.EachBody != nil {
				chkBlock(seg.EachBody)
			}
		}
	case *ast.TryCatchStmt:
		chkBlock(st.Try)
		chkBlock(st.Catch)
	case *ast.AndOrStmt:
		if ok {
			ok = l.resolveStmt(st.Left, sm, aliasTargets, declared)
		}
		if ok {
			ok = l.resolveStmt(st.Right, sm, aliasTargets, declared)
		}
	case *ast.WithEnvStmt:
		for _, b := range st.Bindings {
			chk(b.Value)
		}
		chkBlock(st.Body)
	case *ast.WithCwdStmt:
		chk(st.Path)
		chkBlock(st.Body)
	case *ast.WithLogStmt:
		chk(st.Path)
		chkBlock(st.Body)
	case *ast.WithRedirectStmt:
		for _, t := range st.Redirects.Stdout {
			if t.Path != nil {
				chk(t.Path)
			}
		}
		for _, t := range st.Redirects.Stderr {
			if t.Path != nil {
				chk(t.Path)
			}
		}
		for _, t := range st.Redirects.Stdin {
			if t.Path != nil {
				chk(t.Path)
			}
		}
		chkBlock(st.Body)
	case *ast.SubshellStmt:
		chkBlock(st.Body)
	case *ast.GroupStmt:
		chkBlock(st.Body)
	case *ast.SpawnStmt:
		if ok {
			ok = l.resolveStmt(st.Body, sm, aliasTargets, declared)
		}
	case *ast.WaitStmt:
		if st.Pid != nil {
			chk(st.Pid)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			chk(st.Value)
		}
	case *ast.ExitStmt:
		if st.Code != nil {
			chk(st.Code)
		}
	case *ast.ExportStmt:
		if st.Value != nil {
			chk(st.Value)
		}
	case *ast.SourceStmt:
		chk(st.Path)
	case *ast.CdStmt:
		chk(st.Path)
	case *ast.ShStmt:
		chk(st.Cmd)
		chkOpts(st.Options)
	case *ast.CallStmt:
		chkList(st.Args)
		chkOpts(st.Options)
		if ok && st.Qualifier != "" {
			if _, resolved := l.qualifiedTarget(st.Qualifier, st.QualifierSpan, sm, aliasTargets, declared, st.Name, st.Span); resolved {
				st.Qualifier = ""
			} else {
				ok = false
			}
		}
	}
	return ok
}

func (l *Loader) resolveExpr(e ast.Expression, sm *span.SourceMap, aliasTargets map[string]string, declared map[string]map[string]bool) bool {
	if e == nil {
		return true
	}
	ok := true
	chk := func(x ast.Expression) {
		if ok {
			ok = l.resolveExpr(x, sm, aliasTargets, declared)
		}
	}
	chkList := func(es []ast.Expression) {
		for _, x := range es {
			chk(x)
		}
	}
	chkOpts := func(opts []ast.CallOption) {
		for _, o := range opts {
			chk(o.Value)
		}
	}

	switch ex := e.(type) {
	case *ast.InterpString:
		for _, part := range ex.Parts {
			if part.IsExpr {
				chk(part.Expr)
			}
		}
	case *ast.ListLit:
		chkList(ex.Items)
	case *ast.MapLit:
		chkList(ex.Values)
	case *ast.BinOp:
		chk(ex.Left)
		chk(ex.Right)
	case *ast.UnaryOp:
		chk(ex.Operand)
	case *ast.PathPredicate:
		chk(ex.Arg)
	case *ast.StringPredicate:
		chkList(ex.Args)
	case *ast.LenExpr:
		chk(ex.Arg)
	case *ast.CountExpr:
		chk(ex.Arg)
	case *ast.ArgExpr:
		chk(ex.Index)
	case *ast.IndexExpr:
		chk(ex.Base)
		chk(ex.Index)
	case *ast.FieldExpr:
		chk(ex.Base)
	case *ast.JoinExpr:
		chk(ex.List)
		chk(ex.Sep)
	case *ast.EnvExpr:
		chk(ex.Name)
	case *ast.InputExpr:
		if ex.Prompt != nil {
			chk(ex.Prompt)
		}
	case *ast.ConfirmExpr:
		if ex.Prompt != nil {
			chk(ex.Prompt)
		}
		if ex.Default != nil {
			chk(ex.Default)
		}
	case *ast.CommandExpr:
		chkList(ex.Args)
	case *ast.CommandPipeExpr:
		for _, seg := range ex.Segments {
			chkList(seg)
		}
	case *ast.CaptureExpr:
		chk(ex.Inner)
		chkOpts(ex.Options)
	case *ast.TryRunExpr:
		chkList(ex.Args)
	case *ast.ShExpr:
		chk(ex.Cmd)
		chkOpts(ex.Options)
	case *ast.SudoExpr:
		chkList(ex.Args)
		chkOpts(ex.Options)
	case *ast.MapIndexExpr:
		chk(ex.Map)
		chk(ex.Key)
	case *ast.CallExpr:
		chkList(ex.Args)
		chkOpts(ex.Options)
		if ok && ex.Qualifier != "" {
			if _, resolved := l.qualifiedTarget(ex.Qualifier, ex.QualifierSpan, sm, aliasTargets, declared, ex.Name, ex.Span); resolved {
				ex.Qualifier = ""
			} else {
				ok = false
			}
		}
	}
	return ok
}
