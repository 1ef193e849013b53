package formatter

import (
	"fmt"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ast"
)

// formatStmt renders one statement at indent depth, returning the lines it
// occupies (a simple statement is one line; a block-bearing statement is
// several).
func formatStmt(s ast.Statement, depth int) []string {
	pad := indent(depth)
	switch v := s.(type) {
	case *ast.LetStmt:
		return []string{pad + "let " + v.Name + " = " + formatExpr(v.Value)}
	case *ast.SetStmt:
		return []string{pad + "set " + formatLValue(v.Target) + " = " + formatExpr(v.Value)}
	case *ast.RunStmt:
		return []string{pad + "run(" + formatArgsAndOptions(v.Args, nil, v.Options) + ")"}
	case *ast.ExecStmt:
		return []string{pad + "exec(" + formatExprList(v.Args) + ")"}
	case *ast.PrintStmt:
		name := "print"
		if v.Err {
			name = "printerr"
		}
		return []string{pad + name + "(" + formatExpr(v.Value) + ")"}
	case *ast.IfStmt:
		return formatIfStmt(v, depth)
	case *ast.WhileStmt:
		lines := []string{pad + "while " + formatExpr(v.Cond) + " {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.ForStmt:
		lines := []string{pad + "for " + v.Var + " in " + formatIterable(v.Iterable) + " {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.ForMapStmt:
		lines := []string{pad + "for (" + v.KeyVar + ", " + v.ValVar + ") in " + formatExpr(v.Map) + " {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.CaseStmt:
		return formatCaseStmt(v, depth)
	case *ast.PipeStmt:
		return formatPipeStmt(v, depth)
	case *ast.TryCatchStmt:
		lines := []string{pad + "try {"}
		lines = append(lines, formatBlock(v.Try, depth+1)...)
		lines = append(lines, pad+"} catch {")
		lines = append(lines, formatBlock(v.Catch, depth+1)...)
		return append(lines, pad+"}")
	case *ast.AndOrStmt:
		op := "||"
		if v.IsAnd {
			op = "&&"
		}
		left := formatStmt(v.Left, depth)
		right := formatStmt(v.Right, 0)
		if len(left) == 0 || len(right) == 0 {
			return left
		}
		left[len(left)-1] += " " + op + " " + strings.TrimSpace(right[0])
		return left
	case *ast.WithEnvStmt:
		bindings := make([]string, len(v.Bindings))
		for i, b := range v.Bindings {
			bindings[i] = b.Name + "=" + formatExpr(b.Value)
		}
		lines := []string{pad + "with env {" + strings.Join(bindings, ", ") + "} {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.WithCwdStmt:
		lines := []string{pad + "with cwd(" + formatExpr(v.Path) + ") {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.WithLogStmt:
		args := formatExpr(v.Path)
		if v.Append {
			args += ", true"
		}
		lines := []string{pad + "with log(" + args + ") {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.WithRedirectStmt:
		return formatWithRedirectStmt(v, depth)
	case *ast.SubshellStmt:
		lines := []string{pad + "subshell {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.GroupStmt:
		lines := []string{pad + "group {"}
		lines = append(lines, formatBlock(v.Body, depth+1)...)
		return append(lines, pad+"}")
	case *ast.SpawnStmt:
		inner := formatStmt(v.Body, depth)
		if len(inner) > 0 {
			inner[0] = pad + "spawn " + strings.TrimSpace(inner[0])
		}
		return inner
	case *ast.WaitStmt:
		if v.Pid == nil {
			return []string{pad + "wait"}
		}
		return []string{pad + "wait(" + formatExpr(v.Pid) + ")"}
	case *ast.ReturnStmt:
		if v.Value == nil {
			return []string{pad + "return"}
		}
		return []string{pad + "return " + formatExpr(v.Value)}
	case *ast.ExitStmt:
		if v.Code == nil {
			return []string{pad + "exit"}
		}
		return []string{pad + "exit " + formatExpr(v.Code)}
	case *ast.BreakStmt:
		return []string{pad + "break"}
	case *ast.ContinueStmt:
		return []string{pad + "continue"}
	case *ast.ExportStmt:
		if v.Value == nil {
			return []string{pad + "export " + v.Name}
		}
		return []string{pad + "export " + v.Name + " = " + formatExpr(v.Value)}
	case *ast.UnsetStmt:
		return []string{pad + "unset " + v.Name}
	case *ast.SourceStmt:
		return []string{pad + "source(" + formatExpr(v.Path) + ")"}
	case *ast.CdStmt:
		return []string{pad + "cd(" + formatExpr(v.Path) + ")"}
	case *ast.ShStmt:
		return []string{pad + "sh(" + formatArgsAndOptions(nil, v.Cmd, v.Options) + ")"}
	case *ast.ShBlockStmt:
		lines := []string{pad + "sh {"}
		for _, l := range v.Lines {
			lines = append(lines, indent(depth+1)+l)
		}
		return append(lines, pad+"}")
	case *ast.CallStmt:
		name := v.Name
		if v.Qualifier != "" {
			name = v.Qualifier + "." + name
		}
		return []string{pad + name + "(" + formatArgsAndOptions(v.Args, nil, v.Options) + ")"}
	default:
		return []string{pad + fmt.Sprintf("/* unknown stmt %T */", s)}
	}
}

func formatLValue(l ast.LValue) string {
	switch v := l.(type) {
	case ast.VarLValue:
		return v.Name
	case ast.EnvLValue:
		return "$" + v.Name
	default:
		return fmt.Sprintf("/* unknown lvalue %T */", l)
	}
}

func formatIfStmt(v *ast.IfStmt, depth int) []string {
	pad := indent(depth)
	lines := []string{pad + "if " + formatExpr(v.Cond) + " {"}
	lines = append(lines, formatBlock(v.Then, depth+1)...)
	for _, elif := range v.Elifs {
		lines = append(lines, pad+"} elif "+formatExpr(elif.Cond)+" {")
		lines = append(lines, formatBlock(elif.Body, depth+1)...)
	}
	if v.Else != nil {
		lines = append(lines, pad+"} else {")
		lines = append(lines, formatBlock(v.Else, depth+1)...)
	}
	return append(lines, pad+"}")
}

func formatIterable(it ast.Iterable) string {
	switch it.Kind {
	case ast.IterRange:
		return "range(" + formatExpr(it.RangeStart) + ", " + formatExpr(it.RangeEnd) + ")"
	case ast.IterStdinLines:
		return "stdin_lines()"
	case ast.IterFind0:
		return "find0(" + formatExpr(it.FindSpec) + ")"
	default:
		return formatExpr(it.List)
	}
}

func formatCaseStmt(v *ast.CaseStmt, depth int) []string {
	pad := indent(depth)
	armPad := indent(depth + 1)
	lines := []string{pad + "case " + formatExpr(v.Expr) + " {"}
	for i, arm := range v.Arms {
		pats := make([]string, len(arm.Patterns))
		for j, p := range arm.Patterns {
			pats[j] = formatPattern(p)
		}
		sep := ""
		if i < len(v.Arms)-1 {
			sep = ","
		}
		lines = append(lines, armPad+strings.Join(pats, " | ")+": {")
		lines = append(lines, formatBlock(arm.Body, depth+2)...)
		lines = append(lines, armPad+"}"+sep)
	}
	return append(lines, pad+"}")
}

func formatPattern(p ast.Pattern) string {
	switch p.Kind {
	case ast.PatternGlob:
		return `glob("` + escapeString(p.Text) + `")`
	case ast.PatternWildcard:
		return "_"
	default:
		return `"` + escapeString(p.Text) + `"`
	}
}

func formatPipeStmt(v *ast.PipeStmt, depth int) []string {
	pad := indent(depth)
	segs := make([]string, 0, len(v.Segments))
	var blockLines []string
	for _, seg := range v.Segments {
		switch seg.Kind {
		case ast.SegRun:
			segs = append(segs, "run("+formatArgsAndOptions(seg.Args, nil, seg.Options)+")")
		case ast.SegSudo:
			segs = append(segs, "sudo("+formatArgsAndOptions(seg.Args, nil, seg.Options)+")")
		case ast.SegBlock:
			segs = append(segs, "{…}")
			blockLines = append(blockLines, seg.Block...)
		case ast.SegEachLine:
			segs = append(segs, "each_line "+seg.EachVar+" {…}")
			blockLines = append(blockLines, seg.EachBody...)
		}
	}
	// Block/each_line segments carry their own nested body; render them
	// inline since the pipe stays a single logical statement.
	if blockLines == nil {
		return []string{pad + "pipe " + strings.Join(segs, " | ")}
	}
	return formatPipeWithBlocks(v, depth)
}

// formatPipeWithBlocks handles the (rarer) case of a block or each_line
// segment inside a pipeline, which needs its own braces rather than the
// single-line "{…}" placeholder formatPipeStmt's fast path would emit.
func formatPipeWithBlocks(v *ast.PipeStmt, depth int) []string {
	pad := indent(depth)
	var lines []string
	for i, seg := range v.Segments {
		prefix := pad
		if i == 0 {
			prefix = pad + "pipe "
		} else {
			prefix = pad + "| "
		}
		switch seg.Kind {
		case ast.SegRun:
			lines = append(lines, prefix+"run("+formatArgsAndOptions(seg.Args, nil, seg.Options)+")")
		case ast.SegSudo:
			lines = append(lines, prefix+"sudo("+formatArgsAndOptions(seg.Args, nil, seg.Options)+")")
		case ast.SegBlock:
			lines = append(lines, prefix+"{")
			lines = append(lines, formatBlock(seg.Block, depth+1)...)
			lines = append(lines, pad+"}")
		case ast.SegEachLine:
			lines = append(lines, prefix+"each_line "+seg.EachVar+" {")
			lines = append(lines, formatBlock(seg.EachBody, depth+1)...)
			lines = append(lines, pad+"}")
		}
	}
	return lines
}

func formatWithRedirectStmt(v *ast.WithRedirectStmt, depth int) []string {
	pad := indent(depth)
	var entries []string
	if len(v.Redirects.Stdout) > 0 {
		entries = append(entries, "stdout: "+formatRedirectTargets(v.Redirects.Stdout))
	}
	if len(v.Redirects.Stderr) > 0 {
		entries = append(entries, "stderr: "+formatRedirectTargets(v.Redirects.Stderr))
	}
	if len(v.Redirects.Stdin) > 0 {
		entries = append(entries, "stdin: "+formatRedirectTargets(v.Redirects.Stdin))
	}
	lines := []string{pad + "with redirect {" + strings.Join(entries, ", ") + "} {"}
	lines = append(lines, formatBlock(v.Body, depth+1)...)
	return append(lines, pad+"}")
}

func formatRedirectTargets(ts []ast.RedirectTarget) string {
	if len(ts) == 1 {
		return formatRedirectTarget(ts[0])
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = formatRedirectTarget(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatRedirectTarget(t ast.RedirectTarget) string {
	switch t.Kind {
	case ast.RedirectFile:
		s := "file(" + formatExpr(t.Path)
		if t.Append {
			s += ", append=true"
		}
		return s + ")"
	case ast.RedirectToStdout:
		return "to_stdout()"
	case ast.RedirectToStderr:
		return "to_stderr()"
	case ast.RedirectInheritStdout:
		return "inherit_stdout()"
	case ast.RedirectInheritStderr:
		return "inherit_stderr()"
	default:
		return "/* unknown redirect */"
	}
}
