package codegen

import (
	"fmt"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ir"
)

// emitCmd renders one IR command. mode tells a trailing fail-fast check
// whether to `exit` or `return` on non-zero status.
func (e *Emitter) emitCmd(c ir.Cmd, mode checkMode) {
	switch s := c.(type) {
	case *ir.Let:
		e.emitLet(s)
	case *ir.Set:
		e.emitSet(s)
	case *ir.Run:
		e.writelnf("%s", e.emitArgv(s.Argv))
		e.emitCheck(s.Loc, s.AllowFail, mode)
	case *ir.ExecReplace:
		e.writelnf("exec %s", e.emitArgv(s.Argv))
	case *ir.Print:
		if s.Err {
			e.writelnf("printf '%%s\\n' %s >&2", e.emitVal(s.Value))
		} else {
			e.writelnf("printf '%%s\\n' %s", e.emitVal(s.Value))
		}
	case *ir.If:
		e.emitIf(s, mode)
	case *ir.While:
		e.writelnf("while %s; do", e.emitCond(s.Cond))
		e.indent++
		e.emitBody(s.Body, mode)
		e.indent--
		e.writeln("done")
	case *ir.ForList:
		e.emitForList(s, mode)
	case *ir.ForRange:
		e.emitForRange(s, mode)
	case *ir.ForLines:
		e.emitForLines(s, mode)
	case *ir.ForFind0:
		e.emitForFind0(s, mode)
	case *ir.ForMap:
		e.emitForMap(s, mode)
	case *ir.Case:
		e.emitCase(s, mode)
	case *ir.Pipe:
		e.emitPipe(s, mode)
	case *ir.PipeBlocks:
		e.emitPipeBlocks(s, mode)
	case *ir.WithRedirect:
		e.emitWithRedirect(s, mode)
	case *ir.Spawn:
		e.emitSpawn(s)
	case *ir.Wait:
		if s.Pid != nil {
			e.writelnf("wait %s", e.emitVal(s.Pid))
		} else {
			e.writeln("wait")
		}
	case *ir.TryCatch:
		e.emitTryCatch(s, mode)
	case *ir.AndThen:
		e.writeln("if {")
		e.indent++
		e.emitCmd(s.Left, ctxReturn)
		e.indent--
		e.writeln("}; then")
		e.indent++
		e.emitCmd(s.Right, mode)
		e.indent--
		e.writeln("fi")
	case *ir.OrElse:
		e.writeln("if ! {")
		e.indent++
		e.emitCmd(s.Left, ctxReturn)
		e.indent--
		e.writeln("}; then")
		e.indent++
		e.emitCmd(s.Right, mode)
		e.indent--
		e.writeln("fi")
	case *ir.Subshell:
		e.writeln("(")
		e.indent++
		e.emitBody(s.Body, mode)
		e.indent--
		e.writeln(")")
	case *ir.Group:
		e.writeln("{")
		e.indent++
		e.emitBody(s.Body, mode)
		e.indent--
		e.writeln("}")
	case *ir.WithEnv:
		e.emitWithEnv(s, mode)
	case *ir.WithCwd:
		e.emitWithCwd(s, mode)
	case *ir.WithLog:
		e.emitWithLog(s, mode)
	case *ir.Log:
		ts := "0"
		if s.Timestamp {
			ts = "1"
		}
		level := s.Level
		if level == "" {
			level = "info"
		}
		e.writelnf("__sh2_log %s %s %s", shQuote(level), e.emitVal(s.Msg), shQuote(ts))
	case *ir.Require:
		e.writelnf("__sh2_require %s", e.emitArgv(s.Argv))
	case *ir.SaveEnvfile:
		e.writelnf("__sh2_save_envfile %s <<'__SH2_EOF__'", e.emitVal(s.Path))
		e.writelnf("$(%s)", e.bareVal(s.Map))
		e.writeln("__SH2_EOF__")
	case *ir.WriteFile:
		append := "0"
		if s.Append {
			append = "1"
		}
		e.writelnf("__sh2_write_file %s %s %s", e.emitVal(s.Path), e.emitVal(s.Content), shQuote(append))
		e.emitCheck(s.Loc, false, mode)
	case *ir.Source:
		e.writelnf(". %s", e.emitVal(s.Path))
		e.emitCheck(s.Loc, false, mode)
	case *ir.Return:
		if s.Value != nil {
			e.writelnf("return %s", e.bareVal(s.Value))
		} else {
			e.writeln("return")
		}
	case *ir.Exit:
		if s.Code != nil {
			e.writelnf("exit %s", e.bareVal(s.Code))
		} else {
			e.writeln("exit 0")
		}
	case *ir.Break:
		e.writeln("break")
	case *ir.Continue:
		e.writeln("continue")
	case *ir.Export:
		if s.Value != nil {
			e.writelnf("export %s=%s", s.Name, e.emitVal(s.Value))
		} else {
			e.writelnf("export %s", s.Name)
		}
	case *ir.Unset:
		e.writelnf("unset %s", s.Name)
	case *ir.Cd:
		e.writelnf("cd %s", e.emitVal(s.Path))
		e.emitCheck(s.Loc, false, mode)
	case *ir.Raw:
		e.writelnf("%s", e.emitArgv(s.Argv))
		e.emitCheck(s.Loc, false, mode)
	case *ir.RawLine:
		e.writeln(s.Line)
	case *ir.ExprStmt:
		e.writelnf(": %s", e.bareVal(s.Value))
	default:
		e.fail("codegen: unhandled command %T", c)
	}
}

func (e *Emitter) emitBody(body []ir.Cmd, mode checkMode) {
	if len(body) == 0 {
		e.writeln(":")
		return
	}
	for _, c := range body {
		e.emitCmd(c, mode)
	}
}

func (e *Emitter) emitLet(s *ir.Let) {
	name := s.Name
	decl := ""
	if e.target == Bash {
		decl = "local "
	}
	if s.IsBool {
		e.writelnf(`%s%s=$(if %s; then printf 1; else printf 0; fi)`, decl, name, e.emitCond(s.Value))
		return
	}
	switch v := s.Value.(type) {
	case ir.Capture:
		e.emitCaptureLet(name, decl, v, s.Loc)
	case ir.TryRun:
		e.writelnf(`%s%s=$(%s)`, decl, name, e.emitArgv(v.Argv))
		e.writelnf(`__sh2_status=$?`)
	case ir.ListLit:
		if e.target == Bash {
			var parts []string
			for _, it := range v.Items {
				parts = append(parts, e.emitVal(it))
			}
			e.writelnf(`%s%s=(%s)`, decl, name, strings.Join(parts, " "))
		} else {
			e.writelnf(`%s%s=%s`, decl, name, e.emitVal(v))
		}
	case ir.MapLiteral:
		e.emitMapLet(name, decl, v)
	default:
		e.writelnf(`%s%s=%s`, decl, name, e.emitVal(s.Value))
		if _, ok := s.Value.(ir.Command); ok {
			e.emitCheck(s.Loc, false, ctxStatement)
		}
	}
}

func (e *Emitter) emitCaptureLet(name, decl string, cap ir.Capture, loc *ir.Loc) {
	if cap.WithStderr {
		e.writelnf(`%s__sh2_stderr_%s=$(__sh2_tmpfile)`, decl, name)
		e.writelnf(`%s%s=$(%s 2>"$__sh2_stderr_%s")`, decl, name, e.emitValStmtForm(cap.Inner), name)
		e.writelnf(`__sh2_status=$?`)
		e.writelnf(`%s%s__stderr=$(cat "$__sh2_stderr_%s")`, decl, name, name)
		e.writelnf(`%s%s__status=$__sh2_status`, decl, name)
	} else {
		e.writelnf(`%s%s=$(%s)`, decl, name, e.emitValStmtForm(cap.Inner))
		e.writelnf(`__sh2_status=$?`)
		e.writelnf(`%s%s__status=$__sh2_status`, decl, name)
	}
	if !cap.AllowFail {
		e.emitCheck(loc, false, ctxStatement)
	}
}

func (e *Emitter) emitMapLet(name, decl string, m ir.MapLiteral) {
	if e.target == Bash {
		arrayDecl := "declare -A"
		if decl != "" {
			arrayDecl = "local -A"
		}
		e.writelnf(`%s %s`, arrayDecl, name)
		for i, k := range m.Keys {
			e.writelnf(`%s[%s]=%s`, name, shQuote(k), e.emitVal(m.Values[i]))
		}
		e.writelnf(`__sh2_keys_%s=(%s)`, name, strings.Join(quoteAll(m.Keys), " "))
		return
	}
	for i, k := range m.Keys {
		e.writelnf(`__sh2_mapget_%s_%s=%s`, name, k, e.emitVal(m.Values[i]))
	}
	e.writelnf(`__sh2_keys_%s=%s`, name, shQuote(strings.Join(m.Keys, " ")))
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = shQuote(s)
	}
	return out
}

func (e *Emitter) emitSet(s *ir.Set) {
	if s.IsEnv {
		e.writelnf(`export %s=%s`, s.Target, e.emitVal(s.Value))
		return
	}
	e.writelnf(`%s=%s`, s.Target, e.emitVal(s.Value))
}

func (e *Emitter) emitIf(s *ir.If, mode checkMode) {
	e.writelnf("if %s; then", e.emitCond(s.Cond))
	e.indent++
	e.emitBody(s.Then, mode)
	e.indent--
	for _, el := range s.Elifs {
		e.writelnf("elif %s; then", e.emitCond(el.Cond))
		e.indent++
		e.emitBody(el.Body, mode)
		e.indent--
	}
	if len(s.Else) > 0 {
		e.writeln("else")
		e.indent++
		e.emitBody(s.Else, mode)
		e.indent--
	}
	e.writeln("fi")
}

func (e *Emitter) emitForList(s *ir.ForList, mode checkMode) {
	e.writelnf(`for %s in %s; do`, s.Var, e.emitForListItems(s.List))
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	e.writeln("done")
}

func (e *Emitter) emitForListItems(v ir.Val) string {
	if lit, ok := v.(ir.ListLit); ok {
		var parts []string
		for _, it := range lit.Items {
			parts = append(parts, e.emitVal(it))
		}
		return strings.Join(parts, " ")
	}
	if variable, ok := v.(ir.Var); ok {
		if e.target == Bash {
			return fmt.Sprintf(`"${%s[@]}"`, variable.Name)
		}
		return fmt.Sprintf(`$%s`, variable.Name)
	}
	return e.bareVal(v)
}

func (e *Emitter) emitForRange(s *ir.ForRange, mode checkMode) {
	if e.target == Bash {
		e.writelnf(`for (( %s=%s; %s<%s; %s++ )); do`, s.Var, e.bareVal(s.Start), s.Var, e.bareVal(s.End), s.Var)
	} else {
		e.writelnf(`%s=%s`, s.Var, e.bareVal(s.Start))
		e.writelnf(`while [ "$%s" -lt %s ]; do`, s.Var, e.bareVal(s.End))
	}
	e.indent++
	e.emitBody(s.Body, mode)
	if e.target == POSIX {
		e.writelnf(`%s=$((%s + 1))`, s.Var, s.Var)
	}
	e.indent--
	e.writeln("done")
}

func (e *Emitter) emitForLines(s *ir.ForLines, mode checkMode) {
	if e.target == Bash {
		e.writelnf(`__sh2_lines_src=%s`, e.emitVal(s.Text))
		e.writelnf(`while IFS= read -r %s || [ -n "$%s" ]; do`, s.Var, s.Var)
		e.indent++
		e.emitBody(s.Body, mode)
		e.indent--
		e.writelnf(`done <<< "$__sh2_lines_src"`)
		return
	}
	e.writelnf(`__sh2_lines_tmp=$(__sh2_tmpfile)`)
	e.writelnf(`printf '%%s\n' %s > "$__sh2_lines_tmp"`, e.emitVal(s.Text))
	e.writelnf(`while IFS= read -r %s || [ -n "$%s" ]; do`, s.Var, s.Var)
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	e.writelnf(`done < "$__sh2_lines_tmp"`)
}

func (e *Emitter) emitForFind0(s *ir.ForFind0, mode checkMode) {
	e.writelnf(`__sh2_find0_tmp=$(__sh2_tmpfile)`)
	e.writelnf(`%s > "$__sh2_find0_tmp"`, e.emitArgv([]ir.Val{s.Spec}))
	e.writelnf(`while IFS= read -r -d '' %s; do`, s.Var)
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	e.writelnf(`done < "$__sh2_find0_tmp"`)
}

func (e *Emitter) emitForMap(s *ir.ForMap, mode checkMode) {
	mapName := e.arrayName(s.Map)
	if e.target == Bash {
		e.writelnf(`for %s in "${__sh2_keys_%s[@]}"; do`, s.KeyVar, mapName)
		e.indent++
		e.writelnf(`local %s="${%s[%s]}"`, s.ValVar, mapName, s.KeyVar)
	} else {
		e.writelnf(`for %s in $__sh2_keys_%s; do`, s.KeyVar, mapName)
		e.indent++
		e.writelnf(`eval %s=\"\$__sh2_mapget_%s_$%s\"`, s.ValVar, mapName, s.KeyVar)
	}
	e.emitBody(s.Body, mode)
	e.indent--
	e.writeln("done")
}

func (e *Emitter) emitCase(s *ir.Case, mode checkMode) {
	e.writelnf(`case %s in`, e.emitVal(s.Expr))
	e.indent++
	for _, arm := range s.Arms {
		e.writelnf(`%s)`, e.emitCasePatterns(arm.Patterns))
		e.indent++
		e.emitBody(arm.Body, mode)
		e.writeln(";;")
		e.indent--
	}
	e.indent--
	e.writeln("esac")
}

func (e *Emitter) emitCasePatterns(pats []ir.CasePattern) string {
	var parts []string
	for _, p := range pats {
		switch p.Kind {
		case 2:
			parts = append(parts, "*")
		case 1:
			parts = append(parts, p.Text)
		default:
			parts = append(parts, shQuote(p.Text))
		}
	}
	return strings.Join(parts, "|")
}

func anyAllowFail(segs []ir.PipeSeg) bool {
	for _, seg := range segs {
		if seg.AllowFail {
			return true
		}
	}
	return false
}

func (e *Emitter) emitPipe(s *ir.Pipe, mode checkMode) {
	allowFail := anyAllowFail(s.Segments)
	if e.target == Bash {
		var segs []string
		for _, seg := range s.Segments {
			segs = append(segs, e.emitArgv(seg.Argv))
		}
		e.writeln("set -o pipefail")
		e.writelnf("%s", strings.Join(segs, " | "))
		e.emitCheck(s.Loc, allowFail, mode)
		e.writeln("set +o pipefail")
		return
	}
	e.emitFifoChain(s.Segments, s.Loc, allowFail, mode)
}

func (e *Emitter) emitPipeBlocks(s *ir.PipeBlocks, mode checkMode) {
	allowFail := anyAllowFail(s.Segments)
	if e.target == Bash {
		e.writeln("set -o pipefail")
		e.writeln("{")
		e.indent++
		for i, seg := range s.Segments {
			e.emitPipeSegBlock(seg, mode)
			if i < len(s.Segments)-1 {
				e.writeln("} | {")
			}
		}
		e.indent--
		e.writeln("}")
		e.emitCheck(s.Loc, allowFail, mode)
		e.writeln("set +o pipefail")
		return
	}
	e.emitFifoChain(s.Segments, s.Loc, allowFail, mode)
}

func (e *Emitter) emitPipeSegBlock(seg ir.PipeSeg, mode checkMode) {
	switch seg.Kind {
	case ir.PipeSegArgv:
		e.writelnf("%s", e.emitArgv(seg.Argv))
	case ir.PipeSegBlock:
		e.emitBody(seg.Block, mode)
	case ir.PipeSegEachLine:
		e.writelnf(`while IFS= read -r %s || [ -n "$%s" ]; do`, seg.EachVar, seg.EachVar)
		e.indent++
		e.emitBody(seg.EachBody, mode)
		e.indent--
		e.writeln("done")
	}
}

// emitFifoChain builds a manual FIFO chain: POSIX sh has no `set -o
// pipefail`, so each stage's status is captured through a dedicated FIFO
// and checked after the whole chain has drained. It handles both an
// all-argv ir.Pipe and a mixed-segment ir.PipeBlocks the same way, since
// emitPipeSegBlock already dispatches on each segment's own kind.
func (e *Emitter) emitFifoChain(segs []ir.PipeSeg, loc *ir.Loc, allowFail bool, mode checkMode) {
	e.fifoCounter++
	n := e.fifoCounter
	var fifos []string
	for i := range segs {
		fifo := fmt.Sprintf("__sh2_fifo%d_%d", n, i)
		fifos = append(fifos, fifo)
		e.writelnf(`%s=$(mktemp -u "${TMPDIR:-/tmp}/sh2fifo.XXXXXX")`, fifo)
		e.writelnf(`mkfifo "$%s"`, fifo)
	}
	for i, seg := range segs {
		e.writeln("(")
		e.indent++
		e.emitPipeSegBlock(seg, ctxStatement)
		if i < len(segs)-1 {
			e.writelnf(`) > "$%s" &`, fifos[i+1])
		} else {
			e.writeln(")")
		}
		e.indent--
	}
	for i := 0; i < len(segs)-1; i++ {
		e.writelnf(`exec 3< "$%s"`, fifos[i+1])
		e.writelnf(`cat <&3 > "$%s" &`, fifos[i])
		e.writeln("exec 3<&-")
	}
	e.writeln("wait")
	for _, f := range fifos {
		e.writelnf(`rm -f "$%s"`, f)
	}
	e.emitCheck(loc, allowFail, mode)
}

func (e *Emitter) emitWithRedirect(s *ir.WithRedirect, mode checkMode) {
	if len(s.Stdout) > 1 || len(s.Stderr) > 1 {
		if e.target != Bash {
			e.fail("multi-sink redirect is not supported for POSIX target")
			return
		}
		e.emitTeeRedirect(s, mode)
		return
	}
	e.writeln("{")
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	redir := e.redirectSuffix(s.Stdout, s.Stderr, s.Stdin)
	e.writelnf("} %s", redir)
}

func (e *Emitter) emitTeeRedirect(s *ir.WithRedirect, mode checkMode) {
	e.writeln("{")
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	var sinks []string
	for _, t := range s.Stdout {
		sinks = append(sinks, e.redirectTargetPath(t))
	}
	e.writelnf(`} | tee %s > /dev/null`, strings.Join(sinks, " "))
}

func (e *Emitter) redirectTargetPath(t ir.RedirectTarget) string {
	switch t.Kind {
	case ir.RedirectToStdout:
		return "/dev/stdout"
	case ir.RedirectToStderr:
		return "/dev/stderr"
	default:
		return e.bareVal(t.Path)
	}
}

func (e *Emitter) redirectSuffix(stdout, stderr, stdin []ir.RedirectTarget) string {
	var parts []string
	for _, t := range stdout {
		parts = append(parts, e.oneRedirect(">", t))
	}
	for _, t := range stderr {
		parts = append(parts, e.oneRedirect2(t))
	}
	for _, t := range stdin {
		parts = append(parts, "< "+e.redirectTargetPath(t))
	}
	return strings.Join(parts, " ")
}

func (e *Emitter) oneRedirect(op string, t ir.RedirectTarget) string {
	switch t.Kind {
	case ir.RedirectInheritStdout:
		return ">&1"
	case ir.RedirectInheritStderr:
		return ">&2"
	default:
		o := op
		if t.Append {
			o = ">>"
		}
		return o + " " + e.redirectTargetPath(t)
	}
}

func (e *Emitter) oneRedirect2(t ir.RedirectTarget) string {
	switch t.Kind {
	case ir.RedirectInheritStdout:
		return "2>&1"
	case ir.RedirectInheritStderr:
		return "2>&2"
	default:
		o := "2>"
		if t.Append {
			o = "2>>"
		}
		return o + " " + e.redirectTargetPath(t)
	}
}

func (e *Emitter) emitSpawn(s *ir.Spawn) {
	e.writeln("(")
	e.indent++
	e.emitCmd(s.Body, ctxStatement)
	e.indent--
	e.writeln(") &")
}

func (e *Emitter) emitTryCatch(s *ir.TryCatch, mode checkMode) {
	e.writeln(`__sh2_trap_save=$(trap -p EXIT)`)
	e.writeln("if (")
	e.indent++
	e.writeln("set -e")
	e.emitBody(s.Try, ctxReturn)
	e.indent--
	e.writeln("); then")
	e.indent++
	e.writeln(": # try succeeded")
	e.indent--
	e.writeln("else")
	e.indent++
	e.emitBody(s.Catch, mode)
	e.indent--
	e.writeln("fi")
	e.writeln(`eval "$__sh2_trap_save"`)
}

func (e *Emitter) emitWithEnv(s *ir.WithEnv, mode checkMode) {
	var assigns []string
	for _, b := range s.Bindings {
		assigns = append(assigns, fmt.Sprintf("%s=%s", b.Name, e.emitVal(b.Value)))
	}
	e.writelnf("%s (", strings.Join(assigns, " "))
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	e.writeln(")")
}

func (e *Emitter) emitWithCwd(s *ir.WithCwd, mode checkMode) {
	e.writeln("(")
	e.indent++
	e.writelnf("cd %s", shQuote(s.Path))
	e.emitBody(s.Body, mode)
	e.indent--
	e.writeln(")")
}

func (e *Emitter) emitWithLog(s *ir.WithLog, mode checkMode) {
	redir := ">"
	if s.Append {
		redir = ">>"
	}
	e.writeln("{")
	e.indent++
	e.emitBody(s.Body, mode)
	e.indent--
	e.writelnf(`} %s %s 2>&1`, redir, e.bareVal(s.Path))
}
