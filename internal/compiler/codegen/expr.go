package codegen

import (
	"fmt"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ir"
)

// emitVal renders v as a shell word: something that can stand alone as a
// command argument or as the right-hand side of `x=...`. Values that need
// their own command substitution (Capture, Command, ...) are rendered as
// `$(...)`; everything else collapses to a quoted literal or a `"$var"`
// reference.
func (e *Emitter) emitVal(v ir.Val) string {
	switch x := v.(type) {
	case nil:
		return `""`
	case ir.StringLit:
		return shQuote(x.Value)
	case ir.NumberLit:
		return shQuote(x.Value)
	case ir.Interp:
		return e.emitInterp(x)
	case ir.Var:
		return fmt.Sprintf("\"$%s\"", x.Name)
	case ir.BoolVar:
		return fmt.Sprintf("\"$%s\"", x.Name)
	case ir.AuxVar:
		return fmt.Sprintf("\"$%s\"", x.Name)
	case ir.EnvVar:
		return fmt.Sprintf("\"$%s\"", x.Name)
	case ir.EnvDynamic:
		return fmt.Sprintf(`"$(eval printf '%%s' \"\$%s\")"`, e.bareVal(x.Name))
	case ir.Concat:
		return fmt.Sprintf(`"%s%s"`, e.bareVal(x.Left), e.bareVal(x.Right))
	case ir.Arith:
		return fmt.Sprintf(`"$(( %s %s %s ))"`, e.arithOperand(x.Left), x.Op, e.arithOperand(x.Right))
	case ir.Compare, ir.Logical, ir.Not, ir.Predicate:
		// Boolean-valued node used in a value position: materialize into "1"/"0".
		return fmt.Sprintf(`"$(if %s; then printf 1; else printf 0; fi)"`, e.emitCond(v))
	case ir.ListLit:
		var parts []string
		for _, it := range x.Items {
			parts = append(parts, e.bareVal(it))
		}
		return shQuote(strings.Join(parts, " "))
	case ir.MapLiteral:
		var parts []string
		for i, k := range x.Keys {
			parts = append(parts, k+"="+e.bareVal(x.Values[i]))
		}
		return shQuote(strings.Join(parts, "\x1f"))
	case ir.Index:
		if e.target == Bash {
			return fmt.Sprintf(`"${%s[%s]}"`, e.arrayName(x.Base), e.arithOperand(x.Index))
		}
		return fmt.Sprintf(`"$(printf '%%s' %s | awk -v n=%s '{print $(n+1)}')"`, e.emitVal(x.Base), e.arithOperand(x.Index))
	case ir.MapIndex:
		return fmt.Sprintf(`"${%s}"`, e.mapEntryRef(x.Map, x.Key))
	case ir.Field:
		return fmt.Sprintf(`"$%s__%s"`, e.bareName(x.Base), x.Name)
	case ir.Join:
		return fmt.Sprintf(`"$(printf '%%s\n' %s | paste -sd %s -)"`, e.emitVal(x.List), e.emitVal(x.Sep))
	case ir.Niladic:
		return e.emitNiladic(x.Name)
	case ir.ArgStatic:
		return fmt.Sprintf(`"${%d:-}"`, x.Index)
	case ir.ArgDynamic:
		return fmt.Sprintf(`"$(__sh2_arg_by_index "$@" %s)"`, e.arithOperand(x.Index))
	case ir.Input:
		if x.Prompt != nil {
			return fmt.Sprintf(`"$(printf '%%s' %s >&2; IFS= read -r __sh2_in; printf '%%s' "$__sh2_in")"`, e.emitVal(x.Prompt))
		}
		return `"$(IFS= read -r __sh2_in; printf '%s' "$__sh2_in")"`
	case ir.Confirm:
		prompt := `""`
		if x.Prompt != nil {
			prompt = e.emitVal(x.Prompt)
		}
		def := `"n"`
		if x.Default != nil {
			def = e.emitVal(x.Default)
		}
		return fmt.Sprintf(`"$(if __sh2_confirm %s %s; then printf 1; else printf 0; fi)"`, prompt, def)
	case ir.Command:
		return fmt.Sprintf(`"$(%s)"`, e.emitArgv(x.Argv))
	case ir.CommandPipe:
		var segs []string
		for _, s := range x.Segments {
			segs = append(segs, e.emitArgv(s))
		}
		return fmt.Sprintf(`"$(%s)"`, strings.Join(segs, " | "))
	case ir.Capture:
		return e.emitCapture(x)
	case ir.TryRun:
		return fmt.Sprintf(`"$(%s)"`, e.emitArgv(x.Argv))
	case ir.Call:
		return e.emitCallVal(x)
	case ir.Which:
		return fmt.Sprintf(`"$(__sh2_which %s)"`, e.emitVal(x.Name))
	case ir.ReadFile:
		return fmt.Sprintf(`"$(__sh2_read_file %s)"`, e.emitVal(x.Path))
	case ir.Home:
		return `"$(__sh2_home)"`
	case ir.PathJoin:
		return fmt.Sprintf(`"$(__sh2_path_join %s)"`, e.emitArgv(x.Parts))
	case ir.Lines:
		return fmt.Sprintf(`"$(__sh2_lines %s)"`, e.emitVal(x.Text))
	case ir.Split:
		return fmt.Sprintf(`"$(__sh2_split %s %s)"`, e.emitVal(x.Text), e.emitVal(x.Sep))
	case ir.ContainsOp:
		return fmt.Sprintf(`"$(if __sh2_contains %s %s; then printf 1; else printf 0; fi)"`, e.emitVal(x.Haystack), e.emitVal(x.Needle))
	case ir.Matches:
		return fmt.Sprintf(`"$(if __sh2_matches %s %s; then printf 1; else printf 0; fi)"`, e.emitVal(x.Text), e.emitVal(x.Glob))
	case ir.StartsWith:
		return fmt.Sprintf(`"$(if __sh2_starts_with %s %s; then printf 1; else printf 0; fi)"`, e.emitVal(x.Text), e.emitVal(x.Prefix))
	case ir.ArgsFlags:
		return `"$(__sh2_args_flags "$__sh2_parsed_args")"`
	case ir.ArgsPositionals:
		return `"$(__sh2_args_positionals "$__sh2_parsed_args")"`
	case ir.LoadEnvfile:
		return fmt.Sprintf(`"$(__sh2_load_envfile %s)"`, e.emitVal(x.Path))
	case ir.JsonKv:
		var lines []string
		for _, p := range x.Pairs {
			val := ""
			if p.Expr != nil {
				val = e.bareVal(p.Expr)
			}
			lines = append(lines, p.Text+"\t"+val)
		}
		return fmt.Sprintf(`"$(printf '%%s\n' %s | __sh2_json_kv)"`, shQuote(strings.Join(lines, "\n")))
	case ir.ParseArgs:
		return fmt.Sprintf(`"$(__sh2_parse_args %s "$@")"`, e.emitVal(x.Spec))
	}
	return `""`
}

// bareVal is emitVal with the surrounding double quotes stripped, for use
// inside an already-quoted string (Concat operands, list items, ...).
func (e *Emitter) bareVal(v ir.Val) string {
	s := e.emitVal(v)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

func (e *Emitter) bareName(v ir.Val) string {
	if variable, ok := v.(ir.Var); ok {
		return variable.Name
	}
	return strings.Trim(e.bareVal(v), `"`)
}

func (e *Emitter) arithOperand(v ir.Val) string {
	return e.bareVal(v)
}

func (e *Emitter) arrayName(v ir.Val) string {
	if variable, ok := v.(ir.Var); ok {
		return variable.Name
	}
	return e.bareName(v)
}

func (e *Emitter) mapEntryRef(m, k ir.Val) string {
	return fmt.Sprintf("__sh2_mapget_%s_%s", e.arrayName(m), e.bareVal(k))
}

func (e *Emitter) emitInterp(x ir.Interp) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, p := range x.Parts {
		if p.Expr == nil {
			b.WriteString(escapeForDoubleQuotes(p.Text))
			continue
		}
		b.WriteString(e.bareVal(p.Expr))
	}
	b.WriteByte('"')
	return b.String()
}

func escapeForDoubleQuotes(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", "\\$", "`", "\\`")
	return r.Replace(s)
}

func (e *Emitter) emitNiladic(name string) string {
	switch name {
	case "args":
		return `"$@"`
	case "status":
		return `"$__sh2_status"`
	case "pid":
		return `"$$"`
	case "ppid":
		return `"$PPID"`
	case "uid":
		return `"$(id -u)"`
	case "pwd":
		return `"$(pwd)"`
	case "self_pid":
		return `"$$"`
	case "argv0":
		return `"$0"`
	case "argc":
		return `"$#"`
	}
	return `""`
}

func (e *Emitter) emitCapture(x ir.Capture) string {
	if x.WithStderr {
		return fmt.Sprintf(`"$(__sh2_stderr=$(__sh2_tmpfile); %s 2>"$__sh2_stderr")"`, e.emitValStmtForm(x.Inner))
	}
	return fmt.Sprintf(`"$(%s)"`, e.emitValStmtForm(x.Inner))
}

// emitValStmtForm renders a Val that is itself a command form (Command,
// CommandPipe, Call naming an argv-shaped builtin) as bare text suitable to
// sit inside a `$(...)` a caller is already building, i.e. without the
// outer quoting emitVal would add.
func (e *Emitter) emitValStmtForm(v ir.Val) string {
	switch x := v.(type) {
	case ir.Command:
		return e.emitArgv(x.Argv)
	case ir.CommandPipe:
		var segs []string
		for _, s := range x.Segments {
			segs = append(segs, e.emitArgv(s))
		}
		return strings.Join(segs, " | ")
	default:
		return strings.Trim(e.emitVal(v), `"`)
	}
}

func (e *Emitter) emitCallVal(x ir.Call) string {
	switch x.Name {
	case "trim", "before", "after", "replace", "split", "coalesce":
		var args []string
		for _, a := range x.Args {
			args = append(args, e.emitVal(a))
		}
		return fmt.Sprintf(`"$(__sh2_%s %s)"`, x.Name, strings.Join(args, " "))
	default:
		var args []string
		for _, a := range x.Args {
			args = append(args, e.emitVal(a))
		}
		return fmt.Sprintf(`"$(%s %s)"`, x.Name, strings.Join(args, " "))
	}
}

func (e *Emitter) emitArgv(vals []ir.Val) string {
	var parts []string
	for _, v := range vals {
		parts = append(parts, e.emitVal(v))
	}
	return strings.Join(parts, " ")
}

// emitCond renders v as a shell boolean test usable right after `if`/`while`:
// a boolean-tagged variable compiles to `[ "$v" = "1" ]`.
func (e *Emitter) emitCond(v ir.Val) string {
	switch x := v.(type) {
	case ir.BoolVar:
		return fmt.Sprintf(`[ "$%s" = "1" ]`, x.Name)
	case ir.Not:
		return fmt.Sprintf("! %s", e.emitCond(x.Operand))
	case ir.Logical:
		join := "&&"
		if x.Op == "||" {
			join = "||"
		}
		return fmt.Sprintf("{ %s; } %s { %s; }", e.emitCond(x.Left), join, e.emitCond(x.Right))
	case ir.Compare:
		return e.emitCompareCond(x)
	case ir.Predicate:
		return e.emitPredicateCond(x)
	default:
		return e.truthyFallback(v)
	}
}

// truthyFallback handles a non-boolean Val used directly as a condition
// (e.g. a plain string variable in an `if` — true iff non-empty).
func (e *Emitter) truthyFallback(v ir.Val) string {
	return fmt.Sprintf(`[ -n %s ]`, e.emitVal(v))
}

func (e *Emitter) emitCompareCond(x ir.Compare) string {
	numeric := map[string]string{"<": "-lt", "<=": "-le", ">": "-gt", ">=": "-ge"}
	if op, ok := numeric[x.Op]; ok {
		return fmt.Sprintf("[ %s %s %s ]", e.emitVal(x.Left), op, e.emitVal(x.Right))
	}
	op := "="
	if x.Op == "!=" {
		op = "!="
	}
	return fmt.Sprintf("[ %s %s %s ]", e.emitVal(x.Left), op, e.emitVal(x.Right))
}

func (e *Emitter) emitPredicateCond(x ir.Predicate) string {
	flags := map[string]string{
		"exists": "-e", "is_dir": "-d", "is_file": "-f", "is_symlink": "-L",
		"is_exec": "-x", "is_readable": "-r", "is_writable": "-w", "is_non_empty": "-s",
	}
	if flag, ok := flags[x.Name]; ok && len(x.Args) == 1 {
		return fmt.Sprintf("[ %s %s ]", flag, e.emitVal(x.Args[0]))
	}
	var args []string
	for _, a := range x.Args {
		args = append(args, e.emitVal(a))
	}
	return fmt.Sprintf("%s %s", x.Name, strings.Join(args, " "))
}
