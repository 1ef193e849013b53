package codegen

import "github.com/sh2c/sh2c/internal/compiler/ir"

// usageSet records which __sh2_* prelude helpers a program references, so
// the emitter writes only what is used.
type usageSet map[string]bool

func scanProgram(prog *ir.Program) usageSet {
	u := usageSet{}
	for _, fn := range prog.Functions {
		for _, c := range fn.Body {
			scanCmd(c, u)
		}
	}
	return u
}

func scanCmd(c ir.Cmd, u usageSet) {
	switch s := c.(type) {
	case *ir.Let:
		scanVal(s.Value, u)
	case *ir.Set:
		scanVal(s.Value, u)
	case *ir.Run:
		u["check"] = true
		for _, v := range s.Argv {
			scanVal(v, u)
		}
	case *ir.ExecReplace:
		for _, v := range s.Argv {
			scanVal(v, u)
		}
	case *ir.Print:
		scanVal(s.Value, u)
	case *ir.If:
		scanVal(s.Cond, u)
		scanCmds(s.Then, u)
		for _, e := range s.Elifs {
			scanVal(e.Cond, u)
			scanCmds(e.Body, u)
		}
		scanCmds(s.Else, u)
	case *ir.While:
		scanVal(s.Cond, u)
		scanCmds(s.Body, u)
	case *ir.ForList:
		scanVal(s.List, u)
		scanCmds(s.Body, u)
	case *ir.ForRange:
		scanVal(s.Start, u)
		scanVal(s.End, u)
		scanCmds(s.Body, u)
	case *ir.ForLines:
		u["lines"] = true
		scanVal(s.Text, u)
		scanCmds(s.Body, u)
	case *ir.ForFind0:
		scanVal(s.Spec, u)
		scanCmds(s.Body, u)
	case *ir.ForMap:
		scanVal(s.Map, u)
		scanCmds(s.Body, u)
	case *ir.Case:
		u["matches"] = true
		scanVal(s.Expr, u)
		for _, arm := range s.Arms {
			scanCmds(arm.Body, u)
		}
	case *ir.Pipe:
		u["check"] = true
		for _, seg := range s.Segments {
			scanSeg(seg, u)
		}
	case *ir.PipeBlocks:
		u["check"] = true
		for _, seg := range s.Segments {
			scanSeg(seg, u)
		}
	case *ir.WithRedirect:
		scanRedirects(s.Stdout, u)
		scanRedirects(s.Stderr, u)
		scanRedirects(s.Stdin, u)
		scanCmds(s.Body, u)
	case *ir.Spawn:
		scanCmd(s.Body, u)
	case *ir.Wait:
		if s.Pid != nil {
			scanVal(s.Pid, u)
		}
	case *ir.TryCatch:
		u["check"] = true
		scanCmds(s.Try, u)
		scanCmds(s.Catch, u)
	case *ir.AndThen:
		u["check"] = true
		scanCmd(s.Left, u)
		scanCmd(s.Right, u)
	case *ir.OrElse:
		u["check"] = true
		scanCmd(s.Left, u)
		scanCmd(s.Right, u)
	case *ir.Subshell:
		scanCmds(s.Body, u)
	case *ir.Group:
		scanCmds(s.Body, u)
	case *ir.WithEnv:
		for _, b := range s.Bindings {
			scanVal(b.Value, u)
		}
		scanCmds(s.Body, u)
	case *ir.WithCwd:
		scanCmds(s.Body, u)
	case *ir.WithLog:
		u["log"] = true
		scanVal(s.Path, u)
		scanCmds(s.Body, u)
	case *ir.Log:
		u["log"] = true
		scanVal(s.Msg, u)
	case *ir.Require:
		u["require"] = true
		u["which"] = true
		for _, v := range s.Argv {
			scanVal(v, u)
		}
	case *ir.SaveEnvfile:
		u["save_envfile"] = true
		scanVal(s.Path, u)
		scanVal(s.Map, u)
	case *ir.WriteFile:
		u["write_file"] = true
		u["check"] = true
		scanVal(s.Path, u)
		scanVal(s.Content, u)
	case *ir.Source:
		u["check"] = true
		scanVal(s.Path, u)
	case *ir.Return:
		if s.Value != nil {
			scanVal(s.Value, u)
		}
	case *ir.Exit:
		if s.Code != nil {
			scanVal(s.Code, u)
		}
	case *ir.Export:
		if s.Value != nil {
			scanVal(s.Value, u)
		}
	case *ir.Cd:
		u["check"] = true
		scanVal(s.Path, u)
	case *ir.Raw:
		u["check"] = true
		u["sh_probe"] = true
		for _, v := range s.Argv {
			scanVal(v, u)
		}
	case *ir.RawLine, *ir.Break, *ir.Continue, *ir.Unset:
		// no helper dependency
	case *ir.ExprStmt:
		scanVal(s.Value, u)
	}
}

func scanCmds(cmds []ir.Cmd, u usageSet) {
	for _, c := range cmds {
		scanCmd(c, u)
	}
}

func scanSeg(seg ir.PipeSeg, u usageSet) {
	switch seg.Kind {
	case ir.PipeSegArgv:
		for _, v := range seg.Argv {
			scanVal(v, u)
		}
	case ir.PipeSegBlock:
		scanCmds(seg.Block, u)
	case ir.PipeSegEachLine:
		u["lines"] = true
		scanCmds(seg.EachBody, u)
	}
}

func scanRedirects(targets []ir.RedirectTarget, u usageSet) {
	for _, t := range targets {
		if t.Path != nil {
			scanVal(t.Path, u)
		}
	}
}

func scanVal(v ir.Val, u usageSet) {
	switch e := v.(type) {
	case nil:
		return
	case ir.Interp:
		for _, p := range e.Parts {
			if p.Expr != nil {
				scanVal(p.Expr, u)
			}
		}
	case ir.Concat:
		scanVal(e.Left, u)
		scanVal(e.Right, u)
	case ir.Arith:
		scanVal(e.Left, u)
		scanVal(e.Right, u)
	case ir.Compare:
		scanVal(e.Left, u)
		scanVal(e.Right, u)
	case ir.Logical:
		scanVal(e.Left, u)
		scanVal(e.Right, u)
	case ir.Not:
		scanVal(e.Operand, u)
	case ir.Predicate:
		for _, a := range e.Args {
			scanVal(a, u)
		}
	case ir.ListLit:
		for _, it := range e.Items {
			scanVal(it, u)
		}
	case ir.MapLiteral:
		for _, v2 := range e.Values {
			scanVal(v2, u)
		}
	case ir.Index:
		scanVal(e.Base, u)
		scanVal(e.Index, u)
	case ir.MapIndex:
		scanVal(e.Map, u)
		scanVal(e.Key, u)
	case ir.Field:
		scanVal(e.Base, u)
	case ir.Join:
		scanVal(e.List, u)
		scanVal(e.Sep, u)
	case ir.ArgDynamic:
		u["arg_by_index"] = true
		scanVal(e.Index, u)
	case ir.Input:
		if e.Prompt != nil {
			scanVal(e.Prompt, u)
		}
	case ir.Confirm:
		u["confirm"] = true
		if e.Prompt != nil {
			scanVal(e.Prompt, u)
		}
		if e.Default != nil {
			scanVal(e.Default, u)
		}
	case ir.Command:
		u["check"] = true
		for _, a := range e.Argv {
			scanVal(a, u)
		}
	case ir.CommandPipe:
		u["check"] = true
		for _, seg := range e.Segments {
			for _, a := range seg {
				scanVal(a, u)
			}
		}
	case ir.Capture:
		u["tmpfile"] = true
		if !e.AllowFail {
			u["check"] = true
		}
		scanVal(e.Inner, u)
	case ir.TryRun:
		u["tmpfile"] = true
		for _, a := range e.Argv {
			scanVal(a, u)
		}
	case ir.Call:
		switch e.Name {
		case "trim", "before", "after", "replace", "split", "coalesce":
			u[e.Name] = true
		}
		for _, a := range e.Args {
			scanVal(a, u)
		}
	case ir.Which:
		u["which"] = true
		scanVal(e.Name, u)
	case ir.ReadFile:
		u["read_file"] = true
		scanVal(e.Path, u)
	case ir.Home:
		u["home"] = true
	case ir.PathJoin:
		u["path_join"] = true
		for _, p := range e.Parts {
			scanVal(p, u)
		}
	case ir.Lines:
		u["lines"] = true
		scanVal(e.Text, u)
	case ir.Split:
		u["split"] = true
		scanVal(e.Text, u)
		scanVal(e.Sep, u)
	case ir.ContainsOp:
		u["contains"] = true
		scanVal(e.Haystack, u)
		scanVal(e.Needle, u)
	case ir.Matches:
		u["matches"] = true
		scanVal(e.Text, u)
		scanVal(e.Glob, u)
	case ir.StartsWith:
		u["starts_with"] = true
		scanVal(e.Text, u)
		scanVal(e.Prefix, u)
	case ir.ArgsFlags:
		u["args_flags"] = true
	case ir.ArgsPositionals:
		u["args_positionals"] = true
	case ir.LoadEnvfile:
		u["load_envfile"] = true
		scanVal(e.Path, u)
	case ir.JsonKv:
		u["json_kv"] = true
		for _, p := range e.Pairs {
			if p.Expr != nil {
				scanVal(p.Expr, u)
			}
		}
	case ir.ParseArgs:
		u["parse_args"] = true
		scanVal(e.Spec, u)
		scanVal(e.Argv, u)
	case ir.EnvDynamic:
		scanVal(e.Name, u)
	case ir.AuxVar, ir.BoolVar, ir.Var, ir.EnvVar, ir.StringLit, ir.NumberLit, ir.Niladic, ir.ArgStatic:
		// leaves
	}
}

// preludeHelpers returns, in emission order, the shell source for every
// helper flagged in u, diverging between Bash and POSIX where arrays or
// bash-only builtins are involved.
func preludeHelpers(u usageSet, target Target) []string {
	order := []string{
		"check", "trim", "before", "after", "replace", "split", "coalesce",
		"matches", "parse_args", "args_flags", "args_positionals",
		"load_envfile", "save_envfile", "json_kv", "which", "require",
		"tmpfile", "read_file", "write_file", "lines", "log", "home",
		"path_join", "arg_by_index", "contains", "starts_with", "confirm",
		"sh_probe",
	}
	var out []string
	for _, name := range order {
		if u[name] {
			out = append(out, helperSource(name, target))
		}
	}
	return out
}

func helperSource(name string, target Target) string {
	switch name {
	case "check":
		return `__sh2_check() {
  status="$1"; loc="$2"; mode="$3"
  if [ "$status" -ne 0 ]; then
    if [ -n "$loc" ]; then
      printf 'Error in %s\n' "$loc" >&2
    fi
    if [ "$mode" = "return" ]; then
      return "$status"
    fi
    exit "$status"
  fi
}`
	case "trim":
		return `__sh2_trim() { printf '%s' "$1" | awk '{ sub(/^[ \t]+/, ""); sub(/[ \t]+$/, ""); print }'; }`
	case "before":
		return `__sh2_before() { awk -v sep="$2" '{ i = index($0, sep); if (i > 0) print substr($0, 1, i-1); else print $0 }' <<EOF
$1
EOF
}`
	case "after":
		return `__sh2_after() { awk -v sep="$2" '{ i = index($0, sep); if (i > 0) print substr($0, i+length(sep)); else print "" }' <<EOF
$1
EOF
}`
	case "replace":
		return `__sh2_replace() {
  awk -v from="$2" -v to="$3" '{ out = ""; s = $0; while ((i = index(s, from)) > 0) { out = out substr(s, 1, i-1) to; s = substr(s, i+length(from)) } print out s }' <<EOF
$1
EOF
}`
	case "split":
		return `__sh2_split() { awk -v d="$2" '{ n = split($0, a, d); for (i = 1; i <= n; i++) print a[i] }' <<EOF
$1
EOF
}`
	case "coalesce":
		return `__sh2_coalesce() { if [ -n "$1" ]; then printf '%s' "$1"; else printf '%s' "$2"; fi; }`
	case "matches":
		return `__sh2_matches() { case "$1" in $2) return 0 ;; *) return 1 ;; esac; }`
	case "parse_args":
		return `__sh2_parse_args() {
  spec="$1"; shift
  forced_positional=0
  for a in "$@"; do
    if [ "$forced_positional" = 1 ]; then
      printf 'P\t%s\n' "$a"
      continue
    fi
    case "$a" in
      --) forced_positional=1 ;;
      --*=*) printf 'F\t%s\t%s\n' "${a%%=*}" "${a#*=}" ;;
      --*) printf 'F\t%s\t%s\n' "$a" "true" ;;
      *) printf 'P\t%s\n' "$a" ;;
    esac
  done
}`
	case "args_flags":
		return `__sh2_args_flags() { printf '%s\n' "$1" | awk -F '\t' '$1 == "F" { print $2 "\t" $3 }'; }
__sh2_flag_get() { printf '%s\n' "$1" | awk -F '\t' -v n="$2" '$1 == "F" && $2 == n { print $3; found=1 } END { if (!found) exit 1 }'; }`
	case "args_positionals":
		return `__sh2_args_positionals() { printf '%s\n' "$1" | awk -F '\t' '$1 == "P" { print $2 }'; }
__sh2_list_get() { printf '%s\n' "$1" | awk -F '\t' -v n="$2" '$1 == "P" { i++; if (i == n) { print $2; found=1 } } END { if (!found) exit 1 }'; }`
	case "load_envfile":
		return `__sh2_load_envfile() {
  while IFS= read -r line || [ -n "$line" ]; do
    case "$line" in '#'*|'') continue ;; esac
    line="${line#export }"
    key="${line%%=*}"
    val="${line#*=}"
    val="${val%\"}"; val="${val#\"}"
    val="${val%\'}"; val="${val#\'}"
    printf '%s\t%s\n' "$key" "$val"
  done < "$1"
}`
	case "save_envfile":
		return `__sh2_save_envfile() {
  path="$1"; shift
  : > "$path"
  while IFS="$(printf '\t')" read -r k v; do
    printf '%s=%s\n' "$k" "$v" >> "$path"
  done
}`
	case "json_kv":
		return `__sh2_json_kv() {
  out="{"
  first=1
  while IFS="$(printf '\t')" read -r k v; do
    if [ "$first" = 0 ]; then out="${out},"; fi
    first=0
    ev=$(printf '%s' "$v" | sed 's/\\/\\\\/g; s/"/\\"/g')
    out="${out}\"${k}\":\"${ev}\""
  done
  printf '%s}' "$out"
}`
	case "which":
		return `__sh2_which() { command -v "$1" 2>/dev/null; }`
	case "require":
		return `__sh2_require() {
  for cmd in "$@"; do
    if ! command -v "$cmd" >/dev/null 2>&1; then
      printf 'required command not found: %s\n' "$cmd" >&2
      exit 1
    fi
  done
}`
	case "tmpfile":
		if target == Bash {
			return `__sh2_tmpfiles=()
__sh2_tmpfile() { t=$(mktemp "${TMPDIR:-/tmp}/sh2.XXXXXX"); __sh2_tmpfiles+=("$t"); printf '%s' "$t"; }
__sh2_cleanup_tmpfiles() { for f in "${__sh2_tmpfiles[@]}"; do rm -f "$f"; done; }
trap __sh2_cleanup_tmpfiles EXIT`
		}
		return `__sh2_tmpfiles=""
__sh2_tmpfile() { t=$(mktemp "${TMPDIR:-/tmp}/sh2.XXXXXX"); __sh2_tmpfiles="$__sh2_tmpfiles $t"; printf '%s' "$t"; }
__sh2_cleanup_tmpfiles() { for f in $__sh2_tmpfiles; do rm -f "$f"; done; }
trap __sh2_cleanup_tmpfiles EXIT`
	case "read_file":
		return `__sh2_read_file() { cat "$1"; }`
	case "write_file":
		return `__sh2_write_file() {
  path="$1"; content="$2"; append="$3"
  if [ "$append" = "1" ]; then
    printf '%s' "$content" >> "$path"
  else
    printf '%s' "$content" > "$path"
  fi
}`
	case "lines":
		return `__sh2_lines() { printf '%s\n' "$1"; }`
	case "log":
		return `__sh2_log() {
  level="$1"; msg="$2"; ts="$3"
  if [ "$ts" = "1" ]; then
    printf '[%s] [%s] %s\n' "$(date -u +%Y-%m-%dT%H:%M:%SZ)" "$level" "$msg" >&2
  else
    printf '[%s] %s\n' "$level" "$msg" >&2
  fi
}`
	case "home":
		return `__sh2_home() { printf '%s' "${HOME}"; }`
	case "path_join":
		return `__sh2_path_join() {
  out=""
  for p in "$@"; do
    if [ -z "$out" ]; then out="$p"; else out="${out%/}/${p#/}"; fi
  done
  printf '%s' "$out"
}`
	case "arg_by_index":
		if target == Bash {
			return `__sh2_arg_by_index() {
  eval "i=\${$#}"
  n=$(($# - 1))
  case "$i" in ''|*[!0-9]*) printf ''; return ;; esac
  if [ "$i" -ge 1 ] && [ "$i" -le "$n" ]; then eval "printf '%s' \"\${$i}\""; else printf ''; fi
}`
		}
		return `__sh2_arg_by_index() {
  eval "i=\${$#}"
  n=$(($# - 1))
  case "$i" in ''|*[!0-9]*) printf ''; return ;; esac
  if [ "$i" -ge 1 ] && [ "$i" -le "$n" ]; then eval "printf '%s' \"\${$i}\""; else printf ''; fi
}`
	case "contains":
		return `__sh2_contains() { case "$1" in *"$2"*) return 0 ;; *) return 1 ;; esac; }`
	case "starts_with":
		return `__sh2_starts_with() { case "$1" in "$2"*) return 0 ;; *) return 1 ;; esac; }`
	case "confirm":
		return `__sh2_confirm() {
  prompt="$1"; def="$2"
  printf '%s' "$prompt" >&2
  IFS= read -r ans
  if [ -z "$ans" ]; then ans="$def"; fi
  case "$ans" in y|Y|yes|YES) return 0 ;; *) return 1 ;; esac
}`
	case "sh_probe":
		return `__sh2_sh_probe() { command -v "$1" >/dev/null 2>&1 && printf '%s' "$1" || printf 'sh'; }`
	}
	return ""
}
