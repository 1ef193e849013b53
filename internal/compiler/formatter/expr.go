package formatter

import (
	"fmt"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ast"
)

// binPrec mirrors the parser's precedence table (parser.go's `precedences`
// map) so a re-parse of the formatted text regroups identically.
var binPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, ">": 3, "<=": 3, ">=": 3,
	"&": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func exprPrec(e ast.Expression) int {
	switch v := e.(type) {
	case *ast.BinOp:
		return binPrec[v.Op]
	case *ast.UnaryOp:
		return 7
	default:
		return 9 // atoms and call-like forms never need parens
	}
}

// formatExpr renders e as sh2 source text, parenthesising a child only when
// its precedence is lower than what this position requires.
func formatExpr(e ast.Expression) string {
	return formatExprPrec(e, 0)
}

func formatExprPrec(e ast.Expression, minPrec int) string {
	s := formatExprBare(e)
	if exprPrec(e) < minPrec {
		return "(" + s + ")"
	}
	return s
}

func formatExprBare(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.StringLit:
		return `"` + escapeString(v.Value) + `"`
	case *ast.InterpString:
		return formatInterpString(v)
	case *ast.NumberLit:
		return v.Value
	case *ast.BoolLit:
		if v.Value {
			return "true"
		}
		return "false"
	case *ast.ListLit:
		items := make([]string, len(v.Items))
		for i, it := range v.Items {
			items[i] = formatExpr(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *ast.MapLit:
		pairs := make([]string, len(v.Keys))
		for i, k := range v.Keys {
			pairs[i] = `"` + escapeString(k) + `": ` + formatExpr(v.Values[i])
		}
		return "{" + strings.Join(pairs, ", ") + "}"
	case *ast.Var:
		return v.Name
	case *ast.BinOp:
		prec := binPrec[v.Op]
		left := formatExprPrec(v.Left, prec)
		right := formatExprPrec(v.Right, prec+1)
		return left + " " + v.Op + " " + right
	case *ast.UnaryOp:
		return v.Op + formatExprPrec(v.Operand, 7)
	case *ast.PathPredicate:
		return v.Name + "(" + formatExpr(v.Arg) + ")"
	case *ast.StringPredicate:
		return v.Name + "(" + formatExprList(v.Args) + ")"
	case *ast.LenExpr:
		return "len(" + formatExpr(v.Arg) + ")"
	case *ast.CountExpr:
		return "count(" + formatExpr(v.Arg) + ")"
	case *ast.ArgExpr:
		return "arg(" + formatExpr(v.Index) + ")"
	case *ast.IndexExpr:
		return formatExprPrec(v.Base, 8) + "[" + formatExpr(v.Index) + "]"
	case *ast.FieldExpr:
		return formatExprPrec(v.Base, 8) + "." + v.Name
	case *ast.JoinExpr:
		return "join(" + formatExpr(v.List) + ", " + formatExpr(v.Sep) + ")"
	case *ast.NiladicExpr:
		return v.Name + "()"
	case *ast.EnvExpr:
		return "env(" + formatExpr(v.Name) + ")"
	case *ast.EnvDotExpr:
		return "$" + v.Name
	case *ast.InputExpr:
		return "input(" + formatExpr(v.Prompt) + ")"
	case *ast.ConfirmExpr:
		args := formatExpr(v.Prompt)
		if v.Default != nil {
			args += ", default=" + formatExpr(v.Default)
		}
		return "confirm(" + args + ")"
	case *ast.CommandExpr:
		return "$(run(" + formatExprList(v.Args) + "))"
	case *ast.CommandPipeExpr:
		segs := make([]string, len(v.Segments))
		for i, seg := range v.Segments {
			segs[i] = "run(" + formatExprList(seg) + ")"
		}
		return "$(" + strings.Join(segs, " | ") + ")"
	case *ast.CaptureExpr:
		args := formatExpr(v.Inner)
		if opts := formatCallOptions(v.Options); opts != "" {
			args += ", " + opts
		}
		return "capture(" + args + ")"
	case *ast.TryRunExpr:
		return "try_run(" + formatExprList(v.Args) + ")"
	case *ast.ShExpr:
		return "sh(" + formatArgsAndOptions(nil, v.Cmd, v.Options) + ")"
	case *ast.SudoExpr:
		return "sudo(" + formatArgsAndOptions(v.Args, nil, v.Options) + ")"
	case *ast.MapIndexExpr:
		return formatExprPrec(v.Map, 8) + "[" + formatExpr(v.Key) + "]"
	case *ast.CallExpr:
		name := v.Name
		if v.Qualifier != "" {
			name = v.Qualifier + "." + name
		}
		return name + "(" + formatArgsAndOptions(v.Args, nil, v.Options) + ")"
	default:
		return fmt.Sprintf("/* unknown expr %T */", e)
	}
}

func formatExprList(es []ast.Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = formatExpr(e)
	}
	return strings.Join(parts, ", ")
}

// formatArgsAndOptions joins positional args (from positionals, or a single
// lead expression when the callee takes exactly one positional) with
// trailing name=value options, as sh2's call-argument grammar requires.
func formatArgsAndOptions(positionals []ast.Expression, lead ast.Expression, opts []ast.CallOption) string {
	var parts []string
	if lead != nil {
		parts = append(parts, formatExpr(lead))
	}
	for _, p := range positionals {
		parts = append(parts, formatExpr(p))
	}
	for _, o := range opts {
		parts = append(parts, o.Name+"="+formatExpr(o.Value))
	}
	return strings.Join(parts, ", ")
}

func formatCallOptions(opts []ast.CallOption) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = o.Name + "=" + formatExpr(o.Value)
	}
	return strings.Join(parts, ", ")
}

func formatInterpString(v *ast.InterpString) string {
	var b strings.Builder
	b.WriteString(`$"`)
	for _, part := range v.Parts {
		if part.IsExpr {
			b.WriteByte('{')
			b.WriteString(formatExpr(part.Expr))
			b.WriteByte('}')
		} else {
			b.WriteString(escapeString(part.Text))
		}
	}
	b.WriteByte('"')
	return b.String()
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
