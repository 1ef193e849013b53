// Package parser builds a spanned ast.File from a token stream. It is
// hand-written recursive descent with precedence climbing on the expression
// side; there is no error recovery — the first diagnostic aborts the parse.
package parser

import (
	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/lexer"
	"github.com/sh2c/sh2c/internal/compiler/span"
	"github.com/sh2c/sh2c/internal/compiler/token"
)

// Precedence levels, lowest to highest.
const (
	LOWEST = iota
	OR
	AND
	CMP
	CAT
	ADD
	MUL
	UNARY
	SUFFIX
)

var precedences = map[token.Type]int{
	token.OR_OR:    OR,
	token.AND_AND:  AND,
	token.EQ:       CMP,
	token.NOT_EQ:   CMP,
	token.LT:       CMP,
	token.GT:       CMP,
	token.LT_EQ:    CMP,
	token.GT_EQ:    CMP,
	token.AMP:      CAT,
	token.PLUS:     ADD,
	token.MINUS:    ADD,
	token.ASTERISK: MUL,
	token.SLASH:    MUL,
	token.PERCENT:  MUL,
	token.DOT:      SUFFIX,
	token.LBRACKET: SUFFIX,
}

// namedOptionBuiltins take `name=value` options alongside positional args,
// at both statement and expression form.
var namedOptionBuiltins = map[string]bool{
	"sh": true, "sudo": true, "capture": true, "confirm": true, "run": true,
}

// reservedNames are prelude helper names that may not be redeclared as
// user functions.
var reservedNames = map[string]bool{
	"trim": true, "before": true, "after": true, "replace": true, "split": true,
}

type parseAbort struct{}

// Parser consumes a Lexer's token stream and builds an ast.File.
type Parser struct {
	l   *lexer.Lexer
	sm  *span.SourceMap
	cur token.Token
	pk  token.Token

	errs *errors.List

	prefix map[token.Type]func() ast.Expression
	infix  map[token.Type]func(ast.Expression) ast.Expression
}

// New creates a Parser over sm's text.
func New(sm *span.SourceMap) *Parser {
	p := &Parser{l: lexer.New(sm), sm: sm, errs: &errors.List{}}

	p.prefix = map[token.Type]func() ast.Expression{}
	p.infix = map[token.Type]func(ast.Expression) ast.Expression{}

	p.registerPrefix(token.IDENT, p.parseIdentOrCall)
	p.registerPrefix(token.INT, p.parseNumberLit)
	p.registerPrefix(token.STRING, p.parseStringLit)
	p.registerPrefix(token.DOLLAR_STRING, p.parseInterpString)
	p.registerPrefix(token.ENV_IDENT, p.parseEnvIdent)
	p.registerPrefix(token.DOLLAR_LPAREN, p.parseCommandSubst)
	p.registerPrefix(token.TRUE, p.parseBoolLit)
	p.registerPrefix(token.FALSE, p.parseBoolLit)
	p.registerPrefix(token.BANG, p.parseUnary)
	p.registerPrefix(token.MINUS, p.parseUnary)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpr)
	p.registerPrefix(token.LBRACKET, p.parseListLit)
	p.registerPrefix(token.LBRACE, p.parseMapLit)

	for tt := range precedences {
		if tt == token.DOT || tt == token.LBRACKET {
			continue
		}
		p.registerInfix(tt, p.parseBinOp)
	}
	p.registerInfix(token.AMP, p.parseConcat)
	p.registerInfix(token.DOT, p.parseFieldAccess)
	p.registerInfix(token.LBRACKET, p.parseIndexAccess)

	p.advance()
	p.advance()
	return p
}

func (p *Parser) registerPrefix(tt token.Type, fn func() ast.Expression)          { p.prefix[tt] = fn }
func (p *Parser) registerInfix(tt token.Type, fn func(ast.Expression) ast.Expression) { p.infix[tt] = fn }

func (p *Parser) advance() {
	p.cur = p.pk
	p.pk = p.l.NextToken()
	if p.l.Errors.HasErrors() {
		p.errs.Errors = append(p.errs.Errors, p.l.Errors.Errors...)
		p.l.Errors.Errors = nil
		panic(parseAbort{})
	}
}

func tokSpan(t token.Token) span.Span {
	end := t.Offset + len(t.Literal)
	if end <= t.Offset {
		end = t.Offset + 1
	}
	return span.Span{Start: t.Offset, End: end}
}

func (p *Parser) curSpan() span.Span { return tokSpan(p.cur) }

func (p *Parser) fail(sp span.Span, format string, args ...interface{}) {
	p.errs.Add(errors.New(errors.Parse, p.sm, sp, format, args...))
	panic(parseAbort{})
}

// expect asserts the current token has type tt, returns it, and advances.
func (p *Parser) expect(tt token.Type) token.Token {
	if p.cur.Type != tt {
		p.fail(p.curSpan(), "expected %s, got %s %q", tt, p.cur.Type, p.cur.Literal)
	}
	t := p.cur
	p.advance()
	return t
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return LOWEST
}

// Parse runs the parser to completion and returns the resulting File along
// with any accumulated diagnostics (at most one in practice, since parsing
// aborts at the first error).
func (p *Parser) Parse() (file *ast.File, errs *errors.List) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseAbort); !ok {
				panic(r)
			}
		}
		errs = p.errs
	}()

	file = &ast.File{Path: p.sm.File}
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.IMPORT:
			file.Imports = append(file.Imports, p.parseImport())
		case token.FUNC:
			file.Functions = append(file.Functions, p.parseFunction())
		default:
			p.fail(p.curSpan(), "expected 'import' or 'func' at top level, got %s", p.cur.Type)
		}
	}
	return file, p.errs
}

func (p *Parser) parseImport() *ast.Import {
	startTok := p.expect(token.IMPORT)
	pathTok := p.expect(token.STRING)
	imp := &ast.Import{Path: pathTok.Literal}
	if p.cur.Type == token.AS {
		p.advance()
		aliasTok := p.expect(token.IDENT)
		imp.Alias = aliasTok.Literal
	}
	imp.Span = span.Merge(tokSpan(startTok), tokSpan(pathTok))
	return imp
}

func (p *Parser) parseFunction() *ast.Function {
	startTok := p.expect(token.FUNC)
	nameTok := p.expect(token.IDENT)
	if reservedNames[nameTok.Literal] {
		p.fail(tokSpan(nameTok), "function name %q is reserved for a prelude helper", nameTok.Literal)
	}
	p.expect(token.LPAREN)
	var params []string
	for p.cur.Type != token.RPAREN {
		pt := p.expect(token.IDENT)
		params = append(params, pt.Literal)
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.Function{
		Name:   nameTok.Literal,
		Params: params,
		Body:   body,
		File:   p.sm.File,
		Span:   span.Merge(tokSpan(startTok), tokSpan(endTok)),
	}
}

// parseBlock parses statements up to (not including) the closing RBRACE.
func (p *Parser) parseBlock() []ast.Statement {
	var stmts []ast.Statement
	for p.cur.Type != token.RBRACE && p.cur.Type != token.EOF {
		if p.cur.Type == token.SEMICOLON {
			p.advance()
			continue
		}
		stmts = append(stmts, p.parseStatement())
		for p.cur.Type == token.SEMICOLON {
			p.advance()
		}
	}
	return stmts
}

// ============ expression parsing ============

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefixFn, ok := p.prefix[p.cur.Type]
	if !ok {
		p.fail(p.curSpan(), "unexpected token %s %q in expression", p.cur.Type, p.cur.Literal)
	}
	left := prefixFn()

	for p.cur.Type != token.SEMICOLON && p.cur.Type != token.EOF && p.cur.Type != token.RBRACE &&
		precedence < p.curPrecedence() {
		infixFn, ok := p.infix[p.cur.Type]
		if !ok {
			return left
		}
		left = infixFn(left)
	}
	return left
}

// parseExprList parses a comma-separated expression list up to (not
// including) the end token.
func (p *Parser) parseExprList(end token.Type) []ast.Expression {
	var exprs []ast.Expression
	for p.cur.Type != end {
		exprs = append(exprs, p.parseExpression(LOWEST))
		if p.cur.Type == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	return exprs
}

func (p *Parser) parseNumberLit() ast.Expression {
	t := p.cur
	p.advance()
	return &ast.NumberLit{Value: t.Literal, Span: tokSpan(t)}
}

func (p *Parser) parseStringLit() ast.Expression {
	t := p.cur
	p.advance()
	return &ast.StringLit{Value: t.Literal, Span: tokSpan(t)}
}

func (p *Parser) parseBoolLit() ast.Expression {
	t := p.cur
	p.advance()
	return &ast.BoolLit{Value: t.Type == token.TRUE, Span: tokSpan(t)}
}

func (p *Parser) parseEnvIdent() ast.Expression {
	t := p.cur
	p.advance()
	return &ast.EnvDotExpr{Name: t.Literal, Span: tokSpan(t)}
}

func (p *Parser) parseUnary() ast.Expression {
	opTok := p.cur
	op := "-"
	if opTok.Type == token.BANG {
		op = "!"
	}
	p.advance()
	operand := p.parseExpression(UNARY)
	return &ast.UnaryOp{Op: op, Operand: operand, Span: span.Merge(tokSpan(opTok), operand.Spn())}
}

func (p *Parser) parseGroupedExpr() ast.Expression {
	p.advance() // consume (
	e := p.parseExpression(LOWEST)
	p.expect(token.RPAREN)
	return e
}

func (p *Parser) parseListLit() ast.Expression {
	startTok := p.expect(token.LBRACKET)
	items := p.parseExprList(token.RBRACKET)
	endTok := p.expect(token.RBRACKET)
	return &ast.ListLit{Items: items, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseMapLit() ast.Expression {
	startTok := p.expect(token.LBRACE)
	var keys []string
	var values []ast.Expression
	for p.cur.Type != token.RBRACE {
		kt := p.expect(token.STRING)
		p.expect(token.COLON)
		v := p.parseExpression(LOWEST)
		keys = append(keys, kt.Literal)
		values = append(values, v)
		if p.cur.Type == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	endTok := p.expect(token.RBRACE)
	return &ast.MapLit{Keys: keys, Values: values, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseBinOp(left ast.Expression) ast.Expression {
	opTok := p.cur
	prec := p.curPrecedence()
	p.advance()
	right := p.parseExpression(prec)
	return &ast.BinOp{Op: string(opTok.Type), Left: left, Right: right, Span: span.Merge(left.Spn(), right.Spn())}
}

// parseConcat handles `&`, which requires whitespace on both sides so it
// can't be confused with background-job syntax from shell muscle memory.
func (p *Parser) parseConcat(left ast.Expression) ast.Expression {
	opTok := p.cur
	if opTok.Offset <= left.Spn().End {
		p.fail(tokSpan(opTok), "The & operator requires whitespace")
	}
	prec := p.curPrecedence()
	p.advance()
	if p.cur.Offset == opTok.Offset+1 {
		p.fail(p.curSpan(), "The & operator requires whitespace")
	}
	right := p.parseExpression(prec)
	return &ast.BinOp{Op: "&", Left: left, Right: right, Span: span.Merge(left.Spn(), right.Spn())}
}

func (p *Parser) parseFieldAccess(left ast.Expression) ast.Expression {
	p.expect(token.DOT)
	nameTok := p.expect(token.IDENT)
	return &ast.FieldExpr{Base: left, Name: nameTok.Literal, Span: span.Merge(left.Spn(), tokSpan(nameTok))}
}

func (p *Parser) parseIndexAccess(left ast.Expression) ast.Expression {
	p.expect(token.LBRACKET)
	idx := p.parseExpression(LOWEST)
	endTok := p.expect(token.RBRACKET)
	return &ast.IndexExpr{Base: left, Index: idx, Span: span.Merge(left.Spn(), tokSpan(endTok))}
}

// parseCommandSubst parses `$(run(...))` or `$(run(...) | run(...))`.
func (p *Parser) parseCommandSubst() ast.Expression {
	startTok := p.cur
	p.advance() // consume $(
	segments := [][]ast.Expression{p.parseRunArgvForSubst()}
	for p.cur.Type == token.PIPE {
		p.advance()
		segments = append(segments, p.parseRunArgvForSubst())
	}
	endTok := p.expect(token.RPAREN)
	sp := span.Merge(tokSpan(startTok), tokSpan(endTok))
	if len(segments) == 1 {
		return &ast.CommandExpr{Args: segments[0], Span: sp}
	}
	return &ast.CommandPipeExpr{Segments: segments, Span: sp}
}

func (p *Parser) parseRunArgvForSubst() []ast.Expression {
	p.expect(token.RUN)
	p.expect(token.LPAREN)
	args := p.parseExprList(token.RPAREN)
	p.expect(token.RPAREN)
	return args
}

// parseCallArgs parses a parenthesised argument list that may mix positional
// expressions with `name=value` options. Named options are only legal for
// sh/sudo/capture/confirm/run; rejected at parse time for anything else.
func (p *Parser) parseCallArgs(calleeName string) ([]ast.Expression, []ast.CallOption, token.Token) {
	p.expect(token.LPAREN)
	var positionals []ast.Expression
	var options []ast.CallOption
	for p.cur.Type != token.RPAREN {
		if p.cur.Type == token.IDENT && p.pk.Type == token.ASSIGN {
			nameTok := p.cur
			p.advance() // ident
			p.advance() // =
			if !namedOptionBuiltins[calleeName] {
				p.fail(tokSpan(nameTok), "named option %q is not permitted for %q", nameTok.Literal, calleeName)
			}
			val := p.parseExpression(LOWEST)
			options = append(options, ast.CallOption{Name: nameTok.Literal, Value: val, Span: span.Merge(tokSpan(nameTok), val.Spn())})
		} else {
			positionals = append(positionals, p.parseExpression(LOWEST))
		}
		if p.cur.Type == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	endTok := p.expect(token.RPAREN)
	return positionals, options, endTok
}

// parseIdentOrCall parses a bare identifier, a plain call `name(...)` —
// dispatching named builtins to their dedicated AST node — a field access
// `base.field`, or a qualified call `alias.name(...)` into an imported
// file. The loader resolves Qualifier against the file's import aliases;
// by the time the binder runs, Qualifier has already been validated.
func (p *Parser) parseIdentOrCall() ast.Expression {
	nameTok := p.cur
	p.advance()
	if p.cur.Type == token.DOT && p.pk.Type == token.IDENT {
		p.advance()
		calleeTok := p.expect(token.IDENT)
		if p.cur.Type == token.LPAREN {
			positionals, options, endTok := p.parseCallArgs(calleeTok.Literal)
			sp := span.Merge(tokSpan(nameTok), tokSpan(endTok))
			return &ast.CallExpr{
				Name:          calleeTok.Literal,
				Qualifier:     nameTok.Literal,
				QualifierSpan: tokSpan(nameTok),
				Args:          positionals,
				Options:       options,
				Span:          sp,
			}
		}
		// Not a call: an ordinary field access (e.g. result.status), built
		// directly since we've already consumed the dot and field name.
		base := &ast.Var{Name: nameTok.Literal, Span: tokSpan(nameTok)}
		return &ast.FieldExpr{Base: base, Name: calleeTok.Literal, Span: span.Merge(tokSpan(nameTok), tokSpan(calleeTok))}
	}
	if p.cur.Type != token.LPAREN {
		return &ast.Var{Name: nameTok.Literal, Span: tokSpan(nameTok)}
	}
	positionals, options, endTok := p.parseCallArgs(nameTok.Literal)
	sp := span.Merge(tokSpan(nameTok), tokSpan(endTok))
	return p.buildBuiltinOrCall(nameTok, positionals, options, sp)
}

func optBool(options []ast.CallOption, name string) (ast.Expression, bool) {
	for _, o := range options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

func literalBoolTrue(e ast.Expression) bool {
	b, ok := e.(*ast.BoolLit)
	return ok && b.Value
}

func (p *Parser) buildBuiltinOrCall(nameTok token.Token, positionals []ast.Expression, options []ast.CallOption, sp span.Span) ast.Expression {
	name := nameTok.Literal
	arg := func(i int) ast.Expression {
		if i < len(positionals) {
			return positionals[i]
		}
		return nil
	}

	switch name {
	case "len":
		return &ast.LenExpr{Arg: arg(0), Span: sp}
	case "count":
		return &ast.CountExpr{Arg: arg(0), Span: sp}
	case "arg":
		return &ast.ArgExpr{Index: arg(0), Span: sp}
	case "join":
		return &ast.JoinExpr{List: arg(0), Sep: arg(1), Span: sp}
	case "args", "status", "pid", "ppid", "uid", "pwd", "self_pid", "argv0", "argc":
		return &ast.NiladicExpr{Name: name, Span: sp}
	case "env":
		return &ast.EnvExpr{Name: arg(0), Span: sp}
	case "input":
		return &ast.InputExpr{Prompt: arg(0), Span: sp}
	case "confirm":
		def, _ := optBool(options, "default")
		return &ast.ConfirmExpr{Prompt: arg(0), Default: def, Span: sp}
	case "capture":
		allowFail, ok := optBool(options, "allow_fail")
		return &ast.CaptureExpr{Inner: arg(0), Options: options, AllowFail: ok && literalBoolTrue(allowFail), Span: sp}
	case "try_run":
		return &ast.TryRunExpr{Args: positionals, Span: sp}
	case "sh":
		return &ast.ShExpr{Cmd: arg(0), Options: options, Span: sp}
	case "sudo":
		if v, ok := optBool(options, "allow_fail"); ok {
			p.fail(v.Spn(), "allow_fail is not valid on expression-form sudo; wrap in capture(sudo(...), allow_fail=true)")
		}
		return &ast.SudoExpr{Args: positionals, Options: options, Span: sp}
	case "exists", "is_dir", "is_file", "is_symlink", "is_exec", "is_readable", "is_writable", "is_non_empty":
		return &ast.PathPredicate{Name: name, Arg: arg(0), Span: sp}
	case "matches", "contains", "contains_line":
		return &ast.StringPredicate{Name: name, Args: positionals, Span: sp}
	default:
		return &ast.CallExpr{Name: name, Args: positionals, Options: options, Span: sp}
	}
}

// parseInterpString parses a `$"…{expr}…"` interpolated string. The lexer
// has already produced a DOLLAR_STRING token followed by the raw (escaped)
// STRING token; this re-scans that decoded text for `{…}` holes and
// re-parses each hole with a fresh sub-parser over a synthetic SourceMap,
// remapping any sub-parser error span onto this file's absolute offsets.
func (p *Parser) parseInterpString() ast.Expression {
	dollarTok := p.cur
	p.advance() // consume DOLLAR_STRING
	strTok := p.expect(token.STRING)

	text := strTok.Literal
	var parts []ast.InterpPart
	i := 0
	var lit []byte
	flush := func() {
		if len(lit) > 0 {
			parts = append(parts, ast.InterpPart{Text: string(lit)})
			lit = nil
		}
	}
	for i < len(text) {
		ch := text[i]
		if ch == '\\' && i+1 < len(text) && (text[i+1] == '{' || text[i+1] == '}') {
			lit = append(lit, text[i+1])
			i += 2
			continue
		}
		if ch == '{' {
			depth := 1
			j := i + 1
			inStr := false
			for j < len(text) && depth > 0 {
				c := text[j]
				if inStr {
					if c == '\\' {
						j += 2
						continue
					}
					if c == '"' {
						inStr = false
					}
					j++
					continue
				}
				switch c {
				case '"':
					inStr = true
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto holeDone
					}
				}
				j++
			}
		holeDone:
			if depth != 0 {
				// The lexer decodes a $"..." literal by stopping at the first
				// unescaped '"', with no notion of hole nesting. A string
				// literal inside a hole therefore always truncates the token
				// right here, before this scanner ever sees a closing '}' —
				// there is no separate "truly unterminated" case to detect.
				p.fail(tokSpan(strTok), "String literals inside interpolation holes are not supported yet; bind the value to a variable with 'let' and interpolate that variable instead")
			}
			hole := text[i+1 : j]
			flush()
			expr := p.parseHoleExpr(hole, strTok.Offset+1+i+1)
			parts = append(parts, ast.InterpPart{IsExpr: true, Expr: expr})
			i = j + 1
			continue
		}
		lit = append(lit, ch)
		i++
	}
	flush()
	return &ast.InterpString{Parts: parts, Span: span.Merge(tokSpan(dollarTok), tokSpan(strTok))}
}

// parseHoleExpr re-parses one interpolation hole's source text, remapping
// any resulting diagnostic onto the outer file via baseOffset.
func (p *Parser) parseHoleExpr(hole string, baseOffset int) ast.Expression {
	subSM := span.New(p.sm.File, hole)
	sub := New(subSM)
	expr := sub.parseExpression(LOWEST)
	if sub.cur.Type != token.EOF {
		sub.fail(sub.curSpan(), "unexpected trailing token %s in interpolation hole", sub.cur.Type)
	}
	if sub.errs.HasErrors() {
		for _, e := range sub.errs.Errors {
			remapped := errors.New(e.Kind, p.sm, span.Span{Start: e.Span.Start + baseOffset, End: e.Span.End + baseOffset}, "%s", e.Message)
			p.errs.Add(remapped)
		}
		panic(parseAbort{})
	}
	return remapSpan(expr, baseOffset)
}

// remapSpan shifts every span in expr by baseOffset. Interpolation holes are
// small and shallow in practice, so a direct type switch is clearer here
// than a generic visitor.
func remapSpan(e ast.Expression, base int) ast.Expression {
	shift := func(s span.Span) span.Span { return span.Span{Start: s.Start + base, End: s.End + base} }
	switch v := e.(type) {
	case *ast.Var:
		v.Span = shift(v.Span)
		return v
	case *ast.StringLit:
		v.Span = shift(v.Span)
		return v
	case *ast.NumberLit:
		v.Span = shift(v.Span)
		return v
	case *ast.BoolLit:
		v.Span = shift(v.Span)
		return v
	case *ast.EnvDotExpr:
		v.Span = shift(v.Span)
		return v
	case *ast.FieldExpr:
		v.Base = remapSpan(v.Base, base)
		v.Span = shift(v.Span)
		return v
	case *ast.IndexExpr:
		v.Base = remapSpan(v.Base, base)
		v.Index = remapSpan(v.Index, base)
		v.Span = shift(v.Span)
		return v
	case *ast.BinOp:
		v.Left = remapSpan(v.Left, base)
		v.Right = remapSpan(v.Right, base)
		v.Span = shift(v.Span)
		return v
	case *ast.UnaryOp:
		v.Operand = remapSpan(v.Operand, base)
		v.Span = shift(v.Span)
		return v
	case *ast.CallExpr:
		for i := range v.Args {
			v.Args[i] = remapSpan(v.Args[i], base)
		}
		v.Span = shift(v.Span)
		return v
	default:
		return e // remaining variants are rare inside interpolation holes in practice
	}
}
