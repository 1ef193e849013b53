package parser

import (
	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/span"
	"github.com/sh2c/sh2c/internal/compiler/token"
)

// parseStatement parses one statement, including any trailing `&&`/`||`
// chain.
func (p *Parser) parseStatement() ast.Statement {
	stmt := p.parseSimpleStatement()
	for p.cur.Type == token.AND_AND || p.cur.Type == token.OR_OR {
		isAnd := p.cur.Type == token.AND_AND
		p.advance()
		right := p.parseSimpleStatement()
		stmt = &ast.AndOrStmt{Left: stmt, Right: right, IsAnd: isAnd, Span: span.Merge(stmt.Spn(), right.Spn())}
	}
	return stmt
}

func (p *Parser) parseSimpleStatement() ast.Statement {
	switch p.cur.Type {
	case token.LET:
		return p.parseLetStmt()
	case token.SET:
		return p.parseSetStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.CASE:
		return p.parseCaseStmt()
	case token.TRY:
		return p.parseTryCatchStmt()
	case token.RUN, token.PIPE_KW:
		return p.parsePipelineStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.EXIT:
		return p.parseExitStmt()
	case token.BREAK:
		t := p.cur
		p.advance()
		return &ast.BreakStmt{Span: tokSpan(t)}
	case token.CONTINUE:
		t := p.cur
		p.advance()
		return &ast.ContinueStmt{Span: tokSpan(t)}
	case token.EXPORT:
		return p.parseExportStmt()
	case token.UNSET:
		return p.parseUnsetStmt()
	case token.SOURCE:
		return p.parseSourceStmt()
	case token.CD:
		return p.parseCdStmt()
	case token.SH:
		return p.parseShCallStmt()
	case token.RAW_SH_BLOCK:
		return p.parseShBlockStmt()
	case token.EXEC:
		return p.parseExecStmt()
	case token.PRINT, token.PRINTERR:
		return p.parsePrintStmt()
	case token.WITH:
		return p.parseWithStmt()
	case token.SUBSHELL:
		return p.parseSubshellStmt()
	case token.GROUP:
		return p.parseGroupStmt()
	case token.SPAWN:
		return p.parseSpawnStmt()
	case token.WAIT:
		return p.parseWaitStmt()
	case token.IDENT:
		return p.parseIdentStatement()
	default:
		p.fail(p.curSpan(), "unexpected token %s %q at start of statement", p.cur.Type, p.cur.Literal)
		return nil
	}
}

func (p *Parser) parseLetStmt() ast.Statement {
	startTok := p.expect(token.LET)
	nameTok := p.expect(token.IDENT)
	p.expect(token.ASSIGN)
	val := p.parseExpression(LOWEST)
	return &ast.LetStmt{Name: nameTok.Literal, Value: val, Span: span.Merge(tokSpan(startTok), val.Spn())}
}

// parseSetStmt parses `set $NAME = expr` (Env) or `set name = expr` (Var).
// Bare `name = expr` without the `set` keyword is also accepted, handled in
// parseIdentStatement; the binder rejects a set on an undeclared name, not
// the parser.
func (p *Parser) parseSetStmt() ast.Statement {
	startTok := p.expect(token.SET)
	var target ast.LValue
	switch p.cur.Type {
	case token.IDENT:
		nameTok := p.cur
		p.advance()
		target = ast.VarLValue{Name: nameTok.Literal}
	case token.ENV_IDENT:
		nameTok := p.cur
		p.advance()
		target = ast.EnvLValue{Name: nameTok.Literal}
	default:
		p.fail(p.curSpan(), "expected an identifier or $ENV_VAR after 'set'")
	}
	p.expect(token.ASSIGN)
	val := p.parseExpression(LOWEST)
	return &ast.SetStmt{Target: target, Value: val, Span: span.Merge(tokSpan(startTok), val.Spn())}
}

// parseIdentStatement parses a bare `name = expr` assignment, a call
// statement `name(args, options...)` — covering plain user calls and the
// statement-form builtins (sh, sudo, capture, confirm accept named options) —
// or a qualified call `alias.name(args, options...)` into a function
// defined in a file imported under that alias.
func (p *Parser) parseIdentStatement() ast.Statement {
	if p.pk.Type == token.ASSIGN {
		nameTok := p.cur
		p.advance()
		p.advance()
		val := p.parseExpression(LOWEST)
		return &ast.SetStmt{Target: ast.VarLValue{Name: nameTok.Literal}, Value: val, Span: span.Merge(tokSpan(nameTok), val.Spn())}
	}

	nameTok := p.cur
	p.advance()
	qualifier := ""
	qualSpan := tokSpan(nameTok)
	calleeTok := nameTok
	if p.cur.Type == token.DOT {
		p.advance()
		calleeTok = p.expect(token.IDENT)
		qualifier = nameTok.Literal
	}
	if p.cur.Type != token.LPAREN {
		if qualifier != "" {
			p.fail(tokSpan(calleeTok), "expected '(' after %s.%s", qualifier, calleeTok.Literal)
		}
		p.fail(tokSpan(nameTok), "expected '(' or '=' after identifier %q", nameTok.Literal)
	}
	positionals, options, endTok := p.parseCallArgs(calleeTok.Literal)
	allowFail := false
	if v, ok := optBool(options, "allow_fail"); ok {
		allowFail = literalBoolTrue(v)
	}
	return &ast.CallStmt{
		Name:          calleeTok.Literal,
		Qualifier:     qualifier,
		QualifierSpan: qualSpan,
		Args:          positionals,
		Options:       options,
		AllowFail:     allowFail,
		Span:          span.Merge(tokSpan(nameTok), tokSpan(endTok)),
	}
}

func (p *Parser) parseShCallStmt() ast.Statement {
	nameTok := p.expect(token.SH)
	positionals, options, endTok := p.parseCallArgs("sh")
	allowFail := false
	if v, ok := optBool(options, "allow_fail"); ok {
		allowFail = literalBoolTrue(v)
	}
	return &ast.CallStmt{
		Name:      "sh",
		Args:      positionals,
		Options:   options,
		AllowFail: allowFail,
		Span:      span.Merge(tokSpan(nameTok), tokSpan(endTok)),
	}
}

func (p *Parser) parseShBlockStmt() ast.Statement {
	t := p.expect(token.RAW_SH_BLOCK)
	return &ast.ShBlockStmt{Lines: splitLines(t.Literal), Span: tokSpan(t)}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func (p *Parser) parsePrintStmt() ast.Statement {
	startTok := p.cur
	isErr := startTok.Type == token.PRINTERR
	p.advance()
	p.expect(token.LPAREN)
	val := p.parseExpression(LOWEST)
	endTok := p.expect(token.RPAREN)
	return &ast.PrintStmt{Value: val, Err: isErr, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseExecStmt() ast.Statement {
	startTok := p.expect(token.EXEC)
	p.expect(token.LPAREN)
	args := p.parseExprList(token.RPAREN)
	endTok := p.expect(token.RPAREN)
	return &ast.ExecStmt{Args: args, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) atStatementEnd() bool {
	return p.cur.Type == token.SEMICOLON || p.cur.Type == token.RBRACE || p.cur.Type == token.EOF ||
		p.cur.Type == token.AND_AND || p.cur.Type == token.OR_OR
}

func (p *Parser) parseReturnStmt() ast.Statement {
	startTok := p.expect(token.RETURN)
	sp := tokSpan(startTok)
	var val ast.Expression
	if !p.atStatementEnd() {
		val = p.parseExpression(LOWEST)
		sp = span.Merge(sp, val.Spn())
	}
	return &ast.ReturnStmt{Value: val, Span: sp}
}

func (p *Parser) parseExitStmt() ast.Statement {
	startTok := p.expect(token.EXIT)
	sp := tokSpan(startTok)
	var code ast.Expression
	if !p.atStatementEnd() {
		code = p.parseExpression(LOWEST)
		sp = span.Merge(sp, code.Spn())
	}
	return &ast.ExitStmt{Code: code, Span: sp}
}

func (p *Parser) parseExportStmt() ast.Statement {
	startTok := p.expect(token.EXPORT)
	nameTok := p.expect(token.IDENT)
	sp := span.Merge(tokSpan(startTok), tokSpan(nameTok))
	var val ast.Expression
	if p.cur.Type == token.ASSIGN {
		p.advance()
		val = p.parseExpression(LOWEST)
		sp = span.Merge(sp, val.Spn())
	}
	return &ast.ExportStmt{Name: nameTok.Literal, Value: val, Span: sp}
}

func (p *Parser) parseUnsetStmt() ast.Statement {
	startTok := p.expect(token.UNSET)
	nameTok := p.expect(token.IDENT)
	return &ast.UnsetStmt{Name: nameTok.Literal, Span: span.Merge(tokSpan(startTok), tokSpan(nameTok))}
}

func (p *Parser) parseSourceStmt() ast.Statement {
	startTok := p.expect(token.SOURCE)
	p.expect(token.LPAREN)
	path := p.parseExpression(LOWEST)
	endTok := p.expect(token.RPAREN)
	return &ast.SourceStmt{Path: path, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseCdStmt() ast.Statement {
	startTok := p.expect(token.CD)
	p.expect(token.LPAREN)
	path := p.parseExpression(LOWEST)
	endTok := p.expect(token.RPAREN)
	return &ast.CdStmt{Path: path, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseIfStmt() ast.Statement {
	startTok := p.expect(token.IF)
	cond := p.parseExpression(LOWEST)
	p.expect(token.LBRACE)
	thenBody := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	sp := span.Merge(tokSpan(startTok), tokSpan(endTok))

	var elifs []ast.ElifClause
	var elseBody []ast.Statement
	for p.cur.Type == token.ELIF {
		p.advance()
		c := p.parseExpression(LOWEST)
		p.expect(token.LBRACE)
		b := p.parseBlock()
		endTok = p.expect(token.RBRACE)
		sp = span.Merge(sp, tokSpan(endTok))
		elifs = append(elifs, ast.ElifClause{Cond: c, Body: b})
	}
	if p.cur.Type == token.ELSE {
		p.advance()
		p.expect(token.LBRACE)
		elseBody = p.parseBlock()
		endTok = p.expect(token.RBRACE)
		sp = span.Merge(sp, tokSpan(endTok))
	}
	return &ast.IfStmt{Cond: cond, Then: thenBody, Elifs: elifs, Else: elseBody, Span: sp}
}

func (p *Parser) parseWhileStmt() ast.Statement {
	startTok := p.expect(token.WHILE)
	cond := p.parseExpression(LOWEST)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.WhileStmt{Cond: cond, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseForStmt() ast.Statement {
	startTok := p.expect(token.FOR)

	if p.cur.Type == token.LPAREN {
		p.advance()
		keyTok := p.expect(token.IDENT)
		p.expect(token.COMMA)
		valTok := p.expect(token.IDENT)
		p.expect(token.RPAREN)
		p.expect(token.IN)
		mapExpr := p.parseExpression(LOWEST)
		p.expect(token.LBRACE)
		body := p.parseBlock()
		endTok := p.expect(token.RBRACE)
		return &ast.ForMapStmt{
			KeyVar: keyTok.Literal, ValVar: valTok.Literal, Map: mapExpr, Body: body,
			Span: span.Merge(tokSpan(startTok), tokSpan(endTok)),
		}
	}

	varTok := p.expect(token.IDENT)
	p.expect(token.IN)
	iterable := p.parseIterable()
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.ForStmt{Var: varTok.Literal, Iterable: iterable, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

// parseIterable recognises the three dedicated iterable forms ahead of the
// general list-expression fallback.
func (p *Parser) parseIterable() ast.Iterable {
	if p.cur.Type == token.IDENT && p.pk.Type == token.LPAREN {
		switch p.cur.Literal {
		case "range":
			p.advance()
			p.expect(token.LPAREN)
			start := p.parseExpression(LOWEST)
			p.expect(token.COMMA)
			end := p.parseExpression(LOWEST)
			p.expect(token.RPAREN)
			return ast.Iterable{Kind: ast.IterRange, RangeStart: start, RangeEnd: end}
		case "stdin_lines":
			p.advance()
			p.expect(token.LPAREN)
			p.expect(token.RPAREN)
			return ast.Iterable{Kind: ast.IterStdinLines}
		case "find0":
			p.advance()
			p.expect(token.LPAREN)
			spec := p.parseExpression(LOWEST)
			p.expect(token.RPAREN)
			return ast.Iterable{Kind: ast.IterFind0, FindSpec: spec}
		}
	}
	return ast.Iterable{Kind: ast.IterList, List: p.parseExpression(LOWEST)}
}

func (p *Parser) parseCaseStmt() ast.Statement {
	startTok := p.expect(token.CASE)
	expr := p.parseExpression(LOWEST)
	p.expect(token.LBRACE)

	var arms []ast.CaseArm
	for p.cur.Type != token.RBRACE {
		var pats []ast.Pattern
		pats = append(pats, p.parseCasePattern())
		for p.cur.Type == token.PIPE {
			p.advance()
			pats = append(pats, p.parseCasePattern())
		}
		p.expect(token.COLON)
		p.expect(token.LBRACE)
		body := p.parseBlock()
		p.expect(token.RBRACE)
		arms = append(arms, ast.CaseArm{Patterns: pats, Body: body})
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	endTok := p.expect(token.RBRACE)
	return &ast.CaseStmt{Expr: expr, Arms: arms, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseCasePattern() ast.Pattern {
	switch p.cur.Type {
	case token.STRING:
		t := p.cur
		p.advance()
		return ast.Pattern{Kind: ast.PatternLiteral, Text: t.Literal}
	case token.IDENT:
		if p.cur.Literal == "_" {
			p.advance()
			return ast.Pattern{Kind: ast.PatternWildcard}
		}
		if p.cur.Literal == "glob" && p.pk.Type == token.LPAREN {
			p.advance()
			p.expect(token.LPAREN)
			t := p.expect(token.STRING)
			p.expect(token.RPAREN)
			return ast.Pattern{Kind: ast.PatternGlob, Text: t.Literal}
		}
	}
	p.fail(p.curSpan(), "expected a string literal, glob(...), or '_' in case pattern")
	return ast.Pattern{}
}

func (p *Parser) parseTryCatchStmt() ast.Statement {
	startTok := p.expect(token.TRY)
	p.expect(token.LBRACE)
	tryBody := p.parseBlock()
	p.expect(token.RBRACE)
	p.expect(token.CATCH)
	p.expect(token.LBRACE)
	catchBody := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.TryCatchStmt{Try: tryBody, Catch: catchBody, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

// parsePipelineStmt parses `run(...)`, optionally chained with `| segment`,
// or a `pipe segment | segment | ...` form. A single run segment collapses
// to ast.RunStmt.
func (p *Parser) parsePipelineStmt() ast.Statement {
	startSp := p.curSpan()
	if p.cur.Type == token.PIPE_KW {
		p.advance()
	}

	seg, segSp := p.parsePipeSegment()
	segments := []ast.PipeSegment{seg}
	lastSp := segSp
	for p.cur.Type == token.PIPE {
		p.advance()
		s, sp := p.parsePipeSegment()
		segments = append(segments, s)
		lastSp = sp
	}
	sp := span.Merge(startSp, lastSp)

	if len(segments) == 1 && segments[0].Kind == ast.SegRun {
		return &ast.RunStmt{Args: segments[0].Args, Options: segments[0].Options, AllowFail: segments[0].AllowFail, Span: sp}
	}
	return &ast.PipeStmt{Segments: segments, Span: sp}
}

func (p *Parser) parsePipeSegment() (ast.PipeSegment, span.Span) {
	switch p.cur.Type {
	case token.RUN:
		startTok := p.cur
		p.advance()
		positionals, options, endTok := p.parseCallArgs("run")
		allowFail := false
		if v, ok := optBool(options, "allow_fail"); ok {
			allowFail = literalBoolTrue(v)
		}
		return ast.PipeSegment{Kind: ast.SegRun, Args: positionals, Options: options, AllowFail: allowFail},
			span.Merge(tokSpan(startTok), tokSpan(endTok))
	case token.LBRACE:
		startTok := p.cur
		p.advance()
		body := p.parseBlock()
		endTok := p.expect(token.RBRACE)
		return ast.PipeSegment{Kind: ast.SegBlock, Block: body}, span.Merge(tokSpan(startTok), tokSpan(endTok))
	case token.IDENT:
		switch p.cur.Literal {
		case "sudo":
			startTok := p.cur
			p.advance()
			positionals, options, endTok := p.parseCallArgs("sudo")
			allowFail := false
			if v, ok := optBool(options, "allow_fail"); ok {
				allowFail = literalBoolTrue(v)
			}
			return ast.PipeSegment{Kind: ast.SegSudo, Args: positionals, Options: options, AllowFail: allowFail},
				span.Merge(tokSpan(startTok), tokSpan(endTok))
		case "each_line":
			startTok := p.cur
			p.advance()
			varTok := p.expect(token.IDENT)
			p.expect(token.LBRACE)
			body := p.parseBlock()
			endTok := p.expect(token.RBRACE)
			return ast.PipeSegment{Kind: ast.SegEachLine, EachVar: varTok.Literal, EachBody: body},
				span.Merge(tokSpan(startTok), tokSpan(endTok))
		}
	}
	p.fail(p.curSpan(), "expected run(...), sudo(...), each_line ident {...}, or a block in pipeline")
	return ast.PipeSegment{}, span.Span{}
}

func (p *Parser) parseSubshellStmt() ast.Statement {
	startTok := p.expect(token.SUBSHELL)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.SubshellStmt{Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseGroupStmt() ast.Statement {
	startTok := p.expect(token.GROUP)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.GroupStmt{Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseSpawnStmt() ast.Statement {
	startTok := p.expect(token.SPAWN)
	var inner ast.Statement
	if p.cur.Type == token.LBRACE {
		bStart := p.cur
		p.advance()
		body := p.parseBlock()
		endTok := p.expect(token.RBRACE)
		inner = &ast.GroupStmt{Body: body, Span: span.Merge(tokSpan(bStart), tokSpan(endTok))}
	} else {
		inner = p.parseStatement()
	}
	return &ast.SpawnStmt{Body: inner, Span: span.Merge(tokSpan(startTok), inner.Spn())}
}

func (p *Parser) parseWaitStmt() ast.Statement {
	startTok := p.expect(token.WAIT)
	sp := tokSpan(startTok)
	var pid ast.Expression
	if p.cur.Type == token.LPAREN {
		p.advance()
		pid = p.parseExpression(LOWEST)
		endTok := p.expect(token.RPAREN)
		sp = span.Merge(sp, tokSpan(endTok))
	}
	return &ast.WaitStmt{Pid: pid, Span: sp}
}

// ============ with-blocks ============

func (p *Parser) parseWithStmt() ast.Statement {
	startTok := p.expect(token.WITH)
	kindTok := p.expect(token.IDENT)
	switch kindTok.Literal {
	case "env":
		return p.parseWithEnv(startTok)
	case "cwd":
		return p.parseWithCwd(startTok)
	case "log":
		return p.parseWithLog(startTok)
	case "redirect":
		return p.parseWithRedirect(startTok)
	default:
		p.fail(tokSpan(kindTok), "expected 'env', 'cwd', 'log', or 'redirect' after 'with', got %q", kindTok.Literal)
		return nil
	}
}

func (p *Parser) parseWithEnv(startTok token.Token) ast.Statement {
	p.expect(token.LBRACE)
	var bindings []ast.EnvBinding
	for p.cur.Type != token.RBRACE {
		nameTok := p.expect(token.IDENT)
		p.expect(token.ASSIGN)
		val := p.parseExpression(LOWEST)
		bindings = append(bindings, ast.EnvBinding{Name: nameTok.Literal, Value: val})
		if p.cur.Type == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACE)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.WithEnvStmt{Bindings: bindings, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseWithCwd(startTok token.Token) ast.Statement {
	p.expect(token.LPAREN)
	path := p.parseExpression(LOWEST)
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.WithCwdStmt{Path: path, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseWithLog(startTok token.Token) ast.Statement {
	p.expect(token.LPAREN)
	path := p.parseExpression(LOWEST)
	appendFlag := false
	if p.cur.Type == token.COMMA {
		p.advance()
		v := p.parseExpression(LOWEST)
		appendFlag = literalBoolTrue(v)
	}
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.WithLogStmt{Path: path, Append: appendFlag, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseWithRedirect(startTok token.Token) ast.Statement {
	p.expect(token.LBRACE)
	var rd ast.Redirects
	for p.cur.Type != token.RBRACE {
		keyTok := p.expect(token.IDENT)
		p.expect(token.COLON)
		targets := p.parseRedirectValue()
		switch keyTok.Literal {
		case "stdout":
			rd.Stdout = targets
		case "stderr":
			rd.Stderr = targets
		case "stdin":
			rd.Stdin = targets
		default:
			p.fail(tokSpan(keyTok), "unknown redirect stream %q, expected stdout, stderr, or stdin", keyTok.Literal)
		}
		if p.cur.Type == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBRACE)

	if len(rd.Stdin) > 1 {
		p.fail(tokSpan(startTok), "stdin redirect cannot be a list")
	}
	if len(rd.Stdin) == 1 && rd.Stdin[0].Kind == ast.RedirectFile && rd.Stdin[0].Append {
		p.fail(tokSpan(startTok), "stdin redirect cannot use append")
	}
	for _, t := range rd.Stdout {
		if t.Kind == ast.RedirectInheritStderr {
			p.fail(tokSpan(startTok), "inherit_stderr() is not valid on the stdout stream")
		}
	}
	for _, t := range rd.Stderr {
		if t.Kind == ast.RedirectInheritStdout {
			p.fail(tokSpan(startTok), "inherit_stdout() is not valid on the stderr stream")
		}
	}

	p.expect(token.LBRACE)
	body := p.parseBlock()
	endTok := p.expect(token.RBRACE)
	return &ast.WithRedirectStmt{Redirects: rd, Body: body, Span: span.Merge(tokSpan(startTok), tokSpan(endTok))}
}

func (p *Parser) parseRedirectValue() []ast.RedirectTarget {
	if p.cur.Type == token.LBRACKET {
		p.advance()
		var targets []ast.RedirectTarget
		for p.cur.Type != token.RBRACKET {
			targets = append(targets, p.parseRedirectTarget(true))
			if p.cur.Type == token.COMMA {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RBRACKET)
		return targets
	}
	return []ast.RedirectTarget{p.parseRedirectTarget(false)}
}

func (p *Parser) parseRedirectTarget(inList bool) ast.RedirectTarget {
	nameTok := p.expect(token.IDENT)
	switch nameTok.Literal {
	case "file":
		p.expect(token.LPAREN)
		pathExpr := p.parseExpression(LOWEST)
		appendFlag := false
		if p.cur.Type == token.COMMA {
			p.advance()
			optNameTok := p.expect(token.IDENT)
			p.expect(token.ASSIGN)
			v := p.parseExpression(LOWEST)
			if optNameTok.Literal == "append" {
				appendFlag = literalBoolTrue(v)
			}
		}
		p.expect(token.RPAREN)
		return ast.RedirectTarget{Kind: ast.RedirectFile, Path: pathExpr, Append: appendFlag}
	case "to_stdout":
		p.expect(token.LPAREN)
		p.expect(token.RPAREN)
		return ast.RedirectTarget{Kind: ast.RedirectToStdout}
	case "to_stderr":
		p.expect(token.LPAREN)
		p.expect(token.RPAREN)
		return ast.RedirectTarget{Kind: ast.RedirectToStderr}
	case "inherit_stdout":
		if !inList {
			p.fail(tokSpan(nameTok), "inherit_stdout() is only valid inside a redirect list")
		}
		p.expect(token.LPAREN)
		p.expect(token.RPAREN)
		return ast.RedirectTarget{Kind: ast.RedirectInheritStdout}
	case "inherit_stderr":
		if !inList {
			p.fail(tokSpan(nameTok), "inherit_stderr() is only valid inside a redirect list")
		}
		p.expect(token.LPAREN)
		p.expect(token.RPAREN)
		return ast.RedirectTarget{Kind: ast.RedirectInheritStderr}
	default:
		p.fail(tokSpan(nameTok), "unknown redirect target %q", nameTok.Literal)
		return ast.RedirectTarget{}
	}
}
