package lexer

import (
	"testing"

	"github.com/sh2c/sh2c/internal/compiler/span"
	"github.com/sh2c/sh2c/internal/compiler/token"
)

func newLexer(text string) *Lexer {
	return New(span.New("t.sh2", text))
}

func TestBasicTokens(t *testing.T) {
	input := `= + - ! * / % & | < > ( ) { } [ ] : , . ;`

	expected := []token.Type{
		token.ASSIGN, token.PLUS, token.MINUS, token.BANG, token.ASTERISK,
		token.SLASH, token.PERCENT, token.AMP, token.PIPE, token.LT, token.GT,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACKET, token.RBRACKET, token.COLON, token.COMMA, token.DOT,
		token.SEMICOLON, token.EOF,
	}

	l := newLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Fatalf("test[%d] - wrong type. expected=%s, got=%s (literal=%q)", i, exp, tok.Type, tok.Literal)
		}
	}
}

func TestMultiCharOperators(t *testing.T) {
	input := `== != <= >= && ||`

	expected := []struct {
		typ token.Type
		lit string
	}{
		{token.EQ, "=="}, {token.NOT_EQ, "!="}, {token.LT_EQ, "<="},
		{token.GT_EQ, ">="}, {token.AND_AND, "&&"}, {token.OR_OR, "||"},
	}

	l := newLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Literal != exp.lit {
			t.Fatalf("test[%d] - expected %s(%q), got %s(%q)", i, exp.typ, exp.lit, tok.Type, tok.Literal)
		}
	}
}

func TestKeywords(t *testing.T) {
	input := `func let set if elif else while for in case try catch return exit break continue import as run pipe spawn wait with subshell group export unset source cd sh exec print printerr true false`

	expected := []token.Type{
		token.FUNC, token.LET, token.SET, token.IF, token.ELIF, token.ELSE,
		token.WHILE, token.FOR, token.IN, token.CASE, token.TRY, token.CATCH,
		token.RETURN, token.EXIT, token.BREAK, token.CONTINUE, token.IMPORT,
		token.AS, token.RUN, token.PIPE_KW, token.SPAWN, token.WAIT,
		token.WITH, token.SUBSHELL, token.GROUP, token.EXPORT, token.UNSET,
		token.SOURCE, token.CD, token.SH, token.EXEC, token.PRINT,
		token.PRINTERR, token.TRUE, token.FALSE,
	}

	l := newLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp {
			t.Fatalf("test[%d] - expected %s, got %s(%q)", i, exp, tok.Type, tok.Literal)
		}
	}
}

func TestIdentifierWithLeadingR(t *testing.T) {
	l := newLexer(`run resume`)
	tok := l.NextToken()
	if tok.Type != token.RUN || tok.Literal != "run" {
		t.Fatalf("expected run keyword, got %s(%q)", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != token.IDENT || tok.Literal != "resume" {
		t.Fatalf("expected resume ident, got %s(%q)", tok.Type, tok.Literal)
	}
}

func TestStrings(t *testing.T) {
	l := newLexer(`"hello world" "line\nbreak" "tab\ttab" "a\$b"`)

	cases := []string{"hello world", "line\nbreak", "tab\ttab", `a\$b`}
	for i, want := range cases {
		tok := l.NextToken()
		if tok.Type != token.STRING || tok.Literal != want {
			t.Fatalf("case %d: got %s(%q), want %q", i, tok.Type, tok.Literal, want)
		}
	}
}

func TestTripleQuotedString(t *testing.T) {
	l := newLexer("\"\"\"line one\nline two\"\"\"")
	tok := l.NextToken()
	if tok.Type != token.STRING || tok.Literal != "line one\nline two" {
		t.Fatalf("got %s(%q)", tok.Type, tok.Literal)
	}
}

func TestRawString(t *testing.T) {
	l := newLexer(`r"C:\path\to\"quote\""`)
	tok := l.NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("expected STRING, got %s(%q)", tok.Type, tok.Literal)
	}
	want := `C:\path\to\"quote\"`
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
}

func TestDollarStringPrefix(t *testing.T) {
	l := newLexer(`$"hello {name}"`)
	tok := l.NextToken()
	if tok.Type != token.DOLLAR_STRING {
		t.Fatalf("expected DOLLAR_STRING, got %s", tok.Type)
	}
	tok = l.NextToken()
	if tok.Type != token.STRING || tok.Literal != "hello {name}" {
		t.Fatalf("got %s(%q)", tok.Type, tok.Literal)
	}
}

func TestEnvIdent(t *testing.T) {
	l := newLexer(`$PATH $HOME`)
	for _, want := range []string{"PATH", "HOME"} {
		tok := l.NextToken()
		if tok.Type != token.ENV_IDENT || tok.Literal != want {
			t.Fatalf("got %s(%q), want ENV_IDENT %q", tok.Type, tok.Literal, want)
		}
	}
}

func TestRawShBlock(t *testing.T) {
	l := newLexer("sh { echo \"{nested}\"; if true; then :; fi } let")
	tok := l.NextToken()
	if tok.Type != token.RAW_SH_BLOCK {
		t.Fatalf("expected RAW_SH_BLOCK, got %s(%q)", tok.Type, tok.Literal)
	}
	want := ` echo "{nested}"; if true; then :; fi `
	if tok.Literal != want {
		t.Fatalf("got %q, want %q", tok.Literal, want)
	}
	tok = l.NextToken()
	if tok.Type != token.LET {
		t.Fatalf("expected LET after block, got %s", tok.Type)
	}
}

func TestShCallFormStillLexesAsKeyword(t *testing.T) {
	l := newLexer(`sh("echo hi")`)
	tok := l.NextToken()
	if tok.Type != token.SH {
		t.Fatalf("expected SH keyword, got %s", tok.Type)
	}
}

func TestCommandSubstOpen(t *testing.T) {
	l := newLexer(`$(run("ls"))`)
	tok := l.NextToken()
	if tok.Type != token.DOLLAR_LPAREN {
		t.Fatalf("expected DOLLAR_LPAREN, got %s", tok.Type)
	}
}

func TestUnterminatedString(t *testing.T) {
	l := newLexer(`"oops`)
	tok := l.NextToken()
	if tok.Type != token.ILLEGAL {
		t.Fatalf("expected ILLEGAL, got %s", tok.Type)
	}
	if !l.Errors.HasErrors() {
		t.Fatalf("expected a lex error to be recorded")
	}
}

func TestNumbers(t *testing.T) {
	l := newLexer(`0 42 1000`)
	for _, want := range []string{"0", "42", "1000"} {
		tok := l.NextToken()
		if tok.Type != token.INT || tok.Literal != want {
			t.Fatalf("got %s(%q), want INT %q", tok.Type, tok.Literal, want)
		}
	}
}

func TestCommentsSkipped(t *testing.T) {
	l := newLexer("let x = 1 // trailing\n# hash comment\nlet y = 2")
	var types []token.Type
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		types = append(types, tok.Type)
	}
	want := []token.Type{token.LET, token.IDENT, token.ASSIGN, token.INT, token.LET, token.IDENT, token.ASSIGN, token.INT}
	if len(types) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(types), len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token %d: got %s, want %s", i, types[i], want[i])
		}
	}
}
