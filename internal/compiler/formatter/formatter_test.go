package formatter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/parser"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

func parseSrc(t *testing.T, src string) *ast.File {
	t.Helper()
	sm := span.New("test.sh2", src)
	p := parser.New(sm)
	file, errs := p.Parse()
	require.False(t, errs.HasErrors(), errs.String())
	return file
}

// reformat parses, formats, and re-parses, asserting the second parse
// succeeds and yields the same function/import shape as the first — the
// formatter's core correctness contract (idempotent, round-trip-safe text).
func reformat(t *testing.T, src string) (string, *ast.File) {
	t.Helper()
	file := parseSrc(t, src)
	out := Format(file)
	reparsed := parseSrc(t, out)
	require.Len(t, reparsed.Functions, len(file.Functions))
	require.Len(t, reparsed.Imports, len(file.Imports))
	return out, reparsed
}

func TestFormatSimpleFunction(t *testing.T) {
	out, _ := reformat(t, `func main() { print("hello") }`)
	require.Contains(t, out, "func main() {")
	require.Contains(t, out, `print("hello")`)
}

func TestFormatImportWithAlias(t *testing.T) {
	out, reparsed := reformat(t, "import \"lib\" as l\nfunc main() { l.helper() }")
	require.Contains(t, out, `import "lib" as l`)
	require.Equal(t, "lib", reparsed.Imports[0].Path)
	require.Equal(t, "l", reparsed.Imports[0].Alias)
}

func TestFormatLetAndSet(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		let x = 1 + 2 * 3
		set x = x - 1
	}`)
	require.Contains(t, out, "let x = 1 + 2 * 3")
	require.Contains(t, out, "set x = x - 1")

	fn := reparsed.Functions[0]
	let := fn.Body[0].(*ast.LetStmt)
	bin := let.Value.(*ast.BinOp)
	require.Equal(t, "+", bin.Op)
	rightMul := bin.Right.(*ast.BinOp)
	require.Equal(t, "*", rightMul.Op)
}

func TestFormatPreservesPrecedenceWithParens(t *testing.T) {
	out, reparsed := reformat(t, `func main() { let x = (1 + 2) * 3 }`)
	require.Contains(t, out, "(1 + 2) * 3")

	let := reparsed.Functions[0].Body[0].(*ast.LetStmt)
	bin := let.Value.(*ast.BinOp)
	require.Equal(t, "*", bin.Op)
	leftAdd := bin.Left.(*ast.BinOp)
	require.Equal(t, "+", leftAdd.Op)
}

func TestFormatIfElifElse(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		if x == 1 {
			print("one")
		} elif x == 2 {
			print("two")
		} else {
			print("other")
		}
	}`)
	require.Contains(t, out, "if x == 1 {")
	require.Contains(t, out, "} elif x == 2 {")
	require.Contains(t, out, "} else {")

	ifStmt := reparsed.Functions[0].Body[0].(*ast.IfStmt)
	require.Len(t, ifStmt.Elifs, 1)
	require.NotNil(t, ifStmt.Else)
}

func TestFormatForRangeAndForMap(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		for i in range(0, 10) {
			print(i)
		}
		for (k, v) in m {
			print(k)
		}
	}`)
	require.Contains(t, out, "for i in range(0, 10) {")
	require.Contains(t, out, "for (k, v) in m {")

	forStmt := reparsed.Functions[0].Body[0].(*ast.ForStmt)
	require.Equal(t, ast.IterRange, forStmt.Iterable.Kind)
	forMap := reparsed.Functions[0].Body[1].(*ast.ForMapStmt)
	require.Equal(t, "k", forMap.KeyVar)
}

func TestFormatCaseWithGlobAndWildcard(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		case ext {
			"txt": { print("text") },
			glob("*.md"): { print("markdown") },
			_: { print("other") }
		}
	}`)
	require.Contains(t, out, `"txt": {`)
	require.Contains(t, out, `glob("*.md"): {`)
	require.Contains(t, out, "_: {")

	caseStmt := reparsed.Functions[0].Body[0].(*ast.CaseStmt)
	require.Len(t, caseStmt.Arms, 3)
	require.Equal(t, ast.PatternGlob, caseStmt.Arms[1].Patterns[0].Kind)
	require.Equal(t, ast.PatternWildcard, caseStmt.Arms[2].Patterns[0].Kind)
}

func TestFormatTryCatch(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		try {
			run("false")
		} catch {
			print("failed")
		}
	}`)
	require.Contains(t, out, "try {")
	require.Contains(t, out, "} catch {")
	_, ok := reparsed.Functions[0].Body[0].(*ast.TryCatchStmt)
	require.True(t, ok)
}

func TestFormatPipeline(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		pipe run("grep", "x") | run("sort")
	}`)
	require.Contains(t, out, `pipe run("grep", "x") | run("sort")`)
	pipeStmt := reparsed.Functions[0].Body[0].(*ast.PipeStmt)
	require.Len(t, pipeStmt.Segments, 2)
}

func TestFormatWithRedirect(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		with redirect { stdout: file("out.log", append=true) } {
			run("echo", "hi")
		}
	}`)
	require.Contains(t, out, "with redirect {")
	require.Contains(t, out, `file("out.log", append=true)`)
	wr := reparsed.Functions[0].Body[0].(*ast.WithRedirectStmt)
	require.True(t, wr.Redirects.Stdout[0].Append)
}

func TestFormatSudoCaptureAndAllowFail(t *testing.T) {
	out, reparsed := reformat(t, `func main() {
		let r = capture(sudo("systemctl", "restart", "x"), allow_fail=true)
	}`)
	require.Contains(t, out, "capture(sudo(")
	require.Contains(t, out, "allow_fail=true")

	let := reparsed.Functions[0].Body[0].(*ast.LetStmt)
	cap := let.Value.(*ast.CaptureExpr)
	require.True(t, cap.AllowFail)
	sudo := cap.Inner.(*ast.SudoExpr)
	require.Equal(t, []string{"systemctl", "restart", "x"}, exprStrings(sudo.Args))
}

func TestFormatInterpString(t *testing.T) {
	out, reparsed := reformat(t, `func main() { let n = "world"
		print($"hello {n}!")
	}`)
	require.Contains(t, out, `$"hello {n}!"`)
	print := reparsed.Functions[0].Body[1].(*ast.PrintStmt)
	interp := print.Value.(*ast.InterpString)
	require.Len(t, interp.Parts, 3)
}

func exprStrings(es []ast.Expression) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.(*ast.StringLit).Value
	}
	return out
}
