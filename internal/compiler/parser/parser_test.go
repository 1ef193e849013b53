package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

func TestParseInterpStringHole(t *testing.T) {
	sm := span.New("t.sh2", `func main() { print($"hello {name}!") }`)
	p := New(sm)
	file, errs := p.Parse()
	require.False(t, errs.HasErrors(), errs.String())
	require.Len(t, file.Functions, 1)
	require.Len(t, file.Functions[0].Body, 1)
	pr, ok := file.Functions[0].Body[0].(*ast.PrintStmt)
	require.True(t, ok, "expected a print statement, got %T", file.Functions[0].Body[0])
	require.False(t, pr.Err)
	interp, ok := pr.Value.(*ast.InterpString)
	require.True(t, ok, "expected an interpolated string, got %T", pr.Value)
	require.Len(t, interp.Parts, 3)
}

func TestParseInterpStringWithEmbeddedStringLiteralIsRejected(t *testing.T) {
	sm := span.New("t.sh2", `func main() { print($"X: {"y"}") }`)
	p := New(sm)
	_, errs := p.Parse()
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "String literals inside interpolation holes are not supported yet")
}

func TestParseQualifiedCallStatement(t *testing.T) {
	sm := span.New("t.sh2", `import "lib" as ns
func main() { ns.bar(1) }`)
	p := New(sm)
	file, errs := p.Parse()
	require.False(t, errs.HasErrors(), errs.String())
	call, ok := file.Functions[0].Body[0].(*ast.CallStmt)
	require.True(t, ok, "expected a call statement, got %T", file.Functions[0].Body[0])
	require.Equal(t, "ns", call.Qualifier)
	require.Equal(t, "bar", call.Name)
	require.Len(t, call.Args, 1)
}

func TestParseQualifiedCallExpression(t *testing.T) {
	sm := span.New("t.sh2", `import "lib" as ns
func main() { let x = ns.bar(1) }`)
	p := New(sm)
	file, errs := p.Parse()
	require.False(t, errs.HasErrors(), errs.String())
	let, ok := file.Functions[0].Body[0].(*ast.LetStmt)
	require.True(t, ok, "expected a let statement, got %T", file.Functions[0].Body[0])
	call, ok := let.Value.(*ast.CallExpr)
	require.True(t, ok, "expected a call expression, got %T", let.Value)
	require.Equal(t, "ns", call.Qualifier)
	require.Equal(t, "bar", call.Name)
}

func TestParseFieldAccessStillWorksWithoutCall(t *testing.T) {
	sm := span.New("t.sh2", `func main() { let x = r.status }`)
	p := New(sm)
	file, errs := p.Parse()
	require.False(t, errs.HasErrors(), errs.String())
	let, ok := file.Functions[0].Body[0].(*ast.LetStmt)
	require.True(t, ok, "expected a let statement, got %T", file.Functions[0].Body[0])
	field, ok := let.Value.(*ast.FieldExpr)
	require.True(t, ok, "expected a field expression, got %T", let.Value)
	require.Equal(t, "status", field.Name)
}
