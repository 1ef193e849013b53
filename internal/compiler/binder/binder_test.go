package binder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/parser"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

// bindSource parses src as a single-file program (no loader involved) and
// runs the binder over it.
func bindSource(t *testing.T, src string) *errors.List {
	t.Helper()
	sm := span.New("t.sh2", src)
	p := parser.New(sm)
	file, perrs := p.Parse()
	require.False(t, perrs.HasErrors(), perrs.String())

	prog := &ast.Program{
		Files:      []*ast.File{file},
		Functions:  file.Functions,
		EntryFile:  "t.sh2",
		SourceMaps: map[string]*span.SourceMap{"t.sh2": sm},
	}
	for _, fn := range prog.Functions {
		fn.File = "t.sh2"
	}
	return Bind(prog, prog.SourceMaps)
}

func TestUndeclaredVariableRejected(t *testing.T) {
	errs := bindSource(t, `func main() { print(x) }`)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "not declared")
}

func TestLetThenUseOK(t *testing.T) {
	errs := bindSource(t, `func main() { let x = "a"; print(x) }`)
	require.False(t, errs.HasErrors(), errs.String())
}

func TestSetWithoutLetRejected(t *testing.T) {
	errs := bindSource(t, `func main() { set x = "a" }`)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "let")
}

func TestIfWithoutElseDoesNotLeakBinding(t *testing.T) {
	errs := bindSource(t, `func main() { if true { let x = 1 } print(x) }`)
	require.True(t, errs.HasErrors())
}

func TestIfElseBothBranchesBindOK(t *testing.T) {
	errs := bindSource(t, `func main() { if true { let x = 1 } else { let x = 2 } print(x) }`)
	require.False(t, errs.HasErrors(), errs.String())
}

func TestRedeclarationInSameScopeRejected(t *testing.T) {
	errs := bindSource(t, `func main() { let x = 1; let x = 2 }`)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "already declared")
}

func TestForLoopVarBoundAfterLoop(t *testing.T) {
	errs := bindSource(t, `func main() { for i in [1, 2, 3] { print(i) } print(i) }`)
	require.False(t, errs.HasErrors(), errs.String())
}

func TestTryRunOutsideLetRejected(t *testing.T) {
	errs := bindSource(t, `func main() { print(try_run("false")) }`)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "try_run")
}

func TestTryRunAsLetRHSOK(t *testing.T) {
	errs := bindSource(t, `func main() { let r = try_run("false"); print(r) }`)
	require.False(t, errs.HasErrors(), errs.String())
}

func TestWriteFileAppendMustBeLiteral(t *testing.T) {
	errs := bindSource(t, `func main() { let x = true; write_file("a", "b", x) }`)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "boolean literal")
}

func TestCaseMergeWithoutWildcardRequiresPreState(t *testing.T) {
	errs := bindSource(t, `func main() { let s = "a"; case s { "a": { let y = 1 } } print(y) }`)
	require.True(t, errs.HasErrors())
}
