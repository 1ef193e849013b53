package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ast"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.sh2", `func main() { print("hi") }`)

	l := New()
	prog, errs := l.Load(entry)
	require.False(t, errs.HasErrors(), errs.String())
	require.Len(t, prog.Functions, 1)
	require.Equal(t, "main", prog.Functions[0].Name)
}

func TestLoadWithImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.sh2", `func helper() { print("help") }`)
	entry := writeFile(t, dir, "main.sh2", `import "lib"
func main() { helper() }`)

	l := New()
	prog, errs := l.Load(entry)
	require.False(t, errs.HasErrors(), errs.String())
	require.Len(t, prog.Functions, 2)
	require.Equal(t, "helper", prog.Functions[0].Name)
	require.Equal(t, "main", prog.Functions[1].Name)
}

func TestDuplicateImportIsNoOp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sh2", `func a_fn() { print("a") }`)
	writeFile(t, dir, "b.sh2", `import "a"
func b_fn() { a_fn() }`)
	entry := writeFile(t, dir, "main.sh2", `import "a"
import "b"
func main() { a_fn(); b_fn() }`)

	l := New()
	prog, errs := l.Load(entry)
	require.False(t, errs.HasErrors(), errs.String())
	require.Len(t, prog.Functions, 3)
}

func TestImportCycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sh2", `import "b"
func a_fn() { print("a") }`)
	writeFile(t, dir, "b.sh2", `import "a"
func b_fn() { print("b") }`)
	entry := writeFile(t, dir, "main.sh2", `import "a"
func main() { a_fn() }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "Import cycle detected")
}

func TestReservedNameRejected(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.sh2", `func trim() { print("x") }
func main() { print("y") }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "reserved")
}

func TestMissingMainIsFatal(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.sh2", `func helper() { print("x") }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "main")
}

func TestDuplicateFunctionNameCollision(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.sh2", `func main() { print("lib") }`)
	entry := writeFile(t, dir, "main.sh2", `import "lib"
func main() { print("entry") }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "already defined")
}

func TestQualifiedCallResolvesToImportedFunction(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.sh2", `func bar() { print("bar") }`)
	entry := writeFile(t, dir, "main.sh2", `import "lib" as ns
func main() { ns.bar() }`)

	l := New()
	prog, errs := l.Load(entry)
	require.False(t, errs.HasErrors(), errs.String())
	main := prog.Functions[len(prog.Functions)-1]
	require.Equal(t, "main", main.Name)
	call, ok := main.Body[0].(*ast.CallStmt)
	require.True(t, ok)
	require.Equal(t, "bar", call.Name)
	require.Empty(t, call.Qualifier)
}

func TestQualifiedCallUnknownAliasIsRejected(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.sh2", `func main() { ns.bar() }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "unknown import alias")
}

func TestQualifiedCallUnknownFunctionIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.sh2", `func bar() { print("bar") }`)
	entry := writeFile(t, dir, "main.sh2", `import "lib" as ns
func main() { ns.missing() }`)

	l := New()
	_, errs := l.Load(entry)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, `unknown function "ns"."missing"`)
}

func TestQualifiedCallAndDirectCallCoexist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.sh2", `func bar() { print("bar") }`)
	entry := writeFile(t, dir, "main.sh2", `import "lib"
import "lib" as ns
func main() { bar(); ns.bar() }`)

	l := New()
	prog, errs := l.Load(entry)
	require.False(t, errs.HasErrors(), errs.String())
	require.Len(t, prog.Functions, 2)
}
