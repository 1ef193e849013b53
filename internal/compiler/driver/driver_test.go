package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/codegen"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunMissingFileReturnsIOError(t *testing.T) {
	res := Run(filepath.Join(t.TempDir(), "nope.sh2"), Options{Target: codegen.Bash})
	require.Equal(t, ExitIOError, res.Code)
}

func TestRunHappyPathProducesScript(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main() { print("hello") }`)

	res := Run(entry, Options{Target: codegen.Bash})
	require.Equal(t, ExitOK, res.Code)
	require.Contains(t, res.Text, "#!/usr/bin/env bash")
	require.Contains(t, res.Text, "'hello'")
}

func TestRunCheckModeDiscardsText(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main() { print("hello") }`)

	res := Run(entry, Options{Target: codegen.Bash, Mode: ModeCheck})
	require.Equal(t, ExitOK, res.Code)
	require.Empty(t, res.Text)
}

func TestRunUndeclaredVarIsCompileError(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main() { print(x) }`)

	res := Run(entry, Options{Target: codegen.Bash})
	require.Equal(t, ExitCompile, res.Code)
}

func TestRunWritesOutputFileWithChmodX(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main() { print("hi") }`)
	out := filepath.Join(dir, "main.sh")

	res := Run(entry, Options{Target: codegen.Bash, OutPath: out, ChmodX: true})
	require.Equal(t, ExitOK, res.Code)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestRunFmtModeReturnsCanonicalSource(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main(){let x=1+2*3
print(x)}`)

	res := Run(entry, Options{Target: codegen.Bash, Mode: ModeFmt})
	require.Equal(t, ExitOK, res.Code)
	require.Contains(t, res.Text, "func main() {")
	require.Contains(t, res.Text, "let x = 1 + 2 * 3")
}

func TestRunEmitIrModeReturnsIrDump(t *testing.T) {
	dir := t.TempDir()
	entry := writeTemp(t, dir, "main.sh2", `func main() { print("hi") }`)

	res := Run(entry, Options{Target: codegen.Bash, Mode: ModeEmitIr})
	require.Equal(t, ExitOK, res.Code)
	require.Contains(t, res.Text, "func main")
}
