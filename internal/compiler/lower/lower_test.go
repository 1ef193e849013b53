package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/ir"
	"github.com/sh2c/sh2c/internal/compiler/parser"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

func lowerSource(t *testing.T, src string) *ir.Program {
	t.Helper()
	sm := span.New("t.sh2", src)
	p := parser.New(sm)
	file, perrs := p.Parse()
	require.False(t, perrs.HasErrors(), perrs.String())
	for _, fn := range file.Functions {
		fn.File = "t.sh2"
	}
	prog := &ast.Program{Files: []*ast.File{file}, Functions: file.Functions, EntryFile: "t.sh2"}
	sourceMaps := map[string]*span.SourceMap{"t.sh2": sm}
	out, errs := Lower(prog, sourceMaps)
	require.False(t, errs.HasErrors(), errs.String())
	return out
}

func firstFn(prog *ir.Program) *ir.Function { return prog.Functions[0] }

func TestLowerConcatViaPlus(t *testing.T) {
	prog := lowerSource(t, `func main() { let x = "a" + "b"; print(x) }`)
	let := firstFn(prog).Body[0].(*ir.Let)
	_, ok := let.Value.(ir.Concat)
	require.True(t, ok, "%T", let.Value)
}

func TestLowerAmpersandIsConcat(t *testing.T) {
	prog := lowerSource(t, `func main() { let x = "a" & "b"; print(x) }`)
	let := firstFn(prog).Body[0].(*ir.Let)
	_, ok := let.Value.(ir.Concat)
	require.True(t, ok, "%T", let.Value)
}

func TestLowerPlainArithStaysArith(t *testing.T) {
	prog := lowerSource(t, `func main() { let n = 1; let x = n + n; print(x) }`)
	let := firstFn(prog).Body[1].(*ir.Let)
	_, ok := let.Value.(ir.Arith)
	require.True(t, ok, "%T", let.Value)
}

func TestLowerArgStaticForLiteralIndex(t *testing.T) {
	prog := lowerSource(t, `func main() { let x = arg(1); print(x) }`)
	let := firstFn(prog).Body[0].(*ir.Let)
	got, ok := let.Value.(ir.ArgStatic)
	require.True(t, ok, "%T", let.Value)
	require.Equal(t, 1, got.Index)
}

func TestLowerArgDynamicForComputedIndex(t *testing.T) {
	prog := lowerSource(t, `func main() { let i = 1; let x = arg(i); print(x) }`)
	let := firstFn(prog).Body[1].(*ir.Let)
	_, ok := let.Value.(ir.ArgDynamic)
	require.True(t, ok, "%T", let.Value)
}

func TestLowerCaptureStatusFieldRewrite(t *testing.T) {
	prog := lowerSource(t, `func main() { let r = try_run("false"); print(r.status) }`)
	print := firstFn(prog).Body[1].(*ir.Print)
	got, ok := print.Value.(ir.AuxVar)
	require.True(t, ok, "%T", print.Value)
	require.Equal(t, "r__status", got.Name)
}

func TestLowerParseArgsFlagsFieldRouting(t *testing.T) {
	prog := lowerSource(t, `func main() { let a = parse_args("x", args()); print(a.flags) }`)
	print := firstFn(prog).Body[1].(*ir.Print)
	_, ok := print.Value.(ir.ArgsFlags)
	require.True(t, ok, "%T", print.Value)
}

func TestLowerSudoOptionOrderAndTrailer(t *testing.T) {
	prog := lowerSource(t, `func main() { sudo("id", user="bob", E=true) }`)
	run := firstFn(prog).Body[0].(*ir.Run)
	var flags []string
	for _, v := range run.Argv {
		s, ok := v.(ir.StringLit)
		require.True(t, ok)
		flags = append(flags, s.Value)
	}
	require.Equal(t, []string{"sudo", "-u", "bob", "-E", "--", "id"}, flags)
}

func TestLowerSudoUnknownOptionRejected(t *testing.T) {
	sm := span.New("t.sh2", `func main() { sudo("id", bogus=true) }`)
	p := parser.New(sm)
	file, perrs := p.Parse()
	require.False(t, perrs.HasErrors(), perrs.String())
	for _, fn := range file.Functions {
		fn.File = "t.sh2"
	}
	prog := &ast.Program{Files: []*ast.File{file}, Functions: file.Functions, EntryFile: "t.sh2"}
	_, errs := Lower(prog, map[string]*span.SourceMap{"t.sh2": sm})
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Errors[0].Message, "unknown sudo option")
}

func TestLowerHelperBuiltinsRouteToDedicatedIR(t *testing.T) {
	prog := lowerSource(t, `func main() { let h = home(); print(h) }`)
	let := firstFn(prog).Body[0].(*ir.Let)
	_, ok := let.Value.(ir.Home)
	require.True(t, ok, "%T", let.Value)
}
