package formatter

import (
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ast"
)

// Format renders file's imports and functions back to canonical sh2 source
// text. The output re-parses to an AST equal to the input (modulo spans);
// it is the formatter's only correctness contract, mirrored by
// formatter_test.go's round-trip checks.
func Format(file *ast.File) string {
	var b strings.Builder

	for _, imp := range file.Imports {
		b.WriteString(formatImport(imp))
		b.WriteByte('\n')
	}
	if len(file.Imports) > 0 && len(file.Functions) > 0 {
		b.WriteByte('\n')
	}

	for i, fn := range file.Functions {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, line := range formatFunction(fn) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func formatImport(imp *ast.Import) string {
	s := `import "` + escapeString(imp.Path) + `"`
	if imp.Alias != "" {
		s += " as " + imp.Alias
	}
	return s
}

func formatFunction(fn *ast.Function) []string {
	lines := []string{"func " + fn.Name + "(" + strings.Join(fn.Params, ", ") + ") {"}
	lines = append(lines, formatBlock(fn.Body, 1)...)
	lines = append(lines, "}")
	return lines
}

// formatBlock renders stmts at the given indent depth, one or more lines
// per statement.
func formatBlock(stmts []ast.Statement, depth int) []string {
	var lines []string
	for _, s := range stmts {
		lines = append(lines, formatStmt(s, depth)...)
	}
	return lines
}
