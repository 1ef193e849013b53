// Package formatter rebuilds canonical source text from a parsed ast.File.
// It walks the same node set codegen walks, but emits sh2 syntax instead of
// shell text — a fixed traversal over a known grammar rather than codegen's
// open-ended statement walk.
package formatter

import (
	"strings"
)

const indentUnit = "    "

func indent(n int) string { return strings.Repeat(indentUnit, n) }
