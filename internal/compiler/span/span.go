// Package span implements source spans, the SourceMap that resolves byte
// offsets to line/column, and the diagnostic renderer shared by every
// compiler stage.
package span

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/width"
)

// Span is a half-open byte interval [Start, End) into a single source file.
type Span struct {
	Start int
	End   int
}

// Merge returns the smallest span covering both a and b.
func Merge(a, b Span) Span {
	s := Span{Start: a.Start, End: a.End}
	if b.Start < s.Start {
		s.Start = b.Start
	}
	if b.End > s.End {
		s.End = b.End
	}
	return s
}

// Len reports the byte length of the span, never negative.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Position is a resolved (line, column) location, both 1-based.
type Position struct {
	Line   int
	Column int
}

// SourceMap owns the text of one source file and its line-start index.
type SourceMap struct {
	File       string
	Text       string
	lineStarts []int
}

// New builds a SourceMap for the given file name and contents.
func New(file, text string) *SourceMap {
	sm := &SourceMap{File: file, Text: text}
	sm.lineStarts = []int{0}
	for i, r := range text {
		if r == '\n' {
			sm.lineStarts = append(sm.lineStarts, i+1)
		}
	}
	return sm
}

// LineCol resolves a byte offset to a 1-based (line, column) pair via binary
// search over the line-start index.
func (sm *SourceMap) LineCol(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(sm.Text) {
		offset = len(sm.Text)
	}
	i := sort.Search(len(sm.lineStarts), func(i int) bool {
		return sm.lineStarts[i] > offset
	})
	line := i // lineStarts[0] is line 1's start, so i itself is the 1-based line count before adjustment
	lineStart := sm.lineStarts[i-1]
	return Position{Line: line, Column: offset - lineStart + 1}
}

// LineText returns the full text of the 1-based line, without its newline.
func (sm *SourceMap) LineText(line int) string {
	if line < 1 || line > len(sm.lineStarts) {
		return ""
	}
	start := sm.lineStarts[line-1]
	end := len(sm.Text)
	if line < len(sm.lineStarts) {
		end = sm.lineStarts[line] - 1
	}
	if end < start {
		end = start
	}
	return strings.TrimRight(sm.Text[start:end], "\r")
}

// FormatDiagnostic renders msg and the source line with a caret run beneath the span,
// following this fixed layout:
//
//	error: <msg>
//	--> <file>:<line>:<col>
//	 |
//	 | <source line>
//	 | <col-1 spaces><span-length or 1 caret(s)>
func FormatDiagnostic(sm *SourceMap, msg string, sp Span) string {
	start := sm.LineCol(sp.Start)
	line := sm.LineText(start.Line)

	caretLen := sp.End - sp.Start
	if caretLen < 1 {
		caretLen = 1
	}

	padWidth := displayWidth(line, start.Column-1)
	caretWidth := displayWidth(line[min(start.Column-1, len(line)):], caretLen)
	if caretWidth < caretLen {
		caretWidth = caretLen
	}

	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", msg)
	fmt.Fprintf(&b, "--> %s:%d:%d\n", sm.File, start.Line, start.Column)
	b.WriteString(" |\n")
	fmt.Fprintf(&b, " | %s\n", line)
	fmt.Fprintf(&b, " | %s%s\n", strings.Repeat(" ", padWidth), strings.Repeat("^", caretWidth))
	return b.String()
}

// displayWidth measures the on-screen column width of the first n bytes of s,
// counting East-Asian-wide runes as two columns so caret runs stay aligned
// under multi-byte snippets.
func displayWidth(s string, n int) int {
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	total := 0
	for _, r := range s[:n] {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
