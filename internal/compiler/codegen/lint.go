package codegen

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// lintPOSIX parses text with the POSIX dialect and reports any parse error
// or bash-only construct that slipped through the emitter.
func lintPOSIX(text string) []string {
	var msgs []string
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX), syntax.KeepComments(true))
	_, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		msgs = append(msgs, err.Error())
	}
	return msgs
}
