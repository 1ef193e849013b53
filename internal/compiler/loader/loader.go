// Package loader resolves an entry file's import graph into a single
// ast.Program with deterministic function ordering. It never re-parses a
// file already loaded, detects cycles via a visiting set, and keeps a
// parallel stack for the cycle diagnostic's "a -> b -> a" message.
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sh2c/sh2c/internal/compiler/ast"
	"github.com/sh2c/sh2c/internal/compiler/errors"
	"github.com/sh2c/sh2c/internal/compiler/parser"
	"github.com/sh2c/sh2c/internal/compiler/span"
)

var reservedNames = map[string]bool{
	"trim": true, "before": true, "after": true, "replace": true, "split": true,
}

// Loader walks an import graph starting from an entry file.
type Loader struct {
	loaded   map[string]*ast.File
	visiting map[string]bool
	stack    []string

	sourceMaps map[string]*span.SourceMap
	functions  []*ast.Function
	funcNames  map[string]string // name -> defining file, for collision diagnostics

	errs *errors.List
}

// New creates a Loader.
func New() *Loader {
	return &Loader{
		loaded:     map[string]*ast.File{},
		visiting:   map[string]bool{},
		sourceMaps: map[string]*span.SourceMap{},
		funcNames:  map[string]string{},
		errs:       &errors.List{},
	}
}

// Load reads entryPath and every file it transitively imports, returning the
// assembled Program. On the first error it stops and returns the
// accumulated diagnostics.
func (l *Loader) Load(entryPath string) (*ast.Program, *errors.List) {
	abs, err := l.canonicalize(entryPath)
	if err != nil {
		l.errs.Add(errors.New(errors.Import, emptySM(entryPath), span.Span{}, "%s", err.Error()))
		return nil, l.errs
	}

	if err := l.loadFile(abs); err != nil {
		return nil, l.errs
	}

	prog := &ast.Program{
		EntryFile:  abs,
		Functions:  l.functions,
		SourceMaps: l.sourceMaps,
	}
	paths := make([]string, 0, len(l.loaded))
	for p := range l.loaded {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		prog.Files = append(prog.Files, l.loaded[p])
	}

	if !hasMain(l.functions) {
		l.errs.Add(errors.New(errors.Import, l.sourceMaps[abs], span.Span{}, "program has no 'main' function"))
		return nil, l.errs
	}
	return prog, l.errs
}

func hasMain(fns []*ast.Function) bool {
	for _, f := range fns {
		if f.Name == "main" {
			return true
		}
	}
	return false
}

// canonicalize resolves a user-supplied path to an absolute, cleaned path,
// appending the default extension when missing.
func (l *Loader) canonicalize(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		return "", pathErr(p, "paths beginning with '~' are not expanded; pass an absolute or relative path instead")
	}
	if filepath.Ext(p) == "" {
		p += ".sh2"
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func pathErr(p, hint string) error {
	return &pathError{path: p, hint: hint}
}

type pathError struct {
	path string
	hint string
}

func (e *pathError) Error() string { return e.path + ": " + e.hint }

// loadFile reads, lexes, and parses one file, recurses into its imports,
// resolves that file's own qualified calls against its import aliases, and
// finally appends its functions to the global ordered list (post-order
// import-completion).
func (l *Loader) loadFile(absPath string) error {
	if _, ok := l.loaded[absPath]; ok {
		return nil // already fully loaded: re-entry is a no-op
	}
	if l.visiting[absPath] {
		l.reportCycle(absPath)
		return errCycle
	}

	l.visiting[absPath] = true
	l.stack = append(l.stack, absPath)
	defer func() {
		delete(l.visiting, absPath)
		l.stack = l.stack[:len(l.stack)-1]
	}()

	text, err := os.ReadFile(absPath)
	if err != nil {
		l.errs.Add(errors.New(errors.Import, emptySM(absPath), span.Span{}, "%s", errors.IOError("read", absPath, err).Error()))
		return err
	}

	sm := span.New(absPath, string(text))
	l.sourceMaps[absPath] = sm

	p := parser.New(sm)
	file, perrs := p.Parse()
	if perrs.HasErrors() {
		l.errs.Errors = append(l.errs.Errors, perrs.Errors...)
		return errParse
	}

	dir := filepath.Dir(absPath)
	aliasTargets := map[string]string{}
	for _, imp := range file.Imports {
		importPath := imp.Path
		if filepath.Ext(importPath) == "" {
			importPath += ".sh2"
		}
		resolved := filepath.Clean(filepath.Join(dir, importPath))
		if err := l.loadFile(resolved); err != nil {
			return err
		}
		if imp.Alias != "" {
			aliasTargets[imp.Alias] = resolved
		}
	}

	declared := map[string]map[string]bool{}
	for _, target := range aliasTargets {
		names := map[string]bool{}
		for _, fn := range l.loaded[target].Functions {
			names[fn.Name] = true
		}
		declared[target] = names
	}
	if !l.resolveQualifiedCalls(file, sm, aliasTargets, declared) {
		return errQualify
	}

	l.loaded[absPath] = file
	for _, fn := range file.Functions {
		if reservedNames[fn.Name] {
			l.errs.Add(errors.New(errors.Import, sm, fn.Span, "function name %q is reserved for a prelude helper", fn.Name))
			return errCollision
		}
		if prevFile, ok := l.funcNames[fn.Name]; ok {
			l.errs.Add(errors.New(errors.Import, sm, fn.Span, "function %q is already defined in %s", fn.Name, prevFile))
			return errCollision
		}
		l.funcNames[fn.Name] = absPath
		l.functions = append(l.functions, fn)
	}
	return nil
}

var (
	errCycle     = &sentinelErr{"import cycle"}
	errParse     = &sentinelErr{"parse error"}
	errCollision = &sentinelErr{"name collision"}
	errQualify   = &sentinelErr{"qualified call resolution"}
)

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }

// reportCycle formats the "a -> b -> a" message from the current DFS stack.
func (l *Loader) reportCycle(reentered string) {
	names := append(append([]string{}, l.stack...), reentered)
	for i := range names {
		base := filepath.Base(names[i])
		names[i] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	sm := l.sourceMaps[l.stack[0]]
	var sp span.Span
	if f, ok := l.loaded[l.stack[0]]; ok && len(f.Imports) > 0 {
		sp = f.Imports[0].Span
	}
	l.errs.Add(errors.New(errors.Import, sm, sp, "Import cycle detected: %s", strings.Join(names, " -> ")))
}

// emptySM returns a degenerate SourceMap so errors predating any read still
// have a File name to report against.
func emptySM(file string) *span.SourceMap { return span.New(file, "") }
