// Package bundler implements the Bundler from spec.md §4.A: it collapses
// a multi-file ES-module project into one self-invoking script
// expression evaluating to an object of handler functions, grounded on
// original_source/bundler/src/lib.rs's run_bundle/ModuleLoader contract
// (load/resolve split from the bundling algorithm, so tests can swap in
// an in-memory loader instead of touching a filesystem).
//
// Import/export rewriting here is regex-based rather than a real parser:
// the pack carries no Go ESM/TS parser, and a hand-rolled recursive
// descent parser for the whole ES module grammar is out of proportion to
// what a handler bundle needs. The patterns below cover the statement
// shapes the scaffolded project templates and this module's tests
// produce (import/export default, named, namespace, list); anything
// stranger is a documented limitation, not silently mishandled — unknown
// specifiers fail loudly at Resolve.
package bundler

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ModuleLoader resolves specifiers relative to a base module and loads
// module source text, mirroring original_source/bundler/src/lib.rs's
// ModuleLoader trait.
type ModuleLoader interface {
	Resolve(base, specifier string) (string, error)
	Load(path string) (string, error)
}

// FSLoader resolves specifiers against files on disk, trying the
// extensions in order and falling back to directory index files.
type FSLoader struct {
	Root       string
	Extensions []string
}

// NewFSLoader returns an FSLoader rooted at dir with the default
// extension search order used by the project templates: .ts, .js, .mjs.
func NewFSLoader(dir string) *FSLoader {
	return &FSLoader{Root: dir, Extensions: []string{".ts", ".js", ".mjs"}}
}

func (l *FSLoader) Resolve(base, specifier string) (string, error) {
	dir := l.Root
	if base != "" {
		dir = filepath.Dir(base)
	}
	candidate := specifier
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(dir, specifier)
	}
	candidate = filepath.Clean(candidate)

	if ext := filepath.Ext(candidate); ext != "" {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	for _, ext := range l.Extensions {
		if p := candidate + ext; fileExists(p) {
			return p, nil
		}
	}
	for _, ext := range l.Extensions {
		if p := filepath.Join(candidate, "index"+ext); fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("bundler: cannot resolve %q from %q", specifier, base)
}

func (l *FSLoader) Load(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("bundler: loading %q: %w", p, err)
	}
	return string(data), nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// MapLoader is an in-memory ModuleLoader keyed by canonical, slash-separated
// module path, used by tests.
type MapLoader map[string]string

func (m MapLoader) Resolve(base, specifier string) (string, error) {
	candidate := specifier
	if base != "" && (strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")) {
		candidate = path.Join(path.Dir(base), specifier)
	}
	tries := []string{candidate, candidate + ".ts", candidate + ".js"}
	for _, c := range tries {
		if _, ok := m[c]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("bundler: cannot resolve %q from %q", specifier, base)
}

func (m MapLoader) Load(p string) (string, error) {
	src, ok := m[p]
	if !ok {
		return "", fmt.Errorf("bundler: no source registered for %q", p)
	}
	return src, nil
}
