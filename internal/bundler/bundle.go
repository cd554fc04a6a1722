package bundler

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	importDefaultAndNamed = regexp.MustCompile(`import\s+(\w+)\s*,\s*\{([^}]*)\}\s*from\s*["']([^"']+)["']\s*;?`)
	importNamespace       = regexp.MustCompile(`import\s*\*\s*as\s+(\w+)\s*from\s*["']([^"']+)["']\s*;?`)
	importNamed           = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*["']([^"']+)["']\s*;?`)
	importDefault         = regexp.MustCompile(`import\s+(\w+)\s*from\s*["']([^"']+)["']\s*;?`)
	importSideEffect      = regexp.MustCompile(`import\s*["']([^"']+)["']\s*;?`)

	exportDefaultFunc = regexp.MustCompile(`export\s+default\s+function\s+(\w+)`)
	exportDefaultExpr = regexp.MustCompile(`export\s+default\s+(\w+)\s*;`)
	exportFunc        = regexp.MustCompile(`export\s+function\s+(\w+)`)
	exportDecl        = regexp.MustCompile(`export\s+(const|let|var)\s+(\w+)`)
	exportList        = regexp.MustCompile(`export\s*\{([^}]*)\}\s*;?`)

	asyncKeyword = regexp.MustCompile(`\basync\b\s*`)
	awaitKeyword = regexp.MustCompile(`\bawait\b\s*`)
)

// Bundle resolves entry through loader and every module it transitively
// imports, producing one expression of the shape spec.md §4.A names:
// "(function(){ ...module bodies... return {default:main, h1:...}; })();".
//
// Cycles (standard ESM semantics per spec.md §9) are handled without a
// topological sort: every module is compiled into a named function
// declaration, which JS hoists regardless of emission order, and each
// such function marks itself done and publishes its (initially empty)
// exports object *before* running its body, so a dependency cycle sees a
// live, partially-filled reference rather than recursing forever.
func Bundle(entry string, loader ModuleLoader) (string, error) {
	b := &builder{loader: loader, index: map[string]int{}}

	root, err := loader.Resolve("", entry)
	if err != nil {
		return "", err
	}
	idx, err := b.visit(root)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("(function(){")
	for _, m := range b.modules {
		sb.WriteString(m)
	}
	fmt.Fprintf(&sb, "return __mod%d();", idx)
	sb.WriteString("})();")

	return stripAsyncAwait(sb.String()), nil
}

type builder struct {
	loader  ModuleLoader
	index   map[string]int
	modules []string
}

func (b *builder) visit(path string) (int, error) {
	if idx, ok := b.index[path]; ok {
		return idx, nil
	}
	idx := len(b.modules)
	b.index[path] = idx
	b.modules = append(b.modules, "") // reserved slot; cycles resolve against this index

	src, err := b.loader.Load(path)
	if err != nil {
		return 0, err
	}
	// async/await are stripped before the export rewrite so that
	// "export async function" matches the same patterns as "export function".
	body, err := b.transform(path, stripAsyncAwait(src))
	if err != nil {
		return 0, err
	}

	b.modules[idx] = fmt.Sprintf(
		"function __mod%d(){if(__mod%d.done)return __mod%d.exports;__mod%d.done=true;var __exports={};__mod%d.exports=__exports;%s\nreturn __exports;}",
		idx, idx, idx, idx, idx, body,
	)
	return idx, nil
}

// binding captures one half of an "x as y" clause; which side is the
// local identifier and which is the published/external name depends on
// whether it came from an import (external as local) or an export
// (local as external).
type binding struct {
	left, right string
}

func parseBindingList(list string) []binding {
	var out []binding
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, " as "); i >= 0 {
			left := strings.TrimSpace(part[:i])
			right := strings.TrimSpace(part[i+4:])
			out = append(out, binding{left, right})
			continue
		}
		out = append(out, binding{part, part})
	}
	return out
}

// transform rewrites modPath's import/export statements into plain var
// bindings against the dependency's lazily-constructed exports object.
// Bindings are a one-time snapshot of the dependency's property at
// import-resolution time, not a live getter: within a dependency cycle,
// the side of the cycle entered first can observe the other's exports
// before they are assigned. Real function-to-function cycles resolve
// correctly in practice because function declarations are hoisted and
// typically not called until after the whole graph finishes
// initializing; a cycle that reads an imported value at module-init
// time (outside of a function body) is the one shape this does not
// support.
func (b *builder) transform(modPath, src string) (string, error) {
	var prelude, exports []string
	depCounter := 0
	var firstErr error

	resolveDep := func(specifier string) string {
		if firstErr != nil {
			return ""
		}
		depPath, err := b.loader.Resolve(modPath, specifier)
		if err != nil {
			firstErr = err
			return ""
		}
		depIdx, err := b.visit(depPath)
		if err != nil {
			firstErr = err
			return ""
		}
		depCounter++
		depVar := fmt.Sprintf("__dep%d_%d", depCounter, depIdx)
		prelude = append(prelude, fmt.Sprintf("var %s=__mod%d();", depVar, depIdx))
		return depVar
	}

	src = importDefaultAndNamed.ReplaceAllStringFunc(src, func(m string) string {
		g := importDefaultAndNamed.FindStringSubmatch(m)
		depVar := resolveDep(g[3])
		if depVar == "" {
			return ""
		}
		prelude = append(prelude, fmt.Sprintf("var %s=%s.default;", g[1], depVar))
		for _, bd := range parseBindingList(g[2]) {
			prelude = append(prelude, fmt.Sprintf("var %s=%s.%s;", bd.right, depVar, bd.left))
		}
		return ""
	})

	src = importNamespace.ReplaceAllStringFunc(src, func(m string) string {
		g := importNamespace.FindStringSubmatch(m)
		depVar := resolveDep(g[2])
		if depVar == "" {
			return ""
		}
		prelude = append(prelude, fmt.Sprintf("var %s=%s;", g[1], depVar))
		return ""
	})

	src = importNamed.ReplaceAllStringFunc(src, func(m string) string {
		g := importNamed.FindStringSubmatch(m)
		depVar := resolveDep(g[2])
		if depVar == "" {
			return ""
		}
		for _, bd := range parseBindingList(g[1]) {
			prelude = append(prelude, fmt.Sprintf("var %s=%s.%s;", bd.right, depVar, bd.left))
		}
		return ""
	})

	src = importDefault.ReplaceAllStringFunc(src, func(m string) string {
		g := importDefault.FindStringSubmatch(m)
		depVar := resolveDep(g[2])
		if depVar == "" {
			return ""
		}
		prelude = append(prelude, fmt.Sprintf("var %s=%s.default;", g[1], depVar))
		return ""
	})

	src = importSideEffect.ReplaceAllStringFunc(src, func(m string) string {
		g := importSideEffect.FindStringSubmatch(m)
		depVar := resolveDep(g[1])
		if depVar == "" {
			return ""
		}
		return ""
	})

	if firstErr != nil {
		return "", firstErr
	}

	src = exportDefaultFunc.ReplaceAllStringFunc(src, func(m string) string {
		g := exportDefaultFunc.FindStringSubmatch(m)
		exports = append(exports, fmt.Sprintf("__exports.default=%s;", g[1]))
		return "function " + g[1]
	})

	src = exportDefaultExpr.ReplaceAllStringFunc(src, func(m string) string {
		g := exportDefaultExpr.FindStringSubmatch(m)
		exports = append(exports, fmt.Sprintf("__exports.default=%s;", g[1]))
		return ""
	})

	src = exportFunc.ReplaceAllStringFunc(src, func(m string) string {
		g := exportFunc.FindStringSubmatch(m)
		exports = append(exports, fmt.Sprintf("__exports.%s=%s;", g[1], g[1]))
		return "function " + g[1]
	})

	src = exportDecl.ReplaceAllStringFunc(src, func(m string) string {
		g := exportDecl.FindStringSubmatch(m)
		exports = append(exports, fmt.Sprintf("__exports.%s=%s;", g[2], g[2]))
		return g[1] + " " + g[2]
	})

	src = exportList.ReplaceAllStringFunc(src, func(m string) string {
		g := exportList.FindStringSubmatch(m)
		for _, bd := range parseBindingList(g[1]) {
			exports = append(exports, fmt.Sprintf("__exports.%s=%s;", bd.right, bd.left))
		}
		return ""
	})

	var out strings.Builder
	for _, p := range prelude {
		out.WriteString(p)
	}
	out.WriteString(src)
	for _, e := range exports {
		out.WriteString(e)
	}
	return out.String(), nil
}

func stripAsyncAwait(src string) string {
	src = asyncKeyword.ReplaceAllString(src, "")
	src = awaitKeyword.ReplaceAllString(src, "")
	return src
}
