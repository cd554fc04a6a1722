// Package routetable implements the RouterTable from spec.md §3/§4.B: an
// immutable trie over `/`-separated path segments, built once from a
// ProjectConfig's ordered routes and never mutated afterward. The trie
// shape is modeled on the teacher router's radix matcher
// (_examples/rivaas-dev-rivaas/router/radix.go), simplified to the single
// concern this system needs: literal segments plus one `:param` child per
// node. Differently named params at the same position are rejected at
// construction time; overlapping literal and param patterns are accepted
// and resolved at match time by preferring the literal branch.
package routetable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scriptedge/scriptedge/internal/apperrors"
	"github.com/scriptedge/scriptedge/internal/config"
)

// errNoMatch signals a dead end during matchNode's descent: the caller
// backtracks to the parent's other branch (if any) instead of treating
// it as the final answer.
var errNoMatch = errors.New("routetable: no match")

// MethodRoute holds the handler name for each declared HTTP method at one
// path pattern. spec.md §3 requires at least one slot set; Table
// construction enforces that via RouteDecl.Entries already being
// non-empty.
type MethodRoute struct {
	handlers map[config.HTTPMethod]string
}

// Handler returns the handler name bound to method, and whether that slot
// is set.
func (m *MethodRoute) Handler(method config.HTTPMethod) (string, bool) {
	name, ok := m.handlers[method]
	return name, ok
}

// Match is the result of a successful RouterTable lookup.
type Match struct {
	HandlerName string
	Params      map[string]string
	Pattern     string
}

type node struct {
	literal     map[string]*node
	param       *node
	paramName   string
	methodRoute *MethodRoute
	pattern     string // the full pattern that terminates here, for error messages
}

// Table is the immutable RouterTable.
type Table struct {
	root *node
}

// New builds a Table from an ordered RouteTable, one MethodRoute per path
// pattern. A duplicate method within a single path, a repeated `:name`
// within a single pattern, or two patterns whose param names collide at
// the same trie position are all construction-time errors — never
// runtime ones, per spec.md §3's RouterTable invariant.
func New(routes config.RouteTable) (*Table, error) {
	t := &Table{root: &node{literal: map[string]*node{}}}

	for _, decl := range routes {
		mr := &MethodRoute{handlers: make(map[config.HTTPMethod]string, len(decl.Entries))}
		for _, entry := range decl.Entries {
			if _, dup := mr.handlers[entry.Method]; dup {
				return nil, fmt.Errorf("route %q: duplicate method %s", decl.Path, entry.Method)
			}
			mr.handlers[entry.Method] = entry.Handler
		}
		if err := t.insert(decl.Path, mr); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (t *Table) insert(pattern string, mr *MethodRoute) error {
	segs := segments(pattern)
	cur := t.root
	seenParams := make(map[string]bool)

	for _, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			if name == "" {
				return fmt.Errorf("route %q: empty parameter name", pattern)
			}
			if seenParams[name] {
				return fmt.Errorf("route %q: parameter %q repeated within one pattern", pattern, name)
			}
			seenParams[name] = true

			if cur.param == nil {
				cur.param = &node{literal: map[string]*node{}}
				cur.paramName = name
			} else if cur.paramName != name {
				return fmt.Errorf(
					"route %q: parameter name %q collides with %q already registered at the same position (%q)",
					pattern, name, cur.paramName, cur.param.pattern,
				)
			}
			cur = cur.param
			continue
		}

		next, ok := cur.literal[seg]
		if !ok {
			next = &node{literal: map[string]*node{}}
			cur.literal[seg] = next
		}
		cur = next
	}

	if cur.methodRoute != nil {
		// Same pattern declared twice: merge method slots, rejecting
		// duplicates exactly like two entries under one YAML key would be.
		for method, handler := range mr.handlers {
			if _, dup := cur.methodRoute.handlers[method]; dup {
				return fmt.Errorf("route %q: duplicate method %s", pattern, method)
			}
			cur.methodRoute.handlers[method] = handler
		}
		return nil
	}

	cur.methodRoute = mr
	cur.pattern = pattern
	return nil
}

// Match resolves method and path against the table. A path miss yields
// RoutePathNotFound; a path hit with an empty method slot yields
// RouteMethodNotAllowed.
func (t *Table) Match(method config.HTTPMethod, path string) (*Match, error) {
	segs := segments(path)

	cur, params, err := matchNode(t.root, segs)
	if err != nil {
		return nil, apperrors.RoutePathNotFound(path)
	}

	handler, ok := cur.methodRoute.Handler(method)
	if !ok {
		return nil, apperrors.RouteMethodNotAllowed(string(method))
	}

	return &Match{HandlerName: handler, Params: params, Pattern: cur.pattern}, nil
}

// matchNode descends the trie against segs, preferring a literal child
// over the param child at each level but backtracking to the param
// branch whenever the literal branch's continuation dead-ends further
// down, rather than committing to the first matching child. Without
// this, a literal subtree that matches the request's first segments but
// has no node for the remaining ones shadows a sibling param branch that
// would have matched the full path, even though both patterns were
// accepted as non-colliding at construction time.
func matchNode(cur *node, segs []string) (*node, map[string]string, error) {
	if len(segs) == 0 {
		if cur.methodRoute == nil {
			return nil, nil, errNoMatch
		}
		return cur, map[string]string{}, nil
	}

	head, rest := segs[0], segs[1:]

	if next, ok := cur.literal[head]; ok {
		if n, params, err := matchNode(next, rest); err == nil {
			return n, params, nil
		}
	}

	if cur.param != nil {
		if n, params, err := matchNode(cur.param, rest); err == nil {
			params[cur.paramName] = head
			return n, params, nil
		}
	}

	return nil, nil, errNoMatch
}
