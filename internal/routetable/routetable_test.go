package routetable

import (
	"testing"

	"github.com/scriptedge/scriptedge/internal/apperrors"
	"github.com/scriptedge/scriptedge/internal/config"
)

func mustConfig(t *testing.T, yamlSrc string) config.RouteTable {
	t.Helper()
	cfg, err := config.Parse([]byte(yamlSrc))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg.Routes
}

const fixtureYAML = `
name: fixture
routes:
  /api/hello/:id:
    - method: GET
      handler: hello1
    - method: POST
      handler: hello2
  /api/:name/:id:
    - method: GET
      handler: hello3
    - method: POST
      handler: hello4
`

func TestMatchBindsParams(t *testing.T) {
	table, err := New(mustConfig(t, fixtureYAML))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m, err := table.Match(config.MethodGET, "/api/hello/1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.HandlerName != "hello1" || m.Params["id"] != "1" {
		t.Fatalf("unexpected match: %+v", m)
	}

	m, err = table.Match(config.MethodPOST, "/api/world/3")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.HandlerName != "hello4" || m.Params["name"] != "world" || m.Params["id"] != "3" {
		t.Fatalf("unexpected match: %+v", m)
	}
}

const crossLevelYAML = `
name: fixture
routes:
  /static/foo:
    - method: GET
      handler: staticFoo
  /:type/other:
    - method: GET
      handler: typeOther
`

// TestMatchBacktracksAcrossTrieLevels covers a literal child and a param
// child at the *root*, where the literal subtree ("static") has no node
// for the second segment the request asks for, so matching must
// backtrack to the root's param branch instead of stopping at the first
// dead-end reached via the literal child.
func TestMatchBacktracksAcrossTrieLevels(t *testing.T) {
	table, err := New(mustConfig(t, crossLevelYAML))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m, err := table.Match(config.MethodGET, "/static/other")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.HandlerName != "typeOther" || m.Params["type"] != "static" {
		t.Fatalf("unexpected match: %+v", m)
	}

	m, err = table.Match(config.MethodGET, "/static/foo")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.HandlerName != "staticFoo" {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestMatchMethodNotAllowed(t *testing.T) {
	table, err := New(mustConfig(t, fixtureYAML))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = table.Match(config.MethodDELETE, "/api/hello/1")
	if apperrors.KindFor(err) != apperrors.KindRouteMethodNotAllow {
		t.Fatalf("expected RouteMethodNotAllowed, got %v", err)
	}
}

func TestMatchPathNotFound(t *testing.T) {
	table, err := New(mustConfig(t, fixtureYAML))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = table.Match(config.MethodGET, "/nope")
	if apperrors.KindFor(err) != apperrors.KindRoutePathNotFound {
		t.Fatalf("expected RoutePathNotFound, got %v", err)
	}
}

func TestNewRejectsParamNameCollision(t *testing.T) {
	const clashing = `
name: fixture
routes:
  /api/:name/x:
    - method: GET
      handler: a
  /api/:other/y:
    - method: GET
      handler: b
`
	if _, err := New(mustConfig(t, clashing)); err == nil {
		t.Fatal("expected error for colliding param names at the same trie position")
	}
}

func TestNewRejectsRepeatedParamInOnePattern(t *testing.T) {
	const repeated = `
name: fixture
routes:
  /api/:id/:id:
    - method: GET
      handler: a
`
	if _, err := New(mustConfig(t, repeated)); err == nil {
		t.Fatal("expected error for repeated :id within one pattern")
	}
}
