package tenant

import (
	"sync"
	"testing"

	"github.com/scriptedge/scriptedge/internal/apperrors"
	"github.com/scriptedge/scriptedge/internal/config"
)

const routesA = `
name: a
routes:
  /hello:
    - method: GET
      handler: h1
`

const routesB = `
name: b
routes:
  /hello:
    - method: GET
      handler: h2
`

func routesFromYAML(t *testing.T, src string) config.RouteTable {
	t.Helper()
	cfg, err := config.Parse([]byte(src))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg.Routes
}

func TestSwapIsAtomicAcrossConcurrentReaders(t *testing.T) {
	s, err := New("code-a", routesFromYAML(t, routesA))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				inner := s.Load()
				// A loaded snapshot's code and table must always agree:
				// code-a pairs only with h1, code-b only with h2.
				m, err := inner.Table.Match(config.MethodGET, "/hello")
				if err != nil {
					continue
				}
				if inner.Code == "code-a" && m.HandlerName != "h1" {
					t.Errorf("torn snapshot: code-a paired with handler %q", m.HandlerName)
				}
				if inner.Code == "code-b" && m.HandlerName != "h2" {
					t.Errorf("torn snapshot: code-b paired with handler %q", m.HandlerName)
				}
			}
		}()
	}

	if err := s.Swap("code-b", routesFromYAML(t, routesB)); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	close(stop)
	wg.Wait()

	final := s.Load()
	if final.Code != "code-b" {
		t.Fatalf("Load after swap returned stale code %q", final.Code)
	}
}

func TestRegistryStripsPort(t *testing.T) {
	reg := NewRegistry()
	s, err := New("code", routesFromYAML(t, routesA))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg.Register("example.com", s)

	got, err := reg.Resolve("example.com:8080")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != s {
		t.Fatal("Resolve returned a different Swappable")
	}
}

func TestRegistryMissingHost(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("other.example")
	if apperrors.KindFor(err) != apperrors.KindHostNotFound {
		t.Fatalf("expected HostNotFound, got %v", err)
	}
}
