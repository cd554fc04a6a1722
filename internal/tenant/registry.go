package tenant

import (
	"net"
	"sync"

	"github.com/scriptedge/scriptedge/internal/apperrors"
)

// Registry is the concurrent host → Swappable map from spec.md §3/§4.D.
// It is backed by sync.Map, the idiomatic choice for a cache that is
// read far more often than written and whose keys are mostly disjoint
// across goroutines — exactly sync.Map's documented sweet spot, and the
// same container the teacher reaches for at its own read-mostly,
// rare-write boundaries (e.g. router/router.go's versionCache).
type Registry struct {
	hosts sync.Map // string -> *Swappable
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or replaces the Swappable for host. Registration is rare
// and never blocks concurrent Resolve calls.
func (r *Registry) Register(host string, s *Swappable) {
	r.hosts.Store(host, s)
}

// Resolve strips any ":port" suffix from host (spec.md §4.D) and looks up
// the bare host's Swappable.
func (r *Registry) Resolve(host string) (*Swappable, error) {
	bare := stripPort(host)
	v, ok := r.hosts.Load(bare)
	if !ok {
		return nil, apperrors.HostNotFound(bare)
	}
	return v.(*Swappable), nil
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
