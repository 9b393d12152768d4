package core

import (
	"fmt"
	"sync"

	"multipoly/internal/config"
	"multipoly/internal/kb"
	"multipoly/internal/logging"
	"multipoly/internal/mangle"
)

// SelectBackend builds the knowledge store named by cfg.Backend. This is the
// only place that knows whether the mangle backend is available; everything
// above it works against kb.Store.
func SelectBackend(cfg config.KBConfig) (kb.Store, error) {
	switch cfg.Backend {
	case config.BackendMangle:
		store, err := newMangleStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("mangle backend unavailable: %w", err)
		}
		return store, nil

	case config.BackendAuto, "":
		store, err := newMangleStore(cfg)
		if err != nil {
			logging.KernelWarn("mangle backend unavailable, falling back to scan: %v", err)
			return kb.NewScanStore(), nil
		}
		return store, nil

	case config.BackendScan:
		return kb.NewScanStore(), nil

	case config.BackendOff:
		logging.KernelWarn("knowledge backend disabled: every query will return no data")
		return newUnavailableStore(), nil
	}

	return nil, fmt.Errorf("unknown backend %q (valid: %v)", cfg.Backend, config.ValidBackends)
}

func newMangleStore(cfg config.KBConfig) (*mangle.Store, error) {
	mcfg := mangle.DefaultConfig()
	mcfg.FactLimit = cfg.FactLimit
	return mangle.NewStore(mcfg)
}

// unavailableStore stands in when no backend is deployed. Adds are kept for
// diagnostics but never become queryable.
type unavailableStore struct {
	mu      sync.Mutex
	pending []kb.Triple
}

var _ kb.Store = (*unavailableStore)(nil)

func newUnavailableStore() *unavailableStore {
	return &unavailableStore{}
}

func (u *unavailableStore) Name() string { return config.BackendOff }

// Available implements kb.Availability.
func (u *unavailableStore) Available() bool { return false }

func (u *unavailableStore) Add(subject, predicate, object string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = append(u.pending, kb.Triple{Subject: subject, Predicate: predicate, Object: object})
	return nil
}

func (u *unavailableStore) LoadProgram(text string) int {
	return kb.LoadProgram(u, text)
}

func (u *unavailableStore) Query(kb.Pattern) []kb.Binding {
	return make([]kb.Binding, 0)
}

func (u *unavailableStore) Len() int { return 0 }

func (u *unavailableStore) Stats() kb.Stats {
	return kb.Stats{Backend: u.Name(), PredicateCounts: map[string]int{}}
}

// Pending returns the triples added while no backend was available.
func (u *unavailableStore) Pending() []kb.Triple {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]kb.Triple, len(u.pending))
	copy(out, u.pending)
	return out
}
