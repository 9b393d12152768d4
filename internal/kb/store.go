package kb

import (
	"fmt"
	"sync"
)

// Store is the contract every knowledge backend implements. Implementations
// must be safe for concurrent use: Add is atomic with respect to Query, and
// Query returns bindings in insertion order.
type Store interface {
	Adder

	// LoadProgram bulk-loads program text, skipping malformed lines.
	LoadProgram(text string) int

	// Query returns one binding per matching triple, in insertion order.
	// The result is empty, never nil, when nothing matches.
	Query(p Pattern) []Binding

	Len() int
	Stats() Stats

	// Name identifies the backend ("scan", "mangle", ...).
	Name() string
}

// Stats describes the content of a store.
type Stats struct {
	Backend         string         `json:"backend"`
	TotalFacts      int            `json:"total_facts"`
	PredicateCounts map[string]int `json:"predicate_counts"`
}

// Availability is implemented by stores that can stand in for a backend that
// is not deployed.
type Availability interface {
	Available() bool
}

// Available reports whether s is backed by a real knowledge backend. Stores
// that do not implement Availability are available.
func Available(s Store) bool {
	if a, ok := s.(Availability); ok {
		return a.Available()
	}
	return true
}

// QueryString parses text with ParsePattern and runs it against s.
func QueryString(s Store, text string) ([]Binding, error) {
	p, err := ParsePattern(text)
	if err != nil {
		return nil, err
	}
	return s.Query(p), nil
}

// ScanStore is the linear-scan backend: an append-only slice of triples
// guarded by a RWMutex. Every query walks the whole slice.
type ScanStore struct {
	mu      sync.RWMutex
	triples []Triple
}

var _ Store = (*ScanStore)(nil)

// NewScanStore creates an empty store.
func NewScanStore() *ScanStore {
	return &ScanStore{}
}

// Name implements Store.
func (s *ScanStore) Name() string { return "scan" }

// Add appends a triple. It never fails.
func (s *ScanStore) Add(subject, predicate, object string) error {
	s.mu.Lock()
	s.triples = append(s.triples, Triple{Subject: subject, Predicate: predicate, Object: object})
	s.mu.Unlock()
	return nil
}

// LoadProgram implements Store.
func (s *ScanStore) LoadProgram(text string) int {
	return LoadProgram(s, text)
}

// Query implements Store.
func (s *ScanStore) Query(p Pattern) []Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Binding, 0)
	for _, t := range s.triples {
		if b, ok := p.Match(t); ok {
			results = append(results, b)
		}
	}
	return results
}

// Triples returns a copy of the store content in insertion order.
func (s *ScanStore) Triples() []Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Triple, len(s.triples))
	copy(out, s.triples)
	return out
}

// Len implements Store.
func (s *ScanStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.triples)
}

// Stats implements Store.
func (s *ScanStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, t := range s.triples {
		counts[t.Predicate]++
	}
	return Stats{
		Backend:         s.Name(),
		TotalFacts:      len(s.triples),
		PredicateCounts: counts,
	}
}

func (s *ScanStore) String() string {
	return fmt.Sprintf("ScanStore(%d facts)", s.Len())
}
