// Package mangle provides the symbolic knowledge backend built on Google Mangle.
// Triples are stored as atoms of a single declared relation
//
//	triple(Seq, Subject, Predicate, Object)
//
// in a Mangle fact store. Seq is a per-store sequence number: it keeps
// duplicate triples distinct (Mangle stores are sets) and restores insertion
// order, which the Mangle store does not preserve, when results are returned.
package mangle

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"multipoly/internal/kb"
	"multipoly/internal/logging"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

const (
	triplePredicate = "triple"
	tripleSchema    = `Decl triple(Seq, Subject, Predicate, Object).`
)

// ErrFactLimit is returned by Add once the configured fact limit is reached.
var ErrFactLimit = errors.New("fact limit exceeded")

// Config holds Mangle backend configuration.
type Config struct {
	FactLimit int `json:"fact_limit" yaml:"fact_limit"` // 0 = unlimited
}

// DefaultConfig returns production defaults: no fact limit.
func DefaultConfig() Config {
	return Config{}
}

// Store is a kb.Store backed by a Mangle fact store.
type Store struct {
	config Config

	mu              sync.RWMutex
	store           factstore.ConcurrentFactStore
	sym             ast.PredicateSym
	seq             int64
	factCount       int
	predicateCounts map[string]int
	factLimitWarned bool
}

var _ kb.Store = (*Store)(nil)

// NewStore compiles the triple schema and creates an empty store.
func NewStore(cfg Config) (*Store, error) {
	unit, err := parse.Unit(strings.NewReader(tripleSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse triple schema: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze triple schema: %w", err)
	}

	var sym ast.PredicateSym
	found := false
	for declared := range programInfo.Decls {
		if declared.Symbol == triplePredicate {
			sym = declared
			found = true
			break
		}
	}
	if !found || sym.Arity != 4 {
		return nil, fmt.Errorf("triple schema did not declare %s/4", triplePredicate)
	}

	baseStore := factstore.NewSimpleInMemoryStore()
	return &Store{
		config:          cfg,
		store:           factstore.NewConcurrentFactStore(baseStore),
		sym:             sym,
		predicateCounts: make(map[string]int),
	}, nil
}

// Name implements kb.Store.
func (s *Store) Name() string { return "mangle" }

// Add inserts a triple. It fails only when a configured fact limit is reached.
func (s *Store) Add(subject, predicate, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.FactLimit > 0 && s.factCount >= s.config.FactLimit {
		return fmt.Errorf("%w: %d", ErrFactLimit, s.config.FactLimit)
	}

	s.seq++
	atom := ast.Atom{
		Predicate: s.sym,
		Args: []ast.BaseTerm{
			ast.Number(s.seq),
			ast.String(subject),
			ast.String(predicate),
			ast.String(object),
		},
	}
	if s.store.Add(atom) {
		s.factCount++
		s.predicateCounts[predicate]++
		s.maybeWarnFactLimit()
	}
	return nil
}

func (s *Store) maybeWarnFactLimit() {
	if s.config.FactLimit == 0 || s.factLimitWarned {
		return
	}

	utilization := float64(s.factCount) / float64(s.config.FactLimit)
	if utilization >= 0.85 {
		logging.StoreWarn("fact store is %.1f%% of configured capacity (%d / %d)", utilization*100, s.factCount, s.config.FactLimit)
		s.factLimitWarned = true
	}
}

// LoadProgram implements kb.Store.
func (s *Store) LoadProgram(text string) int {
	return kb.LoadProgram(s, text)
}

// Query implements kb.Store. Literal slots are pushed down into the Mangle
// store lookup; the kb matcher then builds bindings and enforces repeated
// variables. Results are ordered by sequence number.
func (s *Store) Query(p kb.Pattern) []kb.Binding {
	start := time.Now()
	query := ast.Atom{
		Predicate: s.sym,
		Args: []ast.BaseTerm{
			ast.Variable{Symbol: "Seq"},
			slotTerm(p.Subject, "Subject"),
			slotTerm(p.Predicate, "Predicate"),
			slotTerm(p.Object, "Object"),
		},
	}

	type row struct {
		seq     int64
		binding kb.Binding
	}
	var rows []row

	s.mu.RLock()
	err := s.store.GetFacts(query, func(atom ast.Atom) error {
		seq, triple, ok := atomToTriple(atom)
		if !ok {
			return nil
		}
		if b, ok := p.Match(triple); ok {
			rows = append(rows, row{seq: seq, binding: b})
		}
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		logging.StoreWarn("query %s failed: %v", p, err)
	}

	slices.SortFunc(rows, func(a, b row) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	results := make([]kb.Binding, 0, len(rows))
	for _, r := range rows {
		results = append(results, r.binding)
	}
	logging.StoreDebug("query %s: %d bindings in %v", p, len(results), time.Since(start))
	return results
}

// Len implements kb.Store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factCount
}

// Stats implements kb.Store.
func (s *Store) Stats() kb.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.predicateCounts))
	for pred, n := range s.predicateCounts {
		counts[pred] = n
	}
	return kb.Stats{
		Backend:         s.Name(),
		TotalFacts:      s.factCount,
		PredicateCounts: counts,
	}
}

// EstimateFactCount reports the size of the underlying Mangle store.
func (s *Store) EstimateFactCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.EstimateFactCount()
}

// Close cleans up store resources.
func (s *Store) Close() error {
	return nil
}

func slotTerm(t kb.Term, name string) ast.BaseTerm {
	if t.Variable {
		return ast.Variable{Symbol: name}
	}
	return ast.String(t.Value)
}

func atomToTriple(atom ast.Atom) (int64, kb.Triple, bool) {
	if len(atom.Args) != 4 {
		return 0, kb.Triple{}, false
	}

	seq, ok := atom.Args[0].(ast.Constant)
	if !ok || seq.Type != ast.NumberType {
		return 0, kb.Triple{}, false
	}

	var parts [3]string
	for i, arg := range atom.Args[1:] {
		c, ok := arg.(ast.Constant)
		if !ok || c.Type != ast.StringType {
			return 0, kb.Triple{}, false
		}
		parts[i] = c.Symbol
	}

	return seq.NumValue, kb.Triple{Subject: parts[0], Predicate: parts[1], Object: parts[2]}, true
}
