// Package kbtest is the behavioural test suite every kb.Store implementation
// must pass. Backends call RunStoreSuite from their own tests so that both
// the linear-scan and the mangle backend are held to identical expectations.
package kbtest

import (
	"fmt"
	"sync"
	"testing"

	"multipoly/internal/kb"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) kb.Store

// RunStoreSuite runs every store property against stores built by newStore.
func RunStoreSuite(t *testing.T, newStore Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("InsertionOrder", func(t *testing.T) { testInsertionOrder(t, newStore(t)) })
	t.Run("DuplicatesKept", func(t *testing.T) { testDuplicatesKept(t, newStore(t)) })
	t.Run("NoMatchIsEmpty", func(t *testing.T) { testNoMatchIsEmpty(t, newStore(t)) })
	t.Run("LiteralSlotsNotBound", func(t *testing.T) { testLiteralSlotsNotBound(t, newStore(t)) })
	t.Run("CaseSensitive", func(t *testing.T) { testCaseSensitive(t, newStore(t)) })
	t.Run("ReverseLookup", func(t *testing.T) { testReverseLookup(t, newStore(t)) })
	t.Run("RepeatedVariable", func(t *testing.T) { testRepeatedVariable(t, newStore(t)) })
	t.Run("AllVariables", func(t *testing.T) { testAllVariables(t, newStore(t)) })
	t.Run("LoadProgram", func(t *testing.T) { testLoadProgram(t, newStore(t)) })
	t.Run("QueryString", func(t *testing.T) { testQueryString(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
	t.Run("ConcurrentAdds", func(t *testing.T) { testConcurrentAdds(t, newStore(t)) })
	t.Run("ConcurrentReadWrite", func(t *testing.T) { testConcurrentReadWrite(t, newStore(t)) })
}

func mustAdd(t *testing.T, s kb.Store, subject, predicate, object string) {
	t.Helper()
	require.NoError(t, s.Add(subject, predicate, object))
}

func diffBindings(t *testing.T, want, got []kb.Binding) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
}

func testRoundTrip(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")

	got := s.Query(kb.NewPattern("Red_Fort", "hasToken", "$t"))
	diffBindings(t, []kb.Binding{{"$t": "token_red"}}, got)
}

func testInsertionOrder(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "riskLevel", "low")
	mustAdd(t, s, "India_Gate", "riskLevel", "low")
	mustAdd(t, s, "Red_Fort", "riskLevel", "medium")
	mustAdd(t, s, "Red_Fort", "riskLevel", "high")

	got := s.Query(kb.NewPattern("Red_Fort", "riskLevel", "$r"))
	diffBindings(t, []kb.Binding{{"$r": "low"}, {"$r": "medium"}, {"$r": "high"}}, got)
}

func testDuplicatesKept(t *testing.T, s kb.Store) {
	mustAdd(t, s, "JNU", "hasToken", "token_green")
	mustAdd(t, s, "JNU", "hasToken", "token_green")

	got := s.Query(kb.NewPattern("JNU", "hasToken", "$t"))
	diffBindings(t, []kb.Binding{{"$t": "token_green"}, {"$t": "token_green"}}, got)
	assert.Equal(t, 2, s.Len())
}

func testNoMatchIsEmpty(t *testing.T, s kb.Store) {
	got := s.Query(kb.NewPattern("Nowhere", "hasToken", "$t"))
	assert.NotNil(t, got)
	assert.Empty(t, got)

	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")
	got = s.Query(kb.NewPattern("Nowhere", "hasToken", "$t"))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func testLiteralSlotsNotBound(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")

	got := s.Query(kb.NewPattern("Red_Fort", "hasToken", "token_red"))
	diffBindings(t, []kb.Binding{{}}, got)
}

func testCaseSensitive(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")

	assert.Empty(t, s.Query(kb.NewPattern("red_fort", "hasToken", "$t")))
	assert.Empty(t, s.Query(kb.NewPattern("Red_Fort", "HasToken", "$t")))
	assert.Len(t, s.Query(kb.NewPattern("Red_Fort", "hasToken", "$t")), 1)
}

func testReverseLookup(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")
	mustAdd(t, s, "JNU", "hasToken", "token_green")
	mustAdd(t, s, "India_Gate", "hasToken", "token_red")

	got := s.Query(kb.NewPattern("$place", "hasToken", "token_red"))
	diffBindings(t, []kb.Binding{{"$place": "Red_Fort"}, {"$place": "India_Gate"}}, got)
}

func testRepeatedVariable(t *testing.T, s kb.Store) {
	mustAdd(t, s, "a", "sameAs", "a")
	mustAdd(t, s, "a", "sameAs", "b")
	mustAdd(t, s, "c", "sameAs", "c")

	got := s.Query(kb.NewPattern("$x", "sameAs", "$x"))
	diffBindings(t, []kb.Binding{{"$x": "a"}, {"$x": "c"}}, got)
}

func testAllVariables(t *testing.T, s kb.Store) {
	mustAdd(t, s, "game", "diceRange", "1-6_VRF_roll")
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")

	got := s.Query(kb.NewPattern("$s", "$p", "$o"))
	diffBindings(t, []kb.Binding{
		{"$s": "game", "$p": "diceRange", "$o": "1-6_VRF_roll"},
		{"$s": "Red_Fort", "$p": "hasToken", "$o": "token_red"},
	}, got)
}

func testLoadProgram(t *testing.T, s kb.Store) {
	program := `
; heritage
// business
(hasToken Red_Fort token_red)
(hasToken Red_Fort)
not a record
(investmentValue Red_Fort "UNESCO World Heritage site - premium tourism investment")
(hasToken Connaught_Place token_blue) trailing
  (riskLevel Red_Fort low)
(a b c d)
(unterminated "quote here)
`
	loaded := s.LoadProgram(program)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 3, s.Len())

	diffBindings(t, []kb.Binding{{"$v": "UNESCO World Heritage site - premium tourism investment"}},
		s.Query(kb.NewPattern("Red_Fort", "investmentValue", "$v")))
	diffBindings(t, []kb.Binding{{"$r": "low"}},
		s.Query(kb.NewPattern("Red_Fort", "riskLevel", "$r")))
	assert.Empty(t, s.Query(kb.NewPattern("Connaught_Place", "hasToken", "$t")))
}

func testQueryString(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")

	got, err := kb.QueryString(s, "(hasToken Red_Fort $t)")
	require.NoError(t, err)
	diffBindings(t, []kb.Binding{{"$t": "token_red"}}, got)

	_, err = kb.QueryString(s, "(hasToken Red_Fort)")
	assert.ErrorIs(t, err, kb.ErrInvalidPattern)
}

func testStats(t *testing.T, s kb.Store) {
	mustAdd(t, s, "Red_Fort", "hasToken", "token_red")
	mustAdd(t, s, "JNU", "hasToken", "token_green")
	mustAdd(t, s, "token_red", "yields", "high")

	stats := s.Stats()
	assert.Equal(t, s.Name(), stats.Backend)
	assert.Equal(t, 3, stats.TotalFacts)
	assert.Equal(t, map[string]int{"hasToken": 2, "yields": 1}, stats.PredicateCounts)
}

func testConcurrentAdds(t *testing.T, s kb.Store) {
	const n = 64
	var g errgroup.Group
	for i := 0; i < n; i++ {
		subject := fmt.Sprintf("Place_%d", i)
		g.Go(func() error {
			return s.Add(subject, "riskLevel", "low")
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, n, s.Len())
	for i := 0; i < n; i++ {
		got := s.Query(kb.NewPattern(fmt.Sprintf("Place_%d", i), "riskLevel", "$r"))
		assert.Len(t, got, 1, "Place_%d", i)
	}
}

func testConcurrentReadWrite(t *testing.T, s kb.Store) {
	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers must only ever see complete triples.
	var readers errgroup.Group
	for r := 0; r < 4; r++ {
		readers.Go(func() error {
			for {
				select {
				case <-stop:
					return nil
				default:
				}
				for _, b := range s.Query(kb.NewPattern("$s", "step", "$o")) {
					if b["$s"] == "" || b["$o"] == "" {
						return fmt.Errorf("partial binding %v", b)
					}
				}
			}
		})
	}

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Add(fmt.Sprintf("w%d", w), "step", fmt.Sprintf("%d", i))
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	require.NoError(t, readers.Wait())

	assert.Equal(t, writers*perWriter, s.Len())
	for w := 0; w < writers; w++ {
		got := kb.Values(s.Query(kb.NewPattern(fmt.Sprintf("w%d", w), "step", "$i")), "$i")
		require.Len(t, got, perWriter)
		// Per-writer order follows that writer's add order.
		for i, v := range got {
			assert.Equal(t, fmt.Sprintf("%d", i), v)
		}
	}
}
