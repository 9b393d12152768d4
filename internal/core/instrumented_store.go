package core

import (
	"io"
	"time"

	"multipoly/internal/kb"
	"multipoly/internal/metrics"
)

// instrumentedStore records query and add metrics for the wrapped store.
type instrumentedStore struct {
	kb.Store
}

func instrument(s kb.Store) kb.Store {
	if _, ok := s.(*instrumentedStore); ok {
		return s
	}
	return &instrumentedStore{Store: s}
}

func (s *instrumentedStore) Add(subject, predicate, object string) error {
	err := s.Store.Add(subject, predicate, object)
	metrics.RecordAdd(s.Name(), err)
	return err
}

// LoadProgram routes each record through Add so adds are counted.
func (s *instrumentedStore) LoadProgram(text string) int {
	return kb.LoadProgram(s, text)
}

func (s *instrumentedStore) Query(p kb.Pattern) []kb.Binding {
	start := time.Now()
	out := s.Store.Query(p)
	metrics.RecordQuery(s.Name(), time.Since(start))
	return out
}

func (s *instrumentedStore) Available() bool {
	return kb.Available(s.Store)
}

func (s *instrumentedStore) Close() error {
	if c, ok := s.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
