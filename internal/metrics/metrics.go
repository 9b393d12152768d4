// Package metrics holds the Prometheus instruments for the knowledge kernel.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "multipoly"

var (
	// queriesTotal counts pattern queries by backend.
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kb",
		Name:      "queries_total",
		Help:      "Pattern queries by backend",
	}, []string{"backend"})

	// queryLatencySeconds measures query latency by backend.
	queryLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "kb",
		Name:      "query_latency_seconds",
		Help:      "Pattern query latency by backend",
		Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"backend"})

	// addsTotal counts triple adds by backend and outcome (ok, refused).
	addsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kb",
		Name:      "adds_total",
		Help:      "Triple adds by backend and outcome",
	}, []string{"backend", "outcome"})

	// programsLoadedTotal counts program loads by source (seed, file).
	programsLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "kb",
		Name:      "programs_loaded_total",
		Help:      "Programs loaded by source",
	}, []string{"source"})

	// reportsTotal counts tutor reports by kind.
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tutor",
		Name:      "reports_total",
		Help:      "Tutor reports by kind",
	}, []string{"report"})

	// cacheLookupsTotal counts advice cache lookups by result (hit, miss).
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Advice cache lookups by result",
	}, []string{"result"})
)

// RecordQuery records one query and its latency.
func RecordQuery(backend string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(backend).Inc()
	queryLatencySeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// RecordAdd records one add; err is nil when the store accepted the triple.
func RecordAdd(backend string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "refused"
	}
	addsTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordProgramLoad records a program load from source ("seed" or "file").
func RecordProgramLoad(source string) {
	programsLoadedTotal.WithLabelValues(source).Inc()
}

// RecordReport records a tutor report of the given kind.
func RecordReport(kind string) {
	reportsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records an advice cache lookup.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// Sample is one exported series: counters report their value, histograms
// their observation count.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Snapshot gathers every multipoly series from g, sorted by name and labels.
func Snapshot(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			s := Sample{Name: mf.GetName(), Labels: strings.Join(pairs, ",")}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				s.Value = float64(m.GetHistogram().GetSampleCount())
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			}
			samples = append(samples, s)
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}
