// Package metrics exports persistent tree statistics to Prometheus.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/talDoFlemis/hokkaido"
)

const namespace = "hokkaido"

// Source is anything reporting tree statistics, typically a *hokkaido.Tree.
type Source interface {
	Stats() hokkaido.Stats
}

// Collector reads a Source on every scrape. It holds no state of its own,
// so the exported values are always those of the last completed version.
type Collector struct {
	source Source

	versions    *prometheus.Desc
	nodes       *prometheus.Desc
	copies      *prometheus.Desc
	fieldWrites *prometheus.Desc
	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
}

// NewCollector creates a collector over source. constLabels are attached to
// every metric, which lets several trees share a registry.
func NewCollector(source Source, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "tree", name), help, nil, constLabels)
	}
	return &Collector{
		source:      source,
		versions:    desc("latest_version", "Latest published version."),
		nodes:       desc("nodes", "Nodes allocated, copies included."),
		copies:      desc("node_copies_total", "Nodes allocated because a field log overflowed."),
		fieldWrites: desc("field_writes_total", "Versioned field writes."),
		cacheHits:   desc("query_cache_hits_total", "QueryAt results served from the cache."),
		cacheMisses: desc("query_cache_misses_total", "QueryAt results computed by a traversal."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.versions
	ch <- c.nodes
	ch <- c.copies
	ch <- c.fieldWrites
	ch <- c.cacheHits
	ch <- c.cacheMisses
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.versions, prometheus.GaugeValue, float64(s.Versions))
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(s.Nodes))
	ch <- prometheus.MustNewConstMetric(c.copies, prometheus.CounterValue, float64(s.Copies))
	ch <- prometheus.MustNewConstMetric(c.fieldWrites, prometheus.CounterValue, float64(s.FieldWrites))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses))
}

// WriteText gathers g and writes every family in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
