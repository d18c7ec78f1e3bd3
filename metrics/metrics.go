// Package metrics exports allocator statistics to Prometheus.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/memkit/alloc"
)

// StatsSource is anything that reports allocator statistics: every
// backend, alloc.Locked and global.Heap.
type StatsSource interface {
	Stats() alloc.Stats
}

const (
	descAllocCalls = iota
	descDeallocCalls
	descFailedAllocs
	descSplits
	descBytesInUse
	descBytesFree
	descCapacity
)

var descriptors = []*prometheus.Desc{
	descAllocCalls: prometheus.NewDesc(
		"memkit_alloc_calls_total",
		"Number of successful allocations.",
		[]string{"allocator"}, nil,
	),
	descDeallocCalls: prometheus.NewDesc(
		"memkit_dealloc_calls_total",
		"Number of deallocations.",
		[]string{"allocator"}, nil,
	),
	descFailedAllocs: prometheus.NewDesc(
		"memkit_alloc_failures_total",
		"Number of allocations that ran out of memory.",
		[]string{"allocator"}, nil,
	),
	descSplits: prometheus.NewDesc(
		"memkit_block_splits_total",
		"Number of free blocks split to satisfy an allocation.",
		[]string{"allocator"}, nil,
	),
	descBytesInUse: prometheus.NewDesc(
		"memkit_bytes_in_use",
		"Bytes handed out and not yet returned.",
		[]string{"allocator"}, nil,
	),
	descBytesFree: prometheus.NewDesc(
		"memkit_bytes_free",
		"Bytes available for allocation.",
		[]string{"allocator"}, nil,
	),
	descCapacity: prometheus.NewDesc(
		"memkit_capacity_bytes",
		"Bytes under management.",
		[]string{"allocator"}, nil,
	),
}

// Collector is a prometheus.Collector reading a set of named allocators
// at scrape time.
type Collector struct {
	mu      sync.Mutex
	sources map[string]StatsSource
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over sources, keyed by the value of the
// "allocator" label.
func NewCollector(sources map[string]StatsSource) *Collector {
	c := &Collector{sources: make(map[string]StatsSource, len(sources))}
	for name, src := range sources {
		c.sources[name] = src
	}
	return c
}

// Add registers another allocator, replacing any with the same name.
func (c *Collector) Add(name string, src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = src
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sources := make([]StatsSource, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		sources = append(sources, c.sources[name])
	}
	c.mu.Unlock()

	for i, src := range sources {
		for _, m := range collect(names[i], src.Stats()) {
			ch <- m
		}
	}
}

func collect(name string, s alloc.Stats) []prometheus.Metric {
	counter := func(d int, v uint64) prometheus.Metric {
		return prometheus.MustNewConstMetric(descriptors[d], prometheus.CounterValue, float64(v), name)
	}
	gauge := func(d int, v uint64) prometheus.Metric {
		return prometheus.MustNewConstMetric(descriptors[d], prometheus.GaugeValue, float64(v), name)
	}
	return []prometheus.Metric{
		counter(descAllocCalls, s.AllocCalls),
		counter(descDeallocCalls, s.DeallocCalls),
		counter(descFailedAllocs, s.FailedAllocs),
		counter(descSplits, s.Splits),
		gauge(descBytesInUse, s.BytesInUse),
		gauge(descBytesFree, s.BytesFree),
		gauge(descCapacity, s.Capacity),
	}
}
