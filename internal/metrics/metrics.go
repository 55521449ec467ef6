// Package metrics holds the process-lifetime counters of the data-access layer.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is safe for concurrent use. Counters only ever grow.
type Collector struct {
	queries       atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	errors        atomic.Int64
	storeRequests atomic.Int64

	startedAt time.Time
	now       func() time.Time
}

type Snapshot struct {
	Queries       int64     `json:"queries"`
	CacheHits     int64     `json:"cache_hits"`
	CacheMisses   int64     `json:"cache_misses"`
	Errors        int64     `json:"errors"`
	StoreRequests int64     `json:"store_requests"`
	HitRate       float64   `json:"hit_rate"`
	Throughput    float64   `json:"throughput"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

func New() *Collector {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Collector {
	return &Collector{startedAt: now(), now: now}
}

// RecordQuery counts one data-access operation.
func (c *Collector) RecordQuery() {
	if c != nil {
		c.queries.Add(1)
	}
}

func (c *Collector) RecordCacheHit() {
	if c != nil {
		c.cacheHits.Add(1)
	}
}

func (c *Collector) RecordCacheMiss() {
	if c != nil {
		c.cacheMisses.Add(1)
	}
}

func (c *Collector) RecordError() {
	if c != nil {
		c.errors.Add(1)
	}
}

// RecordStoreRequest counts one request sent to the store, e.g. one page.
func (c *Collector) RecordStoreRequest() {
	if c != nil {
		c.storeRequests.Add(1)
	}
}

func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Queries:       c.queries.Load(),
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		Errors:        c.errors.Load(),
		StoreRequests: c.storeRequests.Load(),
		StartedAt:     c.startedAt,
	}

	uptime := c.now().Sub(c.startedAt).Seconds()
	if uptime < 0 {
		uptime = 0
	}
	s.UptimeSeconds = uptime

	if s.Queries > 0 {
		s.HitRate = float64(s.CacheHits) / float64(s.Queries)
	}
	if uptime > 0 {
		s.Throughput = float64(s.Queries) / uptime
	}
	return s
}

var (
	queriesDesc = prometheus.NewDesc("quiznox_queries_total",
		"Data-access operations served.", nil, nil)
	cacheHitsDesc = prometheus.NewDesc("quiznox_cache_hits_total",
		"Read-through cache hits.", nil, nil)
	cacheMissesDesc = prometheus.NewDesc("quiznox_cache_misses_total",
		"Read-through cache misses.", nil, nil)
	errorsDesc = prometheus.NewDesc("quiznox_errors_total",
		"Operations that returned an error.", nil, nil)
	storeRequestsDesc = prometheus.NewDesc("quiznox_store_requests_total",
		"Requests sent to the key-value store.", nil, nil)
	uptimeDesc = prometheus.NewDesc("quiznox_uptime_seconds",
		"Seconds since the collector was created.", nil, nil)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queriesDesc
	ch <- cacheHitsDesc
	ch <- cacheMissesDesc
	ch <- errorsDesc
	ch <- storeRequestsDesc
	ch <- uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(queriesDesc, prometheus.CounterValue, float64(s.Queries))
	ch <- prometheus.MustNewConstMetric(cacheHitsDesc, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(cacheMissesDesc, prometheus.CounterValue, float64(s.CacheMisses))
	ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(storeRequestsDesc, prometheus.CounterValue, float64(s.StoreRequests))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, s.UptimeSeconds)
}
