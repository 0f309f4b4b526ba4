package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "threadpool"

// PoolState is the view of a pool that the collector reads on every scrape.
type PoolState interface {
	Size() int
	LiveWorkers() int
	QueueLen() int
}

// Collector exports Metrics and PoolState as prometheus metrics.
type Collector struct {
	metrics *Metrics
	pool    PoolState

	submitted   *prometheus.Desc
	completed   *prometheus.Desc
	panicked    *prometheus.Desc
	active      *prometheus.Desc
	peakActive  *prometheus.Desc
	size        *prometheus.Desc
	liveWorkers *prometheus.Desc
	queueLen    *prometheus.Desc
}

// NewCollector creates a collector. pool may be nil, in which case only job
// counters are exported.
func NewCollector(m *Metrics, pool PoolState) *Collector {
	return &Collector{
		metrics: m,
		pool:    pool,
		submitted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "submitted_total"),
			"Jobs accepted into the queue", nil, nil),
		completed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "completed_total"),
			"Jobs that returned normally", nil, nil),
		panicked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "panicked_total"),
			"Jobs that panicked on a worker", nil, nil),
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "active"),
			"Jobs currently executing", nil, nil),
		peakActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "peak_active"),
			"Highest number of jobs executing at once", nil, nil),
		size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "workers", "size"),
			"Configured number of workers", nil, nil),
		liveWorkers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "workers", "live"),
			"Workers still running their receive loop", nil, nil),
		queueLen: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "length"),
			"Jobs waiting in the queue", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.completed
	ch <- c.panicked
	ch <- c.active
	ch <- c.peakActive
	if c.pool != nil {
		ch <- c.size
		ch <- c.liveWorkers
		ch <- c.queueLen
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(c.metrics.Submitted()))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(c.metrics.Completed()))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.CounterValue, float64(c.metrics.Panicked()))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(c.metrics.Active()))
	ch <- prometheus.MustNewConstMetric(c.peakActive, prometheus.GaugeValue, float64(c.metrics.PeakActive()))
	if c.pool != nil {
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(c.pool.Size()))
		ch <- prometheus.MustNewConstMetric(c.liveWorkers, prometheus.GaugeValue, float64(c.pool.LiveWorkers()))
		ch <- prometheus.MustNewConstMetric(c.queueLen, prometheus.GaugeValue, float64(c.pool.QueueLen()))
	}
}
