// Package metrics collects job execution metrics for the thread pool.
//
// Metrics tracks jobs submitted, completed and panicked. It also tracks how
// many jobs are running right now and the highest number that ever ran at
// once, plus a bounded sample of job latencies. All counters use atomics, so
// workers can record without contending on a lock.
//
// # Basic Usage
//
//	m := metrics.New()
//	m.RecordSubmit()
//	start := m.JobStarted()
//	// run the job
//	m.JobFinished(start, false)
//
//	snap := m.Snapshot()
//	fmt.Printf("completed=%d peak=%d p99=%v\n", snap.Completed, snap.PeakActive, snap.P99Latency)
//
// # Prometheus
//
// NewCollector exposes the same numbers to a prometheus.Registerer:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(m, pool))
package metrics
