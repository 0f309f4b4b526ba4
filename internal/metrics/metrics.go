package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Metrics はジョブ実行のメトリクスを収集する
type Metrics struct {
	submitted      atomic.Uint64
	completed      atomic.Uint64
	panicked       atomic.Uint64
	active         atomic.Int64
	peakActive     atomic.Int64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, defaultMaxLatencySamples),
		maxLatencySamples: defaultMaxLatencySamples,
	}
}

// RecordSubmit はキューに投入されたジョブを記録する
func (m *Metrics) RecordSubmit() {
	m.submitted.Add(1)
}

// JobStarted は実行開始を記録し、開始時刻を返す
func (m *Metrics) JobStarted() time.Time {
	n := m.active.Add(1)
	for {
		peak := m.peakActive.Load()
		if n <= peak || m.peakActive.CompareAndSwap(peak, n) {
			break
		}
	}
	return time.Now()
}

// JobFinished は実行終了を記録する。panicked が true の場合は完了数に含めない
func (m *Metrics) JobFinished(start time.Time, panicked bool) {
	latency := time.Since(start)
	m.active.Add(-1)

	if panicked {
		m.panicked.Add(1)
		return
	}

	m.completed.Add(1)
	m.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// Submitted は投入済みジョブ数を返す
func (m *Metrics) Submitted() uint64 {
	return m.submitted.Load()
}

// Completed は正常終了したジョブ数を返す
func (m *Metrics) Completed() uint64 {
	return m.completed.Load()
}

// Panicked はpanicしたジョブ数を返す
func (m *Metrics) Panicked() uint64 {
	return m.panicked.Load()
}

// Active は実行中のジョブ数を返す
func (m *Metrics) Active() int64 {
	return m.active.Load()
}

// PeakActive は同時実行数の最大値を返す
func (m *Metrics) PeakActive() int64 {
	return m.peakActive.Load()
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	completed := m.completed.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / completed)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Submitted      uint64        `json:"submitted"`
	Completed      uint64        `json:"completed"`
	Panicked       uint64        `json:"panicked"`
	Active         int64         `json:"active"`
	PeakActive     int64         `json:"peak_active"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:      m.Submitted(),
		Completed:      m.Completed(),
		Panicked:       m.Panicked(),
		Active:         m.Active(),
		PeakActive:     m.PeakActive(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		Elapsed:        time.Since(m.startTime),
	}
}
