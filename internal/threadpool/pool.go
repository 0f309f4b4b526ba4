package threadpool

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hanchayi/web-server/internal/events"
	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/metrics"
)

var (
	// ErrPoolClosed is returned by Execute once Shutdown has begun.
	ErrPoolClosed = errors.New("threadpool: pool is shut down")
	// ErrNilJob is returned by Execute for a nil job.
	ErrNilJob = errors.New("threadpool: nil job")
)

// PanicPolicy はジョブがpanicした後のワーカーの扱いを決める
type PanicPolicy int

const (
	// PanicPolicyExit はワーカーを終了させる（プールは縮退する）
	PanicPolicyExit PanicPolicy = iota
	// PanicPolicyRespawn は同じIDのワーカーを再起動する
	PanicPolicyRespawn
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicPolicyExit:
		return "exit"
	case PanicPolicyRespawn:
		return "respawn"
	default:
		return "unknown"
	}
}

// ParsePanicPolicy は文字列からPanicPolicyを取得する
func ParsePanicPolicy(s string) (PanicPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exit":
		return PanicPolicyExit, nil
	case "respawn":
		return PanicPolicyRespawn, nil
	default:
		return PanicPolicyExit, fmt.Errorf("unknown panic policy: %q", s)
	}
}

// Config はスレッドプールの設定
type Config struct {
	Size        int // ワーカー数（1以上）
	PanicPolicy PanicPolicy
	Logger      *logger.Logger   // nil の場合は logger.Default
	Metrics     *metrics.Metrics // nil の場合は新規作成
	Bus         *events.Bus      // nil の場合はイベントを発行しない
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Size:        4,
		PanicPolicy: PanicPolicyExit,
	}
}

// Pool は固定数のワーカーと共有ジョブキューを管理する
type Pool struct {
	size    int
	policy  PanicPolicy
	log     *logger.Logger
	metrics *metrics.Metrics
	bus     *events.Bus

	tx *Sender
	rx *sharedReceiver

	mu      sync.Mutex // workers を保護する
	workers []*worker
	live    atomic.Int32

	closing      atomic.Bool
	shutdownOnce sync.Once
}

// New は size 個のワーカーを持つプールを作成する。
// size が 0 以下の場合は panic する
func New(size int) *Pool {
	config := DefaultConfig()
	config.Size = size
	return NewWithConfig(config)
}

// NewWithConfig は設定を指定してプールを作成し、全ワーカーを起動する
func NewWithConfig(config Config) *Pool {
	if config.Size <= 0 {
		panic(fmt.Sprintf("threadpool: size must be greater than zero, got %d", config.Size))
	}

	log := config.Logger
	if log == nil {
		log = logger.Default
	}
	m := config.Metrics
	if m == nil {
		m = metrics.New()
	}

	tx, rx := newQueue()
	p := &Pool{
		size:    config.Size,
		policy:  config.PanicPolicy,
		log:     log,
		metrics: m,
		bus:     config.Bus,
		tx:      tx,
		rx:      &sharedReceiver{rx: rx},
		workers: make([]*worker, config.Size),
	}

	p.mu.Lock()
	for id := range p.size {
		p.workers[id] = p.spawnWorker(id)
	}
	p.mu.Unlock()

	p.log.Info("pool", "ThreadPool started with %d workers (panic policy: %s)", p.size, p.policy)
	return p
}

// Execute はジョブをキューに投入する。実行完了は待たない
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	if p.closing.Load() {
		return ErrPoolClosed
	}
	if err := p.tx.Send(job); err != nil {
		return ErrPoolClosed
	}
	p.metrics.RecordSubmit()
	return nil
}

// MustExecute は Execute と同じだが、失敗した場合は panic する
func (p *Pool) MustExecute(job Job) {
	if err := p.Execute(job); err != nil {
		panic(err)
	}
}

// Shutdown はキューを閉じてから全ワーカーをID順にjoinする。
// キュー内と実行中のジョブはすべて完了してから返る。複数回呼んでも安全
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(p.shutdown)
}

// Close は io.Closer 用の Shutdown
func (p *Pool) Close() error {
	p.Shutdown()
	return nil
}

func (p *Pool) shutdown() {
	p.log.Info("pool", "Shutting down all workers")

	// 先に送信側を閉じる。逆順だと待機中のワーカーが起きずデッドロックする
	p.closing.Store(true)
	p.tx.Close()

	for id := range p.size {
		p.join(id)
	}

	pending := p.rx.rx.Len()
	if pending > 0 {
		p.log.Warn("pool", "%d queued jobs were never run: no workers left", pending)
	}
	p.bus.Publish(events.NewPoolShutdownEvent(p.size, pending))
	p.log.Info("pool", "ThreadPool stopped")
}

// join は指定IDのワーカーの終了を待つ。待機中に差し替えられた場合は新しいワーカーも待つ
func (p *Pool) join(id int) {
	for {
		p.mu.Lock()
		w := p.workers[id]
		p.mu.Unlock()

		<-w.done

		p.mu.Lock()
		replaced := p.workers[id] != w
		p.mu.Unlock()
		if !replaced {
			p.log.Debug(w.scope(), "joined")
			return
		}
	}
}

// Size は設定されたワーカー数を返す
func (p *Pool) Size() int {
	return p.size
}

// LiveWorkers は受信ループを実行中のワーカー数を返す
func (p *Pool) LiveWorkers() int {
	return int(p.live.Load())
}

// QueueLen はキューで待機中のジョブ数を返す
func (p *Pool) QueueLen() int {
	return p.rx.rx.Len()
}

// Closed は Shutdown が開始済みかどうかを返す
func (p *Pool) Closed() bool {
	return p.closing.Load()
}

// Metrics はジョブのメトリクスを返す
func (p *Pool) Metrics() *metrics.Metrics {
	return p.metrics
}

// PanicPolicy は設定されたpanic時の方針を返す
func (p *Pool) PanicPolicy() PanicPolicy {
	return p.policy
}
