package threadpool

import (
	"fmt"
	"runtime/debug"

	"github.com/hanchayi/web-server/internal/events"
)

// worker はキューからジョブを取り出して実行するゴルーチン
type worker struct {
	id   int
	done chan struct{}
}

func (w *worker) scope() string {
	return fmt.Sprintf("worker-%d", w.id)
}

// spawnWorker はワーカーを作成し、受信ループを開始する
func (p *Pool) spawnWorker(id int) *worker {
	w := &worker{
		id:   id,
		done: make(chan struct{}),
	}
	p.live.Add(1)
	go p.run(w)
	return w
}

// run はワーカーのメインループ
func (p *Pool) run(w *worker) {
	defer close(w.done)
	defer p.live.Add(-1)

	p.log.Debug(w.scope(), "started")
	p.bus.Publish(events.NewWorkerStartedEvent(w.id))

	for {
		job, ok := p.rx.next()
		if !ok {
			p.log.Debug(w.scope(), "disconnected; shutting down")
			p.bus.Publish(events.NewWorkerExitedEvent(w.id))
			return
		}

		p.log.Debug(w.scope(), "got a job; executing")
		if !p.runJob(w, job) {
			continue
		}

		switch p.policy {
		case PanicPolicyRespawn:
			p.respawn(w.id)
		default:
			p.log.Warn(w.scope(), "exiting after panic; %d workers left", p.live.Load()-1)
		}
		p.bus.Publish(events.NewWorkerExitedEvent(w.id))
		return
	}
}

// runJob はジョブを実行し、panicした場合は true を返す
func (p *Pool) runJob(w *worker, job Job) (panicked bool) {
	start := p.metrics.JobStarted()

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			p.log.Error(w.scope(), "job panicked: %v\n%s", r, debug.Stack())
			p.bus.Publish(events.NewWorkerPanickedEvent(w.id, r))
		}
		p.metrics.JobFinished(start, panicked)
	}()

	job()
	return false
}

// respawn は同じIDの代替ワーカーを起動する。
// 古いワーカーの done が閉じる前に差し替えるため、join は新しいワーカーを待つ
func (p *Pool) respawn(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workers[id] = p.spawnWorker(id)
	p.log.Info(fmt.Sprintf("worker-%d", id), "respawned after panic")
	p.bus.Publish(events.NewWorkerRespawnedEvent(id))
}
