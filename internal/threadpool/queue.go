package threadpool

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Sender.Send once the queue has been closed.
var ErrQueueClosed = errors.New("threadpool: queue closed")

// queue は上限なしのFIFOキュー
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Job
	closed bool
}

// newQueue はキューを作成し、送信側と受信側のハンドルを返す
func newQueue() (*Sender, *Receiver) {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return &Sender{q: q}, &Receiver{q: q}
}

// Sender is the producing end of the job queue. It is safe for concurrent use.
type Sender struct {
	q *queue
}

// Send appends job to the tail of the queue and never blocks on capacity.
func (s *Sender) Send(job Job) error {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	if s.q.closed {
		return ErrQueueClosed
	}
	s.q.items = append(s.q.items, job)
	s.q.cond.Signal()
	return nil
}

// Close marks the queue closed and wakes every blocked receiver. Jobs already
// queued stay receivable. Closing twice is a no-op.
func (s *Sender) Close() {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	if s.q.closed {
		return
	}
	s.q.closed = true
	s.q.cond.Broadcast()
}

// Receiver is the consuming end of the job queue.
type Receiver struct {
	q *queue
}

// Recv blocks until a job is available or the queue is closed and drained.
// ok is false only in the latter case.
func (r *Receiver) Recv() (job Job, ok bool) {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	for len(r.q.items) == 0 {
		if r.q.closed {
			return nil, false
		}
		r.q.cond.Wait()
	}

	job = r.q.items[0]
	r.q.items[0] = nil
	r.q.items = r.q.items[1:]
	return job, true
}

// Len returns the number of queued jobs.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}

// sharedReceiver は全ワーカーで共有する受信側。
// ロックは1回の受信の間だけ保持する
type sharedReceiver struct {
	mu sync.Mutex
	rx *Receiver
}

func (s *sharedReceiver) next() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx.Recv()
}
