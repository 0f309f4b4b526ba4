// Package threadpool provides a fixed-size pool of worker goroutines fed by a
// single unbounded FIFO job queue.
//
// Every worker shares one receiving end of the queue. A worker locks it,
// takes exactly one job, unlocks it, and only then runs the job, so the lock
// serializes extraction but never execution. At most Size jobs run at once,
// each job runs exactly once, and jobs from one producer are dequeued in the
// order they were submitted.
//
// # Basic Usage
//
//	pool := threadpool.New(4)
//	defer pool.Shutdown()
//
//	for _, conn := range conns {
//	    conn := conn
//	    if err := pool.Execute(func() { handle(conn) }); err != nil {
//	        return err
//	    }
//	}
//
// New panics when size is not positive; that is a programming error, not a
// runtime condition.
//
// # Graceful Shutdown
//
// Shutdown closes the producing end first and then joins every worker in id
// order. Workers drain whatever is still queued before they observe the
// closed queue, so Shutdown returns only after every accepted job has run.
// Execute after Shutdown has begun returns ErrPoolClosed; the job is never
// silently dropped.
//
// # Panicking Jobs
//
// A worker recovers a panicking job and logs it. What happens next depends on
// Config.PanicPolicy:
//
//   - PanicPolicyExit: the worker exits and the pool keeps running with one
//     fewer worker. With every worker gone, queued jobs are no longer serviced.
//   - PanicPolicyRespawn: a replacement worker with the same id takes over.
package threadpool
