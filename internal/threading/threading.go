// Package threading provides the worker pool and countdown latch the
// decode pipeline schedules on: one shared fixed-size pool serves both
// frame-level parallelism and the per-stage superblock-row jobs, and a
// BlockingCounter joins each stage's jobs back to the scheduling thread
// at the hard barriers between filter stages.
package threading

import "sync"

// Pool is a fixed set of worker goroutines fed from a single channel.
// Jobs are uniform in size by construction (one superblock row, one
// frame), so a plain channel beats a work-stealing deque here.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
	n    int
}

// NewPool starts a pool with n workers. n <= 0 returns a nil pool, on
// which Schedule runs the job inline; callers can treat the two shapes
// uniformly.
func NewPool(n int) *Pool {
	if n <= 0 {
		return nil
	}
	p := &Pool{
		jobs: make(chan func(), 2*n),
		n:    n,
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// NumThreads returns the worker count; zero for a nil pool.
func (p *Pool) NumThreads() int {
	if p == nil {
		return 0
	}
	return p.n
}

// Schedule submits a job. It blocks while the queue is full, which is the
// desired backpressure: producers are the scheduling threads and every
// job is joined via a BlockingCounter, so the queue cannot deadlock.
func (p *Pool) Schedule(job func()) {
	if p == nil {
		job()
		return
	}
	p.jobs <- job
}

// Shutdown stops the workers after draining queued jobs. The pool must
// not be used afterwards.
func (p *Pool) Shutdown() {
	if p == nil {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}

// BlockingCounter is a countdown latch: initialized to the number of
// outstanding jobs, decremented once per job, waited on by the scheduling
// thread. Jobs may report failure; Wait returns whether all jobs
// succeeded.
type BlockingCounter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	failed bool
}

// NewBlockingCounter creates a latch expecting count decrements.
func NewBlockingCounter(count int) *BlockingCounter {
	c := &BlockingCounter{count: count}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Decrement records one completed job.
func (c *BlockingCounter) Decrement() {
	c.DecrementWithStatus(true)
}

// DecrementWithStatus records one completed job and whether it succeeded.
func (c *BlockingCounter) DecrementWithStatus(ok bool) {
	c.mu.Lock()
	if !ok {
		c.failed = true
	}
	c.count--
	if c.count == 0 {
		c.cond.Broadcast()
	}
	c.mu.Unlock()
}

// Wait blocks until every expected decrement arrived and reports whether
// all jobs succeeded.
func (c *BlockingCounter) Wait() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count > 0 {
		c.cond.Wait()
	}
	return !c.failed
}
