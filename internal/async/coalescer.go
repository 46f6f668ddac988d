package async

import "sync"

// Coalescer runs a task once per scheduling turn no matter how many times it
// is triggered before that turn arrives.
//
// Trigger sets a pending flag and schedules the task only when the flag was
// clear. The flag is cleared right before the task runs, so triggers that
// arrive while the task is running schedule exactly one more run. The task
// must read the state it reconciles when it runs, not when it was triggered.
type Coalescer struct {
	scheduler Scheduler
	task      func()

	mu       sync.Mutex
	pending  bool
	disposed bool
	runs     uint64
}

// NewCoalescer creates a Coalescer for task. A nil scheduler defaults to
// GoScheduler.
func NewCoalescer(scheduler Scheduler, task func()) *Coalescer {
	if scheduler == nil {
		scheduler = GoScheduler
	}
	return &Coalescer{scheduler: scheduler, task: task}
}

// Trigger requests a run on the next turn.
func (c *Coalescer) Trigger() {
	c.mu.Lock()
	if c.disposed || c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.mu.Unlock()

	c.scheduler.Schedule(c.run)
}

// IsPending reports whether a run is scheduled but has not started.
func (c *Coalescer) IsPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Runs reports how many times the task has started.
func (c *Coalescer) Runs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// Dispose cancels a scheduled run and ignores later triggers.
func (c *Coalescer) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.pending = false
	c.mu.Unlock()
}

func (c *Coalescer) run() {
	c.mu.Lock()
	if c.disposed || !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	c.runs++
	c.mu.Unlock()

	c.task()
}
