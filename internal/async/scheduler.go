package async

import "sync"

// Scheduler runs tasks on a later turn than the caller's.
type Scheduler interface {
	Schedule(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// Schedule calls f(task).
func (f SchedulerFunc) Schedule(task func()) {
	f(task)
}

// GoScheduler runs every task on its own goroutine.
var GoScheduler Scheduler = SchedulerFunc(func(task func()) {
	go task()
})

// ManualScheduler queues tasks until RunPending is called. It makes the
// "next turn" explicit in tests.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

// Schedule queues task.
func (m *ManualScheduler) Schedule(task func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
}

// Pending reports the number of queued tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// RunPending runs the tasks queued so far and returns how many ran. Tasks
// scheduled while running are left for the next call.
func (m *ManualScheduler) RunPending() int {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	for _, task := range tasks {
		task()
	}
	return len(tasks)
}
