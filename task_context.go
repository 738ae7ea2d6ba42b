package taskrun

// TaskContext is handed to a running Func. It stands in for the
// thread-local "current worker" pointer the original design keeps: instead
// of ambient state, a task is given an explicit handle to the worker that
// is currently executing it, and uses that to spawn or join children on the
// correct local deque.
type TaskContext struct {
	h Handle
	w *worker
}

// Handle returns the handle identifying the task this context belongs to,
// so a task can pass itself as a parent to further Run calls.
func (c *TaskContext) Handle() Handle { return c.h }

// Run submits a new task with the given parent (pass c.Handle() to parent
// it under the calling task, or 0 for a root task), executing on the same
// worker that is running the caller.
func (c *TaskContext) Run(parent Handle, fn Func, param []byte) (Handle, error) {
	return c.w.run(parent, fn, param)
}

// Join cooperatively executes other tasks until h's subtree completes, or
// returns immediately if h is already stale.
func (c *TaskContext) Join(h Handle) error {
	return c.w.join(h)
}
