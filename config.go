package taskrun

import "runtime"

const (
	// MinWorkers and MaxWorkers bound scheduler_create's N per §6.1.
	MinWorkers = 2
	MaxWorkers = 256

	// defaultDequeCapacity matches the default per-worker task pool size so
	// a fully-populated pool can always be pushed without hitting "deque
	// full" under ordinary use.
	defaultDequeCapacity = defaultTaskPoolSize

	// defaultStealAttempts bounds how many victims a worker tries before
	// giving up a pass and going idle (§4.D step 2: "up to an
	// implementation-defined bound").
	defaultStealAttempts = 4
)

// Config configures a Scheduler. New and NewWithConfig replace every
// zero-valued field with a default (NumWorkers becomes MinWorkers), so the
// zero value is usable; DefaultConfig instead sizes NumWorkers from
// GOMAXPROCS.
type Config struct {
	// NumWorkers is clamped to [MinWorkers, MaxWorkers].
	NumWorkers int
	// TaskPoolSize is the per-worker slab size (§3, §4.A).
	TaskPoolSize int
	// DequeCapacity is the per-worker Chase-Lev deque capacity (§4.B).
	DequeCapacity int
	// StealAttempts bounds victim-selection retries per worker pass (§4.D).
	StealAttempts int
	// Logger receives scheduler lifecycle and error diagnostics.
	Logger Logger
	// Metrics, if non-nil, is updated as tasks run, steal, and complete.
	Metrics *Metrics
}

// DefaultConfig returns a Config sized for the current GOMAXPROCS, mirroring
// the teacher's DefaultConfig() pattern of deriving worker count from
// runtime.NumCPU.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	if n < MinWorkers {
		n = MinWorkers
	}
	return Config{
		NumWorkers:    n,
		TaskPoolSize:  defaultTaskPoolSize,
		DequeCapacity: defaultDequeCapacity,
		StealAttempts: defaultStealAttempts,
		Logger:        nopLogger{},
		Metrics:       NewMetrics(),
	}
}

func (c *Config) normalize() {
	if c.NumWorkers < MinWorkers {
		c.NumWorkers = MinWorkers
	}
	if c.NumWorkers > MaxWorkers {
		c.NumWorkers = MaxWorkers
	}
	if c.TaskPoolSize <= 0 {
		c.TaskPoolSize = defaultTaskPoolSize
	}
	if c.DequeCapacity <= 0 {
		c.DequeCapacity = c.TaskPoolSize
	}
	if c.StealAttempts <= 0 {
		c.StealAttempts = defaultStealAttempts
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}
}

// SchedulerOption mutates a Config, following the functional-options idiom.
type SchedulerOption func(*Config)

// WithWorkers sets the worker count.
func WithWorkers(n int) SchedulerOption {
	return func(c *Config) { c.NumWorkers = n }
}

// WithTaskPoolSize sets the per-worker slab size.
func WithTaskPoolSize(n int) SchedulerOption {
	return func(c *Config) { c.TaskPoolSize = n }
}

// WithDequeCapacity sets the per-worker deque capacity.
func WithDequeCapacity(n int) SchedulerOption {
	return func(c *Config) { c.DequeCapacity = n }
}

// WithStealAttempts sets how many victims a worker probes per idle pass.
func WithStealAttempts(n int) SchedulerOption {
	return func(c *Config) { c.StealAttempts = n }
}

// WithLogger sets the scheduler's diagnostic logger.
func WithLogger(l Logger) SchedulerOption {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the scheduler's metrics sink.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(c *Config) { c.Metrics = m }
}
