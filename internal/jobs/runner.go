package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of periodic maintenance.
type Task struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the task once as soon as the runner starts instead of
	// waiting one full interval.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

type RunnerOptions struct {
	Logger *slog.Logger
}

// Runner executes each Task on its own interval until stopped. A failing run
// is logged and retried at the next tick.
type Runner struct {
	tasks  []Task
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewRunner(tasks []Task, opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	active := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval > 0 && t.Run != nil {
			active = append(active, t)
		}
	}
	return &Runner{tasks: active, logger: logger}
}

// Tasks returns the names of the scheduled tasks.
func (r *Runner) Tasks() []string {
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.Name
	}
	return names
}

func (r *Runner) Start(parent context.Context) error {
	if r == nil {
		return fmt.Errorf("runner is not configured")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.started = true

	go r.run(ctx, done)
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	r.started = false
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()
	return nil
}

// Run blocks until ctx is done, then waits for in-flight tasks to return.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return r.Stop(context.Background())
}

func (r *Runner) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	for _, task := range r.tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, task)
		}()
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, task Task) {
	if task.RunAtStart {
		r.runOnce(ctx, task)
	}
	for sleepOrDone(ctx, task.Interval) {
		r.runOnce(ctx, task)
	}
}

func (r *Runner) runOnce(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("maintenance task failed", "task", task.Name, "duration", time.Since(start), "error", err)
		return
	}
	r.logger.Debug("maintenance task finished", "task", task.Name, "duration", time.Since(start))
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
