// Package scheduler runs the daemon's recurring maintenance tasks on
// fixed tickers: history pruning, job pruning, registry pruning.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one named recurring job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// TaskStatus is the bookkeeping for one task.
type TaskStatus struct {
	Name      string
	LastRun   time.Time
	LastError string
}

// Scheduler runs registered tasks until stopped. Each task has its own
// ticker; a slow task never delays the others.
type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []Task
	status map[string]TaskStatus
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger, status: map[string]TaskStatus{}}
}

// Register adds a task. Must be called before Run.
func (s *Scheduler) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Tasks returns the names of registered tasks.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for _, task := range s.tasks {
		names = append(names, task.Name)
	}
	return names
}

// Snapshot returns the last run time and last error of every task.
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		status, ok := s.status[task.Name]
		if !ok {
			status = TaskStatus{Name: task.Name}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *Scheduler) record(name string, ranAt time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := TaskStatus{Name: name, LastRun: ranAt}
	if err != nil {
		status.LastError = err.Error()
	}
	s.status[name] = status
}

// Run starts every task loop and blocks until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.runLoop(ctx, task)
		}(task)
	}
	s.logger.Info("Scheduler started", "tasks", len(tasks))
	wg.Wait()
	s.logger.Info("Scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			err := task.Run(ctx)
			s.record(task.Name, start, err)
			if err != nil {
				s.logger.Error("Scheduled task failed", "task", task.Name, "error", err)
				continue
			}
			s.logger.Debug("Scheduled task finished", "task", task.Name, "elapsed", time.Since(start).Round(time.Millisecond).String())
		}
	}
}
