package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Supervisor tracks every background obligation (reconciliation loops, fill
// plans, delayed deletions) so they can be cancelled individually and awaited
// on shutdown.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	tasks  map[string]*taskInfo
	mu     sync.RWMutex
}

type taskInfo struct {
	name        string
	cancel      context.CancelFunc
	description string
}

func NewSupervisor() *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*taskInfo),
	}
}

// Start registers and runs a named task. Starting a task under a name that is
// already running cancels the previous instance first.
func (s *Supervisor) Start(name, description string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		slog.Warn("Task already running, replacing it", slog.String("task", name))
		s.stopLocked(name)
	}

	taskCtx, taskCancel := context.WithCancel(s.ctx)
	info := &taskInfo{
		name:        name,
		cancel:      taskCancel,
		description: description,
	}
	s.tasks[name] = info

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background task panic",
					slog.String("task", name),
					slog.Any("panic", r))
			}
			// Only remove our own entry; the name may have been
			// taken over by a replacement task in the meantime.
			s.mu.Lock()
			if s.tasks[name] == info {
				delete(s.tasks, name)
			}
			s.mu.Unlock()
		}()

		slog.Debug("Starting background task",
			slog.String("task", name),
			slog.String("description", description))

		fn(taskCtx)
	}()
}

// Stop cancels a single task by name. It is a no-op if the task is not
// running.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(name)
}

func (s *Supervisor) stopLocked(name string) {
	if info, exists := s.tasks[name]; exists {
		info.cancel()
		delete(s.tasks, name)
	}
}

// Running reports whether a task with the given name is currently tracked.
func (s *Supervisor) Running(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[name]
	return ok
}

func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Context returns the supervisor-wide context; it is cancelled on Shutdown.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Shutdown cancels every task and waits up to timeout for them to finish.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()

	slog.Info("Shutting down background tasks", slog.Int("task_count", count))
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background tasks to stop",
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}
