package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// taskSupervisor runs fire-and-forget work without losing sight of it: every
// task is tracked, bounded by a timeout, detached from the request's
// cancellation, and recovered on panic. "Asynchronous" here means "does not
// delay the response", not "unsupervised".
type taskSupervisor struct {
	timeout time.Duration
	logger  func(context.Context, string, map[string]any)
	wg      sync.WaitGroup
}

func newTaskSupervisor(timeout time.Duration, logger func(context.Context, string, map[string]any)) *taskSupervisor {
	return &taskSupervisor{timeout: timeout, logger: logger}
}

// Spawn runs fn on a supervised background goroutine.
func (s *taskSupervisor) Spawn(ctx context.Context, name string, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		taskCtx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger(taskCtx, "background.task_panic", map[string]any{
					"task":  name,
					"panic": fmt.Sprint(r),
				})
			}
		}()
		fn(taskCtx)
	}()
}

// Wait blocks until all spawned tasks have finished.
func (s *taskSupervisor) Wait() {
	s.wg.Wait()
}
