package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher runs best-effort side tasks. Failures and panics are logged and
// never reach the caller that scheduled the task.
type Dispatcher struct {
	wg      conc.WaitGroup
	timeout time.Duration
	logger  *ServiceLogger
}

func NewDispatcher(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		timeout: timeout,
		logger:  NewServiceLogger(logger, LogConfig{Service: "dispatcher", Component: "best_effort"}),
	}
}

// Go schedules fn on its own goroutine. The task context keeps the values of
// parent but not its cancellation, so it outlives the request that scheduled it.
func (d *Dispatcher) Go(parent context.Context, name string, fn func(ctx context.Context) error) {
	d.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
		defer cancel()

		var err error
		var pc panics.Catcher
		pc.Try(func() { err = fn(ctx) })

		if r := pc.Recovered(); r != nil {
			d.logger.LogRecovery(ctx, name, r.Value, r.Stack)
			return
		}
		if err != nil {
			d.logger.Logger().WarnContext(ctx, "Dispatched task failed", "task", name, "error", err)
		}
	})
}

// Wait blocks until every scheduled task has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
