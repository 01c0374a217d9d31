package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashbook/internal/core"
	applog "cashbook/internal/log"
	"cashbook/internal/services"
)

// DueProcessor applies the recurring rules due on a date.
type DueProcessor interface {
	ProcessDue(ctx context.Context, ref core.Date) (services.Summary, error)
}

// RecurringRunner calls a DueProcessor on a fixed interval.
type RecurringRunner struct {
	processor DueProcessor
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringRunner(processor DueProcessor, interval time.Duration) *RecurringRunner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecurringRunner{
		processor: processor,
		interval:  interval,
		now:       time.Now,
	}
}

// Start processes once immediately and then on every tick. It returns an
// error if the runner is already running.
func (r *RecurringRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recurring runner is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx)

	applog.FromContext(ctx).WithComponent(applog.ComponentWorker).InfoContext(ctx, "Recurring runner started",
		"interval", r.interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (r *RecurringRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RecurringRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// RunOnce processes the rules due today.
func (r *RecurringRunner) RunOnce(ctx context.Context) (services.Summary, error) {
	summary, err := r.processor.ProcessDue(ctx, core.DateOf(r.now()))
	if err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentWorker).ErrorContext(ctx, "Recurring run failed",
			applog.FieldError, err)
	}
	return summary, err
}

func (r *RecurringRunner) loop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
