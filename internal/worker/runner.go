package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pennywise/internal/amqp"
	"pennywise/internal/log"
)

// Consumer delivers messages to handler until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.Message) error) error
}

// Runner owns the consume loop's goroutine.
type Runner struct {
	consumer Consumer
	handler  func(context.Context, *amqp.Message) error
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewRunner(consumer Consumer, handler func(context.Context, *amqp.Message) error, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Discard()
	}
	return &Runner{
		consumer: consumer,
		handler:  handler,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins consuming. Returns an error if already running.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.doneCh = make(chan struct{})
	r.err = nil

	go r.run(runCtx, r.doneCh)

	r.logger.InfoContext(ctx, "Worker started")
	return nil
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := r.consumer.Consume(ctx, r.handler)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.ErrorContext(ctx, "Consumer stopped", log.FieldError, err)
	}

	r.mu.Lock()
	r.err = err
	r.running = false
	r.mu.Unlock()
}

// Stop cancels the consumer and waits for it, or for ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.doneCh == nil {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.doneCh
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		r.logger.InfoContext(ctx, "Worker stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Worker stop timed out")
		return ctx.Err()
	}
}

// Done is closed when the consume loop exits. Nil before Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doneCh
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Err is the error the consume loop exited with.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
