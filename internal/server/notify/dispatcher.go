package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/logging"
)

type job struct {
	ctx context.Context
	n   Notification
}

// Dispatcher fans notifications out to a fixed pool of workers through a
// bounded queue. Enqueue never blocks; a full queue drops the notification.
type Dispatcher struct {
	next    Notifier
	log     logging.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

func NewDispatcher(next Notifier, workers, queueSize int, timeout time.Duration, log logging.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		next:    next,
		log:     log,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue schedules n for delivery and reports whether it was accepted.
// Request-scoped cancellation of ctx does not cancel delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn(ctx, "notification dropped: dispatcher closed", "user_id", n.UserID, "template", n.Template)
		return false
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), n: n}:
		return true
	default:
		d.log.Warn(ctx, "notification dropped: queue full", "user_id", n.UserID, "template", n.Template)
		return false
	}
}

// Notify makes Dispatcher usable wherever a Notifier is expected.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	d.Enqueue(ctx, n)
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := j.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(ctx, "notifier panicked", "user_id", j.n.UserID, "panic", r)
		}
	}()
	if err := d.next.Notify(ctx, j.n); err != nil {
		d.log.Error(ctx, "notification failed", "user_id", j.n.UserID, "template", j.n.Template, "error", err)
	}
}

// Close stops accepting notifications and waits until the queue drains or
// ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
