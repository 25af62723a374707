package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 5
	DefaultQueueSize = 100

	sendTimeout = 30 * time.Second
)

// Dispatcher delivers messages from a bounded in-memory queue with a fixed
// pool of workers. Messages that do not fit in the queue are dropped.
type Dispatcher struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Limiter paces deliveries across all workers. Nil means unlimited.
	Limiter *rate.Limiter

	workers int
	queue   chan Message

	mu      sync.RWMutex // guards stopped and sends on queue
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Non-positive sizes fall back to the
// defaults.
func NewDispatcher(sender Sender, logger *slog.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		Sender:  sender,
		Logger:  logger,
		workers: workers,
		queue:   make(chan Message, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for range d.workers {
		d.wg.Add(1)
		go d.run()
	}
	d.Logger.Info("mail dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Stop refuses new messages, delivers what is already queued and waits for
// the workers. Deliveries still pending when ctx ends are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	d.Logger.Info("mail dispatcher stopped")
}

// Dispatch enqueues msg without blocking.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	l := d.Logger

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		l.WarnContext(ctx, "mail dispatcher stopped, dropping email", "template", msg.Template)
		d.Metrics.Email(string(msg.Template), metrics.ResultDropped)
		return
	}

	select {
	case d.queue <- msg:
	default:
		l.WarnContext(ctx, "mail queue full, dropping email", "template", msg.Template)
		d.Metrics.Email(string(msg.Template), metrics.ResultDropped)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if d.Limiter != nil {
		if err := d.Limiter.Wait(d.ctx); err != nil {
			d.Logger.Warn("email abandoned", "template", msg.Template, "error", err)
			d.Metrics.Email(string(msg.Template), metrics.ResultDropped)
			return
		}
	}

	ctx, cancel := context.WithTimeout(d.ctx, sendTimeout)
	defer cancel()

	if err := d.Sender.Send(ctx, msg); err != nil {
		d.Logger.Error("failed to send email", "template", msg.Template, "error", err)
		d.Metrics.Email(string(msg.Template), metrics.ResultFailure)
		return
	}
	d.Metrics.Email(string(msg.Template), metrics.ResultSuccess)
}
