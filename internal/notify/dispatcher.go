// Package notify delivers outbound account notifications on a background worker pool.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/metrics"
)

// Message is a templated notification for one recipient.
type Message struct {
	To       string
	Template string
	Data     map[string]string
}

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher queues messages and sends them from a fixed set of workers.
type Dispatcher struct {
	mailer  Mailer
	logger  *slog.Logger
	timeout time.Duration

	jobs   chan Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	// mu guards closing jobs against in-flight sends.
	mu     sync.RWMutex
	closed bool
}

// ErrDispatcherClosed is returned by Enqueue after Shutdown.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// NewDispatcher starts the worker pool.
func NewDispatcher(mailer Mailer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		mailer:  mailer,
		logger:  logger,
		timeout: cfg.SendTimeout,
		jobs:    make(chan Message, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules msg for delivery. It blocks while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("notify: message has no recipient")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	case d.jobs <- msg:
		return nil
	}
}

// Shutdown stops accepting messages and waits for queued ones to be sent.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() {
		d.cancel()
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for msg := range d.jobs {
		d.send(msg)
	}
}

func (d *Dispatcher) send(msg Message) {
	if d.mailer == nil {
		d.logger.Error("notification dispatcher missing mailer", "template", msg.Template)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.mailer.Send(ctx, msg)
	metrics.RecordNotification(msg.Template, err)
	if err != nil {
		d.logger.Error("notification delivery failed", "template", msg.Template, "to", msg.To, "error", err)
		return
	}
	d.logger.Info("notification sent", "template", msg.Template, "to", msg.To)
}
