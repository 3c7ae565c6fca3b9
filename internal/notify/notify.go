// Package notify delivers instance lifecycle events to a webhook.
//
// Events are queued in a bounded channel and posted by a small worker pool,
// so publishing never blocks a provisioning or deprovisioning call. A full
// buffer drops the event.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"provisioner/pkg/backoff"
	"provisioner/pkg/cloudevent"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBufferFull is returned when an event could not be queued.
var ErrBufferFull = errors.New("notification buffer full, event dropped")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("notifier is closed")

// MetricsRecorder records delivery outcomes.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context)
	RecordNotifyDropped(ctx context.Context)
}

// Stats holds notifier counters.
type Stats struct {
	QueueDepth int
	Queued     int64
	Delivered  int64
	Failed     int64
	Dropped    int64
	Retries    int64
}

// Webhook posts CloudEvents to a single URL.
type Webhook struct {
	queue   chan *cloudevent.CloudEvent
	sender  *cloudevent.Sender
	breaker *breaker
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	retries   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}

	// closeMu orders every queued send before the shutdown signal, so the
	// workers' final drain sees it.
	closeMu sync.RWMutex
	closed  bool
}

// NewWebhook starts the delivery workers. metrics may be nil.
func NewWebhook(cfg Config, metrics MetricsRecorder) *Webhook {
	cfg = cfg.withDefaults()

	w := &Webhook{
		queue:    make(chan *cloudevent.CloudEvent, cfg.BufferSize),
		sender:   cloudevent.NewSender(cfg.HTTPTimeout),
		breaker:  newBreaker(defaultBreakerThreshold, defaultBreakerCooldown),
		config:   cfg,
		logger:   slog.With("component", "notify", "destination", extractHost(cfg.URL)),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	w.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go w.worker()
	}

	w.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return w
}

// Publish queues an event about instanceID. Non-blocking.
func (w *Webhook) Publish(eventType, instanceID string, data map[string]any) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	event := cloudevent.New(eventType, w.config.Source, instanceID, uuid.NewString(), data)
	select {
	case w.queue <- event:
		w.queued.Add(1)
		return nil
	default:
		w.dropped.Add(1)
		if w.metrics != nil {
			w.metrics.RecordNotifyDropped(context.Background())
		}
		w.logger.Warn("Event dropped, buffer full", "type", eventType, "instanceId", instanceID)
		return ErrBufferFull
	}
}

// Stats returns current counters.
func (w *Webhook) Stats() Stats {
	return Stats{
		QueueDepth: len(w.queue),
		Queued:     w.queued.Load(),
		Delivered:  w.delivered.Load(),
		Failed:     w.failed.Load(),
		Dropped:    w.dropped.Load(),
		Retries:    w.retries.Load(),
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// The context deadline bounds the wait.
func (w *Webhook) Close(ctx context.Context) error {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil
	}
	w.closed = true
	close(w.shutdown)
	w.closeMu.Unlock()

	w.logger.Info("Notifier shutting down", "queued", len(w.queue))

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Notifier shutdown complete",
			"delivered", w.delivered.Load(),
			"failed", w.failed.Load(),
			"dropped", w.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		w.logger.Warn("Notifier shutdown timed out", "remaining", len(w.queue))
		return ctx.Err()
	}
}

func (w *Webhook) worker() {
	defer w.wg.Done()

	for {
		select {
		case <-w.shutdown:
			w.drainQueue()
			return
		case event := <-w.queue:
			w.deliver(event)
		}
	}
}

func (w *Webhook) drainQueue() {
	for {
		select {
		case event := <-w.queue:
			w.deliver(event)
		default:
			return
		}
	}
}

func (w *Webhook) deliver(event *cloudevent.CloudEvent) {
	logger := w.logger.With("type", event.Type, "instanceId", event.Subject, "eventId", event.ID)

	if !w.breaker.allow() {
		w.drop(logger, "circuit open")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	retries, err := backoff.Retry(ctx, w.config.MaxRetries, &backoff.Config{Initial: w.config.Initial}, func(ctx context.Context) error {
		err := w.sender.Send(ctx, w.config.URL, event, w.config.SigningKey)
		if cloudevent.IsClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	w.retries.Add(int64(retries))

	if err != nil {
		w.breaker.failure()
		w.failed.Add(1)
		if w.metrics != nil {
			w.metrics.RecordNotifyFailed(ctx)
		}
		logger.Warn("Delivery failed", "retries", retries, "error", err)
		return
	}

	w.breaker.success()
	w.delivered.Add(1)
	if w.metrics != nil {
		w.metrics.RecordNotifyDelivered(ctx, time.Since(start).Seconds())
	}
	logger.Debug("Event delivered", "retries", retries)
}

func (w *Webhook) drop(logger *slog.Logger, reason string) {
	w.dropped.Add(1)
	if w.metrics != nil {
		w.metrics.RecordNotifyDropped(context.Background())
	}
	logger.Warn("Event dropped", "reason", reason)
}

// extractHost keeps webhook paths and query strings out of logs.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// Nop discards every event. Used when no webhook is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(string, string, map[string]any) error { return nil }

// Close does nothing.
func (Nop) Close(context.Context) error { return nil }
