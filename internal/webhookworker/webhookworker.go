// Package webhookworker drains queued webhook deliveries and POSTs them to
// each account's configured endpoint, HMAC-signed, with a go-pkgz/pool
// worker pool and a per-process gobreaker circuit breaker, mirroring the
// shape of the teacher's go-pkgz/pool job pool (adapter/in/worker).
package webhookworker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"nittei/core/port/out"
	"nittei/pkg/httputil"
)

// delivery is one queued webhook send, enriched with a fresh id and
// enqueue time for logging.
type delivery struct {
	out.WebhookDelivery
	id        uuid.UUID
	queuedAt  time.Time
}

// Config tunes the dispatch pool.
type Config struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig mirrors config.Config's webhook defaults.
func DefaultConfig() Config {
	return Config{Workers: 10, QueueSize: 1000, Timeout: 30 * time.Second, MaxRetries: 3, RetryDelay: 5 * time.Second}
}

// Queue implements out.WebhookOutbox by buffering deliveries for Dispatcher
// to drain; Enqueue never blocks the caller beyond the channel send, and
// drops the delivery (logging a warning) if the queue is saturated, per
// spec.md's "best-effort out-of-band" webhook guarantee.
type Queue struct {
	ch  chan delivery
	log zerolog.Logger
}

// NewQueue builds a Queue with the given buffer size.
func NewQueue(size int, log zerolog.Logger) *Queue {
	return &Queue{ch: make(chan delivery, size), log: log.With().Str("component", "webhook_queue").Logger()}
}

// Enqueue implements out.WebhookOutbox.
func (q *Queue) Enqueue(ctx context.Context, d out.WebhookDelivery) error {
	item := delivery{WebhookDelivery: d, id: uuid.New(), queuedAt: time.Now()}
	select {
	case q.ch <- item:
		return nil
	default:
		q.log.Warn().Str("account_id", d.AccountID.String()).Str("kind", string(d.Kind)).Msg("webhook queue full, delivery dropped")
		return nil
	}
}

// deliveryWorker implements pool.Worker for Dispatcher.
type deliveryWorker struct {
	d *Dispatcher
}

func (w *deliveryWorker) Do(ctx context.Context, item delivery) error {
	return w.d.send(ctx, item)
}

// Dispatcher drains a Queue and POSTs each delivery to its account's
// webhook endpoint.
type Dispatcher struct {
	queue    *Queue
	accounts out.AccountRepository
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	cfg      Config
	log      zerolog.Logger

	pool   *pool.WorkerGroup[delivery]
	cancel context.CancelFunc
}

// NewDispatcher wires the queue, account lookup (for webhook URL/signing
// key), and pool configuration.
func NewDispatcher(queue *Queue, accounts out.AccountRepository, cfg Config, log zerolog.Logger) *Dispatcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook_dispatch",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 10
		},
	})
	clientCfg := httputil.WebhookClientConfig()
	clientCfg.ResponseTimeout = cfg.Timeout
	return &Dispatcher{
		queue:    queue,
		accounts: accounts,
		client:   httputil.NewOptimizedClient(clientCfg),
		breaker:  cb,
		cfg:      cfg,
		log:      log.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

// Start launches the worker pool and begins draining the queue. Call Stop
// to shut down gracefully.
func (d *Dispatcher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	worker := &deliveryWorker{d: d}
	d.pool = pool.New[delivery](d.cfg.Workers, worker).WithContinueOnError()
	if err := d.pool.Go(runCtx); err != nil {
		cancel()
		return fmt.Errorf("webhookworker: start pool: %w", err)
	}

	go d.drain(runCtx)
	d.log.Info().Int("workers", d.cfg.Workers).Msg("webhook dispatcher started")
	return nil
}

// Stop drains remaining in-flight sends and shuts the pool down.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.pool != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.pool.Close(closeCtx); err != nil {
			d.log.Warn().Err(err).Msg("error closing webhook pool")
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-d.queue.ch:
			if !ok {
				return
			}
			d.pool.Submit(item)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, item delivery) error {
	account, err := d.accounts.GetByID(ctx, item.AccountID)
	if err != nil || account == nil || account.WebhookURL == nil {
		return nil
	}

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.attempt(ctx, *account.WebhookURL, account.WebhookSigningKey, item)
	})
	if err != nil {
		d.log.Warn().Err(err).Str("delivery_id", item.id.String()).Str("account_id", item.AccountID.String()).
			Msg("webhook delivery failed after retries")
	}
	return nil
}

func (d *Dispatcher) attempt(ctx context.Context, url string, signingKey *string, item delivery) error {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.RetryDelay):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(item.Payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Nittei-Event", string(item.Kind))
		req.Header.Set("X-Nittei-Delivery", item.id.String())
		if signingKey != nil {
			req.Header.Set("X-Nittei-Signature", sign(*signingKey, item.Payload))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return lastErr
}

// sign returns the hex-encoded HMAC-SHA256 of payload, keyed by key, so the
// receiver can verify the delivery originated from this service.
func sign(key string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
