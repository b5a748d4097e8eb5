// Package events drains the transactional outbox into event sinks.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/guard"
	"github.com/rogerbap/gaminglibrary/internal/metrics"
	"github.com/rogerbap/gaminglibrary/internal/repository"
)

// Sink receives committed domain events. Delivery is at least once, so
// implementations must tolerate repeats.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event domain.OutboxDraft) error
}

// Config tunes the dispatcher loop.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Dispatcher polls the outbox and fans each event out to every sink.
type Dispatcher struct {
	store     repository.Store
	sinks     []Sink
	breaker   *guard.CircuitBreaker
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewDispatcher creates a dispatcher. The breaker is keyed by sink name.
func NewDispatcher(store repository.Store, sinks []Sink, breaker *guard.CircuitBreaker, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Dispatcher{
		store:     store,
		sinks:     sinks,
		breaker:   breaker,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Start begins polling in a goroutine. The returned channel closes once the
// loop has stopped after ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) <-chan struct{} {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	d.logger.Info("outbox dispatcher started", "interval", d.interval, "batch_size", d.batchSize, "sinks", names)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				d.logger.Info("outbox dispatcher stopped")
				return
			case <-ticker.C:
				if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
					d.logger.Error("outbox dispatch error", "error", err)
				}
			}
		}
	}()
	return done
}

// DispatchOnce claims one batch, delivers it in order and removes the
// delivered prefix. Delivery stops at the first event some sink could not
// take; it and everything after it stay pending for the next pass.
//
// Stores that lock fetched rows keep the batch claimed in a transaction for
// the whole pass. Other stores would hold their write lock across sink I/O
// that way, so the batch is read, delivered and then marked outside any
// transaction.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	var (
		delivered int
		err       error
	)
	if locker, ok := d.store.(repository.OutboxRowLocker); ok && locker.LocksOutboxRows() {
		err = d.store.WithTx(ctx, func(tx repository.Store) error {
			delivered, err = d.drain(ctx, tx.Outbox())
			return err
		})
	} else {
		delivered, err = d.drain(ctx, d.store.Outbox())
	}
	if err != nil {
		return 0, err
	}

	if delivered > 0 {
		d.logger.Debug("outbox dispatch complete", "published", delivered)
	}
	return delivered, nil
}

func (d *Dispatcher) drain(ctx context.Context, outbox repository.OutboxRepository) (int, error) {
	batch, err := outbox.FetchUnpublished(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}

	ids := make([]int64, 0, len(batch))
	for _, event := range batch {
		if !d.deliver(ctx, event) {
			break
		}
		ids = append(ids, event.SeqID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := outbox.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	return len(ids), nil
}

// deliver hands event to every sink and reports whether all of them took it.
func (d *Dispatcher) deliver(ctx context.Context, event domain.OutboxDraft) bool {
	for _, sink := range d.sinks {
		name := sink.Name()
		if d.breaker != nil {
			if res := d.breaker.Check(ctx, name); !res.Allowed {
				metrics.OutboxFailed(name, "circuit_open")
				return false
			}
		}

		if err := sink.Deliver(ctx, event); err != nil {
			if d.breaker != nil {
				d.breaker.RecordFailure(name)
			}
			metrics.OutboxFailed(name, "error")
			d.logger.Error("event delivery failed",
				"sink", name,
				"event_id", event.EventID.String(),
				"event_type", string(event.EventType),
				"error", err,
			)
			return false
		}

		if d.breaker != nil {
			d.breaker.RecordSuccess(name)
		}
		metrics.OutboxDispatched(name)
	}
	return true
}
