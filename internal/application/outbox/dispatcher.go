package outbox

import (
	"context"
	"fmt"
	"time"

	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/logger"
)

// UnitOfWork mutates state inside a transaction and returns the events it raised.
type UnitOfWork func(txCtx context.Context) ([]events.DomainEvent, error)

type Dispatcher struct {
	store    Store
	bus      MessageBus
	tx       TransactionRunner
	recorder PublishRecorder
	logger   logger.Interface
}

// NewDispatcher creates a dispatcher that stores events in the unit of work and relays them through bus.
func NewDispatcher(store Store, bus MessageBus, tx TransactionRunner, logger logger.Interface) *Dispatcher {
	return &Dispatcher{
		store:  store,
		bus:    bus,
		tx:     tx,
		logger: logger,
	}
}

// SetPublishRecorder sets the metrics hook (optional dependency injection)
func (d *Dispatcher) SetPublishRecorder(r PublishRecorder) {
	d.recorder = r
}

// Commit runs work in a transaction, appends its events to the outbox in the
// same transaction, and publishes them only after commit. A failed publish is
// left in the outbox for RelayJob; it never fails the commit.
func (d *Dispatcher) Commit(ctx context.Context, work UnitOfWork) error {
	var records []*Record
	err := d.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		raised, err := work(txCtx)
		if err != nil {
			return err
		}
		records, err = toRecords(raised, biztime.NowUTC())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return d.store.Append(txCtx, records)
	})
	if err != nil {
		return err
	}

	d.publishAll(ctx, records)
	return nil
}

func toRecords(raised []events.DomainEvent, now time.Time) ([]*Record, error) {
	var records []*Record
	for _, e := range raised {
		env, err := NewEnvelope(e)
		if err != nil {
			return nil, err
		}
		for _, key := range routingKeysFor(e) {
			records = append(records, &Record{
				Envelope:   env,
				RoutingKey: key,
				CreatedAt:  now,
			})
		}
	}
	return records, nil
}

func (d *Dispatcher) publishAll(ctx context.Context, records []*Record) int {
	published := 0
	for _, r := range records {
		if err := d.publish(ctx, r); err != nil {
			d.logger.Warnw("outbox publish failed, relay will retry",
				"outbox_id", r.ID,
				"event_type", r.Envelope.EventType,
				"routing_key", r.RoutingKey,
				"error", err,
			)
			continue
		}
		published++
	}
	return published
}

func (d *Dispatcher) publish(ctx context.Context, r *Record) error {
	err := d.bus.Publish(ctx, r.Envelope, r.RoutingKey)
	if d.recorder != nil {
		d.recorder.RecordPublish(r.RoutingKey, err == nil)
	}
	if err != nil {
		if markErr := d.store.MarkFailed(ctx, r.ID, err.Error()); markErr != nil {
			d.logger.Errorw("failed to record outbox publish failure", "outbox_id", r.ID, "error", markErr)
		}
		return fmt.Errorf("failed to publish to %s: %w", r.RoutingKey, err)
	}
	if err := d.store.MarkPublished(ctx, r.ID, biztime.NowUTC()); err != nil {
		// the envelope is out; a later relay pass will send a duplicate that consumers absorb
		d.logger.Warnw("failed to mark outbox record published", "outbox_id", r.ID, "error", err)
	}
	return nil
}
