package outbox

import (
	"context"
	"time"
)

// Record is one envelope waiting for, or already past, delivery to a routing key.
type Record struct {
	ID          uint
	Envelope    Envelope
	RoutingKey  string
	Attempts    int
	LastError   string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

type Store interface {
	// Append must run inside the caller's transaction; it assigns record IDs.
	Append(ctx context.Context, records []*Record) error
	MarkPublished(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	// ListUnpublished returns records created before the cutoff, oldest first.
	ListUnpublished(ctx context.Context, createdBefore time.Time, limit int) ([]*Record, error)
}

// TransactionRunner is satisfied by db.TransactionManager.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PublishRecorder observes publish outcomes; it may be nil.
type PublishRecorder interface {
	RecordPublish(routingKey string, success bool)
}
