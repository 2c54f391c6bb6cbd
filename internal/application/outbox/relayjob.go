package outbox

import (
	"context"
	"fmt"
	"time"

	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/logger"
)

const (
	defaultRelayBatchSize = 100
	// relayMinAge keeps the relay away from records whose post-commit publish may still be in flight.
	relayMinAge = 30 * time.Second
)

// RelayJob republishes outbox records whose post-commit publish failed or never ran.
type RelayJob struct {
	dispatcher *Dispatcher
	batchSize  int
	logger     logger.Interface
}

// NewRelayJob creates the periodic relay of up to batchSize pending envelopes.
func NewRelayJob(dispatcher *Dispatcher, batchSize int, logger logger.Interface) *RelayJob {
	if batchSize <= 0 {
		batchSize = defaultRelayBatchSize
	}
	return &RelayJob{
		dispatcher: dispatcher,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Execute returns the number of records published in this pass.
func (j *RelayJob) Execute(ctx context.Context) (int, error) {
	pending, err := j.dispatcher.store.ListUnpublished(ctx, biztime.NowUTC().Add(-relayMinAge), j.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished outbox records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	j.logger.Infow("relaying unpublished outbox records", "count", len(pending))
	return j.dispatcher.publishAll(ctx, pending), nil
}
