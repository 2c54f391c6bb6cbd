package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrVersionConflict is returned by repositories when a versioned update matched no row.
var ErrVersionConflict = errors.New("optimistic lock conflict: record was modified concurrently")

const defaultConflictRetries = 3

// RetryOnConflict re-runs fn while it fails with ErrVersionConflict.
// fn must reload its inputs on every attempt. Any other error stops the retry loop.
func RetryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrVersionConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(defaultConflictRetries))
	return err
}
