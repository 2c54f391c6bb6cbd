package subscription

import (
	"context"
	"time"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	// GetCurrentByTenant returns the row whose status is Active, Trialing or PastDue, or nil.
	GetCurrentByTenant(ctx context.Context, tenantID uint) (*Subscription, error)
	// Update writes with a version check and returns db.ErrVersionConflict when the row moved on.
	Update(ctx context.Context, subscription *Subscription) error

	FindExpiredGracePeriods(ctx context.Context, now time.Time) ([]*Subscription, error)
	// FindExhaustedRetriesWithoutGrace matches rows whose first failure is at or before cutoff.
	FindExhaustedRetriesWithoutGrace(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
}

type PlanRepository interface {
	GetByID(ctx context.Context, id uint) (*Plan, error)
	GetByProviderPriceID(ctx context.Context, priceID string) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
}
