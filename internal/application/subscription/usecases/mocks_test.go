package usecases

import (
	"context"
	"time"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)                   {}
func (nopLogger) Info(msg string, args ...any)                    {}
func (nopLogger) Warn(msg string, args ...any)                    {}
func (nopLogger) Error(msg string, args ...any)                   {}
func (nopLogger) Fatal(msg string, args ...any)                   {}
func (n nopLogger) With(args ...any) logger.Interface             { return n }
func (n nopLogger) Named(name string) logger.Interface            { return n }
func (nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}

type mockSubscriptionRepository struct {
	CreateFunc                           func(ctx context.Context, s *subscription.Subscription) error
	GetByIDFunc                          func(ctx context.Context, id uint) (*subscription.Subscription, error)
	GetByProviderIDFunc                  func(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error)
	GetCurrentByTenantFunc               func(ctx context.Context, tenantID uint) (*subscription.Subscription, error)
	UpdateFunc                           func(ctx context.Context, s *subscription.Subscription) error
	FindExpiredGracePeriodsFunc          func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error)
	FindExhaustedRetriesWithoutGraceFunc func(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error)

	created []*subscription.Subscription
	updated []*subscription.Subscription
}

func (m *mockSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, s); err != nil {
			return err
		}
	}
	if s.ID() == 0 {
		s.SetID(uint(1000 + len(m.created)))
	}
	m.created = append(m.created, s)
	return nil
}

func (m *mockSubscriptionRepository) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSubscriptionRepository) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	if m.GetByProviderIDFunc != nil {
		return m.GetByProviderIDFunc(ctx, providerSubscriptionID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepository) GetCurrentByTenant(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
	if m.GetCurrentByTenantFunc != nil {
		return m.GetCurrentByTenantFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx, s); err != nil {
			return err
		}
	}
	m.updated = append(m.updated, s)
	return nil
}

func (m *mockSubscriptionRepository) FindExpiredGracePeriods(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	if m.FindExpiredGracePeriodsFunc != nil {
		return m.FindExpiredGracePeriodsFunc(ctx, now)
	}
	return nil, nil
}

func (m *mockSubscriptionRepository) FindExhaustedRetriesWithoutGrace(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	if m.FindExhaustedRetriesWithoutGraceFunc != nil {
		return m.FindExhaustedRetriesWithoutGraceFunc(ctx, cutoff)
	}
	return nil, nil
}

type mockPlanRepository struct {
	GetByIDFunc              func(ctx context.Context, id uint) (*subscription.Plan, error)
	GetByProviderPriceIDFunc func(ctx context.Context, priceID string) (*subscription.Plan, error)
	GetByNameFunc            func(ctx context.Context, name string) (*subscription.Plan, error)
}

func (m *mockPlanRepository) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPlanRepository) GetByProviderPriceID(ctx context.Context, priceID string) (*subscription.Plan, error) {
	if m.GetByProviderPriceIDFunc != nil {
		return m.GetByProviderPriceIDFunc(ctx, priceID)
	}
	return nil, nil
}

func (m *mockPlanRepository) GetByName(ctx context.Context, name string) (*subscription.Plan, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, nil
}

type cancelCall struct {
	providerSubscriptionID string
	immediate              bool
}

type mockPaymentGateway struct {
	CancelSubscriptionFunc func(ctx context.Context, id string, immediate bool) error

	cancels []cancelCall
}

func (m *mockPaymentGateway) GetSubscription(ctx context.Context, id string) (*subscription.ProviderState, error) {
	return nil, nil
}

func (m *mockPaymentGateway) CancelSubscription(ctx context.Context, id string, immediate bool) error {
	m.cancels = append(m.cancels, cancelCall{providerSubscriptionID: id, immediate: immediate})
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, id, immediate)
	}
	return nil
}

func (m *mockPaymentGateway) VerifyWebhookSignature(body []byte, signature string) (*paymentgateway.Event, error) {
	return nil, nil
}

type recordingCommitter struct {
	published []events.DomainEvent
}

func (c *recordingCommitter) Commit(ctx context.Context, work outbox.UnitOfWork) error {
	raised, err := work(ctx)
	if err != nil {
		return err
	}
	c.published = append(c.published, raised...)
	return nil
}

type countingSweepRecorder struct {
	outcomes map[string]int
}

func (r *countingSweepRecorder) RecordSweep(outcome string) {
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}
