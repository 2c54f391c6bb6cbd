package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/shared/db"
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

// memSubscriptionRepo stores snapshots so callers never share aggregate pointers,
// and enforces the version check the real repository applies.
type memSubscriptionRepo struct {
	mu     sync.Mutex
	rows   map[uint]subscription.SubscriptionParams
	nextID uint

	// UpdateFunc, when set, runs before the versioned write and may fail it.
	UpdateFunc func(ctx context.Context, s *subscription.Subscription) error
	updates    int
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{rows: map[uint]subscription.SubscriptionParams{}, nextID: 100}
}

func paramsOf(s *subscription.Subscription) subscription.SubscriptionParams {
	return subscription.SubscriptionParams{
		ID:                      s.ID(),
		TenantID:                s.TenantID(),
		PlanID:                  s.PlanID(),
		ProviderSubscriptionID:  s.ProviderSubscriptionID(),
		Status:                  s.Status(),
		CurrentPeriodStart:      s.CurrentPeriodStart(),
		CurrentPeriodEnd:        s.CurrentPeriodEnd(),
		CancelAtPeriodEnd:       s.CancelAtPeriodEnd(),
		CanceledAt:              s.CanceledAt(),
		CancellationRequestedAt: s.CancellationRequestedAt(),
		PaymentRetryCount:       s.PaymentRetryCount(),
		FirstPaymentFailureAt:   s.FirstPaymentFailureAt(),
		LastPaymentFailedAt:     s.LastPaymentFailedAt(),
		NextRetryAt:             s.NextRetryAt(),
		HasReachedMaxRetries:    s.HasReachedMaxRetries(),
		IsInGracePeriod:         s.IsInGracePeriod(),
		GracePeriodEndsAt:       s.GracePeriodEndsAt(),
		Amount:                  s.Amount(),
		Currency:                s.Currency(),
		Version:                 s.Version(),
		CreatedAt:               s.CreatedAt(),
		UpdatedAt:               s.UpdatedAt(),
	}
}

func (m *memSubscriptionRepo) seed(t *testing.T, p subscription.SubscriptionParams) {
	t.Helper()
	_, err := subscription.ReconstructSubscription(p)
	require.NoError(t, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
}

func (m *memSubscriptionRepo) load(p subscription.SubscriptionParams) *subscription.Subscription {
	s, err := subscription.ReconstructSubscription(p)
	if err != nil {
		panic(err)
	}
	return s
}

func (m *memSubscriptionRepo) Create(ctx context.Context, s *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.SetID(m.nextID)
	if s.Version() == 0 {
		s.SetVersion(1)
	}
	m.rows[s.ID()] = paramsOf(s)
	return nil
}

func (m *memSubscriptionRepo) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return m.load(p), nil
}

func (m *memSubscriptionRepo) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ProviderSubscriptionID == providerSubscriptionID {
			return m.load(p), nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionRepo) GetCurrentByTenant(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *subscription.SubscriptionParams
	for id := range m.rows {
		p := m.rows[id]
		if p.TenantID != tenantID || !p.Status.IsCurrent() {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			latest = &p
		}
	}
	if latest == nil {
		return nil, nil
	}
	return m.load(*latest), nil
}

func (m *memSubscriptionRepo) Update(ctx context.Context, s *subscription.Subscription) error {
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[s.ID()]
	if !ok || stored.Version != s.Version() {
		return db.ErrVersionConflict
	}
	s.SetVersion(s.Version() + 1)
	m.rows[s.ID()] = paramsOf(s)
	m.updates++
	return nil
}

func (m *memSubscriptionRepo) FindExpiredGracePeriods(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return nil, nil
}

func (m *memSubscriptionRepo) FindExhaustedRetriesWithoutGrace(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	return nil, nil
}

func (m *memSubscriptionRepo) all() []subscription.SubscriptionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]subscription.SubscriptionParams, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out
}

type mockPlanRepository struct {
	plans []*subscription.Plan
}

func (m *mockPlanRepository) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	for _, p := range m.plans {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPlanRepository) GetByProviderPriceID(ctx context.Context, priceID string) (*subscription.Plan, error) {
	for _, p := range m.plans {
		if p.ProviderPriceID() == priceID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPlanRepository) GetByName(ctx context.Context, name string) (*subscription.Plan, error) {
	for _, p := range m.plans {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, nil
}

type memProcessedEvents struct {
	mu   sync.Mutex
	seen map[string]string
}

func newMemProcessedEvents() *memProcessedEvents {
	return &memProcessedEvents{seen: map[string]string{}}
}

func (m *memProcessedEvents) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[providerEventID]
	return ok, nil
}

func (m *memProcessedEvents) MarkProcessed(ctx context.Context, providerEventID, eventType string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[providerEventID] = eventType
	return nil
}

type mockPaymentGateway struct {
	GetSubscriptionFunc        func(ctx context.Context, id string) (*subscription.ProviderState, error)
	CancelSubscriptionFunc     func(ctx context.Context, id string, immediate bool) error
	VerifyWebhookSignatureFunc func(body []byte, signature string) (*paymentgateway.Event, error)
}

func (m *mockPaymentGateway) GetSubscription(ctx context.Context, id string) (*subscription.ProviderState, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPaymentGateway) CancelSubscription(ctx context.Context, id string, immediate bool) error {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, id, immediate)
	}
	return nil
}

func (m *mockPaymentGateway) VerifyWebhookSignature(body []byte, signature string) (*paymentgateway.Event, error) {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(body, signature)
	}
	return nil, nil
}

// recordingCommitter runs work inline and keeps the events of successful commits.
type recordingCommitter struct {
	published []events.DomainEvent
	commits   int
}

func (c *recordingCommitter) Commit(ctx context.Context, work outbox.UnitOfWork) error {
	raised, err := work(ctx)
	if err != nil {
		return err
	}
	c.commits++
	c.published = append(c.published, raised...)
	return nil
}

func (c *recordingCommitter) actions() []subscription.Action {
	var out []subscription.Action
	for _, e := range c.published {
		switch ev := e.(type) {
		case *subscription.SubscriptionStatusEvent:
			out = append(out, ev.Action)
		case *subscription.PaymentStatusEvent:
			out = append(out, ev.Action)
		}
	}
	return out
}
