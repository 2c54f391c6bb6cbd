package usecases

import (
	"context"
	"sync"
	"time"

	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/domain/tenant"
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

type mockTenantRepository struct {
	GetByIDFunc func(ctx context.Context, id uint) (*tenant.Tenant, error)
}

func (m *mockTenantRepository) GetByID(ctx context.Context, id uint) (*tenant.Tenant, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

type mockPlanRepository struct {
	subscription.PlanRepository
	plans map[uint]*subscription.Plan
}

func (m *mockPlanRepository) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	return m.plans[id], nil
}

type recordingSender struct {
	SendFunc func(ctx context.Context, msg EmailMessage) error
	sent     []EmailMessage
}

func (s *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.SendFunc != nil {
		if err := s.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, msg)
	return nil
}

type memDeduplicator struct {
	mu       sync.Mutex
	keys     map[string]time.Duration
	released []string
	ClaimErr error
}

func newMemDeduplicator() *memDeduplicator {
	return &memDeduplicator{keys: map[string]time.Duration{}}
}

func (d *memDeduplicator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ClaimErr != nil {
		return false, d.ClaimErr
	}
	if _, ok := d.keys[key]; ok {
		return false, nil
	}
	d.keys[key] = ttl
	return true, nil
}

func (d *memDeduplicator) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	d.released = append(d.released, key)
	return nil
}
