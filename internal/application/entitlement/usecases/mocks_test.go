package usecases

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
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

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type storedEntity struct {
	id          uint
	channelType entitlement.ChannelType
	status      tenant.EntityStatus
	createdAt   time.Time
}

// memEntityStore backs both tenant repositories; reads return fresh aggregates.
type memEntityStore struct {
	mu      sync.Mutex
	rows    map[uint]*storedEntity
	writes  int
	FailOn  uint
	failErr error
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{rows: map[uint]*storedEntity{}}
}

func (s *memEntityStore) add(id uint, rank int, channelType entitlement.ChannelType, status tenant.EntityStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = &storedEntity{id: id, channelType: channelType, status: status, createdAt: base.Add(time.Duration(rank) * time.Hour)}
}

func (s *memEntityStore) sortedIDs() []uint {
	ids := make([]uint, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *memEntityStore) UpdateStatus(ctx context.Context, id uint, status tenant.EntityStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn == id {
		return s.failErr
	}
	s.rows[id].status = status
	s.writes++
	return nil
}

func (s *memEntityStore) statuses() map[uint]tenant.EntityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]tenant.EntityStatus, len(s.rows))
	for id, r := range s.rows {
		out[id] = r.status
	}
	return out
}

func (s *memEntityStore) activeIDs() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint
	for _, id := range s.sortedIDs() {
		if s.rows[id].status == tenant.EntityStatusActive {
			out = append(out, id)
		}
	}
	return out
}

type memUserRepo struct{ *memEntityStore }

func (r memUserRepo) ListByTenant(ctx context.Context, tenantID uint) ([]*tenant.TenantUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*tenant.TenantUser
	for _, id := range r.sortedIDs() {
		row := r.rows[id]
		u, err := tenant.ReconstructTenantUser(row.id, tenantID, "user@example.com", row.status, nil, nil, row.createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

type memChannelRepo struct{ *memEntityStore }

func (r memChannelRepo) ListByTenant(ctx context.Context, tenantID uint) ([]*tenant.ChannelAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*tenant.ChannelAccount
	for _, id := range r.sortedIDs() {
		row := r.rows[id]
		c, err := tenant.ReconstructChannelAccount(row.id, tenantID, row.channelType, "channel", row.status, nil, nil, row.createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type mockSubscriptionRepository struct {
	subscription.SubscriptionRepository
	GetCurrentByTenantFunc func(ctx context.Context, tenantID uint) (*subscription.Subscription, error)
}

func (m *mockSubscriptionRepository) GetCurrentByTenant(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
	if m.GetCurrentByTenantFunc != nil {
		return m.GetCurrentByTenantFunc(ctx, tenantID)
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

type recordingCommitter struct {
	mu        sync.Mutex
	published []events.DomainEvent
}

func (c *recordingCommitter) Commit(ctx context.Context, work outbox.UnitOfWork) error {
	raised, err := work(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.published = append(c.published, raised...)
	c.mu.Unlock()
	return nil
}

type countingFlipRecorder struct {
	flips map[tenant.EntityStatus]int
}

func (r *countingFlipRecorder) RecordFlip(kind tenant.EntityKind, status tenant.EntityStatus) {
	if r.flips == nil {
		r.flips = map[tenant.EntityStatus]int{}
	}
	r.flips[status]++
}

type syncFixture struct {
	uc        *SyncTenantEntitlementsUseCase
	users     *memEntityStore
	channels  *memEntityStore
	plans     *mockPlanRepository
	subs      *mockSubscriptionRepository
	committer *recordingCommitter
}

func newSyncFixture(t *testing.T, plan subscription.PlanParams) *syncFixture {
	t.Helper()
	p, err := subscription.ReconstructPlan(plan)
	require.NoError(t, err)

	f := &syncFixture{
		users:     newMemEntityStore(),
		channels:  newMemEntityStore(),
		plans:     &mockPlanRepository{plans: map[uint]*subscription.Plan{p.ID(): p}},
		committer: &recordingCommitter{},
	}
	f.subs = &mockSubscriptionRepository{
		GetCurrentByTenantFunc: func(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
			return subscription.ReconstructSubscription(subscription.SubscriptionParams{
				ID:                     1,
				TenantID:               tenantID,
				PlanID:                 p.ID(),
				ProviderSubscriptionID: "sub_1",
				Status:                 "active",
				Version:                1,
			})
		},
	}
	f.uc = NewSyncTenantEntitlementsUseCase(f.subs, f.plans, memUserRepo{f.users}, memChannelRepo{f.channels}, f.committer, nopLogger{})
	return f
}

func (f *syncFixture) setPlan(t *testing.T, plan subscription.PlanParams) {
	t.Helper()
	p, err := subscription.ReconstructPlan(plan)
	require.NoError(t, err)
	f.plans.plans[p.ID()] = p
}
