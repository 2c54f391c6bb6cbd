package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testPolicy() entitlement.Policy {
	return entitlement.Policy{
		MaxPaymentRetries:             4,
		GracePeriodDays:               7,
		UseIntelligentGracePeriod:     true,
		StripeRetryPeriodDays:         25,
		RetryAttemptGracePeriodHours:  24,
		AutoDowngradeAfterGracePeriod: true,
		AutoDowngradeAfterMaxRetries:  true,
		DefaultDowngradePlanName:      "Free",
	}
}

func testFreePlan(t *testing.T) *subscription.Plan {
	t.Helper()
	p, err := subscription.ReconstructPlan(subscription.PlanParams{ID: 1, Name: "Free", MaxUsers: 1, MaxChannels: 1, Currency: "usd"})
	require.NoError(t, err)
	return p
}

func testProPlan(t *testing.T) *subscription.Plan {
	t.Helper()
	p, err := subscription.ReconstructPlan(subscription.PlanParams{ID: 2, Name: "Pro", MaxUsers: 5, MaxChannels: 3, Price: 4900, Currency: "usd", ProviderPriceID: "price_pro"})
	require.NoError(t, err)
	return p
}

func planRepoWith(plans ...*subscription.Plan) *mockPlanRepository {
	return &mockPlanRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Plan, error) {
			for _, p := range plans {
				if p.ID() == id {
					return p, nil
				}
			}
			return nil, nil
		},
		GetByNameFunc: func(ctx context.Context, name string) (*subscription.Plan, error) {
			for _, p := range plans {
				if p.Name() == name {
					return p, nil
				}
			}
			return nil, nil
		},
	}
}

func buildSub(t *testing.T, id uint, mutate func(p *subscription.SubscriptionParams)) *subscription.Subscription {
	t.Helper()
	p := subscription.SubscriptionParams{
		ID:                     id,
		TenantID:               100 + id,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_paid",
		Status:                 vo.StatusActive,
		CurrentPeriodStart:     testNow.AddDate(0, -1, 0),
		CurrentPeriodEnd:       testNow.AddDate(0, 0, 5),
		Amount:                 4900,
		Currency:               "usd",
		Version:                3,
		CreatedAt:              testNow.AddDate(0, -6, 0),
		UpdatedAt:              testNow.AddDate(0, 0, -1),
	}
	if mutate != nil {
		mutate(&p)
	}
	s, err := subscription.ReconstructSubscription(p)
	require.NoError(t, err)
	return s
}

func inExpiredGrace(p *subscription.SubscriptionParams) {
	first := testNow.AddDate(0, 0, -30)
	end := testNow.Add(-time.Hour)
	p.Status = vo.StatusPastDue
	p.PaymentRetryCount = 2
	p.FirstPaymentFailureAt = &first
	p.LastPaymentFailedAt = &first
	p.IsInGracePeriod = true
	p.GracePeriodEndsAt = &end
}

func exhaustedWithoutGrace(p *subscription.SubscriptionParams) {
	first := testNow.AddDate(0, 0, -26)
	p.Status = vo.StatusPastDue
	p.PaymentRetryCount = 4
	p.FirstPaymentFailureAt = &first
	p.LastPaymentFailedAt = &first
	p.HasReachedMaxRetries = true
}

type sweepFixture struct {
	uc        *ExpireGracePeriodsUseCase
	repo      *mockSubscriptionRepository
	gateway   *mockPaymentGateway
	committer *recordingCommitter
	recorder  *countingSweepRecorder
}

// newSweepFixture serves each row freshly reconstructed from rows on every load.
func newSweepFixture(t *testing.T, policy entitlement.Policy, rows map[uint]func(p *subscription.SubscriptionParams)) *sweepFixture {
	t.Helper()
	load := func(id uint) *subscription.Subscription {
		mutate, ok := rows[id]
		if !ok {
			return nil
		}
		return buildSub(t, id, mutate)
	}

	f := &sweepFixture{
		repo: &mockSubscriptionRepository{
			GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
				return load(id), nil
			},
		},
		gateway:   &mockPaymentGateway{},
		committer: &recordingCommitter{},
		recorder:  &countingSweepRecorder{},
	}
	f.uc = NewExpireGracePeriodsUseCase(f.repo, planRepoWith(testFreePlan(t), testProPlan(t)), f.gateway, f.committer, policy, time.Second, nopLogger{})
	f.uc.now = func() time.Time { return testNow }
	f.uc.SetSweepRecorder(f.recorder)
	return f
}

func TestExpireGracePeriods_ExpiresAndDowngrades(t *testing.T) {
	f := newSweepFixture(t, testPolicy(), map[uint]func(p *subscription.SubscriptionParams){10: inExpiredGrace})
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace)}, nil
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, f.repo.updated, 1)
	assert.Equal(t, vo.StatusCanceled, f.repo.updated[0].Status())
	assert.False(t, f.repo.updated[0].IsInGracePeriod())
	require.Len(t, f.repo.created, 1)
	assert.Equal(t, uint(1), f.repo.created[0].PlanID())
	assert.True(t, f.repo.created[0].IsFreeTier())
	assert.Equal(t, []cancelCall{{providerSubscriptionID: "sub_paid", immediate: true}}, f.gateway.cancels)
	assert.Equal(t, 1, f.recorder.outcomes[SweepOutcomeExpired])

	var actions []subscription.Action
	for _, e := range f.committer.published {
		switch ev := e.(type) {
		case *subscription.SubscriptionStatusEvent:
			actions = append(actions, ev.Action)
		case *subscription.PaymentStatusEvent:
			actions = append(actions, ev.Action)
		}
	}
	assert.Equal(t, []subscription.Action{subscription.ActionGracePeriodEnd, subscription.ActionCancel, subscription.ActionCreate}, actions)
}

func TestExpireGracePeriods_UnionIsDeduplicated(t *testing.T) {
	rows := map[uint]func(p *subscription.SubscriptionParams){
		10: inExpiredGrace,
		11: exhaustedWithoutGrace,
	}
	f := newSweepFixture(t, testPolicy(), rows)
	var gotCutoff time.Time
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace)}, nil
	}
	f.repo.FindExhaustedRetriesWithoutGraceFunc = func(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
		gotCutoff = cutoff
		return []*subscription.Subscription{buildSub(t, 11, exhaustedWithoutGrace), buildSub(t, 10, inExpiredGrace)}, nil
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, testNow.AddDate(0, 0, -25), gotCutoff)
	assert.Len(t, f.repo.updated, 2)
	assert.Len(t, f.gateway.cancels, 2)
}

func TestExpireGracePeriods_SkipsRowPaidSinceQuery(t *testing.T) {
	// the query saw an expired grace period, the reload sees a recovered subscription
	f := newSweepFixture(t, testPolicy(), map[uint]func(p *subscription.SubscriptionParams){10: nil})
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace)}, nil
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.repo.updated)
	assert.Empty(t, f.gateway.cancels)
	assert.Equal(t, 1, f.recorder.outcomes[SweepOutcomeSkipped])
}

func TestExpireGracePeriods_ItemFailureDoesNotAbortBatch(t *testing.T) {
	rows := map[uint]func(p *subscription.SubscriptionParams){
		10: inExpiredGrace,
		11: inExpiredGrace,
	}
	f := newSweepFixture(t, testPolicy(), rows)
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace), buildSub(t, 11, inExpiredGrace)}, nil
	}
	f.repo.UpdateFunc = func(ctx context.Context, s *subscription.Subscription) error {
		if s.ID() == 10 {
			return errors.New("deadlock detected")
		}
		return nil
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.recorder.outcomes[SweepOutcomeFailed])
	assert.Equal(t, 1, f.recorder.outcomes[SweepOutcomeExpired])
	require.Len(t, f.gateway.cancels, 1)
}

func TestExpireGracePeriods_RemoteCancelFailureKeepsLocalState(t *testing.T) {
	f := newSweepFixture(t, testPolicy(), map[uint]func(p *subscription.SubscriptionParams){10: inExpiredGrace})
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace)}, nil
	}
	f.gateway.CancelSubscriptionFunc = func(ctx context.Context, id string, immediate bool) error {
		return errors.New("provider unavailable")
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, vo.StatusCanceled, f.repo.updated[0].Status())
}

func TestExpireGracePeriods_NoDowngradeWhenPolicyDisallows(t *testing.T) {
	policy := testPolicy()
	policy.AutoDowngradeAfterGracePeriod = false
	f := newSweepFixture(t, policy, map[uint]func(p *subscription.SubscriptionParams){10: inExpiredGrace})
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return []*subscription.Subscription{buildSub(t, 10, inExpiredGrace)}, nil
	}

	count, err := f.uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, vo.StatusCanceled, f.repo.updated[0].Status())
	assert.Empty(t, f.repo.created)
}

func TestExpireGracePeriods_QueryFailureIsReturned(t *testing.T) {
	f := newSweepFixture(t, testPolicy(), nil)
	f.repo.FindExpiredGracePeriodsFunc = func(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
		return nil, errors.New("connection refused")
	}

	count, err := f.uc.Execute(context.Background())

	require.Error(t, err)
	assert.Zero(t, count)
}
