package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/shared/db"
	apperrors "chatdesk/internal/shared/errors"
)

func newCancelUseCase(t *testing.T, repo *mockSubscriptionRepository, gateway *mockPaymentGateway) (*CancelSubscriptionUseCase, *recordingCommitter) {
	t.Helper()
	committer := &recordingCommitter{}
	uc := NewCancelSubscriptionUseCase(repo, planRepoWith(testFreePlan(t), testProPlan(t)), gateway, committer, testPolicy(), time.Second, nopLogger{})
	uc.now = func() time.Time { return testNow }
	return uc, committer
}

func TestCancelSubscription_ImmediateDowngradesAndCancelsRemotely(t *testing.T) {
	repo := &mockSubscriptionRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
			return buildSub(t, id, nil), nil
		},
	}
	gateway := &mockPaymentGateway{}
	uc, committer := newCancelUseCase(t, repo, gateway)

	result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10, Immediate: true})

	require.NoError(t, err)
	assert.Equal(t, "canceled", result.Status)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].IsFreeTier())
	assert.Equal(t, vo.StatusActive, repo.created[0].Status())
	assert.Len(t, committer.published, 2)
	assert.Equal(t, []cancelCall{{providerSubscriptionID: "sub_paid", immediate: true}}, gateway.cancels)

	ev := committer.published[0].(*subscription.SubscriptionStatusEvent)
	assert.True(t, ev.IsImmediate)
	assert.Equal(t, subscription.ReasonUserRequested, ev.Reason)
}

func TestCancelSubscription_AtPeriodEndKeepsAccess(t *testing.T) {
	repo := &mockSubscriptionRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
			return buildSub(t, id, nil), nil
		},
	}
	gateway := &mockPaymentGateway{}
	uc, _ := newCancelUseCase(t, repo, gateway)

	result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10, Reason: "too_expensive"})

	require.NoError(t, err)
	assert.Equal(t, "active", result.Status)
	assert.True(t, result.CancelAtPeriodEnd)
	assert.Empty(t, repo.created)
	assert.Equal(t, []cancelCall{{providerSubscriptionID: "sub_paid", immediate: false}}, gateway.cancels)
}

func TestCancelSubscription_RemoteFailureDoesNotBlock(t *testing.T) {
	repo := &mockSubscriptionRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
			return buildSub(t, id, nil), nil
		},
	}
	gateway := &mockPaymentGateway{
		CancelSubscriptionFunc: func(ctx context.Context, id string, immediate bool) error {
			return errors.New("stripe: timeout")
		},
	}
	uc, _ := newCancelUseCase(t, repo, gateway)

	result, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10, Immediate: true})

	require.NoError(t, err)
	assert.Equal(t, "canceled", result.Status)
}

func TestCancelSubscription_FreeTierSkipsProvider(t *testing.T) {
	repo := &mockSubscriptionRepository{
		GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
			return buildSub(t, id, func(p *subscription.SubscriptionParams) {
				p.PlanID = 1
				p.ProviderSubscriptionID = "free_x"
				p.Amount = 0
			}), nil
		},
	}
	gateway := &mockPaymentGateway{}
	uc, _ := newCancelUseCase(t, repo, gateway)

	_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10, Immediate: true})

	require.NoError(t, err)
	assert.Empty(t, gateway.cancels)
	assert.Empty(t, repo.created)
}

func TestCancelSubscription_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		uc, _ := newCancelUseCase(t, &mockSubscriptionRepository{}, &mockPaymentGateway{})

		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 404})

		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("already canceled", func(t *testing.T) {
		repo := &mockSubscriptionRepository{
			GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
				return buildSub(t, id, func(p *subscription.SubscriptionParams) {
					canceledAt := testNow.AddDate(0, 0, -1)
					p.Status = vo.StatusCanceled
					p.CanceledAt = &canceledAt
				}), nil
			},
		}
		uc, _ := newCancelUseCase(t, repo, &mockPaymentGateway{})

		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10, Immediate: true})

		assert.True(t, apperrors.IsConflictError(err))
	})

	t.Run("persistent version conflict", func(t *testing.T) {
		repo := &mockSubscriptionRepository{
			GetByIDFunc: func(ctx context.Context, id uint) (*subscription.Subscription, error) {
				return buildSub(t, id, nil), nil
			},
			UpdateFunc: func(ctx context.Context, s *subscription.Subscription) error {
				return db.ErrVersionConflict
			},
		}
		gateway := &mockPaymentGateway{}
		uc, _ := newCancelUseCase(t, repo, gateway)

		_, err := uc.Execute(context.Background(), CancelSubscriptionCommand{SubscriptionID: 10})

		assert.ErrorIs(t, err, db.ErrVersionConflict)
		assert.Empty(t, gateway.cancels)
	})
}
