package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	apperrors "chatdesk/internal/shared/errors"
)

func newCreateUseCase(t *testing.T, repo *mockSubscriptionRepository) (*CreateSubscriptionUseCase, *recordingCommitter) {
	t.Helper()
	committer := &recordingCommitter{}
	uc := NewCreateSubscriptionUseCase(repo, planRepoWith(testFreePlan(t), testProPlan(t)), committer, nopLogger{})
	uc.now = func() time.Time { return testNow }
	return uc, committer
}

func TestCreateSubscription_FreePlan(t *testing.T) {
	repo := &mockSubscriptionRepository{}
	uc, committer := newCreateUseCase(t, repo)

	result, err := uc.Execute(context.Background(), CreateSubscriptionCommand{TenantID: 7, PlanID: 1})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "active", result.Status)
	assert.Equal(t, uint(7), result.TenantID)
	require.Len(t, repo.created, 1)
	require.Len(t, committer.published, 1)
	ev := committer.published[0].(*subscription.SubscriptionStatusEvent)
	assert.Equal(t, subscription.ActionCreate, ev.Action)
	assert.Equal(t, result.ID, ev.SubscriptionID)
}

func TestCreateSubscription_SupersedesCurrentRow(t *testing.T) {
	repo := &mockSubscriptionRepository{
		GetCurrentByTenantFunc: func(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
			return buildSub(t, 5, func(p *subscription.SubscriptionParams) {
				p.TenantID = tenantID
				p.PlanID = 1
				p.ProviderSubscriptionID = "free_old"
				p.Amount = 0
			}), nil
		},
	}
	uc, committer := newCreateUseCase(t, repo)

	result, err := uc.Execute(context.Background(), CreateSubscriptionCommand{
		TenantID:               7,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_new",
		Status:                 vo.StatusActive,
	})

	require.NoError(t, err)
	assert.Equal(t, "active", result.Status)
	assert.Equal(t, "sub_new", result.ProviderSubscriptionID)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, vo.StatusCanceled, repo.updated[0].Status())
	assert.Len(t, committer.published, 2)
}

func TestCreateSubscription_Validation(t *testing.T) {
	tests := []struct {
		name     string
		cmd      CreateSubscriptionCommand
		errType  apperrors.ErrorType
		existing bool
	}{
		{name: "missing tenant", cmd: CreateSubscriptionCommand{PlanID: 1}, errType: apperrors.ErrorTypeValidation},
		{name: "bad status", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2, Status: "paused"}, errType: apperrors.ErrorTypeValidation},
		{name: "canceled status", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2, ProviderSubscriptionID: "sub_x", Status: vo.StatusCanceled}, errType: apperrors.ErrorTypeValidation},
		{name: "incomplete_expired status", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2, ProviderSubscriptionID: "sub_x", Status: vo.StatusIncompleteExpired}, errType: apperrors.ErrorTypeValidation},
		{name: "unpaid status", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2, ProviderSubscriptionID: "sub_x", Status: vo.StatusUnpaid}, errType: apperrors.ErrorTypeValidation},
		{name: "unknown plan", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 99}, errType: apperrors.ErrorTypeNotFound},
		{name: "paid plan without provider id", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2}, errType: apperrors.ErrorTypeValidation},
		{name: "provider id already linked", cmd: CreateSubscriptionCommand{TenantID: 7, PlanID: 2, ProviderSubscriptionID: "sub_paid"}, errType: apperrors.ErrorTypeConflict, existing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSubscriptionRepository{}
			if tt.existing {
				repo.GetByProviderIDFunc = func(ctx context.Context, id string) (*subscription.Subscription, error) {
					return buildSub(t, 3, nil), nil
				}
			}
			uc, _ := newCreateUseCase(t, repo)

			_, err := uc.Execute(context.Background(), tt.cmd)

			require.Error(t, err)
			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.errType, appErr.Type)
			assert.Empty(t, repo.created)
			assert.Empty(t, repo.updated)
		})
	}
}

func TestCreateSubscription_IncompleteKeepsCurrentRow(t *testing.T) {
	lookups := 0
	repo := &mockSubscriptionRepository{
		GetCurrentByTenantFunc: func(ctx context.Context, tenantID uint) (*subscription.Subscription, error) {
			lookups++
			return buildSub(t, 5, func(p *subscription.SubscriptionParams) {
				p.TenantID = tenantID
				p.PlanID = 1
				p.ProviderSubscriptionID = "free_old"
				p.Amount = 0
			}), nil
		},
	}
	uc, committer := newCreateUseCase(t, repo)

	result, err := uc.Execute(context.Background(), CreateSubscriptionCommand{
		TenantID:               7,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_pending",
	})

	require.NoError(t, err)
	assert.Equal(t, "incomplete", result.Status)
	assert.Zero(t, lookups)
	assert.Empty(t, repo.updated)
	require.Len(t, repo.created, 1)
	require.Len(t, committer.published, 1)
	assert.Equal(t, subscription.ActionCreate, committer.published[0].(*subscription.SubscriptionStatusEvent).Action)
}
