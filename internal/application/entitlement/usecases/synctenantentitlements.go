package usecases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/entitlement"
	"chatdesk/internal/domain/shared/events"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/domain/tenant"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/logger"
)

const (
	ReasonOverLimit  = "over_plan_limit"
	ReasonUnderLimit = "within_plan_limit"
)

// EventCommitter runs a unit of work and publishes its events after commit.
type EventCommitter interface {
	Commit(ctx context.Context, work outbox.UnitOfWork) error
}

// FlipRecorder observes suspend and restore flips; it may be nil.
type FlipRecorder interface {
	RecordFlip(kind tenant.EntityKind, status tenant.EntityStatus)
}

// SyncResult counts the flips written by one sync.
type SyncResult struct {
	TenantID  uint `json:"tenant_id"`
	Suspended int  `json:"suspended"`
	Restored  int  `json:"restored"`
}

// Limits is the entitlement bundle applied by a sync.
type Limits struct {
	MaxUsers    int
	MaxChannels int
	PerType     map[entitlement.ChannelType]int
}

// LimitsFromPlan returns zero limits for a nil plan, which suspends every resource.
func LimitsFromPlan(plan *subscription.Plan) Limits {
	l := Limits{PerType: make(map[entitlement.ChannelType]int, len(entitlement.AllChannelTypes))}
	if plan == nil {
		return l
	}
	l.MaxUsers = plan.MaxUsers()
	l.MaxChannels = plan.MaxChannels()
	for _, t := range entitlement.AllChannelTypes {
		l.PerType[t] = plan.ChannelLimit(t)
	}
	return l
}

// SyncTenantEntitlementsUseCase brings a tenant's users and channels within its current plan.
// The desired partition is computed in memory and only differences are written,
// so running it again with unchanged inputs writes nothing.
type SyncTenantEntitlementsUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	planRepo         subscription.PlanRepository
	userRepo         tenant.TenantUserRepository
	channelRepo      tenant.ChannelAccountRepository
	committer        EventCommitter
	recorder         FlipRecorder
	group            singleflight.Group
	now              func() time.Time
	logger           logger.Interface
}

// NewSyncTenantEntitlementsUseCase creates the entitlement reconciler.
func NewSyncTenantEntitlementsUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	planRepo subscription.PlanRepository,
	userRepo tenant.TenantUserRepository,
	channelRepo tenant.ChannelAccountRepository,
	committer EventCommitter,
	logger logger.Interface,
) *SyncTenantEntitlementsUseCase {
	return &SyncTenantEntitlementsUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		userRepo:         userRepo,
		channelRepo:      channelRepo,
		committer:        committer,
		now:              biztime.NowUTC,
		logger:           logger,
	}
}

// SetFlipRecorder sets the metrics hook (optional dependency injection)
func (uc *SyncTenantEntitlementsUseCase) SetFlipRecorder(r FlipRecorder) {
	uc.recorder = r
}

// SyncTenant coalesces concurrent calls for the same tenant within this process.
func (uc *SyncTenantEntitlementsUseCase) SyncTenant(ctx context.Context, tenantID uint) (*SyncResult, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("tenant ID is required")
	}
	v, err, shared := uc.group.Do(strconv.FormatUint(uint64(tenantID), 10), func() (interface{}, error) {
		return uc.sync(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		uc.logger.Debugw("entitlement sync coalesced", "tenant_id", tenantID)
	}
	return v.(*SyncResult), nil
}

func (uc *SyncTenantEntitlementsUseCase) sync(ctx context.Context, tenantID uint) (*SyncResult, error) {
	limits, err := uc.loadLimits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{TenantID: tenantID}
	err = uc.committer.Commit(ctx, func(txCtx context.Context) ([]events.DomainEvent, error) {
		result.Suspended, result.Restored = 0, 0
		now := uc.now()

		users, err := uc.userRepo.ListByTenant(txCtx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tenant users: %w", err)
		}
		channels, err := uc.channelRepo.ListByTenant(txCtx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to list channel accounts: %w", err)
		}

		var raised []events.DomainEvent
		correlationID := uuid.NewString()

		userDecision := entitlement.Reconcile(users, limits.MaxUsers, nil)
		for _, u := range userDecision.Suspend {
			if err := uc.flip(txCtx, u.ID(), tenant.EntityKindUser, tenant.EntityStatusSuspended, now); err != nil {
				return nil, err
			}
			u.Suspend(now)
			result.Suspended++
			raised = append(raised, entityEvent(tenantID, tenant.EntityKindUser, u.ID(), "", tenant.EntityStatusSuspended, correlationID, now))
		}
		for _, u := range userDecision.Restore {
			if err := uc.flip(txCtx, u.ID(), tenant.EntityKindUser, tenant.EntityStatusActive, now); err != nil {
				return nil, err
			}
			u.Restore(now)
			result.Restored++
			raised = append(raised, entityEvent(tenantID, tenant.EntityKindUser, u.ID(), "", tenant.EntityStatusActive, correlationID, now))
		}

		for _, slot := range planChannels(channels, limits) {
			if slot.suspended == slot.account.IsSuspended() {
				continue
			}
			status := tenant.EntityStatusActive
			if slot.suspended {
				status = tenant.EntityStatusSuspended
			}
			if err := uc.flip(txCtx, slot.account.ID(), tenant.EntityKindChannel, status, now); err != nil {
				return nil, err
			}
			if slot.suspended {
				slot.account.Suspend(now)
				result.Suspended++
			} else {
				slot.account.Restore(now)
				result.Restored++
			}
			raised = append(raised, entityEvent(tenantID, tenant.EntityKindChannel, slot.account.ID(), slot.account.ChannelType(), status, correlationID, now))
		}
		return raised, nil
	})
	if err != nil {
		uc.logger.Errorw("entitlement sync failed", "tenant_id", tenantID, "error", err)
		return nil, err
	}

	if result.Suspended > 0 || result.Restored > 0 {
		uc.logger.Infow("entitlements synchronized",
			"tenant_id", tenantID,
			"suspended", result.Suspended,
			"restored", result.Restored,
		)
	}
	return result, nil
}

func (uc *SyncTenantEntitlementsUseCase) loadLimits(ctx context.Context, tenantID uint) (Limits, error) {
	sub, err := uc.subscriptionRepo.GetCurrentByTenant(ctx, tenantID)
	if err != nil {
		return Limits{}, fmt.Errorf("failed to load current subscription: %w", err)
	}
	if sub == nil {
		uc.logger.Infow("tenant has no current subscription, enforcing zero limits", "tenant_id", tenantID)
		return LimitsFromPlan(nil), nil
	}
	plan, err := uc.planRepo.GetByID(ctx, sub.PlanID())
	if err != nil {
		return Limits{}, fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		// refuse to suspend everything because of a dangling plan reference
		return Limits{}, fmt.Errorf("plan %d of subscription %d: %w", sub.PlanID(), sub.ID(), subscription.ErrPlanNotFound)
	}
	return LimitsFromPlan(plan), nil
}

func (uc *SyncTenantEntitlementsUseCase) flip(ctx context.Context, id uint, kind tenant.EntityKind, status tenant.EntityStatus, now time.Time) error {
	var err error
	switch kind {
	case tenant.EntityKindUser:
		err = uc.userRepo.UpdateStatus(ctx, id, status, now)
	case tenant.EntityKindChannel:
		err = uc.channelRepo.UpdateStatus(ctx, id, status, now)
	}
	if err != nil {
		return fmt.Errorf("failed to set %s %d to %s: %w", kind, id, status, err)
	}
	if uc.recorder != nil {
		uc.recorder.RecordFlip(kind, status)
	}
	return nil
}

func entityEvent(tenantID uint, kind tenant.EntityKind, id uint, channelType entitlement.ChannelType, status tenant.EntityStatus, correlationID string, now time.Time) *tenant.EntityStatusEvent {
	reason := ReasonUnderLimit
	if status == tenant.EntityStatusSuspended {
		reason = ReasonOverLimit
	}
	return &tenant.EntityStatusEvent{
		TenantID:      tenantID,
		EntityKind:    kind,
		EntityID:      id,
		ChannelType:   channelType,
		Status:        status,
		Reason:        reason,
		CorrelationID: correlationID,
		OccurredAt:    now,
	}
}

// channelSlot carries the desired state of one channel while the passes run.
type channelSlot struct {
	account   *tenant.ChannelAccount
	suspended bool
}

func (s *channelSlot) ID() uint             { return s.account.ID() }
func (s *channelSlot) CreatedAt() time.Time { return s.account.CreatedAt() }
func (s *channelSlot) IsSuspended() bool    { return s.suspended }

// planChannels computes the desired channel partition. The per-type pass only
// suspends; every restore happens in the aggregate pass, in creation order, and
// only into a type that still has room.
func planChannels(channels []*tenant.ChannelAccount, limits Limits) []*channelSlot {
	slots := make([]*channelSlot, 0, len(channels))
	byType := make(map[entitlement.ChannelType][]*channelSlot)
	for _, c := range channels {
		slot := &channelSlot{account: c, suspended: c.IsSuspended()}
		slots = append(slots, slot)
		byType[c.ChannelType()] = append(byType[c.ChannelType()], slot)
	}

	activeByType := make(map[entitlement.ChannelType]int)
	for _, t := range entitlement.AllChannelTypes {
		d := entitlement.Reconcile(byType[t], limits.PerType[t], nil)
		for _, s := range d.Suspend {
			s.suspended = true
		}
		for _, s := range byType[t] {
			if !s.suspended {
				activeByType[t]++
			}
		}
	}

	typeHasRoom := func(s *channelSlot) bool {
		t := s.account.ChannelType()
		limit := limits.PerType[t]
		if limit != entitlement.Unlimited && activeByType[t] >= limit {
			return false
		}
		activeByType[t]++
		return true
	}
	d := entitlement.Reconcile(slots, limits.MaxChannels, typeHasRoom)
	for _, s := range d.Suspend {
		s.suspended = true
	}
	for _, s := range d.Restore {
		s.suspended = false
	}
	return slots
}
