package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatdesk/internal/domain/entitlement"
	vo "chatdesk/internal/domain/subscription/valueobjects"
)

const (
	FreeProviderIDPrefix = "free_"
	freePeriodYears      = 100
)

// Reasons recorded on emitted events.
const (
	ReasonUserRequested      = "user_requested"
	ReasonGracePeriodExpired = "grace_period_expired"
	ReasonPaymentFailed      = "payment_failed"
	ReasonPaymentSucceeded   = "payment_succeeded"
	ReasonProviderUpdate     = "provider_update"
	ReasonProviderDeleted    = "provider_deleted"
	ReasonCancelReverted     = "cancellation_reverted"
	ReasonSuperseded         = "superseded"
	ReasonDowngrade          = "downgrade"
)

// Subscription is the aggregate root for a tenant's billing lineage.
// Every mutation goes through a method returning a *Transition.
type Subscription struct {
	id                      uint
	tenantID                uint
	planID                  uint
	providerSubscriptionID  string
	status                  vo.SubscriptionStatus
	currentPeriodStart      time.Time
	currentPeriodEnd        time.Time
	cancelAtPeriodEnd       bool
	canceledAt              *time.Time
	cancellationRequestedAt *time.Time
	paymentRetryCount       int
	firstPaymentFailureAt   *time.Time
	lastPaymentFailedAt     *time.Time
	nextRetryAt             *time.Time
	hasReachedMaxRetries    bool
	isInGracePeriod         bool
	gracePeriodEndsAt       *time.Time
	amount                  int64
	currency                string
	version                 int
	createdAt               time.Time
	updatedAt               time.Time
}

// ProviderState is the payment provider's view of a subscription.
type ProviderState struct {
	Status             vo.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	PriceID            string
}

type NewSubscriptionParams struct {
	TenantID               uint
	Plan                   *Plan
	ProviderSubscriptionID string
	// Status reported by the provider; empty means the plan decides.
	Status             vo.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Reason             string
}

// NewSubscription builds an unsaved subscription and its Create event.
// Free plans start Active with a synthetic provider id and a non-expiring period.
func NewSubscription(p NewSubscriptionParams, now time.Time) (*Subscription, *Transition, error) {
	if p.TenantID == 0 {
		return nil, nil, fmt.Errorf("tenant ID is required")
	}
	if p.Plan == nil {
		return nil, nil, ErrPlanNotFound
	}

	tr := &Transition{changed: true}
	if p.Plan.IsFree() {
		s := newFreeSubscription(p.TenantID, p.Plan, now)
		tr.addFor(s, s.statusEvent(ActionCreate, p.Reason, false, false, now))
		return s, tr, nil
	}

	if p.ProviderSubscriptionID == "" {
		return nil, nil, ErrProviderIDRequired
	}
	status := p.Status
	if status == "" {
		status = vo.StatusIncomplete
	}
	if !status.IsValid() {
		return nil, nil, fmt.Errorf("invalid subscription status: %s", status)
	}
	start := p.CurrentPeriodStart
	if start.IsZero() {
		start = now
	}
	end := p.CurrentPeriodEnd
	if end.IsZero() {
		end = start.AddDate(0, 1, 0)
	}

	s := &Subscription{
		tenantID:               p.TenantID,
		planID:                 p.Plan.ID(),
		providerSubscriptionID: p.ProviderSubscriptionID,
		status:                 status,
		currentPeriodStart:     start,
		currentPeriodEnd:       end,
		cancelAtPeriodEnd:      p.CancelAtPeriodEnd,
		amount:                 p.Plan.Price(),
		currency:               p.Plan.Currency(),
		version:                1,
		createdAt:              now,
		updatedAt:              now,
	}
	if p.CancelAtPeriodEnd {
		requested := now
		s.cancellationRequestedAt = &requested
	}
	tr.addFor(s, s.statusEvent(ActionCreate, p.Reason, true, false, now))
	return s, tr, nil
}

func newFreeSubscription(tenantID uint, plan *Plan, now time.Time) *Subscription {
	return &Subscription{
		tenantID:               tenantID,
		planID:                 plan.ID(),
		providerSubscriptionID: FreeProviderIDPrefix + uuid.NewString(),
		status:                 vo.StatusActive,
		currentPeriodStart:     now,
		currentPeriodEnd:       now.AddDate(freePeriodYears, 0, 0),
		amount:                 0,
		currency:               plan.Currency(),
		version:                1,
		createdAt:              now,
		updatedAt:              now,
	}
}

// SubscriptionParams carries every persisted column for ReconstructSubscription.
type SubscriptionParams struct {
	ID                      uint
	TenantID                uint
	PlanID                  uint
	ProviderSubscriptionID  string
	Status                  vo.SubscriptionStatus
	CurrentPeriodStart      time.Time
	CurrentPeriodEnd        time.Time
	CancelAtPeriodEnd       bool
	CanceledAt              *time.Time
	CancellationRequestedAt *time.Time
	PaymentRetryCount       int
	FirstPaymentFailureAt   *time.Time
	LastPaymentFailedAt     *time.Time
	NextRetryAt             *time.Time
	HasReachedMaxRetries    bool
	IsInGracePeriod         bool
	GracePeriodEndsAt       *time.Time
	Amount                  int64
	Currency                string
	Version                 int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ReconstructSubscription rebuilds a subscription from persistence
func ReconstructSubscription(p SubscriptionParams) (*Subscription, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if p.TenantID == 0 {
		return nil, fmt.Errorf("tenant ID is required")
	}
	if p.PlanID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if !p.Status.IsValid() {
		return nil, fmt.Errorf("invalid subscription status: %s", p.Status)
	}
	if p.PaymentRetryCount < 0 {
		return nil, fmt.Errorf("payment retry count cannot be negative")
	}
	if p.IsInGracePeriod && p.GracePeriodEndsAt == nil {
		return nil, fmt.Errorf("subscription %d is in grace period without an end date", p.ID)
	}

	return &Subscription{
		id:                      p.ID,
		tenantID:                p.TenantID,
		planID:                  p.PlanID,
		providerSubscriptionID:  p.ProviderSubscriptionID,
		status:                  p.Status,
		currentPeriodStart:      p.CurrentPeriodStart,
		currentPeriodEnd:        p.CurrentPeriodEnd,
		cancelAtPeriodEnd:       p.CancelAtPeriodEnd,
		canceledAt:              p.CanceledAt,
		cancellationRequestedAt: p.CancellationRequestedAt,
		paymentRetryCount:       p.PaymentRetryCount,
		firstPaymentFailureAt:   p.FirstPaymentFailureAt,
		lastPaymentFailedAt:     p.LastPaymentFailedAt,
		nextRetryAt:             p.NextRetryAt,
		hasReachedMaxRetries:    p.HasReachedMaxRetries,
		isInGracePeriod:         p.IsInGracePeriod,
		gracePeriodEndsAt:       p.GracePeriodEndsAt,
		amount:                  p.Amount,
		currency:                p.Currency,
		version:                 p.Version,
		createdAt:               p.CreatedAt,
		updatedAt:               p.UpdatedAt,
	}, nil
}

func (s *Subscription) ID() uint                            { return s.id }
func (s *Subscription) TenantID() uint                      { return s.tenantID }
func (s *Subscription) PlanID() uint                        { return s.planID }
func (s *Subscription) ProviderSubscriptionID() string      { return s.providerSubscriptionID }
func (s *Subscription) Status() vo.SubscriptionStatus       { return s.status }
func (s *Subscription) CurrentPeriodStart() time.Time       { return s.currentPeriodStart }
func (s *Subscription) CurrentPeriodEnd() time.Time         { return s.currentPeriodEnd }
func (s *Subscription) CancelAtPeriodEnd() bool             { return s.cancelAtPeriodEnd }
func (s *Subscription) CanceledAt() *time.Time              { return s.canceledAt }
func (s *Subscription) CancellationRequestedAt() *time.Time { return s.cancellationRequestedAt }
func (s *Subscription) PaymentRetryCount() int              { return s.paymentRetryCount }
func (s *Subscription) FirstPaymentFailureAt() *time.Time   { return s.firstPaymentFailureAt }
func (s *Subscription) LastPaymentFailedAt() *time.Time     { return s.lastPaymentFailedAt }
func (s *Subscription) NextRetryAt() *time.Time             { return s.nextRetryAt }
func (s *Subscription) HasReachedMaxRetries() bool          { return s.hasReachedMaxRetries }
func (s *Subscription) IsInGracePeriod() bool               { return s.isInGracePeriod }
func (s *Subscription) GracePeriodEndsAt() *time.Time       { return s.gracePeriodEndsAt }
func (s *Subscription) Amount() int64                       { return s.amount }
func (s *Subscription) Currency() string                    { return s.currency }
func (s *Subscription) Version() int                        { return s.version }
func (s *Subscription) CreatedAt() time.Time                { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time                { return s.updatedAt }

// SetID is called by the repository after insert.
func (s *Subscription) SetID(id uint) {
	s.id = id
}

// SetVersion is called by the repository after a successful versioned write.
func (s *Subscription) SetVersion(v int) {
	s.version = v
}

func (s *Subscription) IsFreeTier() bool {
	return strings.HasPrefix(s.providerSubscriptionID, FreeProviderIDPrefix)
}

// IsGracePeriodExpired reports whether the sweeper should expire an open grace period.
func (s *Subscription) IsGracePeriodExpired(now time.Time) bool {
	return s.isInGracePeriod &&
		!s.status.IsTerminal() &&
		s.gracePeriodEndsAt != nil &&
		!s.gracePeriodEndsAt.After(now)
}

// HasExhaustedRetriesWithoutGrace covers subscriptions that hit the retry cap
// without a grace period ever being opened.
func (s *Subscription) HasExhaustedRetriesWithoutGrace(p entitlement.Policy, now time.Time) bool {
	return s.hasReachedMaxRetries &&
		s.status == vo.StatusPastDue &&
		!s.isInGracePeriod &&
		s.firstPaymentFailureAt != nil &&
		entitlement.RetryWindowClosed(*s.firstPaymentFailureAt, p, now)
}

// RecordPaymentSuccess clears all dunning state and reactivates delinquent subscriptions.
func (s *Subscription) RecordPaymentSuccess(now time.Time) *Transition {
	tr := &Transition{}
	if s.status.IsTerminal() {
		return tr
	}

	if s.hasFailureState() {
		s.clearFailureState()
		s.touch(now, tr)
	}

	switch {
	case s.status.IsDelinquent():
		s.status = vo.StatusActive
		tr.add(s.statusEvent(ActionReactivate, ReasonPaymentSucceeded, true, false, now))
		s.touch(now, tr)
	case s.status == vo.StatusIncomplete:
		s.status = vo.StatusActive
		tr.add(s.statusEvent(ActionStatusUpdate, ReasonPaymentSucceeded, false, false, now))
		s.touch(now, tr)
	}
	return tr
}

// RecordPaymentFailure applies the provider's failure count for the current invoice.
// A count not above the stored one is a redelivery and changes nothing.
func (s *Subscription) RecordPaymentFailure(failureCount int, occurredAt time.Time, reason string, p entitlement.Policy, now time.Time) *Transition {
	tr := &Transition{}
	if s.status.IsTerminal() {
		return tr
	}
	if failureCount <= 0 {
		failureCount = s.paymentRetryCount + 1
	}
	if s.lastPaymentFailedAt != nil && failureCount <= s.paymentRetryCount {
		return tr
	}
	if reason == "" {
		reason = ReasonPaymentFailed
	}

	s.paymentRetryCount = failureCount
	lastFailed := occurredAt
	s.lastPaymentFailedAt = &lastFailed
	if s.firstPaymentFailureAt == nil {
		first := occurredAt
		s.firstPaymentFailureAt = &first
	}
	next := entitlement.NextRetryAt(*s.firstPaymentFailureAt, failureCount)
	s.nextRetryAt = &next
	s.touch(now, tr)

	emitted := false
	if !s.isInGracePeriod && entitlement.ShouldStartGracePeriod(failureCount) {
		end := entitlement.GracePeriodEnd(now, s.firstPaymentFailureAt, p)
		s.isInGracePeriod = true
		s.gracePeriodEndsAt = &end
		if s.status.CanTransitionTo(vo.StatusPastDue) {
			s.status = vo.StatusPastDue
		}
		tr.add(s.paymentEvent(ActionGracePeriodStart, reason, true, now))
		emitted = true
	}

	if entitlement.HasReachedMaxRetries(failureCount, p) {
		s.hasReachedMaxRetries = true
		tr.add(s.paymentEvent(ActionSuspend, reason, true, now))
		emitted = true
	}

	if !emitted {
		tr.add(s.paymentEvent(ActionStatusUpdate, reason, true, now))
	}
	return tr
}

// Cancel ends the subscription now, or at period end when immediate is false.
// An immediate cancel inserts a free-tier replacement when freePlan is given and differs from the current plan.
func (s *Subscription) Cancel(immediate bool, reason string, freePlan *Plan, now time.Time) (*Transition, error) {
	if s.status.IsTerminal() {
		return nil, ErrSubscriptionCanceled
	}
	tr := &Transition{}

	if !immediate {
		if s.cancelAtPeriodEnd {
			return tr, nil
		}
		s.cancelAtPeriodEnd = true
		requested := now
		s.cancellationRequestedAt = &requested
		tr.add(s.statusEvent(ActionCancel, reason, true, false, now))
		s.touch(now, tr)
		return tr, nil
	}

	previous := s.status
	s.terminate(now)
	e := s.statusEvent(ActionCancel, reason, true, true, now)
	tr.add(e)
	e.Downgraded = s.attachReplacement(tr, previous, freePlan, now)
	s.touch(now, tr)
	return tr, nil
}

// ExpireGracePeriod closes the grace period and cancels, downgrading to freePlan when policy allows.
func (s *Subscription) ExpireGracePeriod(p entitlement.Policy, freePlan *Plan, now time.Time) (*Transition, error) {
	if !s.IsGracePeriodExpired(now) && !s.HasExhaustedRetriesWithoutGrace(p, now) {
		return nil, ErrGracePeriodNotExpired
	}

	tr := &Transition{}
	s.isInGracePeriod = false
	s.gracePeriodEndsAt = nil
	ended := s.paymentEvent(ActionGracePeriodEnd, ReasonGracePeriodExpired, true, now)
	tr.add(ended)

	downgradeTo := freePlan
	if !entitlement.ShouldAutoDowngrade(p, s.hasReachedMaxRetries) {
		downgradeTo = nil
	}
	cancelTr, err := s.Cancel(true, ReasonGracePeriodExpired, downgradeTo, now)
	if err != nil {
		return nil, err
	}
	ended.Downgraded = cancelTr.Replacement != nil
	tr.merge(cancelTr)
	return tr, nil
}

// ApplyProviderState diffs the provider's view against local fields in a fixed
// order: plan, then status, then the cancel-at-period-end flag. Replaying the
// same state yields an empty transition, as does any state on a terminal row.
func (s *Subscription) ApplyProviderState(state ProviderState, plan, freePlan *Plan, now time.Time) (*Transition, error) {
	if !state.Status.IsValid() {
		return nil, fmt.Errorf("invalid provider status: %q", state.Status)
	}
	tr := &Transition{}
	if s.status.IsTerminal() {
		return tr, nil
	}

	if plan != nil && plan.ID() != s.planID {
		previous := s.planID
		s.planID = plan.ID()
		s.amount = plan.Price()
		s.currency = plan.Currency()
		e := s.statusEvent(ActionPlanChanged, ReasonProviderUpdate, true, false, now)
		e.PreviousPlanID = previous
		tr.add(e)
		s.touch(now, tr)
	}

	if !state.CurrentPeriodStart.IsZero() && !state.CurrentPeriodStart.Equal(s.currentPeriodStart) {
		s.currentPeriodStart = state.CurrentPeriodStart
		s.touch(now, tr)
	}
	if !state.CurrentPeriodEnd.IsZero() && !state.CurrentPeriodEnd.Equal(s.currentPeriodEnd) {
		s.currentPeriodEnd = state.CurrentPeriodEnd
		s.touch(now, tr)
	}

	var statusAction Action
	if state.Status != s.status {
		if s.status.CanTransitionTo(state.Status) {
			statusAction = s.applyProviderStatus(tr, state, freePlan, now)
		} else {
			tr.IgnoredStatus = state.Status
		}
	}

	if !s.status.IsTerminal() && state.CancelAtPeriodEnd != s.cancelAtPeriodEnd {
		if state.CancelAtPeriodEnd {
			s.cancelAtPeriodEnd = true
			requested := now
			s.cancellationRequestedAt = &requested
			if statusAction != ActionCancel {
				tr.add(s.statusEvent(ActionCancel, ReasonProviderUpdate, true, false, now))
			}
		} else {
			s.cancelAtPeriodEnd = false
			s.cancellationRequestedAt = nil
			if statusAction != ActionReactivate {
				tr.add(s.statusEvent(ActionReactivate, ReasonCancelReverted, true, false, now))
			}
		}
		s.touch(now, tr)
	}
	return tr, nil
}

func (s *Subscription) applyProviderStatus(tr *Transition, state ProviderState, freePlan *Plan, now time.Time) Action {
	previous := s.status
	defer s.touch(now, tr)

	switch {
	case state.Status == vo.StatusCanceled:
		immediate := !s.cancelAtPeriodEnd
		canceledAt := now
		if state.CanceledAt != nil {
			canceledAt = *state.CanceledAt
		}
		s.terminate(canceledAt)
		e := s.statusEvent(ActionCancel, ReasonProviderUpdate, true, immediate, now)
		tr.add(e)
		e.Downgraded = s.attachReplacement(tr, previous, freePlan, now)
		return ActionCancel
	case state.Status == vo.StatusActive && previous.IsDelinquent():
		s.clearFailureState()
		s.status = vo.StatusActive
		tr.add(s.statusEvent(ActionReactivate, ReasonProviderUpdate, true, false, now))
		return ActionReactivate
	default:
		s.status = state.Status
		tr.add(s.statusEvent(ActionStatusUpdate, ReasonProviderUpdate, false, false, now))
		return ActionStatusUpdate
	}
}

// MarkDeleted handles the provider deleting the subscription. Redelivery on a
// terminal row is a no-op.
func (s *Subscription) MarkDeleted(freePlan *Plan, now time.Time) *Transition {
	tr := &Transition{}
	if s.status.IsTerminal() {
		return tr
	}
	immediate := !s.cancelAtPeriodEnd
	previous := s.status
	s.terminate(now)
	e := s.statusEvent(ActionCancel, ReasonProviderDeleted, true, immediate, now)
	tr.add(e)
	e.Downgraded = s.attachReplacement(tr, previous, freePlan, now)
	s.touch(now, tr)
	return tr
}

// Supersede terminalizes this row because a newer subscription replaces it.
func (s *Subscription) Supersede(reason string, now time.Time) *Transition {
	tr := &Transition{}
	if s.status.IsTerminal() {
		return tr
	}
	if reason == "" {
		reason = ReasonSuperseded
	}
	s.terminate(now)
	tr.add(s.statusEvent(ActionStatusUpdate, reason, false, true, now))
	s.touch(now, tr)
	return tr
}

// attachReplacement adds a free row for the tenant and reports whether it did.
// A row that was still incomplete never displaced the tenant's current row, so
// it gets no replacement.
func (s *Subscription) attachReplacement(tr *Transition, previous vo.SubscriptionStatus, freePlan *Plan, now time.Time) bool {
	if freePlan == nil || freePlan.ID() == s.planID || previous == vo.StatusIncomplete {
		return false
	}
	replacement := newFreeSubscription(s.tenantID, freePlan, now)
	tr.Replacement = replacement
	tr.addFor(replacement, replacement.statusEvent(ActionCreate, ReasonDowngrade, false, false, now))
	return true
}

func (s *Subscription) terminate(at time.Time) {
	s.status = vo.StatusCanceled
	canceledAt := at
	s.canceledAt = &canceledAt
	s.isInGracePeriod = false
	s.gracePeriodEndsAt = nil
	s.nextRetryAt = nil
}

func (s *Subscription) hasFailureState() bool {
	return s.paymentRetryCount > 0 ||
		s.firstPaymentFailureAt != nil ||
		s.lastPaymentFailedAt != nil ||
		s.nextRetryAt != nil ||
		s.isInGracePeriod ||
		s.hasReachedMaxRetries
}

func (s *Subscription) clearFailureState() {
	s.paymentRetryCount = 0
	s.firstPaymentFailureAt = nil
	s.lastPaymentFailedAt = nil
	s.nextRetryAt = nil
	s.isInGracePeriod = false
	s.gracePeriodEndsAt = nil
	s.hasReachedMaxRetries = false
}

func (s *Subscription) touch(now time.Time, tr *Transition) {
	s.updatedAt = now
	tr.changed = true
}
