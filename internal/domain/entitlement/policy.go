// Package entitlement holds the pure arithmetic behind billing decisions:
// the dunning retry schedule, grace-period deadlines, the auto-downgrade rule,
// and plan-limit enforcement over suspendable resources.
package entitlement

import (
	"time"

	sharedConfig "chatdesk/internal/shared/config"
)

// GraceStartFailureThreshold is the failure count at which a grace period opens.
const GraceStartFailureThreshold = 1

// fallbackRetryDays applies to attempts outside the four-step dunning cadence.
const fallbackRetryDays = 3

var retryOffsetDays = map[int]int{
	1: 4,
	2: 9,
	3: 16,
	4: 25,
}

// Policy is the billing configuration consumed by lifecycle transitions.
type Policy struct {
	MaxPaymentRetries             int
	GracePeriodDays               int
	UseIntelligentGracePeriod     bool
	StripeRetryPeriodDays         int
	RetryAttemptGracePeriodHours  int
	AutoDowngradeAfterGracePeriod bool
	AutoDowngradeAfterMaxRetries  bool
	DefaultDowngradePlanName      string
}

func PolicyFromSettings(s sharedConfig.SubscriptionSettings) Policy {
	return Policy{
		MaxPaymentRetries:             s.MaxPaymentRetries,
		GracePeriodDays:               s.GracePeriodDays,
		UseIntelligentGracePeriod:     s.UseIntelligentGracePeriod,
		StripeRetryPeriodDays:         s.StripeRetryPeriodDays,
		RetryAttemptGracePeriodHours:  s.RetryAttemptGracePeriodHours,
		AutoDowngradeAfterGracePeriod: s.AutoDowngradeAfterGracePeriod,
		AutoDowngradeAfterMaxRetries:  s.AutoDowngradeAfterMaxRetries,
		DefaultDowngradePlanName:      s.DefaultDowngradePlanName,
	}
}

// NextRetryAt returns when the provider will retry the charge after the given attempt.
// The offset is anchored on the first failure, so repeated notifications for the
// same attempt always agree.
func NextRetryAt(firstFailureAt time.Time, attempt int) time.Time {
	days, ok := retryOffsetDays[attempt]
	if !ok {
		days = fallbackRetryDays
	}
	return firstFailureAt.AddDate(0, 0, days)
}

// GracePeriodEnd computes the grace deadline for a grace period starting at now.
// In intelligent mode it never precedes the provider's own retry window plus the buffer.
func GracePeriodEnd(now time.Time, firstFailureAt *time.Time, p Policy) time.Time {
	end := now.AddDate(0, 0, p.GracePeriodDays)
	if !p.UseIntelligentGracePeriod || firstFailureAt == nil {
		return end
	}

	providerWindowEnd := firstFailureAt.
		AddDate(0, 0, p.StripeRetryPeriodDays).
		Add(time.Duration(p.RetryAttemptGracePeriodHours) * time.Hour)
	if providerWindowEnd.After(end) {
		return providerWindowEnd
	}
	return end
}

// RetryWindowClosed reports whether the provider's retry window since firstFailureAt has elapsed.
func RetryWindowClosed(firstFailureAt time.Time, p Policy, now time.Time) bool {
	return !firstFailureAt.AddDate(0, 0, p.StripeRetryPeriodDays).After(now)
}

func ShouldStartGracePeriod(failureCount int) bool {
	return failureCount >= GraceStartFailureThreshold
}

func HasReachedMaxRetries(failureCount int, p Policy) bool {
	return p.MaxPaymentRetries > 0 && failureCount >= p.MaxPaymentRetries
}

// ShouldAutoDowngrade decides whether an expiring subscription is replaced by the free plan.
func ShouldAutoDowngrade(p Policy, hasReachedMaxRetries bool) bool {
	return p.AutoDowngradeAfterGracePeriod || (hasReachedMaxRetries && p.AutoDowngradeAfterMaxRetries)
}
