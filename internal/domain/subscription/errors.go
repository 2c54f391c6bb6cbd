package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrSubscriptionCanceled    = errors.New("subscription already canceled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrGracePeriodNotExpired   = errors.New("subscription is not eligible for grace period expiry")
	ErrPlanNotFound            = errors.New("plan not found")
	ErrInvalidPrice            = errors.New("invalid price")
	ErrProviderIDRequired      = errors.New("provider subscription ID is required for paid plans")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
