package valueobjects

type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusCanceled          SubscriptionStatus = "canceled"
)

var transitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusIncomplete:        {StatusActive, StatusIncompleteExpired, StatusCanceled},
	StatusTrialing:          {StatusActive, StatusPastDue, StatusCanceled},
	StatusActive:            {StatusPastDue, StatusUnpaid, StatusCanceled},
	StatusPastDue:           {StatusActive, StatusUnpaid, StatusCanceled},
	StatusUnpaid:            {StatusActive, StatusPastDue, StatusCanceled},
	StatusCanceled:          {},
	StatusIncompleteExpired: {},
}

var ValidStatuses = map[SubscriptionStatus]bool{
	StatusIncomplete:        true,
	StatusIncompleteExpired: true,
	StatusTrialing:          true,
	StatusActive:            true,
	StatusPastDue:           true,
	StatusUnpaid:            true,
	StatusCanceled:          true,
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsValid() bool {
	return ValidStatuses[s]
}

func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusIncompleteExpired
}

// IsCurrent reports whether the status makes a row the tenant's current subscription.
func (s SubscriptionStatus) IsCurrent() bool {
	return s == StatusActive || s == StatusTrialing || s == StatusPastDue
}

// IsDelinquent reports whether a successful payment should reactivate the subscription.
func (s SubscriptionStatus) IsDelinquent() bool {
	return s == StatusPastDue || s == StatusUnpaid
}

func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CurrentStatuses lists the statuses that IsCurrent accepts, for repository queries.
func CurrentStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{StatusActive, StatusTrialing, StatusPastDue}
}
