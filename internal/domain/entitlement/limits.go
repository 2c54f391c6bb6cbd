package entitlement

import (
	"sort"
	"time"
)

// Unlimited is the stored limit value that disables enforcement for a pool.
const Unlimited = -1

type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "whatsapp"
	ChannelFacebook  ChannelType = "facebook"
	ChannelInstagram ChannelType = "instagram"
	ChannelTelegram  ChannelType = "telegram"
)

var AllChannelTypes = []ChannelType{ChannelWhatsApp, ChannelFacebook, ChannelInstagram, ChannelTelegram}

func (c ChannelType) IsValid() bool {
	for _, t := range AllChannelTypes {
		if t == c {
			return true
		}
	}
	return false
}

// Suspendable is any tenant resource whose availability is bounded by a plan limit.
type Suspendable interface {
	ID() uint
	CreatedAt() time.Time
	IsSuspended() bool
}

// Decision lists the flips needed to bring a pool within its limit.
type Decision[T Suspendable] struct {
	Suspend []T
	Restore []T
}

func (d Decision[T]) IsEmpty() bool {
	return len(d.Suspend) == 0 && len(d.Restore) == 0
}

// Reconcile partitions entities into active and suspended by creation order and
// returns the minimal flips for the limit: the newest actives over the limit are
// suspended, and the oldest suspended are restored while capacity remains.
//
// canRestore may veto a restore; it is consulted in restore order and a true
// result is final, so a stateful predicate can track capacity it hands out.
// A nil canRestore allows every restore.
func Reconcile[T Suspendable](entities []T, limit int, canRestore func(T) bool) Decision[T] {
	ordered := make([]T, len(entities))
	copy(ordered, entities)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := ordered[i].CreatedAt(), ordered[j].CreatedAt()
		if ci.Equal(cj) {
			return ordered[i].ID() < ordered[j].ID()
		}
		return ci.Before(cj)
	})

	var active, suspended []T
	for _, e := range ordered {
		if e.IsSuspended() {
			suspended = append(suspended, e)
		} else {
			active = append(active, e)
		}
	}

	var d Decision[T]
	if limit != Unlimited && len(active) > limit {
		keep := limit
		if keep < 0 {
			keep = 0
		}
		d.Suspend = append(d.Suspend, active[keep:]...)
		return d
	}

	capacity := len(suspended)
	if limit != Unlimited {
		capacity = limit - len(active)
	}
	for _, e := range suspended {
		if capacity <= 0 {
			break
		}
		if canRestore != nil && !canRestore(e) {
			continue
		}
		d.Restore = append(d.Restore, e)
		capacity--
	}
	return d
}
