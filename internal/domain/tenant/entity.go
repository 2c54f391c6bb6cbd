package tenant

import (
	"fmt"
	"time"

	"chatdesk/internal/domain/entitlement"
)

type EntityStatus string

const (
	EntityStatusActive    EntityStatus = "active"
	EntityStatusSuspended EntityStatus = "suspended"
)

func (s EntityStatus) IsValid() bool {
	return s == EntityStatusActive || s == EntityStatusSuspended
}

type EntityKind string

const (
	EntityKindUser    EntityKind = "user"
	EntityKindChannel EntityKind = "channel"
)

// resource is the suspendable state shared by tenant users and channel accounts.
type resource struct {
	id          uint
	tenantID    uint
	status      EntityStatus
	suspendedAt *time.Time
	resumedAt   *time.Time
	createdAt   time.Time
}

func (r *resource) ID() uint                { return r.id }
func (r *resource) TenantID() uint          { return r.tenantID }
func (r *resource) Status() EntityStatus    { return r.status }
func (r *resource) SuspendedAt() *time.Time { return r.suspendedAt }
func (r *resource) ResumedAt() *time.Time   { return r.resumedAt }
func (r *resource) CreatedAt() time.Time    { return r.createdAt }
func (r *resource) IsSuspended() bool       { return r.status == EntityStatusSuspended }

// Suspend flips the status column only; it reports false when already suspended.
func (r *resource) Suspend(now time.Time) bool {
	if r.status == EntityStatusSuspended {
		return false
	}
	r.status = EntityStatusSuspended
	at := now
	r.suspendedAt = &at
	return true
}

func (r *resource) Restore(now time.Time) bool {
	if r.status == EntityStatusActive {
		return false
	}
	r.status = EntityStatusActive
	at := now
	r.resumedAt = &at
	return true
}

// TenantUser is a seat counted against the plan's user limit.
type TenantUser struct {
	resource
	email string
}

// ReconstructTenantUser rebuilds a tenant user from storage.
func ReconstructTenantUser(id, tenantID uint, email string, status EntityStatus, suspendedAt, resumedAt *time.Time, createdAt time.Time) (*TenantUser, error) {
	if id == 0 {
		return nil, fmt.Errorf("tenant user ID cannot be zero")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid entity status: %s", status)
	}
	return &TenantUser{
		resource: resource{
			id:          id,
			tenantID:    tenantID,
			status:      status,
			suspendedAt: suspendedAt,
			resumedAt:   resumedAt,
			createdAt:   createdAt,
		},
		email: email,
	}, nil
}

func (u *TenantUser) Email() string {
	return u.email
}

// ChannelAccount is a connected messaging channel counted against per-type and aggregate limits.
type ChannelAccount struct {
	resource
	channelType entitlement.ChannelType
	name        string
}

// ReconstructChannelAccount rebuilds a channel account from storage.
func ReconstructChannelAccount(id, tenantID uint, channelType entitlement.ChannelType, name string, status EntityStatus, suspendedAt, resumedAt *time.Time, createdAt time.Time) (*ChannelAccount, error) {
	if id == 0 {
		return nil, fmt.Errorf("channel account ID cannot be zero")
	}
	if !channelType.IsValid() {
		return nil, fmt.Errorf("invalid channel type: %s", channelType)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid entity status: %s", status)
	}
	return &ChannelAccount{
		resource: resource{
			id:          id,
			tenantID:    tenantID,
			status:      status,
			suspendedAt: suspendedAt,
			resumedAt:   resumedAt,
			createdAt:   createdAt,
		},
		channelType: channelType,
		name:        name,
	}, nil
}

func (c *ChannelAccount) ChannelType() entitlement.ChannelType {
	return c.channelType
}

func (c *ChannelAccount) Name() string {
	return c.name
}

// Tenant carries the billing contact used for notifications.
type Tenant struct {
	ID           uint
	Name         string
	BillingEmail string
}
