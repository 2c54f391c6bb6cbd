package subscription

import (
	"fmt"

	"chatdesk/internal/domain/entitlement"
)

// Plan is a read-only entitlement bundle. Limits of entitlement.Unlimited disable enforcement.
type Plan struct {
	id                   uint
	name                 string
	maxUsers             int
	maxChannels          int
	maxWhatsAppChannels  int
	maxFacebookChannels  int
	maxInstagramChannels int
	maxTelegramChannels  int
	price                int64
	currency             string
	providerPriceID      string
}

type PlanParams struct {
	ID                   uint
	Name                 string
	MaxUsers             int
	MaxChannels          int
	MaxWhatsAppChannels  int
	MaxFacebookChannels  int
	MaxInstagramChannels int
	MaxTelegramChannels  int
	Price                int64
	Currency             string
	ProviderPriceID      string
}

// ReconstructPlan rebuilds a plan from storage. It rejects a zero ID, an empty name and a negative price.
func ReconstructPlan(p PlanParams) (*Plan, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("plan ID cannot be zero")
	}
	if p.Name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if p.Price < 0 {
		return nil, ErrInvalidPrice
	}
	return &Plan{
		id:                   p.ID,
		name:                 p.Name,
		maxUsers:             p.MaxUsers,
		maxChannels:          p.MaxChannels,
		maxWhatsAppChannels:  p.MaxWhatsAppChannels,
		maxFacebookChannels:  p.MaxFacebookChannels,
		maxInstagramChannels: p.MaxInstagramChannels,
		maxTelegramChannels:  p.MaxTelegramChannels,
		price:                p.Price,
		currency:             p.Currency,
		providerPriceID:      p.ProviderPriceID,
	}, nil
}

func (p *Plan) ID() uint                { return p.id }
func (p *Plan) Name() string            { return p.name }
func (p *Plan) MaxUsers() int           { return p.maxUsers }
func (p *Plan) MaxChannels() int        { return p.maxChannels }
func (p *Plan) Price() int64            { return p.price }
func (p *Plan) Currency() string        { return p.currency }
func (p *Plan) ProviderPriceID() string { return p.providerPriceID }

func (p *Plan) MaxWhatsAppChannels() int  { return p.maxWhatsAppChannels }
func (p *Plan) MaxFacebookChannels() int  { return p.maxFacebookChannels }
func (p *Plan) MaxInstagramChannels() int { return p.maxInstagramChannels }
func (p *Plan) MaxTelegramChannels() int  { return p.maxTelegramChannels }

// IsFree reports whether the plan costs nothing and therefore has no provider subscription.
func (p *Plan) IsFree() bool {
	return p.price == 0
}

// ChannelLimit returns the per-type channel sub-limit.
func (p *Plan) ChannelLimit(t entitlement.ChannelType) int {
	switch t {
	case entitlement.ChannelWhatsApp:
		return p.maxWhatsAppChannels
	case entitlement.ChannelFacebook:
		return p.maxFacebookChannels
	case entitlement.ChannelInstagram:
		return p.maxInstagramChannels
	case entitlement.ChannelTelegram:
		return p.maxTelegramChannels
	default:
		return 0
	}
}
