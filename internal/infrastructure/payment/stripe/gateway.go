// Package stripe adapts the Stripe API and webhooks to paymentgateway.PaymentGateway.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
	"chatdesk/internal/shared/config"
	"chatdesk/internal/shared/logger"
)

// ErrInvalidSignature is returned when a webhook cannot be authenticated.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// provider event names mapped onto the canonical set
var eventTypes = map[stripelib.EventType]string{
	"customer.subscription.created": paymentgateway.EventSubscriptionCreated,
	"customer.subscription.updated": paymentgateway.EventSubscriptionUpdated,
	"customer.subscription.deleted": paymentgateway.EventSubscriptionDeleted,
	"invoice.payment_failed":        paymentgateway.EventInvoicePaymentFailed,
	"invoice.payment_succeeded":     paymentgateway.EventInvoicePaymentSucceeded,
	"invoice.paid":                  paymentgateway.EventInvoicePaid,
}

// Gateway talks to Stripe for subscription lookups, cancellation and webhook verification.
type Gateway struct {
	client        *stripesub.Client
	webhookSecret string
	timeout       time.Duration
	logger        logger.Interface
}

// NewGateway creates a Stripe gateway from cfg. An empty APIBase targets the live API.
func NewGateway(cfg config.StripeConfig, logger logger.Interface) *Gateway {
	backendCfg := &stripelib.BackendConfig{}
	if cfg.APIBase != "" {
		backendCfg.URL = stripelib.String(cfg.APIBase)
	}
	return &Gateway{
		client: &stripesub.Client{
			B:   stripelib.GetBackendWithConfig(stripelib.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.GetRequestTimeout(),
		logger:        logger,
	}
}

var _ paymentgateway.PaymentGateway = (*Gateway)(nil)

// GetSubscription fetches the provider's current view of a subscription.
func (g *Gateway) GetSubscription(ctx context.Context, providerSubscriptionID string) (*subscription.ProviderState, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.client.Get(providerSubscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", providerSubscriptionID, err)
	}
	return stateFromAPI(sub), nil
}

// CancelSubscription cancels now when immediate, otherwise flags cancel-at-period-end.
func (g *Gateway) CancelSubscription(ctx context.Context, providerSubscriptionID string, immediate bool) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if immediate {
		params := &stripelib.SubscriptionCancelParams{}
		params.Context = ctx
		if _, err := g.client.Cancel(providerSubscriptionID, params); err != nil {
			return fmt.Errorf("failed to cancel subscription %s: %w", providerSubscriptionID, err)
		}
	} else {
		params := &stripelib.SubscriptionParams{CancelAtPeriodEnd: stripelib.Bool(true)}
		params.Context = ctx
		if _, err := g.client.Update(providerSubscriptionID, params); err != nil {
			return fmt.Errorf("failed to schedule cancellation of %s: %w", providerSubscriptionID, err)
		}
	}

	g.logger.Infow("provider subscription canceled",
		"provider_subscription_id", providerSubscriptionID,
		"immediate", immediate,
	)
	return nil
}

// VerifyWebhookSignature authenticates the delivery and maps it to a canonical
// event. Unknown provider types pass through with their original name.
func (g *Gateway) VerifyWebhookSignature(body []byte, signature string) (*paymentgateway.Event, error) {
	if strings.TrimSpace(g.webhookSecret) == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	raw, err := webhook.ConstructEventWithOptions(body, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := &paymentgateway.Event{
		ID:         raw.ID,
		Type:       string(raw.Type),
		OccurredAt: time.Unix(raw.Created, 0).UTC(),
	}
	if canonical, ok := eventTypes[raw.Type]; ok {
		event.Type = canonical
	}
	if raw.Data == nil {
		return event, nil
	}

	var fillErr error
	switch {
	case strings.HasPrefix(event.Type, "subscription."):
		fillErr = fillFromSubscription(event, raw.Data.Raw)
	case strings.HasPrefix(event.Type, "invoice."):
		fillErr = fillFromInvoice(event, raw.Data.Raw)
	}
	if fillErr != nil {
		// authentic but unreadable: hand back the bare event so it is acknowledged and skipped
		g.logger.Warnw("webhook payload could not be decoded",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", fillErr,
		)
		return &paymentgateway.Event{ID: event.ID, Type: event.Type, OccurredAt: event.OccurredAt}, nil
	}
	return event, nil
}

func stateFromAPI(sub *stripelib.Subscription) *subscription.ProviderState {
	state := &subscription.ProviderState{
		Status:            vo.SubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CanceledAt:        unixPtr(sub.CanceledAt),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		state.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		state.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		if item.Price != nil {
			state.PriceID = item.Price.ID
		}
	}
	return state
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
