package stripe

import (
	"encoding/json"
	"fmt"
	"strconv"

	"chatdesk/internal/application/billing/paymentgateway"
	"chatdesk/internal/domain/subscription"
	vo "chatdesk/internal/domain/subscription/valueobjects"
)

const metadataTenantID = "tenant_id"

// subscriptionPayload is the subset of a subscription object the reconciler
// needs. Period bounds are read from the first item and fall back to the
// top-level fields older API versions send.
type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p subscriptionPayload) state() *subscription.ProviderState {
	state := &subscription.ProviderState{
		Status:             vo.SubscriptionStatus(p.Status),
		CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
		CanceledAt:         unixPtr(p.CanceledAt),
		CurrentPeriodStart: unixTime(p.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(p.CurrentPeriodEnd),
	}
	if len(p.Items.Data) > 0 {
		item := p.Items.Data[0]
		state.PriceID = item.Price.ID
		if item.CurrentPeriodEnd != 0 {
			state.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
			state.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		}
	}
	return state
}

// invoicePayload covers both the legacy top-level subscription field and the
// parent.subscription_details shape.
type invoicePayload struct {
	ID           string          `json:"id"`
	AttemptCount int             `json:"attempt_count"`
	Subscription json.RawMessage `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription json.RawMessage   `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	LastFinalizationError struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
	Metadata map[string]string `json:"metadata"`
}

func (p invoicePayload) subscriptionID() string {
	if id := expandableID(p.Parent.SubscriptionDetails.Subscription); id != "" {
		return id
	}
	return expandableID(p.Subscription)
}

func fillFromSubscription(event *paymentgateway.Event, raw json.RawMessage) error {
	var p subscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode subscription payload of %s: %w", event.ID, err)
	}
	event.ProviderSubscriptionID = p.ID
	event.TenantID = tenantFromMetadata(p.Metadata)
	event.Snapshot = p.state()
	return nil
}

func fillFromInvoice(event *paymentgateway.Event, raw json.RawMessage) error {
	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode invoice payload of %s: %w", event.ID, err)
	}
	event.ProviderSubscriptionID = p.subscriptionID()
	event.AttemptCount = p.AttemptCount
	event.FailureReason = p.LastFinalizationError.Message
	event.TenantID = tenantFromMetadata(p.Parent.SubscriptionDetails.Metadata)
	if event.TenantID == 0 {
		event.TenantID = tenantFromMetadata(p.Metadata)
	}
	return nil
}

// expandableID accepts either a bare ID string or an expanded object with an id.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func tenantFromMetadata(md map[string]string) uint {
	v, ok := md[metadataTenantID]
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
