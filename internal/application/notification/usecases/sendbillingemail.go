package usecases

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chatdesk/internal/application/outbox"
	"chatdesk/internal/domain/subscription"
	"chatdesk/internal/domain/tenant"
	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/services/markdown"
)

const (
	dedupeKeyPrefix = "billing_email:"
	dedupeTTL       = 7 * 24 * time.Hour
	dateLayout      = "January 2, 2006"
)

// EmailMessage is one rendered notification.
type EmailMessage struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EventDeduplicator claims a key for a TTL; Claim returns false when the key is already held.
type EventDeduplicator interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// billingEmail is the data every template may reference.
type billingEmail struct {
	TenantName       string
	PlanName         string
	PreviousPlanName string
	Reason           string
	Immediate        bool
	Downgraded       bool
	PeriodEnd        *time.Time
	RetryCount       int
	NextRetryAt      *time.Time
	GraceEndsAt      *time.Time
}

type emailTemplate struct {
	subject func(d billingEmail) string
	body    func(d billingEmail) string
}

var templates = map[subscription.Action]emailTemplate{
	subscription.ActionCreate: {
		subject: func(d billingEmail) string { return fmt.Sprintf("Welcome to the %s plan", d.PlanName) },
		body: func(d billingEmail) string {
			return fmt.Sprintf("# Your subscription is active\n\nHi %s, your **%s** plan is now active.%s",
				d.TenantName, d.PlanName, renewalLine(d.PeriodEnd))
		},
	},
	subscription.ActionReactivate: {
		subject: func(d billingEmail) string { return fmt.Sprintf("Your %s plan is active again", d.PlanName) },
		body: func(d billingEmail) string {
			return fmt.Sprintf("# Subscription reactivated\n\nHi %s, your **%s** plan is active again and all features are restored.%s",
				d.TenantName, d.PlanName, renewalLine(d.PeriodEnd))
		},
	},
	subscription.ActionStatusUpdate: {
		subject: func(d billingEmail) string { return "We could not process your payment" },
		body: func(d billingEmail) string {
			body := fmt.Sprintf("# Payment failed\n\nHi %s, payment attempt %d for your **%s** plan failed.",
				d.TenantName, d.RetryCount, d.PlanName)
			if d.NextRetryAt != nil {
				body += fmt.Sprintf(" We will try again on %s.", formatDate(*d.NextRetryAt))
			}
			return body + "\n\nPlease check the payment method on file."
		},
	},
	subscription.ActionGracePeriodStart: {
		subject: func(d billingEmail) string { return "Action required: update your payment method" },
		body: func(d billingEmail) string {
			body := fmt.Sprintf("# Payment failed\n\nHi %s, we could not charge you for the **%s** plan. Your features remain available during a grace period",
				d.TenantName, d.PlanName)
			if d.GraceEndsAt != nil {
				body += " until " + formatDate(*d.GraceEndsAt)
			}
			return body + ".\n\nUpdate your payment method to avoid interruption."
		},
	},
	subscription.ActionGracePeriodEnd: {
		subject: func(d billingEmail) string { return "Your grace period has ended" },
		body: func(d billingEmail) string {
			return fmt.Sprintf("# Grace period ended\n\nHi %s, we did not receive payment for the **%s** plan and the grace period has ended. %s",
				d.TenantName, d.PlanName, endedLine(d.Downgraded, "Your account has been moved to the free tier."))
		},
	},
	subscription.ActionSuspend: {
		subject: func(d billingEmail) string { return "Your subscription has been suspended" },
		body: func(d billingEmail) string {
			return fmt.Sprintf("# Subscription suspended\n\nHi %s, after %d failed payment attempts your **%s** plan has been suspended.\n\nUpdate your payment method to restore access.",
				d.TenantName, d.RetryCount, d.PlanName)
		},
	},
	subscription.ActionCancel: {
		subject: func(d billingEmail) string { return fmt.Sprintf("Your %s plan has been canceled", d.PlanName) },
		body: func(d billingEmail) string {
			if d.Immediate || d.PeriodEnd == nil {
				return fmt.Sprintf("# Subscription canceled\n\nHi %s, your **%s** plan has been canceled. %s",
					d.TenantName, d.PlanName, endedLine(d.Downgraded, "Your account is now on the free tier."))
			}
			return fmt.Sprintf("# Subscription canceled\n\nHi %s, your **%s** plan will end on %s. You keep full access until then.",
				d.TenantName, d.PlanName, formatDate(*d.PeriodEnd))
		},
	},
	subscription.ActionPlanChanged: {
		subject: func(d billingEmail) string { return fmt.Sprintf("You are now on the %s plan", d.PlanName) },
		body: func(d billingEmail) string {
			from := ""
			if d.PreviousPlanName != "" {
				from = " from **" + d.PreviousPlanName + "**"
			}
			return fmt.Sprintf("# Plan changed\n\nHi %s, your subscription has moved%s to **%s**. Your limits have been updated.",
				d.TenantName, from, d.PlanName)
		},
	},
}

// SendBillingEmailUseCase consumes the email stream and notifies the tenant's
// billing contact. Deliveries are deduplicated by correlation ID.
type SendBillingEmailUseCase struct {
	tenantRepo tenant.TenantRepository
	planRepo   subscription.PlanRepository
	sender     EmailSender
	dedupe     EventDeduplicator
	renderer   markdown.MarkdownService
	logger     logger.Interface
}

// NewSendBillingEmailUseCase creates the email stream handler.
func NewSendBillingEmailUseCase(
	tenantRepo tenant.TenantRepository,
	planRepo subscription.PlanRepository,
	sender EmailSender,
	dedupe EventDeduplicator,
	renderer markdown.MarkdownService,
	logger logger.Interface,
) *SendBillingEmailUseCase {
	return &SendBillingEmailUseCase{
		tenantRepo: tenantRepo,
		planRepo:   planRepo,
		sender:     sender,
		dedupe:     dedupe,
		renderer:   renderer,
		logger:     logger,
	}
}

var _ outbox.Handler = (*SendBillingEmailUseCase)(nil)

// notification is the part of either subscription event an email needs.
type notification struct {
	tenantID       uint
	planID         uint
	previousPlanID uint
	action         subscription.Action
	reason         string
	immediate      bool
	downgraded     bool
	periodEnd      *time.Time
	retryCount     int
	nextRetryAt    *time.Time
	graceEndsAt    *time.Time
	correlationID  string
}

func (uc *SendBillingEmailUseCase) Handle(ctx context.Context, envelope outbox.Envelope) error {
	n, ok := uc.decode(envelope)
	if !ok {
		return nil
	}
	tpl, ok := templates[n.action]
	if !ok {
		uc.logger.Debugw("no email template for action", "action", n.action, "envelope_id", envelope.ID)
		return nil
	}

	key := dedupeKeyPrefix + n.correlationID
	claimed, err := uc.dedupe.Claim(ctx, key, dedupeTTL)
	if err != nil {
		return fmt.Errorf("failed to claim email dedupe key: %w", err)
	}
	if !claimed {
		uc.logger.Debugw("billing email already sent", "correlation_id", n.correlationID)
		return nil
	}

	msg, err := uc.build(ctx, n, tpl)
	if err != nil || msg == nil {
		uc.release(ctx, key)
		return err
	}

	if err := uc.sender.Send(ctx, *msg); err != nil {
		uc.release(ctx, key)
		uc.logger.Errorw("failed to send billing email",
			"tenant_id", n.tenantID,
			"action", n.action,
			"error", err,
		)
		return err
	}

	uc.logger.Infow("billing email sent",
		"tenant_id", n.tenantID,
		"action", n.action,
		"correlation_id", n.correlationID,
	)
	return nil
}

func (uc *SendBillingEmailUseCase) decode(envelope outbox.Envelope) (notification, bool) {
	var n notification
	switch envelope.EventType {
	case subscription.EventTypeSubscriptionStatus:
		var e subscription.SubscriptionStatusEvent
		if err := envelope.Decode(&e); err != nil {
			uc.logger.Warnw("dropping undecodable subscription event", "envelope_id", envelope.ID, "error", err)
			return n, false
		}
		if !e.SendEmailNotification {
			return n, false
		}
		n = notification{
			tenantID:       e.TenantID,
			planID:         e.PlanID,
			previousPlanID: e.PreviousPlanID,
			action:         e.Action,
			reason:         e.Reason,
			immediate:      e.IsImmediate,
			downgraded:     e.Downgraded,
			periodEnd:      e.CurrentPeriodEnd,
			correlationID:  e.CorrelationID,
		}
	case subscription.EventTypePaymentStatus:
		var e subscription.PaymentStatusEvent
		if err := envelope.Decode(&e); err != nil {
			uc.logger.Warnw("dropping undecodable payment event", "envelope_id", envelope.ID, "error", err)
			return n, false
		}
		if !e.SendEmailNotification {
			return n, false
		}
		n = notification{
			tenantID:      e.TenantID,
			planID:        e.PlanID,
			action:        e.Action,
			reason:        e.Reason,
			immediate:     e.IsImmediate,
			downgraded:    e.Downgraded,
			retryCount:    e.PaymentRetryCount,
			nextRetryAt:   e.NextRetryAt,
			graceEndsAt:   e.GracePeriodEndsAt,
			correlationID: e.CorrelationID,
		}
	default:
		uc.logger.Debugw("ignoring event on email stream", "event_type", envelope.EventType)
		return n, false
	}

	if n.correlationID == "" {
		n.correlationID = envelope.ID
	}
	return n, true
}

// build returns nil without error when the tenant cannot be reached by email.
func (uc *SendBillingEmailUseCase) build(ctx context.Context, n notification, tpl emailTemplate) (*EmailMessage, error) {
	t, err := uc.tenantRepo.GetByID(ctx, n.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if t == nil || t.BillingEmail == "" {
		uc.logger.Warnw("tenant has no billing email, skipping notification", "tenant_id", n.tenantID, "action", n.action)
		return nil, nil
	}

	data := billingEmail{
		TenantName:  uc.renderer.EscapeInline(t.Name),
		Reason:      n.reason,
		Immediate:   n.immediate,
		Downgraded:  n.downgraded,
		PeriodEnd:   n.periodEnd,
		RetryCount:  n.retryCount,
		NextRetryAt: n.nextRetryAt,
		GraceEndsAt: n.graceEndsAt,
	}
	if data.PlanName, err = uc.planName(ctx, n.planID); err != nil {
		return nil, err
	}
	if n.previousPlanID != 0 && n.previousPlanID != n.planID {
		if data.PreviousPlanName, err = uc.planName(ctx, n.previousPlanID); err != nil {
			return nil, err
		}
	}

	text := tpl.body(data)
	html, err := uc.renderer.ToHTMLSanitized(text)
	if err != nil {
		return nil, err
	}
	return &EmailMessage{
		To:       t.BillingEmail,
		Subject:  tpl.subject(data),
		TextBody: text,
		HTMLBody: html,
	}, nil
}

func (uc *SendBillingEmailUseCase) planName(ctx context.Context, planID uint) (string, error) {
	plan, err := uc.planRepo.GetByID(ctx, planID)
	if err != nil {
		return "", fmt.Errorf("failed to load plan: %w", err)
	}
	if plan == nil {
		return "current", nil
	}
	// Caser is stateful; one per call
	return cases.Title(language.English).String(uc.renderer.EscapeInline(plan.Name())), nil
}

func (uc *SendBillingEmailUseCase) release(ctx context.Context, key string) {
	if err := uc.dedupe.Release(ctx, key); err != nil {
		uc.logger.Warnw("failed to release email dedupe key", "key", key, "error", err)
	}
}

// endedLine says where the tenant landed once a paid plan ended.
func endedLine(downgraded bool, freeTier string) string {
	if downgraded {
		return freeTier
	}
	return "Paid features are no longer available. Choose a plan to restore access."
}

func renewalLine(periodEnd *time.Time) string {
	if periodEnd == nil {
		return ""
	}
	return " It renews on " + formatDate(*periodEnd) + "."
}

func formatDate(t time.Time) string {
	return biztime.FormatInBizTimezone(t, dateLayout)
}
