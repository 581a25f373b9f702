package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"childcare-billing/internal/models"
	"childcare-billing/internal/payment"
	"childcare-billing/internal/repository"

	"github.com/rs/zerolog/log"
)

// Handled event types. Anything else is acknowledged without effect.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaymentFail  = "invoice.payment_failed"
)

// Outcome is what happened to a delivery.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Mapper applies verified events through a BillingStore so that each event id
// takes effect at most once.
type Mapper struct {
	store   repository.BillingStore
	timeout time.Duration
	now     func() time.Time
}

func NewMapper(store repository.BillingStore, timeout time.Duration) *Mapper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mapper{store: store, timeout: timeout, now: time.Now}
}

type mutation func(ctx context.Context, m repository.BillingMutations) (bool, error)

// Handle maps ev to a state transition and applies it. Errors other than
// ErrMalformedEvent are retryable.
func (m *Mapper) Handle(ctx context.Context, ev Event) (Outcome, error) {
	apply, err := m.plan(ev)
	if err != nil {
		return "", err
	}
	if apply == nil {
		log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook ignored")
		return OutcomeIgnored, nil
	}

	// the provider may hang up; a started transition still completes
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	var changed bool
	dup, err := m.store.ProcessOnce(txCtx, ev.ID, ev.Type, func(bm repository.BillingMutations) error {
		var err error
		changed, err = apply(txCtx, bm)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("apply %s %s: %w", ev.Type, ev.ID, err)
	}
	if dup {
		log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Msg("webhook duplicate")
		return OutcomeDuplicate, nil
	}
	log.Info().Str("event_id", ev.ID).Str("type", ev.Type).Bool("changed", changed).Msg("webhook processed")
	return OutcomeProcessed, nil
}

// plan decodes ev and returns the mutation to run, or nil for a no-op.
func (m *Mapper) plan(ev Event) (mutation, error) {
	switch ev.Type {
	case EventCheckoutCompleted:
		var s checkoutObject
		if err := decodeObject(ev.Data, &s); err != nil {
			return nil, err
		}
		return m.checkoutCompleted(ev, s)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s subscriptionObject
		if err := decodeObject(ev.Data, &s); err != nil {
			return nil, err
		}
		if s.ID == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrMalformedEvent)
		}
		status := subscriptionStatus(s.Status)
		if ev.Type == EventSubscriptionDeleted {
			status = models.SubscriptionCanceled
		}
		return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
			return bm.SetSubscriptionStatus(ctx, s.ID, status)
		}, nil

	case EventInvoicePaymentFail:
		var inv invoiceObject
		if err := decodeObject(ev.Data, &inv); err != nil {
			return nil, err
		}
		subID := inv.subscriptionID()
		if subID == "" {
			return nil, nil
		}
		return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
			return bm.SetSubscriptionStatus(ctx, subID, models.SubscriptionPastDue)
		}, nil

	default:
		return nil, nil
	}
}

func (m *Mapper) checkoutCompleted(ev Event, s checkoutObject) (mutation, error) {
	meta := s.Metadata
	switch payment.IntentType(meta[payment.MetaIntent]) {
	case payment.IntentInvoicePayment:
		invoiceID, err := metaID(meta, payment.MetaInvoiceID)
		if err != nil {
			return nil, err
		}
		if s.PaymentStatus != "paid" && s.PaymentStatus != "no_payment_required" {
			log.Warn().Str("event_id", ev.ID).Str("payment_status", s.PaymentStatus).
				Uint64("invoice_id", uint64(invoiceID)).Msg("checkout completed without payment")
			return nil, nil
		}
		at := m.now()
		return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
			changed, err := bm.MarkInvoicePaid(ctx, invoiceID, s.ID, at)
			if err == nil && !changed {
				// a second session for a settled invoice was paid
				log.Error().Str("event_id", ev.ID).Str("checkout_session_id", s.ID).
					Uint64("invoice_id", uint64(invoiceID)).Msg("payment for settled invoice needs refund")
			}
			return changed, err
		}, nil

	case payment.IntentSubscription:
		plan, err := payment.ParsePlan(meta[payment.MetaPlan])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		subID := idOf(s.Subscription)
		if subID == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrMalformedEvent)
		}
		act := repository.SubscriptionActivation{
			Plan:           string(plan),
			CustomerID:     idOf(s.Customer),
			SubscriptionID: subID,
		}
		if _, ok := meta[payment.MetaTenantID]; ok {
			if act.OrganizationID, err = metaID(meta, payment.MetaTenantID); err != nil {
				return nil, err
			}
			return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
				return bm.ActivateSubscription(ctx, act)
			}, nil
		}
		if act.OwnerID, err = metaID(meta, payment.MetaPrincipalID); err != nil {
			return nil, err
		}
		act.Name = s.organizationName()
		return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
			return bm.CreateSubscribedOrganization(ctx, act)
		}, nil

	case payment.IntentSetupPaymentMethod:
		userID, err := metaID(meta, payment.MetaPrincipalID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, bm repository.BillingMutations) (bool, error) {
			return bm.MarkPaymentMethodReady(ctx, userID)
		}, nil

	default:
		// sessions created outside this service
		return nil, nil
	}
}

type checkoutObject struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	PaymentStatus   string            `json:"payment_status"`
	Customer        json.RawMessage   `json:"customer"`
	Subscription    json.RawMessage   `json:"subscription"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

func (s checkoutObject) organizationName() string {
	switch {
	case s.CustomerDetails.Name != "":
		return s.CustomerDetails.Name
	case s.CustomerDetails.Email != "":
		return s.CustomerDetails.Email
	default:
		return "Organization " + s.Metadata[payment.MetaPrincipalID]
	}
}

type subscriptionObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type invoiceObject struct {
	ID           string          `json:"id"`
	Subscription json.RawMessage `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription json.RawMessage `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID reads the top-level field of older API versions, then the
// parent details of newer ones.
func (inv invoiceObject) subscriptionID() string {
	if id := idOf(inv.Subscription); id != "" {
		return id
	}
	return idOf(inv.Parent.SubscriptionDetails.Subscription)
}

// subscriptionStatus folds provider statuses onto the organization states.
func subscriptionStatus(s string) string {
	switch s {
	case "active", "trialing":
		return models.SubscriptionActive
	case "past_due", "unpaid":
		return models.SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return models.SubscriptionCanceled
	default:
		return models.SubscriptionIncomplete
	}
}

func decodeObject(raw json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// idOf accepts either an id string or an expanded object with an id.
func idOf(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
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

func metaID(meta map[string]string, key string) (uint, error) {
	v, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("%w: metadata %s missing", ErrMalformedEvent, key)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: metadata %s=%q", ErrMalformedEvent, key, v)
	}
	return uint(id), nil
}
