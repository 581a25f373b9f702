package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/models"

	"github.com/rs/zerolog/log"
)

// Metadata keys attached to every checkout session. The webhook mapper
// decides what to do from these alone.
const (
	MetaIntent      = "intent"
	MetaPrincipalID = "principal_id"
	MetaTenantID    = "tenant_id"
	MetaPlan        = "plan"
	MetaInvoiceID   = "invoice_id"
	MetaAmountMinor = "amount_minor"
)

// Mode is the provider checkout mode.
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
	ModeSetup        Mode = "setup"
)

// LineItem is a charge line. PriceID, when set, refers to a price defined at
// the provider and overrides the inline amount.
type LineItem struct {
	Name       string
	UnitAmount int64
	Interval   string // "month" for recurring items
	PriceID    string
	Quantity   int64
}

// CheckoutConfig is the provider-neutral description of a checkout session.
type CheckoutConfig struct {
	Mode              Mode
	Currency          string
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
	// ExpiresAt closes the session provider-side. Zero keeps the provider
	// default.
	ExpiresAt time.Time
}

// ProviderSession is what the provider returns for a created session.
type ProviderSession struct {
	ID  string
	URL string
}

// Provider creates checkout sessions. Implementations should wrap transient
// failures with ErrProviderUnavailable and refusals with ErrProviderRejected.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, cfg CheckoutConfig) (ProviderSession, error)
}

// Recorder durably stores created sessions.
type Recorder interface {
	Record(ctx context.Context, s *models.CheckoutSession) error
}

// CheckoutSession is returned to the caller for the redirect.
type CheckoutSession struct {
	ProviderSessionID string
	RedirectURL       string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

type Options struct {
	BaseURL  string
	Currency string
	// Prices maps lowercased plan ids to provider price ids.
	Prices  map[string]string
	Timeout time.Duration
}

// InvoiceCheckoutTTL is how long an invoice checkout session stays payable.
// The provider refuses expiries under 30 minutes.
const InvoiceCheckoutTTL = 35 * time.Minute

// Dispatcher is the single entry point for creating checkout sessions.
type Dispatcher struct {
	provider Provider
	recorder Recorder
	opts     Options
	now      func() time.Time
}

func NewDispatcher(provider Provider, recorder Recorder, opts Options) *Dispatcher {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Dispatcher{provider: provider, recorder: recorder, opts: opts, now: time.Now}
}

// Configure builds the checkout configuration for intent without side effects.
func (d *Dispatcher) Configure(p auth.Principal, intent Intent) (CheckoutConfig, error) {
	if err := p.Validate(); err != nil {
		return CheckoutConfig{}, auth.ErrUnauthenticated
	}

	meta := map[string]string{
		MetaPrincipalID: strconv.FormatUint(uint64(p.ID), 10),
	}
	if p.TenantID != nil {
		meta[MetaTenantID] = strconv.FormatUint(uint64(*p.TenantID), 10)
	}

	cfg := CheckoutConfig{
		Currency:          d.opts.Currency,
		SuccessURL:        d.opts.BaseURL + "/payments/success?session_id={CHECKOUT_SESSION_ID}",
		ClientReferenceID: meta[MetaPrincipalID],
		Metadata:          meta,
	}

	switch in := intent.(type) {
	case Subscription:
		if _, err := ParsePlan(string(in.Plan)); err != nil {
			return CheckoutConfig{}, err
		}
		cfg.Mode = ModeSubscription
		item := LineItem{
			Name:       in.Plan.DisplayName() + " plan",
			UnitAmount: in.Plan.MonthlyPrice(),
			Interval:   "month",
			Quantity:   1,
		}
		if priceID := d.opts.Prices[in.Plan.priceKey()]; priceID != "" {
			item.PriceID = priceID
		}
		cfg.LineItems = []LineItem{item}
		meta[MetaPlan] = string(in.Plan)

	case InvoicePayment:
		if in.MinorUnits <= 0 {
			return CheckoutConfig{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
		}
		cfg.Mode = ModePayment
		cfg.LineItems = []LineItem{{
			Name:       in.Description,
			UnitAmount: in.MinorUnits,
			Quantity:   1,
		}}
		meta[MetaInvoiceID] = strconv.FormatUint(uint64(in.InvoiceID), 10)
		meta[MetaAmountMinor] = strconv.FormatInt(in.MinorUnits, 10)
		cfg.ExpiresAt = d.now().Add(InvoiceCheckoutTTL)

	case SetupPaymentMethod:
		cfg.Mode = ModeSetup

	default:
		return CheckoutConfig{}, fmt.Errorf("%w: %T", ErrUnsupportedIntent, intent)
	}

	meta[MetaIntent] = string(intent.Type())
	cfg.CancelURL = d.opts.BaseURL + "/payments/cancel?intent=" + string(intent.Type())
	return cfg, nil
}

// DispatchIntent creates the provider session for an already validated
// intent. The provider call is not cancelled when the caller goes away, so a
// session created provider-side is always recorded; it is still bounded by
// the configured timeout.
func (d *Dispatcher) DispatchIntent(ctx context.Context, p auth.Principal, intent Intent) (CheckoutSession, error) {
	cfg, err := d.Configure(p, intent)
	if err != nil {
		return CheckoutSession{}, err
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.Timeout)
	defer cancel()

	ps, err := d.provider.CreateCheckoutSession(callCtx, cfg)
	if err != nil {
		switch {
		case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrProviderRejected):
			return CheckoutSession{}, err
		default:
			return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	out := CheckoutSession{
		ProviderSessionID: ps.ID,
		RedirectURL:       ps.URL,
		SuccessURL:        cfg.SuccessURL,
		CancelURL:         cfg.CancelURL,
		Metadata:          cfg.Metadata,
	}
	if d.recorder != nil {
		if err := d.recorder.Record(callCtx, sessionRecord(p, intent, out)); err != nil {
			// the provider session exists; the webhook carries everything needed
			log.Error().Err(err).
				Str("checkout_session_id", ps.ID).
				Uint("principal_id", p.ID).
				Msg("record checkout session failed")
		}
	}
	return out, nil
}

func sessionRecord(p auth.Principal, intent Intent, s CheckoutSession) *models.CheckoutSession {
	rec := &models.CheckoutSession{
		ID:             s.ProviderSessionID,
		PrincipalID:    p.ID,
		OrganizationID: p.TenantID,
		Intent:         string(intent.Type()),
		RedirectURL:    s.RedirectURL,
	}
	switch in := intent.(type) {
	case Subscription:
		rec.Plan = string(in.Plan)
		rec.AmountCents = in.Plan.MonthlyPrice()
	case InvoicePayment:
		id := in.InvoiceID
		rec.InvoiceID = &id
		rec.AmountCents = in.MinorUnits
	}
	if raw, err := json.Marshal(s.Metadata); err == nil {
		rec.Metadata = string(raw)
	}
	return rec
}
