package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// StripeProvider creates hosted checkout sessions through the Stripe API.
type StripeProvider struct {
	client session.Client
}

func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{
		client: session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, cfg CheckoutConfig) (ProviderSession, error) {
	params := checkoutParams(cfg)
	params.Context = ctx

	cs, err := s.client.New(params)
	if err != nil {
		return ProviderSession{}, classifyStripeError(ctx, err)
	}
	return ProviderSession{ID: cs.ID, URL: cs.URL}, nil
}

func checkoutParams(cfg CheckoutConfig) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(cfg.Mode)),
		SuccessURL:        stripe.String(cfg.SuccessURL),
		CancelURL:         stripe.String(cfg.CancelURL),
		ClientReferenceID: stripe.String(cfg.ClientReferenceID),
	}
	for k, v := range cfg.Metadata {
		params.AddMetadata(k, v)
	}
	if !cfg.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(cfg.ExpiresAt.Unix())
	}

	for _, item := range cfg.LineItems {
		li := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(item.Quantity)}
		if item.PriceID != "" {
			li.Price = stripe.String(item.PriceID)
		} else {
			pd := &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(cfg.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(item.Name)},
			}
			if item.Interval != "" {
				pd.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{Interval: stripe.String(item.Interval)}
			}
			li.PriceData = pd
		}
		params.LineItems = append(params.LineItems, li)
	}

	// copy metadata onto the object the session creates so later events
	// (subscription updates, payment intents) carry it too
	switch cfg.Mode {
	case ModeSubscription:
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: cfg.Metadata}
	case ModePayment:
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: cfg.Metadata}
	case ModeSetup:
		params.Currency = stripe.String(cfg.Currency)
		params.SetupIntentData = &stripe.CheckoutSessionSetupIntentDataParams{Metadata: cfg.Metadata}
	}
	return params
}

// classifyStripeError separates transient failures (network, timeouts,
// rate limiting, 5xx) from requests the provider refused.
func classifyStripeError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, se.Msg)
	}
	return fmt.Errorf("%w: %s", ErrProviderRejected, se.Msg)
}
