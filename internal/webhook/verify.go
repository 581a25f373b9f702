// Package webhook verifies payment provider events and maps them to
// idempotent billing state transitions.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrSignatureVerificationFailed means the payload could not be
	// authenticated. Nothing in it may be trusted.
	ErrSignatureVerificationFailed = errors.New("webhook signature verification failed")
	// ErrMalformedEvent is an authenticated event whose object cannot be used.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Event is a verified provider event. Data is the raw event object.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// Verifier authenticates a raw delivery.
type Verifier interface {
	Verify(payload []byte, signature string) (Event, error)
}

// StripeVerifier checks the Stripe-Signature header against the endpoint
// secret, including the timestamp tolerance.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: strings.TrimSpace(secret)}
}

func (v *StripeVerifier) Verify(payload []byte, signature string) (Event, error) {
	if v.secret == "" {
		return Event{}, fmt.Errorf("%w: no endpoint secret configured", ErrSignatureVerificationFailed)
	}
	if strings.TrimSpace(signature) == "" {
		return Event{}, fmt.Errorf("%w: missing signature", ErrSignatureVerificationFailed)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	if ev.ID == "" {
		return Event{}, fmt.Errorf("%w: event id is empty", ErrMalformedEvent)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Data = ev.Data.Raw
	}
	return out, nil
}
