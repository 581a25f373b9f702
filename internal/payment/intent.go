// Package payment turns payment requests into provider checkout sessions.
package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedIntent   = errors.New("unsupported intent")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrProviderRejected is a non-retryable provider refusal, e.g. an
	// unknown price id.
	ErrProviderRejected = errors.New("payment provider rejected request")
)

// IntentType is the closed set of payment flows.
type IntentType string

const (
	IntentSubscription       IntentType = "SUBSCRIPTION"
	IntentInvoicePayment     IntentType = "INVOICE_PAYMENT"
	IntentSetupPaymentMethod IntentType = "SETUP_PAYMENT_METHOD"
)

// ParseIntentType rejects anything outside the closed set.
func ParseIntentType(s string) (IntentType, error) {
	switch t := IntentType(s); t {
	case IntentSubscription, IntentInvoicePayment, IntentSetupPaymentMethod:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedIntent, s)
	}
}

// Intent is one of Subscription, InvoicePayment or SetupPaymentMethod.
type Intent interface {
	Type() IntentType
	sealed()
}

// Subscription buys a recurring plan.
type Subscription struct {
	Plan Plan
}

// InvoicePayment pays one invoice once.
type InvoicePayment struct {
	InvoiceID   uint
	Amount      string // decimal text as received
	MinorUnits  int64
	Description string
}

// SetupPaymentMethod stores a payment method for later use.
type SetupPaymentMethod struct{}

func (Subscription) Type() IntentType       { return IntentSubscription }
func (InvoicePayment) Type() IntentType     { return IntentInvoicePayment }
func (SetupPaymentMethod) Type() IntentType { return IntentSetupPaymentMethod }

func (Subscription) sealed()       {}
func (InvoicePayment) sealed()     {}
func (SetupPaymentMethod) sealed() {}

type subscriptionPayload struct {
	Plan string `json:"plan"`
}

type invoicePayload struct {
	InvoiceID   uint        `json:"invoiceId"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// DecodeIntent validates payload against the shape required by t.
func DecodeIntent(t IntentType, payload json.RawMessage) (Intent, error) {
	switch t {
	case IntentSubscription:
		var p subscriptionPayload
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		plan, err := ParsePlan(p.Plan)
		if err != nil {
			return nil, err
		}
		return Subscription{Plan: plan}, nil

	case IntentInvoicePayment:
		var p invoicePayload
		if err := decodeStrict(payload, &p); err != nil {
			return nil, err
		}
		if p.InvoiceID == 0 {
			return nil, fmt.Errorf("%w: invoiceId is required", ErrInvalidPayload)
		}
		minor, err := MinorUnits(p.Amount.String())
		if err != nil {
			return nil, err
		}
		desc := strings.TrimSpace(p.Description)
		if desc == "" {
			desc = fmt.Sprintf("Invoice #%d", p.InvoiceID)
		}
		if len(desc) > 255 {
			return nil, fmt.Errorf("%w: description too long", ErrInvalidPayload)
		}
		return InvoicePayment{
			InvoiceID:   p.InvoiceID,
			Amount:      p.Amount.String(),
			MinorUnits:  minor,
			Description: desc,
		}, nil

	case IntentSetupPaymentMethod:
		return SetupPaymentMethod{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIntent, t)
	}
}

func decodeStrict(payload json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
