package view

import (
	"strings"
	"testing"
	"time"

	"childcare-billing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomponents "maragu.dev/gomponents"
)

func render(t *testing.T, n gomponents.Node) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, n.Render(&b))
	return b.String()
}

func TestSignIn_ErrorMessage(t *testing.T) {
	out := render(t, SignIn("account_locked"))
	assert.Contains(t, out, `action="/auth/login"`)
	assert.Contains(t, out, "Too many failed attempts")

	out = render(t, SignIn("<script>"))
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, `class="error"`)
}

func TestGuardianDashboard_PayButtonsOnlyForOpenInvoices(t *testing.T) {
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	out := render(t, GuardianDashboard(GuardianData{
		Who: "Pat",
		Invoices: []models.Invoice{
			{ID: 7, Number: "INV-OPEN", AmountCents: 1250, Status: models.InvoiceOpen, DueDate: due},
			{ID: 8, Number: "INV-PAID", AmountCents: 900, Status: models.InvoicePaid, DueDate: due},
		},
		UnreadTickets: 2,
	}))

	assert.Equal(t, 1, strings.Count(out, `data-intent="INVOICE_PAYMENT"`))
	assert.Contains(t, out, `&#34;amount&#34;:&#34;12.50&#34;`)
	assert.Contains(t, out, `&#34;invoiceId&#34;:7`)
	assert.Contains(t, out, `data-intent="SETUP_PAYMENT_METHOD"`)
	assert.Contains(t, out, "2 unread ticket(s).")

	out = render(t, GuardianDashboard(GuardianData{PaymentMethodReady: true}))
	assert.NotContains(t, out, `data-intent="SETUP_PAYMENT_METHOD"`)
}

func TestPaymentResult(t *testing.T) {
	assert.Contains(t, render(t, PaymentResult(true)), "Payment received")
	assert.Contains(t, render(t, PaymentResult(false)), "Payment cancelled")
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "0.05", formatMinor(5))
	assert.Equal(t, "325.00", formatMinor(32500))
	assert.Equal(t, "-", orDash(""))
}
