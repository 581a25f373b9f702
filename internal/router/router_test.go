package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"childcare-billing/internal/config"
	"childcare-billing/internal/database"
	"childcare-billing/internal/models"
	"childcare-billing/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	demoPassword  = "Demo-pass-123"
	webhookSecret = "whsec_router_test"
)

// fakeProvider hands out sequential session ids and keeps the configs it saw.
type fakeProvider struct {
	mu      sync.Mutex
	configs []payment.CheckoutConfig
	err     error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, cfg payment.CheckoutConfig) (payment.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return payment.ProviderSession{}, p.err
	}
	p.configs = append(p.configs, cfg)
	id := fmt.Sprintf("cs_test_%d", len(p.configs))
	return payment.ProviderSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (p *fakeProvider) last() payment.CheckoutConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configs[len(p.configs)-1]
}

type testApp struct {
	t        *testing.T
	r        *gin.Engine
	db       *gorm.DB
	provider *fakeProvider
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "app.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))
	_, err = database.Seed(context.Background(), db, demoPassword, bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode, BaseURL: "https://billing.example.com"},
		Session:   config.SessionConfig{Secret: "0123456789abcdef0123456789abcdef", Issuer: "test", CookieName: "ccb_session"},
		Security:  config.SecurityConfig{BcryptCost: bcrypt.MinCost, EncryptionKey: "enc"},
		Stripe:    config.StripeConfig{SecretKey: "sk_test", WebhookSecret: webhookSecret, Currency: "usd"},
		RateLimit: config.RateLimitConfig{LoginPerMinute: 1000, Burst: 1000},
		App:       config.AppSubConfig{PageSize: 20},
	}
	provider := &fakeProvider{}
	return &testApp{t: t, r: SetupRouter(cfg, db, provider), db: db, provider: provider}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/auth/login", "", map[string]interface{}{"email": email, "password": demoPassword, "bearer_token": true})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Data.Token)
	return resp.Data.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func (a *testApp) invoiceByNumber(number string) models.Invoice {
	a.t.Helper()
	var inv models.Invoice
	require.NoError(a.t, a.db.Where("number = ?", number).First(&inv).Error)
	return inv
}

func TestLogin_SetsCookieAndLogoutClears(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "Owner1@Example.com", "password": demoPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, "ccb_session", cookie[0].Name)
	assert.True(t, cookie[0].HttpOnly)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.NotContains(t, data, "token", "cookie clients do not get the raw token")
	assert.Contains(t, data, "expires_at")

	w = app.do(http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Equal(t, "", cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	app := newTestApp(t)
	creds := map[string]string{"email": "parent1.1@example.com", "password": "Wrong-pass-1"}
	for i := 0; i < 5; i++ {
		w := app.do(http.MethodPost, "/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid_credentials", decode(t, w)["reason"])
	}

	w := app.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "parent1.1@example.com", "password": demoPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "account_locked", decode(t, w)["reason"])

	w = app.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": demoPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decode(t, w)["reason"])
}

func TestLogin_FormRedirects(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=owner2%40example.com&password="+demoPassword))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=owner2%40example.com&password=nope"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?error=invalid_credentials", w.Header().Get("Location"))
}

func TestAPI_AuthenticationAndRoles(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	guardian := app.login("parent1.1@example.com")
	w = app.do(http.MethodGet, "/api/me", guardian, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/logs", guardian, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = app.do(http.MethodGet, "/api/organizations", guardian, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	root := app.login("admin@example.com")
	w = app.do(http.MethodGet, "/api/organizations", root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(http.MethodGet, "/api/logs", root, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_TenantIsolation(t *testing.T) {
	app := newTestApp(t)
	owner := app.login("owner1@example.com")
	foreign := app.invoiceByNumber("DEMO-2-1-1")

	w := app.do(http.MethodGet, "/api/invoices", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data struct {
			Invoices []struct {
				Number         string `json:"number"`
				OrganizationID uint   `json:"organization_id"`
			} `json:"invoices"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data.Invoices, 4)
	for _, inv := range list.Data.Invoices {
		assert.True(t, strings.HasPrefix(inv.Number, "DEMO-1-"), inv.Number)
	}

	w = app.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d", foreign.ID), owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(http.MethodPost, fmt.Sprintf("/api/invoices/%d/void", foreign.ID), owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	guardian := app.login("parent1.2@example.com")
	w = app.do(http.MethodGet, "/api/invoices", guardian, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data.Invoices, 2)
	for _, inv := range list.Data.Invoices {
		assert.True(t, strings.HasPrefix(inv.Number, "DEMO-1-2-"), inv.Number)
	}
}

func TestCreateSession_InvoicePaymentAndWebhook(t *testing.T) {
	app := newTestApp(t)
	guardian := app.login("parent1.1@example.com")
	inv := app.invoiceByNumber("DEMO-1-1-1")

	w := app.do(http.MethodPost, "/payments/create-session", guardian, map[string]interface{}{
		"intentType": "INVOICE_PAYMENT",
		"payload":    map[string]interface{}{"invoiceId": inv.ID, "amount": "325.00"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "cs_test_1", body["checkoutSessionId"])
	assert.Equal(t, "https://checkout.example.com/cs_test_1", body["redirectUrl"])

	cfg := app.provider.last()
	assert.Equal(t, payment.ModePayment, cfg.Mode)
	require.Len(t, cfg.LineItems, 1)
	assert.EqualValues(t, 32500, cfg.LineItems[0].UnitAmount)

	var recorded models.CheckoutSession
	require.NoError(t, app.db.First(&recorded, "id = ?", "cs_test_1").Error)
	assert.Equal(t, string(payment.IntentInvoicePayment), recorded.Intent)

	obj := map[string]interface{}{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"metadata":       cfg.Metadata,
	}
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_paid_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data":   map[string]interface{}{"object": obj},
	})
	require.NoError(t, err)

	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-provider", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", sig)
		w := httptest.NewRecorder()
		app.r.ServeHTTP(w, req)
		return w
	}
	signature := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{Payload: payload, Secret: webhookSecret}).Header

	w = post("t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_signature", decode(t, w)["reason"])
	assert.Equal(t, models.InvoiceOpen, app.invoiceByNumber("DEMO-1-1-1").Status)

	w = post(signature)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "processed", decode(t, w)["status"])
	paid := app.invoiceByNumber("DEMO-1-1-1")
	assert.Equal(t, models.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	w = post(signature)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])

	// a paid invoice cannot be checked out again
	w = app.do(http.MethodPost, "/payments/create-session", guardian, map[string]interface{}{
		"intentType": "INVOICE_PAYMENT",
		"payload":    map[string]interface{}{"invoiceId": inv.ID, "amount": "325.00"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateSession_ConcurrentInvoiceCheckouts(t *testing.T) {
	app := newTestApp(t)
	guardian := app.login("parent1.1@example.com")
	inv := app.invoiceByNumber("DEMO-1-1-1")
	body, err := json.Marshal(map[string]interface{}{
		"intentType": "INVOICE_PAYMENT",
		"payload":    map[string]interface{}{"invoiceId": inv.ID, "amount": "325.00"},
	})
	require.NoError(t, err)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/payments/create-session", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+guardian)
			w := httptest.NewRecorder()
			app.r.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)
	app.provider.mu.Lock()
	assert.Len(t, app.provider.configs, 1, "only one provider session for the invoice")
	app.provider.mu.Unlock()

	held := app.invoiceByNumber("DEMO-1-1-1")
	require.NotNil(t, held.CheckoutHoldUntil)
	assert.Equal(t, models.InvoiceOpen, held.Status)
}

func TestCreateSession_Rejections(t *testing.T) {
	app := newTestApp(t)
	guardian := app.login("parent1.1@example.com")
	own := app.invoiceByNumber("DEMO-1-1-1")
	sibling := app.invoiceByNumber("DEMO-1-2-1")
	foreign := app.invoiceByNumber("DEMO-2-1-1")

	cases := []struct {
		name   string
		token  string
		body   map[string]interface{}
		status int
		reason string
	}{
		{"wrong amount", guardian, map[string]interface{}{"intentType": "INVOICE_PAYMENT", "payload": map[string]interface{}{"invoiceId": own.ID, "amount": "300.00"}}, http.StatusBadRequest, "invalid_amount"},
		{"negative amount", guardian, map[string]interface{}{"intentType": "INVOICE_PAYMENT", "payload": map[string]interface{}{"invoiceId": own.ID, "amount": "-1"}}, http.StatusBadRequest, "invalid_amount"},
		{"another guardian", guardian, map[string]interface{}{"intentType": "INVOICE_PAYMENT", "payload": map[string]interface{}{"invoiceId": sibling.ID, "amount": "325.00"}}, http.StatusNotFound, "not_found"},
		{"another organization", guardian, map[string]interface{}{"intentType": "INVOICE_PAYMENT", "payload": map[string]interface{}{"invoiceId": foreign.ID, "amount": "325.00"}}, http.StatusNotFound, "not_found"},
		{"guardian subscribing", guardian, map[string]interface{}{"intentType": "SUBSCRIPTION", "payload": map[string]interface{}{"plan": "STARTER"}}, http.StatusForbidden, "forbidden"},
		{"unknown intent", guardian, map[string]interface{}{"intentType": "REFUND", "payload": map[string]interface{}{}}, http.StatusBadRequest, "unsupported_intent"},
		{"no session", "", map[string]interface{}{"intentType": "SETUP_PAYMENT_METHOD", "payload": map[string]interface{}{}}, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(http.MethodPost, "/payments/create-session", tc.token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.reason != "" {
				assert.Equal(t, tc.reason, decode(t, w)["reason"])
			}
		})
	}

	owner := app.login("owner1@example.com")
	w := app.do(http.MethodPost, "/payments/create-session", owner, map[string]interface{}{
		"intentType": "SUBSCRIPTION", "payload": map[string]interface{}{"plan": "GOLD"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_plan", decode(t, w)["reason"])

	app.provider.err = fmt.Errorf("%w: boom", payment.ErrProviderRejected)
	w = app.do(http.MethodPost, "/payments/create-session", owner, map[string]interface{}{
		"intentType": "SUBSCRIPTION", "payload": map[string]interface{}{"plan": "STARTER"},
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "provider_rejected", decode(t, w)["reason"])
}

func TestExport_ScopedToTenant(t *testing.T) {
	app := newTestApp(t)
	owner := app.login("owner1@example.com")

	w := app.do(http.MethodGet, "/api/exports/invoices.csv", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "DEMO-1-1-1")
	assert.NotContains(t, w.Body.String(), "DEMO-2-")

	w = app.do(http.MethodGet, "/api/exports/invoices.xlsx", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	guardian := app.login("parent1.1@example.com")
	w = app.do(http.MethodGet, "/api/exports/invoices.csv", guardian, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTickets_Thread(t *testing.T) {
	app := newTestApp(t)
	guardian := app.login("parent1.1@example.com")

	w := app.do(http.MethodPost, "/api/tickets", guardian, map[string]string{"subject": "Receipt", "body": "Can I get a receipt?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			Ticket struct {
				ID uint `json:"id"`
			} `json:"ticket"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.Ticket.ID
	require.NotZero(t, id)

	root := app.login("admin@example.com")
	w = app.do(http.MethodPost, fmt.Sprintf("/api/tickets/%d/replies", id), root, map[string]string{"body": "Sent by email."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	other := app.login("parent2.1@example.com")
	w = app.do(http.MethodGet, fmt.Sprintf("/api/tickets/%d", id), other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, fmt.Sprintf("/api/tickets/%d", id), guardian, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sent by email.")

	w = app.do(http.MethodPost, fmt.Sprintf("/api/tickets/%d/close", id), guardian, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfile_ChangePassword(t *testing.T) {
	app := newTestApp(t)
	token := app.login("parent2.2@example.com")

	w := app.do(http.MethodPost, "/api/me/password", token, map[string]string{"old_password": "nope", "new_password": "Another-pass-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "wrong_password", decode(t, w)["reason"])

	w = app.do(http.MethodPost, "/api/me/password", token, map[string]string{"old_password": demoPassword, "new_password": "Another-pass-9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "parent2.2@example.com", "password": "Another-pass-9"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPatch, "/api/me", token, map[string]string{"display_name": "  Sam  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"display_name":"Sam"`)
}

func TestPages_RedirectByRole(t *testing.T) {
	app := newTestApp(t)

	w := httptest.NewRecorder()
	app.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	token := app.login("owner1@example.com")
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "ccb_session", Value: token})
	w = httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/business", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/business", nil)
	req.AddCookie(&http.Cookie{Name: "ccb_session", Value: token})
	w = httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sunshine Daycare")
	assert.Contains(t, w.Body.String(), "DEMO-1-1-1")

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "ccb_session", Value: token})
	w = httptest.NewRecorder()
	app.r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}
