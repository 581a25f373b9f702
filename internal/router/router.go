package router

import (
	"net/http"

	"childcare-billing/internal/auth"
	"childcare-billing/internal/config"
	"childcare-billing/internal/handler"
	"childcare-billing/internal/middleware"
	"childcare-billing/internal/payment"
	"childcare-billing/internal/repository"
	"childcare-billing/internal/webhook"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter wires repositories, the session gate and the payment flow
// into a gin engine. provider is the checkout backend, Stripe in production.
func SetupRouter(cfg *config.Config, db *gorm.DB, provider payment.Provider) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	orgs := repository.NewOrganizations(db)
	users := repository.NewUsers(db)
	invoices := repository.NewInvoices(db)
	children := repository.NewChildren(db)
	ageRanges := repository.NewAgeRanges(db)
	tickets := repository.NewTickets(db)
	auditLogs := repository.NewAuditLogs(db)

	sessions := auth.NewSessions(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL())
	cookie := middleware.SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Server.Production,
		TTL:    sessions.TTL(),
	}
	guard := middleware.NewGuard(auth.NewGate(sessions), cookie)
	audit := middleware.AuditMiddleware(auditLogs, cfg.Security.EncryptionKey)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.Burst)

	dispatcher := payment.NewDispatcher(provider, repository.NewCheckoutSessions(db), payment.Options{
		BaseURL:  cfg.Server.BaseURL,
		Currency: cfg.Stripe.Currency,
		Prices:   cfg.Stripe.Prices,
		Timeout:  cfg.Stripe.Timeout(),
	})
	mapper := webhook.NewMapper(repository.NewBilling(db), cfg.Stripe.Timeout())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// ====== pages ======
	pages := handler.NewPageHandler(orgs, users, children, invoices, tickets)
	r.GET("/", pages.SignIn)
	r.GET("/dashboard", guard.Page(auth.AllRoles...), pages.Dashboard)
	r.GET("/admin", guard.Page(auth.RoleSystemAdmin), pages.Admin)
	r.GET("/business", guard.Page(auth.RoleChildcareAdmin), pages.Business)
	r.GET("/guardian", guard.Page(auth.RoleGuardian), pages.Guardian)
	r.GET("/payments/success", guard.Page(auth.AllRoles...), pages.PaymentSuccess)
	r.GET("/payments/cancel", guard.Page(auth.AllRoles...), pages.PaymentCancel)

	// ====== session ======
	authHandler := handler.NewAuthHandler(users, sessions, cookie, cfg.Security.BcryptCost)
	r.POST("/auth/login", loginLimiter.Middleware(), authHandler.Login)
	r.POST("/auth/register", loginLimiter.Middleware(), authHandler.Register)
	r.POST("/auth/logout", authHandler.Logout)

	// ====== payments ======
	paymentHandler := handler.NewPaymentHandler(dispatcher, invoices)
	r.POST("/payments/create-session", guard.API(auth.AllRoles...), audit, paymentHandler.CreateSession)

	webhookHandler := handler.NewWebhookHandler(webhook.NewStripeVerifier(cfg.Stripe.WebhookSecret), mapper)
	r.POST("/webhooks/payment-provider", webhookHandler.Receive)

	// ====== API ======
	api := r.Group("/api", guard.API(auth.AllRoles...), audit)
	sysAdmin := guard.API(auth.RoleSystemAdmin)
	bizAdmin := guard.API(auth.RoleChildcareAdmin)
	staff := guard.API(auth.RoleSystemAdmin, auth.RoleChildcareAdmin)

	userHandler := handler.NewUserHandler(users, orgs, cfg.Security.BcryptCost)
	api.GET("/me", userHandler.GetMe)
	api.PATCH("/me", userHandler.UpdateProfile)
	api.POST("/me/password", userHandler.ChangePassword)
	api.GET("/guardians", staff, userHandler.ListGuardians)
	api.POST("/guardians", bizAdmin, userHandler.CreateGuardian)

	orgHandler := handler.NewOrganizationHandler(orgs)
	api.GET("/organizations", sysAdmin, orgHandler.List)
	api.POST("/organizations", sysAdmin, orgHandler.Create)
	api.GET("/organizations/:id", orgHandler.Get)

	childHandler := handler.NewChildHandler(children, ageRanges)
	api.GET("/age-ranges", staff, childHandler.ListAgeRanges)
	api.POST("/age-ranges", bizAdmin, childHandler.CreateAgeRange)
	api.GET("/children", childHandler.List)
	api.POST("/children", bizAdmin, childHandler.Create)

	invoiceHandler := handler.NewInvoiceHandler(invoices, cfg.App.PageSize)
	api.GET("/invoices", invoiceHandler.List)
	api.GET("/invoices/:id", invoiceHandler.Get)
	api.POST("/invoices", bizAdmin, invoiceHandler.Create)
	api.POST("/invoices/:id/void", staff, invoiceHandler.Void)

	exportHandler := handler.NewExportHandler(invoices)
	api.GET("/exports/invoices.csv", staff, exportHandler.ExportCSV)
	api.GET("/exports/invoices.xlsx", staff, exportHandler.ExportXLSX)

	ticketHandler := handler.NewTicketHandler(tickets)
	api.GET("/tickets", ticketHandler.List)
	api.POST("/tickets", ticketHandler.Create)
	api.GET("/tickets/:id", ticketHandler.Get)
	api.POST("/tickets/:id/replies", ticketHandler.Reply)
	api.POST("/tickets/:id/close", ticketHandler.Close)
	api.GET("/unread-tickets", ticketHandler.Unread)

	logHandler := handler.NewLogHandler(auditLogs, cfg.Security.EncryptionKey)
	api.GET("/logs", sysAdmin, logHandler.ListLogs)

	return r
}
