package view

import (
	"encoding/json"
	"fmt"
	"strconv"

	"childcare-billing/internal/models"
	"childcare-billing/internal/payment"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

var signInErrors = map[string]string{
	"invalid_credentials": "Invalid email or password.",
	"account_locked":      "Too many failed attempts. Try again in a few minutes.",
	"invalid_param":       "Email and password are required.",
	"rate_limited":        "Too many attempts. Try again later.",
}

// SignIn is the landing page.
func SignIn(errCode string) gomponents.Node {
	content := []gomponents.Node{
		html.H1(gomponents.Text("Childcare Billing")),
		html.P(html.Class("muted"), gomponents.Text("Sign in to manage invoices and payments.")),
		html.Form(
			html.Method("post"),
			html.Action("/auth/login"),
			html.Class("card"),
			html.Label(gomponents.Text("Email")),
			html.Input(html.Type("email"), html.Name("email"), html.Required(), html.AutoComplete("username")),
			html.Label(gomponents.Text("Password")),
			html.Input(html.Type("password"), html.Name("password"), html.Required(), html.AutoComplete("current-password")),
			html.Button(html.Type("submit"), gomponents.Text("Sign in")),
		),
	}
	if msg, ok := signInErrors[errCode]; ok {
		content = append([]gomponents.Node{html.P(html.Class("error"), gomponents.Text(msg))}, content...)
	}
	return html.HTML(
		html.Lang("en"),
		head("Sign in"),
		html.Body(html.Main(html.Class("layout"), gomponents.Group(content))),
	)
}

// AdminData feeds the system admin dashboard.
type AdminData struct {
	Who           string
	Organizations []models.Organization
	Invoices      []models.Invoice
	UnreadTickets int64
}

func AdminDashboard(d AdminData) gomponents.Node {
	orgRows := make([][]gomponents.Node, 0, len(d.Organizations))
	for _, o := range d.Organizations {
		orgRows = append(orgRows, []gomponents.Node{
			text(strconv.FormatUint(uint64(o.ID), 10)), text(o.Name), text(o.Plan), text(o.SubscriptionStatus),
		})
	}
	return page("Administration", d.Who,
		card("Organizations", table([]string{"ID", "Name", "Plan", "Subscription"}, orgRows)),
		card("Recent invoices", invoiceTable(d.Invoices, false)),
		ticketsCard(d.UnreadTickets),
	)
}

// BusinessData feeds the childcare admin dashboard.
type BusinessData struct {
	Who           string
	Organization  *models.Organization
	Guardians     []models.User
	Children      []models.Child
	Invoices      []models.Invoice
	UnreadTickets int64
}

func BusinessDashboard(d BusinessData) gomponents.Node {
	var orgName, plan, status string
	if d.Organization != nil {
		orgName, plan, status = d.Organization.Name, d.Organization.Plan, d.Organization.SubscriptionStatus
	}
	plans := make([]gomponents.Node, 0, len(payment.Plans))
	for _, p := range payment.Plans {
		plans = append(plans, html.Li(
			text(fmt.Sprintf("%s - $%s/month ", p.DisplayName(), formatMinor(p.MonthlyPrice()))),
			payButton(payment.IntentSubscription, map[string]interface{}{"plan": string(p)}, "Subscribe"),
		))
	}

	guardianRows := make([][]gomponents.Node, 0, len(d.Guardians))
	for _, g := range d.Guardians {
		guardianRows = append(guardianRows, []gomponents.Node{text(g.DisplayName), text(g.Email)})
	}

	return page(orgName, d.Who,
		card("Subscription",
			html.P(text("Plan: "+orDash(plan)+" "), html.Span(html.Class("badge"), text(orDash(status)))),
			html.Ul(plans...),
		),
		card("Guardians", table([]string{"Name", "Email"}, guardianRows)),
		card("Children", childTable(d.Children)),
		card("Invoices",
			invoiceTable(d.Invoices, false),
			html.P(
				html.A(html.Href("/api/exports/invoices.csv"), text("Export CSV")), text(" · "),
				html.A(html.Href("/api/exports/invoices.xlsx"), text("Export XLSX")),
			),
		),
		ticketsCard(d.UnreadTickets),
	)
}

// GuardianData feeds the guardian dashboard.
type GuardianData struct {
	Who                string
	PaymentMethodReady bool
	Children           []models.Child
	Invoices           []models.Invoice
	UnreadTickets      int64
}

func GuardianDashboard(d GuardianData) gomponents.Node {
	pm := html.P(text("No saved payment method. "),
		payButton(payment.IntentSetupPaymentMethod, nil, "Add payment method"))
	if d.PaymentMethodReady {
		pm = html.P(text("A payment method is on file."))
	}
	return page("My family", d.Who,
		card("Invoices", invoiceTable(d.Invoices, true)),
		card("Children", childTable(d.Children)),
		card("Payment method", pm),
		ticketsCard(d.UnreadTickets),
	)
}

// PaymentResult is shown after returning from hosted checkout. The webhook,
// not this page, changes billing state.
func PaymentResult(success bool) gomponents.Node {
	title, msg := "Payment cancelled", "No payment was taken."
	if success {
		title, msg = "Payment received", "Thank you. Your account updates as soon as the payment is confirmed."
	}
	return html.HTML(
		html.Lang("en"),
		head(title),
		html.Body(html.Main(html.Class("layout"),
			html.H1(text(title)),
			html.P(text(msg)),
			html.P(html.A(html.Href("/dashboard"), text("Back to dashboard"))),
		)),
	)
}

func invoiceTable(invoices []models.Invoice, payable bool) gomponents.Node {
	rows := make([][]gomponents.Node, 0, len(invoices))
	for _, inv := range invoices {
		action := text("")
		if payable && (inv.Status == models.InvoiceOpen || inv.Status == models.InvoiceFailed) {
			action = payButton(payment.IntentInvoicePayment, map[string]interface{}{
				"invoiceId":   inv.ID,
				"amount":      formatMinor(inv.AmountCents),
				"description": inv.Description,
			}, "Pay")
		}
		rows = append(rows, []gomponents.Node{
			text(inv.Number), text(inv.Description), money(inv.AmountCents), text(inv.Status), date(inv.DueDate), action,
		})
	}
	return table([]string{"Number", "Description", "Amount", "Status", "Due", ""}, rows)
}

func childTable(children []models.Child) gomponents.Node {
	rows := make([][]gomponents.Node, 0, len(children))
	for _, ch := range children {
		rows = append(rows, []gomponents.Node{text(ch.FirstName + " " + ch.LastName), date(ch.BirthDate)})
	}
	return table([]string{"Name", "Birth date"}, rows)
}

func ticketsCard(unread int64) gomponents.Node {
	return card("Support", html.P(text(fmt.Sprintf("%d unread ticket(s).", unread))))
}

func payButton(intent payment.IntentType, payload map[string]interface{}, label string) gomponents.Node {
	nodes := []gomponents.Node{html.Type("button"), html.Data("intent", string(intent))}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		nodes = append(nodes, html.Data("payload", string(raw)))
	}
	nodes = append(nodes, text(label))
	return html.Button(nodes...)
}

func formatMinor(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
