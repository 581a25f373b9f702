// Package view renders the server-side dashboard pages.
package view

import (
	"time"

	"childcare-billing/internal/util"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2328}
.layout{max-width:1080px;margin:0 auto;padding:24px}
.topbar{display:flex;justify-content:space-between;align-items:center;margin-bottom:16px}
.card{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:16px;margin-bottom:16px}
table{width:100%;border-collapse:collapse}th,td{text-align:left;padding:6px;border-bottom:1px solid #eaeef2}
.muted{color:#656d76}.error{color:#cf222e}.badge{padding:2px 6px;border-radius:10px;background:#ddf4ff}
button{cursor:pointer}
`

// checkoutScript posts payment buttons to the session endpoint and follows
// the returned redirect.
const checkoutScript = `
document.querySelectorAll('[data-intent]').forEach(function(btn){
  btn.addEventListener('click', function(){
    var payload = btn.dataset.payload ? JSON.parse(btn.dataset.payload) : {};
    btn.disabled = true;
    fetch('/payments/create-session', {
      method: 'POST', credentials: 'same-origin',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({intentType: btn.dataset.intent, payload: payload})
    }).then(function(r){ return r.json(); }).then(function(res){
      if (res.redirectUrl) { window.location = res.redirectUrl; return; }
      alert(res.error || 'Payment could not be started');
      btn.disabled = false;
    }).catch(function(){ btn.disabled = false; });
  });
});
`

func head(title string) gomponents.Node {
	return html.Head(
		html.Meta(html.Charset("utf-8")),
		html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
		html.TitleEl(gomponents.Text(title+" | Childcare Billing")),
		html.StyleEl(gomponents.Raw(stylesheet)),
	)
}

func page(title, who string, body ...gomponents.Node) gomponents.Node {
	return html.HTML(
		html.Lang("en"),
		head(title),
		html.Body(
			html.Main(
				html.Class("layout"),
				html.Div(
					html.Class("topbar"),
					html.Strong(gomponents.Text("Childcare Billing")),
					html.Div(
						html.Span(html.Class("muted"), gomponents.Text("Signed in as "+who+" ")),
						html.Form(
							html.Method("post"),
							html.Action("/auth/logout"),
							html.Style("display:inline"),
							html.Button(html.Type("submit"), gomponents.Text("Sign out")),
						),
					),
				),
				html.H1(gomponents.Text(title)),
				gomponents.Group(body),
				html.Script(gomponents.Raw(checkoutScript)),
			),
		),
	)
}

func card(title string, children ...gomponents.Node) gomponents.Node {
	return html.Section(html.Class("card"), html.H2(gomponents.Text(title)), gomponents.Group(children))
}

func table(headers []string, rows [][]gomponents.Node) gomponents.Node {
	if len(rows) == 0 {
		return html.P(html.Class("muted"), gomponents.Text("Nothing here yet."))
	}
	ths := make([]gomponents.Node, 0, len(headers))
	for _, h := range headers {
		ths = append(ths, html.Th(gomponents.Text(h)))
	}
	trs := make([]gomponents.Node, 0, len(rows))
	for _, r := range rows {
		tds := make([]gomponents.Node, 0, len(r))
		for _, cell := range r {
			tds = append(tds, html.Td(cell))
		}
		trs = append(trs, html.Tr(tds...))
	}
	return html.Table(html.THead(html.Tr(ths...)), html.TBody(trs...))
}

func text(s string) gomponents.Node { return gomponents.Text(s) }

func money(cents int64) gomponents.Node { return gomponents.Text("$" + util.FormatCents(cents)) }

func date(t time.Time) gomponents.Node {
	if t.IsZero() {
		return gomponents.Text("-")
	}
	return gomponents.Text(t.Format("2006-01-02"))
}
