package render

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"

	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const (
	StatusSuccess = "success"
	StatusCancel  = "cancel"
	StatusUnknown = "unknown"
)

const resultHTMLTemplate = `<!DOCTYPE html>
<html lang="hu">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    :root {
      --success: #22c55e;
      --error: #ef4444;
      --unknown: #fcb603;
      --bg: #f6f9fc;
      --card: #ffffff;
      --text: #1f2937;
      --muted: #6b7280;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      background: var(--bg);
      color: var(--text);
    }
    .container {
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      padding: 24px;
    }
    .card {
      width: 100%;
      max-width: 420px;
      background: var(--card);
      border-radius: 12px;
      padding: 32px;
      box-shadow: 0 10px 25px rgba(0,0,0,0.08);
      text-align: center;
    }
    .icon {
      width: 56px;
      height: 56px;
      border-radius: 50%;
      display: flex;
      align-items: center;
      justify-content: center;
      margin: 0 auto 16px;
      color: #fff;
      font-size: 28px;
      font-weight: bold;
    }
    .icon.success { background: var(--success); }
    .icon.cancel { background: var(--error); }
    .icon.unknown { background: var(--unknown); }
    h1 { font-size: 22px; margin: 0 0 12px; }
    p { font-size: 15px; color: var(--muted); margin: 0 0 20px; line-height: 1.5; }
    .amount { font-size: 18px; font-weight: 600; margin-bottom: 20px; }
    .btn {
      display: inline-block;
      padding: 12px 18px;
      border-radius: 8px;
      background: #e5e7eb;
      color: #111827;
      text-decoration: none;
      font-weight: 500;
      font-size: 14px;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="card">
      <div class="icon {{.Status}}">{{.Icon}}</div>
      <h1>{{.Title}}</h1>
      <p>{{.Message}}</p>
      {{if .Amount}}<div class="amount">Összeg: {{.Amount}} Ft</div>{{end}}
      {{if eq .Status "success"}}
      <a href="{{.BackURL}}" class="btn">Vissza a weboldalra</a>
      {{else}}
      <a href="#" onclick="history.back(); return false;" class="btn">Újrapróbálom</a>
      {{end}}
    </div>
  </div>
</body>
</html>`

// ResultPage is the view model of the page shown when the buyer returns.
type ResultPage struct {
	Title   string
	BackURL string
	Status  string
	Icon    string
	Message string
	Amount  string
}

type ResultRenderer struct {
	tpl *template.Template
}

func NewResultRenderer() *ResultRenderer {
	return &ResultRenderer{
		tpl: template.Must(template.New("result").Parse(resultHTMLTemplate)),
	}
}

// NewResultPage maps the provider payment status onto the page variant.
func NewResultPage(session domain.Session, title, backURL string) ResultPage {
	page := ResultPage{
		Title:   title,
		BackURL: backURL,
		Amount:  formatAmount(session.AmountTotal),
	}
	switch session.PaymentStatus {
	case domain.PaymentStatusPaid:
		page.Status = StatusSuccess
		page.Icon = "✓"
		page.Message = "Payment successfull / A fizetés sikeres!"
	case domain.PaymentStatusUnpaid:
		page.Status = StatusCancel
		page.Icon = "!"
		page.Message = "The payment was cancelled / A fizetési folyamat megszakítva"
	default:
		page.Status = StatusUnknown
		page.Icon = "?"
		page.Message = "The payment not finalized yet / A fizetés még nem végleges"
	}
	return page
}

func (r *ResultRenderer) RenderHTML(page ResultPage) (string, error) {
	if strings.TrimSpace(page.BackURL) == "" {
		page.BackURL = "/"
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatAmount renders minor units as a major-unit amount, empty for zero.
func formatAmount(total int64) string {
	if total == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(total)/100, 'f', -1, 64)
}
