package receipt

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/storefront/domain"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

const textWidth = 40

// ParseFormat defaults to HTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown receipt format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

var printTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money":    money,
	"positive": func(m decimal.Decimal) bool { return m.IsPositive() },
}).Parse(printHTML))

type printView struct {
	Header   Header
	TaxLabel string
	Receipt  d.Receipt
}

// Render writes r in the requested format.
func (g *Generator) Render(w io.Writer, r d.Receipt, f Format) error {
	switch f {
	case FormatHTML:
		return printTmpl.Execute(w, printView{Header: g.header, TaxLabel: g.taxLabel(), Receipt: r})
	case FormatText:
		_, err := io.WriteString(w, g.text(r))
		return err
	}
	return fmt.Errorf("unknown receipt format %q", f)
}

func (g *Generator) text(r d.Receipt) string {
	var lines []string
	rule := strings.Repeat("─", textWidth)
	double := strings.Repeat("═", textWidth)

	lines = append(lines, double)
	lines = append(lines, center(g.header.StoreName))
	lines = append(lines, double)
	lines = append(lines, fmt.Sprintf("Order:    %s", r.OrderID))
	lines = append(lines, fmt.Sprintf("Date:     %s %s", r.Date, r.Time))
	lines = append(lines, fmt.Sprintf("Customer: %s", r.Customer))
	lines = append(lines, fmt.Sprintf("Email:    %s", r.CustomerEmail))
	lines = append(lines, fmt.Sprintf("Ship to:  %s", r.ShippingAddress))
	if r.CouponCode != nil {
		lines = append(lines, fmt.Sprintf("Coupon:   %s", *r.CouponCode))
	}
	if r.Payment.PaymentID != "" {
		lines = append(lines, fmt.Sprintf("Payment:  %s", r.Payment.PaymentID))
	}
	lines = append(lines, rule)

	for _, it := range r.Items {
		lines = append(lines, fmt.Sprintf("%d x %s @ %s = %s", it.Quantity, it.ProductName, money(it.Price), money(it.ItemTotal)))
	}

	lines = append(lines, rule)
	lines = append(lines, row("Subtotal:", money(r.Subtotal)))
	lines = append(lines, row(g.taxLabel(), money(r.Tax)))
	lines = append(lines, row("Shipping:", money(r.Shipping)))
	if r.Discount.IsPositive() {
		lines = append(lines, row("Discount:", "-"+money(r.Discount)))
	}
	lines = append(lines, rule)
	lines = append(lines, row("TOTAL:", money(r.Total)))
	lines = append(lines, double)
	lines = append(lines, center("Thank you for your purchase!"))
	lines = append(lines, double)

	return strings.Join(lines, "\n") + "\n"
}

func (g *Generator) taxLabel() string {
	return fmt.Sprintf("Tax (GST %s%%):", g.engine.TaxRate.Shift(2).String())
}

func money(m decimal.Decimal) string {
	return "Rs." + m.StringFixed(d.MinorUnitPlaces)
}

func row(label, value string) string {
	pad := textWidth - len([]rune(label)) - len([]rune(value))
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + value
}

func center(s string) string {
	pad := (textWidth - len([]rune(s))) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

const printHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt for Order {{.Receipt.OrderID}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
.bill-receipt { max-width: 800px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; }
.bill-header { text-align: center; margin-bottom: 20px; }
.bill-header h1 { color: #4a90e2; margin-bottom: 5px; }
.bill-details { margin-bottom: 20px; }
.bill-row { display: flex; justify-content: space-between; margin-bottom: 8px; }
.bill-items { width: 100%; border-collapse: collapse; margin: 20px 0; }
.bill-items th, .bill-items td { padding: 12px; text-align: left; border-bottom: 1px solid #eee; }
.bill-items th { background-color: #f8f9fa; font-weight: 600; }
.bill-summary { margin-top: 20px; padding-top: 20px; border-top: 2px solid #eee; }
.bill-summary .total { font-weight: bold; font-size: 1.2em; }
.bill-footer { text-align: center; margin-top: 30px; padding-top: 20px; border-top: 2px solid #eee; color: #666; }
.discount { color: #28a745; }
@media print {
  body { margin: 0; padding: 0; }
  .bill-receipt { border: none; box-shadow: none; }
}
</style>
</head>
<body>
<div class="bill-receipt">
  <div class="bill-header">
    <h1>{{.Header.StoreName}}</h1>
    <p>{{.Header.Address}}</p>
    <p>{{.Header.Contact}}</p>
  </div>
  {{with .Receipt}}
  <div class="bill-details">
    <div class="bill-row"><span>Order ID:</span><span>{{.OrderID}}</span></div>
    <div class="bill-row"><span>Date:</span><span>{{.Date}}</span></div>
    <div class="bill-row"><span>Time:</span><span>{{.Time}}</span></div>
    <div class="bill-row"><span>Customer:</span><span>{{.Customer}}</span></div>
    <div class="bill-row"><span>Email:</span><span>{{.CustomerEmail}}</span></div>
    <div class="bill-row"><span>Shipping Address:</span><span>{{.ShippingAddress}}</span></div>
    {{- if .CouponCode}}
    <div class="bill-row"><span>Coupon Applied:</span><span>{{.CouponCode}}</span></div>
    {{- end}}
    {{- if .Payment.PaymentID}}
    <div class="bill-row"><span>Payment ID:</span><span>{{.Payment.PaymentID}}</span></div>
    {{- end}}
  </div>
  <h2>Order Details</h2>
  <table class="bill-items">
    <thead><tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead>
    <tbody>
    {{- range .Items}}
      <tr><td>{{.ProductName}}</td><td>{{.Quantity}}</td><td>{{money .Price}}</td><td>{{money .ItemTotal}}</td></tr>
    {{- end}}
    </tbody>
  </table>
  <div class="bill-summary">
    <div class="bill-row"><span>Subtotal:</span><span>{{money .Subtotal}}</span></div>
    <div class="bill-row"><span>{{$.TaxLabel}}</span><span>{{money .Tax}}</span></div>
    <div class="bill-row"><span>Shipping:</span><span>{{money .Shipping}}</span></div>
    {{- if positive .Discount}}
    <div class="bill-row discount"><span>Discount:</span><span>-{{money .Discount}}</span></div>
    {{- end}}
    <div class="bill-row total"><span>Total Amount:</span><span>{{money .Total}}</span></div>
  </div>
  {{end}}
  <div class="bill-footer">
    <p>Thank you for your purchase!</p>
    <p>Please keep this receipt for your records</p>
  </div>
</div>
</body>
</html>
`
