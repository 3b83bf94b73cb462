package receipt

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

var orderDate = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder() *d.Order {
	code := "SAVE10"
	b := pricing.Default().ComputeBreakdown(&d.CartSnapshot{Lines: []d.CartLine{
		{ProductID: 1, UnitPrice: dec("500"), Quantity: 2, Product: d.ProductSnapshot{Name: "Kettle"}},
	}}, &d.Coupon{Code: code, DiscountType: d.DiscountPercentage, DiscountValue: dec("10")})

	return &d.Order{
		OrderID:       "ORD-01J000",
		Username:      "asha",
		CustomerName:  "asha",
		CustomerEmail: "asha@example.com",
		OrderDate:     orderDate,
		Items: []d.OrderItem{
			{ProductID: 1, ProductName: "Kettle", Price: dec("500"), Quantity: 2},
		},
		ShippingAddress: "1 MG Road, Bengaluru, KA 560001",
		CouponCode:      &code,
		DiscountAmount:  b.Discount,
		TotalAmount:     b.Total,
		Status:          d.OrderStatusConfirmed,
		Breakdown:       &b,
	}
}

func TestBuild_UsesBreakdown(t *testing.T) {
	g := NewGenerator(nil)
	ids := d.PaymentIDs{PaymentID: "pay_1", ProviderOrderID: "order_1"}

	r := g.Build(sampleOrder(), ids)

	assert.Equal(t, "ORD-01J000", r.OrderID)
	assert.Equal(t, "14 Mar 2026", r.Date)
	assert.Equal(t, "09:30:00", r.Time)
	assert.True(t, dec("1000").Equal(r.Subtotal))
	assert.True(t, dec("180").Equal(r.Tax))
	assert.True(t, dec("50").Equal(r.Shipping))
	assert.True(t, dec("123").Equal(r.Discount))
	assert.True(t, dec("1107").Equal(r.Total))
	assert.True(t, dec("1000").Equal(r.Items[0].ItemTotal))
	assert.Equal(t, "pay_1", r.Payment.PaymentID)
}

func TestBuild_HistoricalOrderRecomputes(t *testing.T) {
	g := NewGenerator(nil)
	o := sampleOrder()
	o.Breakdown = nil
	o.ShippingAddress = ""
	o.CustomerName = ""
	o.CustomerEmail = ""

	r := g.Build(o, d.PaymentIDs{})

	assert.True(t, dec("1000").Equal(r.Subtotal))
	assert.True(t, dec("180").Equal(r.Tax))
	assert.True(t, dec("123").Equal(r.Discount))
	assert.True(t, dec("1107").Equal(r.Total))
	assert.Equal(t, "Address not specified", r.ShippingAddress)
	assert.Equal(t, "asha", r.Customer)
	assert.Equal(t, "asha@example.com", r.CustomerEmail)
}

func TestBuild_TotalsAddUp(t *testing.T) {
	r := NewGenerator(nil).Build(sampleOrder(), d.PaymentIDs{})

	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.ItemTotal)
	}
	assert.True(t, sum.Equal(r.Subtotal))
	assert.True(t, r.Subtotal.Add(r.Tax).Add(r.Shipping).Sub(r.Discount).Equal(r.Total))
}

func TestRender_HTML(t *testing.T) {
	g := NewGenerator(nil)
	r := g.Build(sampleOrder(), d.PaymentIDs{PaymentID: "pay_1"})

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, r, FormatHTML))
	html := buf.String()

	assert.Contains(t, html, "<title>Receipt for Order ORD-01J000</title>")
	assert.Contains(t, html, "SalesSavvy Store")
	assert.Contains(t, html, "Kettle")
	assert.Contains(t, html, "Rs.1107.00")
	assert.Contains(t, html, "-Rs.123.00")
	assert.Contains(t, html, "Tax (GST 18%):")
	assert.Contains(t, html, "SAVE10")
	assert.Contains(t, html, "pay_1")
	assert.Contains(t, html, "Thank you for your purchase!")
}

func TestRender_HTMLEscapesNames(t *testing.T) {
	g := NewGenerator(nil)
	o := sampleOrder()
	o.Items[0].ProductName = "<script>alert(1)</script>"

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, g.Build(o, d.PaymentIDs{}), FormatHTML))

	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
}

func TestRender_Text(t *testing.T) {
	g := NewGenerator(nil)
	r := g.Build(sampleOrder(), d.PaymentIDs{PaymentID: "pay_1"})

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, r, FormatText))
	text := buf.String()

	assert.True(t, strings.HasPrefix(text, strings.Repeat("═", 40)))
	assert.Contains(t, text, "2 x Kettle @ Rs.500.00 = Rs.1000.00")
	assert.Contains(t, text, "Discount:")
	assert.Contains(t, text, "Rs.1107.00")
	assert.Contains(t, text, "Thank you for your purchase!")
}

func TestRender_NoDiscountLineWithoutCoupon(t *testing.T) {
	g := NewGenerator(nil)
	o := sampleOrder()
	o.CouponCode = nil
	b := pricing.Default().ComputeBreakdown(&d.CartSnapshot{Lines: []d.CartLine{{ProductID: 1, UnitPrice: dec("500"), Quantity: 2}}}, nil)
	o.Breakdown = &b

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, g.Build(o, d.PaymentIDs{}), FormatText))

	assert.NotContains(t, buf.String(), "Discount")
	assert.NotContains(t, buf.String(), "Coupon")
	assert.Contains(t, buf.String(), "Rs.1230.00")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	f, err = ParseFormat("TEXT")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "asha", "ORD-1")
	assert.ErrorIs(t, err, d.ErrReceiptNotFound)

	require.NoError(t, s.Put(ctx, "asha", &d.Receipt{OrderID: "ORD-1"}))
	r, err := s.Get(ctx, "asha", "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", r.OrderID)

	_, err = s.Get(ctx, "ravi", "ORD-1")
	assert.ErrorIs(t, err, d.ErrReceiptNotFound)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.Get(ctx, "asha", "ORD-01J000")
	assert.ErrorIs(t, err, d.ErrReceiptNotFound)

	want := NewGenerator(nil).Build(sampleOrder(), d.PaymentIDs{PaymentID: "pay_1"})
	require.NoError(t, s.Put(ctx, "asha", &want))

	assert.True(t, mr.Exists("receipt:asha:ORD-01J000"))
	ttl := mr.TTL("receipt:asha:ORD-01J000")
	assert.GreaterOrEqual(t, ttl, time.Hour)
	assert.Less(t, ttl, time.Hour+5*time.Minute)

	got, err := s.Get(ctx, "asha", "ORD-01J000")
	require.NoError(t, err)
	assert.Equal(t, want.OrderID, got.OrderID)
	assert.True(t, want.Total.Equal(got.Total))
	assert.Equal(t, "SAVE10", *got.CouponCode)
}

func TestRedisStore_CorruptedData(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("receipt:asha:ORD-1", "{not json"))
	_, err := NewRedisStore(client, time.Hour).Get(context.Background(), "asha", "ORD-1")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, d.ErrReceiptNotFound)
}
