package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAddress_Flatten(t *testing.T) {
	a := &Address{Street: "12 MG Road", City: "Bengaluru", State: "KA", ZipCode: "560001"}
	assert.Equal(t, "12 MG Road, Bengaluru, KA 560001", a.Flatten())

	var none *Address
	assert.Equal(t, "Address not specified", none.Flatten())
}

func TestCartSnapshot_SubtotalIgnoresHint(t *testing.T) {
	c := &CartSnapshot{
		Lines: []CartLine{
			{ProductID: 1, UnitPrice: decimal.NewFromInt(500), Quantity: 2},
			{ProductID: 2, UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3},
		},
		TotalPriceHint: decimal.NewFromInt(1),
	}
	assert.True(t, decimal.RequireFromString("1059.97").Equal(c.Subtotal()))
}

func TestCartSnapshot_HintUsedWithoutLines(t *testing.T) {
	c := &CartSnapshot{TotalPriceHint: decimal.NewFromInt(300)}
	assert.True(t, decimal.NewFromInt(300).Equal(c.Subtotal()))
}

func TestCartSnapshot_WithoutDoesNotTouchOriginal(t *testing.T) {
	c := &CartSnapshot{Lines: []CartLine{
		{ProductID: 1, UnitPrice: decimal.NewFromInt(10), Quantity: 1},
		{ProductID: 2, UnitPrice: decimal.NewFromInt(20), Quantity: 1},
	}}

	next := c.Without(1)

	assert.Len(t, c.Lines, 2)
	assert.Len(t, next.Lines, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(next.Subtotal()))

	empty := next.Without(2)
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Subtotal().IsZero())
}

func TestCartSnapshot_WithQuantity(t *testing.T) {
	c := &CartSnapshot{Lines: []CartLine{{ProductID: 7, UnitPrice: decimal.NewFromInt(10), Quantity: 1}}}

	next := c.WithQuantity(7, 4)

	line, ok := next.Line(7)
	assert.True(t, ok)
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, 1, c.Lines[0].Quantity)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(110700), MinorUnits(decimal.NewFromInt(1107)))
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), MinorUnits(decimal.RequireFromString("9.995")))
}

func TestParseDiscountType(t *testing.T) {
	dt, ok := ParseDiscountType("FIXED_AMOUNT")
	assert.True(t, ok)
	assert.Equal(t, DiscountFixed, dt)

	dt, ok = ParseDiscountType("percentage")
	assert.True(t, ok)
	assert.Equal(t, DiscountPercentage, dt)

	_, ok = ParseDiscountType("BOGO")
	assert.False(t, ok)
}

func TestIdentity_ContactEmail(t *testing.T) {
	assert.Equal(t, "asha@example.com", Identity{Username: "asha"}.ContactEmail())
	assert.Equal(t, "a@shop.in", Identity{Username: "asha", Email: "a@shop.in"}.ContactEmail())
}
