package domain

import "github.com/shopspring/decimal"

// MinorUnitPlaces is the number of decimal places of the currency's minor unit.
const MinorUnitPlaces = 2

// Money is a decimal amount in the store currency.
type Money = decimal.Decimal

var Zero = decimal.Zero

// NewMoney converts a float from a wire payload into Money rounded to the minor unit.
func NewMoney(v float64) Money {
	return RoundMinor(decimal.NewFromFloat(v))
}

// RoundMinor rounds half-up to the minor unit. Amounts handled here are never
// negative, so shopspring's half-away-from-zero matches half-up.
func RoundMinor(m Money) Money {
	return m.Round(MinorUnitPlaces)
}

// MinorUnits converts an amount to the integer count of minor units (paise, cents).
func MinorUnits(m Money) int64 {
	return m.Shift(MinorUnitPlaces).Round(0).IntPart()
}

// MaxZero floors m at zero.
func MaxZero(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}
