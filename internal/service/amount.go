package service

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to paise, rounding half away
// from zero. ok is false when the result is below one minor unit.
func ToMinorUnits(amount decimal.Decimal) (minor int64, ok bool) {
	minor = amount.Mul(hundred).Round(0).IntPart()
	return minor, minor >= 1
}
