// Package money holds integer-cents helpers used for prices and revenue splits.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Share is the result of splitting a gross amount between the content creator and the platform.
type Share struct {
	EarnerCents   int64
	PlatformCents int64
}

// ToMinorUnits converts a major-unit amount (e.g. 1500.00) to integer cents, rounding to the nearest cent.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// ToMajorUnits converts integer cents back to a major-unit amount.
func ToMajorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// SplitShare rounds the earner part and gives the platform whatever is left,
// so the two parts always add up to totalCents.
func SplitShare(totalCents int64, earnerPercent decimal.Decimal) Share {
	earner := decimal.NewFromInt(totalCents).Mul(earnerPercent).Round(0).IntPart()
	return Share{
		EarnerCents:   earner,
		PlatformCents: totalCents - earner,
	}
}
