// Package money converts between the auction house's integer copper amounts
// and the decimal gold amounts used for storage and analytics.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	CopperPerSilver = 100
	CopperPerGold   = 10000
)

var copperPerGold = decimal.NewFromInt(CopperPerGold)

// ToGold converts a copper amount (possibly fractional, e.g. a per-unit price)
// to gold.
func ToGold(copper float64) float64 {
	if !finite(copper) {
		return 0
	}
	return decimal.NewFromFloat(copper).Div(copperPerGold).InexactFloat64()
}

// ToCopper converts gold to the nearest whole copper. NaN and infinities
// convert to 0.
func ToCopper(gold float64) int64 {
	if !finite(gold) {
		return 0
	}
	return decimal.NewFromFloat(gold).Mul(copperPerGold).Round(0).IntPart()
}

// FormatGold renders a gold amount as "12g 34s 56c".
// Negative amounts keep the layout and get a leading minus sign.
func FormatGold(gold float64) string {
	total := ToCopper(gold)
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	g := total / CopperPerGold
	s := (total % CopperPerGold) / CopperPerSilver
	c := total % CopperPerSilver
	return fmt.Sprintf("%s%dg %02ds %02dc", sign, g, s, c)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
