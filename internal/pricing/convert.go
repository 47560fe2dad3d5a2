// Package pricing converts catalog totals into settlement-currency minor units
// and holds the exchange rate used to do so.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// MinorUnitsPerMajor is the subdivision of the settlement currency (kobo per naira).
const MinorUnitsPerMajor = 100

var minorFactor = decimal.NewFromInt(MinorUnitsPerMajor)

// Convert returns round(total × rate × 100) as an integer amount of minor
// units, rounding halves up. The product is computed exactly before rounding.
func Convert(total, rate decimal.Decimal) (int64, error) {
	if total.IsNegative() {
		return 0, apperrors.InvalidInput("total must not be negative")
	}
	if !rate.IsPositive() {
		return 0, apperrors.InvalidInput("exchange rate must be positive")
	}

	// Round(0) rounds half away from zero, which is half-up for the
	// non-negative amounts accepted here.
	minor := total.Mul(rate).Mul(minorFactor).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, apperrors.InvalidInput(fmt.Sprintf("converted amount %s is out of range", minor))
	}
	return minor.IntPart(), nil
}

var maxMinor = decimal.NewFromInt(1<<63 - 1)

// ToMajor converts minor units back to major units with two decimal places.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ToSource divides a settlement amount in minor units back into the catalog
// currency. Used to check a conversion round-trips within one minor unit.
func ToSource(minor int64, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return ToMajor(minor).DivRound(rate, 8)
}
