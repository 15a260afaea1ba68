package utils

import "github.com/shopspring/decimal"

// Epsilon is the slack allowed when comparing monetary sums.
const Epsilon = 0.01

var epsilon = decimal.NewFromFloat(Epsilon)

// Money converts a float amount into a decimal.
func Money(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount)
}

// Sum adds amounts without accumulating float drift.
func Sum(amounts ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total
}

// ApproxEqual reports whether |a-b| <= Epsilon.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(epsilon)
}

// Exceeds reports whether amount is greater than limit by more than Epsilon.
func Exceeds(amount, limit decimal.Decimal) bool {
	return amount.GreaterThan(limit.Add(epsilon))
}

// BalanceDue computes base + adjustment - paid.
func BalanceDue(base, adjustment, paid float64) decimal.Decimal {
	return Sum(base, adjustment).Sub(decimal.NewFromFloat(paid))
}

// Round2 rounds to two decimal places and returns a float for storage.
func Round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
