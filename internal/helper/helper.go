// Package helper holds small numeric utilities shared across the
// trading core.
package helper

import "github.com/shopspring/decimal"

// RoundDownToStep rounds v toward zero to a multiple of step. A zero
// or negative step returns v unchanged.
func RoundDownToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return v
	}
	q := v.Div(step).Truncate(0)
	return q.Mul(step)
}

// RoundUpToStep rounds v away from zero to a multiple of step.
func RoundUpToStep(v, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return v
	}
	q := v.Div(step)
	t := q.Truncate(0)
	if q.Equal(t) {
		return v
	}
	if v.Sign() < 0 {
		return t.Sub(decimal.NewFromInt(1)).Mul(step)
	}
	return t.Add(decimal.NewFromInt(1)).Mul(step)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
