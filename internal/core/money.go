// Package core implements the receipt normalization and cost-apportionment
// engine: numeric normalization, line-item reconciliation, tax resolution,
// totals verification and per-participant share computation. Every operation
// is a pure function over in-memory values; callers own the current receipt
// snapshot and thread it through successive calls.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a heterogeneous money value (string with currency
// symbols, JSON number, nil) into a decimal amount. Unparseable or absent
// input yields 0; absence of data is valid input, not an error.
//
// String handling keeps digits and dots only, collapses multiple dots by
// keeping the first, and caps fractional digits at two.
//
// Examples:
//
//	ParseAmount("$12.34")  -> 12.34
//	ParseAmount("1.2.3")   -> 1.23
//	ParseAmount("12.999")  -> 12.99
//	ParseAmount(nil)       -> 0
func ParseAmount(v any) float64 {
	return parseNumeric(v, false, 2)
}

// ParseRate parses a percentage rate. Unlike ParseAmount it admits a leading
// minus sign and does not cap fractional digits. The result is still a
// whole-number percentage; division by 100 is the tax resolver's job.
func ParseRate(v any) float64 {
	return parseNumeric(v, true, -1)
}

func parseNumeric(v any, allowNegative bool, maxFrac int) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return clampFrac(t, maxFrac)
	case float32:
		return clampFrac(float64(t), maxFrac)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return parseNumericString(t, allowNegative, maxFrac)
	default:
		return 0
	}
}

func parseNumericString(s string, allowNegative bool, maxFrac int) float64 {
	s = strings.TrimSpace(s)
	neg := allowNegative && strings.HasPrefix(s, "-")

	// Keep digits and dots, dropping currency symbols and other noise.
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." {
		return 0
	}

	// Collapse extra dots: first one wins, remaining digit groups join the
	// fractional part.
	parts := strings.Split(cleaned, ".")
	intPart := parts[0]
	fracPart := strings.Join(parts[1:], "")
	if maxFrac >= 0 && len(fracPart) > maxFrac {
		fracPart = fracPart[:maxFrac]
	}

	num := intPart
	if fracPart != "" {
		num = intPart + "." + fracPart
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if neg {
		f = -f
	}
	return f
}

func clampFrac(f float64, maxFrac int) float64 {
	if maxFrac == 2 {
		return Round2(f)
	}
	return f
}

// Round2 rounds to two decimal places, half away from zero. The epsilon
// compensates for decimals whose binary form sits just under the half
// boundary (2.825 is stored as 2.8249...).
func Round2(f float64) float64 {
	const eps = 1e-9
	if f < 0 {
		return -math.Floor(-f*100+0.5+eps) / 100
	}
	return math.Floor(f*100+0.5+eps) / 100
}

// Subtotal is the full subtotal: the sum of every item price, taxable or not.
func Subtotal(items []ReceiptItem) float64 {
	sum := 0.0
	for _, it := range items {
		sum += it.Price
	}
	return sum
}

// TaxableSubtotal sums prices over taxable items only. It is the tax base;
// when no item is flagged non-taxable it equals the full subtotal.
func TaxableSubtotal(items []ReceiptItem) float64 {
	sum := 0.0
	for _, it := range items {
		if it.Taxable {
			sum += it.Price
		}
	}
	return sum
}
