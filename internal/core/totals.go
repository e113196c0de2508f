package core

import "math"

// MismatchTolerance is the absolute difference above which a recomputed
// total is considered to diverge from an externally reported one.
const MismatchTolerance = 0.01

// Totals is the result of recomputing receipt-level figures from items.
// Mismatch is advisory: it never blocks saving or export.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Tip      float64 `json:"tip,omitempty"`
	Total    float64 `json:"total"`
	Mismatch bool    `json:"mismatch"`
	Delta    float64 `json:"delta,omitempty"`
}

// VerifyTotals recomputes subtotal and total from the items and compares the
// result against an externally supplied total when one is given (reported is
// nil when none exists, e.g. the OCR found no total line). Delta is
// total - reported.
func VerifyTotals(items []ReceiptItem, tax, tip float64, reported *float64) Totals {
	t := Totals{
		Subtotal: Round2(Subtotal(items)),
		Tax:      Round2(tax),
		Tip:      Round2(tip),
	}
	t.Total = Round2(t.Subtotal + t.Tax + t.Tip)
	if reported != nil {
		t.Delta = Round2(t.Total - *reported)
		t.Mismatch = math.Abs(t.Delta) > MismatchTolerance
	}
	return t
}
