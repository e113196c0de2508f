package core

// ComputeTax resolves the receipt tax from its configuration.
//
// In preset and custom-rate modes the whole-number percentage is applied to
// the taxable subtotal; items flagged non-taxable never contribute to the
// base. The rate is divided by 100 exactly once here, so callers must hand
// over the raw percentage (13, not 0.13). In direct-amount mode the
// configured amount is taken verbatim, with no recomputation from items.
func ComputeTax(items []ReceiptItem, cfg TaxConfig) float64 {
	if cfg.Mode == TaxDirectAmount {
		return Round2(cfg.Amount)
	}
	return Round2(TaxableSubtotal(items) * cfg.Rate / 100)
}
