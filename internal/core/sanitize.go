package core

import (
	"strings"
	"time"
)

// SanitizeConfig carries the deployment-specific policy the sanitizer needs.
// DefaultTaxRate is the whole-number percentage backfilled when the OCR
// payload has no tax line; it is injected here instead of living as a
// hardcoded constant. Participants is the fixed household roster.
type SanitizeConfig struct {
	DefaultTaxRate float64
	Participants   []string
}

// Sanitize maps a raw, untyped OCR payload into the canonical receipt shape.
// It tolerates total absence of any field and never fails: malformed numbers
// become 0, malformed dates are left as-is, and an empty payload yields a
// structurally complete zeroed receipt.
func Sanitize(raw map[string]any, cfg SanitizeConfig) Receipt {
	r := Receipt{
		Vendor:      stringField(raw, "vendor", "merchant_name", "store"),
		Date:        normalizeDate(stringField(raw, "date", "tx_date", "purchase_date")),
		PaidBy:      stringField(raw, "paid_by", "payer"),
		ExpenseType: ParseExpenseType(stringField(raw, "expense_type", "category")),
		Tip:         ParseAmount(lookup(raw, "tip")),
	}

	r.Items = sanitizeItems(lookup(raw, "items"))
	r.Involved = sanitizeInvolvement(raw, cfg.Participants)

	r.Subtotal = ParseAmount(lookup(raw, "subtotal"))
	if r.Subtotal == 0 {
		r.Subtotal = Round2(Subtotal(r.Items))
	}

	if v, ok := taxValue(raw); ok {
		r.Tax = ParseAmount(v)
		r.TaxConfig = TaxConfig{Mode: TaxDirectAmount, Amount: r.Tax}
	} else {
		r.TaxConfig = TaxConfig{Mode: TaxPreset, Rate: cfg.DefaultTaxRate}
		r.Tax = Round2(r.Subtotal * cfg.DefaultTaxRate / 100)
	}

	r.Total = ParseAmount(lookup(raw, "total"))
	if r.Total == 0 {
		r.Total = Round2(r.Subtotal + r.Tax + r.Tip)
	}
	return r
}

func sanitizeItems(v any) []ReceiptItem {
	list, ok := v.([]any)
	if !ok {
		return []ReceiptItem{}
	}
	items := make([]ReceiptItem, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		it := ReceiptItem{
			Description: stringField(m, "description", "name"),
			Quantity:    ParseRate(lookup(m, "quantity", "qty")),
			UnitPrice:   ParseAmount(lookup(m, "unit_price", "unitPrice", "price_per_unit")),
			Price:       ParseAmount(lookup(m, "price", "total", "amount")),
			Taxable:     truthy(lookup(m, "taxable"), true),
			Involved:    parseInvolvement(lookup(m, "involved", "involved_participants")),
		}
		if it.Description == "" {
			it.Description = "Unknown Item"
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if it.UnitPrice == 0 && it.Price > 0 {
			it.UnitPrice = Round2(it.Price / it.Quantity)
		}
		if it.Price == 0 && it.UnitPrice > 0 {
			it.Price = Round2(it.UnitPrice * it.Quantity)
		}
		items = append(items, it)
	}
	return items
}

// sanitizeInvolvement resolves the receipt-level involvement set. The legacy
// shared_with list representation is translated here, at the ingestion
// boundary, so the rest of the engine only ever sees the canonical map. With
// neither representation present every roster participant is involved.
func sanitizeInvolvement(raw map[string]any, roster []string) map[string]bool {
	if m := parseInvolvement(lookup(raw, "involved", "involved_participants")); m != nil {
		return m
	}
	if list, ok := lookup(raw, "shared_with").([]any); ok {
		inv := make(map[string]bool, len(list))
		for _, e := range list {
			if name, ok := e.(string); ok && strings.TrimSpace(name) != "" {
				inv[strings.TrimSpace(name)] = true
			}
		}
		if len(inv) > 0 {
			return inv
		}
	}
	inv := make(map[string]bool, len(roster))
	for _, p := range roster {
		inv[p] = true
	}
	return inv
}

func parseInvolvement(v any) map[string]bool {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	inv := make(map[string]bool, len(m))
	for name, val := range m {
		inv[name] = truthy(val, false)
	}
	return inv
}

// taxValue reports whether the payload carries an explicit tax line.
func taxValue(raw map[string]any) (any, bool) {
	for _, k := range []string{"tax", "tax_amount"} {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func truthy(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return def
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

// normalizeDate coerces common OCR date spellings to ISO 8601. Anything it
// cannot parse is returned unchanged; a bad date must not fail ingestion.
func normalizeDate(s string) string {
	if s == "" {
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
