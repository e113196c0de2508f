package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	TaxPreset       TaxMode = "preset"
	TaxCustomRate   TaxMode = "custom-rate"
	TaxDirectAmount TaxMode = "direct-amount"
)

const (
	FieldPrice     Field = "price"
	FieldUnitPrice Field = "unit_price"
	FieldQuantity  Field = "quantity"
)

const (
	ExpenseGroceries     ExpenseType = "groceries"
	ExpenseDining        ExpenseType = "dining"
	ExpenseHousehold     ExpenseType = "household"
	ExpenseUtilities     ExpenseType = "utilities"
	ExpenseTransport     ExpenseType = "transport"
	ExpenseEntertainment ExpenseType = "entertainment"
	ExpenseOther         ExpenseType = "other"
)

type (
	// TaxMode selects how the receipt tax is derived from its configuration.
	TaxMode string

	// Field identifies which of the three linked item fields the user edited.
	Field string

	// ExpenseType is the closed set of spending categories.
	ExpenseType string

	// TaxConfig is the receipt-level tax setting. Rate is a whole-number
	// percentage (13 means 13%); Amount is only read in direct-amount mode.
	TaxConfig struct {
		Mode   TaxMode `json:"mode"`
		Rate   float64 `json:"rate,omitempty"`
		Amount float64 `json:"amount,omitempty"`
	}

	// ReceiptItem is one line on a receipt. UnitPrice 0 means no unit price
	// is known. A nil Involved map means the item inherits the receipt-level
	// involvement set.
	ReceiptItem struct {
		Description string          `json:"description"`
		Price       float64         `json:"price"`
		UnitPrice   float64         `json:"unit_price,omitempty"`
		Quantity    float64         `json:"quantity"`
		Taxable     bool            `json:"taxable"`
		Involved    map[string]bool `json:"involved,omitempty"`
	}

	// Receipt is the canonical receipt shape every operation works on.
	// Subtotal, Tax and Total are derived from the items plus TaxConfig;
	// when items are present they are never the source of truth.
	Receipt struct {
		ID          string          `json:"id,omitempty"`
		Vendor      string          `json:"vendor"`
		Date        string          `json:"date"`
		Items       []ReceiptItem   `json:"items"`
		Subtotal    float64         `json:"subtotal"`
		Tax         float64         `json:"tax"`
		Tip         float64         `json:"tip,omitempty"`
		Total       float64         `json:"total"`
		TaxConfig   TaxConfig       `json:"tax_config"`
		Involved    map[string]bool `json:"involved"`
		PaidBy      string          `json:"paid_by,omitempty"`
		ExpenseType ExpenseType     `json:"expense_type"`
		FileRef     string          `json:"file_ref,omitempty"`
		SavedAt     time.Time       `json:"saved_at,omitempty"`
	}
)

var (
	ErrNoParticipants = errors.New("no involved participants")
	ErrUnknownField   = errors.New("unknown item field")
)

// UnmarshalJSON decodes an item treating an absent taxable field as true,
// so client-composed items keep the taxable-by-default rule.
func (it *ReceiptItem) UnmarshalJSON(data []byte) error {
	type plain ReceiptItem
	aux := struct {
		Taxable *bool `json:"taxable"`
		*plain
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	it.Taxable = aux.Taxable == nil || *aux.Taxable
	return nil
}

// ParseExpenseType maps free-form category text onto the closed set,
// defaulting to ExpenseOther.
func ParseExpenseType(s string) ExpenseType {
	t := ExpenseType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case ExpenseGroceries, ExpenseDining, ExpenseHousehold,
		ExpenseUtilities, ExpenseTransport, ExpenseEntertainment, ExpenseOther:
		return t
	}
	return ExpenseOther
}

// Code returns the short column code used on the export sheet.
func (t ExpenseType) Code() string {
	switch t {
	case ExpenseGroceries:
		return "GRO"
	case ExpenseDining:
		return "DIN"
	case ExpenseHousehold:
		return "HOU"
	case ExpenseUtilities:
		return "UTL"
	case ExpenseTransport:
		return "TRN"
	case ExpenseEntertainment:
		return "ENT"
	default:
		return "OTH"
	}
}

// InvolvedCount returns how many participants are marked involved.
func InvolvedCount(m map[string]bool) int {
	n := 0
	for _, in := range m {
		if in {
			n++
		}
	}
	return n
}

// SameInvolvement reports whether two involvement maps select the same
// participant set. A participant marked false counts the same as one absent.
func SameInvolvement(a, b map[string]bool) bool {
	if InvolvedCount(a) != InvolvedCount(b) {
		return false
	}
	for p, in := range a {
		if in && !b[p] {
			return false
		}
	}
	return true
}

// EffectiveInvolvement resolves an item's involvement at read time: the
// item's own map when it has one, the receipt-level set otherwise.
func (r Receipt) EffectiveInvolvement(item ReceiptItem) map[string]bool {
	if item.Involved != nil {
		return item.Involved
	}
	return r.Involved
}
