package core

import (
	"encoding/json"
	"testing"
)

func TestReceiptItemUnmarshalTaxableDefault(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"absent taxable defaults to true", `{"description":"Milk","price":10,"quantity":1}`, true},
		{"explicit false kept", `{"description":"Gift card","price":25,"quantity":1,"taxable":false}`, false},
		{"explicit true kept", `{"description":"Soap","price":3,"quantity":1,"taxable":true}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var item ReceiptItem
			if err := json.Unmarshal([]byte(tc.body), &item); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if item.Taxable != tc.want {
				t.Fatalf("Taxable = %v, want %v", item.Taxable, tc.want)
			}
		})
	}
}

func TestClientReceiptTaxesOmittedTaxableItems(t *testing.T) {
	body := `{"items":[{"description":"Milk","price":10,"quantity":1}],"tax_config":{"mode":"preset","rate":13}}`

	var r Receipt
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := ComputeTax(r.Items, r.TaxConfig); got != 1.30 {
		t.Fatalf("ComputeTax = %v, want 1.30", got)
	}
}

func TestParseExpenseType(t *testing.T) {
	cases := []struct {
		in   string
		want ExpenseType
	}{
		{"groceries", ExpenseGroceries},
		{"  Dining ", ExpenseDining},
		{"UTILITIES", ExpenseUtilities},
		{"snacks", ExpenseOther},
		{"", ExpenseOther},
	}
	for _, tc := range cases {
		if got := ParseExpenseType(tc.in); got != tc.want {
			t.Errorf("ParseExpenseType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExpenseTypeCode(t *testing.T) {
	if got := ExpenseGroceries.Code(); got != "GRO" {
		t.Errorf("Code = %q, want GRO", got)
	}
	if got := ExpenseType("mystery").Code(); got != "OTH" {
		t.Errorf("Code for unknown type = %q, want OTH", got)
	}
}
