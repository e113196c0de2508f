package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateForExport checks the fields the export boundary requires and
// returns a field-to-message map so a caller can annotate several inputs at
// once. An empty map means the receipt is ready for export.
func ValidateForExport(r Receipt) map[string]string {
	problems := make(map[string]string)

	if strings.TrimSpace(r.Vendor) == "" {
		problems["vendor"] = "vendor is required"
	}
	if strings.TrimSpace(r.Date) == "" {
		problems["date"] = "date is required"
	} else if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		problems["date"] = "date must be an ISO 8601 date (YYYY-MM-DD)"
	}
	if len(r.Items) == 0 {
		problems["items"] = "at least one item is required"
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.Description) == "" {
			problems[fmt.Sprintf("items[%d].description", i)] = "description is required"
		}
		if it.Price <= 0 {
			problems[fmt.Sprintf("items[%d].price", i)] = "price must be greater than zero"
		}
	}
	if strings.TrimSpace(r.PaidBy) == "" {
		problems["paid_by"] = "payer is required"
	}
	return problems
}
