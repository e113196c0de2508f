package core

// ReconcileItem recomputes the two fields the user did not just edit so that
// price == unitPrice * quantity holds within tolerance afterwards. Exactly
// one of the three linked fields drives a given edit; the item is returned
// as a new value and the caller owns persisting it.
//
// A zero or negative quantity is treated as 1, so no path divides by zero.
// Derived values are rounded to two decimals, half away from zero.
func ReconcileItem(item ReceiptItem, changed Field) ReceiptItem {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	item.Quantity = qty

	switch changed {
	case FieldUnitPrice:
		item.UnitPrice = Round2(item.UnitPrice)
		item.Price = Round2(item.UnitPrice * qty)
	case FieldQuantity:
		if item.UnitPrice > 0 {
			item.Price = Round2(item.UnitPrice * qty)
		} else if item.Price > 0 {
			// No unit price on record: back-compute it from the existing
			// price and the new quantity.
			item.UnitPrice = Round2(item.Price / qty)
		}
	case FieldPrice:
		item.Price = Round2(item.Price)
		if item.UnitPrice > 0 {
			item.UnitPrice = Round2(item.Price / qty)
		}
	}
	return item
}
