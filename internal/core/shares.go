package core

// ComputeShares apportions the receipt total among participants and returns
// each participant's owed amount.
//
// When no item carries its own involvement set that differs from the
// receipt-level one, the whole total is split equally among the receipt-level
// involved participants. As soon as any item overrides the set, apportionment
// switches to item granularity: each item's cost is split among the
// participants involved in that item, with tax (and tip) folded into the item
// cost proportionally to the item's share of the subtotal, never as a flat
// extra line.
//
// The only error condition is a split over zero involved participants; a
// zero-denominator division has no sane numeric default, so it surfaces as
// ErrNoParticipants instead of a silently zeroed share.
func ComputeShares(r Receipt) (map[string]float64, error) {
	shares := make(map[string]float64)
	for p := range r.Involved {
		shares[p] = 0
	}

	total := Round2(Subtotal(r.Items) + r.Tax + r.Tip)

	if !hasItemOverride(r) {
		n := InvolvedCount(r.Involved)
		if n == 0 {
			return nil, ErrNoParticipants
		}
		per := Round2(total / float64(n))
		for p, in := range r.Involved {
			if in {
				shares[p] = per
			}
		}
		return shares, nil
	}

	sub := Subtotal(r.Items)
	for _, it := range r.Items {
		inv := r.EffectiveInvolvement(it)
		n := InvolvedCount(inv)
		if n == 0 {
			return nil, ErrNoParticipants
		}
		cost := it.Price
		if sub > 0 {
			cost += (r.Tax + r.Tip) * (it.Price / sub)
		}
		per := Round2(cost / float64(n))
		for p, in := range inv {
			if in {
				shares[p] += per
			}
		}
	}
	for p := range shares {
		shares[p] = Round2(shares[p])
	}
	return shares, nil
}

// hasItemOverride reports whether any item declares an involvement set that
// actually differs from the receipt-level one. An item repeating the
// receipt-level set verbatim does not force item-level apportionment.
func hasItemOverride(r Receipt) bool {
	for _, it := range r.Items {
		if it.Involved != nil && !SameInvolvement(it.Involved, r.Involved) {
			return true
		}
	}
	return false
}
