package cart

import "errors"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrMissingID       = errors.New("line item id is required")
)

// Find returns the line item with the given id, if present.
func Find(items []LineItem, id string) (LineItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return LineItem{}, false
}

// Upsert returns a new slice with item applied. An existing id has its
// quantity replaced, or summed when increment is set; a new id is
// appended. Non-positive quantities are rejected so an accidental
// zero/negative from a UI edit can never propagate into the cart.
func Upsert(items []LineItem, item LineItem, increment bool) ([]LineItem, error) {
	if item.ID == "" {
		item.ID = LineID(item.ProductID, item.VariantID)
	}
	if item.ID == "" {
		return nil, ErrMissingID
	}
	if item.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	out := make([]LineItem, len(items))
	copy(out, items)
	for i, it := range out {
		if it.ID != item.ID {
			continue
		}
		if increment {
			item.Quantity += it.Quantity
		}
		out[i] = item
		return out, nil
	}
	return append(out, item), nil
}

// Remove returns a new slice without the line item with the given id.
func Remove(items []LineItem, id string) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Subtotal sums price*quantity over all items. When overrides contains
// an entry for an item id, that quantity is used instead of the item's
// own field; this covers the window between an optimistic quantity edit
// and the persisted copy catching up.
func Subtotal(items []LineItem, overrides map[string]int) int {
	total := 0
	for _, it := range items {
		qty := it.Quantity
		if q, ok := overrides[it.ID]; ok {
			qty = q
		}
		total += it.Price * qty
	}
	return total
}
