package normalize

// NormalizeItems cleans a raw line-item list into the fixed item shape.
// String elements are decoded as JSON; elements that fail to decode are
// dropped entirely. That asymmetry with CoerceToMap is deliberate: a broken
// merchant block still leaves a useful row, a broken line item does not.
// Order is preserved and nothing is deduplicated.
func NormalizeItems(raw []any) []Item {
	items := make([]Item, 0, len(raw))
	for _, e := range raw {
		var m map[string]any
		switch t := e.(type) {
		case string:
			decoded, err := decodeObject(t)
			if err != nil {
				continue
			}
			m = decoded
		case map[string]any:
			m = t
		default:
			continue
		}

		name := optString(m["item_name"])
		if name == nil {
			name = optString(m["name"])
		}
		qty := optFloat(m["quantity"])
		if qty == nil {
			qty = optFloat(m["qty"])
		}
		items = append(items, Item{
			ItemName: name,
			Quantity: qty,
			Price:    optFloat(m["price"]),
		})
	}
	return items
}

// itemList pulls a usable item slice out of whatever the model put under
// "items".
func itemList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}
