package normalize

// profileKeys is the only merchant profile content the warehouse accepts.
var profileKeys = map[string]struct{}{
	"website": {},
	"country": {},
	"tags":    {},
}

// Normalize coerces an arbitrarily-shaped enriched receipt into a Record.
// It never fails: missing fields stay null, malformed nested structures
// degrade per CoerceToMap/NormalizeItems, and the output shape is constant.
//
// The merchant profile always comes from merchant.profile run through
// Sanitize, even when the input carries a top-level merchant_profile. That
// matches the behavior the warehouse rows were built with; confirm with the
// product owner before preferring the top-level value.
func Normalize(raw map[string]any) Record {
	merchant := CoerceToMap(raw["merchant"])
	profile := CoerceToMap(merchant["profile"])

	name := optString(merchant["name"])
	if name == nil {
		name = optString(raw["merchant_name"])
	}
	category := optString(merchant["category"])
	if category == nil {
		category = optString(raw["merchant_category"])
	}

	trimmed := Sanitize(profile, profileKeys)

	purchaseDate := optString(raw["purchase_date"])
	if purchaseDate == nil {
		purchaseDate = optString(raw["date"])
	}

	return Record{
		ReceiptID:        optString(raw["receipt_id"]),
		UserID:           optString(raw["user_id"]),
		MerchantName:     name,
		MerchantCategory: category,
		MerchantProfile: Profile{
			Website: optString(trimmed["website"]),
			Country: optString(trimmed["country"]),
			Tags:    optStrings(trimmed["tags"]),
		},
		Amount:             optFloat(raw["amount"]),
		Currency:           optString(raw["currency"]),
		PaymentMethod:      optString(raw["payment_method"]),
		Phone:              optString(raw["phone"]),
		PurchaseDate:       purchaseDate,
		Timestamp:          optString(raw["timestamp"]),
		IngestionTimestamp: optString(raw["ingestion_timestamp"]),
		EnrichedTimestamp:  optString(raw["enriched_timestamp"]),
		Subscription:       optBool(raw["subscription"]),
		RefundEligible:     optBool(raw["refund_eligible"]),
		UserSpendLevel:     optString(raw["user_spend_level"]),
		Category:           optString(raw["category"]),
		StoreAddress:       optString(raw["store_address"]),
		Notes:              optString(raw["notes"]),
		Items:              NormalizeItems(itemList(raw["items"])),
	}
}
