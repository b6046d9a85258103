package normalize

// Record is the warehouse-safe shape of an enriched receipt. Every key is
// always present when marshaled; unknown values stay null. The warehouse
// table schema depends on this key set never changing with input shape.
type Record struct {
	ReceiptID          *string  `json:"receipt_id"`
	UserID             *string  `json:"user_id"`
	MerchantName       *string  `json:"merchant_name"`
	MerchantCategory   *string  `json:"merchant_category"`
	MerchantProfile    Profile  `json:"merchant_profile"`
	Amount             *float64 `json:"amount"`
	Currency           *string  `json:"currency"`
	PaymentMethod      *string  `json:"payment_method"`
	Phone              *string  `json:"phone"`
	PurchaseDate       *string  `json:"purchase_date"`
	Timestamp          *string  `json:"timestamp"`
	IngestionTimestamp *string  `json:"ingestion_timestamp"`
	EnrichedTimestamp  *string  `json:"enriched_timestamp"`
	Subscription       *bool    `json:"subscription"`
	RefundEligible     *bool    `json:"refund_eligible"`
	UserSpendLevel     *string  `json:"user_spend_level"`
	Category           *string  `json:"category"`
	StoreAddress       *string  `json:"store_address"`
	Notes              *string  `json:"notes"`
	Items              []Item   `json:"items"`
}

// Profile is the trimmed merchant profile. Models tend to attach extra
// fields (rating, verified, maps_url); only these three survive.
type Profile struct {
	Website *string  `json:"website"`
	Country *string  `json:"country"`
	Tags    []string `json:"tags"`
}

// Item is one normalized line item.
type Item struct {
	ItemName *string  `json:"item_name"`
	Quantity *float64 `json:"quantity"`
	Price    *float64 `json:"price"`
}
