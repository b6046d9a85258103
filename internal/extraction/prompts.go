package extraction

// ExtractionPrompt is the first-pass instruction: pull structured financial
// data out of a receipt document.
const ExtractionPrompt = `You are an AI system extracting structured financial data from receipts.

Extract all details from the receipt and return only a valid JSON object in the following format:

{
  "merchant": "Name of the merchant or business",
  "phone": "Phone number (if found)",
  "date": "MM-DD-YYYY",
  "time": "HH:MM AM/PM",
  "items": [
    {
      "name": "Item name",
      "qty": Number,
      "price": Number,
      "category": "Food / Grocery / Transport / Utility / Medicine / etc."
    }
  ],
  "subtotal": Number,
  "tax": Number,
  "total": Number,
  "currency": "INR / USD / EUR / etc.",
  "receipt_id": "Transaction or invoice number (if available)",
  "store_address": "Postal address (if found)",
  "category": "Top-level inferred category for the whole receipt (e.g. Grocery, Dining, Travel)",
  "is_subscription": true or false (if the receipt suggests recurring service)
}

Instructions:
- If the input is in a language other than English, give the output in English.
- Return ONLY the JSON. No markdown, no comments, no pre-text, no code block formatting.
- If any field is missing, omit it (do not return null or placeholder text).
- If the total is not printed on the receipt, populate it by adding the price of all items.`

// EnrichmentPrompt is the second-pass instruction: layer inferred fields on
// top of an already-extracted receipt.
const EnrichmentPrompt = `You are an intelligent agent that enriches receipt data to support smarter financial decision-making.

Given the raw receipt JSON, return an enriched version with these additional fields:
- day_of_week
- merchant_category
- payment_method (if you can infer it)
- user_spend_level (Low/Medium/High based on total)
- actions_suggested (JSON list with action type, reason, and confidence)
- location (inferred from store_address if possible)
- merchant_profile (with rating, verified, maps_url)

Format: Return ONLY valid JSON. No markdown, no code blocks.
Do NOT include comments or explanations.`
