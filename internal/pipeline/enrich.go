package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/normalize"
)

// Enrich runs the second model pass over one extracted receipt, repairs and
// normalizes the output, and appends the result to the enriched warehouse
// table.
//
// The failure policy is deliberately asymmetric: a model call error or a
// primary decode failure propagates to the caller, a double-encoding unwrap
// failure is logged and swallowed, malformed nested structures degrade
// inside Normalize, and any warehouse row error fails the whole operation.
func (s *Service) Enrich(ctx context.Context, raw map[string]any) error {
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("serializing receipt: %w", err)
	}

	text, err := s.generator.Generate(ctx, extraction.EnrichmentPrompt, extraction.TextPart(string(payload)))
	if err != nil {
		return fmt.Errorf("calling enrichment model: %w", err)
	}

	v, err := extraction.DecodeValue(text)
	if err != nil {
		slog.Error("Enrichment model returned invalid JSON",
			"receipt_id", raw["receipt_id"],
			"raw_output", text,
		)
		return err
	}

	// Models occasionally double-encode: the decoded value is itself a JSON
	// string. A failed second decode ends processing quietly, unlike the
	// primary decode above.
	if str, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(str), &inner); err != nil {
			slog.Error("Double-encoded enrichment could not be unwrapped",
				"receipt_id", raw["receipt_id"],
				"error", err,
			)
			return nil
		}
		v = inner
	}

	enriched, ok := v.(map[string]any)
	if !ok {
		slog.Error("Enrichment decoded to a non-object value",
			"receipt_id", raw["receipt_id"],
		)
		return nil
	}

	enriched["receipt_id"] = raw["receipt_id"]
	enriched["enriched_timestamp"] = s.timeSource.Now().UTC().Format(time.RFC3339)

	record := normalize.Normalize(enriched)

	if err := s.wh.Insert(ctx, s.cfg.EnrichedTable, []any{record}); err != nil {
		return fmt.Errorf("inserting enriched receipt: %w", err)
	}

	slog.Info("Enriched receipt inserted", "receipt_id", raw["receipt_id"])
	return nil
}
