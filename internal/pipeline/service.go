package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/raseed/receipt-pipeline/internal/docstore"
	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/source"
	"github.com/raseed/receipt-pipeline/internal/warehouse"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config names the sinks the pipeline writes to.
type Config struct {
	ReceiptsCollection string
	RawTable           string
	EnrichedTable      string
}

// Service processes one uploaded receipt document end to end: fetch,
// extract, store, enrich, sink. Each invocation is independent; there is no
// shared state between documents.
type Service struct {
	objects    source.ObjectStore
	preparer   *extraction.Preparer
	generator  extraction.Generator
	docs       docstore.Store
	wh         warehouse.Warehouse
	cfg        Config
	timeSource TimeSource
}

// NewService creates a pipeline Service.
func NewService(objects source.ObjectStore, preparer *extraction.Preparer, generator extraction.Generator, docs docstore.Store, wh warehouse.Warehouse, cfg Config) *Service {
	return NewServiceWithDeps(objects, preparer, generator, docs, wh, cfg, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(objects source.ObjectStore, preparer *extraction.Preparer, generator extraction.Generator, docs docstore.Store, wh warehouse.Warehouse, cfg Config, timeSource TimeSource) *Service {
	return &Service{
		objects:    objects,
		preparer:   preparer,
		generator:  generator,
		docs:       docs,
		wh:         wh,
		cfg:        cfg,
		timeSource: timeSource,
	}
}

// ProcessObject handles one storage event: download the object, run the
// extraction model, persist the raw extraction, then enrich and sink it.
func (s *Service) ProcessObject(ctx context.Context, bucket, object string) error {
	slog.Info("Processing uploaded document", "bucket", bucket, "object", object)

	data, err := s.objects.Fetch(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("fetching document: %w", err)
	}

	parts, err := s.preparer.Prepare(ctx, object, data)
	if err != nil {
		return fmt.Errorf("preparing document: %w", err)
	}

	text, err := s.generator.Generate(ctx, extraction.ExtractionPrompt, parts...)
	if err != nil {
		return fmt.Errorf("calling extraction model: %w", err)
	}

	receipt, err := extraction.DecodeObject(text)
	if err != nil {
		slog.Error("Extraction model returned invalid JSON", "object", object, "raw_output", text)
		return err
	}

	// The raw extraction goes to the document store before any shaping.
	// A storage failure here does not fail the event; the warehouse row is
	// the durable copy. TODO: surface repeated document-store failures via
	// an alert instead of a log line.
	if id, err := s.docs.Add(ctx, s.cfg.ReceiptsCollection, receipt); err != nil {
		slog.Error("Failed to store raw extraction", "object", object, "error", err)
	} else {
		slog.Info("Stored raw extraction", "object", object, "doc_id", id)
	}

	s.prepareRawRow(receipt)
	if err := s.wh.Insert(ctx, s.cfg.RawTable, []any{receipt}); err != nil {
		slog.Error("Failed to insert raw receipt row", "object", object, "error", err)
	}

	return s.Enrich(ctx, receipt)
}

// prepareRawRow shapes the raw extraction for the warehouse in place:
// stamps the ingestion timestamp, coerces item quantities and prices to
// numbers, and normalizes the model's MM-DD-YYYY date to ISO (null when it
// cannot be parsed).
func (s *Service) prepareRawRow(receipt map[string]any) {
	receipt["timestamp"] = s.timeSource.Now().UTC().Format(time.RFC3339)

	if items, ok := receipt["items"].([]any); ok {
		for _, e := range items {
			item, ok := e.(map[string]any)
			if !ok {
				continue
			}
			item["qty"] = floatOr(item["qty"], 1)
			item["price"] = floatOr(item["price"], 0)
		}
	}

	if _, ok := receipt["date"]; ok {
		receipt["date"] = isoDate(receipt["date"])
	}
}

// floatOr coerces a model-emitted number that may arrive as a float, int or
// numeric string.
func floatOr(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// isoDate converts the extraction prompt's MM-DD-YYYY format to ISO 8601,
// or nil when the value does not parse.
func isoDate(v any) any {
	str, ok := v.(string)
	if !ok {
		return nil
	}
	d, err := time.Parse("01-02-2006", strings.TrimSpace(str))
	if err != nil {
		return nil
	}
	return d.Format("2006-01-02")
}
