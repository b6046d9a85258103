package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raseed/receipt-pipeline/internal/docstore"
	"github.com/raseed/receipt-pipeline/internal/warehouse"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service derives aggregate insights from the accumulated receipt rows and
// publishes them to the document store. Insight documents use a
// deterministic identifier so re-runs overwrite instead of duplicating;
// this is the one deliberate dedup mechanism in the system.
type Service struct {
	wh         warehouse.Warehouse
	docs       docstore.Store
	table      string // fully-qualified raw receipts table
	collection string
	timeSource TimeSource
}

// NewService creates an insights Service. table is the fully-qualified raw
// receipts table name (project.dataset.table).
func NewService(wh warehouse.Warehouse, docs docstore.Store, table, collection string) *Service {
	return NewServiceWithDeps(wh, docs, table, collection, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(wh warehouse.Warehouse, docs docstore.Store, table, collection string, timeSource TimeSource) *Service {
	return &Service{
		wh:         wh,
		docs:       docs,
		table:      table,
		collection: collection,
		timeSource: timeSource,
	}
}

// Run derives all insights and writes them to the document store. It
// returns the number of insight documents written.
func (s *Service) Run(ctx context.Context) (int, error) {
	generatedAt := s.timeSource.Now().UTC().Format(time.RFC3339)

	var insights []map[string]any

	monthly, err := s.monthlyCategorySpend(ctx, generatedAt)
	if err != nil {
		return 0, err
	}
	insights = append(insights, monthly...)

	merchants, err := s.topMerchants(ctx, generatedAt)
	if err != nil {
		return 0, err
	}
	insights = append(insights, merchants...)

	for _, entry := range insights {
		id := docID(entry)
		if err := s.docs.Set(ctx, s.collection, id, entry); err != nil {
			return 0, fmt.Errorf("writing insight %s: %w", id, err)
		}
	}

	slog.Info("Uploaded insights", "count", len(insights), "collection", s.collection)
	return len(insights), nil
}

// monthlyCategorySpend aggregates total spend per category per month.
func (s *Service) monthlyCategorySpend(ctx context.Context, generatedAt string) ([]map[string]any, error) {
	q := fmt.Sprintf(`
	SELECT
	  category,
	  FORMAT_DATE('%%Y-%%m', DATE(date)) AS month,
	  ROUND(SUM(total), 2) AS total_spend
	FROM `+"`%s`"+`
	WHERE date IS NOT NULL
	GROUP BY category, month
	ORDER BY month DESC, total_spend DESC
	`, s.table)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying monthly category spend: %w", err)
	}

	insights := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		insights = append(insights, map[string]any{
			"category":     row["category"],
			"month":        row["month"],
			"total_spend":  row["total_spend"],
			"insight_type": "monthly_category_spend",
			"generated_at": generatedAt,
		})
	}
	return insights, nil
}

// topMerchants ranks the five merchants with the highest total spend.
func (s *Service) topMerchants(ctx context.Context, generatedAt string) ([]map[string]any, error) {
	q := fmt.Sprintf(`
	SELECT merchant, COUNT(receipt_id) AS txn_count, ROUND(SUM(total), 2) AS total_spend
	FROM `+"`%s`"+`
	GROUP BY merchant
	ORDER BY total_spend DESC
	LIMIT 5
	`, s.table)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying top merchants: %w", err)
	}

	insights := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		insights = append(insights, map[string]any{
			"merchant":     row["merchant"],
			"txn_count":    row["txn_count"],
			"total_spend":  row["total_spend"],
			"insight_type": "top_merchants",
			"generated_at": generatedAt,
		})
	}
	return insights, nil
}

// docID builds the idempotency key for one insight document:
// {insight_type}_{month-or-empty}_{merchant-or-category-or-"unknown"}.
func docID(entry map[string]any) string {
	name := str(entry["merchant"])
	if name == "" {
		name = str(entry["category"])
	}
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s", str(entry["insight_type"]), str(entry["month"]), name)
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
