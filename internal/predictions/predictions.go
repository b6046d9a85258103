package predictions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

// Service runs the predictive queries over the enriched receipts and
// appends the results to the prediction table. Rows are write-once; a
// re-run appends fresh rows with a new created_at.
type Service struct {
	wh              warehouse.Warehouse
	enrichedTable   string // fully-qualified
	modelPrefix     string // fully-qualified dataset prefix for ML models
	predictionTable string // bare table name for inserts
	timeSource      TimeSource
}

// NewService creates a predictions Service. enrichedTable and modelPrefix
// are fully qualified (project.dataset.table / project.dataset);
// predictionTable is the bare destination table name.
func NewService(wh warehouse.Warehouse, enrichedTable, modelPrefix, predictionTable string) *Service {
	return NewServiceWithDeps(wh, enrichedTable, modelPrefix, predictionTable, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(wh warehouse.Warehouse, enrichedTable, modelPrefix, predictionTable string, timeSource TimeSource) *Service {
	return &Service{
		wh:              wh,
		enrichedTable:   enrichedTable,
		modelPrefix:     modelPrefix,
		predictionTable: predictionTable,
		timeSource:      timeSource,
	}
}

// RunAll executes every predictor in sequence. The first failure stops the
// run.
func (s *Service) RunAll(ctx context.Context) error {
	for _, run := range []func(context.Context) error{
		s.predictRefund,
		s.predictSubscription,
		s.predictNextPurchase,
		s.clusterUserSpend,
	} {
		if err := run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// predictRefund scores refund eligibility for receipts that have none yet.
func (s *Service) predictRefund(ctx context.Context) error {
	q := fmt.Sprintf(`
	SELECT receipt_id, amount, category, subscription, predicted_refund_eligible
	FROM ML.PREDICT(MODEL `+"`%s.ml_refund_predictor`"+`,
	  (SELECT receipt_id, amount, category, subscription
	   FROM `+"`%s`"+`
	   WHERE refund_eligible IS NULL))
	`, s.modelPrefix, s.enrichedTable)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("querying refund predictions: %w", err)
	}
	return s.writeRecords(ctx, "refund", rows, func(row warehouse.Row) record {
		return record{receiptID: row["receipt_id"], result: row["predicted_refund_eligible"]}
	})
}

// predictSubscription flags receipts that look like recurring services.
func (s *Service) predictSubscription(ctx context.Context) error {
	q := fmt.Sprintf(`
	SELECT receipt_id, merchant_name, amount, predicted_is_subscription
	FROM ML.PREDICT(MODEL `+"`%s.ml_subscription_predictor`"+`,
	  (SELECT receipt_id, merchant_name, amount
	   FROM `+"`%s`"+`
	   WHERE subscription IS NULL))
	`, s.modelPrefix, s.enrichedTable)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("querying subscription predictions: %w", err)
	}
	return s.writeRecords(ctx, "subscription", rows, func(row warehouse.Row) record {
		return record{receiptID: row["receipt_id"], result: row["predicted_is_subscription"]}
	})
}

// predictNextPurchase projects the next purchase date per user and category
// as 30 days after the latest one.
func (s *Service) predictNextPurchase(ctx context.Context) error {
	q := fmt.Sprintf(`
	SELECT user_id, category,
	       MAX(DATE(purchase_date)) AS last_purchase_date,
	       DATE_ADD(MAX(DATE(purchase_date)), INTERVAL 30 DAY) AS predicted_next_purchase_date
	FROM `+"`%s`"+`
	WHERE purchase_date IS NOT NULL
	GROUP BY user_id, category
	`, s.enrichedTable)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("querying next purchase predictions: %w", err)
	}
	return s.writeRecords(ctx, "next_purchase", rows, func(row warehouse.Row) record {
		return record{userID: row["user_id"], result: row["predicted_next_purchase_date"]}
	})
}

// clusterUserSpend assigns each user to a spend cluster.
func (s *Service) clusterUserSpend(ctx context.Context) error {
	q := fmt.Sprintf(`
	SELECT user_id, total_spent, spend_cluster
	FROM ML.PREDICT(MODEL `+"`%s.ml_spend_cluster`"+`,
	  (SELECT user_id, SUM(amount) AS total_spent
	   FROM `+"`%s`"+`
	   GROUP BY user_id))
	`, s.modelPrefix, s.enrichedTable)

	rows, err := s.wh.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("querying spend clusters: %w", err)
	}
	return s.writeRecords(ctx, "spend_cluster", rows, func(row warehouse.Row) record {
		return record{userID: row["user_id"], result: row["spend_cluster"]}
	})
}

type record struct {
	receiptID any
	userID    any
	result    any
}

// writeRecords maps query rows to prediction rows and appends them. Empty
// result sets are a no-op, not an error.
func (s *Service) writeRecords(ctx context.Context, modelType string, rows []warehouse.Row, pick func(warehouse.Row) record) error {
	if len(rows) == 0 {
		slog.Info("No rows to predict", "model_type", modelType)
		return nil
	}

	createdAt := s.timeSource.Now().UTC().Format(time.RFC3339)
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		r := pick(row)
		out = append(out, map[string]any{
			"receipt_id":        r.receiptID,
			"user_id":           r.userID,
			"model_type":        modelType,
			"prediction_result": fmt.Sprint(r.result),
			"created_at":        createdAt,
		})
	}

	if err := s.wh.Insert(ctx, s.predictionTable, out); err != nil {
		return fmt.Errorf("inserting %s predictions: %w", modelType, err)
	}
	slog.Info("Inserted predictions", "model_type", modelType, "count", len(out))
	return nil
}
