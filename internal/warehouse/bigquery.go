package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// BigQuery implements Warehouse against one BigQuery dataset.
type BigQuery struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQuery creates a BigQuery warehouse client.
func NewBigQuery(ctx context.Context, projectID, dataset string) (*BigQuery, error) {
	if projectID == "" {
		return nil, fmt.Errorf("bigquery project id is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	return &BigQuery{client: client, dataset: dataset}, nil
}

// mapSaver adapts a map row to the streaming insert API.
type mapSaver map[string]any

func (m mapSaver) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, len(m))
	for k, v := range m {
		row[k] = v
	}
	// No insert ID: re-processing a document intentionally produces a new
	// row, not an upsert.
	return row, "", nil
}

// Insert appends rows to the table. The streaming API reports per-row
// errors; any of them fails the whole call.
func (b *BigQuery) Insert(ctx context.Context, table string, rows []any) error {
	saveable := make([]any, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			saveable = append(saveable, mapSaver(m))
			continue
		}
		saveable = append(saveable, r)
	}

	ins := b.client.Dataset(b.dataset).Table(table).Inserter()
	if err := ins.Put(ctx, saveable); err != nil {
		return fmt.Errorf("inserting %d rows into %s: %w", len(rows), table, err)
	}
	return nil
}

// Query runs q and materializes all result rows.
func (b *BigQuery) Query(ctx context.Context, q string) ([]Row, error) {
	it, err := b.client.Query(q).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	var rows []Row
	for {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading query results: %w", err)
		}
		row := make(Row, len(values))
		for k, v := range values {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close closes the BigQuery client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}
