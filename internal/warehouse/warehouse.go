package warehouse

import "context"

// Row is one result row from an analytical query.
type Row map[string]any

// Warehouse defines the interface to the columnar analytical store. Inserts
// are append-only; any row-level error fails the whole insert.
type Warehouse interface {
	// Insert appends rows to a table. Rows may be structs with a fixed
	// schema or map rows.
	Insert(ctx context.Context, table string, rows []any) error

	// Query runs an analytical query and returns all result rows.
	Query(ctx context.Context, q string) ([]Row, error)

	// Close releases the client.
	Close() error
}
