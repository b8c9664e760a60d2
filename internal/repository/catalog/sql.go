package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// DefaultSQLQuery reads the catalog table in insertion order.
const DefaultSQLQuery = "SELECT * FROM catalog ORDER BY rowid"

// SQLSource reads catalog rows from a SQL query. Column names become field names.
type SQLSource struct {
	db               *sqlx.DB
	query            string
	descriptionField string
}

// NewSQLiteSource opens a SQLite database at dsn.
func NewSQLiteSource(ctx context.Context, dsn, query, descriptionField string) (*SQLSource, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	return NewSQLSource(db, query, descriptionField), nil
}

// NewSQLSource wraps an existing connection.
func NewSQLSource(db *sqlx.DB, query, descriptionField string) *SQLSource {
	if query == "" {
		query = DefaultSQLQuery
	}
	return &SQLSource{db: db, query: query, descriptionField: descriptionField}
}

// Load runs the query and validates every row.
func (s *SQLSource) Load(ctx context.Context) ([]domcat.Record, error) {
	rows, err := s.db.QueryxContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan catalog row %d: %w", len(out), err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}

	records, err := toRecords(out, s.descriptionField)
	if err != nil {
		return nil, fmt.Errorf("sql catalog: %w", err)
	}
	return records, nil
}

// Ping checks connectivity.
func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sql: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLSource) Close() error { return s.db.Close() }

// String identifies the source in logs.
func (s *SQLSource) String() string { return "sql:" + s.query }
