package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/izerui/mysql-migration-monitor/internal/config"
)

// Queries is the minimal MySQL surface the collector needs. Split out so
// collector tests can run against a fake instead of a live server.
type Queries interface {
	// ListTables returns the base table names of one schema.
	ListTables(ctx context.Context, schema string) ([]string, error)
	// EstimatedRows returns approximate cardinality for every base table
	// in one schema, from the statistics in information_schema.
	EstimatedRows(ctx context.Context, schema string) (map[string]int64, error)
	// ExactCount counts the rows of one table.
	ExactCount(ctx context.Context, schema, table string) (int64, error)
	// Ping verifies the endpoint is reachable through one schema.
	Ping(ctx context.Context, schema string) error
	// Close releases all connection pools.
	Close() error
}

// dbQueries implements Queries on database/sql with one pool per schema.
// The DSN carries the schema, so each schema gets its own pool, opened
// lazily on first use.
type dbQueries struct {
	endpoint config.EndpointConfig

	mu    sync.Mutex
	pools map[string]*sql.DB
}

// NewQueries builds the live MySQL access layer for one endpoint.
func NewQueries(endpoint config.EndpointConfig) Queries {
	return &dbQueries{
		endpoint: endpoint,
		pools:    make(map[string]*sql.DB),
	}
}

func (q *dbQueries) pool(schema string) (*sql.DB, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if db, ok := q.pools[schema]; ok {
		return db, nil
	}
	db, err := sql.Open("mysql", q.endpoint.DSN(schema))
	if err != nil {
		return nil, fmt.Errorf("open mysql pool for %s: %w", schema, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	q.pools[schema] = db
	return db, nil
}

func (q *dbQueries) ListTables(ctx context.Context, schema string) ([]string, error) {
	db, err := q.pool(schema)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (q *dbQueries) EstimatedRows(ctx context.Context, schema string) (map[string]int64, error) {
	db, err := q.pool(schema)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, TABLE_ROWS
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("read table statistics for %s: %w", schema, err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var name string
		var estimated sql.NullInt64
		if err := rows.Scan(&name, &estimated); err != nil {
			return nil, err
		}
		if estimated.Valid && estimated.Int64 > 0 {
			stats[name] = estimated.Int64
		} else {
			stats[name] = 0
		}
	}
	return stats, rows.Err()
}

func (q *dbQueries) ExactCount(ctx context.Context, schema, table string) (int64, error) {
	db, err := q.pool(schema)
	if err != nil {
		return 0, err
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM `%s`.`%s`", schema, table)
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", schema, table, err)
	}
	return count, nil
}

func (q *dbQueries) Ping(ctx context.Context, schema string) error {
	db, err := q.pool(schema)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping %s failed: %w", q.endpoint.Addr(), err)
	}
	return nil
}

func (q *dbQueries) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var first error
	for schema, db := range q.pools {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(q.pools, schema)
	}
	return first
}
