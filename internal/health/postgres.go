package health

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// PostgresChecker probes PostgreSQL over a dedicated single-connection
// database/sql handle, so a saturated application pool does not make the
// database look down.
type PostgresChecker struct {
	db *sql.DB
}

// NewPostgresChecker opens a lazy lib/pq handle for dsn. No connection is
// made until the first check.
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres probe: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresChecker{db: db}, nil
}

// HealthCheck runs a trivial query
func (c *PostgresChecker) HealthCheck(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		slog.Warn("postgres health check failed", "error", err)
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}

// Close releases the probe connection
func (c *PostgresChecker) Close() error {
	return c.db.Close()
}
