// Package pgtest boots a migrated Postgres for integration tests.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/flatwithoutbrokerage/flatapi/internal/db"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DSNEnv points the harness at an existing database instead of a container.
const DSNEnv = "FLATAPI_TEST_DSN"

var tables = []string{"contact_access", "properties", "users"}

// Postgres is a migrated database and an open pool against it.
type Postgres struct {
	DB  *sql.DB
	DSN string

	container *postgres.PostgresContainer
}

// Start reuses $FLATAPI_TEST_DSN when set and otherwise runs a postgres:16
// container. Migrations are applied either way.
func Start(ctx context.Context) (*Postgres, error) {
	pg := &Postgres{DSN: os.Getenv(DSNEnv)}

	if pg.DSN == "" {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flat_test"),
			postgres.WithUsername("flat"),
			postgres.WithPassword("flat"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		pg.container = container

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pg.Close(ctx)
			return nil, fmt.Errorf("resolve connection string: %w", err)
		}
		pg.DSN = dsn
	}

	if err := db.MigrateUp(pg.DSN, ""); err != nil {
		pg.Close(ctx)
		return nil, err
	}

	conn, err := db.OpenDSN(ctx, pg.DSN)
	if err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}
	pg.DB = conn
	return pg, nil
}

// Reset empties every table.
func (p *Postgres) Reset(ctx context.Context) error {
	for _, tbl := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+tbl+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}
	return nil
}

// Close tears down the pool and the container, if one was started.
func (p *Postgres) Close(ctx context.Context) {
	if p.DB != nil {
		_ = p.DB.Close()
	}
	if p.container != nil {
		_ = testcontainers.TerminateContainer(p.container, testcontainers.StopContext(ctx))
	}
}
