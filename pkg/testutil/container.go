// Package testutil holds the shared test plumbing of the MRZ scan service:
// a throwaway PostgreSQL container, sqlmock and publisher fakes, HTTP
// helpers and MRZ specimens.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImageEnv overrides the image integration tests run against
const PostgresImageEnv = "MRZSCAN_TEST_POSTGRES_IMAGE"

const (
	defaultPostgresImage = "postgres:15-alpine"
	testDatabase         = "mrzscan_test"
	testCredential       = "mrzscan"
)

// PostgresContainer is a disposable PostgreSQL server
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// StartPostgres starts a PostgreSQL container and waits until it accepts
// connections. The caller terminates it.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	image := os.Getenv(PostgresImageEnv)
	if image == "" {
		image = defaultPostgresImage
	}

	// postgres logs readiness twice: once for the init run, once for real
	ready := wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(time.Minute)

	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testCredential),
		postgres.WithPassword(testCredential),
		testcontainers.WithWaitStrategy(ready),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", image, err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	return &PostgresContainer{PostgresContainer: c, DSN: dsn}, nil
}

// Connect opens a small pool against the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}
