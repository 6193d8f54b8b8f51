package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/idcheck/mrzscan/pkg/database"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// shared is the container every integration suite in a test binary uses
var shared struct {
	once      sync.Once
	container *PostgresContainer
	admin     *sqlx.DB
	err       error
}

func sharedPostgres(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	shared.once.Do(func() {
		shared.container, shared.err = StartPostgres(ctx)
		if shared.err != nil {
			return
		}
		shared.admin, shared.err = shared.container.Connect(ctx)
	})
	return shared.container, shared.admin, shared.err
}

// IntegrationSuite gives integration tests a migrated database.
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx, repository.Schema)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    suite.Cleanup(ctx)
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	// RawDB is the shared admin pool, used for truncation
	RawDB *sqlx.DB
	// DB is this suite's own pool, the one repositories get
	DB     *database.DB
	Logger *logger.Logger
}

// NewIntegrationSuite starts or reuses the shared container and applies the
// schema statements.
func NewIntegrationSuite(ctx context.Context, schema ...string) (*IntegrationSuite, error) {
	container, admin, err := sharedPostgres(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := container.Connect(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.Nop()
	db := database.Wrap(pool, log)

	if err := db.Migrate(ctx, schema...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &IntegrationSuite{Container: container, RawDB: admin, DB: db, Logger: log}, nil
}

// Truncate empties tables. Call it first in each test.
func (s *IntegrationSuite) Truncate(t *testing.T, ctx context.Context, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	if _, err := s.RawDB.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")); err != nil {
		t.Fatalf("failed to truncate %v: %v", tables, err)
	}
}

// Cleanup closes the suite's pool. The shared container stays up.
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	return s.DB.Close()
}

// TerminateContainer stops the shared container. Call it from TestMain once
// every suite is done.
func TerminateContainer(ctx context.Context) {
	if shared.admin != nil {
		shared.admin.Close()
	}
	if shared.container != nil {
		shared.container.Terminate(ctx)
	}
}

// UnitTestSuite bundles the mocks repository unit tests need
type UnitTestSuite struct {
	MockDB *MockDB
	t      *testing.T
}

// NewUnitTestSuite creates the mocks. Register Cleanup with t.Cleanup.
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{MockDB: NewMockDB(t), t: t}
}

// Cleanup fails the test on unmet expectations and closes the mock
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}
