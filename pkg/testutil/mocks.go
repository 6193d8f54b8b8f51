package testutil

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/idcheck/mrzscan/pkg/messaging"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// MockDB is a sqlx handle backed by sqlmock. Queries are matched literally.
//
//	mock := testutil.NewMockDB(t)
//	defer mock.Close()
//	mock.ExpectQuery("SELECT COUNT(*) FROM mrz_scan_audit").WillReturnRows(...)
//	repo := repository.NewAuditRepository(database.Wrap(mock.DB, nil))
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a mock database
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	return &MockDB{DB: sqlx.NewDb(db, "postgres"), Mock: mock}
}

func (m *MockDB) Close() error { return m.DB.Close() }

// ExpectQuery expects query verbatim
func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

// ExpectExec expects statement verbatim
func (m *MockDB) ExpectExec(statement string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(statement))
}

// ExpectTx expects statements executed in order inside one committed
// transaction, as database.DB.Migrate does.
func (m *MockDB) ExpectTx(statements ...string) {
	m.Mock.ExpectBegin()
	for _, stmt := range statements {
		m.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	m.Mock.ExpectCommit()
}

// ExpectationsWereMet fails t if an expectation was not consumed
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows starts a result set with the given columns
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime matches any time.Time argument
type AnyTime struct{}

func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// AnyUUID matches any lowercase UUID string argument
type AnyUUID struct{}

func (AnyUUID) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && uuidPattern.MatchString(s)
}

// PublishedEvent is one call recorded by MockPublisher
type PublishedEvent struct {
	Type          string
	CorrelationID string
	Data          []byte
}

// Decode unmarshals the event payload into v
func (e PublishedEvent) Decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, v), "payload: %s", e.Data)
}

// MockPublisher records published events in memory. It is safe for use
// from the goroutines that run scan jobs.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	err    error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// FailWith makes every later Publish return err without recording
func (m *MockPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Publish records the event the way messaging.Publisher would send it
func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, PublishedEvent{
		Type:          eventType,
		CorrelationID: messaging.CorrelationID(ctx),
		Data:          data,
	})
	return nil
}

// Events returns a snapshot of the recorded events
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

// AssertEventPublished fails t unless an event of eventType was recorded,
// and returns the first one.
func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) PublishedEvent {
	t.Helper()
	for _, e := range m.Events() {
		if e.Type == eventType {
			return e
		}
	}
	t.Errorf("expected event %q to be published, got %d other events", eventType, len(m.Events()))
	return PublishedEvent{}
}

// AssertNoEventsPublished fails t if anything was recorded
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if events := m.Events(); len(events) > 0 {
		t.Errorf("expected no events, got %d: %+v", len(events), events)
	}
}
