//go:build integration

package repository_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/idcheck/mrzscan/internal/docscan/repository"
	apperrors "github.com/idcheck/mrzscan/pkg/errors"
	"github.com/idcheck/mrzscan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx, repository.Schema)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func TestAuditRepository_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := testutil.DefaultTestContext(t)
	suite.Truncate(t, ctx, "mrz_scan_audit")

	repo := repository.NewAuditRepository(suite.DB)
	require.NoError(t, repo.Migrate(ctx))

	completed := sampleEntry()
	require.NoError(t, repo.Create(ctx, completed))
	assert.False(t, completed.CreatedAt.IsZero())

	failed := sampleEntry()
	failed.JobID = "job-2"
	failed.Status = "failed"
	failed.Processor = ""
	failed.Format = ""
	failed.AllCheckDigitsValid = false
	require.NoError(t, repo.Create(ctx, failed))

	entries, total, err := repo.List(ctx, &repository.ListFilter{Status: "completed"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-1", entries[0].JobID)
	assert.WithinDuration(t, completed.InputDiscardedAt, entries[0].InputDiscardedAt, time.Millisecond)

	_, total, err = repo.List(ctx, nil, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestAuditRepository_Integration_Constraints(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := testutil.DefaultTestContext(t)
	suite.Truncate(t, ctx, "mrz_scan_audit")

	repo := repository.NewAuditRepository(suite.DB)
	require.NoError(t, repo.Create(ctx, sampleEntry()))

	err := repo.Create(ctx, sampleEntry())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	bad := sampleEntry()
	bad.JobID = "job-3"
	bad.Status = "processing"
	err = repo.Create(ctx, bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
