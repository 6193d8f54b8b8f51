package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/idcheck/mrzscan/internal/docscan/domain"
	"github.com/idcheck/mrzscan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempStorage_StoreAndGet(t *testing.T) {
	s := NewTempStorage(time.Minute)
	defer s.Close()

	job := &domain.ScanJob{JobID: GenerateJobID(), Status: domain.StatusProcessing, CreatedAt: time.Now()}
	s.StoreJob(job)

	got := s.GetJob(job.JobID)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Nil(t, s.GetJob("missing"))

	// stored and returned jobs are copies
	job.Status = domain.StatusFailed
	got.Status = domain.StatusCompleted
	assert.Equal(t, domain.StatusProcessing, s.GetJob(job.JobID).Status)
}

func TestTempStorage_UpdateJob(t *testing.T) {
	s := NewTempStorage(time.Minute)
	defer s.Close()

	id := GenerateJobID()
	s.StoreJob(&domain.ScanJob{JobID: id, Status: domain.StatusProcessing, CreatedAt: time.Now()})

	s.UpdateJob(id, func(j *domain.ScanJob) {
		j.Status = domain.StatusCompleted
		j.Result = &domain.ScanOutcome{Processor: "mrz_text", Warnings: []string{"w"}}
	})
	s.UpdateJob("missing", func(j *domain.ScanJob) { t.Fatal("update called for unknown job") })

	got := s.GetJob(id)
	require.NotNil(t, got.Result)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	got.Result.Warnings[0] = "changed"
	assert.Equal(t, []string{"w"}, s.GetJob(id).Result.Warnings)
}

func TestTempStorage_Cleanup(t *testing.T) {
	s := NewTempStorage(time.Minute)
	defer s.Close()

	now := time.Now()
	s.StoreJob(&domain.ScanJob{JobID: "old", CreatedAt: now.Add(-2 * time.Minute)})
	s.StoreJob(&domain.ScanJob{JobID: "new", CreatedAt: now})

	s.cleanup(now)

	assert.Nil(t, s.GetJob("old"))
	assert.NotNil(t, s.GetJob("new"))
	assert.Equal(t, 1, s.Len())
}

func TestTempStorage_CleanupLoop(t *testing.T) {
	s := NewTempStorage(20 * time.Millisecond)
	defer s.Close()

	s.StoreJob(&domain.ScanJob{JobID: "old", CreatedAt: time.Now().Add(-time.Hour)})

	testutil.RequireEventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond,
		"expired job was not removed")
}

func TestTempStorage_CloseTwice(t *testing.T) {
	s := NewTempStorage(time.Minute)
	s.Close()
	assert.NotPanics(t, s.Close)
}

func TestGenerateJobID(t *testing.T) {
	id := GenerateJobID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, GenerateJobID())
}

func TestZeroBytes(t *testing.T) {
	b := []byte("P<UTOERIKSSON")
	ZeroBytes(b)
	assert.Equal(t, make([]byte, 13), b)
}
