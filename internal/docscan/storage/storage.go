package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/idcheck/mrzscan/internal/docscan/domain"
)

// TempStorage provides in-memory storage for scan jobs.
// Uploads are processed in RAM only and zeroed after use; results holding
// MRZ personal data are kept only until the TTL expires.
type TempStorage struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ScanJob
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

// NewTempStorage creates a new in-memory temp storage with the given TTL.
// Call Close to stop the cleanup goroutine.
func NewTempStorage(ttl time.Duration) *TempStorage {
	s := &TempStorage{
		jobs: make(map[string]*domain.ScanJob),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// GenerateJobID creates a random job ID
func GenerateJobID() string {
	return uuid.New().String()
}

// StoreJob stores a scan job
func (s *TempStorage) StoreJob(job *domain.ScanJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job.Clone()
}

// GetJob returns a copy of the scan job, or nil if it is unknown or expired
func (s *TempStorage) GetJob(jobID string) *domain.ScanJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[jobID].Clone()
}

// UpdateJob updates an existing scan job
func (s *TempStorage) UpdateJob(jobID string, update func(*domain.ScanJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		update(job)
	}
}

// Len returns the number of stored jobs
func (s *TempStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close stops the cleanup goroutine
func (s *TempStorage) Close() {
	s.once.Do(func() { close(s.stop) })
}

// ZeroBytes overwrites a byte slice with zeros for secure deletion.
// This prevents document images and MRZ text from lingering in memory.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// cleanupLoop periodically removes expired jobs
func (s *TempStorage) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *TempStorage) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
