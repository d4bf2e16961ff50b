package queue

import (
	"sync"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// JobStore is the job registry. An interface so tests can inject a fresh
// store per test and deployments can back it with something durable.
type JobStore interface {
	Create(job *models.BatchJob) error
	// Get returns a snapshot of the job; mutating it does not affect the
	// stored job.
	Get(id uuid.UUID) (*models.BatchJob, bool)
	// Update applies fn to the stored job under the store's lock.
	Update(id uuid.UUID, fn func(*models.BatchJob)) bool
}

// MemoryJobStore is the in-process JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.BatchJob
}

// NewMemoryJobStore creates an empty in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*models.BatchJob),
	}
}

// Create registers a new job
func (s *MemoryJobStore) Create(job *models.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot copy of a job
func (s *MemoryJobStore) Get(id uuid.UUID) (*models.BatchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}

	snapshot := *job
	snapshot.Results = make([]models.FileResult, len(job.Results))
	copy(snapshot.Results, job.Results)
	return &snapshot, true
}

// Update applies fn to a stored job under the write lock
func (s *MemoryJobStore) Update(id uuid.UUID, fn func(*models.BatchJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}
