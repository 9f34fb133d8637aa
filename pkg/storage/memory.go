package storage

import (
	"errors"
	"sort"
	"sync"

	"audio-transcriber/pkg/models"
)

var ErrJobNotFound = errors.New("job not found")

// MemoryStore keeps live jobs. Callers always receive copies.
type MemoryStore interface {
	SaveJob(job *models.Job) error
	GetJob(id string) (*models.Job, error)
	ListJobs() []*models.Job
	UpdateJob(id string, fn func(*models.Job)) (*models.Job, error)
}

type memoryStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

func NewMemoryStore() MemoryStore {
	return &memoryStore{
		jobs: make(map[string]*models.Job),
	}
}

func (s *memoryStore) SaveJob(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *memoryStore) GetJob(id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListJobs returns every job, newest first.
func (s *memoryStore) ListJobs() []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// UpdateJob applies fn to the stored job under the write lock and returns a
// copy of the result.
func (s *memoryStore) UpdateJob(id string, fn func(*models.Job)) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	fn(job)
	return job.Clone(), nil
}
