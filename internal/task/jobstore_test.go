package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// fakeJobStore implements store.JobStore in memory with the same dedup
// and ordering semantics as the postgres implementation.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *fakeJobStore) Insert(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) InsertDeduplicated(_ context.Context, job *domain.Job) (store.DedupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.JobType == job.JobType && existing.EntityID == job.EntityID && existing.IsActive() {
			return store.DedupResult{ID: existing.ID, Deduplicated: true}, nil
		}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return store.DedupResult{ID: job.ID}, nil
}

func (s *fakeJobStore) DequeueNext(_ context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if next == nil ||
			job.Priority > next.Priority ||
			(job.Priority == next.Priority && job.CreatedAt.Before(next.CreatedAt)) {
			next = job
		}
	}
	if next == nil {
		return nil, store.ErrJobNotFound
	}

	next.Status = domain.JobStatusProcessing
	next.UpdatedAt = time.Now().UTC()
	cp := *next
	return &cp, nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		return store.ErrJobNotFound
	}
	job.Status = domain.JobStatusCompleted
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeJobStore) MarkFailed(
	_ context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	retryCount int,
	errorHistory []domain.JobError,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Status = status
	job.RetryCount = retryCount
	job.ErrorHistory = append([]domain.JobError(nil), errorHistory...)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeJobStore) ResetStuck(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	reset := 0
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusProcessing && job.UpdatedAt.Before(cutoff) {
			job.Status = domain.JobStatusPending
			job.UpdatedAt = time.Now().UTC()
			reset++
		}
	}
	return reset, nil
}

var _ store.JobStore = (*fakeJobStore)(nil)
