package attempt

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// serialTxRunner emulates the serialization the real implementation gets
// from SELECT ... FOR UPDATE: every "transaction" runs under one mutex.
type serialTxRunner struct {
	mu sync.Mutex
}

func (r *serialTxRunner) run(ctx context.Context, _ *sql.DB, fn store.TxFn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, nil)
}

type fakePlanStore struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*domain.Plan
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{plans: make(map[uuid.UUID]*domain.Plan)}
}

func (s *fakePlanStore) put(plan *domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[plan.ID] = &cp
}

func (s *fakePlanStore) Create(_ context.Context, plan *domain.Plan) error {
	s.put(plan)
	return nil
}

func (s *fakePlanStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

func (s *fakePlanStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return s.GetByID(ctx, id)
}

func (s *fakePlanStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.GenerationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Status = status
	plan.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakePlanStore) UpdateParameters(_ context.Context, plan *domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.plans[plan.ID]
	if !ok {
		return store.ErrPlanNotFound
	}
	existing.Topic = plan.Topic
	existing.Notes = plan.Notes
	existing.SkillLevel = plan.SkillLevel
	existing.WeeklyHours = plan.WeeklyHours
	existing.LearningStyle = plan.LearningStyle
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakePlanStore) MarkReady(_ context.Context, id uuid.UUID, finalizedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Status = domain.GenerationStatusReady
	plan.IsQuotaEligible = true
	plan.FinalizedAt = &finalizedAt
	plan.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakePlanStore) WithTx(*sql.Tx) store.PlanStore { return s }

var _ store.PlanStore = (*fakePlanStore)(nil)

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*domain.GenerationAttempt
	// owners maps plan IDs to their owning user, standing in for the
	// plans join the real store performs for per-user counts.
	owners map[uuid.UUID]uuid.UUID

	countSinceErr error
	oldestErr     error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*domain.GenerationAttempt),
		owners:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *fakeAttemptStore) Create(_ context.Context, attempt *domain.GenerationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *attempt
	s.attempts[attempt.ID] = &cp
	return nil
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*domain.GenerationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, store.ErrAttemptNotFound
	}
	cp := *attempt
	return &cp, nil
}

func (s *fakeAttemptStore) CountForPlan(_ context.Context, planID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.PlanID == planID {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) CountModuleless(_ context.Context, planID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attempts {
		if a.PlanID == planID && a.Status != domain.AttemptStatusInProgress && a.ModulesCount == 0 {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) HasInProgress(_ context.Context, planID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.PlanID == planID && a.Status == domain.AttemptStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAttemptStore) CountUserAttemptsSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countSinceErr != nil {
		return 0, s.countSinceErr
	}
	count := 0
	for _, a := range s.attempts {
		if s.owners[a.PlanID] == userID && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeAttemptStore) OldestUserAttemptSince(_ context.Context, userID uuid.UUID, since time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oldestErr != nil {
		return time.Time{}, s.oldestErr
	}
	var times []time.Time
	for _, a := range s.attempts {
		if s.owners[a.PlanID] == userID && !a.CreatedAt.Before(since) {
			times = append(times, a.CreatedAt)
		}
	}
	if len(times) == 0 {
		return time.Time{}, store.ErrAttemptNotFound
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times[0], nil
}

func (s *fakeAttemptStore) FinalizeSuccess(_ context.Context, id uuid.UUID, update store.AttemptSuccessUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok || attempt.Status != domain.AttemptStatusInProgress {
		return store.ErrAttemptNotFound
	}
	attempt.Status = domain.AttemptStatusSuccess
	attempt.DurationMs = update.DurationMs
	attempt.ModulesCount = update.ModulesCount
	attempt.TasksCount = update.TasksCount
	attempt.NormalizedEffort = update.NormalizedEffort
	attempt.Metadata = update.Metadata
	return nil
}

func (s *fakeAttemptStore) FinalizeFailure(_ context.Context, id uuid.UUID, update store.AttemptFailureUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok || attempt.Status != domain.AttemptStatusInProgress {
		return store.ErrAttemptNotFound
	}
	classification := update.Classification
	attempt.Status = domain.AttemptStatusFailure
	attempt.Classification = &classification
	attempt.DurationMs = update.DurationMs
	attempt.TimedOut = update.TimedOut
	attempt.Metadata = update.Metadata
	return nil
}

func (s *fakeAttemptStore) WithTx(*sql.Tx) store.AttemptStore { return s }

var _ store.AttemptStore = (*fakeAttemptStore)(nil)

// seedAttempt inserts a pre-built attempt row, bypassing domain validation
// timing so tests can control creation times and terminal states.
func (s *fakeAttemptStore) seedAttempt(a *domain.GenerationAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.attempts[a.ID] = &cp
}

type fakeContentStore struct {
	mu      sync.Mutex
	modules []*domain.Module
	tasks   []*domain.Task

	// moduleShortfall makes InsertModules report fewer rows than
	// requested, simulating a partial insert.
	moduleShortfall int
}

func newFakeContentStore() *fakeContentStore { return &fakeContentStore{} }

func (s *fakeContentStore) DeleteForPlan(_ context.Context, planID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keptModules []*domain.Module
	deleted := make(map[uuid.UUID]bool)
	for _, m := range s.modules {
		if m.PlanID == planID {
			deleted[m.ID] = true
			continue
		}
		keptModules = append(keptModules, m)
	}
	var keptTasks []*domain.Task
	for _, t := range s.tasks {
		if deleted[t.ModuleID] {
			continue
		}
		keptTasks = append(keptTasks, t)
	}
	s.modules, s.tasks = keptModules, keptTasks
	return nil
}

func (s *fakeContentStore) InsertModules(_ context.Context, modules []*domain.Module) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = append(s.modules, modules...)
	return len(modules) - s.moduleShortfall, nil
}

func (s *fakeContentStore) InsertTasks(_ context.Context, tasks []*domain.Task) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, tasks...)
	return len(tasks), nil
}

func (s *fakeContentStore) ListModules(_ context.Context, planID uuid.UUID) ([]*domain.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Module
	for _, m := range s.modules {
		if m.PlanID == planID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *fakeContentStore) ListTasks(_ context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	moduleIDs := make(map[uuid.UUID]bool)
	for _, m := range s.modules {
		if m.PlanID == planID {
			moduleIDs[m.ID] = true
		}
	}
	var out []*domain.Task
	for _, t := range s.tasks {
		if moduleIDs[t.ModuleID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeContentStore) WithTx(*sql.Tx) store.ContentStore { return s }

var _ store.ContentStore = (*fakeContentStore)(nil)
