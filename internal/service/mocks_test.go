package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/attempt"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/quota"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

type mockReserver struct {
	reservation *attempt.Reservation
	err         error
	calls       int
	allowed     []domain.GenerationStatus
}

func (m *mockReserver) Reserve(
	_ context.Context,
	planID, _ uuid.UUID,
	input generation.Input,
	allowed []domain.GenerationStatus,
) (*attempt.Reservation, error) {
	m.calls++
	m.allowed = allowed
	if m.err != nil {
		return nil, m.err
	}
	if m.reservation != nil {
		return m.reservation, nil
	}
	return &attempt.Reservation{
		AttemptID:  uuid.New(),
		PlanID:     planID,
		Input:      input,
		StartedAt:  time.Now().UTC(),
		PromptHash: "hash",
	}, nil
}

type finalizeFailureCall struct {
	attemptID uuid.UUID
	planID    uuid.UUID
	outcome   generation.Outcome
	detail    string
	metadata  domain.AttemptMetadata
}

type finalizeSuccessCall struct {
	attemptID  uuid.UUID
	planID     uuid.UUID
	outline    *generation.PlanOutline
	durationMs int64
	metadata   domain.AttemptMetadata
}

type mockFinalizer struct {
	mu         sync.Mutex
	successes  []finalizeSuccessCall
	failures   []finalizeFailureCall
	successErr error
	failureErr error
}

func (m *mockFinalizer) FinalizeSuccess(
	_ context.Context,
	attemptID, planID uuid.UUID,
	outline *generation.PlanOutline,
	durationMs int64,
	metadata domain.AttemptMetadata,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.successErr != nil {
		return m.successErr
	}
	m.successes = append(m.successes, finalizeSuccessCall{attemptID, planID, outline, durationMs, metadata})
	return nil
}

func (m *mockFinalizer) FinalizeFailure(
	_ context.Context,
	attemptID, planID uuid.UUID,
	outcome generation.Outcome,
	failureDetail string,
	_ int64,
	metadata domain.AttemptMetadata,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failureErr != nil {
		return m.failureErr
	}
	m.failures = append(m.failures, finalizeFailureCall{attemptID, planID, outcome, failureDetail, metadata})
	return nil
}

type mockLedger struct {
	decision     quota.Decision
	err          error
	compensated  int
	chargedKinds []domain.ResourceKind
}

func (m *mockLedger) CheckAndIncrement(
	_ context.Context,
	_ uuid.UUID,
	kind domain.ResourceKind,
) (quota.Decision, error) {
	m.chargedKinds = append(m.chargedKinds, kind)
	if m.err != nil {
		return quota.Decision{}, m.err
	}
	return m.decision, nil
}

func (m *mockLedger) Compensate(context.Context, uuid.UUID, domain.ResourceKind) {
	m.compensated++
}

type enqueueCall struct {
	jobType  string
	entityID uuid.UUID
	ownerID  uuid.UUID
	payload  []byte
	priority int
}

type mockQueue struct {
	result   store.DedupResult
	err      error
	enqueues []enqueueCall
	drains   int

	// drainHook runs inside TryDrainAsync, standing in for an inline
	// drain that executes the job before the request returns.
	drainHook func()
}

func (m *mockQueue) EnqueueWithResult(
	_ context.Context,
	jobType string,
	entityID, ownerID uuid.UUID,
	payload []byte,
	priority int,
) (store.DedupResult, error) {
	m.enqueues = append(m.enqueues, enqueueCall{jobType, entityID, ownerID, payload, priority})
	if m.err != nil {
		return store.DedupResult{}, m.err
	}
	if m.result.ID == uuid.Nil {
		return store.DedupResult{ID: uuid.New()}, nil
	}
	return m.result, nil
}

func (m *mockQueue) TryDrainAsync(context.Context, int) {
	m.drains++
	if m.drainHook != nil {
		m.drainHook()
	}
}

type staticTiers domain.SubscriptionTier

func (t staticTiers) TierFor(context.Context, uuid.UUID) (domain.SubscriptionTier, error) {
	return domain.SubscriptionTier(t), nil
}

type memPlanStore struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*domain.Plan
}

func newMemPlanStore() *memPlanStore {
	return &memPlanStore{plans: make(map[uuid.UUID]*domain.Plan)}
}

func (s *memPlanStore) Create(_ context.Context, plan *domain.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *memPlanStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	cp := *plan
	return &cp, nil
}

func (s *memPlanStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return s.GetByID(ctx, id)
}

func (s *memPlanStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.GenerationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Status = status
	return nil
}

func (s *memPlanStore) UpdateParameters(_ context.Context, plan *domain.Plan) error {
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
	return nil
}

func (s *memPlanStore) MarkReady(_ context.Context, id uuid.UUID, finalizedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return store.ErrPlanNotFound
	}
	plan.Status = domain.GenerationStatusReady
	plan.IsQuotaEligible = true
	plan.FinalizedAt = &finalizedAt
	return nil
}

func (s *memPlanStore) WithTx(*sql.Tx) store.PlanStore { return s }

var _ store.PlanStore = (*memPlanStore)(nil)

type memContentStore struct {
	modules []*domain.Module
	tasks   []*domain.Task
}

func (s *memContentStore) DeleteForPlan(context.Context, uuid.UUID) error { return nil }

func (s *memContentStore) InsertModules(_ context.Context, modules []*domain.Module) (int, error) {
	s.modules = append(s.modules, modules...)
	return len(modules), nil
}

func (s *memContentStore) InsertTasks(_ context.Context, tasks []*domain.Task) (int, error) {
	s.tasks = append(s.tasks, tasks...)
	return len(tasks), nil
}

func (s *memContentStore) ListModules(_ context.Context, planID uuid.UUID) ([]*domain.Module, error) {
	var out []*domain.Module
	for _, m := range s.modules {
		if m.PlanID == planID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memContentStore) ListTasks(_ context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	ids := make(map[uuid.UUID]bool)
	for _, m := range s.modules {
		if m.PlanID == planID {
			ids[m.ID] = true
		}
	}
	var out []*domain.Task
	for _, t := range s.tasks {
		if ids[t.ModuleID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memContentStore) WithTx(*sql.Tx) store.ContentStore { return s }

var _ store.ContentStore = (*memContentStore)(nil)

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memUserStore) WithTx(*sql.Tx) store.UserStore { return s }

var _ store.UserStore = (*memUserStore)(nil)
