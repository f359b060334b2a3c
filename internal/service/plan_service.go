package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/saldanaj97/atlaris-sub007/internal/attempt"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/quota"
	"github.com/saldanaj97/atlaris-sub007/internal/ratelimit"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
	"github.com/saldanaj97/atlaris-sub007/internal/task"
)

// CreatePlanRequest is the validated input for creating a plan.
type CreatePlanRequest struct {
	Topic         string
	Notes         string
	SkillLevel    domain.SkillLevel
	WeeklyHours   int
	LearningStyle domain.LearningStyle
	Document      *generation.DocumentContext
}

// RegenerateOverrides carries optional replacement parameters for a
// regeneration. Nil fields keep the plan's current values.
type RegenerateOverrides struct {
	Topic         *string
	Notes         *string
	SkillLevel    *domain.SkillLevel
	WeeklyHours   *int
	LearningStyle *domain.LearningStyle
}

func (o RegenerateOverrides) empty() bool {
	return o.Topic == nil && o.Notes == nil && o.SkillLevel == nil &&
		o.WeeklyHours == nil && o.LearningStyle == nil
}

// apply copies the non-nil overrides onto the plan.
func (o RegenerateOverrides) apply(plan *domain.Plan) {
	if o.Topic != nil {
		plan.Topic = *o.Topic
	}
	if o.Notes != nil {
		plan.Notes = *o.Notes
	}
	if o.SkillLevel != nil {
		plan.SkillLevel = *o.SkillLevel
	}
	if o.WeeklyHours != nil {
		plan.WeeklyHours = *o.WeeklyHours
	}
	if o.LearningStyle != nil {
		plan.LearningStyle = *o.LearningStyle
	}
}

// PlanDetail is a plan together with its generated content.
type PlanDetail struct {
	Plan    *domain.Plan      `json:"plan"`
	Modules []ModuleWithTasks `json:"modules"`
}

// ModuleWithTasks is one module and its ordered tasks.
type ModuleWithTasks struct {
	Module *domain.Module `json:"module"`
	Tasks  []*domain.Task `json:"tasks"`
}

// generationPayload is the job payload carried from enqueue to the
// generation executor.
type generationPayload struct {
	AttemptID uuid.UUID        `json:"attempt_id"`
	Input     generation.Input `json:"input"`
}

// PlanService orchestrates the plan generation request path: in-process
// throttling, attempt reservation, quota charging, job enqueue with
// dedup compensation, and the inline drain trigger. The sequence is
// fixed (reserve, charge, enqueue) so a quota charge never occurs
// without a reservation and a job is never enqueued without a charge.
type PlanService struct {
	plans          store.PlanStore
	content        store.ContentStore
	reservations   Reserver
	finalizer      Finalizer
	ledger         QuotaLedger
	queue          JobQueue
	tiers          quota.TierResolver
	limiter        *ratelimit.Window
	inlineDrainMax int
}

// NewPlanService creates a PlanService. The limiter may be nil to disable
// in-process throttling; inlineDrainMax <= 0 disables inline draining.
func NewPlanService(
	plans store.PlanStore,
	content store.ContentStore,
	reservations Reserver,
	finalizer Finalizer,
	ledger QuotaLedger,
	queue JobQueue,
	tiers quota.TierResolver,
	limiter *ratelimit.Window,
	inlineDrainMax int,
) (*PlanService, error) {
	if plans == nil {
		return nil, attempt.ErrNilPlanStore
	}
	if content == nil {
		return nil, attempt.ErrNilContentStore
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation manager cannot be nil")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("quota ledger cannot be nil")
	}
	if queue == nil {
		return nil, task.ErrNilQueue
	}
	if tiers == nil {
		return nil, fmt.Errorf("tier resolver cannot be nil")
	}

	return &PlanService{
		plans:          plans,
		content:        content,
		reservations:   reservations,
		finalizer:      finalizer,
		ledger:         ledger,
		queue:          queue,
		tiers:          tiers,
		limiter:        limiter,
		inlineDrainMax: inlineDrainMax,
	}, nil
}

// CreatePlan persists a new plan in the generating state and starts the
// generation pipeline for it. If the pipeline is refused the plan is
// marked failed so it never lingers as generating with no attempt.
func (s *PlanService) CreatePlan(
	ctx context.Context,
	userID uuid.UUID,
	req CreatePlanRequest,
) (*domain.Plan, error) {
	log := logger.FromContext(ctx)

	if rej := s.checkLocalLimit(userID, uuid.Nil); rej != nil {
		return nil, rej
	}

	plan, err := domain.NewPlan(userID, req.Topic, req.Notes, req.SkillLevel, req.WeeklyHours, req.LearningStyle)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	input := generation.Input{
		Topic:         req.Topic,
		Notes:         req.Notes,
		SkillLevel:    req.SkillLevel,
		WeeklyHours:   req.WeeklyHours,
		LearningStyle: req.LearningStyle,
		Document:      req.Document,
	}

	err = s.startGeneration(ctx, plan, userID, input,
		[]domain.GenerationStatus{domain.GenerationStatusGenerating},
		domain.ResourcePlanGeneration)
	if err != nil {
		// The fresh plan has no attempt and never will; fail it so the
		// client sees a terminal state.
		if updateErr := s.plans.UpdateStatus(ctx, plan.ID, domain.GenerationStatusFailed); updateErr != nil {
			log.Error("failed to mark refused plan as failed",
				"plan_id", plan.ID,
				"error", updateErr)
		}
		return nil, err
	}

	return plan, nil
}

// RegeneratePlan reserves a fresh attempt for an existing plan and
// requeues generation, optionally replacing the plan's parameters first.
// Ready, failed and generating plans may regenerate; a generating plan
// with a live attempt or queued job is turned away by the reservation's
// single-flight check, while one whose retries ran out without a verdict
// gets a fresh start here.
func (s *PlanService) RegeneratePlan(
	ctx context.Context,
	userID, planID uuid.UUID,
	overrides RegenerateOverrides,
) (*domain.Plan, error) {
	if rej := s.checkLocalLimit(userID, planID); rej != nil {
		return nil, rej
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan", store.ErrNotFound)
	}

	if !overrides.empty() {
		overrides.apply(plan)
		// Persist before reserving so the attempt's sanitized input and
		// the stored plan cannot drift apart.
		if err := s.plans.UpdateParameters(ctx, plan); err != nil {
			return nil, err
		}
	}

	input := generation.Input{
		Topic:         plan.Topic,
		Notes:         plan.Notes,
		SkillLevel:    plan.SkillLevel,
		WeeklyHours:   plan.WeeklyHours,
		LearningStyle: plan.LearningStyle,
	}

	err = s.startGeneration(ctx, plan, userID, input,
		[]domain.GenerationStatus{
			domain.GenerationStatusReady,
			domain.GenerationStatusFailed,
			domain.GenerationStatusGenerating,
		},
		domain.ResourceRegeneration)
	if err != nil {
		return nil, err
	}

	// The reservation already moved the stored plan to generating; an
	// inline drain may have finished the attempt since, so no further
	// status write happens here.
	plan.Status = domain.GenerationStatusGenerating
	return plan, nil
}

// GetPlan returns a plan with its content. Ownership failures look like
// missing plans.
func (s *PlanService) GetPlan(ctx context.Context, userID, planID uuid.UUID) (*PlanDetail, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != userID {
		return nil, fmt.Errorf("%w: plan", store.ErrNotFound)
	}

	modules, err := s.content.ListModules(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	tasks, err := s.content.ListTasks(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	byModule := make(map[uuid.UUID][]*domain.Task, len(modules))
	for _, t := range tasks {
		byModule[t.ModuleID] = append(byModule[t.ModuleID], t)
	}

	detail := &PlanDetail{Plan: plan, Modules: make([]ModuleWithTasks, 0, len(modules))}
	for _, m := range modules {
		detail.Modules = append(detail.Modules, ModuleWithTasks{Module: m, Tasks: byModule[m.ID]})
	}
	return detail, nil
}

// startGeneration runs the fixed reserve, charge, enqueue sequence for
// one plan.
func (s *PlanService) startGeneration(
	ctx context.Context,
	plan *domain.Plan,
	userID uuid.UUID,
	input generation.Input,
	allowedStatuses []domain.GenerationStatus,
	kind domain.ResourceKind,
) error {
	log := logger.FromContext(ctx)

	reservation, err := s.reservations.Reserve(ctx, plan.ID, userID, input, allowedStatuses)
	if err != nil {
		return err
	}

	decision, err := s.ledger.CheckAndIncrement(ctx, userID, kind)
	if err != nil {
		s.abandonReservation(ctx, reservation, domain.FailureUnknown, false, "quota charge failed: "+err.Error())
		return fmt.Errorf("failed to charge quota: %w", err)
	}
	if !decision.Allowed {
		// The reservation must not stay in_progress; quota exhaustion is
		// terminal for this request.
		s.abandonReservation(ctx, reservation, domain.FailureRateLimit, false, "monthly quota exhausted")
		return ErrQuotaExceeded
	}

	tier, err := s.tiers.TierFor(ctx, userID)
	if err != nil {
		s.abandonReservation(ctx, reservation, domain.FailureUnknown, false, "tier lookup failed: "+err.Error())
		return err
	}

	payload, err := json.Marshal(generationPayload{
		AttemptID: reservation.AttemptID,
		Input:     reservation.Input,
	})
	if err != nil {
		s.abandonReservation(ctx, reservation, domain.FailureUnknown, false, "payload encoding failed: "+err.Error())
		return fmt.Errorf("failed to encode job payload: %w", err)
	}

	result, err := s.queue.EnqueueWithResult(ctx,
		domain.JobTypePlanGeneration, plan.ID, userID, payload,
		task.PriorityFor(tier, input.Topic))
	if err != nil {
		s.abandonReservation(ctx, reservation, domain.FailureUnknown, false, "enqueue failed: "+err.Error())
		return err
	}

	if result.Deduplicated {
		// No new work will happen: hand the charge back and close the
		// orphaned reservation so the existing job finishes the plan.
		log.Info("generation enqueue deduplicated",
			"plan_id", plan.ID,
			"existing_job_id", result.ID)
		s.ledger.Compensate(ctx, userID, kind)
		s.abandonReservation(ctx, reservation, domain.FailureRateLimit, true, "duplicate generation job already queued")
		return nil
	}

	s.queue.TryDrainAsync(ctx, s.inlineDrainMax)
	return nil
}

// abandonReservation finalizes a reservation whose work will never run.
// Reserved attempts must always reach a terminal state.
func (s *PlanService) abandonReservation(
	ctx context.Context,
	reservation *attempt.Reservation,
	classification domain.FailureClassification,
	retryable bool,
	detail string,
) {
	log := logger.FromContext(ctx)

	outcome := generation.Outcome{Classification: classification, Retryable: retryable}
	err := s.finalizer.FinalizeFailure(ctx,
		reservation.AttemptID, reservation.PlanID, outcome, detail, 0, domain.AttemptMetadata{})
	if err != nil {
		log.Error("failed to finalize abandoned reservation",
			"attempt_id", reservation.AttemptID,
			"plan_id", reservation.PlanID,
			"error", err)
	}
}

// checkLocalLimit applies the cheap in-process throttle. It is a first
// line of defense only; the durable limiter inside reservation is the
// globally consistent one. planID may be uuid.Nil when no plan exists
// yet, in which case the rejection carries no plan.
func (s *PlanService) checkLocalLimit(userID, planID uuid.UUID) *attempt.Rejection {
	if s.limiter == nil {
		return nil
	}
	allowed, retryAfter := s.limiter.Allow(userID.String())
	if allowed {
		return nil
	}
	return &attempt.Rejection{
		Reason:     attempt.RejectionRateLimited,
		PlanID:     planID,
		RetryAfter: retryAfter,
	}
}
