package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/platform/logger"
	"github.com/saldanaj97/atlaris-sub007/internal/task"
)

// Generation call timeout defaults
const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultExtendedTimeout   = 45 * time.Second
)

// PlanGenerationProcessor executes plan_generation jobs: it runs the
// external generation call under the timeout policy and finalizes the
// reserved attempt. A retryable failure with job retries remaining leaves
// the attempt in_progress and surfaces the error so the queue requeues
// the job; the retried execution reuses the same reservation. The attempt
// is finalized on success, on a terminal failure, and on the job's last
// allowed execution.
type PlanGenerationProcessor struct {
	generator       generation.Generator
	finalizer       Finalizer
	provider        string
	timeout         time.Duration
	extendedTimeout time.Duration
	maxRetries      int
	now             func() time.Time
}

var _ task.Executor = (*PlanGenerationProcessor)(nil)

// NewPlanGenerationProcessor creates a PlanGenerationProcessor. Zero
// timeouts fall back to the defaults. maxRetries must match the queue's
// retry budget so the processor finalizes on the execution the queue will
// not requeue; maxRetries <= 0 falls back to the queue default.
func NewPlanGenerationProcessor(
	generator generation.Generator,
	finalizer Finalizer,
	provider string,
	timeout, extendedTimeout time.Duration,
	maxRetries int,
) (*PlanGenerationProcessor, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	if extendedTimeout <= 0 {
		extendedTimeout = DefaultExtendedTimeout
	}
	if maxRetries <= 0 {
		maxRetries = domain.DefaultJobMaxRetries
	}

	return &PlanGenerationProcessor{
		generator:       generator,
		finalizer:       finalizer,
		provider:        provider,
		timeout:         timeout,
		extendedTimeout: extendedTimeout,
		maxRetries:      maxRetries,
		now:             time.Now,
	}, nil
}

// Execute implements task.Executor for plan_generation jobs.
func (p *PlanGenerationProcessor) Execute(ctx context.Context, job *domain.Job) (err error) {
	log := logger.FromContext(ctx)

	var payload generationPayload
	if decodeErr := json.Unmarshal(job.Payload, &payload); decodeErr != nil {
		// An undecodable payload can never succeed on retry.
		return task.Terminal(fmt.Errorf("failed to decode job payload: %w", decodeErr))
	}

	planID := job.EntityID
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("generation executor panicked",
				"attempt_id", payload.AttemptID,
				"plan_id", planID,
				"panic", r)
			err = p.finalizeFailure(ctx, job, payload,
				fmt.Errorf("panic: %v", r),
				p.elapsedMs(start), domain.AttemptMetadata{Provider: p.provider})
		}
	}()

	outline, usedExtended, genErr := p.generate(ctx, payload.Input)
	durationMs := p.elapsedMs(start)

	meta := domain.AttemptMetadata{
		Provider:            p.provider,
		UsedExtendedTimeout: usedExtended,
	}
	if payload.Input.Document != nil {
		meta.DocumentDigest = payload.Input.Document.Digest
	}
	if outline != nil {
		meta.Model = outline.Model
		meta.PromptTokens = outline.Usage.PromptTokens
		meta.CompletionTokens = outline.Usage.CompletionTokens
		meta.TotalTokens = outline.Usage.TotalTokens
	}

	if genErr != nil {
		return p.finalizeFailure(ctx, job, payload, genErr, durationMs, meta)
	}
	if outline == nil || len(outline.Modules) == 0 {
		// Structurally empty output is a provider validation failure.
		return p.finalizeFailure(ctx, job, payload,
			fmt.Errorf("%w: empty outline", generation.ErrInvalidResponse), durationMs, meta)
	}

	if finErr := p.finalizer.FinalizeSuccess(ctx, payload.AttemptID, planID, outline, durationMs, meta); finErr != nil {
		return fmt.Errorf("failed to finalize successful attempt: %w", finErr)
	}

	log.Info("plan generation completed",
		"plan_id", planID,
		"attempt_id", payload.AttemptID,
		"modules", len(outline.Modules),
		"duration_ms", durationMs)
	return nil
}

// finalizeFailure classifies a failed generation and decides between a
// job requeue and finalization. While the queue still has retries for the
// job, a retryable failure leaves the attempt in_progress and returns the
// error so Fail requeues; the retried execution picks the reservation
// back up. Terminal failures and the last allowed execution finalize the
// attempt, and the returned error fails the job with that verdict.
func (p *PlanGenerationProcessor) finalizeFailure(
	ctx context.Context,
	job *domain.Job,
	payload generationPayload,
	genErr error,
	durationMs int64,
	meta domain.AttemptMetadata,
) error {
	outcome := generation.Classify(genErr)

	if outcome.Retryable && job.RetryCount+1 < p.maxRetries {
		return fmt.Errorf("generation failed, leaving attempt open for requeue: %w", genErr)
	}

	err := p.finalizer.FinalizeFailure(ctx,
		payload.AttemptID, job.EntityID, outcome, genErr.Error(), durationMs, meta)
	if err != nil {
		return fmt.Errorf("failed to finalize failed attempt: %w", err)
	}
	if !outcome.Retryable {
		return task.Terminal(fmt.Errorf("generation failed: %w", genErr))
	}
	return fmt.Errorf("generation failed: %w", genErr)
}

// generate runs the generation call under the base timeout, retrying
// once under the extended timeout when the provider needs more time.
func (p *PlanGenerationProcessor) generate(
	ctx context.Context,
	input generation.Input,
) (*generation.PlanOutline, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	outline, err := p.generator.Generate(callCtx, input)
	cancel()
	if err == nil || !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return outline, false, err
	}

	extCtx, cancel := context.WithTimeout(ctx, p.extendedTimeout)
	defer cancel()
	outline, err = p.generator.Generate(extCtx, input)
	return outline, true, err
}

func (p *PlanGenerationProcessor) elapsedMs(start time.Time) int64 {
	return p.now().Sub(start).Milliseconds()
}
