package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saldanaj97/atlaris-sub007/internal/api/shared"
	"github.com/saldanaj97/atlaris-sub007/internal/domain"
	"github.com/saldanaj97/atlaris-sub007/internal/generation"
	"github.com/saldanaj97/atlaris-sub007/internal/service"
)

// PlanOrchestrator is the subset of the plan service the handler needs.
type PlanOrchestrator interface {
	CreatePlan(ctx context.Context, userID uuid.UUID, req service.CreatePlanRequest) (*domain.Plan, error)
	RegeneratePlan(ctx context.Context, userID, planID uuid.UUID, overrides service.RegenerateOverrides) (*domain.Plan, error)
	GetPlan(ctx context.Context, userID, planID uuid.UUID) (*service.PlanDetail, error)
}

// Ensure the concrete service satisfies the handler's dependency
var _ PlanOrchestrator = (*service.PlanService)(nil)

// PlanHandler handles plan-related API requests.
type PlanHandler struct {
	plans     PlanOrchestrator
	validator *validator.Validate
}

// NewPlanHandler creates a new PlanHandler with the given dependencies.
func NewPlanHandler(plans PlanOrchestrator) *PlanHandler {
	return &PlanHandler{
		plans:     plans,
		validator: validator.New(),
	}
}

// Create handles POST /plans. Generation is asynchronous: the response is
// 202 with the plan in the generating state, and clients poll GET /plans/{id}
// until the status turns ready or failed.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found in request context")
		return
	}

	var req CreatePlanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	createReq := service.CreatePlanRequest{
		Topic:         req.Topic,
		Notes:         req.Notes,
		SkillLevel:    domain.SkillLevel(req.SkillLevel),
		WeeklyHours:   req.WeeklyHours,
		LearningStyle: domain.LearningStyle(req.LearningStyle),
	}
	if req.Document != nil {
		createReq.Document = &generation.DocumentContext{
			Digest: req.Document.Digest,
			Text:   req.Document.Text,
		}
	}

	plan, err := h.plans.CreatePlan(r.Context(), userID, createReq)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create plan")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, newPlanResponse(plan))
}

// Get handles GET /plans/{id}, returning the plan with its modules and
// tasks.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, planID, ok := h.userAndPlanID(w, r)
	if !ok {
		return
	}

	detail, err := h.plans.GetPlan(r.Context(), userID, planID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get plan")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newPlanDetailResponse(detail))
}

// Regenerate handles POST /plans/{id}/regenerate. The body is optional;
// when present, its fields replace the plan's stored parameters before the
// new attempt is reserved.
func (h *PlanHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, planID, ok := h.userAndPlanID(w, r)
	if !ok {
		return
	}

	var req RegeneratePlanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	plan, err := h.plans.RegeneratePlan(r.Context(), userID, planID, req.overrides())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to regenerate plan")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, newPlanResponse(plan))
}

func (h *PlanHandler) userAndPlanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found in request context")
		return uuid.Nil, uuid.Nil, false
	}

	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid plan ID")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, planID, true
}

// getUserIDFromContext extracts the authenticated user's UUID from the
// request context, where the auth middleware placed it.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}
