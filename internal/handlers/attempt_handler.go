package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	"quizforge/internal/services"
	contextutils "quizforge/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AttemptHandler handles attempt lifecycle HTTP requests: eligibility checks,
// initiation, and submission.
type AttemptHandler struct {
	attemptService     services.AttemptServiceInterface
	eligibilityService services.EligibilityServiceInterface
	cfg                *config.Config
	logger             *observability.Logger
}

// NewAttemptHandler creates a new AttemptHandler
func NewAttemptHandler(
	attemptService services.AttemptServiceInterface,
	eligibilityService services.EligibilityServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		attemptService:     attemptService,
		eligibilityService: eligibilityService,
		cfg:                cfg,
		logger:             logger,
	}
}

// CheckEligibility handles GET /v1/learners/:id/courses/:courseID/eligibility.
// An ineligible learner is a 200 response; the decision payload carries the
// reason and the next available time.
func (h *AttemptHandler) CheckEligibility(c *gin.Context) {
	learnerID, courseID, ok := parseLearnerCourseParams(c)
	if !ok {
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "check_eligibility",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, nil)
	ctx = contextutils.WithLearnerID(ctx, learnerID)

	decision, err := h.eligibilityService.CheckEligibility(ctx, learnerID, courseID)
	if err != nil {
		h.logger.Error(ctx, "Failed to check eligibility", err, map[string]interface{}{
			"learner_id": learnerID,
			"course_id":  courseID,
		})
		HandleAppError(c, contextutils.WrapError(err, "failed to check eligibility"))
		return
	}

	span.SetAttributes(
		attribute.Bool("eligibility.eligible", decision.Eligible),
		attribute.String("eligibility.reason", string(decision.Reason)),
	)

	status := "eligible"
	if !decision.Eligible {
		status = "ineligible"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"decision": decision,
	})
}

// InitiateAttempt handles POST /v1/learners/:id/courses/:courseID/attempts
func (h *AttemptHandler) InitiateAttempt(c *gin.Context) {
	learnerID, courseID, ok := parseLearnerCourseParams(c)
	if !ok {
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "initiate_attempt",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, nil)
	ctx = contextutils.WithLearnerID(ctx, learnerID)

	initiated, err := h.attemptService.InitiateAttempt(ctx, learnerID, courseID)
	if err != nil {
		if !isEligibilityRefusal(err) {
			h.logger.Error(ctx, "Failed to initiate attempt", err, map[string]interface{}{
				"learner_id": learnerID,
				"course_id":  courseID,
			})
		}
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		observability.AttributeAttemptID(initiated.Attempt.ID),
		attribute.Int("attempt.number", initiated.Attempt.AttemptNumber),
	)

	c.JSON(http.StatusCreated, gin.H{
		"status":  "started",
		"attempt": initiated,
	})
}

// SubmitAttempt handles POST /v1/attempts/:id/submission
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "attempt ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_attempt",
		observability.AttributeAttemptID(attemptID),
	)
	defer observability.FinishSpan(span, nil)

	var submission models.Submission
	if err := c.ShouldBindJSON(&submission); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid submission payload",
			"Request body must be a JSON submission with an answers array",
			err,
		))
		return
	}

	result, err := h.attemptService.SubmitAttempt(ctx, attemptID, &submission)
	if err != nil {
		h.logger.Error(ctx, "Failed to submit attempt", err, map[string]interface{}{
			"attempt_id": attemptID,
		})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.Float64("attempt.score", result.Score),
		attribute.String("attempt.status", string(result.Attempt.Status)),
	)

	c.JSON(http.StatusOK, gin.H{
		"status": "finalized",
		"result": result,
	})
}

// GetAttempt handles GET /v1/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "attempt ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_attempt",
		observability.AttributeAttemptID(attemptID),
	)
	defer observability.FinishSpan(span, nil)

	attempt, err := h.attemptService.GetAttempt(ctx, attemptID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"attempt": attempt,
	})
}

// isEligibilityRefusal reports whether err is an eligibility decision rather
// than a processing failure. Refusals are expected traffic and not error-logged.
func isEligibilityRefusal(err error) bool {
	var appErr *contextutils.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case contextutils.ErrorCodeQuotaExceeded, contextutils.ErrorCodeCooldownActive, contextutils.ErrorCodeRateLimit:
		return true
	}
	return false
}

// parseLearnerCourseParams parses the :id and :courseID path params shared by
// the learner-scoped attempt routes.
func parseLearnerCourseParams(c *gin.Context) (learnerID, courseID int, ok bool) {
	learnerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "learner ID", c.Param("id"), "must be a valid integer")
		return 0, 0, false
	}
	courseID, err = strconv.Atoi(c.Param("courseID"))
	if err != nil {
		HandleValidationError(c, "course ID", c.Param("courseID"), "must be a valid integer")
		return 0, 0, false
	}
	return learnerID, courseID, true
}
