package handlers

import (
	"net/http"
	"strconv"

	"quizforge/internal/config"
	"quizforge/internal/observability"
	"quizforge/internal/services"
	contextutils "quizforge/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ProgressHandler exposes the analytics views over a learner's attempt history
type ProgressHandler struct {
	progressService services.ProgressServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(progressService services.ProgressServiceInterface, cfg *config.Config, logger *observability.Logger) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		cfg:             cfg,
		logger:          logger,
	}
}

// GetProgress handles GET /v1/learners/:id/progress. A learner with no
// history gets an empty snapshot, not an error.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	learnerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "learner ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_progress",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, nil)
	ctx = contextutils.WithLearnerID(ctx, learnerID)

	snapshot, err := h.progressService.Analyze(ctx, learnerID)
	if err != nil {
		h.logger.Error(ctx, "Failed to analyze learner progress", err, map[string]interface{}{
			"learner_id": learnerID,
		})
		HandleAppError(c, contextutils.WrapError(err, "failed to analyze learner progress"))
		return
	}

	span.SetAttributes(
		attribute.Int("progress.total_attempts", snapshot.TotalAttempts),
		attribute.String("progress.trend", string(snapshot.Trend)),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"progress": snapshot,
	})
}

// GetStats handles GET /v1/learners/:id/stats
func (h *ProgressHandler) GetStats(c *gin.Context) {
	learnerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "learner ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_stats",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, nil)
	ctx = contextutils.WithLearnerID(ctx, learnerID)

	stats, err := h.progressService.GetStats(ctx, learnerID)
	if err != nil {
		h.logger.Error(ctx, "Failed to get learner stats", err, map[string]interface{}{
			"learner_id": learnerID,
		})
		HandleAppError(c, contextutils.WrapError(err, "failed to get learner stats"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stats":  stats,
	})
}
