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

// RecommendationHandler exposes the ranked pending recommendations for a learner
type RecommendationHandler struct {
	recommendationService services.RecommendationServiceInterface
	cfg                   *config.Config
	logger                *observability.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler
func NewRecommendationHandler(recommendationService services.RecommendationServiceInterface, cfg *config.Config, logger *observability.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommendationService: recommendationService,
		cfg:                   cfg,
		logger:                logger,
	}
}

// GetRecommendations handles GET /v1/learners/:id/recommendations
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	learnerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "learner ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_recommendations",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, nil)
	ctx = contextutils.WithLearnerID(ctx, learnerID)

	recommendations, err := h.recommendationService.RankPending(ctx, learnerID)
	if err != nil {
		h.logger.Error(ctx, "Failed to rank pending recommendations", err, map[string]interface{}{
			"learner_id": learnerID,
		})
		HandleAppError(c, contextutils.WrapError(err, "failed to rank pending recommendations"))
		return
	}

	span.SetAttributes(attribute.Int("recommendations.count", len(recommendations)))

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"recommendations": recommendations,
	})
}

// AcceptRecommendation handles POST /v1/recommendations/:id/accept. Accepting
// an already-accepted or unknown recommendation is a 404.
func (h *RecommendationHandler) AcceptRecommendation(c *gin.Context) {
	recommendationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		HandleValidationError(c, "recommendation ID", c.Param("id"), "must be a valid integer")
		return
	}

	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "accept_recommendation",
		attribute.Int("recommendation.id", recommendationID),
	)
	defer observability.FinishSpan(span, nil)

	if err := h.recommendationService.Accept(ctx, recommendationID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "accepted",
	})
}
