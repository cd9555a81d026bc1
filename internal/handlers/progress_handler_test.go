package handlers

import (
	"net/http"
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProgress_EmptyLearner(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{
		progress: &stubProgressService{snapshot: models.EmptySnapshot(7)},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/progress", "")

	assert.Equal(t, http.StatusOK, w.Code)
	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, float64(7), progress["learner_id"])
	assert.Equal(t, float64(0), progress["total_attempts"])
	assert.Equal(t, string(models.TrendInsufficientData), progress["trend"])
}

func TestGetProgress_PopulatedSnapshot(t *testing.T) {
	lastActive := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	router := newTestRouterWithStubs(routerStubs{
		progress: &stubProgressService{snapshot: &models.ProgressSnapshot{
			LearnerID:         7,
			TotalAttempts:     4,
			CompletedAttempts: 3,
			SuccessRate:       66.7,
			AverageScore:      71.5,
			LastActive:        &lastActive,
			TopicAverages:     map[string]float64{"algebra": 80},
			StrongTopics:      []string{"algebra"},
			WeakTopics:        []string{},
			Trend:             models.TrendImproving,
			TrendSlope:        4.2,
		}},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/progress", "")

	assert.Equal(t, http.StatusOK, w.Code)
	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, float64(4), progress["total_attempts"])
	assert.Equal(t, string(models.TrendImproving), progress["trend"])
	assert.Contains(t, progress["strong_topics"], "algebra")
}

func TestGetProgress_BadLearnerID(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/abc/progress", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestGetStats_OK(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{
		progress: &stubProgressService{stats: &models.LearnerStats{
			LearnerID:     7,
			TotalAttempts: 2,
			AverageScore:  65,
			Trend:         models.TrendStable,
		}},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(7), stats["learner_id"])
	assert.Equal(t, string(models.TrendStable), stats["trend"])
}

func TestGetRecommendations_RankedList(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{
		recommendations: &stubRecommendationService{pending: []models.Recommendation{
			{ID: 2, LearnerID: 7, Topic: "algebra", Confidence: 0.9},
			{ID: 1, LearnerID: 7, Topic: "geometry", Confidence: 0.5},
		}},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/recommendations", "")

	assert.Equal(t, http.StatusOK, w.Code)
	recs := body["recommendations"].([]interface{})
	require.Len(t, recs, 2)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, float64(0.9), first["confidence"])
}

func TestAcceptRecommendation_OK(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, body := doJSON(t, router, http.MethodPost, "/v1/recommendations/5/accept", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", body["status"])
}
