package services

import (
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankRecommendations_ConfidenceDescending(t *testing.T) {
	now := time.Now()
	recs := []models.Recommendation{
		{ID: 1, Topic: "a", Confidence: 0.3, CreatedAt: now},
		{ID: 2, Topic: "b", Confidence: 0.9, CreatedAt: now},
		{ID: 3, Topic: "c", Confidence: 0.6, CreatedAt: now},
	}

	ranked := rankRecommendations(recs, 5)

	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].Topic)
	assert.Equal(t, "c", ranked[1].Topic)
	assert.Equal(t, "a", ranked[2].Topic)
}

func TestRankRecommendations_RecencyTiebreak(t *testing.T) {
	now := time.Now()
	recs := []models.Recommendation{
		{ID: 1, Topic: "older", Confidence: 0.8, CreatedAt: now.Add(-time.Hour)},
		{ID: 2, Topic: "newer", Confidence: 0.8, CreatedAt: now},
	}

	ranked := rankRecommendations(recs, 5)

	assert.Equal(t, "newer", ranked[0].Topic)
	assert.Equal(t, "older", ranked[1].Topic)
}

func TestRankRecommendations_StableOrderOnFullTie(t *testing.T) {
	now := time.Now()
	recs := []models.Recommendation{
		{ID: 1, Confidence: 0.5, CreatedAt: now},
		{ID: 2, Confidence: 0.5, CreatedAt: now},
	}

	first := rankRecommendations(append([]models.Recommendation{}, recs...), 5)
	second := rankRecommendations([]models.Recommendation{recs[1], recs[0]}, 5)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, first[0].ID)
}

func TestRankRecommendations_CapAtLimit(t *testing.T) {
	now := time.Now()
	var recs []models.Recommendation
	for i := 1; i <= 8; i++ {
		recs = append(recs, models.Recommendation{
			ID:         i,
			Confidence: float64(i) / 10,
			CreatedAt:  now,
		})
	}

	ranked := rankRecommendations(recs, 5)

	require.Len(t, ranked, 5)
	assert.Equal(t, 8, ranked[0].ID)
	assert.Equal(t, 4, ranked[4].ID)
}

func TestRankRecommendations_Empty(t *testing.T) {
	assert.Empty(t, rankRecommendations(nil, 5))
}
