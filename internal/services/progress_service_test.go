package services

import (
	"database/sql"
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(score float64, topic string, startedAt time.Time) scoredAttempt {
	return scoredAttempt{
		Status:    models.AttemptCompleted,
		Score:     sql.NullFloat64{Float64: score, Valid: true},
		StartedAt: startedAt,
		UpdatedAt: startedAt.Add(30 * time.Minute),
		Topic:     topic,
	}
}

func TestComputeSnapshot_NoAttempts(t *testing.T) {
	snapshot := computeSnapshot(42, nil, 60.0)

	assert.Equal(t, 42, snapshot.LearnerID)
	assert.Equal(t, 0, snapshot.TotalAttempts)
	assert.Equal(t, 0, snapshot.CompletedAttempts)
	assert.Equal(t, 0.0, snapshot.SuccessRate)
	assert.Equal(t, 0.0, snapshot.AverageScore)
	assert.Nil(t, snapshot.LastActive)
	assert.Empty(t, snapshot.StrongTopics)
	assert.Empty(t, snapshot.WeakTopics)
	assert.Equal(t, models.TrendInsufficientData, snapshot.Trend)
}

func TestComputeSnapshot_AveragesAndSuccessRate(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempts := []scoredAttempt{
		scored(80, "algebra", base),
		scored(40, "algebra", base.Add(time.Hour)),
		scored(60, "geometry", base.Add(2*time.Hour)),
	}

	snapshot := computeSnapshot(1, attempts, 60.0)

	assert.Equal(t, 3, snapshot.TotalAttempts)
	assert.Equal(t, 3, snapshot.CompletedAttempts)
	assert.InDelta(t, 60.0, snapshot.AverageScore, 0.001)
	// 80 and 60 pass the 60.0 threshold
	assert.InDelta(t, 100.0*2/3, snapshot.SuccessRate, 0.001)
	require.NotNil(t, snapshot.LastActive)
	assert.Equal(t, base.Add(2*time.Hour+30*time.Minute), *snapshot.LastActive)
}

func TestComputeSnapshot_TopicClassification(t *testing.T) {
	base := time.Now()
	attempts := []scoredAttempt{
		scored(90, "strong-topic", base),
		scored(80, "strong-topic", base),
		scored(40, "weak-topic", base),
		scored(65, "neutral-topic", base),
	}

	snapshot := computeSnapshot(1, attempts, 60.0)

	assert.Equal(t, []string{"strong-topic"}, snapshot.StrongTopics)
	assert.Equal(t, []string{"weak-topic"}, snapshot.WeakTopics)
	assert.NotContains(t, snapshot.StrongTopics, "neutral-topic")
	assert.NotContains(t, snapshot.WeakTopics, "neutral-topic")
	assert.InDelta(t, 85.0, snapshot.TopicAverages["strong-topic"], 0.001)
}

func TestComputeSnapshot_MissingQuizTopicSkipped(t *testing.T) {
	attempts := []scoredAttempt{
		scored(90, "", time.Now()),
		scored(30, "known", time.Now()),
	}

	snapshot := computeSnapshot(1, attempts, 60.0)

	assert.Len(t, snapshot.TopicAverages, 1)
	assert.Contains(t, snapshot.TopicAverages, "known")
	// The topicless attempt still counts toward the overall statistics
	assert.Equal(t, 2, snapshot.CompletedAttempts)
	assert.InDelta(t, 60.0, snapshot.AverageScore, 0.001)
}

func TestComputeSnapshot_IncompleteAttemptsExcludedFromScores(t *testing.T) {
	base := time.Now()
	attempts := []scoredAttempt{
		scored(100, "t", base),
		{
			Status:    models.AttemptTimeout,
			Score:     sql.NullFloat64{Float64: 0, Valid: true},
			StartedAt: base.Add(time.Hour),
			UpdatedAt: base.Add(2 * time.Hour),
			Topic:     "t",
		},
	}

	snapshot := computeSnapshot(1, attempts, 60.0)

	assert.Equal(t, 2, snapshot.TotalAttempts)
	assert.Equal(t, 1, snapshot.CompletedAttempts)
	assert.InDelta(t, 100.0, snapshot.AverageScore, 0.001)
	// Timeout scores still feed the trend series
	assert.Equal(t, models.TrendDeclining, snapshot.Trend)
}

func TestScoreTrend_Directions(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		wantTrend models.Trend
		wantSign  int
	}{
		{"insufficient with none", nil, models.TrendInsufficientData, 0},
		{"insufficient with one", []float64{50}, models.TrendInsufficientData, 0},
		{"improving", []float64{40, 50, 60, 70}, models.TrendImproving, 1},
		{"declining", []float64{70, 60, 50, 40}, models.TrendDeclining, -1},
		{"stable", []float64{60, 60, 60}, models.TrendStable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slope, trend := scoreTrend(tt.scores)
			assert.Equal(t, tt.wantTrend, trend)
			switch {
			case tt.wantSign > 0:
				assert.Greater(t, slope, 0.0)
			case tt.wantSign < 0:
				assert.Less(t, slope, 0.0)
			default:
				assert.Equal(t, 0.0, slope)
			}
		})
	}
}

func TestScoreTrend_ExactSlope(t *testing.T) {
	// Perfect line y = 10x + 40
	slope, trend := scoreTrend([]float64{40, 50, 60, 70})
	assert.InDelta(t, 10.0, slope, 0.0001)
	assert.Equal(t, models.TrendImproving, trend)
}
