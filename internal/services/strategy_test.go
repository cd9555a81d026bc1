package services

import (
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSelectStrategy_NilSnapshotDefaultsToDiagnostic(t *testing.T) {
	strategy, params := SelectStrategy(nil, time.Now())

	assert.Equal(t, models.StrategyDiagnostic, strategy)
	assert.Equal(t, models.DifficultyMedium, params.Difficulty)
	assert.Equal(t, 5, params.QuestionCount)
}

func TestSelectStrategy_DecisionTable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-8 * 24 * time.Hour)

	tests := []struct {
		name          string
		snapshot      *models.ProgressSnapshot
		wantStrategy  models.Strategy
		wantDiff      models.Difficulty
		wantQuestions int
	}{
		{
			name:          "fewer than two completed attempts is diagnostic",
			snapshot:      &models.ProgressSnapshot{CompletedAttempts: 1, AverageScore: 95},
			wantStrategy:  models.StrategyDiagnostic,
			wantDiff:      models.DifficultyMedium,
			wantQuestions: 5,
		},
		{
			name:          "low average is remediation",
			snapshot:      &models.ProgressSnapshot{CompletedAttempts: 4, AverageScore: 45},
			wantStrategy:  models.StrategyRemediation,
			wantDiff:      models.DifficultyEasy,
			wantQuestions: 7,
		},
		{
			name:          "high average is challenge",
			snapshot:      &models.ProgressSnapshot{CompletedAttempts: 4, AverageScore: 90},
			wantStrategy:  models.StrategyChallenge,
			wantDiff:      models.DifficultyHard,
			wantQuestions: 10,
		},
		{
			name: "mid average with stale activity is reinforcement",
			snapshot: &models.ProgressSnapshot{
				CompletedAttempts: 4,
				AverageScore:      80,
				LastActive:        &stale,
			},
			wantStrategy:  models.StrategyReinforcement,
			wantDiff:      models.DifficultyMedium,
			wantQuestions: 8,
		},
		{
			name: "mid average with recent activity is standard",
			snapshot: &models.ProgressSnapshot{
				CompletedAttempts: 4,
				AverageScore:      80,
				LastActive:        &recent,
			},
			wantStrategy:  models.StrategyStandard,
			wantDiff:      models.DifficultyMedium,
			wantQuestions: 8,
		},
		{
			name:          "average exactly 50 is not remediation",
			snapshot:      &models.ProgressSnapshot{CompletedAttempts: 4, AverageScore: 50},
			wantStrategy:  models.StrategyStandard,
			wantDiff:      models.DifficultyMedium,
			wantQuestions: 8,
		},
		{
			name:          "average exactly 85 is not challenge",
			snapshot:      &models.ProgressSnapshot{CompletedAttempts: 4, AverageScore: 85},
			wantStrategy:  models.StrategyStandard,
			wantDiff:      models.DifficultyMedium,
			wantQuestions: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, params := SelectStrategy(tt.snapshot, now)
			assert.Equal(t, tt.wantStrategy, strategy)
			assert.Equal(t, tt.wantDiff, params.Difficulty)
			assert.Equal(t, tt.wantQuestions, params.QuestionCount)
		})
	}
}

func TestSelectStrategy_FocusAreasAndAdvancedFlag(t *testing.T) {
	weak := []string{"fractions", "ratios"}

	_, remediation := SelectStrategy(&models.ProgressSnapshot{
		CompletedAttempts: 4, AverageScore: 30, WeakTopics: weak,
	}, time.Now())
	assert.Equal(t, weak, remediation.FocusAreas)
	assert.False(t, remediation.IncludeAdvanced)

	_, diagnostic := SelectStrategy(&models.ProgressSnapshot{
		CompletedAttempts: 0, WeakTopics: weak,
	}, time.Now())
	assert.Equal(t, weak, diagnostic.FocusAreas)

	_, challenge := SelectStrategy(&models.ProgressSnapshot{
		CompletedAttempts: 4, AverageScore: 95,
	}, time.Now())
	assert.True(t, challenge.IncludeAdvanced)
	assert.Empty(t, challenge.FocusAreas)
}
