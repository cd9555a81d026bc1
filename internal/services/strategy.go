package services

import (
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
)

// SelectStrategy maps a progress snapshot to a pedagogical strategy and its
// generation parameters. The decision table is evaluated in order; first
// match wins. A nil snapshot defaults to DIAGNOSTIC.
func SelectStrategy(snapshot *models.ProgressSnapshot, now time.Time) (models.Strategy, models.GenerationParams) {
	if snapshot == nil {
		return models.StrategyDiagnostic, models.GenerationParams{
			Strategy:      models.StrategyDiagnostic,
			Difficulty:    models.DifficultyMedium,
			QuestionCount: 5,
		}
	}

	switch {
	case snapshot.CompletedAttempts < 2:
		return models.StrategyDiagnostic, models.GenerationParams{
			Strategy:      models.StrategyDiagnostic,
			Difficulty:    models.DifficultyMedium,
			QuestionCount: 5,
			FocusAreas:    snapshot.WeakTopics,
		}
	case snapshot.AverageScore < 50.0:
		return models.StrategyRemediation, models.GenerationParams{
			Strategy:      models.StrategyRemediation,
			Difficulty:    models.DifficultyEasy,
			QuestionCount: 7,
			FocusAreas:    snapshot.WeakTopics,
		}
	case snapshot.AverageScore > 85.0:
		return models.StrategyChallenge, models.GenerationParams{
			Strategy:        models.StrategyChallenge,
			Difficulty:      models.DifficultyHard,
			QuestionCount:   10,
			IncludeAdvanced: true,
		}
	case snapshot.AverageScore > 70.0 && snapshot.AverageScore <= 85.0 && inactiveSince(snapshot.LastActive, now):
		return models.StrategyReinforcement, models.GenerationParams{
			Strategy:      models.StrategyReinforcement,
			Difficulty:    models.DifficultyMedium,
			QuestionCount: 8,
		}
	default:
		return models.StrategyStandard, models.GenerationParams{
			Strategy:      models.StrategyStandard,
			Difficulty:    models.DifficultyMedium,
			QuestionCount: 8,
		}
	}
}

func inactiveSince(lastActive *time.Time, now time.Time) bool {
	if lastActive == nil {
		return false
	}
	return now.Sub(*lastActive) > config.InactivityWindow
}
