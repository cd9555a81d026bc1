package services

import (
	"database/sql"
	"testing"
	"time"

	"quizforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedAt(startedAt, finishedAt time.Time) attemptWindow {
	return attemptWindow{
		Status:      models.AttemptCompleted,
		StartedAt:   startedAt,
		CompletedAt: sql.NullTime{Time: finishedAt, Valid: true},
	}
}

func TestDecideEligibility_QuotaExceeded(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 11, 30, 0, 0, loc)
	day := func(h int) time.Time { return time.Date(2026, 3, 10, h, 0, 0, 0, loc) }

	attempts := []attemptWindow{
		completedAt(day(9), day(9).Add(20*time.Minute)),
		completedAt(day(10), day(10).Add(20*time.Minute)),
		completedAt(day(11), day(11).Add(15*time.Minute)),
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.False(t, decision.Eligible)
	assert.Equal(t, models.ReasonQuotaExceeded, decision.Reason)
	assert.Equal(t, 3, decision.AttemptsToday)
	assert.Equal(t, 0, decision.AttemptsRemaining)
	require.NotNil(t, decision.NextAvailableTime)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, loc), *decision.NextAvailableTime)
}

func TestDecideEligibility_CooldownActive(t *testing.T) {
	loc := time.UTC
	lastCompleted := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	now := lastCompleted.Add(10 * time.Minute)

	attempts := []attemptWindow{
		completedAt(lastCompleted.Add(-20*time.Minute), lastCompleted),
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.False(t, decision.Eligible)
	assert.Equal(t, models.ReasonCooldownActive, decision.Reason)
	require.NotNil(t, decision.NextAvailableTime)
	assert.Equal(t, lastCompleted.Add(30*time.Minute), *decision.NextAvailableTime)
}

func TestDecideEligibility_EligibleAfterCooldown(t *testing.T) {
	loc := time.UTC
	lastCompleted := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)
	now := lastCompleted.Add(31 * time.Minute)

	attempts := []attemptWindow{
		completedAt(lastCompleted.Add(-20*time.Minute), lastCompleted),
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.True(t, decision.Eligible)
	assert.Equal(t, models.ReasonEligible, decision.Reason)
	assert.Equal(t, 1, decision.AttemptsToday)
	assert.Equal(t, 2, decision.AttemptsRemaining)
	assert.Empty(t, decision.Warning)
}

func TestDecideEligibility_LastAttemptWarning(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)
	day := func(h int) time.Time { return time.Date(2026, 3, 10, h, 0, 0, 0, loc) }

	attempts := []attemptWindow{
		completedAt(day(9), day(9).Add(20*time.Minute)),
		completedAt(day(11), day(11).Add(20*time.Minute)),
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.True(t, decision.Eligible)
	assert.Equal(t, 1, decision.AttemptsRemaining)
	assert.Equal(t, "last attempt available today", decision.Warning)
}

func TestDecideEligibility_OpenAttemptBlocks(t *testing.T) {
	loc := time.UTC
	now := time.Now()

	attempts := []attemptWindow{
		{Status: models.AttemptInProgress, StartedAt: now.Add(-5 * time.Minute)},
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.False(t, decision.Eligible)
	assert.Equal(t, models.ReasonAttemptOpen, decision.Reason)
}

func TestDecideEligibility_YesterdayAttemptsDoNotCount(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	yesterday := now.AddDate(0, 0, -1)

	attempts := []attemptWindow{
		completedAt(yesterday, yesterday.Add(20*time.Minute)),
		completedAt(yesterday.Add(time.Hour), yesterday.Add(80*time.Minute)),
		completedAt(yesterday.Add(2*time.Hour), yesterday.Add(140*time.Minute)),
	}

	decision := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.True(t, decision.Eligible)
	assert.Equal(t, 0, decision.AttemptsToday)
	assert.Equal(t, 3, decision.AttemptsRemaining)
}

func TestDecideEligibility_Idempotent(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
	attempts := []attemptWindow{
		completedAt(now.Add(-3*time.Hour), now.Add(-2*time.Hour)),
	}

	first := decideEligibility(now, loc, attempts, 3, 30*time.Minute)
	second := decideEligibility(now, loc, attempts, 3, 30*time.Minute)

	assert.Equal(t, first, second)
}

func TestDecideEligibility_NoAttempts(t *testing.T) {
	decision := decideEligibility(time.Now(), time.UTC, nil, 3, 30*time.Minute)

	assert.True(t, decision.Eligible)
	assert.Equal(t, 0, decision.AttemptsToday)
	assert.Equal(t, 3, decision.AttemptsRemaining)
	assert.Nil(t, decision.NextAvailableTime)
}
