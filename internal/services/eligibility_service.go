package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// EligibilityServiceInterface defines the interface for the eligibility gate
type EligibilityServiceInterface interface {
	CheckEligibility(ctx context.Context, learnerID, courseID int) (*models.EligibilityDecision, error)
}

// attemptWindow is the slice of an attempt row the gate inspects
type attemptWindow struct {
	Status      models.AttemptStatus
	StartedAt   time.Time
	CompletedAt sql.NullTime
}

// EligibilityService decides whether a learner may start a new attempt
type EligibilityService struct {
	db       *sql.DB
	cfg      *config.Config
	logger   *observability.Logger
	progress ProgressServiceInterface
	metrics  *observability.EngineMetrics
}

// SetMetrics attaches the engine counters. Safe to skip; recording on a
// nil receiver is a no-op.
func (s *EligibilityService) SetMetrics(m *observability.EngineMetrics) {
	s.metrics = m
}

// NewEligibilityServiceWithLogger creates a new EligibilityService with a logger
func NewEligibilityServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger, progress ProgressServiceInterface) *EligibilityService {
	return &EligibilityService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		progress: progress,
	}
}

// CheckEligibility applies the daily quota and cooldown rules for the pair.
// It is a pure read; callers must re-check immediately before creating an
// attempt.
func (s *EligibilityService) CheckEligibility(ctx context.Context, learnerID, courseID int) (result0 *models.EligibilityDecision, err error) {
	ctx, span := observability.TraceEligibilityFunction(ctx, "check_eligibility",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	attempts, err := s.loadRecentAttempts(ctx, learnerID, courseID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load attempts for eligibility check")
	}

	now := time.Now()
	decision := decideEligibility(now, s.cfg.Engine.Location(), attempts,
		s.cfg.Engine.MaxAttemptsPerDay,
		time.Duration(s.cfg.Engine.MinCooldownMinutes)*time.Minute,
	)

	// Analytics failure must never itself cause ineligibility
	snapshot, analysisErr := s.progress.Analyze(ctx, learnerID)
	if analysisErr != nil {
		s.logger.Warn(ctx, "Progress analysis failed during eligibility check, substituting empty snapshot", map[string]interface{}{
			"learner_id": learnerID,
			"error":      analysisErr.Error(),
		})
		snapshot = models.EmptySnapshot(learnerID)
	}
	decision.Snapshot = snapshot

	if !decision.Eligible {
		s.metrics.RecordEligibilityDenied(ctx, string(decision.Reason))
	}
	span.SetAttributes(
		attribute.Bool("eligibility.eligible", decision.Eligible),
		attribute.String("eligibility.reason", string(decision.Reason)),
		attribute.Int("eligibility.attempts_today", decision.AttemptsToday),
	)
	return decision, nil
}

// loadRecentAttempts pulls the attempts the gate needs: everything started
// since yesterday's local midnight plus the most recently completed attempt.
func (s *EligibilityService) loadRecentAttempts(ctx context.Context, learnerID, courseID int) ([]attemptWindow, error) {
	query := `
		SELECT status, started_at, completed_at
		FROM attempts
		WHERE learner_id = $1 AND course_id = $2
		ORDER BY started_at DESC
		LIMIT 50
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close eligibility rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var attempts []attemptWindow
	for rows.Next() {
		var a attemptWindow
		if err := rows.Scan(&a.Status, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// decideEligibility evaluates the gate rules over the given attempts.
// Rules, in order: open attempt, daily quota, cooldown since the most
// recently completed attempt.
func decideEligibility(now time.Time, loc *time.Location, attempts []attemptWindow, maxPerDay int, cooldown time.Duration) *models.EligibilityDecision {
	localNow := now.In(loc)
	midnight := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	nextMidnight := midnight.AddDate(0, 0, 1)

	attemptsToday := 0
	var lastCompleted time.Time
	hasOpen := false
	for _, a := range attempts {
		if !a.StartedAt.Before(midnight) && a.StartedAt.Before(nextMidnight) {
			attemptsToday++
		}
		if a.Status == models.AttemptInProgress {
			hasOpen = true
		}
		if a.CompletedAt.Valid && a.CompletedAt.Time.After(lastCompleted) {
			lastCompleted = a.CompletedAt.Time
		}
	}

	remaining := maxPerDay - attemptsToday
	if remaining < 0 {
		remaining = 0
	}

	if hasOpen {
		return &models.EligibilityDecision{
			Eligible:          false,
			Reason:            models.ReasonAttemptOpen,
			Message:           "an attempt is still in progress for this course",
			AttemptsToday:     attemptsToday,
			AttemptsRemaining: remaining,
		}
	}

	if attemptsToday >= maxPerDay {
		return &models.EligibilityDecision{
			Eligible:          false,
			Reason:            models.ReasonQuotaExceeded,
			Message:           fmt.Sprintf("daily attempt quota of %d reached", maxPerDay),
			AttemptsToday:     attemptsToday,
			AttemptsRemaining: 0,
			NextAvailableTime: &nextMidnight,
		}
	}

	if !lastCompleted.IsZero() && now.Sub(lastCompleted) < cooldown {
		nextAvailable := lastCompleted.Add(cooldown)
		return &models.EligibilityDecision{
			Eligible:          false,
			Reason:            models.ReasonCooldownActive,
			Message:           fmt.Sprintf("cooldown of %s since last completed attempt has not elapsed", cooldown),
			AttemptsToday:     attemptsToday,
			AttemptsRemaining: remaining,
			NextAvailableTime: &nextAvailable,
		}
	}

	decision := &models.EligibilityDecision{
		Eligible:          true,
		Reason:            models.ReasonEligible,
		Message:           "eligible to start a new attempt",
		AttemptsToday:     attemptsToday,
		AttemptsRemaining: remaining,
	}
	if remaining == 1 {
		decision.Warning = "last attempt available today"
	}
	return decision
}
