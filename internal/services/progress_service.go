package services

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ProgressServiceInterface defines the interface for the progress analytics service
type ProgressServiceInterface interface {
	Analyze(ctx context.Context, learnerID int) (*models.ProgressSnapshot, error)
	GetStats(ctx context.Context, learnerID int) (*models.LearnerStats, error)
}

// scoredAttempt is the slice of an attempt row the analytics needs. The
// topic is empty when the quiz row is missing.
type scoredAttempt struct {
	Status         models.AttemptStatus
	Score          sql.NullFloat64
	StartedAt      time.Time
	UpdatedAt      time.Time
	ElapsedSeconds int
	Topic          string
}

// ProgressService aggregates a learner's attempt history into a snapshot
type ProgressService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewProgressServiceWithLogger creates a new ProgressService with a logger
func NewProgressServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ProgressService {
	return &ProgressService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Analyze computes the learner's progress snapshot from all their attempts.
// A learner with no attempts gets the canonical empty snapshot, never an error.
func (s *ProgressService) Analyze(ctx context.Context, learnerID int) (result0 *models.ProgressSnapshot, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "analyze",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	attempts, err := s.loadAttempts(ctx, learnerID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load attempts for analysis")
	}

	snapshot := computeSnapshot(learnerID, attempts, s.cfg.Engine.PassThreshold)
	span.SetAttributes(
		attribute.Int("progress.total_attempts", snapshot.TotalAttempts),
		attribute.Float64("progress.average_score", snapshot.AverageScore),
		attribute.String("progress.trend", string(snapshot.Trend)),
	)
	return snapshot, nil
}

// GetStats returns the learner-facing statistics summary
func (s *ProgressService) GetStats(ctx context.Context, learnerID int) (result0 *models.LearnerStats, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "get_stats",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	snapshot, err := s.Analyze(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	return &models.LearnerStats{
		LearnerID:         snapshot.LearnerID,
		TotalAttempts:     snapshot.TotalAttempts,
		CompletedAttempts: snapshot.CompletedAttempts,
		SuccessRate:       snapshot.SuccessRate,
		AverageScore:      snapshot.AverageScore,
		TotalTimeSeconds:  snapshot.TotalTimeSeconds,
		LastActive:        snapshot.LastActive,
		Trend:             snapshot.Trend,
		TrendSlope:        snapshot.TrendSlope,
	}, nil
}

// loadAttempts pulls every attempt for the learner joined with its quiz topic.
// Attempts whose quiz row is gone come back with an empty topic and are
// skipped by the topic aggregation only.
func (s *ProgressService) loadAttempts(ctx context.Context, learnerID int) ([]scoredAttempt, error) {
	query := `
		SELECT a.status, a.score, a.started_at, a.updated_at, a.elapsed_seconds,
		       COALESCE(q.topic, '')
		FROM attempts a
		LEFT JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.learner_id = $1
		ORDER BY a.started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close attempt rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var attempts []scoredAttempt
	for rows.Next() {
		var a scoredAttempt
		if err := rows.Scan(&a.Status, &a.Score, &a.StartedAt, &a.UpdatedAt, &a.ElapsedSeconds, &a.Topic); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// computeSnapshot derives the full snapshot from chronologically ordered attempts
func computeSnapshot(learnerID int, attempts []scoredAttempt, passThreshold float64) *models.ProgressSnapshot {
	snapshot := models.EmptySnapshot(learnerID)
	if len(attempts) == 0 {
		return snapshot
	}

	snapshot.TotalAttempts = len(attempts)

	var lastActive time.Time
	var completedScores []float64
	var chronologicalScores []float64
	topicSums := map[string]float64{}
	topicCounts := map[string]int{}

	for _, a := range attempts {
		snapshot.TotalTimeSeconds += a.ElapsedSeconds
		if a.UpdatedAt.After(lastActive) {
			lastActive = a.UpdatedAt
		}
		if a.Score.Valid {
			chronologicalScores = append(chronologicalScores, a.Score.Float64)
		}
		if a.Status != models.AttemptCompleted {
			continue
		}
		snapshot.CompletedAttempts++
		if a.Score.Valid {
			completedScores = append(completedScores, a.Score.Float64)
			if a.Topic != "" {
				topicSums[a.Topic] += a.Score.Float64
				topicCounts[a.Topic]++
			}
		}
	}

	if !lastActive.IsZero() {
		snapshot.LastActive = &lastActive
	}

	if len(completedScores) > 0 {
		var sum float64
		passed := 0
		for _, score := range completedScores {
			sum += score
			if score >= passThreshold {
				passed++
			}
		}
		snapshot.AverageScore = sum / float64(len(completedScores))
		snapshot.SuccessRate = float64(passed) / float64(len(completedScores)) * 100
	}

	for topic, count := range topicCounts {
		avg := topicSums[topic] / float64(count)
		snapshot.TopicAverages[topic] = avg
		switch {
		case avg >= config.StrongTopicThreshold:
			snapshot.StrongTopics = append(snapshot.StrongTopics, topic)
		case avg < config.WeakTopicThreshold:
			snapshot.WeakTopics = append(snapshot.WeakTopics, topic)
		}
	}
	sort.Strings(snapshot.StrongTopics)
	sort.Strings(snapshot.WeakTopics)

	snapshot.TrendSlope, snapshot.Trend = scoreTrend(chronologicalScores)
	return snapshot
}

// scoreTrend fits an ordinary least-squares line of score against attempt
// index. Fewer than 2 scored attempts is insufficient data and reported
// distinctly from a flat slope.
func scoreTrend(scores []float64) (float64, models.Trend) {
	if len(scores) < 2 {
		return 0, models.TrendInsufficientData
	}

	n := float64(len(scores))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range scores {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, models.TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom

	switch {
	case slope > 0:
		return slope, models.TrendImproving
	case slope < 0:
		return slope, models.TrendDeclining
	default:
		return 0, models.TrendStable
	}
}
