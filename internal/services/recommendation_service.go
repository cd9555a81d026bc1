package services

import (
	"context"
	"database/sql"
	"sort"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// RecommendationServiceInterface defines the interface for recommendations
type RecommendationServiceInterface interface {
	Create(ctx context.Context, rec *models.Recommendation) error
	RankPending(ctx context.Context, learnerID int) ([]models.Recommendation, error)
	Accept(ctx context.Context, recommendationID int) error
}

// RecommendationService stores and ranks study recommendations
type RecommendationService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewRecommendationServiceWithLogger creates a new RecommendationService with a logger
func NewRecommendationServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *RecommendationService {
	return &RecommendationService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Create persists a new recommendation
func (s *RecommendationService) Create(ctx context.Context, rec *models.Recommendation) (err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "create",
		observability.AttributeLearnerID(rec.LearnerID),
		attribute.String("recommendation.topic", rec.Topic),
		attribute.Float64("recommendation.confidence", rec.Confidence),
	)
	defer observability.FinishSpan(span, &err)

	if rec.Confidence < 0 || rec.Confidence > 1 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "confidence %f out of [0,1]", rec.Confidence)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO recommendations (learner_id, quiz_id, topic, reason, confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rec.LearnerID, rec.QuizID, rec.Topic, rec.Reason, rec.Confidence,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert recommendation")
	}
	return nil
}

// RankPending returns the learner's pending recommendations, most confident
// first, capped at the ranking limit
func (s *RecommendationService) RankPending(ctx context.Context, learnerID int) (result0 []models.Recommendation, err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "rank_pending",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, learner_id, quiz_id, topic, reason, confidence, accepted,
		       accepted_at, completed_at, created_at
		FROM recommendations
		WHERE learner_id = $1 AND accepted = FALSE
	`, learnerID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query pending recommendations")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close recommendation rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var pending []models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.ID, &r.LearnerID, &r.QuizID, &r.Topic, &r.Reason, &r.Confidence,
			&r.Accepted, &r.AcceptedAt, &r.CompletedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranked := rankRecommendations(pending, config.MaxRankedRecommendations)
	span.SetAttributes(attribute.Int("recommendation.ranked_count", len(ranked)))
	return ranked, nil
}

// Accept marks a recommendation as accepted
func (s *RecommendationService) Accept(ctx context.Context, recommendationID int) (err error) {
	ctx, span := observability.TraceRecommendationFunction(ctx, "accept",
		attribute.Int("recommendation.id", recommendationID),
	)
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendations
		SET accepted = TRUE, accepted_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND accepted = FALSE
	`, recommendationID)
	if err != nil {
		return contextutils.WrapError(err, "failed to accept recommendation")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read accept result")
	}
	if affected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "pending recommendation %d not found", recommendationID)
	}
	return nil
}

// rankRecommendations orders by confidence descending with recency as the
// tiebreak, then id descending so the order is a stable total order.
func rankRecommendations(recs []models.Recommendation, limit int) []models.Recommendation {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
