package services

import (
	"context"
	"database/sql"
	"encoding/json"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ProfileServiceInterface defines the interface for learner profiles
type ProfileServiceInterface interface {
	GetOrCreate(ctx context.Context, learnerID int) (*models.LearnerProfile, error)
	RecordWeakness(ctx context.Context, learnerID int, topic string) error
	RemoveWeakness(ctx context.Context, learnerID int, topic string) error
}

// ProfileService manages learner profiles, creating them lazily on first access
type ProfileService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewProfileServiceWithLogger creates a new ProfileService with a logger
func NewProfileServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ProfileService {
	return &ProfileService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// GetOrCreate returns the learner's profile, creating the default one if
// absent. The insert tolerates a concurrent create and rereads.
func (s *ProfileService) GetOrCreate(ctx context.Context, learnerID int) (result0 *models.LearnerProfile, err error) {
	ctx, span := observability.TraceProfileFunction(ctx, "get_or_create",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	insert := `
		INSERT INTO learner_profiles (learner_id, proficiency, interest_tags, weakness_tags)
		VALUES ($1, $2, '[]', '[]')
		ON CONFLICT (learner_id) DO NOTHING
	`
	if _, err = s.db.ExecContext(ctx, insert, learnerID, models.ProficiencyIntermediate); err != nil {
		return nil, contextutils.WrapError(err, "failed to upsert learner profile")
	}

	return s.getByLearnerID(ctx, learnerID)
}

func (s *ProfileService) getByLearnerID(ctx context.Context, learnerID int) (*models.LearnerProfile, error) {
	query := `
		SELECT id, learner_id, proficiency, interest_tags, weakness_tags, created_at, updated_at
		FROM learner_profiles
		WHERE learner_id = $1
	`

	var p models.LearnerProfile
	var interestJSON, weaknessJSON string
	err := s.db.QueryRowContext(ctx, query, learnerID).Scan(
		&p.ID, &p.LearnerID, &p.Proficiency, &interestJSON, &weaknessJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "learner profile not found for learner %d", learnerID)
		}
		return nil, contextutils.WrapError(err, "failed to load learner profile")
	}

	if err := json.Unmarshal([]byte(interestJSON), &p.InterestTags); err != nil {
		p.InterestTags = []string{}
	}
	if err := json.Unmarshal([]byte(weaknessJSON), &p.WeaknessTags); err != nil {
		p.WeaknessTags = []string{}
	}
	return &p, nil
}

// RecordWeakness adds a weak topic tag to the learner's profile if not present
func (s *ProfileService) RecordWeakness(ctx context.Context, learnerID int, topic string) (err error) {
	ctx, span := observability.TraceProfileFunction(ctx, "record_weakness",
		observability.AttributeLearnerID(learnerID),
		attribute.String("profile.topic", topic),
	)
	defer observability.FinishSpan(span, &err)

	profile, err := s.GetOrCreate(ctx, learnerID)
	if err != nil {
		return err
	}
	if profile.HasWeakness(topic) {
		return nil
	}

	return s.saveWeaknessTags(ctx, learnerID, append(profile.WeaknessTags, topic))
}

// RemoveWeakness drops a weak topic tag from the learner's profile
func (s *ProfileService) RemoveWeakness(ctx context.Context, learnerID int, topic string) (err error) {
	ctx, span := observability.TraceProfileFunction(ctx, "remove_weakness",
		observability.AttributeLearnerID(learnerID),
		attribute.String("profile.topic", topic),
	)
	defer observability.FinishSpan(span, &err)

	profile, err := s.GetOrCreate(ctx, learnerID)
	if err != nil {
		return err
	}
	if !profile.HasWeakness(topic) {
		return nil
	}

	tags := make([]string, 0, len(profile.WeaknessTags))
	for _, t := range profile.WeaknessTags {
		if t != topic {
			tags = append(tags, t)
		}
	}
	return s.saveWeaknessTags(ctx, learnerID, tags)
}

func (s *ProfileService) saveWeaknessTags(ctx context.Context, learnerID int, tags []string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal weakness tags")
	}

	query := `
		UPDATE learner_profiles
		SET weakness_tags = $1, updated_at = CURRENT_TIMESTAMP
		WHERE learner_id = $2
	`
	if _, err := s.db.ExecContext(ctx, query, string(data), learnerID); err != nil {
		return contextutils.WrapError(err, "failed to update weakness tags")
	}
	return nil
}
