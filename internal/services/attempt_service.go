package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// AttemptServiceInterface defines the interface for the attempt lifecycle
type AttemptServiceInterface interface {
	InitiateAttempt(ctx context.Context, learnerID, courseID int) (*models.InitiatedAttempt, error)
	SubmitAttempt(ctx context.Context, attemptID int, submission *models.Submission) (*models.AttemptResult, error)
	GetAttempt(ctx context.Context, attemptID int) (*models.Attempt, error)
}

// AttemptService creates, finalizes, and scores attempts
type AttemptService struct {
	db              *sql.DB
	cfg             *config.Config
	logger          *observability.Logger
	eligibility     EligibilityServiceInterface
	progress        ProgressServiceInterface
	generation      GenerationServiceInterface
	material        MaterialServiceInterface
	profile         ProfileServiceInterface
	recommendations RecommendationServiceInterface
	scorer          Scorer
	metrics         *observability.EngineMetrics
}

// SetMetrics attaches the engine counters. Safe to skip; recording on a
// nil receiver is a no-op.
func (s *AttemptService) SetMetrics(m *observability.EngineMetrics) {
	s.metrics = m
}

// NewAttemptServiceWithLogger creates a new AttemptService with a logger
func NewAttemptServiceWithLogger(
	db *sql.DB,
	cfg *config.Config,
	logger *observability.Logger,
	eligibility EligibilityServiceInterface,
	progress ProgressServiceInterface,
	generation GenerationServiceInterface,
	material MaterialServiceInterface,
	profile ProfileServiceInterface,
	recommendations RecommendationServiceInterface,
	scorer Scorer,
) *AttemptService {
	return &AttemptService{
		db:              db,
		cfg:             cfg,
		logger:          logger,
		eligibility:     eligibility,
		progress:        progress,
		generation:      generation,
		material:        material,
		profile:         profile,
		recommendations: recommendations,
		scorer:          scorer,
	}
}

// InitiateAttempt starts a new attempt: re-checks eligibility, verifies the
// course has material, runs the generation pipeline, and persists an
// IN_PROGRESS attempt with a deadline.
func (s *AttemptService) InitiateAttempt(ctx context.Context, learnerID, courseID int) (result0 *models.InitiatedAttempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "initiate_attempt",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	// Defensive re-check; the gate itself is advisory under concurrent starts
	decision, err := s.eligibility.CheckEligibility(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		span.SetAttributes(attribute.String("eligibility.reason", string(decision.Reason)))
		switch decision.Reason {
		case models.ReasonQuotaExceeded:
			return nil, contextutils.WrapErrorf(contextutils.ErrQuotaExceeded, "learner %d: %s", learnerID, decision.Message)
		case models.ReasonCooldownActive:
			return nil, contextutils.WrapErrorf(contextutils.ErrCooldownActive, "learner %d: %s", learnerID, decision.Message)
		default:
			return nil, contextutils.WrapErrorf(contextutils.ErrRateLimit, "learner %d: %s", learnerID, decision.Message)
		}
	}

	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	// Fail fast before any generation call when the course has no material
	materialCount, err := s.material.CountMaterials(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if materialCount == 0 {
		return nil, contextutils.WrapErrorf(contextutils.ErrNoCourseMaterial, "course %d has no source material", courseID)
	}

	quiz, err := s.getOrCreateQuiz(ctx, course)
	if err != nil {
		return nil, err
	}

	profile, err := s.profile.GetOrCreate(ctx, learnerID)
	if err != nil {
		// Profile problems must not block the attempt; generate without one
		s.logger.Warn(ctx, "Failed to load learner profile, generating without it", map[string]interface{}{
			"learner_id": learnerID,
			"error":      err.Error(),
		})
		profile = nil
	}

	_, params := SelectStrategy(decision.Snapshot, time.Now())

	fragments, err := s.material.FetchRelevantFragments(ctx, courseID, course.Topic, s.cfg.Generation.MaxFragments)
	if err != nil {
		s.logger.Warn(ctx, "Failed to fetch material fragments, pipeline will degrade", map[string]interface{}{
			"course_id": courseID,
			"error":     err.Error(),
		})
		fragments = nil
	}

	content := s.generation.Generate(ctx, course, fragments, profile, params)
	contentJSON, err := content.MarshalToJSON()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to serialize quiz content")
	}

	attempt, err := s.createAttempt(ctx, learnerID, courseID, quiz.ID, contentJSON)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAttemptStarted(ctx)
	span.SetAttributes(
		observability.AttributeAttemptID(attempt.ID),
		attribute.Int("attempt.number", attempt.AttemptNumber),
		attribute.String("generation.strategy", string(params.Strategy)),
	)
	return &models.InitiatedAttempt{
		Attempt:  attempt,
		Quiz:     content,
		Deadline: attempt.Deadline(),
	}, nil
}

// createAttempt assigns the next sequence number and inserts the attempt in
// one transaction. The row lock plus the unique index on
// (learner_id, course_id, attempt_number) keeps numbers gap-free under
// concurrent starts.
func (s *AttemptService) createAttempt(ctx context.Context, learnerID, courseID, quizID int, contentJSON string) (result0 *models.Attempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "create_attempt",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin attempt transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Warn(ctx, "Failed to roll back attempt transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	var nextNumber int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(attempt_number), 0) + 1
		FROM (
			SELECT attempt_number FROM attempts
			WHERE learner_id = $1 AND course_id = $2
			FOR UPDATE
		) locked
	`, learnerID, courseID).Scan(&nextNumber)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to compute next attempt number")
	}

	attempt := &models.Attempt{
		LearnerID:        learnerID,
		CourseID:         courseID,
		QuizID:           quizID,
		AttemptNumber:    nextNumber,
		Status:           models.AttemptInProgress,
		TimeLimitMinutes: s.cfg.Engine.TimeLimitMinutes,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO attempts (learner_id, course_id, quiz_id, attempt_number, status, time_limit_minutes, quiz_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, started_at, updated_at
	`, learnerID, courseID, quizID, nextNumber, models.AttemptInProgress, attempt.TimeLimitMinutes, contentJSON,
	).Scan(&attempt.ID, &attempt.StartedAt, &attempt.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert attempt")
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit attempt transaction")
	}
	return attempt, nil
}

// SubmitAttempt finalizes an attempt exactly once. A missing attempt is a
// terminal error; everything downstream of scoring degrades to best effort
// so the learner's score is always recorded.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID int, submission *models.Submission) (result0 *models.AttemptResult, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "submit_attempt",
		observability.AttributeAttemptID(attemptID),
	)
	defer observability.FinishSpan(span, &err)

	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, contextutils.WrapErrorf(contextutils.ErrAttemptAlreadyFinalized, "attempt %d is already %s", attemptID, attempt.Status)
	}

	now := time.Now()
	elapsed := now.Sub(attempt.StartedAt)
	status := models.AttemptCompleted
	var score float64
	if elapsed > time.Duration(attempt.TimeLimitMinutes)*time.Minute {
		status = models.AttemptTimeout
	} else if attempt.QuizContent.Valid {
		content, parseErr := models.UnmarshalQuizContent(attempt.QuizContent.String)
		if parseErr != nil {
			s.logger.Error(ctx, "Failed to parse stored quiz content, scoring zero", parseErr, map[string]interface{}{
				"attempt_id": attemptID,
			})
		} else {
			score = s.scorer.Score(content, submission)
		}
	}

	if err = s.finalizeAttempt(ctx, attempt, status, score, submission, now); err != nil {
		return nil, err
	}
	s.metrics.RecordAttemptSubmitted(ctx, string(status))

	result := &models.AttemptResult{
		Attempt:             attempt,
		Score:               score,
		Grade:               gradeForScore(score),
		Recommendation:      studyRecommendationForScore(score),
		CertificateEligible: score >= config.CertificateScoreThreshold && attempt.AttemptNumber == 1,
		Feedback:            feedbackForScore(score, status),
	}

	// Best-effort follow-ups: failures are logged, never surfaced
	s.updateProfileAfterSubmission(ctx, attempt, score)
	s.recordRecommendationAfterSubmission(ctx, attempt, score)

	nextDecision, eligErr := s.eligibility.CheckEligibility(ctx, attempt.LearnerID, attempt.CourseID)
	if eligErr != nil {
		s.logger.Warn(ctx, "Failed to re-check eligibility after submission", map[string]interface{}{
			"learner_id": attempt.LearnerID,
			"error":      eligErr.Error(),
		})
	} else {
		result.NextEligibility = nextDecision
	}

	span.SetAttributes(
		attribute.String("attempt.final_status", string(status)),
		attribute.Float64("attempt.score", score),
	)
	return result, nil
}

// finalizeAttempt performs the single allowed state transition with a
// compare-and-swap on status. Zero rows affected means another submission
// won the race.
func (s *AttemptService) finalizeAttempt(ctx context.Context, attempt *models.Attempt, status models.AttemptStatus, score float64, submission *models.Submission, now time.Time) error {
	var answersJSON sql.NullString
	if submission != nil {
		if data, err := marshalSubmission(submission); err == nil {
			answersJSON = sql.NullString{String: data, Valid: true}
		}
	}

	elapsedSeconds := int(now.Sub(attempt.StartedAt).Seconds())
	res, err := s.db.ExecContext(ctx, `
		UPDATE attempts
		SET status = $1, completed_at = $2, elapsed_seconds = $3, score = $4,
		    answers_payload = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND status = $7
	`, status, now, elapsedSeconds, score, answersJSON, attempt.ID, models.AttemptInProgress)
	if err != nil {
		return contextutils.WrapError(err, "failed to finalize attempt")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read finalize result")
	}
	if affected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrConflict, "attempt %d was finalized concurrently", attempt.ID)
	}

	attempt.Status = status
	attempt.CompletedAt = sql.NullTime{Time: now, Valid: true}
	attempt.ElapsedSeconds = elapsedSeconds
	attempt.Score = sql.NullFloat64{Float64: score, Valid: true}
	attempt.UpdatedAt = now
	return nil
}

// updateProfileAfterSubmission reinforces or clears the quiz topic as a
// weakness based on the score. Best effort.
func (s *AttemptService) updateProfileAfterSubmission(ctx context.Context, attempt *models.Attempt, score float64) {
	topic, err := s.getQuizTopic(ctx, attempt.QuizID)
	if err != nil || topic == "" {
		if err != nil {
			s.logger.Warn(ctx, "Failed to resolve quiz topic for profile update", map[string]interface{}{
				"attempt_id": attempt.ID,
				"error":      err.Error(),
			})
		}
		return
	}

	if score < s.cfg.Engine.PassThreshold {
		err = s.profile.RecordWeakness(ctx, attempt.LearnerID, topic)
	} else if score >= config.StrongTopicThreshold {
		err = s.profile.RemoveWeakness(ctx, attempt.LearnerID, topic)
	}
	if err != nil {
		s.logger.Warn(ctx, "Failed to update learner profile after submission", map[string]interface{}{
			"learner_id": attempt.LearnerID,
			"error":      err.Error(),
		})
	}
}

// recordRecommendationAfterSubmission files a study recommendation when the
// learner failed the quiz. Best effort.
func (s *AttemptService) recordRecommendationAfterSubmission(ctx context.Context, attempt *models.Attempt, score float64) {
	if score >= s.cfg.Engine.PassThreshold {
		return
	}
	topic, err := s.getQuizTopic(ctx, attempt.QuizID)
	if err != nil || topic == "" {
		return
	}

	confidence := 0.9 - score/200 // lower scores produce higher confidence
	rec := &models.Recommendation{
		LearnerID:  attempt.LearnerID,
		QuizID:     sql.NullInt64{Int64: int64(attempt.QuizID), Valid: true},
		Topic:      topic,
		Reason:     fmt.Sprintf("scored %.0f on %s, below the pass threshold", score, topic),
		Confidence: confidence,
	}
	if err := s.recommendations.Create(ctx, rec); err != nil {
		s.logger.Warn(ctx, "Failed to record recommendation after submission", map[string]interface{}{
			"learner_id": attempt.LearnerID,
			"error":      err.Error(),
		})
	}
}

// GetAttempt loads one attempt by id
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID int) (result0 *models.Attempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "get_attempt",
		observability.AttributeAttemptID(attemptID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, course_id, quiz_id, attempt_number, status, started_at,
		       completed_at, time_limit_minutes, elapsed_seconds, score, answers_payload,
		       quiz_content, updated_at
		FROM attempts
		WHERE id = $1
	`

	var a models.Attempt
	err = s.db.QueryRowContext(ctx, query, attemptID).Scan(
		&a.ID, &a.LearnerID, &a.CourseID, &a.QuizID, &a.AttemptNumber, &a.Status, &a.StartedAt,
		&a.CompletedAt, &a.TimeLimitMinutes, &a.ElapsedSeconds, &a.Score, &a.AnswersPayload,
		&a.QuizContent, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.WrapErrorf(contextutils.ErrAttemptNotFound, "attempt %d not found", attemptID)
		}
		return nil, contextutils.WrapError(err, "failed to load attempt")
	}
	return &a, nil
}

func (s *AttemptService) getCourse(ctx context.Context, courseID int) (*models.Course, error) {
	var c models.Course
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, topic, description, created_at, updated_at
		FROM courses WHERE id = $1
	`, courseID).Scan(&c.ID, &c.Title, &c.Topic, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "course %d not found", courseID)
		}
		return nil, contextutils.WrapError(err, "failed to load course")
	}
	return &c, nil
}

// getOrCreateQuiz resolves the course's quiz shell, creating it lazily.
// The unique constraint on course_id makes concurrent creates converge.
func (s *AttemptService) getOrCreateQuiz(ctx context.Context, course *models.Course) (*models.Quiz, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (course_id, topic, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id) DO NOTHING
	`, course.ID, course.Topic, course.Title+" Quiz")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to upsert quiz shell")
	}

	var q models.Quiz
	err = s.db.QueryRowContext(ctx, `
		SELECT id, course_id, topic, title, created_at, updated_at
		FROM quizzes WHERE course_id = $1
	`, course.ID).Scan(&q.ID, &q.CourseID, &q.Topic, &q.Title, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load quiz shell")
	}
	return &q, nil
}

func (s *AttemptService) getQuizTopic(ctx context.Context, quizID int) (string, error) {
	var topic string
	err := s.db.QueryRowContext(ctx, `SELECT topic FROM quizzes WHERE id = $1`, quizID).Scan(&topic)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return topic, nil
}

// feedbackForScore builds the qualitative feedback line
func feedbackForScore(score float64, status models.AttemptStatus) string {
	if status == models.AttemptTimeout {
		return "Time expired before submission; the attempt was scored as is."
	}
	switch {
	case score >= 90:
		return "Excellent work. You have a strong command of this material."
	case score >= 80:
		return "Good result. A little more practice will make this solid."
	case score >= 60:
		return "You passed, but several areas need review."
	default:
		return "This topic needs more study before the next attempt."
	}
}

func marshalSubmission(submission *models.Submission) (string, error) {
	data, err := json.Marshal(submission)
	return string(data), err
}
