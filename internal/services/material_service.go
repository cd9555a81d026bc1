package services

import (
	"context"
	"database/sql"
	"strings"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// MaterialServiceInterface defines the interface for course material retrieval
type MaterialServiceInterface interface {
	FetchRelevantFragments(ctx context.Context, courseID int, topic string, limit int) ([]models.CourseMaterial, error)
	CountMaterials(ctx context.Context, courseID int) (int, error)
}

// MaterialService retrieves course material fragments. Relevance is naive
// keyword ordering; vector search quality is out of scope.
type MaterialService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewMaterialServiceWithLogger creates a new MaterialService with a logger
func NewMaterialServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *MaterialService {
	return &MaterialService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// FetchRelevantFragments returns material fragments for the course ordered by
// crude topic relevance, capped at limit. May return an empty slice.
func (s *MaterialService) FetchRelevantFragments(ctx context.Context, courseID int, topic string, limit int) (result0 []models.CourseMaterial, err error) {
	ctx, span := observability.TraceMaterialFunction(ctx, "fetch_relevant_fragments",
		observability.AttributeCourseID(courseID),
		attribute.String("material.topic", topic),
		attribute.Int("material.limit", limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 {
		limit = config.MaterialQuestionCap
	}

	// Rank fragments whose title or content mentions the topic term first,
	// then fall back to insertion order.
	query := `
		SELECT id, course_id, title, content, created_at
		FROM course_materials
		WHERE course_id = $1
		ORDER BY
			CASE WHEN LOWER(title) LIKE $2 OR LOWER(content) LIKE $2 THEN 0 ELSE 1 END,
			id ASC
		LIMIT $3
	`
	pattern := "%" + strings.ToLower(strings.TrimSpace(topic)) + "%"

	rows, err := s.db.QueryContext(ctx, query, courseID, pattern, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query course materials")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close material rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var fragments []models.CourseMaterial
	for rows.Next() {
		var m models.CourseMaterial
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		fragments = append(fragments, m)
	}
	span.SetAttributes(attribute.Int("material.fragments_found", len(fragments)))
	return fragments, rows.Err()
}

// CountMaterials returns the number of material fragments a course has
func (s *MaterialService) CountMaterials(ctx context.Context, courseID int) (result0 int, err error) {
	ctx, span := observability.TraceMaterialFunction(ctx, "count_materials",
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM course_materials WHERE course_id = $1`, courseID).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count course materials")
	}
	span.SetAttributes(attribute.Int("material.count", count))
	return count, nil
}
