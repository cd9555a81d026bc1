package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// GenerationServiceInterface defines the interface for the quiz generation pipeline
type GenerationServiceInterface interface {
	Generate(ctx context.Context, course *models.Course, fragments []models.CourseMaterial, profile *models.LearnerProfile, params models.GenerationParams) *models.QuizContent
}

// questionsSchema constrains the strict-JSON output we request from the
// text-generation service.
const questionsSchema = `{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text", "type"],
				"properties": {
					"text": {"type": "string", "minLength": 1},
					"type": {"type": "string", "enum": ["multiple_choice", "open_ended"]},
					"options": {"type": "array", "items": {"type": "string"}},
					"correct_option": {"type": "integer", "minimum": 0},
					"expected_answer": {"type": "string"},
					"topic": {"type": "string"}
				}
			}
		}
	}
}`

// genericFillerPrompts pad a quiz up to the minimum question count. They
// reference general course knowledge and are clearly distinguishable from
// content-derived questions.
var genericFillerPrompts = []string{
	"Summarize the most important concept you have learned in this course so far.",
	"Describe one topic from this course you would explain to a beginner, and how.",
	"What part of this course's material do you find most difficult, and why?",
	"Give a practical example of how the ideas in this course apply outside the classroom.",
	"List three key terms from this course and define each in your own words.",
}

// GenerationService builds quiz content through cascading fallback tiers.
// It never returns an error: every failure degrades to a more conservative
// tier, ending at generic filler.
type GenerationService struct {
	cfg     *config.Config
	logger  *observability.Logger
	textgen TextGenClient
	schema  *gojsonschema.Schema
	metrics *observability.EngineMetrics
}

// SetMetrics attaches the engine counters. Safe to skip; recording on a
// nil receiver is a no-op.
func (s *GenerationService) SetMetrics(m *observability.EngineMetrics) {
	s.metrics = m
}

// NewGenerationServiceWithLogger creates a new GenerationService with a logger
func NewGenerationServiceWithLogger(cfg *config.Config, logger *observability.Logger, textgen TextGenClient) *GenerationService {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(questionsSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a bug
		panic(contextutils.WrapError(err, "failed to compile question schema"))
	}
	return &GenerationService{
		cfg:     cfg,
		logger:  logger,
		textgen: textgen,
		schema:  schema,
	}
}

// Generate runs the tier cascade. Output always reaches the minimum
// question count with non-empty text on every question.
func (s *GenerationService) Generate(ctx context.Context, course *models.Course, fragments []models.CourseMaterial, profile *models.LearnerProfile, params models.GenerationParams) *models.QuizContent {
	ctx, span := observability.TraceGenerationFunction(ctx, "generate",
		observability.AttributeCourseID(course.ID),
		attribute.String("generation.strategy", string(params.Strategy)),
		attribute.String("generation.difficulty", string(params.Difficulty)),
		attribute.Int("generation.question_count", params.QuestionCount),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Generation.PipelineBudget)
	defer cancel()

	content := &models.QuizContent{
		CourseID:    course.ID,
		Topic:       course.Topic,
		Strategy:    params.Strategy,
		Difficulty:  params.Difficulty,
		GeneratedAt: time.Now(),
	}

	// Tiers run strictly sequentially; the first tier yielding usable
	// questions wins.
	questions := s.tierPrimary(ctx, course, fragments, profile, params)
	if len(questions) == 0 {
		questions = s.tierSimplified(ctx, course, params)
	}
	if len(questions) == 0 {
		questions = tierMaterialFallback(fragments, course.Topic)
	}
	questions = padWithFiller(questions, course.Topic, config.MinQuestionCount)

	content.Questions = questions
	s.metrics.RecordGenerationTier(ctx, string(questions[0].Source))
	span.SetAttributes(
		attribute.Int("generation.questions_produced", len(questions)),
		attribute.String("generation.tier", string(questions[0].Source)),
	)
	return content
}

// tierPrimary builds the full strategy-aware prompt and parses strict JSON
func (s *GenerationService) tierPrimary(ctx context.Context, course *models.Course, fragments []models.CourseMaterial, profile *models.LearnerProfile, params models.GenerationParams) []models.GeneratedQuestion {
	prompt := s.buildPrimaryPrompt(course, fragments, profile, params)
	return s.requestQuestions(ctx, prompt, models.SourceAIPrimary)
}

// tierSimplified retries with a general-purpose prompt, no per-strategy customization
func (s *GenerationService) tierSimplified(ctx context.Context, course *models.Course, params models.GenerationParams) []models.GeneratedQuestion {
	if ctx.Err() != nil {
		return nil
	}
	prompt := fmt.Sprintf(
		"Generate %d quiz questions about %q. Respond with JSON only, in the form "+
			`{"questions":[{"text":"...","type":"multiple_choice|open_ended","options":["..."],"correct_option":0,"expected_answer":"..."}]}`,
		params.QuestionCount, course.Topic)
	return s.requestQuestions(ctx, prompt, models.SourceAISimplified)
}

// requestQuestions calls the text-generation service and keeps only
// schema-valid questions with non-empty text. Any failure yields nil so the
// next tier runs.
func (s *GenerationService) requestQuestions(ctx context.Context, prompt string, source models.QuestionSource) []models.GeneratedQuestion {
	raw, err := s.textgen.Complete(ctx, prompt, CompletionOptions{
		MaxTokens:   s.cfg.Generation.MaxTokens,
		Temperature: s.cfg.Generation.Temperature,
		Timeout:     s.cfg.Generation.RequestTimeout,
	})
	if err != nil {
		s.logger.Warn(ctx, "Generation tier failed, falling through", map[string]interface{}{
			"tier":  string(source),
			"error": err.Error(),
		})
		return nil
	}

	questions, err := s.parseQuestions(raw)
	if err != nil {
		s.logger.Warn(ctx, "Generation tier returned unusable output, falling through", map[string]interface{}{
			"tier":  string(source),
			"error": err.Error(),
		})
		return nil
	}

	for i := range questions {
		questions[i].Source = source
	}
	return questions
}

// parseQuestions extracts the questions array from raw model output,
// validating against the schema and dropping empty-text questions.
func (s *GenerationService) parseQuestions(raw string) ([]models.GeneratedQuestion, error) {
	cleaned := stripCodeFences(raw)

	validation, err := s.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrGenerationInvalid, "generated output is not valid JSON")
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			details = append(details, e.String())
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrGenerationInvalid, "generated output failed schema validation: %s", strings.Join(details, "; "))
	}

	var parsed struct {
		Questions []models.GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrGenerationInvalid, "failed to unmarshal generated questions")
	}

	var usable []models.GeneratedQuestion
	for _, q := range parsed.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		if q.Type != models.MultipleChoice && q.Type != models.OpenEnded {
			q.Type = models.OpenEnded
		}
		if q.Type == models.MultipleChoice && (len(q.Options) < 2 || q.CorrectOption < 0 || q.CorrectOption >= len(q.Options)) {
			continue
		}
		usable = append(usable, q)
	}
	if len(usable) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrGenerationInvalid, "no usable questions in generated output")
	}
	return usable, nil
}

// tierMaterialFallback synthesizes open-ended questions from material titles,
// one per fragment up to the cap. Works fully offline.
func tierMaterialFallback(fragments []models.CourseMaterial, topic string) []models.GeneratedQuestion {
	var questions []models.GeneratedQuestion
	for _, f := range fragments {
		if len(questions) >= config.MaterialQuestionCap {
			break
		}
		title := strings.TrimSpace(f.Title)
		if title == "" {
			continue
		}
		questions = append(questions, models.GeneratedQuestion{
			Text:           fmt.Sprintf("Explain the contents of %q in your own words.", title),
			Type:           models.OpenEnded,
			ExpectedAnswer: firstWords(f.Content, 30),
			Topic:          topic,
			Source:         models.SourceMaterialFallback,
		})
	}
	return questions
}

// padWithFiller tops the question list up to the minimum count with fixed
// generic prompts.
func padWithFiller(questions []models.GeneratedQuestion, topic string, minCount int) []models.GeneratedQuestion {
	for i := 0; len(questions) < minCount; i++ {
		questions = append(questions, models.GeneratedQuestion{
			Text:   genericFillerPrompts[i%len(genericFillerPrompts)],
			Type:   models.OpenEnded,
			Topic:  topic,
			Source: models.SourceGenericFiller,
		})
	}
	return questions
}

// buildPrimaryPrompt embeds strategy, learner profile, and source fragments
func (s *GenerationService) buildPrimaryPrompt(course *models.Course, fragments []models.CourseMaterial, profile *models.LearnerProfile, params models.GenerationParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are generating a quiz for the course %q (topic: %s).\n", course.Title, course.Topic)
	fmt.Fprintf(&b, "Strategy: %s. Difficulty: %s. Generate exactly %d questions.\n", params.Strategy, params.Difficulty, params.QuestionCount)

	if profile != nil {
		fmt.Fprintf(&b, "The learner's proficiency level is %s.\n", profile.Proficiency)
		if len(profile.InterestTags) > 0 {
			fmt.Fprintf(&b, "Learner interests: %s.\n", strings.Join(profile.InterestTags, ", "))
		}
		if len(profile.WeaknessTags) > 0 {
			fmt.Fprintf(&b, "Learner weaknesses to address: %s.\n", strings.Join(profile.WeaknessTags, ", "))
		}
	}
	if len(params.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus the questions on these areas: %s.\n", strings.Join(params.FocusAreas, ", "))
	}
	if params.IncludeAdvanced {
		b.WriteString("Include advanced questions that go beyond the provided material.\n")
	}

	maxFragments := s.cfg.Generation.MaxFragments
	if len(fragments) > 0 {
		b.WriteString("\nCourse material excerpts:\n")
		for i, f := range fragments {
			if i >= maxFragments {
				break
			}
			fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Title, firstWords(f.Content, 200))
		}
	}

	b.WriteString("\nRespond with JSON only, no prose, in the form ")
	b.WriteString(`{"questions":[{"text":"...","type":"multiple_choice|open_ended","options":["..."],"correct_option":0,"expected_answer":"...","topic":"..."}]}.`)
	b.WriteString(" Multiple-choice questions need at least 2 options and a valid correct_option index; open-ended questions need an expected_answer.")
	return b.String()
}

// stripCodeFences removes a leading/trailing markdown code fence from model output
func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// firstWords truncates text to at most n whitespace-separated words
func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:n], " ")
}
