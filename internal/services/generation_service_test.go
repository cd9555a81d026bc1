package services

import (
	"context"
	"testing"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// fakeTextGen returns canned responses or errors per call
type fakeTextGen struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeTextGen) Complete(_ context.Context, prompt string, _ CompletionOptions) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", contextutils.ErrGenerationUnavailable
}

func testGenerationService(t *testing.T, textgen TextGenClient) *GenerationService {
	t.Helper()
	cfg := config.NewDefaultConfig()
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewGenerationServiceWithLogger(cfg, logger, textgen)
}

func testCourse() *models.Course {
	return &models.Course{ID: 7, Title: "Linear Algebra", Topic: "linear algebra"}
}

const validQuestionsJSON = `{
	"questions": [
		{"text": "What is a vector space?", "type": "open_ended", "expected_answer": "a set closed under addition and scalar multiplication"},
		{"text": "Which matrix is the identity?", "type": "multiple_choice", "options": ["[[1,0],[0,1]]", "[[0,1],[1,0]]"], "correct_option": 0},
		{"text": "Define linear independence.", "type": "open_ended", "expected_answer": "no vector is a combination of the others"},
		{"text": "What is a determinant?", "type": "open_ended", "expected_answer": "a scalar invariant of a square matrix"},
		{"text": "What is an eigenvalue?", "type": "open_ended", "expected_answer": "a scalar lambda with Av = lambda v"}
	]
}`

func TestGenerate_PrimaryTierSuccess(t *testing.T) {
	fake := &fakeTextGen{responses: []string{validQuestionsJSON}}
	svc := testGenerationService(t, fake)

	content := svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyStandard,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 5,
	})

	require.Len(t, content.Questions, 5)
	assert.Equal(t, 1, fake.calls)
	for _, q := range content.Questions {
		assert.NotEmpty(t, q.Text)
		assert.Equal(t, models.SourceAIPrimary, q.Source)
	}
}

func TestGenerate_SimplifiedTierAfterPrimaryFailure(t *testing.T) {
	fake := &fakeTextGen{
		errs:      []error{contextutils.ErrGenerationUnavailable, nil},
		responses: []string{"", validQuestionsJSON},
	}
	svc := testGenerationService(t, fake)

	content := svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyStandard,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 5,
	})

	require.Len(t, content.Questions, 5)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, models.SourceAISimplified, content.Questions[0].Source)
}

func TestGenerate_MaterialFallbackPlusFiller(t *testing.T) {
	// Dead service, 3 material fragments: 3 content-derived plus 2 filler
	fake := &fakeTextGen{errs: []error{contextutils.ErrGenerationUnavailable, contextutils.ErrGenerationUnavailable}}
	svc := testGenerationService(t, fake)

	fragments := []models.CourseMaterial{
		{ID: 1, CourseID: 7, Title: "Chapter 1: Vectors", Content: "vectors and spaces"},
		{ID: 2, CourseID: 7, Title: "Chapter 2: Matrices", Content: "matrix operations"},
		{ID: 3, CourseID: 7, Title: "Chapter 3: Eigenvalues", Content: "spectral theory"},
	}

	content := svc.Generate(context.Background(), testCourse(), fragments, nil, models.GenerationParams{
		Strategy:      models.StrategyStandard,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 8,
	})

	require.Len(t, content.Questions, 5)
	materialCount, fillerCount := 0, 0
	for _, q := range content.Questions {
		switch q.Source {
		case models.SourceMaterialFallback:
			materialCount++
			assert.Contains(t, q.Text, "Chapter")
		case models.SourceGenericFiller:
			fillerCount++
		}
		assert.NotEmpty(t, q.Text)
	}
	assert.Equal(t, 3, materialCount)
	assert.Equal(t, 2, fillerCount)
}

func TestGenerate_NoMaterialNoService_StillFiveQuestions(t *testing.T) {
	fake := &fakeTextGen{errs: []error{contextutils.ErrGenerationUnavailable, contextutils.ErrGenerationUnavailable}}
	svc := testGenerationService(t, fake)

	content := svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyDiagnostic,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 5,
	})

	require.Len(t, content.Questions, 5)
	for _, q := range content.Questions {
		assert.NotEmpty(t, q.Text)
		assert.Equal(t, models.SourceGenericFiller, q.Source)
	}
}

func TestGenerate_InvalidJSONFallsThrough(t *testing.T) {
	fake := &fakeTextGen{responses: []string{"not json at all", `{"questions": []}`}}
	svc := testGenerationService(t, fake)

	content := svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyStandard,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 5,
	})

	assert.Equal(t, 2, fake.calls)
	require.Len(t, content.Questions, 5)
	assert.Equal(t, models.SourceGenericFiller, content.Questions[0].Source)
}

func TestParseQuestions_CodeFencesAndFiltering(t *testing.T) {
	svc := testGenerationService(t, &fakeTextGen{})

	raw := "```json\n" + `{
		"questions": [
			{"text": "Good question?", "type": "open_ended", "expected_answer": "yes"},
			{"text": "   ", "type": "open_ended"},
			{"text": "Bad choice question", "type": "multiple_choice", "options": ["only one"], "correct_option": 0},
			{"text": "Out of range", "type": "multiple_choice", "options": ["a", "b"], "correct_option": 5}
		]
	}` + "\n```"

	questions, err := svc.parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Good question?", questions[0].Text)
}

func TestParseQuestions_UnknownTypeBecomesOpenEnded(t *testing.T) {
	svc := testGenerationService(t, &fakeTextGen{})

	questions, err := svc.parseQuestions(`{"questions": [{"text": "Q", "type": "open_ended"}]}`)
	require.NoError(t, err)
	assert.Equal(t, models.OpenEnded, questions[0].Type)
}

func TestBuildPrimaryPrompt_EmbedsProfileAndFragments(t *testing.T) {
	svc := testGenerationService(t, &fakeTextGen{})

	profile := &models.LearnerProfile{
		Proficiency:  models.ProficiencyAdvanced,
		InterestTags: []string{"geometry"},
		WeaknessTags: []string{"proofs"},
	}
	fragments := []models.CourseMaterial{
		{Title: "Chapter 1", Content: "The quick brown fox"},
	}
	params := models.GenerationParams{
		Strategy:        models.StrategyChallenge,
		Difficulty:      models.DifficultyHard,
		QuestionCount:   10,
		IncludeAdvanced: true,
	}

	prompt := svc.buildPrimaryPrompt(testCourse(), fragments, profile, params)

	assert.Contains(t, prompt, "CHALLENGE")
	assert.Contains(t, prompt, "HARD")
	assert.Contains(t, prompt, "ADVANCED")
	assert.Contains(t, prompt, "geometry")
	assert.Contains(t, prompt, "proofs")
	assert.Contains(t, prompt, "Chapter 1")
	assert.Contains(t, prompt, "advanced questions")
}

func TestGenerate_RecordsWinningTier(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewEngineMetrics(mp)
	require.NoError(t, err)

	// Dead service and no material, so filler wins
	fake := &fakeTextGen{errs: []error{contextutils.ErrGenerationUnavailable, contextutils.ErrGenerationUnavailable}}
	svc := testGenerationService(t, fake)
	svc.SetMetrics(metrics)

	svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyStandard,
		Difficulty:    models.DifficultyMedium,
		QuestionCount: 5,
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var recorded bool
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			if mt.Name != "quizforge.generation.tier" {
				continue
			}
			sum, ok := mt.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			v, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("tier"))
			require.True(t, ok)
			assert.Equal(t, string(models.SourceGenericFiller), v.AsString())
			recorded = true
		}
	}
	assert.True(t, recorded, "generation tier counter not recorded")
}

func TestGenerate_SetsMetadata(t *testing.T) {
	fake := &fakeTextGen{responses: []string{validQuestionsJSON}}
	svc := testGenerationService(t, fake)

	before := time.Now()
	content := svc.Generate(context.Background(), testCourse(), nil, nil, models.GenerationParams{
		Strategy:      models.StrategyRemediation,
		Difficulty:    models.DifficultyEasy,
		QuestionCount: 7,
	})

	assert.Equal(t, 7, content.CourseID)
	assert.Equal(t, "linear algebra", content.Topic)
	assert.Equal(t, models.StrategyRemediation, content.Strategy)
	assert.Equal(t, models.DifficultyEasy, content.Difficulty)
	assert.False(t, content.GeneratedAt.Before(before))
}
