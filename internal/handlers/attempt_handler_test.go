package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/models"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAttemptService implements services.AttemptServiceInterface for handler tests
type stubAttemptService struct {
	initiated    *models.InitiatedAttempt
	initiateErr  error
	result       *models.AttemptResult
	submitErr    error
	attempt      *models.Attempt
	getErr       error
	gotSubmitted *models.Submission
}

func (s *stubAttemptService) InitiateAttempt(_ context.Context, _, _ int) (*models.InitiatedAttempt, error) {
	return s.initiated, s.initiateErr
}

func (s *stubAttemptService) SubmitAttempt(_ context.Context, _ int, submission *models.Submission) (*models.AttemptResult, error) {
	s.gotSubmitted = submission
	return s.result, s.submitErr
}

func (s *stubAttemptService) GetAttempt(_ context.Context, _ int) (*models.Attempt, error) {
	return s.attempt, s.getErr
}

// stubEligibilityService implements services.EligibilityServiceInterface for handler tests
type stubEligibilityService struct {
	decision *models.EligibilityDecision
	err      error
}

func (s *stubEligibilityService) CheckEligibility(_ context.Context, learnerID, _ int) (*models.EligibilityDecision, error) {
	if s.decision != nil && s.decision.Snapshot == nil {
		s.decision.Snapshot = models.EmptySnapshot(learnerID)
	}
	return s.decision, s.err
}

// stubProgressService implements services.ProgressServiceInterface for handler tests
type stubProgressService struct {
	snapshot *models.ProgressSnapshot
	stats    *models.LearnerStats
	err      error
}

func (s *stubProgressService) Analyze(_ context.Context, _ int) (*models.ProgressSnapshot, error) {
	return s.snapshot, s.err
}

func (s *stubProgressService) GetStats(_ context.Context, _ int) (*models.LearnerStats, error) {
	return s.stats, s.err
}

// stubRecommendationService implements services.RecommendationServiceInterface for handler tests
type stubRecommendationService struct {
	pending   []models.Recommendation
	err       error
	acceptErr error
}

func (s *stubRecommendationService) Create(_ context.Context, _ *models.Recommendation) error {
	return nil
}

func (s *stubRecommendationService) RankPending(_ context.Context, _ int) ([]models.Recommendation, error) {
	return s.pending, s.err
}

func (s *stubRecommendationService) Accept(_ context.Context, _ int) error {
	return s.acceptErr
}

type routerStubs struct {
	attempts        *stubAttemptService
	eligibility     *stubEligibilityService
	progress        *stubProgressService
	recommendations *stubRecommendationService
}

func newTestRouterWithStubs(stubs routerStubs) http.Handler {
	if stubs.attempts == nil {
		stubs.attempts = &stubAttemptService{}
	}
	if stubs.eligibility == nil {
		stubs.eligibility = &stubEligibilityService{decision: &models.EligibilityDecision{Eligible: true, Reason: models.ReasonEligible}}
	}
	if stubs.progress == nil {
		stubs.progress = &stubProgressService{snapshot: models.EmptySnapshot(1), stats: &models.LearnerStats{}}
	}
	if stubs.recommendations == nil {
		stubs.recommendations = &stubRecommendationService{}
	}
	cfg := config.NewDefaultConfig()
	logger := observability.NewLogger(nil)
	return NewRouter(cfg, stubs.attempts, stubs.eligibility, stubs.progress, stubs.recommendations, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestCheckEligibility_Eligible(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{
		eligibility: &stubEligibilityService{decision: &models.EligibilityDecision{
			Eligible:          true,
			Reason:            models.ReasonEligible,
			AttemptsToday:     1,
			AttemptsRemaining: 2,
		}},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/courses/3/eligibility", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eligible", body["status"])
	decision := body["decision"].(map[string]interface{})
	assert.Equal(t, true, decision["eligible"])
	assert.Equal(t, float64(2), decision["attempts_remaining"])
}

func TestCheckEligibility_IneligibleIsStillOK(t *testing.T) {
	next := time.Now().Add(20 * time.Minute)
	router := newTestRouterWithStubs(routerStubs{
		eligibility: &stubEligibilityService{decision: &models.EligibilityDecision{
			Eligible:          false,
			Reason:            models.ReasonCooldownActive,
			NextAvailableTime: &next,
		}},
	})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/7/courses/3/eligibility", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ineligible", body["status"])
}

func TestCheckEligibility_BadLearnerID(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, body := doJSON(t, router, http.MethodGet, "/v1/learners/abc/courses/3/eligibility", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestInitiateAttempt_Created(t *testing.T) {
	attempts := &stubAttemptService{initiated: &models.InitiatedAttempt{
		Attempt:  &models.Attempt{ID: 42, LearnerID: 7, CourseID: 3, AttemptNumber: 1, Status: models.AttemptInProgress},
		Quiz:     &models.QuizContent{CourseID: 3},
		Deadline: time.Now().Add(time.Hour),
	}}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/learners/7/courses/3/attempts", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "started", body["status"])
}

func TestInitiateAttempt_QuotaRefusalIsDecision(t *testing.T) {
	attempts := &stubAttemptService{initiateErr: contextutils.ErrQuotaExceeded}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/learners/7/courses/3/attempts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ineligible", body["status"])
	assert.Equal(t, false, body["eligible"])
	assert.Equal(t, "QUOTA_EXCEEDED", body["reason"])
}

func TestInitiateAttempt_NoMaterialIsUnprocessable(t *testing.T) {
	attempts := &stubAttemptService{initiateErr: contextutils.ErrNoCourseMaterial}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/learners/7/courses/3/attempts", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_COURSE_MATERIAL", body["code"])
}

func TestInitiateAttempt_UnknownCourseIs404(t *testing.T) {
	attempts := &stubAttemptService{initiateErr: contextutils.ErrRecordNotFound}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/learners/7/courses/999/attempts", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RECORD_NOT_FOUND", body["code"])
}

func TestSubmitAttempt_OK(t *testing.T) {
	attempts := &stubAttemptService{result: &models.AttemptResult{
		Attempt: &models.Attempt{ID: 42, Status: models.AttemptCompleted},
		Score:   80,
		Grade:   "B",
	}}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	payload := `{"answers":[{"question_index":0,"option_index":1}]}`
	w, body := doJSON(t, router, http.MethodPost, "/v1/attempts/42/submission", payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finalized", body["status"])
	require.NotNil(t, attempts.gotSubmitted)
	require.Len(t, attempts.gotSubmitted.Answers, 1)
	assert.Equal(t, 0, attempts.gotSubmitted.Answers[0].QuestionIndex)
}

func TestSubmitAttempt_MalformedBody(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, body := doJSON(t, router, http.MethodPost, "/v1/attempts/42/submission", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestSubmitAttempt_AlreadyFinalizedIsConflict(t *testing.T) {
	attempts := &stubAttemptService{submitErr: contextutils.ErrAttemptAlreadyFinalized}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/attempts/42/submission", `{"answers":[]}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ATTEMPT_ALREADY_FINALIZED", body["code"])
}

func TestSubmitAttempt_UnknownAttemptIs404(t *testing.T) {
	attempts := &stubAttemptService{submitErr: contextutils.ErrAttemptNotFound}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodPost, "/v1/attempts/42/submission", `{"answers":[]}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ATTEMPT_NOT_FOUND", body["code"])
}

func TestGetAttempt_OK(t *testing.T) {
	attempts := &stubAttemptService{attempt: &models.Attempt{ID: 42, Status: models.AttemptInProgress, TimeLimitMinutes: 60}}
	router := newTestRouterWithStubs(routerStubs{attempts: attempts})

	w, body := doJSON(t, router, http.MethodGet, "/v1/attempts/42", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, body := doJSON(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newTestRouterWithStubs(routerStubs{})

	w, _ := doJSON(t, router, http.MethodGet, "/v1/unknown", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
