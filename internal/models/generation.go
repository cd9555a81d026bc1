package models

import (
	"encoding/json"
	"time"
)

// Strategy represents the pedagogical mode shaping the next quiz
type Strategy string

// Strategies, evaluated by the selector's decision table
const (
	StrategyDiagnostic    Strategy = "DIAGNOSTIC"
	StrategyRemediation   Strategy = "REMEDIATION"
	StrategyChallenge     Strategy = "CHALLENGE"
	StrategyReinforcement Strategy = "REINFORCEMENT"
	StrategyStandard      Strategy = "STANDARD"
)

// Difficulty represents the requested question difficulty
type Difficulty string

// Difficulty levels
const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// GenerationParams parameterize one generation request
type GenerationParams struct {
	Strategy        Strategy   `json:"strategy"`
	Difficulty      Difficulty `json:"difficulty"`
	QuestionCount   int        `json:"question_count"`
	FocusAreas      []string   `json:"focus_areas,omitempty"`
	IncludeAdvanced bool       `json:"include_advanced,omitempty"`
}

// QuestionSource tags the provenance of a generated question
type QuestionSource string

// Question provenance tags, one per pipeline tier
const (
	SourceAIPrimary        QuestionSource = "ai_primary"
	SourceAISimplified     QuestionSource = "ai_simplified"
	SourceMaterialFallback QuestionSource = "material_fallback"
	SourceGenericFiller    QuestionSource = "generic_filler"
)

// QuestionType distinguishes closed from open-ended questions
type QuestionType string

// Question types supported by the pipeline
const (
	// MultipleChoice questions carry options and a correct option index
	MultipleChoice QuestionType = "multiple_choice"
	// OpenEnded questions are scored by keyword overlap with the expected answer
	OpenEnded QuestionType = "open_ended"
)

// GeneratedQuestion is one question of a generated quiz
type GeneratedQuestion struct {
	Text           string         `json:"text"`
	Type           QuestionType   `json:"type"`
	Options        []string       `json:"options,omitempty"`
	CorrectOption  int            `json:"correct_option,omitempty"`
	ExpectedAnswer string         `json:"expected_answer,omitempty"`
	Topic          string         `json:"topic,omitempty"`
	Source         QuestionSource `json:"source"`
}

// QuizContent is the pipeline's output: always at least the minimum
// question count, every question with non-empty text.
type QuizContent struct {
	CourseID    int                 `json:"course_id"`
	Topic       string              `json:"topic"`
	Strategy    Strategy            `json:"strategy"`
	Difficulty  Difficulty          `json:"difficulty"`
	Questions   []GeneratedQuestion `json:"questions"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// MarshalToJSON serializes the quiz content for storage on the attempt row
func (qc *QuizContent) MarshalToJSON() (result0 string, err error) {
	data, err := json.Marshal(qc)
	return string(data), err
}

// UnmarshalQuizContent deserializes stored quiz content
func UnmarshalQuizContent(data string) (*QuizContent, error) {
	var qc QuizContent
	if err := json.Unmarshal([]byte(data), &qc); err != nil {
		return nil, err
	}
	return &qc, nil
}

// SubmittedAnswer is one answer in a submission payload
type SubmittedAnswer struct {
	QuestionIndex int    `json:"question_index"`
	OptionIndex   *int   `json:"option_index,omitempty"`
	Text          string `json:"text,omitempty"`
}

// Submission is the raw payload a learner submits for an attempt
type Submission struct {
	Answers []SubmittedAnswer `json:"answers"`
}

// StudyRecommendation is the qualitative next-step advice after scoring
type StudyRecommendation string

// Next-step recommendations by score band
const (
	StudyAgain   StudyRecommendation = "STUDY_AGAIN"
	PracticeMore StudyRecommendation = "PRACTICE_MORE"
	Advance      StudyRecommendation = "ADVANCE"
)

// AttemptResult is returned to the caller after a submission is finalized
type AttemptResult struct {
	Attempt             *Attempt             `json:"attempt"`
	Score               float64              `json:"score"`
	Grade               string               `json:"grade"`
	Recommendation      StudyRecommendation  `json:"recommendation"`
	CertificateEligible bool                 `json:"certificate_eligible"`
	Feedback            string               `json:"feedback"`
	NextEligibility     *EligibilityDecision `json:"next_eligibility,omitempty"`
}

// InitiatedAttempt is returned to the caller when an attempt starts
type InitiatedAttempt struct {
	Attempt  *Attempt     `json:"attempt"`
	Quiz     *QuizContent `json:"quiz"`
	Deadline time.Time    `json:"deadline"`
}
