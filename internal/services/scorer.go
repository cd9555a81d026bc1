package services

import (
	"strings"

	"quizforge/internal/models"
)

// Scorer computes an attempt score in [0,100] from the quiz content and the
// learner's submission. Pluggable so scoring policy can evolve independently
// of the attempt lifecycle.
type Scorer interface {
	Score(content *models.QuizContent, submission *models.Submission) float64
}

// AnswerMatchScorer scores by real per-question matching: option-index
// equality for multiple choice, keyword overlap against the expected answer
// for open-ended questions.
type AnswerMatchScorer struct{}

// NewAnswerMatchScorer creates the default scorer
func NewAnswerMatchScorer() *AnswerMatchScorer {
	return &AnswerMatchScorer{}
}

// Score averages per-question credit across all questions
func (s *AnswerMatchScorer) Score(content *models.QuizContent, submission *models.Submission) float64 {
	if content == nil || len(content.Questions) == 0 {
		return 0
	}

	answers := map[int]models.SubmittedAnswer{}
	if submission != nil {
		for _, a := range submission.Answers {
			answers[a.QuestionIndex] = a
		}
	}

	var total float64
	for i, q := range content.Questions {
		answer, ok := answers[i]
		if !ok {
			continue
		}
		total += questionCredit(q, answer)
	}
	return total / float64(len(content.Questions)) * 100
}

// questionCredit returns the credit in [0,1] earned on one question
func questionCredit(q models.GeneratedQuestion, answer models.SubmittedAnswer) float64 {
	switch q.Type {
	case models.MultipleChoice:
		if answer.OptionIndex != nil && *answer.OptionIndex == q.CorrectOption {
			return 1
		}
		return 0
	default:
		return openEndedCredit(q.ExpectedAnswer, answer.Text)
	}
}

// openEndedCredit measures keyword overlap between the expected answer and
// the response. A non-empty substantive response earns at least half credit.
func openEndedCredit(expected, response string) float64 {
	response = strings.TrimSpace(response)
	if response == "" {
		return 0
	}

	keywords := answerKeywords(expected)
	substantive := len(strings.Fields(response)) >= 3

	if len(keywords) == 0 {
		if substantive {
			return 0.5
		}
		return 0
	}

	responseLower := strings.ToLower(response)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(responseLower, kw) {
			matched++
		}
	}

	credit := float64(matched) / float64(len(keywords))
	if substantive && credit < 0.5 {
		credit = 0.5
	}
	return credit
}

// answerKeywords extracts the significant lowercase terms of an expected answer
func answerKeywords(expected string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(expected)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// gradeForScore maps a score to its letter grade band
func gradeForScore(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// studyRecommendationForScore maps a score to the next-step advice
func studyRecommendationForScore(score float64) models.StudyRecommendation {
	switch {
	case score < 60:
		return models.StudyAgain
	case score < 80:
		return models.PracticeMore
	default:
		return models.Advance
	}
}
