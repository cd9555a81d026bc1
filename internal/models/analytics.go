package models

import "time"

// Trend classifies the direction of a learner's score history
type Trend string

const (
	// TrendInsufficientData is reported when fewer than 2 scored attempts exist
	TrendInsufficientData Trend = "insufficient_data"
	// TrendImproving means the regression slope is positive
	TrendImproving Trend = "improving"
	// TrendDeclining means the regression slope is negative
	TrendDeclining Trend = "declining"
	// TrendStable means the regression slope is zero with enough data
	TrendStable Trend = "stable"
)

// ProgressSnapshot is the derived view of a learner's history.
// It is computed on demand and never persisted.
type ProgressSnapshot struct {
	LearnerID         int                `json:"learner_id"`
	TotalAttempts     int                `json:"total_attempts"`
	CompletedAttempts int                `json:"completed_attempts"`
	SuccessRate       float64            `json:"success_rate"`
	AverageScore      float64            `json:"average_score"`
	TotalTimeSeconds  int                `json:"total_time_seconds"`
	LastActive        *time.Time         `json:"last_active"`
	TopicAverages     map[string]float64 `json:"topic_averages"`
	StrongTopics      []string           `json:"strong_topics"`
	WeakTopics        []string           `json:"weak_topics"`
	TrendSlope        float64            `json:"trend_slope"`
	Trend             Trend              `json:"trend"`
}

// EmptySnapshot returns the canonical zero snapshot for a learner
func EmptySnapshot(learnerID int) *ProgressSnapshot {
	return &ProgressSnapshot{
		LearnerID:     learnerID,
		TopicAverages: map[string]float64{},
		StrongTopics:  []string{},
		WeakTopics:    []string{},
		Trend:         TrendInsufficientData,
	}
}

// EligibilityReason identifies why an eligibility decision came out the way it did
type EligibilityReason string

const (
	// ReasonEligible means the learner may start an attempt now
	ReasonEligible EligibilityReason = "eligible"
	// ReasonQuotaExceeded means the daily attempt quota is used up
	ReasonQuotaExceeded EligibilityReason = "quota"
	// ReasonCooldownActive means the cooldown since the last completed attempt has not elapsed
	ReasonCooldownActive EligibilityReason = "cooldown"
	// ReasonAttemptOpen means an attempt for the pair is still in progress
	ReasonAttemptOpen EligibilityReason = "attempt_open"
)

// EligibilityDecision is the outcome of the eligibility gate for one
// (learner, course) pair. It embeds the learner's snapshot when one
// could be computed.
type EligibilityDecision struct {
	Eligible           bool              `json:"eligible"`
	Reason             EligibilityReason `json:"reason"`
	Message            string            `json:"message"`
	AttemptsToday      int               `json:"attempts_today"`
	AttemptsRemaining  int               `json:"attempts_remaining"`
	NextAvailableTime  *time.Time        `json:"next_available_time"`
	Warning            string            `json:"warning,omitempty"`
	Snapshot           *ProgressSnapshot `json:"snapshot,omitempty"`
}

// LearnerStats is the learner-facing statistics summary
type LearnerStats struct {
	LearnerID         int        `json:"learner_id"`
	TotalAttempts     int        `json:"total_attempts"`
	CompletedAttempts int        `json:"completed_attempts"`
	SuccessRate       float64    `json:"success_rate"`
	AverageScore      float64    `json:"average_score"`
	TotalTimeSeconds  int        `json:"total_time_seconds"`
	LastActive        *time.Time `json:"last_active"`
	Trend             Trend      `json:"trend"`
	TrendSlope        float64    `json:"trend_slope"`
}
