// Package models defines data structures used throughout the quiz engine.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Learner represents a learner in the system
type Learner struct {
	ID         int            `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Email      sql.NullString `json:"email" yaml:"email"`
	Timezone   sql.NullString `json:"timezone" yaml:"timezone"`
	LastActive sql.NullTime   `json:"last_active" yaml:"last_active"`
	CreatedAt  time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for Learner to handle sql.NullString and sql.NullTime properly
func (l Learner) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Name       string     `json:"name"`
		Email      *string    `json:"email"`
		Timezone   *string    `json:"timezone"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         l.ID,
		Name:       l.Name,
		Email:      nullStringToPointer(l.Email),
		Timezone:   nullStringToPointer(l.Timezone),
		LastActive: nullTimeToPointer(l.LastActive),
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullFloat64ToPointer(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

// Course represents a course whose material can be quizzed
type Course struct {
	ID          int            `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Topic       string         `json:"topic" yaml:"topic"`
	Description sql.NullString `json:"description" yaml:"description"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"updated_at"`
}

// CourseMaterial represents one retrievable text fragment of a course
type CourseMaterial struct {
	ID        int       `json:"id" yaml:"id"`
	CourseID  int       `json:"course_id" yaml:"course_id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Quiz represents the quiz shell for a course; one per course, created lazily
type Quiz struct {
	ID        int       `json:"id" yaml:"id"`
	CourseID  int       `json:"course_id" yaml:"course_id"`
	Topic     string    `json:"topic" yaml:"topic"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// AttemptStatus represents the state of an attempt
type AttemptStatus string

const (
	// AttemptInProgress is the only non-terminal state
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	// AttemptCompleted means the attempt was submitted within its time limit
	AttemptCompleted AttemptStatus = "COMPLETED"
	// AttemptTimeout means the attempt exceeded its time limit
	AttemptTimeout AttemptStatus = "TIMEOUT"
)

// IsTerminal reports whether no further transitions are permitted
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptTimeout
}

// Attempt represents one instance of a learner taking a quiz
type Attempt struct {
	ID               int             `json:"id" yaml:"id"`
	LearnerID        int             `json:"learner_id" yaml:"learner_id"`
	CourseID         int             `json:"course_id" yaml:"course_id"`
	QuizID           int             `json:"quiz_id" yaml:"quiz_id"`
	AttemptNumber    int             `json:"attempt_number" yaml:"attempt_number"`
	Status           AttemptStatus   `json:"status" yaml:"status"`
	StartedAt        time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt      sql.NullTime    `json:"completed_at" yaml:"completed_at"`
	TimeLimitMinutes int             `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	ElapsedSeconds   int             `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Score            sql.NullFloat64 `json:"score" yaml:"score"`
	AnswersPayload   sql.NullString  `json:"-" yaml:"answers_payload"`
	QuizContent      sql.NullString  `json:"-" yaml:"quiz_content"`
	UpdatedAt        time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Deadline returns the instant the attempt times out
func (a *Attempt) Deadline() time.Time {
	return a.StartedAt.Add(time.Duration(a.TimeLimitMinutes) * time.Minute)
}

// MarshalJSON customizes JSON marshaling for Attempt to handle sql.Null types properly
func (a Attempt) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID               int           `json:"id"`
		LearnerID        int           `json:"learner_id"`
		CourseID         int           `json:"course_id"`
		QuizID           int           `json:"quiz_id"`
		AttemptNumber    int           `json:"attempt_number"`
		Status           AttemptStatus `json:"status"`
		StartedAt        time.Time     `json:"started_at"`
		CompletedAt      *time.Time    `json:"completed_at"`
		Deadline         time.Time     `json:"deadline"`
		TimeLimitMinutes int           `json:"time_limit_minutes"`
		ElapsedSeconds   int           `json:"elapsed_seconds"`
		Score            *float64      `json:"score"`
		UpdatedAt        time.Time     `json:"updated_at"`
	}{
		ID:               a.ID,
		LearnerID:        a.LearnerID,
		CourseID:         a.CourseID,
		QuizID:           a.QuizID,
		AttemptNumber:    a.AttemptNumber,
		Status:           a.Status,
		StartedAt:        a.StartedAt,
		CompletedAt:      nullTimeToPointer(a.CompletedAt),
		Deadline:         a.Deadline(),
		TimeLimitMinutes: a.TimeLimitMinutes,
		ElapsedSeconds:   a.ElapsedSeconds,
		Score:            nullFloat64ToPointer(a.Score),
		UpdatedAt:        a.UpdatedAt,
	})
}

// Proficiency represents a learner's proficiency level
type Proficiency string

// Proficiency levels supported by the system
const (
	ProficiencyBeginner     Proficiency = "BEGINNER"
	ProficiencyIntermediate Proficiency = "INTERMEDIATE"
	ProficiencyAdvanced     Proficiency = "ADVANCED"
)

// LearnerProfile represents a learner's proficiency and tag sets.
// It is created lazily on first access.
type LearnerProfile struct {
	ID           int         `json:"id" yaml:"id"`
	LearnerID    int         `json:"learner_id" yaml:"learner_id"`
	Proficiency  Proficiency `json:"proficiency" yaml:"proficiency"`
	InterestTags []string    `json:"interest_tags" yaml:"interest_tags"`
	WeaknessTags []string    `json:"weakness_tags" yaml:"weakness_tags"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" yaml:"updated_at"`
}

// HasWeakness reports whether the profile already records the given weakness tag
func (p *LearnerProfile) HasWeakness(tag string) bool {
	for _, t := range p.WeaknessTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Recommendation represents a suggested next topic for a learner
type Recommendation struct {
	ID          int             `json:"id" yaml:"id"`
	LearnerID   int             `json:"learner_id" yaml:"learner_id"`
	QuizID      sql.NullInt64   `json:"quiz_id" yaml:"quiz_id"`
	Topic       string          `json:"topic" yaml:"topic"`
	Reason      string          `json:"reason" yaml:"reason"`
	Confidence  float64         `json:"confidence" yaml:"confidence"`
	Accepted    bool            `json:"accepted" yaml:"accepted"`
	AcceptedAt  sql.NullTime    `json:"accepted_at" yaml:"accepted_at"`
	CompletedAt sql.NullTime    `json:"completed_at" yaml:"completed_at"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Recommendation to handle sql.Null types properly
func (r Recommendation) MarshalJSON() (result0 []byte, err error) {
	var quizID *int64
	if r.QuizID.Valid {
		quizID = &r.QuizID.Int64
	}
	return json.Marshal(&struct {
		ID          int        `json:"id"`
		LearnerID   int        `json:"learner_id"`
		QuizID      *int64     `json:"quiz_id"`
		Topic       string     `json:"topic"`
		Reason      string     `json:"reason"`
		Confidence  float64    `json:"confidence"`
		Accepted    bool       `json:"accepted"`
		AcceptedAt  *time.Time `json:"accepted_at"`
		CompletedAt *time.Time `json:"completed_at"`
		CreatedAt   time.Time  `json:"created_at"`
	}{
		ID:          r.ID,
		LearnerID:   r.LearnerID,
		QuizID:      quizID,
		Topic:       r.Topic,
		Reason:      r.Reason,
		Confidence:  r.Confidence,
		Accepted:    r.Accepted,
		AcceptedAt:  nullTimeToPointer(r.AcceptedAt),
		CompletedAt: nullTimeToPointer(r.CompletedAt),
		CreatedAt:   r.CreatedAt,
	})
}
