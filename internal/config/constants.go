package config

import "time"

// Eligibility defaults
const (
	// DefaultMaxAttemptsPerDay is the daily per-course attempt quota.
	DefaultMaxAttemptsPerDay = 3
	// DefaultMinCooldownMinutes is the minimum wait after a completed attempt.
	DefaultMinCooldownMinutes = 30
)

// Attempt defaults
const (
	// DefaultTimeLimitMinutes is the attempt deadline when a quiz has no explicit limit.
	DefaultTimeLimitMinutes = 60
	// DefaultPassThreshold is the score at which a completed attempt counts as passed.
	DefaultPassThreshold = 60.0
	// CertificateScoreThreshold is the first-attempt score that flags certificate eligibility.
	CertificateScoreThreshold = 80.0
)

// Generation pipeline defaults
const (
	// GenerationRequestTimeout bounds a single call to the text-generation service.
	GenerationRequestTimeout = 30 * time.Second
	// GenerationPipelineBudget bounds a whole tiered generation run.
	GenerationPipelineBudget = 45 * time.Second
	// DefaultGenerationMaxTokens is the completion token cap sent upstream.
	DefaultGenerationMaxTokens = 2048
	// DefaultGenerationTemperature is the sampling temperature sent upstream.
	DefaultGenerationTemperature = 0.7
	// DefaultMaxPromptFragments caps source fragments embedded in the primary prompt.
	DefaultMaxPromptFragments = 5
	// MinQuestionCount is the floor every generated quiz must reach.
	MinQuestionCount = 5
	// MaterialQuestionCap limits tier-3 questions synthesized from material titles.
	MaterialQuestionCap = 10
)

// Progress analytics thresholds
const (
	// StrongTopicThreshold marks a per-topic average as a strength.
	StrongTopicThreshold = 75.0
	// WeakTopicThreshold marks a per-topic average as a weakness.
	WeakTopicThreshold = 60.0
	// InactivityWindow is how long without activity counts as "away" for strategy selection.
	InactivityWindow = 7 * 24 * time.Hour
)

// Recommendation defaults
const (
	// MaxRankedRecommendations caps the pending-recommendation ranking result.
	MaxRankedRecommendations = 5
)

// Database timeouts
const (
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Worker timeouts
const (
	WorkerSweepInterval     = 1 * time.Minute
	WorkerHeartbeatInterval = 30 * time.Second
	WorkerShutdownTimeout   = 30 * time.Second
)
