// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"quizforge/internal/config"
	"quizforge/internal/database"
	"quizforge/internal/observability"
	"quizforge/internal/services"
	contextutils "quizforge/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetAttemptService() (services.AttemptServiceInterface, error)
	GetEligibilityService() (services.EligibilityServiceInterface, error)
	GetProgressService() (services.ProgressServiceInterface, error)
	GetGenerationService() (services.GenerationServiceInterface, error)
	GetMaterialService() (services.MaterialServiceInterface, error)
	GetProfileService() (services.ProfileServiceInterface, error)
	GetRecommendationService() (services.RecommendationServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.EngineMetrics
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container.
// metrics may be nil when the meter provider is disabled.
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, metrics *observability.EngineMetrics) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices(ctx)

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetAttemptService returns the attempt service
func (sc *ServiceContainer) GetAttemptService() (services.AttemptServiceInterface, error) {
	return GetServiceAs[services.AttemptServiceInterface](sc, "attempt")
}

// GetEligibilityService returns the eligibility service
func (sc *ServiceContainer) GetEligibilityService() (services.EligibilityServiceInterface, error) {
	return GetServiceAs[services.EligibilityServiceInterface](sc, "eligibility")
}

// GetProgressService returns the progress analytics service
func (sc *ServiceContainer) GetProgressService() (services.ProgressServiceInterface, error) {
	return GetServiceAs[services.ProgressServiceInterface](sc, "progress")
}

// GetGenerationService returns the quiz generation service
func (sc *ServiceContainer) GetGenerationService() (services.GenerationServiceInterface, error) {
	return GetServiceAs[services.GenerationServiceInterface](sc, "generation")
}

// GetMaterialService returns the course material service
func (sc *ServiceContainer) GetMaterialService() (services.MaterialServiceInterface, error) {
	return GetServiceAs[services.MaterialServiceInterface](sc, "material")
}

// GetProfileService returns the learner profile service
func (sc *ServiceContainer) GetProfileService() (services.ProfileServiceInterface, error) {
	return GetServiceAs[services.ProfileServiceInterface](sc, "profile")
}

// GetRecommendationService returns the recommendation service
func (sc *ServiceContainer) GetRecommendationService() (services.RecommendationServiceInterface, error) {
	return GetServiceAs[services.RecommendationServiceInterface](sc, "recommendation")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errs = append(errs, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	// Core services that only depend on the database
	progressService := services.NewProgressServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["progress"] = progressService

	materialService := services.NewMaterialServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["material"] = materialService

	profileService := services.NewProfileServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["profile"] = profileService

	recommendationService := services.NewRecommendationServiceWithLogger(sc.db, sc.cfg, sc.logger)
	sc.services["recommendation"] = recommendationService

	// Eligibility gate depends on the analytics service
	eligibilityService := services.NewEligibilityServiceWithLogger(sc.db, sc.cfg, sc.logger, progressService)
	eligibilityService.SetMetrics(sc.metrics)
	sc.services["eligibility"] = eligibilityService

	// Generation pipeline with the outbound text-generation client
	textgenClient := services.NewHTTPTextGenClient(&sc.cfg.Generation, sc.logger)
	generationService := services.NewGenerationServiceWithLogger(sc.cfg, sc.logger, textgenClient)
	generationService.SetMetrics(sc.metrics)
	sc.services["generation"] = generationService

	// Attempt lifecycle orchestrates everything above
	attemptService := services.NewAttemptServiceWithLogger(
		sc.db,
		sc.cfg,
		sc.logger,
		eligibilityService,
		progressService,
		generationService,
		materialService,
		profileService,
		recommendationService,
		services.NewAnswerMatchScorer(),
	)
	attemptService.SetMetrics(sc.metrics)
	sc.services["attempt"] = attemptService
}
