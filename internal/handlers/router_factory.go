package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"quizforge/internal/config"
	"quizforge/internal/middleware"
	"quizforge/internal/observability"
	"quizforge/internal/services"
	"quizforge/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	attemptService services.AttemptServiceInterface,
	eligibilityService services.EligibilityServiceInterface,
	progressService services.ProgressServiceInterface,
	recommendationService services.RecommendationServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		// Log using our observability logger (goes to both stdout and OTLP)
		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "engine"})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("quizforge-api"))

	// Panic recovery with structured error responses
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	attemptHandler := NewAttemptHandler(attemptService, eligibilityService, cfg, logger)
	progressHandler := NewProgressHandler(progressService, cfg, logger)
	recommendationHandler := NewRecommendationHandler(recommendationService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "engine",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		learners := v1.Group("/learners/:id")
		{
			learners.GET("/courses/:courseID/eligibility", attemptHandler.CheckEligibility)
			learners.POST("/courses/:courseID/attempts", attemptHandler.InitiateAttempt)
			learners.GET("/progress", progressHandler.GetProgress)
			learners.GET("/stats", progressHandler.GetStats)
			learners.GET("/recommendations", recommendationHandler.GetRecommendations)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", attemptHandler.GetAttempt)
			attempts.POST("/:id/submission", attemptHandler.SubmitAttempt)
		}

		v1.POST("/recommendations/:id/accept", recommendationHandler.AcceptRecommendation)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	// Automatic route listing at root path
	routeListing := NewRouteListingHandler("QuizForge Engine")
	routeListing.CollectRoutes(router)

	router.GET("/", func(c *gin.Context) {
		if c.Query("json") == "true" {
			routeListing.GetRouteListingJSON(c)
		} else {
			routeListing.GetRouteListingPage(c)
		}
	})

	return router
}
