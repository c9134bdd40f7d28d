package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/trainforge/training-generator-backend/internal/ai"
	"github.com/trainforge/training-generator-backend/internal/config"
	"github.com/trainforge/training-generator-backend/internal/extract"
	"github.com/trainforge/training-generator-backend/internal/handlers"
	"github.com/trainforge/training-generator-backend/internal/middleware"
	"github.com/trainforge/training-generator-backend/internal/services"
)

// SetupRouter wires the pipeline services and configures the Gin router.
func SetupRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// AI provider
	provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize AI provider: %v", err)
	}

	// Extraction registry; pdf needs the external extraction backend
	var pdfExtractor extract.Extractor
	if cfg.ExtractorURL != "" {
		pdfExtractor = extract.NewPDFExtractor(cfg.ExtractorURL, cfg.ExtractorTimeout)
	} else {
		logrus.Warn("EXTRACTOR_URL not set, pdf uploads disabled")
	}
	registry := extract.NewRegistry(pdfExtractor)

	// Optional event broker
	var events *services.EventService
	if cfg.RabbitMQURL != "" {
		var err error
		events, err = services.NewEventService(cfg.RabbitMQURL)
		if err != nil {
			logrus.Warnf("Failed to initialize RabbitMQ: %v", err)
			events = nil
		}
	}

	// Pipeline services
	normalizer := services.NewNormalizerService()
	topics := services.NewTopicService(provider)
	outline := services.NewOutlineService(provider, cfg.MaxModuleDurationMinutes, cfg.MaxTopicsPerModule)
	slides := services.NewSlideService(provider)
	assessments := services.NewAssessmentService(provider)
	generation := services.NewGenerationService(slides, assessments, events, cfg.MaxConcurrentGenerations, cfg.GenerationTimeout)
	assembler := services.NewAssemblerService(cfg.ArtifactDir)
	sessions := services.NewSessionService(cfg.SessionTTL, registry, normalizer, topics, outline, generation, assembler)
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.DownloadTTL)

	sessionHandler := handlers.NewSessionHandler(sessions)
	artifactHandler := handlers.NewArtifactHandler(sessions, tokens)
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(cfg.APIKey)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// Token-authenticated download; the token itself is the credential.
		api.GET("/sessions/:id/artifacts/:name", artifactHandler.DownloadArtifact)

		authed := api.Group("")
		authed.Use(apiKeyMiddleware.APIKeyAuthMiddleware())
		{
			authed.POST("/sessions", sessionHandler.CreateSession)
			authed.GET("/sessions/:id", sessionHandler.GetSession)
			authed.POST("/sessions/:id/document", sessionHandler.UploadDocument)
			authed.POST("/sessions/:id/analyze", sessionHandler.Analyze)
			authed.POST("/sessions/:id/edits", sessionHandler.ApplyEdit)
			authed.POST("/sessions/:id/reorder", sessionHandler.ReorderModules)
			authed.DELETE("/sessions/:id/modules/:moduleId", sessionHandler.RemoveModule)
			authed.POST("/sessions/:id/regenerate", sessionHandler.Regenerate)
			authed.POST("/sessions/:id/generate", sessionHandler.Generate)
			authed.GET("/sessions/:id/artifacts", artifactHandler.ListArtifacts)
		}
	}

	return r
}
