package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/voiceclone/internal/app"
	"github.com/charlesng35/voiceclone/internal/handlers"
	"github.com/charlesng35/voiceclone/internal/middleware"
	"github.com/charlesng35/voiceclone/internal/services"
)

// Deps carries the shared infrastructure the router wires together.
type Deps struct {
	DB       *gorm.DB
	Config   *app.Config
	Limiter  *middleware.Limiter
	Store    *services.ModelService
	Voices   *services.VoiceService
	Streamer handlers.LiveStreamer
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("rate limiter must be provided")
	}
	if deps.Store == nil || deps.Voices == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware. Order matters: recovery outermost, then logging
	// and metrics, then the policy layers every response must carry.
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(middleware.CORSPolicy{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
	}))
	r.Use(middleware.RateLimit(deps.Limiter, "global", cfg.RateLimit.GlobalMax, cfg.RateLimit.GlobalWindow))

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Generated audio is public by design; file names are server-issued UUIDs.
	r.Static("/audio", cfg.Audio.OutputDir)

	modelHandler := handlers.NewModelHandler(deps.Voices, deps.Store, cfg.Uploads.Dir, cfg.MaxUploadBytes())
	ttsHandler := handlers.NewTTSHandler(deps.Voices)
	transcribeHandler := handlers.NewTranscribeHandler(deps.Voices, cfg.Uploads.Dir, cfg.MaxUploadBytes())
	creditsHandler := handlers.NewCreditsHandler(deps.Voices)
	streamHandler := handlers.NewStreamHandler(deps.Streamer, deps.Store)

	createLimit := middleware.RateLimit(deps.Limiter, "create", cfg.RateLimit.CreateMax, cfg.RateLimit.CreateWindow)
	ttsLimit := middleware.RateLimit(deps.Limiter, "tts", cfg.RateLimit.TTSMax, cfg.RateLimit.TTSWindow)

	api := r.Group("/api")
	{
		api.POST("/create-model", createLimit, modelHandler.Create)
		api.GET("/models", modelHandler.List)
		api.GET("/models/:id", modelHandler.Get)
		api.PATCH("/models/:id", modelHandler.Update)
		api.DELETE("/models/:id", modelHandler.Delete)

		api.POST("/tts", ttsLimit, ttsHandler.Synthesize)
		api.GET("/tts/live", ttsLimit, streamHandler.Live)

		api.POST("/transcribe", createLimit, transcribeHandler.Transcribe)
		api.GET("/credits", creditsHandler.Credits)
	}

	return r, nil
}
