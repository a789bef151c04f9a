package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	appconfig "github.com/daman-app/daman/internal/config"
	"github.com/daman-app/daman/internal/database"
	"github.com/daman-app/daman/internal/handlers"
	"github.com/daman-app/daman/internal/jobs"
	"github.com/daman-app/daman/internal/middleware"
	"github.com/daman-app/daman/internal/normalize"
	"github.com/daman-app/daman/internal/notify"
	"github.com/daman-app/daman/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting guarantee registry...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			// Intake authenticates with importer keys, not sessions.
			"POST /api/guarantees",
			// Browser websockets cannot set an Authorization header.
			"/ws/events",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	db := database.GetDB()

	// Matching weights and thresholds; the built-in defaults apply when
	// no override file is configured.
	matchingCfg := appconfig.DefaultMatchingConfig()
	if cfg.MatchingConfigPath != "" {
		matchingCfg, err = appconfig.LoadMatchingConfig(cfg.MatchingConfigPath)
		if err != nil {
			log.Fatalf("Failed to load matching config from %s: %v", cfg.MatchingConfigPath, err)
		}
		log.Printf("Loaded matching config from %s", cfg.MatchingConfigPath)
	}

	normalizer := normalize.New(matchingCfg.BoilerplateTokens...)
	locks := services.NewGuaranteeLocks()

	registryService := services.NewRegistryService(db, normalizer, cfg.AltNameCollisionMode)
	learningService := services.NewLearningService(db)
	matchingService := services.NewMatchingService(db, normalizer, matchingCfg)
	decisionService := services.NewDecisionService(db, normalizer, learningService, matchingService, matchingCfg, locks)
	historyService := services.NewHistoryService(db)
	correctionService := services.NewCorrectionService(db, locks)
	log.Printf("Services initialized")

	// Event sinks: the websocket feed always runs, Slack only when
	// configured.
	eventsWS := handlers.NewEventsWSHandler()
	decisionService.AddSink(eventsWS)
	correctionService.AddSink(eventsWS)
	if notifier := notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel); notifier != nil {
		decisionService.AddSink(notifier)
		correctionService.AddSink(notifier)
		log.Printf("Slack status notifications enabled on channel %s", cfg.SlackChannel)
	}

	// Importer key auth on the intake endpoint. An empty key list means
	// open intake, which only makes sense in development.
	importAuth := middleware.NewAuthMiddleware(&middleware.AuthConfig{
		APIKeys: cfg.ImportAPIKeys,
		Enabled: len(cfg.ImportAPIKeys) > 0,
	})
	if importAuth.IsEnabled() {
		log.Printf("Import intake protected by %d API key(s)", len(cfg.ImportAPIKeys))
	} else {
		log.Printf("Warning: IMPORT_API_KEYS not set, import intake is open")
	}

	apiHandler := handlers.NewAPIHandler(registryService, learningService, matchingService, decisionService, historyService, correctionService, normalizer)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)

	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)
	apiHandler.SetupImportRoutes(mux, importAuth.WrapFunc)
	authHandler.SetupRoutes(mux)
	eventsWS.SetupRoutes(mux)

	// Middleware chain: request ID first, then CORS, then JWT.
	corsMiddleware := middleware.NewCORSMiddleware()
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Maintenance jobs.
	stop := make(chan struct{})
	integrityJob := jobs.NewIntegrityJob(db, historyService)
	go integrityJob.Start(cfg.IntegrityInterval, stop)
	log.Printf("Integrity job running every %s", cfg.IntegrityInterval)

	if cfg.RenormalizeInterval > 0 {
		renormalizeJob := jobs.NewRenormalizeJob(db, normalizer, 0)
		go renormalizeJob.Start(cfg.RenormalizeInterval, stop)
		log.Printf("Renormalize job running every %s", cfg.RenormalizeInterval)
	}

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Event feed: ws://localhost:%d/ws/events", cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stop)
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	log.Println("Shutdown complete")
}
