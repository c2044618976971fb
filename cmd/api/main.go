package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "questions/docs" // This is for Swagger
	"questions/internal/auth"
	"questions/internal/config"
	"questions/internal/database"
	"questions/internal/email"
	"questions/internal/handlers"
	"questions/internal/logger"
	"questions/internal/middleware"
	"questions/internal/notify"
	"questions/internal/repository"
	"questions/internal/scheduler"
	"questions/internal/search"
	"questions/internal/service"
	"questions/internal/telemetry"
	"questions/internal/vault"
	"questions/migrations"
)

// @title Questions API
// @version 1.0
// @description Lifecycle, answering and bulk administration of citizen questions in participatory spaces

// @contact.name API Support

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, &cfg.Telemetry, cfg.App.Version); err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func(db *database.Database) {
		err := db.Close()
		if err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	// Run database migrations
	applied, err := database.NewMigrationExecutor(db.DB).RunMigrations(ctx, migrations.FS)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed", "applied", len(applied))

	components, err := config.LoadComponentSettings(cfg.Components.SettingsFile)
	if err != nil {
		slog.Error("Failed to load component settings", "error", err, "file", cfg.Components.SettingsFile)
		os.Exit(1)
	}

	// Initialize repositories
	questionRepo := repository.NewQuestionRepository(db.DB)
	assignmentRepo := repository.NewValuationAssignmentRepository(db.DB)
	spaceRoleRepo := repository.NewSpaceRoleRepository(db.DB)
	componentRepo := repository.NewComponentRepository(db.DB)
	taxonomyRepo := repository.NewTaxonomyRepository(db.DB)
	noteRepo := repository.NewNoteRepository(db.DB)
	amendmentRepo := repository.NewAmendmentRepository(db.DB)
	linkRepo := repository.NewResourceLinkRepository(db.DB)
	scoreRepo := repository.NewGamificationRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)
	actionLogRepo := repository.NewActionLogRepository(db.DB)
	versionRepo := repository.NewVersionRepository(db.DB)
	metricsRepo := repository.NewMetricsRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	// Initialize services
	authService := auth.NewService(&cfg.JWT)
	emailService := email.NewService(&cfg.Email)
	commands := telemetry.NewCommands()
	tx := database.NewTxRunner(db.DB)

	deps := service.Deps{
		Tx:          tx,
		Questions:   questionRepo,
		Assignments: assignmentRepo,
		Roles:       spaceRoleRepo,
		Components:  componentRepo,
		Taxonomy:    taxonomyRepo,
		Notes:       noteRepo,
		Amendments:  amendmentRepo,
		Links:       linkRepo,
		Scores:      scoreRepo,
		Events:      notify.NewPublisher(notificationRepo),
		Trace:       service.NewTraceabilityService(versionRepo, actionLogRepo),
		Settings:    components,
		Telemetry:   commands,
		Locale:      cfg.App.DefaultLocale,
	}

	var encrypter service.Encrypter
	if cfg.Vault.Enabled {
		vaultClient, err := vault.NewClient(ctx, &vault.Config{
			Address:      cfg.Vault.Address,
			Token:        cfg.Vault.Token,
			TransitMount: cfg.Vault.TransitMount,
			KeyName:      cfg.Vault.NotesKey,
		})
		if err != nil {
			slog.Error("Failed to initialize Vault client", "error", err)
			os.Exit(1)
		}
		encrypter = vaultClient
		slog.Info("Private notes are encrypted", "vault_addr", cfg.Vault.Address)
	} else {
		slog.Warn("Vault is disabled - private notes are stored in plain text")
	}

	answerService := service.NewAnswerService(deps)
	questionService := service.NewQuestionService(deps)
	valuationService := service.NewValuationService(deps)
	textService := service.NewParticipatoryTextService(deps)
	noteService := service.NewNoteService(deps, encrypter)
	amendmentService := service.NewAmendmentService(deps)
	metricsService := service.NewMetricsService(metricsRepo)

	deliverer := notify.NewDeliverer(notificationRepo, userRepo, emailService, notify.DeliveryConfig{
		BatchSize:      cfg.Scheduler.DeliveryBatchSize,
		MaxAttempts:    cfg.Scheduler.DeliveryMaxAttempts,
		MaxElapsedTime: cfg.Scheduler.DeliveryMaxElapsedTime,
		Concurrency:    cfg.Scheduler.DeliveryConcurrency,
		Lease:          cfg.Scheduler.DeliveryLease,
	})

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(deliverer, metricsService, commands, &cfg.Scheduler)
	schedulerService.Start(ctx)
	defer schedulerService.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService)
	rbacMw := middleware.NewRBACMiddleware(componentRepo, spaceRoleRepo)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	go rateLimiter.Run(ctx)

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
		if err != nil {
			slog.Error("Failed to write health check response", "error", err)
		}
	}

	rt := &routes{
		auth:        authMw,
		rbac:        rbacMw,
		questions:   handlers.NewQuestionHandler(questionService, questionRepo, search.NewSearcher(questionRepo), componentRepo, components),
		answers:     handlers.NewAnswerHandler(answerService, questionRepo, assignmentRepo),
		valuations:  handlers.NewValuationHandler(valuationService),
		texts:       handlers.NewParticipatoryTextHandler(textService),
		notes:       handlers.NewNoteHandler(noteService, questionRepo),
		amendments:  handlers.NewAmendmentHandler(amendmentService, questionRepo),
		config:      handlers.NewConfigHandler(cfg, componentRepo, components),
		admin:       handlers.NewAdminHandler(metricsService, actionLogRepo),
		healthCheck: healthCheck,
	}

	// Setup router
	mux := http.NewServeMux()
	rt.register(mux)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
	}

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	telemetry.Shutdown(shutdownCtx)

	slog.Info("Server stopped")
}
