package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/skill-loop-be/internal/ai"
	"github.com/isdelr/skill-loop-be/internal/api"
	"github.com/isdelr/skill-loop-be/internal/auth"
	"github.com/isdelr/skill-loop-be/internal/config"
	"github.com/isdelr/skill-loop-be/internal/database"
	"github.com/isdelr/skill-loop-be/internal/logger"
	"github.com/isdelr/skill-loop-be/internal/mailer"
	"github.com/isdelr/skill-loop-be/internal/monitoring"
	"github.com/isdelr/skill-loop-be/internal/services"
	"github.com/isdelr/skill-loop-be/internal/storage"
	"github.com/isdelr/skill-loop-be/internal/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	clock := clockwork.NewRealClock()

	proofStorage, err := newStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to initialize proof storage")
	}
	loginMailer, err := newMailer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize mailer")
	}
	var drafter services.QuestionDrafter
	if cfg.AIEnabled() {
		drafter = ai.NewDrafter(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
	} else {
		log.Info().Msg("AI_API_KEY not set, question drafting is disabled")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL, clock)

	// Set up services
	eventService := services.NewEventService(db, clock)
	notificationService := services.NewNotificationService(db, hub, clock)
	orgService := services.NewOrganizationService(db, eventService, clock)
	matrixService := services.NewSkillMatrixService(db, eventService, clock)
	userService := services.NewUserService(db, eventService, matrixService, clock)
	skillService := services.NewSkillService(db, eventService, clock)
	jobRoleService := services.NewJobRoleService(db, eventService, clock)
	trainingService := services.NewTrainingService(db, eventService, notificationService, clock)
	journeyService := services.NewJourneyService(db, eventService, notificationService, clock)
	proofService := services.NewProofService(db, proofStorage, eventService, notificationService, clock, cfg.MaxUploadMB<<20)
	assessmentService := services.NewAssessmentService(db, eventService, notificationService, drafter, clock)
	authService := services.NewAuthService(db, userService, loginMailer, tokens, clock, cfg.AppBaseURL, cfg.OTPMaxAttempts)
	dashboardService := services.NewDashboardService(db)

	// Set up and run the background host sampler
	healthMonitor := monitoring.NewHealthMonitor(db, cfg.StorageLocalPath)
	go healthMonitor.Run()

	// Set up and start the background scheduler
	scheduler := monitoring.NewScheduler(journeyService, trainingService, authService, clock)
	if err := scheduler.Start(cfg.OverdueCron); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.OverdueCron).Msg("Failed to start scheduler")
	}

	// Set up router
	router := api.NewRouter(api.Services{
		Auth:          authService,
		Users:         userService,
		Organizations: orgService,
		Skills:        skillService,
		JobRoles:      jobRoleService,
		Matrix:        matrixService,
		Trainings:     trainingService,
		Proofs:        proofService,
		Assessments:   assessmentService,
		Journeys:      journeyService,
		Notifications: notificationService,
		Events:        eventService,
		Dashboard:     dashboardService,
	}, api.Options{
		Tokens:         tokens,
		Hub:            hub,
		Health:         healthMonitor,
		Overdue:        scheduler,
		Clock:          clock,
		AllowedOrigins: cfg.AllowedOrigins(),
		CronSecret:     cfg.CronSecret,
		SecureCookies:  cfg.IsProduction(),
		MaxUploadMB:    cfg.MaxUploadMB,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()
	healthMonitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}

func newStorage(cfg *config.Config) (services.ProofStorage, error) {
	if cfg.StorageDriver == config.StorageS3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocal(cfg.StorageLocalPath)
}

func newMailer(cfg *config.Config) (services.Mailer, error) {
	if !cfg.MailEnabled() {
		if cfg.IsProduction() {
			return nil, errors.New("SMTP_HOST must be set in production")
		}
		log.Warn().Msg("SMTP_HOST not set, login codes will be written to the log")
		return mailer.LogMailer{}, nil
	}
	return mailer.NewSMTP(mailer.Options{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
