package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/devmatch/be-talent-pipeline/internal/client"
	"github.com/devmatch/be-talent-pipeline/internal/config"
	"github.com/devmatch/be-talent-pipeline/internal/database"
	"github.com/devmatch/be-talent-pipeline/internal/handler"
	"github.com/devmatch/be-talent-pipeline/internal/logger"
	"github.com/devmatch/be-talent-pipeline/internal/middleware"
	"github.com/devmatch/be-talent-pipeline/internal/repository"
	"github.com/devmatch/be-talent-pipeline/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Talent Pipeline Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	pipelineRepo := repository.NewPipelineRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	developerRepo := repository.NewDeveloperRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Initialize collaborator clients
	emailPublisher, err := client.NewEmailPublisher(cfg.NATS.URL, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create email publisher")
	}
	defer emailPublisher.Close()

	analysisClient := client.NewAnalysisHTTPClient(cfg.Analysis.BaseURL)
	paymentClient := client.NewPaymentHTTPClient(cfg.Payments.BaseURL)

	log.Info().
		Str("analysis_url", cfg.Analysis.BaseURL).
		Str("payments_url", cfg.Payments.BaseURL).
		Bool("email_enabled", cfg.NATS.URL != "").
		Msg("Collaborator clients initialized")

	// Initialize services
	invitationService := service.NewInvitationService(
		invitationRepo, developerRepo, emailPublisher, log, cfg.Invites.TTL, cfg.Invites.AcceptURL)
	pipelineService := service.NewPipelineService(pipelineRepo, developerRepo, analysisClient, log)
	unlockService := service.NewUnlockService(ledgerRepo, pipelineRepo, pipelineService, log)
	creditService := service.NewCreditService(ledgerRepo, paymentClient, log, cfg.Payments.WebhookSecret)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(invitationService, pipelineService, unlockService, creditService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	auth := middleware.Auth(cfg.Auth.JWTSecret)
	company := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireCompany(h))
	}

	// Public routes: invitation landing page and processor callback
	mux.HandleFunc("/api/v1/invitations/info", httpHandler.GetInvitationInfo)
	mux.HandleFunc("/api/v1/invitations/accept", httpHandler.AcceptInvitation)
	mux.HandleFunc("/api/v1/credits/callback", httpHandler.PaymentCallback)

	// Company routes
	mux.Handle("/api/v1/invitations", company(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListInvitations(w, r)
		case http.MethodPost:
			httpHandler.CreateInvitation(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/pipeline", company(httpHandler.ListPipeline))
	mux.Handle("/api/v1/pipeline/entry", company(httpHandler.GetPipelineEntry))
	mux.Handle("/api/v1/pipeline/add", company(httpHandler.AddPipelineDeveloper))
	mux.Handle("/api/v1/pipeline/stats", company(httpHandler.GetPipelineStats))
	mux.Handle("/api/v1/pipeline/stage", company(httpHandler.UpdatePipelineStage))
	mux.Handle("/api/v1/pipeline/notes", company(httpHandler.UpdatePipelineNotes))
	mux.Handle("/api/v1/pipeline/delete", company(httpHandler.DeletePipelineEntry))
	mux.Handle("/api/v1/reports/unlock", company(httpHandler.UnlockReport))
	mux.Handle("/api/v1/credits/balance", company(httpHandler.GetBalance))
	mux.Handle("/api/v1/credits/history", company(httpHandler.GetTransactionHistory))
	mux.Handle("/api/v1/credits/checkout", company(httpHandler.StartCheckout))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
