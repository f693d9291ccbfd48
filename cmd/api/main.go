package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"confreg/config"
	_ "confreg/docs"
	"confreg/internal/adapters/auth"
	"confreg/internal/adapters/email"
	deliveryhttp "confreg/internal/delivery/http"
	"confreg/internal/delivery/http/controllers"
	"confreg/internal/delivery/http/middleware"
	"confreg/internal/repository/postgres"
	"confreg/internal/services"
)

const shutdownTimeout = 10 * time.Second

// @title Conference Registration API
// @version 1.0
// @description Fee calculation, registration and payment reconciliation for conference events.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	feeRepo := postgres.NewFeeRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	txRunner := postgres.NewTxRunner(db)

	// Adapters
	hasher := auth.NewBcryptHasher(12)
	tokenIssuer := auth.NewJWTIssuer(cfg.JWTSecret)
	tokenVerifier := auth.NewJWTVerifier(cfg.JWTSecret)
	mailer, err := email.NewMailer(cfg.Mail, logger)
	if err != nil {
		logger.Error("failed to configure mailer", "err", err)
		os.Exit(1)
	}
	renderer := email.NewTemplateRenderer()

	// Services
	emailSvc := services.NewEmailService(mailer, renderer, logger)
	userSvc := services.NewUserService(userRepo, hasher, tokenIssuer)
	feeSvc := services.NewFeeCalculationService(eventRepo, feeRepo, paymentRepo, cfg.MainConferenceCode)
	registrationSvc := services.NewRegistrationService(registrationRepo, paymentRepo, feeSvc, txRunner, emailSvc, logger)
	additionalSvc := services.NewAdditionalRegistrationService(
		registrationRepo, paymentRepo, userRepo, feeSvc, txRunner, emailSvc, logger)

	// Controllers
	authController := controllers.NewAuthController(logger, userSvc)
	feeController := controllers.NewFeeController(logger, feeSvc)
	registrationController := controllers.NewRegistrationController(logger, registrationSvc, additionalSvc)
	eventController := controllers.NewEventController(logger, eventRepo, additionalSvc)

	mux := deliveryhttp.NewRouter(authController, feeController, registrationController, eventController, tokenVerifier)
	handler := middleware.RequestLogging(logger, middleware.CORS(cfg.CORSOrigins, mux))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "err", err)
	}
	logger.Info("server stopped")
}
