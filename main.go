package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadreminder-backend/config"
	"leadreminder-backend/controllers"
	"leadreminder-backend/routes"
	"leadreminder-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := config.ConnectDB(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	notifier, err := newNotifier(context.Background(), cfg)
	if err != nil {
		return err
	}

	timers := services.NewCronTimers(logger)
	registry := services.NewJobRegistry(timers, nil)
	svc := services.NewReminderService(
		services.NewGormStore(db),
		notifier,
		services.NewTimeCalculator(cfg.UTCOffset),
		registry,
		logger.Named("reminders"),
		services.Options{
			Workers:        cfg.Workers,
			GatewayTimeout: cfg.GatewayTimeout,
			SendRate:       cfg.SendRate,
			Metrics:        services.NewMetrics(prometheus.DefaultRegisterer),
		},
	)

	timers.Start()

	// Timers must be rebuilt before the first schedule request can race them.
	reloadCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	svc.ReloadPending(reloadCtx)
	cancel()

	if cfg.ReloadCron != "" {
		if _, err := svc.StartResync(timers.Cron(), cfg.ReloadCron); err != nil {
			timers.Stop()
			return fmt.Errorf("invalid RELOAD_CRON %q: %w", cfg.ReloadCron, err)
		}
		logger.Info("periodic reload enabled", zap.String("spec", cfg.ReloadCron))
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := routes.SetupRouter(controllers.NewReminderController(svc), routes.Options{
		FrontendURL: cfg.FrontendURL,
		JWTSecret:   cfg.JWTSecret,
	}, logger.Named("http"))
	printRoutes(r, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reminder scheduler listening",
			zap.String("port", cfg.Port),
			zap.String("notifier", cfg.NotifierProvider),
			zap.Duration("utc_offset", cfg.UTCOffset))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		timers.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	timers.Stop()
	svc.Wait()
	logger.Info("stopped", zap.Int("unfired_reminders", svc.PendingCount()))
	return nil
}

func newNotifier(ctx context.Context, cfg *config.Config) (services.Notifier, error) {
	templates := services.DefaultTemplates
	if cfg.TemplateR1 != "" {
		templates.R1 = cfg.TemplateR1
	}
	if cfg.TemplateR2 != "" {
		templates.R2 = cfg.TemplateR2
	}

	switch cfg.NotifierProvider {
	case "sns":
		return services.NewSNSNotifier(ctx, cfg.SNS.Region, cfg.SNS.SenderID, templates)
	case "aisensy":
		return services.NewAiSensyNotifier(services.AiSensyConfig{
			URL:          cfg.AiSensy.URL,
			APIKey:       cfg.AiSensy.APIKey,
			CampaignName: cfg.AiSensy.CampaignName,
			Timeout:      cfg.GatewayTimeout,
		}), nil
	default:
		return services.NewTwilioNotifier(services.TwilioConfig{
			AccountSID:     cfg.Twilio.AccountSID,
			AuthToken:      cfg.Twilio.AuthToken,
			PhoneNumber:    cfg.Twilio.PhoneNumber,
			WhatsAppNumber: cfg.Twilio.WhatsAppNumber,
		}, templates), nil
	}
}

func printRoutes(r *gin.Engine, logger *zap.Logger) {
	for _, route := range r.Routes() {
		logger.Debug("route", zap.String("method", route.Method), zap.String("path", route.Path))
	}
}
