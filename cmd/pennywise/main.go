package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"pennywise/internal/cli"
	apphttp "pennywise/internal/http"
	"pennywise/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	result := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Client:             result.Client,
		Logger:             logger,
		SiteURL:            strings.TrimRight(cfg.SiteURL, "/"),
		SecureCookies:      cfg.SecureCookies,
		RefreshTokenTTL:    cfg.RefreshTokenTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting pennywise server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"site_url", cfg.SiteURL,
		"oauth_providers", result.AuthService.Providers())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
