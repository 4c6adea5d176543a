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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"docflow/approver"
	"docflow/auth"
	"docflow/company"
	"docflow/config"
	"docflow/db"
	"docflow/document"
	"docflow/httpapi"
	"docflow/logger"
	"docflow/storage"
	"docflow/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store, err := storage.NewService(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		Expiry:    time.Duration(cfg.Storage.ExpireMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	authSvc := auth.NewService(
		auth.NewRepository(pool),
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenExpireHours)*time.Hour,
	)
	approverRepo := approver.NewRepository(pool)
	companyRepo := company.NewRepository(pool)
	validationSvc := validation.NewService(pool)
	documentSvc := document.NewService(pool, document.NewRepository(pool), companyRepo, validationSvc, store)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	handler := httpapi.NewHandler(authSvc, approverRepo, companyRepo, documentSvc, validationSvc, store)
	httpapi.RegisterRoutes(e, handler, authSvc)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
