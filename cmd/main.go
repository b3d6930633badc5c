package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/config"
	"luckydraw/internal/handlers"
	"luckydraw/internal/presenter"
	"luckydraw/internal/services"
	"luckydraw/internal/storage"
	"luckydraw/internal/storage/postgres"
	"luckydraw/internal/storage/sqlite"
)

//go:embed all:templates
var templateFS embed.FS

//go:embed all:assets
var assetsFS embed.FS

func main() {
	// 1. Load configuration (.env first, real environment wins).
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logOutput := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOutput = f
	}
	defer logger.Init("luckydraw", cfg.LogVerbose, false, logOutput).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the storage backend that holds every tenant's slots.
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open %s storage: %v", cfg.StorageDriver, err)
	}
	defer backend.Close()

	// 3. Start the websocket hub that reveals winners on the page.
	hub := presenter.NewHub()
	go hub.Run(ctx)

	// 4. Initialize the Lottery Service
	lotteryService := services.NewLotteryService(backend, hub)

	// 5. Load HTML templates from the embedded filesystem.
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}

	// 6. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(lotteryService, templates, hub)

	// 7. Set up the Gin router
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestIDMiddleware(), handlers.LoggingMiddleware())

	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		logger.Fatalf("Failed to create assets sub-filesystem: %v", err)
	}
	r.StaticFS("/assets", http.FS(assetsSubFS))

	// 8. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 9. Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	// 10. Start the background janitor to drop idle sessions from memory
	go func() {
		ticker := time.NewTicker(cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := lotteryService.CleanUpInactiveSessions(cfg.SessionTTL)
				logger.Infof("Performed cleanup of inactive sessions: removed=%d", removed)
			}
		}
	}()

	// 11. Run the server until interrupted
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Infof("Server starting on %s (storage=%s)", cfg.HTTPAddr, cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to run server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemory(), nil
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}
