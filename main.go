package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/handlers"
	"github.com/ammiranda/tree_changelist/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := app.Provider(ctx)
	if err != nil {
		log.Fatal("Failed to create config provider:", err)
	}

	application, err := app.New(ctx, provider)
	if err != nil {
		log.Fatal("Failed to initialize admin:", err)
	}
	defer func() {
		if err := application.Close(context.Background()); err != nil {
			application.Logger.Error("failed to close storage", "error", err)
		}
	}()

	logger := application.Logger
	slog.SetDefault(logger)

	if application.Config.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	application.Registry.Install(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   application.Config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", handlers.RequestIDHeader},
		ExposedHeaders:   []string{handlers.RequestIDHeader},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + application.Config.Port,
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
