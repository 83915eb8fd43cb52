package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/app"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/config"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/metrics"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		middleware.InitLogger("info", "tubepulse-api")
		middleware.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	middleware.InitLogger(cfg.LogLevel, "tubepulse-api")
	log := middleware.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	metrics.Register(a.Pool)

	go a.Reaper.Start(ctx)
	defer a.Reaper.Stop()

	server := fiber.New(fiber.Config{
		AppName:      "TubePulse API",
		ServerHeader: "TubePulse",
		BodyLimit:    8 * 1024 * 1024,
	})
	router.Setup(server, a.Handlers(), cfg.CORSOrigins)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("TubePulse backend starting")
		errCh <- server.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
