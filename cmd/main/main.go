package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"basket-service/internal/basket/service"
	"basket-service/internal/basket/store"
	"basket-service/internal/config"
	serverhttp "basket-service/server/http"
)

func main() {
	cfg := config.Load()
	logger, logFile := config.SetupLogger(cfg)
	defer logFile.Close()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := config.OpenDB(ctx, cfg)
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := config.RunMigrations(ctx, db); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("migrations")
	}
	cancel()
	defer db.Close()

	svc := service.New(store.New(db, cfg.DBDriver), logger, cfg.Compare, cfg.DefaultBasketName)
	r := serverhttp.NewRouter(cfg, logger, db, svc)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().
		Str("addr", cfg.Addr()).
		Str("driver", cfg.DBDriver).
		Str("mode", string(cfg.Compare.Mode)).
		Msg("server starting")

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	})

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	lifecycle.Wait()
	logger.Info().Msg("bye")
}
