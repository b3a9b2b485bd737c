package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/importadora-system/internal/config"
	"github.com/mmeshcher/importadora-system/internal/handler"
	"github.com/mmeshcher/importadora-system/internal/middleware"
	"github.com/mmeshcher/importadora-system/internal/rates"
	"github.com/mmeshcher/importadora-system/internal/repository"
	"github.com/mmeshcher/importadora-system/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer repo.Close()

	ratesClient := rates.NewClient(cfg.MarketRateURL, cfg.MarketRateFallbackURL, cfg.CustomsRateURL, logger)
	svc := service.NewService(repo, ratesClient)

	auth := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, auth)

	srv := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.StartCustomsRateUpdates(gCtx, cfg.CustomsRateInterval)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", cfg.RunAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
