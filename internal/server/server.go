// Package server wires the full monitoring service together: datastore,
// image store, detector, processor and the HTTP API, and runs them until a
// shutdown signal arrives.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pestwatch/pestwatch/internal/annotate"
	"github.com/pestwatch/pestwatch/internal/api"
	"github.com/pestwatch/pestwatch/internal/backlog"
	"github.com/pestwatch/pestwatch/internal/camera"
	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/detector"
	"github.com/pestwatch/pestwatch/internal/diskmanager"
	"github.com/pestwatch/pestwatch/internal/errors"
	"github.com/pestwatch/pestwatch/internal/imagestore"
	"github.com/pestwatch/pestwatch/internal/logging"
	"github.com/pestwatch/pestwatch/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Run starts the service and blocks until SIGINT or SIGTERM.
func Run(settings *conf.Settings) error {
	logger := logging.ForService("server")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return errors.New(err).
			Component("server").
			Category(errors.CategoryDatabase).
			Build()
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing datastore failed", "error", err)
		}
	}()

	images, err := imagestore.New(settings.Pipeline.Backlog.Path, settings.Pipeline.Results.Path)
	if err != nil {
		return err
	}

	det, err := detector.NewGoCVDetector(&settings.Pipeline.Model)
	if err != nil {
		return err
	}
	defer func() {
		if err := det.Close(); err != nil {
			logger.Error("closing detector failed", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	renderer := annotate.NewRenderer(&settings.Pipeline.Annotation)
	processor := backlog.New(store, images, det, renderer, settings.Pipeline.Results.MaxCount)
	processor.SetMetrics(metrics)

	cam := camera.NewController(&settings.Camera)
	apiServer := api.New(settings, store, images, processor, cam, metrics)
	processor.SetNotifier(apiServer.Notifier())

	// Apply retention to whatever a previous run left behind and queue a
	// pass for any backlog that accumulated while the service was down.
	if deleted, err := diskmanager.CountBasedCleanup(
		settings.Pipeline.Results.Path, settings.Pipeline.Results.MaxCount); err != nil {
		logger.Warn("startup retention failed", "error", err)
	} else if deleted > 0 {
		logger.Info("startup retention removed old results", "deleted", deleted)
	}
	processor.Trigger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(ctx)

	serverErr := make(chan error, 1)
	if settings.WebServer.Enabled {
		go func() {
			serverErr <- apiServer.Start()
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return errors.New(err).
				Component("server").
				Category(errors.CategoryHTTP).
				Build()
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if settings.WebServer.Enabled {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("web server shutdown failed", "error", err)
		}
	}

	logger.Info("service stopped")
	return nil
}
