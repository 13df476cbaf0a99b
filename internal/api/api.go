// Package api exposes the HTTP boundary: ingest, dashboard snapshot, purge,
// camera control and the live update stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pestwatch/pestwatch/internal/backlog"
	"github.com/pestwatch/pestwatch/internal/camera"
	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/imagestore"
	"github.com/pestwatch/pestwatch/internal/logging"
	"github.com/pestwatch/pestwatch/internal/observability"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	DS        datastore.Interface
	Images    *imagestore.Store
	Processor *backlog.Processor
	Camera    *camera.Controller

	metrics     *observability.Metrics
	sseManager  *SSEManager
	logger      *slog.Logger
	loggerClose func() error
}

// New creates the API controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, images *imagestore.Store,
	processor *backlog.Processor, cam *camera.Controller,
	metrics *observability.Metrics) *Controller {

	logger := logging.ForService("api")
	loggerClose := func() error { return nil }
	if settings.Main.Log.Enabled {
		fileLogger, closeFunc, err := logging.NewFileLogger(
			settings.Main.Log.Path, "api", logging.ParseLevel(settings.Main.Log.Level))
		if err != nil {
			logger.Warn("file logging unavailable, keeping standard output", "error", err)
		} else {
			logger = fileLogger
			loggerClose = closeFunc
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:        e,
		Settings:    settings,
		DS:          ds,
		Images:      images,
		Processor:   processor,
		Camera:      cam,
		metrics:     metrics,
		sseManager:  NewSSEManager(logger),
		logger:      logger,
		loggerClose: loggerClose,
	}

	c.initRoutes()
	return c
}

// Notifier returns the broadcast sink the backlog processor should signal
// after every completed pass.
func (c *Controller) Notifier() backlog.Notifier {
	return c.sseManager
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	c.Group.POST("/images", c.IngestImage)
	c.Group.GET("/snapshot", c.GetSnapshot)
	c.Group.POST("/purge", c.PurgeImages)
	c.Group.POST("/camera/:action", c.ControlCamera)
	c.Group.GET("/stream", c.StreamUpdates)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	// The dashboard loads images straight from the two directories.
	c.Echo.Static("/static/backlog", c.Settings.Pipeline.Backlog.Path)
	c.Echo.Static("/static/results", c.Settings.Pipeline.Results.Path)
}

// Start runs the server until Shutdown is called.
func (c *Controller) Start() error {
	addr := fmt.Sprintf(":%s", c.Settings.WebServer.Port)
	c.logger.Info("web server listening", "addr", addr)
	if err := c.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and closes the file log writer.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.sseManager.CloseAll()
	err := c.Echo.Shutdown(ctx)
	if cerr := c.loggerClose(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// errorResponse is the JSON error envelope. Handlers never surface a hard
// error page: the dashboard keeps rendering from whatever data exists.
type errorResponse struct {
	Error string `json:"error"`
}

func (c *Controller) jsonError(ctx echo.Context, status int, err error) error {
	c.logger.Error("request failed",
		"path", ctx.Path(), "status", status, "error", err)
	return ctx.JSON(status, errorResponse{Error: err.Error()})
}
