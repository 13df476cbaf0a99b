// Package camera forwards control commands to the remote capture device.
// Calls are bounded by the configured timeout and every failure is reported
// as a structured outcome; nothing here can take down the serving process.
package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/logging"
)

// Action is a supported device command.
type Action string

const (
	ActionStop   Action = "stop"
	ActionResume Action = "resume"
)

// maxResponseBytes bounds how much of the device reply is kept.
const maxResponseBytes = 4096

// Outcome is the structured result of a control call.
type Outcome struct {
	Action         Action `json:"action"`
	Success        bool   `json:"success"`
	DeviceResponse string `json:"device_response,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Controller talks to the camera's control endpoint.
type Controller struct {
	host    string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewController creates a Controller from the camera settings.
func NewController(settings *conf.CameraSettings) *Controller {
	return &Controller{
		host:    strings.TrimRight(settings.Host, "/"),
		timeout: settings.Timeout,
		client:  &http.Client{Timeout: settings.Timeout},
		logger:  logging.ForService("camera"),
	}
}

// Control sends the action to the device. Unknown actions and transport
// failures come back as unsuccessful outcomes, never as panics or hangs.
func (c *Controller) Control(ctx context.Context, action Action) Outcome {
	switch action {
	case ActionStop, ActionResume:
	default:
		return Outcome{
			Action: action,
			Error:  fmt.Sprintf("unsupported camera action %q", action),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", c.host, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return Outcome{Action: action, Error: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("camera control call failed", "action", action, "error", err)
		return Outcome{Action: action, Error: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("camera rejected control call",
			"action", action, "status", resp.StatusCode)
		return Outcome{
			Action:         action,
			DeviceResponse: string(body),
			Error:          fmt.Sprintf("device returned status %d", resp.StatusCode),
		}
	}

	c.logger.Info("camera control call sent", "action", action)
	return Outcome{Action: action, Success: true, DeviceResponse: string(body)}
}

// Stop pauses capturing on the device.
func (c *Controller) Stop(ctx context.Context) Outcome {
	return c.Control(ctx, ActionStop)
}

// Resume restarts capturing on the device.
func (c *Controller) Resume(ctx context.Context) Outcome {
	return c.Control(ctx, ActionResume)
}
