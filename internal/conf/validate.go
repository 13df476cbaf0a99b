package conf

import (
	"fmt"

	"github.com/pestwatch/pestwatch/internal/errors"
)

// ValidateSettings checks the loaded settings for values the rest of the
// application cannot recover from at runtime.
func ValidateSettings(settings *Settings) error {
	var validationErrors []error

	if settings.Pipeline.Backlog.Path == "" {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.backlog.path must not be empty"))
	}
	if settings.Pipeline.Results.Path == "" {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.results.path must not be empty"))
	}
	if settings.Pipeline.Backlog.Path != "" && settings.Pipeline.Backlog.Path == settings.Pipeline.Results.Path {
		validationErrors = append(validationErrors, fmt.Errorf("backlog and results paths must differ"))
	}
	if settings.Pipeline.Results.MaxCount < 0 {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.results.maxcount must not be negative"))
	}

	if settings.Pipeline.Model.InputSize <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.model.inputsize must be positive"))
	}
	if settings.Pipeline.Model.Confidence < 0 || settings.Pipeline.Model.Confidence > 1 {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.model.confidence must be within [0,1]"))
	}
	if settings.Pipeline.Model.NMS < 0 || settings.Pipeline.Model.NMS > 1 {
		validationErrors = append(validationErrors, fmt.Errorf("pipeline.model.nms must be within [0,1]"))
	}

	if settings.Camera.Timeout <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("camera.timeout must be positive"))
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		validationErrors = append(validationErrors, fmt.Errorf("only one database output may be enabled"))
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		validationErrors = append(validationErrors, fmt.Errorf("one database output must be enabled"))
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		validationErrors = append(validationErrors, fmt.Errorf("output.sqlite.path must not be empty"))
	}

	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		validationErrors = append(validationErrors, fmt.Errorf("webserver.port must not be empty"))
	}

	if len(validationErrors) > 0 {
		return errors.New(errors.Join(validationErrors...)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
