// Package drain implements the one-shot backlog processing command.
package drain

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pestwatch/pestwatch/internal/annotate"
	"github.com/pestwatch/pestwatch/internal/backlog"
	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/datastore"
	"github.com/pestwatch/pestwatch/internal/detector"
	"github.com/pestwatch/pestwatch/internal/errors"
	"github.com/pestwatch/pestwatch/internal/imagestore"
	"github.com/pestwatch/pestwatch/internal/logging"
)

// Command creates the drain command, which processes every pending image
// once and exits.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process the pending backlog once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(cmd.Context(), settings)
		},
	}
}

func runDrain(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("drain")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return errors.New(err).
			Component("drain").
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

	renderer := annotate.NewRenderer(&settings.Pipeline.Annotation)
	processor := backlog.New(store, images, det, renderer, settings.Pipeline.Results.MaxCount)

	if ctx == nil {
		ctx = context.Background()
	}
	return processor.ProcessBacklog(ctx)
}
