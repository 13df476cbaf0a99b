// Package cleanup implements the one-shot result retention command.
package cleanup

import (
	"github.com/spf13/cobra"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/diskmanager"
	"github.com/pestwatch/pestwatch/internal/logging"
)

// Command creates the cleanup command, which applies the result retention
// cap once and exits.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the result image retention cap and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := diskmanager.CountBasedCleanup(
				settings.Pipeline.Results.Path, settings.Pipeline.Results.MaxCount)
			if err != nil {
				return err
			}
			logging.ForService("cleanup").Info("retention applied",
				"deleted", deleted,
				"max_count", settings.Pipeline.Results.MaxCount)
			return nil
		},
	}
}
