// Package serve implements the main service command.
package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/server"
)

// Command creates the serve command, which runs the backlog processor and
// the web dashboard until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring service",
		Long:  "Start the backlog processor and the web dashboard, ingesting camera captures until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web dashboard")
	cmd.Flags().StringVar(&settings.Camera.Host, "camerahost", viper.GetString("camera.host"), "Base URL of the camera device")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
