// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pestwatch/pestwatch/cmd/cleanup"
	"github.com/pestwatch/pestwatch/cmd/drain"
	"github.com/pestwatch/pestwatch/cmd/serve"
	"github.com/pestwatch/pestwatch/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pestwatch",
		Short: "PestWatch insect monitoring service",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		drain.Command(settings),
		cleanup.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Pipeline.Backlog.Path, "backlog", viper.GetString("pipeline.backlog.path"), "Directory holding pending camera captures")
	cmd.PersistentFlags().StringVar(&settings.Pipeline.Results.Path, "results", viper.GetString("pipeline.results.path"), "Directory holding annotated result images")
	cmd.PersistentFlags().IntVar(&settings.Pipeline.Results.MaxCount, "maxresults", viper.GetInt("pipeline.results.maxcount"), "Retention cap on stored result images")
	cmd.PersistentFlags().StringVar(&settings.Pipeline.Model.Path, "model", viper.GetString("pipeline.model.path"), "Path to the detection model file")
	cmd.PersistentFlags().StringVar(&settings.Pipeline.Model.LabelsPath, "labels", viper.GetString("pipeline.model.labelspath"), "Path to the class labels file")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
