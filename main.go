package main

import (
	"log/slog"

	"github.com/pestwatch/pestwatch/cmd"
	"github.com/pestwatch/pestwatch/internal/conf"
	"github.com/pestwatch/pestwatch/internal/logging"
)

func main() {
	settings := conf.Setting()

	level := logging.ParseLevel(settings.Main.Log.Level)
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		// Text to stderr for the operator, structured fatal for collectors.
		logging.HumanReadable().Error("command failed", "error", err)
		logging.Fatal("command failed", "error", err)
	}
}
