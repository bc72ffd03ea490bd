package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/vhamers/smile-monitor/internal/cmd"
)

var (
	// overridden during build
	version = "change-me"
)

func main() {
	// Local development convenience. A missing .env file is fine.
	_ = godotenv.Load()

	cmd.RootCmd.Version = version
	if err := cmd.RootCmd.Execute(); err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
}
