// Package dump implements a one-shot snapshot dump, mainly useful to check
// connectivity and see what the gateway reports.
package dump

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vhamers/smile-monitor/pkg/smile"
	"gopkg.in/yaml.v3"
)

var Cmd = cobra.Command{
	Use:   "dump",
	Short: "Fetch one snapshot and print it as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), viper.GetViper(), os.Stdout)
	},
}

func run(ctx context.Context, v *viper.Viper, w io.Writer) error {
	// This command is interactive: colored logs on stderr, snapshot on
	// stdout.
	opts := tint.Options{Level: slog.LevelInfo}
	if v.GetBool("debug") {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &opts))

	client := smile.New(smile.Config{
		Host:     v.GetString("smile.host"),
		Port:     v.GetInt("smile.port"),
		Username: v.GetString("smile.username"),
		Password: v.GetString("smile.password"),
		Logger:   logger,
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	snapshot, err := client.Update(ctx)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(snapshot)
}
