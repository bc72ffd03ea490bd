package cmd

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vhamers/smile-monitor/internal/cmd/dump"
	"github.com/vhamers/smile-monitor/internal/cmd/monitor"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "smile",
		Short: "Monitor for Plugwise Smile gateways",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&monitor.Cmd, &dump.Cmd)
}

var args = charmer.Arguments{
	"debug":           charmer.Argument{Default: false, Help: "Log debug messages"},
	"smile.host":      charmer.Argument{Default: "", Help: "Gateway IP address or hostname"},
	"smile.port":      charmer.Argument{Default: 80, Help: "Gateway HTTP port"},
	"smile.username":  charmer.Argument{Default: "smile", Help: "Gateway username"},
	"smile.password":  charmer.Argument{Default: "", Help: "Smile ID printed on the gateway"},
	"poller.interval": charmer.Argument{Default: 60 * time.Second, Help: "Poller interval"},
	"exporter.addr":   charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":     charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"mqtt.broker":     charmer.Argument{Default: "", Help: "MQTT broker URL. Empty disables MQTT"},
	"mqtt.username":   charmer.Argument{Default: "", Help: "MQTT username"},
	"mqtt.password":   charmer.Argument{Default: "", Help: "MQTT password"},
	"mqtt.topic":      charmer.Argument{Default: "smile", Help: "MQTT base topic"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/smile-monitor/")
		viper.AddConfigPath("$HOME/.smile-monitor")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("SMILE_MONITOR")
	viper.AutomaticEnv()

	// A config file is optional: everything can come from flags or the
	// environment.
	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
