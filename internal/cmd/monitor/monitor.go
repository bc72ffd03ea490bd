// Package monitor runs the long-lived monitor: a poller feeding a Prometheus
// collector, a health endpoint and, optionally, an MQTT publisher.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vhamers/smile-monitor/internal/collector"
	"github.com/vhamers/smile-monitor/internal/health"
	"github.com/vhamers/smile-monitor/internal/mqtt"
	"github.com/vhamers/smile-monitor/internal/poller"
	"github.com/vhamers/smile-monitor/pkg/smile"
	"github.com/vhamers/smile-monitor/pkg/smiletools"
	"golang.org/x/sync/errgroup"
)

var Cmd = cobra.Command{
	Use:   "monitor",
	Short: "Poll the gateway and export its readings",
	RunE:  monitor,
}

func monitor(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, viper.GetViper(), cmd.Root().Version, charmer.GetLogger(cmd))
}

func run(ctx context.Context, v *viper.Viper, version string, logger *slog.Logger) error {
	logger.Info("starting", slog.String("version", version))
	defer logger.Info("stopped")

	callMetrics := smiletools.NewSmileCallMetrics("smile", "monitor", nil)
	prometheus.MustRegister(callMetrics)

	client := smiletools.GetInstrumentedSmileClient(smile.Config{
		Host:     v.GetString("smile.host"),
		Port:     v.GetInt("smile.port"),
		Username: v.GetString("smile.username"),
		Password: v.GetString("smile.password"),
		Logger:   logger.With(slog.String("component", "smile")),
	}, callMetrics)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	caps := client.Capabilities()
	logger.Info("gateway identified",
		slog.String("name", caps.SmileName),
		slog.String("version", caps.SmileVersion),
	)

	p := poller.New(client, v.GetDuration("poller.interval"), logger.With(slog.String("component", "poller")))

	coll := collector.Collector{Poller: p, Logger: logger.With(slog.String("component", "collector"))}
	prometheus.MustRegister(&coll)

	h := health.New(p, logger.With(slog.String("component", "health")))
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", h)

	var g errgroup.Group
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error { return coll.Run(ctx) })
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return runServer(ctx, v.GetString("exporter.addr"), promhttp.Handler()) })
	g.Go(func() error { return runServer(ctx, v.GetString("health.addr"), healthMux) })

	if broker := v.GetString("mqtt.broker"); broker != "" {
		publisher := mqtt.New(mqtt.Config{
			Broker:    broker,
			Username:  v.GetString("mqtt.username"),
			Password:  v.GetString("mqtt.password"),
			BaseTopic: v.GetString("mqtt.topic"),
		}, p, logger.With(slog.String("component", "mqtt")))
		g.Go(func() error { return publisher.Run(ctx) })
	}

	return g.Wait()
}

func runServer(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
