package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imkarrer/jumpgate/internal/config"
	"github.com/spf13/cobra"
)

func NewCommand(version, gitCommit, gitRef string) *cobra.Command {
	var configPath string

	command := &cobra.Command{
		Use:   "server",
		Short: "Run the volume API server",
		Run: func(cmd *cobra.Command, args []string) {
			run(configPath, version, gitCommit, gitRef)
		},
	}
	command.Flags().StringVar(&configPath, "config", "", "Path to an optional yaml config file")

	return command
}

func run(configPath, version, gitCommit, gitRef string) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	app := New(Config{
		Version:               version,
		GitCommit:             gitCommit,
		GitRef:                gitRef,
		LogLevel:              cfg.Log.Level,
		LogRateInterval:       100 * time.Millisecond,
		LogRateBurst:          100,
		HTTPListenPort:        cfg.HTTPListenPort,
		MetricsHTTPListenPort: cfg.MetricsHTTPListenPort,
		PprofPort:             cfg.PprofPort,
		SoftLayer:             cfg.SoftLayer,
		Volume:                cfg.Volume,
	})
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
