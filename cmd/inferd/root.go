package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/device"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "On-device LLM inference orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newBenchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the inferd version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("inferd " + version)
		},
	}
}

// setupLogger builds the process logger from config.
func setupLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// deviceProvider builds the capability-snapshot provider from config,
// defaulting to a CPU-only mid-range profile.
func deviceProvider(cfg config.Config) *device.StaticProvider {
	caps := make([]device.Capability, 0, len(cfg.Device.Capabilities))
	for _, c := range cfg.Device.Capabilities {
		caps = append(caps, device.Capability(strings.ToLower(strings.TrimSpace(c))))
	}
	if len(caps) == 0 {
		caps = []device.Capability{device.CapNEON}
	}
	return device.NewStaticProvider(device.Profile{
		SoC:            device.ParseSoCVendor(cfg.Device.SoCVendor),
		GPU:            cfg.Device.GPU,
		TotalRAMMB:     cfg.Device.TotalRAMMB,
		AvailableRAMMB: cfg.Device.AvailableRAMMB,
		AndroidAPI:     cfg.Device.AndroidAPI,
		Class:          device.ParseClass(cfg.Device.Class),
		Cores:          cfg.Device.Cores,
		Capabilities:   caps,
	})
}
