package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/router"
	"inferd/internal/safety"
	"inferd/internal/session"
	"inferd/internal/thermal"
	"inferd/pkg/types"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		modelsDir  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Config{}
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if modelsDir != "" {
				cfg.ModelsDir = modelsDir
			}
			if cfg.Addr == "" {
				cfg.Addr = ":8080"
			}
			if cfg.ModelsDir == "" {
				cfg.ModelsDir = "~/models/llm"
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml/.json/.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	return cmd
}

// defaultLoadParams maps config tunables onto engine load parameters for the
// default-model autoload. Zero values defer to the per-class adaptation.
func defaultLoadParams(cfg config.Config) engine.LoadParams {
	return engine.LoadParams{
		ContextSize: cfg.ContextSize,
		Threads:     cfg.Threads,
	}
}

func runServe(cfg config.Config) error {
	logger := setupLogger(cfg)

	var reg []types.Model
	dir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err == nil && !fsutil.PathExists(dir) {
		logger.Warn().Str("dir", cfg.ModelsDir).Msg("models dir missing, starting with an empty registry")
	} else {
		reg, err = registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			return err
		}
	}
	logger.Info().Int("models", len(reg)).Str("dir", cfg.ModelsDir).Msg("registry loaded")

	provider := deviceProvider(cfg)
	thermalSig := thermal.NewSignal(thermal.StateNormal)

	rt := router.New(router.Options{
		Provider:     provider,
		Thermal:      thermalSig,
		Store:        router.NewMemoryStore(),
		Logger:       logger.With().Str("component", "router").Logger(),
		BenchmarkTTL: time.Duration(cfg.BenchmarkTTLHours) * time.Hour,
	})

	var filter safety.Filter = safety.AllowAll{}
	if len(cfg.SafetyBlocklist) > 0 {
		filter = safety.NewBlocklist(cfg.SafetyBlocklist)
	}

	mgr := session.New(session.Config{
		Engine:              engine.New(),
		Provider:            provider,
		Thermal:             thermalSig,
		Safety:              filter,
		Logger:              logger.With().Str("component", "session").Logger(),
		WindowTokens:        cfg.WindowTokens,
		SystemPrompt:        cfg.SystemPrompt,
		SafetyInterval:      cfg.SafetyInterval,
		ThermalPollInterval: time.Duration(cfg.ThermalPollSeconds) * time.Second,
		CriticalCooldown:    time.Duration(cfg.CriticalCooldownSec) * time.Second,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	if cfg.DefaultModel != "" {
		if mdl, ok := registry.Find(reg, cfg.DefaultModel); ok {
			if _, err := mgr.LoadModel(baseCtx, mdl, defaultLoadParams(cfg)); err != nil {
				logger.Warn().Err(err).Str("model_id", cfg.DefaultModel).Msg("default model load failed")
			}
		} else {
			logger.Warn().Str("model_id", cfg.DefaultModel).Msg("default model not in registry")
		}
	}

	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	if len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			[]string{"Accept", "Content-Type"})
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Service:  mgr,
		Backends: rt,
		Registry: reg,
		Thermal:  thermalSig,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Bool("llama_built", engine.Built()).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Unload(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("model unload on shutdown")
	}
	return nil
}
