package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/config"
	"github.com/samaelod/fixdesk/connection"
	"github.com/samaelod/fixdesk/engine"
	"github.com/samaelod/fixdesk/logging"
	"github.com/samaelod/fixdesk/lua"
	"github.com/samaelod/fixdesk/metrics"
	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/tui"
	"github.com/samaelod/fixdesk/types"
)

var rootCmd = &cobra.Command{
	Use:     "fixdesk",
	Short:   "fixdesk is a terminal desk for FIX sessions",
	Long:    `fixdesk opens a FIX session as initiator or acceptor, shows decoded traffic and sends hand-written messages.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesk(cmd)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default fixdesk.yaml or ~/.config/fixdesk/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")

	rootCmd.Flags().String("profile", "", "Lua profile file to preload into the connect form")
	rootCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
}

// loadConfig applies the persistent flags on top of the config file. A .env
// file in the working directory may supply FIXDESK_* variables.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func runDesk(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	logs := logging.NewBuffer(logging.FileName(cfg.LogsDir, time.Now()), cfg.LogLines)
	defer logs.Close()

	log, err := logging.New(cfg.LogLevel, logs)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("fixdesk starting", zap.String("version", version), zap.String("log_file", logs.Path()))

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	newEngine := engine.Factory(log)
	roleOpts := session.Options{
		RefreshInterval: cfg.Sequence.RefreshInterval,
		Settings:        cfg.EngineSettings(),
		Logger:          log,
	}
	mgr := connection.NewManager(connection.Options{
		NewRole: func(ep types.SessionEndpoint) session.Role {
			return session.New(ep, newEngine(), roleOpts)
		},
		Logger:           log,
		Metrics:          m,
		DispatchInterval: cfg.Dispatch.Interval,
		MaxAttempts:      cfg.Dispatch.MaxAttempts,
	})

	deps := tui.Deps{Manager: mgr, Config: cfg, Logs: logs, Logger: log}
	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		profiles, err := lua.ReadProfiles(path)
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		deps.Profiles = profiles
		deps.ProfilePath = path
	}

	runErr := tui.Run(version, deps)

	if err := mgr.Shutdown(cfg.ShutdownGrace); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	log.Info("fixdesk stopped")
	return runErr
}
