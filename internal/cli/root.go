// Package cli implements the wisdom CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/wisdom/internal/catalog"
	"github.com/rcliao/wisdom/internal/config"
	"github.com/rcliao/wisdom/internal/remote"
	"github.com/rcliao/wisdom/internal/store"
	"github.com/rcliao/wisdom/internal/syncer"
	"github.com/rcliao/wisdom/internal/wisdom"
)

var (
	dbPath      string
	configPath  string
	catalogPath string
	logLevel    string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "wisdom",
	Short: "Daily quotes and saved reflections",
	Long:  "Serve weighted-random quotes, save reflections on them locally, and sync them to Supabase when configured.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $WISDOM_DB or ~/.wisdom/wisdom.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.wisdom/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Quote catalog YAML (default: bundled)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig layers flags over the file and environment settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	if logLevel != "" {
		cfg.LogLevel = strings.ToLower(logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *wisdom.Engine
	metrics *syncer.Metrics

	closeOnce sync.Once
}

// openApp wires config, logging, storage, the catalog and the remote
// client. reg may be nil.
func openApp(ctx context.Context, reg prometheus.Registerer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	backend, err := store.NewSQLiteBackend(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	rc, err := remote.New(cfg.RemoteClientConfig(), st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	metrics := syncer.NewMetrics(reg)
	e := wisdom.New(cat, st, rc, wisdom.Options{Logger: logger, Metrics: metrics})
	return &app{cfg: cfg, logger: logger, engine: e, metrics: metrics}, nil
}

// openEngine is openApp for commands that need nothing but the engine.
func openEngine(cmd *cobra.Command) *app {
	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	return a
}

// Close flushes pending pushes and reports any that failed.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if err := a.engine.Close(); err != nil {
			a.logger.Error("close", zap.Error(err))
		}
		for err := range a.engine.PushErrors() {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		_ = a.logger.Sync()
	})
}

// exitErr closes the app before exiting so queued pushes still go out.
func (a *app) exitErr(msg string, err error) {
	a.Close()
	exitErr(msg, err)
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func textOutput() bool { return formatFlag == "text" }

func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

var osExit = os.Exit

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	osExit(1)
}
