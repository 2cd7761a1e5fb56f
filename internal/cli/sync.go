package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/wisdom/internal/syncer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile reflections with the remote service",
		Long: "Pull remote reflections, merge them by id (the most recent edit wins), save locally and push the result. " +
			"With --watch, keep syncing on an interval until interrupted.",
		Run: runSync,
	}

	cmd.Flags().Bool("watch", false, "Keep syncing until interrupted")
	cmd.Flags().Duration("interval", 0, "Sync interval with --watch (default: sync.interval from config)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address with --watch (e.g. :9464)")

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	reg := prometheus.NewRegistry()
	a, err := openApp(cmd.Context(), reg)
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if !watch {
		res := a.engine.SyncNow(cmd.Context())
		printJSON(cmd, res)
		if !res.Success {
			a.Close()
			osExit(1)
		}
		return
	}

	if interval <= 0 {
		interval = a.cfg.Sync.Interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	err = a.engine.Orchestrator().Run(ctx, interval, func(res syncer.Result) {
		printJSON(cmd, res)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.exitErr("sync", err)
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}
