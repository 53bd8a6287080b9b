package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vybium/vybium-zkvm/internal/vybium-zkvm/utils"
)

var (
	fConfigPath  string
	fDebug       bool
	fMetricsAddr string
	fRoot        string

	cfg    *utils.Config
	logger *zap.Logger

	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:           "vybium-zkvm-host",
	Short:         "prove and verify guest programs on the Vybium zkVM",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if fConfigPath != "" {
			cfg, err = utils.LoadConfig(fConfigPath)
			if err != nil {
				return err
			}
		} else {
			cfg = utils.DefaultConfig()
		}
		if fRoot != "" {
			cfg.WithWorkspaceRoot(fRoot)
		}
		if fDebug {
			cfg.Log.Level = "debug"
			cfg.Log.Development = true
		}

		logger, err = utils.NewLogger(cfg.Log)
		if err != nil {
			return err
		}

		if fMetricsAddr != "" {
			serveMetrics(fMetricsAddr)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fConfigPath, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&fDebug, "debug", false, "enable development logging at debug level")
	rootCmd.PersistentFlags().StringVar(&fMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&fRoot, "root", "", "workspace root; discovered when empty")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(buildGuestCmd)
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := executeRoot(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// executeRoot runs the root command and releases what PersistentPreRunE
// started, whether or not the command succeeded
func executeRoot() error {
	defer shutdown()
	return rootCmd.Execute()
}

func shutdown() {
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
		metricsServer = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	metricsServer = srv

	log := logger
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}
