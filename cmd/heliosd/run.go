package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/corerr"
	"github.com/heliosproxy/helios/pkg/server"
	"github.com/heliosproxy/helios/pkg/telemetry/logging"
)

var runFlags struct {
	configPath       string
	adminAddressPath string
	restartEpoch     int
	concurrency      int
	flushIntervalMs  int
	flagsPath        string
	restartBase      string
	storePath        string
	logLevel         string
	logFormat        string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy's supervisory core",
	Long: `Start the supervisory core: load configuration, bind or inherit every
listener, spawn the worker threads, and run until SIGTERM, /quitquitquit,
or a drain-triggered exit.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.configPath, "config", "", "configuration file path (required)")
	runCmd.Flags().StringVar(&runFlags.adminAddressPath, "admin-address-path", "", "file to write the bound admin address to")
	runCmd.Flags().IntVar(&runFlags.restartEpoch, "restart-epoch", 0, "hot-restart epoch; 0 means no parent")
	runCmd.Flags().IntVar(&runFlags.concurrency, "concurrency", 1, "number of worker threads")
	runCmd.Flags().IntVar(&runFlags.flushIntervalMs, "file-flush-interval-ms", 1000, "log file flush interval in milliseconds")
	runCmd.Flags().StringVar(&runFlags.flagsPath, "flags-path", "", "directory watched for the drain server-flag")
	runCmd.Flags().StringVar(&runFlags.restartBase, "hot-restart-base-path", "/tmp/helios_hot_restart", "base path for the hot-restart Unix-domain sockets")
	runCmd.Flags().StringVar(&runFlags.storePath, "hot-restart-store-path", "", "sqlite path for persisted hot-restart state (defaults to none)")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.logFormat, "log-format", "json", "log format (json, text, console)")

	runCmd.MarkFlagRequired("config")
}

func runServer(cmd *cobra.Command, args []string) error {
	opts := config.Options{
		ConfigPath:            runFlags.configPath,
		AdminAddressPath:      runFlags.adminAddressPath,
		RestartEpoch:          runFlags.restartEpoch,
		Concurrency:           runFlags.concurrency,
		FileFlushIntervalMsec: runFlags.flushIntervalMs,
		FlagsPath:             runFlags.flagsPath,
	}
	if err := config.ValidateOptions(opts); err != nil {
		return err
	}

	if err := config.Initialize(opts.ConfigPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	logger, err := logging.New(logging.Config{
		Level:  runFlags.logLevel,
		Format: runFlags.logFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	inst, err := server.New(opts, cfg, server.Deps{
		BuildSHA:    GitCommit,
		Logger:      logger,
		RestartBase: runFlags.restartBase,
		StorePath:   runFlags.storePath,
	})
	if err != nil {
		var bindErr *corerr.BindRaceError
		if errors.As(err, &bindErr) {
			// Another process won this listener's bind race. Raise SIGTERM
			// at ourselves rather than exiting hard, so a supervisor sees
			// the same signal-driven exit it would see from a normal
			// shutdown rather than a crash.
			logger.Warn("listener bind race, shutting down", "listener", bindErr.ListenerName, "error", err)
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
			return nil
		}
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	if opts.AdminAddressPath != "" {
		if err := os.WriteFile(opts.AdminAddressPath, []byte(inst.AdminAddr()), 0o644); err != nil {
			logger.Warn("failed to write admin address path", "error", err)
		}
	}

	logger.Info("heliosd starting",
		"restart_epoch", opts.RestartEpoch,
		"concurrency", opts.Concurrency,
		"version", inst.Version(),
	)

	inst.Run()
	logger.Info("heliosd exited cleanly")
	return nil
}
