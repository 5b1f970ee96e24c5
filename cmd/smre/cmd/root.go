// Package cmd provides the CLI commands for smre.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smre/internal/config"
	"github.com/Aman-CERP/smre/internal/logging"
	"github.com/Aman-CERP/smre/internal/profiling"
	"github.com/Aman-CERP/smre/pkg/version"
)

// Global flags
var (
	configPath     string
	debugMode      bool
	loggingCleanup func()

	profileCfg profiling.Config
	profiler   *profiling.Session
)

// NewRootCmd creates the root command for the smre CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smre",
		Short: "Hybrid retrieval over sport highlight moments",
		Long: `smre ranks sport highlight moments for a free-text query by fusing
BM25 keyword scores with dense-vector similarity. Years and tournament
stages mentioned in the query are applied as filters.

Typical flow:
  smre prepare --input raw.csv --output data/processed/moments.csv
  smre index
  smre search "federer final 2012"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("smre version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: smre.yaml in the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.smre/logs/")

	cmd.PersistentFlags().StringVar(&profileCfg.CPUPath, "profile-cpu", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileCfg.HeapPath, "profile-mem", "", "Write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileCfg.TracePath, "profile-trace", "", "Write an execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newPrepareCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRemoteIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts any requested profiles, then installs
// the file logger at the configured level. With --debug it logs at debug
// level and mirrors to stderr. Config errors are left for the command
// itself to report.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileCfg.Enabled() {
		p, err := profiling.Start(profileCfg)
		if err != nil {
			return err
		}
		profiler = p
	}

	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if cfg, err := loadConfig(); err == nil {
		logCfg.Level = cfg.Logging.Level
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging_started",
		slog.String("log_file", logCfg.FilePath),
		slog.String("version", version.Version))
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
		if err != nil {
			slog.Error("profile_write_failed", slog.String("error", err.Error()))
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the --config file, or the layered config for the
// working directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return config.Load(cwd)
}
