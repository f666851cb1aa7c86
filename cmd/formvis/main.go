// Command formvis evaluates widget visibility rules of Activiti task forms.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dlovans/formvis/internal/config"
	"github.com/dlovans/formvis/internal/tracing"
)

var version = "dev"

// app carries what the root command sets up for its subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	shutdown tracing.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "formvis",
		Short: "Evaluate visibility rules of task forms",
		Long: `formvis computes which fields and tabs of an Activiti form are visible,
given the form values, form variables and process variables.

Examples:
  formvis eval --vars vars.json form.json
  cat form.json | formvis eval --output yaml
  formvis lint form.json
  formvis fetch --task 42 --config formvis.yaml
  formvis watch --vars vars.yaml form.json`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.Version = version

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (formvis.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newEvalCmd(a), newLintCmd(a), newFetchCmd(a), newWatchCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	if cfg.Trace.File != "" {
		_, shutdown, err := tracing.Init("formvis", version, cfg.Trace.File)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.shutdown = shutdown
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.logger.Warn("trace shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
