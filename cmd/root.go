// Package cmd defines the xllinks command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/app"
	"github.com/JakeFAU/xllinks/internal/config"
	"github.com/JakeFAU/xllinks/internal/logging"
	"github.com/JakeFAU/xllinks/internal/manifest"
)

// newRootCmd creates the root command. cfgFile is bound to --config.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "xllinks <links.lnx> <target.xlsx> <sheet>",
		Short: "Probe the links of HTML documents and record them in a workbook.",
		Long: `xllinks reads a .lnx manifest of local HTML documents, probes every
absolute http(s) link they contain, and appends the links that answer 200 to
the named sheet of an xlsx workbook. Other links go to unprocessed.lnx next to
the manifest; the stamp file there tracks progress and ends with DONE.`,
		Args:          validateArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), cfgFile, args)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (YAML); XLLINKS_* env vars override it")
	return cmd
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(3)(cmd, args); err != nil {
		return err
	}
	if !manifest.IsManifest(args[0]) {
		return fmt.Errorf("first argument must be a %s manifest, got %q", manifest.Extension, args[0])
	}
	return nil
}

func run(ctx context.Context, cfgFile string, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a := app.New(cfg, logger)
	_, err = a.Run(ctx, app.Args{Manifest: args[0], Workbook: args[1], Sheet: args[2]})
	if err != nil {
		if app.IsFatal(err) {
			logger.Error("run aborted", zap.String("run_id", a.RunID()), zap.Error(err))
		}
		return fmt.Errorf("run %s: %w", a.RunID(), err)
	}
	return nil
}

// Execute runs the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the run between links.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
