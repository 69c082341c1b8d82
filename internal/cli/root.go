// Package cli implements the pollution-tracker command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/pollution-reports/internal/config"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/storage"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	fs      afero.Fs
	dataDir string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCmd builds the command tree. Report data is read from and written to fs.
func NewRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	root := &cobra.Command{
		Use:               "pollution-tracker",
		Short:             "Record and review local pollution reports",
		Long:              "Record pollution observations per district, filter them, and follow the running average severity.",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Directory holding the report collection (overrides DATA_DIR)")

	root.AddCommand(
		newServeCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
		newSummaryCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFs(a.fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	a.cfg = cfg

	// One-shot commands keep stdout for their output.
	level := cfg.LogLevel
	if !strings.EqualFold(level, "debug") {
		level = "warn"
	}
	a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), "text", level)
	return nil
}

// openStore loads the persisted collection from the configured data dir.
func (a *app) openStore(ctx context.Context, logger *slog.Logger, metrics *observability.Metrics, opts ...store.Option) (*store.Store, error) {
	kv, err := storage.NewFileKV(a.fs, a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	adapter := storage.NewAdapter(kv, a.cfg.StoreKey, logger)
	return store.New(ctx, adapter, logger, metrics, opts...), nil
}
