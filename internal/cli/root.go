// Package cli implements the chorewheel command line.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/config"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/logging"
)

// RootOptions holds settings shared by every command. Config comes from
// the environment; the persistent flags override it.
type RootOptions struct {
	Config    config.Config
	DBPath    string
	LogLevel  string
	LogFormat string

	Logger *slog.Logger
}

// NewRootCommand creates the chorewheel root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chorewheel",
		Short: "Recurring household chores with rotating assignees",
		Long: `chorewheel turns recurring chore definitions into dated occurrences,
rotates them between family members, and awards points on completion.

Settings are read from CHOREWHEEL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides CHOREWHEEL_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides CHOREWHEEL_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "text|json (overrides CHOREWHEEL_LOG_FORMAT)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMaterializeCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	o.Config = cfg
	o.Logger = logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (o *RootOptions) openDB() (*sql.DB, error) {
	db, err := database.Open(o.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", o.Config.DBPath, err)
	}
	return db, nil
}
