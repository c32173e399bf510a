package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/buildermatch/internal/config"
	sqliteRepo "github.com/sakif/buildermatch/internal/repository/sqlite"
	"github.com/sakif/buildermatch/internal/server"
)

// newRootCommand builds the CLI. Persistent flags are bound into v so that a
// flag given on the command line beats the environment and the config file.
func newRootCommand() *cobra.Command {
	v := config.NewViper()
	var configFile string

	cmd := &cobra.Command{
		Use:           "buildermatch",
		Short:         "buildermatch - find a builder to ship with",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")
	flags.String("db", "", "SQLite database path (database.path)")
	flags.String("log-level", "", "log level: debug, info, warn, error (log.level)")
	v.BindPFlag("database.path", flags.Lookup("db"))
	v.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(newServeCommand(v))
	cmd.AddCommand(newMigrateCommand(v))
	return cmd
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			if err := ensureDir(cfg.Database.Path); err != nil {
				return err
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}

			// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
			return srv.Start()
		},
	}

	cmd.Flags().Int("port", 0, "listen port (server.port)")
	cmd.Flags().String("base-url", "", "public URL used in emails and OAuth callbacks (server.base_url)")
	v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	v.BindPFlag("server.base_url", cmd.Flags().Lookup("base-url"))
	return cmd
}

// newMigrateCommand manages the schema without starting the server. It only
// needs database.path, so it skips the full config validation (no secrets
// required to run a migration).
func newMigrateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, roll back or inspect database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("database.path")
			if err := ensureDir(path); err != nil {
				return err
			}

			db, err := sqliteRepo.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				if err := db.MigrateUp(); err != nil {
					return err
				}
			case "down":
				if err := db.MigrateDown(); err != nil {
					return err
				}
			case "version":
			default:
				return fmt.Errorf("unknown migrate action %q (want up, down or version)", args[0])
			}

			version, dirty, err := db.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
	return cmd
}

// newLogger builds the slog logger.
//
// Development logs are human-readable text; production logs are JSON lines
// for the log collector.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

// ensureDir creates the database's parent directory (like `mkdir -p`).
func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
