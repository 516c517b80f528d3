package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/store"
	"github.com/roach88/erdsync/internal/store/pgstore"
)

// loadConfig resolves the effective configuration for a command: defaults,
// then the config file, then the env file and ERDSYNC_* variables, then
// the store flags the user actually set.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.ApplyEnv(opts.EnvFile); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid environment", err)
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Store.Driver = opts.Driver
	}
	if flags.Changed("db") {
		cfg.Store.Path = opts.DBPath
		if !flags.Changed("driver") {
			cfg.Store.Driver = config.DriverSQLite
		}
	}
	if flags.Changed("dsn") {
		cfg.Store.DSN = opts.DSN
		if !flags.Changed("driver") {
			cfg.Store.Driver = config.DriverPostgres
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// setupLogging installs a text slog handler on w. --verbose forces debug.
func setupLogging(cfg config.Config, verbose bool, w io.Writer) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// openStore opens the configured backing store.
func openStore(ctx context.Context, sc config.StoreConfig) (store.DiagramStore, error) {
	switch sc.Driver {
	case config.DriverSQLite:
		slog.Info("opening database", "driver", sc.Driver, "path", sc.Path)
		st, err := store.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		slog.Info("opening database", "driver", sc.Driver)
		st, err := pgstore.Open(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		slog.Warn("using in-memory store; diagrams are lost on exit")
		return store.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// withStore loads config, configures logging, opens the store and calls
// fn. The store is closed afterwards.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, st store.DiagramStore) error) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.Verbose, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	return fn(ctx, cfg, st)
}

// notFound converts store.ErrNotFound into a command error.
func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("diagram %s not found", id), err)
	}
	return WrapExitError(ExitCommandError, "store error", err)
}
