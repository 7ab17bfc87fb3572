package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/courseswap/internal/config"
	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
	"github.com/roach88/courseswap/internal/tracing"
)

// app is everything a command needs to talk to the engine. Commands open
// one per invocation and close it on return.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	engine  *engine.Engine
	tracing *tracing.Provider
	logFile io.Closer
}

// loadConfig resolves configuration from file, environment and flags.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	if f := cmd.Flags().Lookup("db"); f != nil {
		if err := v.BindPFlag("db", f); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(v, opts.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr, in JSON when the
// output format is JSON, and are mirrored to a rotating file when
// log.file is set.
func newLogger(cfg config.LogConfig, format string, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w, closer = io.MultiWriter(stderr, rotating), rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), closer, nil
}

// openApp loads configuration and opens the store, tracer and engine.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}

	logger, logFile, err := newLogger(cfg.Log, opts.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log configuration", err)
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, logFile: logFile}

	a.tracing, err = tracing.NewProvider(cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure tracing", err)
	}

	logger.Debug("opening database", "path", cfg.DB)
	a.store, err = store.Open(cfg.DB)
	if err != nil {
		a.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var kv store.KV = a.store
	if cfg.Cache.TTL >= 0 {
		kv = store.NewCached(a.store, cfg.Cache.TTL)
	}

	a.engine = engine.New(kv,
		engine.WithRefundOnAccept(cfg.Engine.RefundOnAccept),
		engine.WithTracer(a.tracing.Tracer()),
		engine.WithLogger(logger),
	)
	return a, nil
}

// Close flushes spans and releases the store and log file.
func (a *app) Close() {
	if a.tracing != nil {
		if err := a.tracing.Shutdown(context.Background()); err != nil {
			a.logger.Error("error flushing spans", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("error closing database", "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// withApp opens an app for the duration of fn.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

// callerFlag registers the --as flag shared by every mutating command.
func callerFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "as", "", "calling account (@handle or 64-hex id)")
	_ = cmd.MarkFlagRequired("as")
}

// resolveAccount parses a command-line account argument.
func resolveAccount(flag, s string) (ir.AccountID, error) {
	id, err := ir.ResolveAccount(s)
	if err != nil {
		return ir.AccountID{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", flag), err)
	}
	return id, nil
}

// resolveCourse parses a command-line course argument: a name, or a hex
// id.
func resolveCourse(flag, s string) (ir.CourseID, error) {
	id, err := ir.ResolveCourse(s)
	if err != nil {
		return ir.CourseID{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", flag), err)
	}
	return id, nil
}

// dispatch runs one engine command and maps its error for the exit code.
func dispatch(ctx context.Context, a *app, call engine.Call, cmd engine.Command) (any, error) {
	res, err := a.engine.Dispatch(ctx, call, cmd)
	if err != nil {
		return nil, commandError(err)
	}
	return res, nil
}

// commandError maps an engine error to an exit error. Domain errors are
// command failures (exit 1); anything else is an environment problem.
func commandError(err error) error {
	if kind := ir.KindOf(err); kind != "" {
		return &ExitError{Code: ExitFailure, Kind: string(kind), Message: err.Error(), Err: err}
	}
	return WrapExitError(ExitCommandError, "engine error", err)
}
