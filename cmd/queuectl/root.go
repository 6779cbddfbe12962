package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	amqphook "github.com/xraph/queuectl/amqp_hook"
	audithook "github.com/xraph/queuectl/audit_hook"
	"github.com/xraph/queuectl/config"
	"github.com/xraph/queuectl/engine"
	"github.com/xraph/queuectl/store"
	mongostore "github.com/xraph/queuectl/store/mongo"
	"github.com/xraph/queuectl/store/postgres"
	redisstore "github.com/xraph/queuectl/store/redis"
	"github.com/xraph/queuectl/store/sqlite"
)

// app carries the global flags and the state built from them.
type app struct {
	configPath string
	backend    string
	dsn        string
	logLevel   string
	logFormat  string
	auditLog   string

	logger *slog.Logger
	file   *config.File
	cfg    config.Provider
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "queuectl",
		Short:        "A CLI-based background job queue",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.DefaultPath(), "config file path")
	f.StringVar(&a.backend, "store", "", "store backend: "+strings.Join(config.Backends, ", "))
	f.StringVar(&a.dsn, "dsn", "", "store connection string")
	f.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&a.auditLog, "audit-log", "", "append job lifecycle events as JSON lines to this file")

	root.AddCommand(
		newEnqueueCmd(a),
		newListCmd(a),
		newStatusCmd(a),
		newWorkerCmd(a),
		newDLQCmd(a),
		newConfigCmd(a),
		newServeCmd(a),
	)
	return root
}

// init builds the logger and the config chain: flags, then environment,
// then the config file.
func (a *app) init(cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	file, err := config.OpenFile(a.configPath)
	if err != nil {
		return err
	}
	a.file = file

	flags := config.Map{}
	if a.backend != "" {
		flags[config.KeyStore] = a.backend
	}
	if a.dsn != "" {
		flags[config.KeyDSN] = a.dsn
	}
	a.cfg = config.Chain(flags, config.Env(), file)
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// open resolves the config, connects the configured store and builds an
// engine on it. The returned func releases everything.
func (a *app) open(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := config.Resolve(a.cfg)
	if err != nil {
		return nil, nil, err
	}

	backend, dsn := config.Backend(a.cfg)
	s, err := a.openStore(ctx, backend, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(a.logger),
	}

	var events *amqphook.Channel
	if url, exchange := config.Events(a.cfg); url != "" {
		events, err = amqphook.Dial(url, exchange)
		if err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		opts = append(opts, engine.WithExtension(amqphook.New(events, amqphook.WithLogger(a.logger))))
	}

	var audit *os.File
	if a.auditLog != "" {
		audit, err = os.OpenFile(a.auditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			if events != nil {
				_ = events.Close()
			}
			_ = s.Close()
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		rec := audithook.NewJSONRecorder(audit)
		opts = append(opts, engine.WithExtension(audithook.New(rec, audithook.WithLogger(a.logger))))
	}

	eng, err := engine.New(s, opts...)
	if err != nil {
		if audit != nil {
			_ = audit.Close()
		}
		if events != nil {
			_ = events.Close()
		}
		_ = s.Close()
		return nil, nil, err
	}

	release := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := eng.Close(closeCtx); err != nil {
			a.logger.Warn("engine close", slog.String("error", err.Error()))
		}
		if events != nil {
			_ = events.Close()
		}
		if audit != nil {
			_ = audit.Close()
		}
		if err := s.Close(); err != nil {
			a.logger.Warn("store close", slog.String("error", err.Error()))
		}
	}
	return eng, release, nil
}

// Default DSNs for backends that can run without one.
const (
	defaultRedisURL = "redis://localhost:6379/0"
	defaultMongoURI = "mongodb://localhost:27017"
)

func (a *app) openStore(ctx context.Context, backend, dsn string) (store.Store, error) {
	switch backend {
	case "sqlite":
		if dsn == "" {
			dsn = filepath.Join(filepath.Dir(a.configPath), "queue.db")
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		return sqlite.Open(dsn, sqlite.WithLogger(a.logger))
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("%w: the postgres store needs --dsn", queuectl.ErrInvalidConfig)
		}
		return postgres.New(ctx, dsn, postgres.WithLogger(a.logger))
	case "redis":
		if dsn == "" {
			dsn = defaultRedisURL
		}
		return redisstore.Open(dsn, redisstore.WithLogger(a.logger))
	case "mongo":
		if dsn == "" {
			dsn = defaultMongoURI
		}
		return mongostore.Open(dsn, "", mongostore.WithLogger(a.logger))
	default:
		return nil, fmt.Errorf("%w: unknown store %q", queuectl.ErrInvalidConfig, backend)
	}
}

// withEngine runs fn against a freshly opened engine.
func (a *app) withEngine(cmd *cobra.Command, fn func(context.Context, *engine.Engine) error) error {
	ctx := cmd.Context()
	eng, release, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = fn(ctx, eng)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
