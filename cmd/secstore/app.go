package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mwantia/secstore"
	"github.com/mwantia/secstore/backend"
	"github.com/mwantia/secstore/backend/readonly"
	"github.com/mwantia/secstore/config"
	"github.com/mwantia/secstore/log"
	"github.com/mwantia/secstore/metrics"
	"github.com/urfave/cli/v3"
)

const defaultConfigFile = "secstore.yaml"

// app carries state shared between the root command and its subcommands.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func NewApp() *cli.Command {
	a := &app{}

	return &cli.Command{
		Name:  "secstore",
		Usage: "Hierarchical storage for credentials, certificates and configuration secrets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   defaultConfigFile,
				Sources: cli.EnvVars("SECSTORE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.putCommand(),
			a.getCommand(),
			a.rmCommand(),
			a.duCommand(),
			a.lsCommand(),
			a.dfCommand(),
			a.cpCommand(),
			a.mvCommand(),
			a.exportMetaCommand(),
			a.reinitCommand(),
			a.verifyCommand(),
			a.serveCommand(),
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	a.cfg = config.NewDefaultConfig()

	path := cmd.String("config")
	if err := config.Load(path, a.cfg); err != nil {
		// A missing default config file keeps the defaults
		if cmd.IsSet("config") || !errors.Is(err, fs.ErrNotExist) {
			return ctx, err
		}
	}

	if cmd.Bool("verbose") {
		a.cfg.Log.Level = log.Debug
	}

	// Command output goes to stdout, so logs go to stderr
	a.logger = log.NewWithWriter("secstore", a.cfg.Log.Level, os.Stderr)
	return ctx, nil
}

// openEngine creates and opens the configured engine. The returned function
// closes it again. A read-only engine never touches the metadata backend and
// rebuilds its records from storage instead.
func (a *app) openEngine(ctx context.Context, logger *log.Logger, m *metrics.Metrics, readOnly bool) (*secstore.Engine, func(), error) {
	storage, err := config.NewStorageBackend(&a.cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	var metadata backend.MetadataBackend
	if readOnly {
		storage = readonly.NewReadOnly(storage)
	} else {
		metadata, err = config.NewMetadataBackend(&a.cfg.Metadata, storage)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []secstore.Option{
		secstore.WithLogger(logger),
		secstore.WithMetrics(m),
	}
	if metadata != nil {
		opts = append(opts, secstore.WithMetadataBackend(metadata))
	}

	engine, err := secstore.New(storage, opts...)
	if err != nil {
		return nil, nil, err
	}

	if err := engine.Open(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	closer := func() {
		if err := engine.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close storage: %v", err)
		}
	}

	return engine, closer, nil
}

// withEngine runs fn against a freshly opened engine.
func (a *app) withEngine(ctx context.Context, fn func(engine *secstore.Engine) error) error {
	return a.runEngine(ctx, false, fn)
}

// withReadOnlyEngine is withEngine for commands that only inspect storage.
func (a *app) withReadOnlyEngine(ctx context.Context, fn func(engine *secstore.Engine) error) error {
	return a.runEngine(ctx, true, fn)
}

func (a *app) runEngine(ctx context.Context, readOnly bool, fn func(engine *secstore.Engine) error) error {
	engine, closer, err := a.openEngine(ctx, a.logger, nil, readOnly)
	if err != nil {
		return err
	}
	defer closer()

	return fn(engine)
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return fmt.Errorf("%s requires %d argument(s): %s", cmd.Name, n, cmd.ArgsUsage)
	}

	return nil
}
