// Command sked records events and recurring templates and aggregates them from the command line.
//
// Usage:
//
//	sked [-config sked.yaml] <command> [flags]
//
// Run "sked help" for the list of commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/sked-go/config"
	"github.com/AntonStoeckl/sked-go/sked"
	"github.com/AntonStoeckl/sked-go/sked/sqlengine"
)

const (
	defaultConfigPath = "sked.yaml"
	configPathEnv     = "SKED_CONFIG"
)

var errUsage = errors.New("usage error")

// clock is replaced in tests.
var clock = time.Now

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}

		_, _ = fmt.Fprintln(os.Stderr, "sked:", err)

		if errors.Is(err, errUsage) {
			os.Exit(2)
		}

		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("sked", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(stderr) }

	configPath := global.String("config", configPathFromEnv(), "path to the YAML config file")

	if err := global.Parse(args); err != nil {
		return usageError(err)
	}

	if global.NArg() == 0 {
		printUsage(stderr)
		return fmt.Errorf("%w: missing command", errUsage)
	}

	name := global.Arg(0)
	if name == "help" {
		printUsage(stdout)
		return nil
	}

	cmd, ok := findCommand(name)
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd.run(ctx, a, global.Args()[1:], stdout)
}

func configPathFromEnv() string {
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}

	return defaultConfigPath
}

func usageError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}

	return errors.Join(errUsage, err)
}

// app holds everything a command needs.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	errOut    io.Writer
	location  *time.Location
	repo      *sqlengine.Repository
	engine    *sked.Engine
	closeDB   func()
	telemetry *telemetry
}

func newApp(ctx context.Context, cfg config.Config, logOutput io.Writer) (*app, error) {
	logger := cfg.NewLogger(logOutput)

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, closeDB, err := config.OpenRepository(
		ctx,
		cfg.Database,
		sqlengine.WithLogger(logger),
		sqlengine.WithClock(clock),
	)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	engineOptions := []sked.Option{
		sked.WithClock(clock),
		sked.WithLocation(location),
		sked.WithMaxTemplates(cfg.Engine.MaxTemplates),
		sked.WithLogger(logger),
	}

	tel, err := newTelemetry(cfg.Telemetry, logOutput)
	if err != nil {
		closeDB()
		return nil, err
	}

	if collector := tel.metricsCollector(); collector != nil {
		engineOptions = append(engineOptions, sked.WithMetrics(collector))
	}

	engine, err := sked.NewEngine(repo, repo, engineOptions...)
	if err != nil {
		tel.shutdown(ctx, logger)
		closeDB()
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		errOut:    logOutput,
		location:  location,
		repo:      repo,
		engine:    engine,
		closeDB:   closeDB,
		telemetry: tel,
	}, nil
}

func (a *app) close() {
	a.telemetry.shutdown(context.Background(), a.logger)
	a.closeDB()
}

// today is the current date in the configured timezone.
func (a *app) today() sked.Date {
	return a.engine.Today()
}
