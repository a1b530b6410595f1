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
	"strings"
	"syscall"
	"time"

	"github.com/l0p7/objectprobe/internal/config"
	"github.com/l0p7/objectprobe/internal/executor"
	"github.com/l0p7/objectprobe/internal/fakeapi"
	"github.com/l0p7/objectprobe/internal/lifecycle"
	"github.com/l0p7/objectprobe/internal/logging"
	"github.com/l0p7/objectprobe/internal/metrics"
	"github.com/l0p7/objectprobe/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	exitPassed = 0
	exitFailed = 1
	exitSetup  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, loads configuration and dispatches to the probe, list or
// serve mode. The returned value is the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("objectprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile  = fs.String("config", "", "path to configuration file (yaml, json or toml)")
		envPrefix   = fs.String("env-prefix", "OBJECTPROBE", "environment variable prefix")
		runFilter   = fs.String("run", "", "regular expression selecting scenarios by name")
		listOnly    = fs.Bool("list", false, "print scenario names and exit")
		serve       = fs.Bool("serve", false, "serve the in-process objects API instead of probing")
		metricsFile = fs.String("metrics-file", "", "write Prometheus textfile metrics to this path")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitPassed
		}
		return exitSetup
	}

	if *listOnly {
		listScenarios(stdout)
		return exitPassed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	load := loader.LoadProbe
	if *serve {
		load = loader.Load
	}
	cfg, err := load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "objectprobe: failed to load configuration: %v\n", err)
		return exitSetup
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}

	logger, err := logging.NewWithWriter(stderr, cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "objectprobe: failed to configure logger: %v\n", err)
		return exitSetup
	}

	recorder := metrics.NewRecorder(prometheus.NewRegistry())

	if *serve {
		if err := serveFake(ctx, cfg, logger, recorder); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fake objects API terminated unexpectedly", slog.Any("error", err))
			return exitSetup
		}
		logger.Info("fake objects API shutdown complete")
		return exitPassed
	}

	return runProbe(ctx, cfg, logger, recorder, *runFilter, stdout)
}

// runProbe executes the selected scenarios against cfg.Target and prints a
// one-line verdict per scenario to out.
func runProbe(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder, filter string, out io.Writer) int {
	exec, err := executor.New(cfg.Target.BaseURL, executor.Options{
		Timeout:   cfg.Target.Timeout,
		UserAgent: cfg.Target.UserAgent,
		Logger:    logger,
		Metrics:   recorder,
	})
	if err != nil {
		logger.Error("unable to construct request executor", slog.Any("error", err))
		return exitSetup
	}

	suite := lifecycle.NewSuite(exec, lifecycle.FixturesFromConfig(cfg.Fixtures), lifecycle.Options{
		Logger:  logger,
		Metrics: recorder,
	})
	logger.Info("probing objects API", slog.String("base_url", exec.BaseURL()), slog.String("filter", filter))

	results, runErr := suite.Run(ctx, filter)
	failed := 0
	for _, result := range results {
		if result.Passed() {
			fmt.Fprintf(out, "PASS  %-18s %s\n", result.Name, result.Duration.Round(time.Millisecond))
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL  %-18s %s\n      %v\n", result.Name, result.Duration.Round(time.Millisecond), result.Err)
	}

	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			logger.Error("metrics textfile write failed", slog.String("path", path), slog.Any("error", err))
		}
	}

	if runErr != nil {
		logger.Error("scenario run aborted", slog.Any("error", runErr))
		fmt.Fprintf(out, "error: %v\n", runErr)
		return exitSetup
	}
	fmt.Fprintf(out, "%d passed, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return exitFailed
	}
	return exitPassed
}

// serveFake runs the in-process objects API until ctx is cancelled.
func serveFake(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) error {
	store := buildStore(logger.With(slog.String("agent", "store_factory")), cfg.Fake.Store)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Close(shutdownCtx); err != nil {
			logger.Error("store shutdown failed", slog.Any("error", err))
		}
	}()

	router := server.NewRouter(server.RouterOptions{
		API: fakeapi.NewHandler(fakeapi.Options{
			Store:   store,
			Logger:  logger,
			Metrics: recorder,
		}),
		Metrics: recorder.Handler(),
		Health: func(ctx context.Context) error {
			_, err := store.List(ctx)
			return err
		},
	})

	srv, err := server.New(cfg.Fake.Listen, logger, router)
	if err != nil {
		return fmt.Errorf("construct server: %w", err)
	}
	return srv.Run(ctx)
}

func buildStore(logger *slog.Logger, cfg config.FakeStoreConfig) fakeapi.Store {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using memory object store")
		return fakeapi.NewMemoryStore()
	case "redis":
		store, err := fakeapi.NewValkeyStore(fakeapi.ValkeyConfig{
			Address:   cfg.Redis.Address,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			logger.Error("redis object store initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory object store")
			return fakeapi.NewMemoryStore()
		}
		logger.Info("using redis object store", slog.String("address", cfg.Redis.Address))
		return store
	default:
		logger.Warn("unsupported store backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return fakeapi.NewMemoryStore()
	}
}

func listScenarios(out io.Writer) {
	for _, scenario := range lifecycle.Scenarios() {
		fmt.Fprintf(out, "%-18s %s\n", scenario.Name, scenario.Description)
	}
}
