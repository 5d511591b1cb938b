package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.opentelemetry.io/otel"

	"github.com/HayleyDeckers/ledger"
	"github.com/HayleyDeckers/ledger/assert"
	"github.com/HayleyDeckers/ledger/batch"
	"github.com/HayleyDeckers/ledger/log"
	"github.com/HayleyDeckers/ledger/opentelemetry/metrics"
	"github.com/HayleyDeckers/ledger/record"
	"github.com/HayleyDeckers/ledger/transaction"
	"github.com/HayleyDeckers/ledger/zap"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

var errUsage = errors.New("expected exactly one input file")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp(ctx, os.Stdout, os.Stderr).Run(os.Args)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %s\n", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "ledger"
	app.Usage = "apply a CSV stream of account actions and print the client balances"
	app.ArgsUsage = "<input.csv>"
	app.Version = version
	app.HideVersion = true

	app.Writer = stdout
	app.ErrWriter = stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level, l",
			Value: "",
			Usage: " minimum log `LEVEL` [debug|info|warn|error], defaults to LOG_LEVEL",
		},
		cli.StringFlag{
			Name:  "env, e",
			Value: "",
			Usage: " environment `NAME` [production|staging|development|local], defaults to ENV_NAME",
		},
		cli.BoolFlag{
			Name:  "check-dispute-client",
			Usage: " reject disputes naming a client that does not own the deposit",
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.NArg() != 1 {
			_ = cli.ShowAppHelp(c)
			return errUsage
		}

		cfg, err := configure(c, stderr)
		if err != nil {
			return err
		}

		return run(ctx, cfg, c.Args().First(), stdout)
	}

	return app
}

// configure loads the environment configuration and applies the flags on top.
func configure(c *cli.Context, stderr io.Writer) (ledger.Config, error) {
	ledger.InitLocalEnvConfig(stderr)

	cfg, err := ledger.LoadConfig()
	if err != nil {
		return ledger.Config{}, err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	if c.IsSet("env") {
		cfg.EnvName = c.String("env")
	}

	if c.IsSet("check-dispute-client") {
		cfg.CheckDisputeClient = c.Bool("check-dispute-client")
	}

	return cfg, nil
}

func run(ctx context.Context, cfg ledger.Config, path string, stdout io.Writer) error {
	logger, err := zap.New(zap.Config{
		Environment:     zap.Environment(cfg.EnvName),
		Level:           cfg.LogLevel,
		OTelLibraryName: cfg.OTelLibraryName,
	})
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync(context.Background()) }()

	factory, err := metrics.NewMetricsFactory(otel.Meter(cfg.OTelLibraryName), logger)
	if err != nil {
		return fmt.Errorf("create metrics factory: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ctx = ledger.ContextWithLogger(ctx, logger)
	ctx = ledger.ContextWithMetricFactory(ctx, factory)

	engine := transaction.NewEngine(transaction.WithDisputeClientCheck(cfg.CheckDisputeClient))
	asserter := assert.New(logger, "batch", "check_invariants",
		assert.WithMetrics(factory), assert.WithStack(!cfg.IsProduction()))

	summary, err := batch.New(engine, batch.WithAsserter(asserter)).Run(ctx, record.NewReader(bufio.NewReader(f)))

	switch {
	case errors.Is(err, assert.ErrAssertionFailed):
		// The snapshot is still reported; the asserter already logged the violation.
		logger.Log(ctx, log.LevelError, "ledger invariants violated", log.String("run_id", summary.RunID))
	case err != nil:
		return fmt.Errorf("process %s: %w", path, err)
	}

	if err := record.WriteReport(stdout, engine.Clients()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
