package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"proforma/internal/adapters/cli"
	"proforma/internal/app"
	"proforma/internal/bootstrap"
	"proforma/internal/config"
	"proforma/internal/core"
	"proforma/internal/db"
	"proforma/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	// The CLI logs warnings and above only so that command output stays readable.
	logger, err := observability.NewLogger("warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "migrate" {
		if cfg.Store != config.StorePostgres {
			fmt.Fprintln(os.Stderr, "migrate requires STORE=postgres")
			return 2
		}
		if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			logger.Error("migration failed", zap.Error(err))
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		fmt.Println("Migrations applied.")
		return 0
	}

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		return 1
	}
	defer rt.Close()

	actor := os.Getenv("PROFORMA_ACTOR")
	if actor == "" {
		actor = os.Getenv("USER")
	}
	caller := app.Caller{CompanyCode: cfg.CompanyCode, Actor: actor}

	if err := cli.Run(ctx, rt.Service, caller, args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errorLabel(err), err)
		return cli.ExitCode(err)
	}
	return 0
}

func errorLabel(err error) string {
	if cli.ExitCode(err) == 2 {
		return "USAGE"
	}
	return string(core.KindOf(err))
}
