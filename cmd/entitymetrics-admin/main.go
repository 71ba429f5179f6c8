// Command entitymetrics-admin runs one-off maintenance tasks against the entity metrics stores.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer

	// openService connects the stores and assembles the service; tests replace it.
	openService serviceOpener
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.InitLogger(&cfg)

	cmdCtx := &commandContext{
		Ctx:         context.Background(),
		Logger:      logger,
		Config:      cfg,
		Out:         os.Stdout,
		openService: connectService,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run aggregation store migrations",
			run:         runMigrations,
		},
		"fetch": {
			name:        "fetch",
			description: "Print cached metrics for entities, populating missing ones",
			run:         runFetch,
		},
		"aggregate": {
			name:        "aggregate",
			description: "Print totals straight from the aggregation store, bypassing the cache",
			run:         runAggregate,
		},
		"bust": {
			name:        "bust",
			description: "Delete cached metric sets so the next fetch reloads them",
			run:         runBust,
		},
		"refresh": {
			name:        "refresh",
			description: "Recompute and overwrite cached metric sets",
			run:         runRefresh,
		},
		"prewarm": {
			name:        "prewarm",
			description: "Populate the cache for recently active entities",
			run:         runPrewarm,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: entitymetrics-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
