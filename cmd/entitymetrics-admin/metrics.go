package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/entity-metrics/internal/bootstrap"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/migrate"
	"github.com/target/entity-metrics/internal/service"
	"github.com/target/entity-metrics/internal/util"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

type migrateOptions struct {
	Timeout time.Duration
}

type entityOptions struct {
	EntityType model.EntityType
	IDs        []int64
	Limit      int
	JSON       bool
	Timeout    time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

// parseEntityFlags parses the flags shared by fetch, bust, refresh and prewarm.
// needIDs is false for prewarm, which takes --limit instead.
func parseEntityFlags(name string, args []string, needIDs bool) (entityOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var rawType, rawIDs string
	opts := entityOptions{}
	fs.StringVar(&rawType, "type", string(model.EntityTypeImage), "Entity type (image, post, model, article)")
	fs.BoolVar(&opts.JSON, "json", false, "Print machine-readable JSON")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration for the command")
	if needIDs {
		fs.StringVar(&rawIDs, "ids", "", "Comma-separated entity ids")
	} else {
		fs.IntVar(&opts.Limit, "limit", 0, "Maximum candidates to warm (0 uses PREWARM_LIMIT)")
	}

	if err := fs.Parse(args); err != nil {
		return entityOptions{}, err
	}

	entityType, err := model.ParseEntityType(rawType)
	if err != nil {
		return entityOptions{}, err
	}
	opts.EntityType = entityType

	if opts.Timeout <= 0 {
		return entityOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Limit < 0 {
		return entityOptions{}, errors.New("--limit must not be negative")
	}
	if needIDs {
		ids, parseErr := util.ParseIDList(rawIDs)
		if parseErr != nil {
			return entityOptions{}, fmt.Errorf("--ids: %w", parseErr)
		}
		if len(ids) == 0 {
			return entityOptions{}, errors.New("--ids is required")
		}
		opts.IDs = model.UniqueIDs(ids)
	}
	return opts, nil
}

func commandTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := commandTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.StoreConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	applied, err := migrate.Apply(ctx, db, migrate.Options{Logger: cmdCtx.Logger})
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) == 0 {
		return writeln(cmdCtx.Out, "Schema is up to date.")
	}
	for _, v := range applied {
		if err := writef(cmdCtx.Out, "applied %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

// withAccessor opens the service, resolves the accessor for opts.EntityType and runs fn.
func withAccessor(
	cmdCtx *commandContext,
	opts entityOptions,
	fn func(ctx context.Context, svc *service.EntityMetricsService, acc *service.MetricAccessor) error,
) error {
	ctx, cancel := commandTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	svc, closer, err := cmdCtx.openService(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closer(); closeErr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", closeErr)
		}
	}()

	acc, err := svc.Accessor(opts.EntityType)
	if err != nil {
		return err
	}
	return fn(ctx, svc, acc)
}

func runFetch(cmdCtx *commandContext, args []string) error {
	opts, err := parseEntityFlags("fetch", args, true)
	if err != nil {
		return err
	}
	return withAccessor(cmdCtx, opts, func(ctx context.Context, _ *service.EntityMetricsService, acc *service.MetricAccessor) error {
		records, fetchErr := acc.Fetch(ctx, opts.IDs)
		if fetchErr != nil {
			return fmt.Errorf("fetch %s metrics: %w", opts.EntityType, fetchErr)
		}
		if opts.JSON {
			return writeJSON(cmdCtx.Out, keyByID(records))
		}
		return renderMetricsTable(cmdCtx.Out, opts.IDs, records)
	})
}

func runAggregate(cmdCtx *commandContext, args []string) error {
	opts, err := parseEntityFlags("aggregate", args, true)
	if err != nil {
		return err
	}
	return withAccessor(cmdCtx, opts, func(ctx context.Context, svc *service.EntityMetricsService, _ *service.MetricAccessor) error {
		rows, loadErr := svc.Loader.Load(ctx, opts.EntityType, opts.IDs)
		if loadErr != nil {
			return fmt.Errorf("aggregate %s metrics: %w", opts.EntityType, loadErr)
		}
		sets := model.GroupByEntity(rows)
		records := make(map[int64]model.NormalizedMetricRecord, len(opts.IDs))
		for _, id := range opts.IDs {
			records[id] = model.Normalize(sets[id])
		}
		if opts.JSON {
			return writeJSON(cmdCtx.Out, keyByID(records))
		}
		return renderMetricsTable(cmdCtx.Out, opts.IDs, records)
	})
}

func runBust(cmdCtx *commandContext, args []string) error {
	opts, err := parseEntityFlags("bust", args, true)
	if err != nil {
		return err
	}
	return withAccessor(cmdCtx, opts, func(ctx context.Context, _ *service.EntityMetricsService, acc *service.MetricAccessor) error {
		if bustErr := acc.Bust(ctx, opts.IDs); bustErr != nil {
			return fmt.Errorf("bust %s metrics: %w", opts.EntityType, bustErr)
		}
		return writef(cmdCtx.Out, "Busted %d %s metric set(s).\n", len(opts.IDs), opts.EntityType)
	})
}

func runRefresh(cmdCtx *commandContext, args []string) error {
	opts, err := parseEntityFlags("refresh", args, true)
	if err != nil {
		return err
	}
	return withAccessor(cmdCtx, opts, func(ctx context.Context, _ *service.EntityMetricsService, acc *service.MetricAccessor) error {
		res := acc.Refresh(ctx, opts.IDs)
		if opts.JSON {
			if err := writeJSON(cmdCtx.Out, res); err != nil {
				return err
			}
		} else if err := printPopulateResult(cmdCtx.Out, res); err != nil {
			return err
		}
		return res.Err
	})
}

func runPrewarm(cmdCtx *commandContext, args []string) error {
	opts, err := parseEntityFlags("prewarm", args, false)
	if err != nil {
		return err
	}
	return withAccessor(cmdCtx, opts, func(ctx context.Context, svc *service.EntityMetricsService, _ *service.MetricAccessor) error {
		res := svc.Prewarmer.PreWarm(ctx, opts.EntityType, opts.Limit)
		if opts.JSON {
			if err := writeJSON(cmdCtx.Out, res); err != nil {
				return err
			}
		} else {
			if err := writef(cmdCtx.Out, "Candidates: %d\n", res.Candidates); err != nil {
				return err
			}
			if err := printPopulateResult(cmdCtx.Out, res.Populate); err != nil {
				return err
			}
		}
		return res.Err
	})
}

func printPopulateResult(w io.Writer, res service.PopulateResult) error {
	return writef(w,
		"Entity type: %s\nRequested: %d  Missing: %d  Acquired: %d  Skipped: %d  Loaded: %d  Written: %d\n",
		res.EntityType, res.Requested, res.Missing, res.Acquired, res.Skipped, res.Loaded, res.Written,
	)
}

func renderMetricsTable(w io.Writer, ids []int64, records map[int64]model.NormalizedMetricRecord) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tLIKE\tHEART\tLAUGH\tCRY\tCOMMENT\tCOLLECTION\tBUZZ"); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	for _, id := range sorted {
		rec := records[id]
		if err := writef(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", id,
			formatTotal(rec.ReactionLike),
			formatTotal(rec.ReactionHeart),
			formatTotal(rec.ReactionLaugh),
			formatTotal(rec.ReactionCry),
			formatTotal(rec.Comment),
			formatTotal(rec.Collection),
			formatTotal(rec.Buzz),
		); err != nil {
			return fmt.Errorf("write metrics row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush metrics table: %w", err)
	}
	return nil
}

func formatTotal(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func keyByID(records map[int64]model.NormalizedMetricRecord) map[string]model.NormalizedMetricRecord {
	keyed := make(map[string]model.NormalizedMetricRecord, len(records))
	for id, rec := range records {
		keyed[strconv.FormatInt(id, 10)] = rec
	}
	return keyed
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
