// Command importer loads a daily water usage file into the billing database.
//
//	importer [flags] <file.csv|file.xlsx>
//
// Exit status is 0 when the run completed, 1 when it failed and 2 for usage
// or input errors.
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
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/meterload/internal/config"
	"github.com/JonMunkholm/meterload/internal/core"
	"github.com/JonMunkholm/meterload/internal/logging"
	"github.com/JonMunkholm/meterload/internal/metrics"
	"github.com/JonMunkholm/meterload/internal/source"
	"github.com/JonMunkholm/meterload/internal/store/memory"
	"github.com/JonMunkholm/meterload/internal/store/mysql"
	"github.com/JonMunkholm/meterload/internal/store/postgres"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

const (
	// metricsTimeout bounds the push made after a run has finished.
	metricsTimeout = 10 * time.Second

	maxSummaryFailures = 10
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cliFlags override the matching environment settings when set.
type cliFlags struct {
	mode       string
	sheet      string
	policy     string
	failedRows string
	batchSize  int
	dryRun     bool
	positional bool
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, string, error) {
	var f cliFlags
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.mode, "mode", "", "import mode: single or two_pass (env IMPORT_MODE)")
	fs.StringVar(&f.sheet, "sheet", "", "spreadsheet tab to read, default first (env IMPORT_SHEET)")
	fs.StringVar(&f.policy, "conflict", "", "existing reading policy: update or ignore (env IMPORT_CONFLICT_POLICY)")
	fs.StringVar(&f.failedRows, "failed-rows", "", "write failed rows to this CSV file (env IMPORT_FAILED_ROWS_PATH)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "rows per transaction (env IMPORT_BATCH_SIZE)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "import into an in-memory store and report what would be written")
	fs.BoolVar(&f.positional, "positional", false, "read columns by position instead of header name")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: importer [flags] <file.csv|file.xlsx>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return f, "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return f, "", errors.New("exactly one input file is required")
	}
	return f, fs.Arg(0), nil
}

func (f cliFlags) apply(cfg *config.Config) {
	if f.mode != "" {
		cfg.Import.Mode = f.mode
	}
	if f.sheet != "" {
		cfg.Import.Sheet = f.sheet
	}
	if f.policy != "" {
		cfg.Import.ConflictPolicy = f.policy
	}
	if f.failedRows != "" {
		cfg.Import.FailedRowsPath = f.failedRows
	}
	if f.batchSize != 0 {
		cfg.Import.BatchSize = f.batchSize
	}
	if f.positional {
		cfg.Import.Positional = true
	}
	if f.dryRun {
		cfg.Database.Driver = config.DriverMemory
	}
}

// buildOptions maps configuration onto importer options.
func buildOptions(cfg *config.Config) core.Options {
	opts := core.DefaultOptions()
	opts.BatchSize = cfg.Import.BatchSize
	opts.Breaker = core.FailRateBreaker{
		MaxFailRate: cfg.Import.MaxFailRate,
		MinRows:     cfg.Import.MinRowsBeforeAbort,
	}
	opts.Mode = core.Mode(cfg.Import.Mode)
	opts.Source = source.Options{Sheet: cfg.Import.Sheet, Positional: cfg.Import.Positional}
	opts.ConflictPolicy = core.ConflictPolicy(cfg.Import.ConflictPolicy)
	opts.AccountPrefix = cfg.Import.AccountPrefix
	opts.ImportedBy = cfg.Import.ImportedBy
	opts.DefaultCycle = cfg.Import.DefaultCycle
	opts.CheckpointLedger = cfg.Import.CheckpointLedger
	opts.EarlyAbort = cfg.Import.EarlyAbort
	opts.FailedRowsPath = cfg.Import.FailedRowsPath
	opts.ProgressInterval = cfg.Import.ProgressInterval
	return opts
}

// openerFor picks the store for the configured driver. The memory store is
// returned as well so a dry run can report its contents.
func openerFor(cfg config.DatabaseConfig) (core.StoreOpener, *memory.Store) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return mysql.Opener(cfg), nil
	case config.DriverMemory:
		store := memory.New()
		return store.Opener(), store
	default:
		return postgres.Opener(cfg), nil
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envErr := godotenv.Overload()

	flags, path, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.LoadWith(flags.apply)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Import.Timeout)
		defer cancel()
	}

	opener, dryRun := openerFor(cfg.Database)
	importer := core.NewImporter(opener, buildOptions(cfg))
	res, runErr := importer.Run(ctx, path)

	if res != nil {
		pusher := metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsTimeout)
		if err := pusher.Push(pctx, res); err != nil {
			slog.Warn("metrics push failed", "error", err)
		}
		cancel()
	}

	printSummary(stdout, path, res, runErr, dryRun)

	switch {
	case runErr == nil:
		return exitOK
	case res == nil && core.KindOf(runErr) == core.KindInput:
		return exitUsage
	default:
		return exitFailed
	}
}

func printSummary(w io.Writer, path string, res *core.Result, runErr error, dryRun *memory.Store) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if res == nil {
		fmt.Fprintf(tw, "File\t%s\n", path)
		status := "FAILED"
		if core.KindOf(runErr) == core.KindInput {
			status = "NOT STARTED"
		}
		fmt.Fprintf(tw, "Status\t%s\n", status)
		if runErr != nil {
			fmt.Fprintf(tw, "Error\t%s\n", core.FormatUserError(runErr))
			fmt.Fprintf(tw, "Detail\t%v\n", runErr)
		}
		return
	}

	c := res.Counters
	fmt.Fprintf(tw, "Import run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "File\t%s\n", res.FileName)
	fmt.Fprintf(tw, "Status\t%s\n", res.Status)
	fmt.Fprintf(tw, "Duration\t%s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "Rows\tprocessed=%d imported=%d failed=%d\n", c.RowsProcessed, c.RowsImported, c.RowsFailed)
	fmt.Fprintf(tw, "Created\tcustomers=%d meters=%d\n", c.CustomersCreated, c.MetersCreated)
	fmt.Fprintf(tw, "Readings\twritten=%d\n", c.ReadingsWritten)

	if len(res.Failures) > 0 {
		kinds := make([]core.ErrorKind, 0, len(res.Failures))
		for k := range res.Failures {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Fprintf(tw, "Failed\t%s=%d\n", k, res.Failures[k])
		}
		for i, f := range res.FailedRows {
			if i == maxSummaryFailures {
				fmt.Fprintf(tw, "\t... %d more\n", c.RowsFailed-i)
				break
			}
			fmt.Fprintf(tw, "\tline %d: %s\n", f.Line, f.Reason)
		}
	}

	if dryRun != nil {
		fmt.Fprintf(tw, "Dry run\tcustomers=%d meters=%d readings=%d (nothing persisted)\n",
			len(dryRun.Customers()), len(dryRun.Meters()), len(dryRun.Readings()))
	}

	if runErr != nil {
		fmt.Fprintf(tw, "Error\t%s\n", core.FormatUserError(runErr))
		fmt.Fprintf(tw, "Detail\t%v\n", runErr)
	}
}
