package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/meterload/internal/logging"
	"github.com/JonMunkholm/meterload/internal/source"
)

// finalizeTimeout bounds the ledger update made after a run has failed.
const finalizeTimeout = 30 * time.Second

// Options configures an Importer.
type Options struct {
	BatchSize        int
	Breaker          FailRateBreaker
	Mode             Mode
	Source           source.Options
	ConflictPolicy   ConflictPolicy
	AccountPrefix    string
	ImportedBy       string
	DefaultCycle     int
	CheckpointLedger bool // Save counters to the ledger after every batch
	EarlyAbort       bool // Evaluate the breaker at batch boundaries
	FailedRowsPath   string
	MaxFailedSamples int // Failed rows kept on the Result
	ProgressInterval time.Duration

	// OnProgress, when set, is called after every committed batch.
	OnProgress func(ctx context.Context, p Progress)
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:        5000,
		Breaker:          FailRateBreaker{MaxFailRate: 0.01, MinRows: 5000},
		Mode:             ModeSingle,
		ConflictPolicy:   ConflictUpdate,
		AccountPrefix:    "ACC-",
		ImportedBy:       "SYSTEM",
		DefaultCycle:     1,
		CheckpointLedger: true,
		EarlyAbort:       true,
		MaxFailedSamples: 100,
		ProgressInterval: 5 * time.Second,
	}
}

// Progress is reported after every committed batch.
type Progress struct {
	RunID    string
	Pass     int
	Counters Counters
	Percent  int // Share of the file consumed, 0 when unknown
}

// Importer runs one import. It owns all mutable run state, so separate
// Importers never share caches or counters. An Importer is not reusable.
type Importer struct {
	opts      Options
	openStore StoreOpener

	state      RunState
	resolver   *Resolver
	writer     *Writer
	counters   Counters
	failures   map[ErrorKind]int
	failedRows []FailedRow
	sink       *failedRowWriter

	runID        string
	fileName     string
	logger       *slog.Logger
	lastProgress time.Time
}

// NewImporter creates an Importer that connects through openStore.
func NewImporter(openStore StoreOpener, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.Mode == "" {
		opts.Mode = ModeSingle
	}
	if opts.ConflictPolicy == "" {
		opts.ConflictPolicy = ConflictUpdate
	}
	if opts.DefaultCycle <= 0 {
		opts.DefaultCycle = 1
	}
	return &Importer{
		opts:      opts,
		openStore: openStore,
		resolver:  NewResolver(opts.AccountPrefix),
		failures:  make(map[ErrorKind]int),
		logger:    slog.Default(),
	}
}

// State returns the current run state.
func (im *Importer) State() RunState { return im.state }

// Run imports the file at path.
//
// Input problems (missing file, unknown format, missing columns) return an
// *ImportError of KindInput before the store is contacted. Otherwise a
// ledger row is written and Run returns a Result; the error is non-nil
// exactly when the run ended FAILED.
func (im *Importer) Run(ctx context.Context, path string) (*Result, error) {
	if im.state != StateNotStarted {
		return nil, errors.New("importer: run already started")
	}
	start := time.Now()

	format, err := source.DetectFormat(path)
	if err != nil {
		return nil, fatal(KindInput, err)
	}
	src, err := source.Open(path, im.opts.Source)
	if err != nil {
		return nil, fatal(KindInput, err)
	}
	checksum, err := fileChecksum(path)
	if err != nil {
		src.Close()
		return nil, fatal(KindInput, err)
	}

	store, err := im.openStore(ctx)
	if err != nil {
		src.Close()
		im.state = StateFailed
		return nil, &ImportError{Kind: KindStoreConnection, Err: err}
	}
	defer func() {
		if err := store.Close(); err != nil {
			im.logger.Warn("close store", "error", err)
		}
	}()

	run := ImportRun{
		ID:             uuid.NewString(),
		SourceType:     format,
		SourceFileName: filepath.Base(path),
		FileChecksum:   checksum,
		ImportedBy:     im.opts.ImportedBy,
	}
	ledger := NewLedger(store)
	if err := ledger.Create(ctx, &run); err != nil {
		src.Close()
		im.state = StateFailed
		return nil, fatal(KindStoreConnection, err)
	}

	im.state = StateRunning
	im.runID = run.ID
	im.fileName = run.SourceFileName
	ctx = logging.ContextWithRunID(ctx, run.ID)
	im.logger = logging.WithFields(ctx, "file", run.SourceFileName, "mode", im.opts.Mode)
	im.writer = NewWriter(im.opts.ConflictPolicy, sourceTag(format))
	im.logger.Info("import started", "checksum", checksum, "batch_size", im.opts.BatchSize)

	if prev, err := store.FindCompletedRunByChecksum(ctx, checksum); err == nil {
		im.logger.Warn("file was already imported; readings will be refreshed",
			"previous_run_id", prev.ID, "previous_completed_at", prev.CompletedAt)
	} else if isFatal(err) {
		src.Close()
		return im.finish(ctx, ledger, start, fatal(KindStoreConnection, err))
	}

	if im.opts.FailedRowsPath != "" {
		sink, err := newFailedRowWriter(im.opts.FailedRowsPath)
		if err != nil {
			src.Close()
			return im.finish(ctx, ledger, start, fatal(KindInput, err))
		}
		im.sink = sink
	}

	runErr := im.process(ctx, store, ledger, path, src)
	if runErr == nil {
		if err := im.opts.Breaker.Check(im.counters); err != nil {
			runErr = &ImportError{Kind: KindFailRate, Err: err}
		}
	}
	return im.finish(ctx, ledger, start, runErr)
}

// process runs the configured passes. It always closes src.
func (im *Importer) process(ctx context.Context, store Store, ledger *Ledger, path string, src source.Source) error {
	if im.opts.Mode == ModeTwoPass {
		err := im.primeEntities(ctx, store, src)
		src.Close()
		if err != nil {
			return err
		}
		src, err = source.Open(path, im.opts.Source)
		if err != nil {
			return fatal(KindInput, fmt.Errorf("reopen for readings: %w", err))
		}
	}
	defer src.Close()
	return im.importReadings(ctx, store, ledger, src)
}

// primeEntities resolves every distinct location before any reading is
// written. Row failures here are not counted; the readings pass sees the
// same rows and counts them once.
func (im *Importer) primeEntities(ctx context.Context, store Store, src source.Source) error {
	b := &batch{store: store}
	if err := b.begin(ctx); err != nil {
		return err
	}
	defer b.rollback(ctx)

	resolved := 0
	for {
		if err := ctx.Err(); err != nil {
			return fatal(KindCanceled, err)
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fatal(KindInput, err)
		}

		rec, err := parseRecord(row, im.opts.DefaultCycle)
		if err != nil || im.resolver.Resolved(rec.LocationID) {
			continue
		}
		if _, _, err := im.resolveEntities(ctx, b.tx, rec); err != nil {
			if asRowError(err) == nil {
				return fatal(KindStoreConnection, err)
			}
			im.logger.Debug("prime entities", "line", row.Line(), "error", err)
			continue
		}

		resolved++
		if resolved%im.opts.BatchSize == 0 {
			if err := b.commit(ctx, true); err != nil {
				return err
			}
		}
	}

	if err := b.commit(ctx, false); err != nil {
		return err
	}
	im.logger.Info("entities primed", "locations", resolved,
		"customers_created", im.counters.CustomersCreated,
		"meters_created", im.counters.MetersCreated)
	return nil
}

// importReadings is the main pass: parse, resolve, buffer, commit per batch.
func (im *Importer) importReadings(ctx context.Context, store Store, ledger *Ledger, src source.Source) error {
	b := &batch{store: store}
	if err := b.begin(ctx); err != nil {
		return err
	}
	defer b.rollback(ctx)

	inBatch := 0
	for {
		if err := ctx.Err(); err != nil {
			return fatal(KindCanceled, err)
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fatal(KindInput, err)
		}

		im.counters.RowsProcessed++
		inBatch++
		if err := im.processRow(ctx, b.tx, row); err != nil {
			re := asRowError(err)
			if re == nil {
				return fatal(KindStoreConnection, err)
			}
			im.recordFailure(FailedRow{Line: row.Line(), Kind: re.Kind, Reason: re.Err.Error(), Data: row.Values()})
		}

		if inBatch < im.opts.BatchSize {
			continue
		}
		inBatch = 0
		if err := im.flush(ctx, b, true); err != nil {
			return err
		}
		im.afterBatch(ctx, ledger, src)
		if im.opts.EarlyAbort {
			if err := im.opts.Breaker.Check(im.counters); err != nil {
				return &ImportError{Kind: KindFailRate, Err: err}
			}
		}
	}

	if err := im.flush(ctx, b, false); err != nil {
		return err
	}
	im.afterBatch(ctx, ledger, src)
	return nil
}

// processRow parses a row, resolves its entities and buffers its reading.
func (im *Importer) processRow(ctx context.Context, tx Tx, row source.Row) error {
	rec, err := parseRecord(row, im.opts.DefaultCycle)
	if err != nil {
		return err
	}
	customerID, meterID, err := im.resolveEntities(ctx, tx, rec)
	if err != nil {
		return err
	}
	return im.writer.Add(customerID, meterID, rec, im.runID, row.Values())
}

func (im *Importer) resolveEntities(ctx context.Context, tx Tx, rec Record) (customerID, meterID string, err error) {
	customerID, created, err := im.resolver.ResolveCustomer(ctx, tx, rec)
	if err != nil {
		return "", "", err
	}
	if created {
		im.counters.CustomersCreated++
	}

	meterID, created, err = im.resolver.ResolveMeter(ctx, tx, rec, customerID)
	if err != nil {
		return "", "", err
	}
	if created {
		im.counters.MetersCreated++
	}
	return customerID, meterID, nil
}

// flush writes buffered readings and commits the batch, optionally opening
// the next transaction.
func (im *Importer) flush(ctx context.Context, b *batch, next bool) error {
	res, err := im.writer.Flush(ctx, b.tx)
	if err != nil {
		return fatal(KindStoreConnection, err)
	}
	im.counters.RowsImported += res.RowsImported
	im.counters.ReadingsWritten += res.ReadingsWritten
	for _, f := range res.Failed {
		im.recordFailure(f)
	}
	return b.commit(ctx, next)
}

// afterBatch checkpoints the ledger and reports progress. Checkpoint
// failures are logged only; the final ledger update carries the same data.
func (im *Importer) afterBatch(ctx context.Context, ledger *Ledger, src source.Source) {
	if im.opts.CheckpointLedger {
		if err := ledger.Checkpoint(ctx, im.runID, im.counters); err != nil {
			im.logger.Warn("checkpoint failed", "error", err)
		}
	}

	p := Progress{RunID: im.runID, Pass: 1, Counters: im.counters, Percent: src.Progress()}
	if im.opts.Mode == ModeTwoPass {
		p.Pass = 2
	}
	if im.opts.OnProgress != nil {
		im.opts.OnProgress(ctx, p)
	}
	if time.Since(im.lastProgress) >= im.opts.ProgressInterval {
		im.lastProgress = time.Now()
		im.logger.Info("progress", "stats", im.counters, "percent", p.Percent)
	}
}

func (im *Importer) recordFailure(f FailedRow) {
	im.counters.RowsFailed++
	im.failures[f.Kind]++
	if len(im.failedRows) < im.opts.MaxFailedSamples {
		im.failedRows = append(im.failedRows, f)
	}
	if im.sink != nil {
		if err := im.sink.Write(f); err != nil {
			im.logger.Warn("write failed row", "line", f.Line, "error", err)
		}
	}
	im.logger.Debug("row failed", "line", f.Line, "kind", f.Kind.String(), "reason", f.Reason)
}

// finish finalizes the ledger and builds the Result.
func (im *Importer) finish(ctx context.Context, ledger *Ledger, start time.Time, runErr error) (*Result, error) {
	if im.sink != nil {
		if err := im.sink.Close(); err != nil {
			im.logger.Warn("close failed rows file", "error", err)
		}
	}

	status := StatusCompleted
	msg := ""
	if runErr != nil {
		status = StatusFailed
		msg = runErr.Error()
	}

	// The run context may already be cancelled; the ledger must still close
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := ledger.Finalize(fctx, im.runID, status, im.counters, msg); err != nil {
		im.logger.Error("finalize import run", "error", err)
		if runErr == nil {
			runErr = fatal(KindStoreConnection, err)
			status = StatusFailed
		}
	}

	if status == StatusCompleted {
		im.state = StateCompleted
	} else {
		im.state = StateFailed
	}

	res := &Result{
		RunID:      im.runID,
		FileName:   im.fileName,
		Status:     status,
		Counters:   im.counters,
		Failures:   im.failures,
		FailedRows: im.failedRows,
		Duration:   time.Since(start),
		Err:        runErr,
	}

	if runErr != nil {
		im.logger.Error("import failed", "stats", im.counters, "error", runErr, "duration", res.Duration)
		return res, runErr
	}
	im.logger.Info("import completed", "stats", im.counters, "duration", res.Duration)
	return res, nil
}

// batch tracks the open transaction of the current batch.
type batch struct {
	store Store
	tx    Tx
}

func (b *batch) begin(ctx context.Context) error {
	tx, err := b.store.Begin(ctx)
	if err != nil {
		return fatal(KindStoreConnection, fmt.Errorf("begin batch: %w", err))
	}
	b.tx = tx
	return nil
}

// commit commits the open transaction and, when next is set, begins another.
func (b *batch) commit(ctx context.Context, next bool) error {
	err := b.tx.Commit(ctx)
	b.tx = nil
	if err != nil {
		return fatal(KindStoreConnection, fmt.Errorf("commit batch: %w", err))
	}
	if next {
		return b.begin(ctx)
	}
	return nil
}

// rollback discards an uncommitted transaction, if any.
func (b *batch) rollback(ctx context.Context) {
	if b.tx == nil {
		return
	}
	_ = b.tx.Rollback(context.WithoutCancel(ctx))
	b.tx = nil
}
