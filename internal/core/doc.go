// Package core loads usage files into customers, meters and daily readings.
//
// The package holds all import logic independent of any particular database.
// Storage is reached through the [Store] and [Tx] interfaces, implemented by
// the postgres, mysql and memory packages under internal/store.
//
// # Flow
//
// An [Importer] drives one run over one file:
//
//  1. The file is opened and its header checked by the source package
//  2. An [ImportRun] ledger row is created with status IN_PROGRESS
//  3. Each row is parsed, its customer and meter resolved through the
//     run-local [Resolver] caches, and its reading buffered in the [Writer]
//  4. Every BatchSize rows the buffered readings are upserted, the
//     transaction committed and the ledger counters checkpointed
//  5. After the last row the fail-rate breaker decides COMPLETED or FAILED
//     and the ledger row is finalized
//
// In two-pass mode a priming pass resolves every distinct location first,
// then the file is reopened and readings are written.
//
// # Error Handling
//
// Row-level problems (bad cells, rejected inserts) are counted and the run
// continues. Connection-level store failures, cancellation and the fail-rate
// breaker end the run. Technical errors are mapped to user-friendly messages
// using [MapError]:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL006: Validation errors (dates, numbers, missing columns)
//   - FILE001-FILE004: File errors (missing, format, encoding)
//   - RUN001-RUN003: Run errors (fail rate, cancellation, timeout)
package core
