// Package history persists a ledger of processed jobs and published links in
// SQLite.
//
// The ledger is informational: the coordinator writes every transition
// through an observer and the CLI reads it back for `stlpipe history`. Links
// are keyed by artifact name so re-processing an archive replaces its entry.
// Writes retry briefly on SQLITE_BUSY because the watch daemon and the CLI may
// share the database file.
package history
