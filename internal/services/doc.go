// Package services defines shared helpers consumed by the job coordinator and
// its collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, artifact names, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, so CLI commands and the
//     retry policy can classify failures without string matching.
package services
