// Package daemon runs the long-lived watch process.
//
// It wires a feed listener to the workflow coordinator under a flock-based
// single-instance lock. Each delivered archive becomes a submitted job; once
// the job finishes the daemon answers the sender when the feed supports
// replies and removes the source files of successful jobs when configured.
// Startup optionally sweeps scratch workspaces left behind by a crashed run.
//
// Keep orchestration here. Pipeline stages live in workflow and the packages
// it drives.
package daemon
