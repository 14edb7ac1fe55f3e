// Package daemon coordinates the long-running pagecapture process.
//
// It wires configuration, the validator, staging area, ingestion manager, and
// hot-folder watcher into a single lifecycle with flock-based locking to
// prevent two processes from renaming files in the same watch directory. The
// daemon runs the scan loop and the staging maintenance loop side by side and
// exposes the export hook downstream consumers use to release staged files.
//
// Keep orchestration logic here: capture semantics live in their respective
// packages while the daemon focuses on startup, shutdown, and scheduling.
package daemon
