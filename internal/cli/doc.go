// Package cli implements the kstats command-line interface.
//
// The root command takes one host-range expression and runs a single
// collection batch:
//
//  1. Load config (file, KSTATS_* environment, then flags) and validate it
//  2. Expand the range and drop --exclude / config excludes
//  3. Ask for confirmation when the batch is large and stdin is a terminal
//  4. Poll every host through the selected transport with bounded concurrency
//  5. Aggregate the host reports and render them as table, json or yaml
//
// # Exit Codes
//
// A batch that ran exits 0 even when hosts failed or the run was
// interrupted; failed hosts are part of the report. Configuration and range
// errors exit 2 before any host is contacted, and a report that can't be
// written exits 1. In json and yaml mode configuration errors are also
// written to stdout as an error envelope.
//
// # Subcommands
//
//	kstats version      - Print version information
//	kstats completion   - Generate shell completion scripts
package cli
