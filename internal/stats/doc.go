// Package stats implements the multi-host collection engine behind kstats.
//
// # Data Flow
//
//	HostSet -> Dispatcher -> Collector (one per host) -> []HostReport -> Aggregate -> ClusterReport
//
// # Key Components
//
//	Collector   - Polls one host through a Transport and turns the raw
//	              domstats text into a HostReport. Enforces the per-host timeout.
//	Dispatcher  - Runs the Collector across a HostSet with at most C
//	              collections in flight, returning reports in HostSet order.
//	Aggregate   - Folds the ordered reports into a ClusterReport with totals.
//
// # Failure Model
//
// Per-host failures are values, not errors. A HostReport is either Ok (with
// VM metrics) or Failed (with an ErrorKind: Unreachable, Timeout,
// MalformedOutput or Cancelled). Nothing in this package returns an error for
// a partial failure, so every host in the set always shows up in the final
// ClusterReport.
package stats
