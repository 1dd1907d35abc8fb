// Package coverage collects line coverage from a running development web server one
// request at a time, and merges it back together when the acceptance suite finishes.
//
// The flow is:
//
// 1. Requests that carry HeaderEnableCoverage and HeaderTestSessionID are wrapped by
// Hook. The hook starts a Tracer before the application handler runs and, once the
// handler returns (or panics), stops it and writes what it recorded to a fragment
// file in the FragmentStore, named after the session.
//
// 2. At the end of the suite the harness calls the collect endpoint served by
// CollectHandler. All fragments for the session are read, deleted, and merged into a
// single Coverage which is returned as JSON.
//
// 3. The harness filters the merged Coverage to its own source directories and
// renders it with WriteReports.
//
// Losing coverage never fails a request: every error on the server side is logged
// and counted, then dropped.
package coverage
