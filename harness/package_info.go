// Package harness runs the development web server for the lifetime of an acceptance
// suite.
//
// A Suite is the explicit context of one suite run. Start checks that the configured
// port is free, launches the server, waits until it accepts connections, and then
// creates a session ID and an HTTP client that tags every request with it. Stop
// optionally collects the session's coverage and writes a report, then kills the
// server. Suites share no state, so several can run in the same process as long as
// they use different ports.
package harness
