// Package process starts and stops the development web server used by an acceptance
// suite, and tests whether anything is listening on a host and port.
//
// Nothing here waits for a process to exit: Kill only delivers a signal. Callers that
// need to know the server is gone should poll Probe until it reports false.
package process
