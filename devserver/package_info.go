// Package devserver implements the local development web server that the acceptance
// harness launches.
//
// It serves static files from a document root, optionally consulting a router rules
// file first, and mounts the coverage side channel under coverage.SideChannelPrefix.
// Projects with their own Go application can pass it as Options.App and build the
// server binary with coverage enabled, so their handlers are traced per request.
package devserver
