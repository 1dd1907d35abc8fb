// Package smoketests contains behavioral checks that run against a booted development
// server through the suite's session client.
//
// The checks do not assume anything about the site being served beyond what the
// configuration says: which document root and router rules file the server was
// started with, and whether coverage is enabled. Checks that do not apply to the
// configured server are skipped.
package smoketests
