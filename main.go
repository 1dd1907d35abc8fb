package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/launchdarkly/devserver-acceptance-tests/framework"
	"github.com/launchdarkly/devserver-acceptance-tests/harness"
	"github.com/launchdarkly/devserver-acceptance-tests/logging"
	"github.com/launchdarkly/devserver-acceptance-tests/smoketests"
)

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(2)
	}

	cfg, err := params.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", err)
		os.Exit(1)
	}

	mainDebugLogger := logging.NullLogger()
	if params.debugAll {
		mainDebugLogger = logging.StandardLogger(os.Stdout, "")
	}

	suite := harness.NewSuite(cfg, harness.WithLogger(mainDebugLogger), harness.WithOutput(os.Stdout))
	if err := suite.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not start web server: %s\n", err)
		os.Exit(1)
	}
	stopOnSignal(suite)

	fmt.Println()
	framework.PrintFilterDescription(os.Stdout, params.filters)

	fmt.Println("Running test suite")

	testLogger := framework.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := smoketests.RunSmokeTests(suite, params.filters.AsFilter, testLogger)

	if err := suite.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Coverage report was not written: %s\n", err)
	} else if cfg.EnableCodeCoverage {
		fmt.Printf("Coverage report written to %s\n", cfg.CoveragePath)
	}

	fmt.Println()
	framework.PrintResults(os.Stdout, results)
	if !results.OK() {
		os.Exit(1)
	}
}

// stopOnSignal makes sure an interrupted run does not leave the server running.
func stopOnSignal(suite *harness.Suite) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		fmt.Fprintf(os.Stderr, "Received %s, stopping web server\n", sig)
		_ = suite.Stop()
		os.Exit(1)
	}()
}
