package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/launchdarkly/devserver-acceptance-tests/config"
	"github.com/launchdarkly/devserver-acceptance-tests/framework"
)

const defaultConfigFile = "acceptance.yml"

type commandParams struct {
	configFile string
	url        string
	noCoverage bool
	filters    framework.RegexFilters
	debug      bool
	debugAll   bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.StringVar(&c.configFile, "config", defaultConfigFile, "suite configuration file (YAML)")
	fs.StringVar(&c.url, "url", "", "override the server URL from the configuration file")
	fs.BoolVar(&c.noCoverage, "no-coverage", false, "do not collect code coverage even if the configuration enables it")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return false
	}
	return true
}

// LoadConfig reads the configuration file and applies the command-line overrides.
func (c *commandParams) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return cfg, err
	}
	if c.url != "" {
		cfg.URL = c.url
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	if c.noCoverage {
		cfg.EnableCodeCoverage = false
	}
	return cfg, nil
}
