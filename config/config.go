// Package config holds the settings of an acceptance suite run: where the development
// server listens, what it serves, how long to wait for it, and what to do with
// coverage.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeoutSeconds = 5
	DefaultCoveragePath   = "coverage"
	DefaultReportName     = "acceptance-suite"
)

// Config is usually read from a YAML file:
//
//	url: http://127.0.0.1:8099
//	documentRoot: public
//	router: routes.json
//	timeout: 5
//	enableCodeCoverage: true
//	whitelist: [internal, web]
//	coveragePath: build/coverage
//	server:
//	  binary: ./bin/devserver
type Config struct {
	URL                string   `yaml:"url"`
	DocumentRoot       string   `yaml:"documentRoot"`
	Router             string   `yaml:"router"`
	TimeoutSeconds     int      `yaml:"timeout"`
	EnableCodeCoverage bool     `yaml:"enableCodeCoverage"`
	Whitelist          []string `yaml:"whitelist"`
	CoveragePath       string   `yaml:"coveragePath"`
	ReportName         string   `yaml:"reportName"`
	Server             Server   `yaml:"server"`
}

// Server describes how to run the development server binary.
type Server struct {
	Binary     string   `yaml:"binary"`
	Args       []string `yaml:"args"`
	Env        []string `yaml:"env"`
	OutputFile string   `yaml:"outputFile"`
	// ModuleDir is the source directory of the server's main module, used to map
	// coverage back to files on disk. Defaults to the config file's directory.
	ModuleDir string `yaml:"moduleDir"`
}

// Load reads a YAML config file, fills in defaults, and validates the result.
// Relative paths in the file are resolved against the file's directory.
func Load(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot read config file")
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid config file %s", filename)
	}
	c.resolvePaths(filepath.Dir(filename))
	return c, nil
}

// Parse decodes YAML config data, fills in defaults, and validates the result.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) ApplyDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.CoveragePath == "" {
		c.CoveragePath = DefaultCoveragePath
	}
	if c.ReportName == "" {
		c.ReportName = DefaultReportName
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if _, _, err := c.HostPort(); err != nil {
		return err
	}
	if c.DocumentRoot == "" {
		return errors.New("documentRoot is required")
	}
	if c.TimeoutSeconds < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}

// HostPort returns the host and port of URL. A URL without a port uses port 80.
func (c Config) HostPort() (string, int, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid url %q", c.URL)
	}
	if u.Hostname() == "" {
		return "", 0, errors.Errorf("url %q has no host", c.URL)
	}
	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return "", 0, errors.Errorf("url %q has an invalid port", c.URL)
		}
	}
	return u.Hostname(), port, nil
}

// Timeout returns the startup timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DocumentRoot = abs(c.DocumentRoot)
	c.Router = abs(c.Router)
	c.CoveragePath = abs(c.CoveragePath)
	c.Server.OutputFile = abs(c.Server.OutputFile)
	if c.Server.ModuleDir == "" {
		c.Server.ModuleDir = base
	}
	c.Server.ModuleDir = abs(c.Server.ModuleDir)
	if d, err := filepath.Abs(c.Server.ModuleDir); err == nil {
		c.Server.ModuleDir = d
	}
	for i, d := range c.Whitelist {
		c.Whitelist[i] = abs(d)
	}
}
