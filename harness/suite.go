package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/launchdarkly/devserver-acceptance-tests/config"
	"github.com/launchdarkly/devserver-acceptance-tests/coverage"
	"github.com/launchdarkly/devserver-acceptance-tests/logging"
	"github.com/launchdarkly/devserver-acceptance-tests/process"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	defaultPollInterval = time.Millisecond * 10
	collectTimeout      = time.Second * 30
	sessionIDPrefix     = "acceptance-coverage-"
)

// ServerLauncher starts and stops the development server process.
type ServerLauncher interface {
	Launch(host string, port int, documentRoot, router string) (*process.ServerHandle, error)
	Kill(handle *process.ServerHandle) error
}

// Suite is the context of one acceptance suite run.
type Suite struct {
	config       config.Config
	launcher     ServerLauncher
	probe        process.ProbeFunc
	logger       logging.Logger
	output       io.Writer
	httpClient   *http.Client
	pollInterval time.Duration

	state     State
	handle    *process.ServerHandle
	sessionID string
	client    *http.Client
	lock      sync.Mutex
}

// Option customizes a Suite.
type Option func(*Suite)

// WithLauncher replaces the process launcher built from the config.
func WithLauncher(l ServerLauncher) Option {
	return func(s *Suite) { s.launcher = l }
}

// WithProbe replaces process.Probe.
func WithProbe(p process.ProbeFunc) Option {
	return func(s *Suite) { s.probe = p }
}

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Suite) { s.logger = l }
}

// WithOutput sets where startup progress is printed. Defaults to ioutil.Discard.
func WithOutput(w io.Writer) Option {
	return func(s *Suite) { s.output = w }
}

// WithHTTPClient sets the client that the session client is derived from.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Suite) { s.httpClient = c }
}

// WithPollInterval sets how often the server is probed during startup.
func WithPollInterval(d time.Duration) Option {
	return func(s *Suite) { s.pollInterval = d }
}

// NewSuite creates an idle Suite for the given configuration.
func NewSuite(cfg config.Config, opts ...Option) *Suite {
	s := &Suite{
		config:       cfg,
		probe:        process.Probe,
		logger:       logging.NullLogger(),
		output:       ioutil.Discard,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	if s.launcher == nil {
		s.launcher = &process.Launcher{
			Binary:     cfg.Server.Binary,
			ExtraArgs:  cfg.Server.Args,
			Env:        cfg.Server.Env,
			OutputPath: cfg.Server.OutputFile,
			ModuleDir:  cfg.Server.ModuleDir,
			Logger:     s.logger,
		}
	}
	return s
}

// NewSessionID returns a new unique test session ID.
func NewSessionID() string {
	return sessionIDPrefix + uuid.NewString()
}

// Start brings the server up. On success the suite is ready and Client returns a
// client for talking to the server. On failure no server process is left running.
func (s *Suite) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateIdle {
		return errors.Wrapf(ErrAlreadyStarted, "suite is %s", s.state)
	}

	host, port, err := s.config.HostPort()
	if err != nil {
		s.state = StateFailed
		return err
	}

	if s.probe(host, port) {
		s.state = StateFailed
		return errors.Wrapf(ErrPortInUse, "something is already running on %s, aborting tests", s.config.URL)
	}
	s.state = StatePortChecked

	s.state = StateLaunching
	handle, err := s.launcher.Launch(host, port, s.config.DocumentRoot, s.config.Router)
	if err != nil || handle == nil || handle.PID <= 0 {
		s.state = StateFailed
		if handle != nil && handle.PID > 0 {
			if kerr := s.launcher.Kill(handle); kerr != nil {
				s.logger.Printf("Could not stop web server (pid %d) after failed launch: %s", handle.PID, kerr)
			}
		}
		if err == nil {
			err = ErrLaunchFailed
		} else if !errors.Is(err, ErrLaunchFailed) {
			err = errors.Wrapf(ErrLaunchFailed, "%s", err)
		}
		return err
	}
	s.handle = handle
	s.state = StateLaunched
	s.logger.Printf("Launched web server (pid %d) for %s", handle.PID, s.config.URL)

	s.state = StatePolling
	if !s.waitForServer(host, port) {
		_ = s.launcher.Kill(handle)
		s.handle = nil
		s.state = StateFailed
		return errors.Wrapf(ErrStartupTimeout,
			"could not connect to the web server within the given timeframe (%d second(s))",
			s.config.TimeoutSeconds)
	}

	s.sessionID = NewSessionID()
	headers := make(http.Header)
	headers.Set(coverage.HeaderTestSessionID, s.sessionID)
	if s.config.EnableCodeCoverage {
		headers.Set(coverage.HeaderEnableCoverage, "1")
	}
	s.client = newSessionClient(s.httpClient, headers)
	s.state = StateReady
	s.logger.Printf("Web server is ready, test session %s", s.sessionID)
	return nil
}

func (s *Suite) waitForServer(host string, port int) bool {
	fmt.Fprintf(s.output, "Waiting for web server at %s:%d", host, port)
	defer fmt.Fprintln(s.output)

	if s.probe(host, port) {
		return true
	}
	deadline := time.NewTimer(s.config.Timeout())
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return s.probe(host, port)
		case <-ticker.C:
			fmt.Fprintf(s.output, ".")
			if s.probe(host, port) {
				return true
			}
		}
	}
}

// Stop ends the suite run. If coverage is enabled the session's coverage is
// collected, filtered to the whitelist, and written as a report; any error doing so
// is returned, but the server is killed regardless. Stop is a no-op on a suite that
// was never started or has already been stopped.
func (s *Suite) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var result error
	if s.state == StateReady && s.config.EnableCodeCoverage {
		if err := s.writeCoverageReport(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if s.handle != nil {
		if err := s.launcher.Kill(s.handle); err != nil {
			s.logger.Printf("Could not stop web server (pid %d): %s", s.handle.PID, err)
		}
		s.handle = nil
	}
	if s.state == StateReady {
		s.state = StateStopped
	}
	return result
}

func (s *Suite) writeCoverageReport() error {
	cov, err := s.collectCoverage()
	if err != nil {
		return err
	}
	filtered := cov.Filter(s.config.Whitelist)
	s.logger.Printf("Collected coverage for %d file(s), %d after filtering", len(cov), len(filtered))
	if err := coverage.WriteReports(filtered, s.config.CoveragePath, s.config.ReportName); err != nil {
		return err
	}
	s.logger.Printf("Wrote coverage report to %s", s.config.CoveragePath)
	return nil
}

// CollectCoverage asks the server for the merged coverage of this session. The
// server deletes what it returns, so a second call only returns coverage recorded in
// between.
func (s *Suite) CollectCoverage() (coverage.Coverage, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != StateReady {
		return nil, errors.Errorf("cannot collect coverage, suite is %s", s.state)
	}
	return s.collectCoverage()
}

func (s *Suite) collectCoverage() (coverage.Coverage, error) {
	u, err := url.Parse(s.config.URL)
	if err != nil {
		return nil, err
	}
	u.Path = coverage.CollectPath
	u.RawQuery = ""

	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(coverage.HeaderTestSessionID, s.sessionID)

	client := s.httpClient
	if client == nil {
		client = &http.Client{Timeout: collectTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "coverage collect request failed")
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read coverage collect response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("coverage collect request returned HTTP status %d: %s", resp.StatusCode, data)
	}
	var cov coverage.Coverage
	if err := json.Unmarshal(data, &cov); err != nil {
		return nil, errors.Wrap(err, "malformed coverage collect response")
	}
	if cov == nil {
		cov = make(coverage.Coverage)
	}
	return cov, nil
}

// Client returns the HTTP client for talking to the server. Every request it sends
// carries the test session ID, plus the coverage flag if coverage is enabled. It is
// nil until Start succeeds.
func (s *Suite) Client() *http.Client {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.client
}

// SessionID returns the test session ID, or "" before Start succeeds.
func (s *Suite) SessionID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.sessionID
}

// Config returns the configuration the suite was created with.
func (s *Suite) Config() config.Config {
	return s.config
}

// BaseURL returns the configured server URL.
func (s *Suite) BaseURL() string {
	return s.config.URL
}

// State returns the current state of the suite.
func (s *Suite) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Handle returns the running server's handle, or nil if no server is running.
func (s *Suite) Handle() *process.ServerHandle {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.handle
}
