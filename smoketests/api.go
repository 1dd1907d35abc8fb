package smoketests

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/devserver-acceptance-tests/config"
	"github.com/launchdarkly/devserver-acceptance-tests/framework"

	"github.com/stretchr/testify/require"
)

const requestTimeout = time.Second * 10

type environment struct {
	config  config.Config
	client  *http.Client
	baseURL string
}

// T represents a test or subtest in the smoke test suite.
//
// It implements the same basic functionality as Go's testing.T, on top of our framework
// package, so the assert and require packages can be used by passing the *T as if it
// were a *testing.T. It also has methods for making requests to the server under test;
// those fail the test immediately if the request cannot be made at all.
type T struct {
	context *framework.Context
	env     *environment
}

// Response is what the server returned for a request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(&T{context: c, env: t.env})
	})
}

// Debug logs some debug output for the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Skip skips the rest of the test, giving a reason.
func (t *T) Skip(format string, args ...interface{}) {
	t.context.SkipWithReason(fmt.Sprintf(format, args...))
}

// Config returns the suite configuration the server was started with.
func (t *T) Config() config.Config {
	return t.env.config
}

// Get sends a GET request for a path on the server under test.
func (t *T) Get(path string) Response {
	return t.Request(http.MethodGet, path, nil)
}

// Request sends a request for a path on the server under test. Headers are added to
// the client's default headers; a header set to an empty value replaces the default.
func (t *T) Request(method, path string, headers http.Header) Response {
	url := strings.TrimSuffix(t.env.baseURL, "/") + path
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for name, values := range headers {
		req.Header[http.CanonicalHeaderKey(name)] = values
	}

	t.Debug("%s %s", method, url)
	resp, err := t.env.client.Do(req)
	require.NoError(t, err, "request to %s failed", url)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	t.Debug("status %d, %d byte(s)", resp.StatusCode, len(body))
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
}
