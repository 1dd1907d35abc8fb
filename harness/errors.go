package harness

import (
	"github.com/launchdarkly/devserver-acceptance-tests/process"

	"github.com/pkg/errors"
)

// Startup failures. They are returned wrapped with details, so use errors.Is.
var (
	// ErrPortInUse means something was already listening on the configured port, so
	// no server was launched.
	ErrPortInUse = errors.New("port already in use")
	// ErrLaunchFailed means the server process could not be started.
	ErrLaunchFailed = process.ErrLaunchFailed
	// ErrStartupTimeout means the server never accepted a connection within the
	// configured timeout. The process has been killed.
	ErrStartupTimeout = errors.New("web server did not come up within the timeout")
	// ErrAlreadyStarted means Start was called on a Suite that is not idle.
	ErrAlreadyStarted = errors.New("suite already started")
)
