package process

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/launchdarkly/devserver-acceptance-tests/logging"

	"github.com/pkg/errors"
)

// DefaultServerBinary is the server executable used when Launcher.Binary is empty.
// It is looked up in PATH.
const DefaultServerBinary = "devserver"

// ErrLaunchFailed is returned when the server process could not be started or did
// not report a usable process ID.
var ErrLaunchFailed = errors.New("could not start the web server")

// ServerHandle identifies a server process started by a Launcher.
type ServerHandle struct {
	PID int
}

// Launcher starts a development web server as a detached child process.
//
// The server is invoked as:
//
//	<Binary> -listen <host>:<port> -root <documentRoot> [-router <router>] [-module-dir <ModuleDir>] [ExtraArgs...]
type Launcher struct {
	// Binary is the server executable. Defaults to DefaultServerBinary.
	Binary string
	// ExtraArgs are appended after the standard arguments.
	ExtraArgs []string
	// Env is added to the environment inherited from the current process.
	Env []string
	// OutputPath, if set, receives the server's stdout and stderr. Otherwise the
	// output is discarded.
	OutputPath string
	// ModuleDir, if set, is passed to the server as the source directory of its main
	// module so that coverage refers to files on disk.
	ModuleDir string
	// Logger receives debug output about launched and killed processes.
	Logger logging.Logger
}

func (l *Launcher) logger() logging.Logger {
	if l.Logger == nil {
		return logging.NullLogger()
	}
	return l.Logger
}

func (l *Launcher) command(host string, port int, documentRoot, router string) []string {
	binary := l.Binary
	if binary == "" {
		binary = DefaultServerBinary
	}
	args := []string{binary, "-listen", host + ":" + strconv.Itoa(port), "-root", documentRoot}
	if router != "" {
		args = append(args, "-router", router)
	}
	if l.ModuleDir != "" {
		args = append(args, "-module-dir", l.ModuleDir)
	}
	return append(args, l.ExtraArgs...)
}

// Launch starts the server bound to host:port, serving documentRoot and optionally
// using a router rules file. It does not wait for the server to accept connections.
func (l *Launcher) Launch(host string, port int, documentRoot, router string) (*ServerHandle, error) {
	args := l.command(host, port, documentRoot, router)

	var rendered commandBuilder
	rendered.add(args...)
	l.logger().Printf("Starting web server: %s", rendered)

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	cmd.Env = append(os.Environ(), l.Env...)
	if l.OutputPath != "" {
		out, err := os.OpenFile(l.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrapf(ErrLaunchFailed, "cannot open server output file: %s", err)
		}
		defer out.Close() // the child keeps its own descriptor
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrLaunchFailed, "%s", err)
	}
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil, ErrLaunchFailed
	}
	pid := cmd.Process.Pid

	// Reap the child whenever it exits so a killed server does not linger as a zombie.
	go func() {
		_ = cmd.Wait()
	}()

	l.logger().Printf("Web server started with pid %d", pid)
	return &ServerHandle{PID: pid}, nil
}

// Kill sends a termination signal to the server. It does not wait for the process
// to exit.
func (l *Launcher) Kill(handle *ServerHandle) error {
	if handle == nil || handle.PID <= 0 {
		return nil
	}
	l.logger().Printf("Stopping web server with pid %d", handle.PID)
	return Kill(handle.PID)
}

// Kill sends SIGTERM to the process, falling back to a hard kill on platforms that
// cannot deliver it.
func Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return p.Kill()
	}
	return nil
}
