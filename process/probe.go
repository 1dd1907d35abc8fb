package process

import (
	"net"
	"strconv"
	"time"
)

const defaultProbeTimeout = time.Millisecond * 500

// ProbeFunc reports whether a TCP connection to host:port can be established.
type ProbeFunc func(host string, port int) bool

// Probe attempts a TCP connection to host:port. Any failure, whether the connection
// was refused, timed out, or the host could not be resolved, is reported as false.
func Probe(host string, port int) bool {
	return ProbeWithTimeout(host, port, defaultProbeTimeout)
}

// ProbeWithTimeout is like Probe but with a caller-specified connect timeout.
func ProbeWithTimeout(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
