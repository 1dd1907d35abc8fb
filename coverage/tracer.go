package coverage

// Tracer records which source lines execute while a request is being handled.
type Tracer interface {
	// Available reports whether the process is able to trace at all. The hook does
	// nothing when it returns false.
	Available() bool
	// Start begins recording. The returned TraceSession must be stopped exactly once.
	Start() (TraceSession, error)
}

// TraceSession is one in-progress recording started by a Tracer.
type TraceSession interface {
	// Stop ends the recording and returns the coverage it collected.
	Stop() (Coverage, error)
}
