package coverage

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// HeaderEnableCoverage asks the server to trace the request.
	HeaderEnableCoverage = "X-Enable-Coverage"
	// HeaderTestSessionID identifies the acceptance suite run that made the request.
	// Fragments are filed under it, and the collect endpoint merges by it.
	HeaderTestSessionID = "X-Test-Session-Id"
)

// Hook is HTTP middleware that traces requests which ask for it and stores what was
// traced as a fragment.
type Hook struct {
	Store   *FragmentStore
	Tracer  Tracer
	Logger  *zap.Logger
	Metrics *Metrics
}

// Middleware wraps next. Requests without both coverage headers, or arriving when the
// tracer is unavailable, are passed through untouched.
func (h *Hook) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := coverageRequested(r)
		if !ok || h.Tracer == nil || !h.Tracer.Available() {
			next.ServeHTTP(w, r)
			return
		}

		session, err := h.Tracer.Start()
		if err != nil {
			h.logger().Warn("could not start tracing", zap.String("path", r.URL.Path), zap.Error(err))
			h.Metrics.failed("start")
			next.ServeHTTP(w, r)
			return
		}
		h.Metrics.traced()

		// Runs however the handler exits, including by panic. A collect that arrives
		// before the fragment is on disk waits for it.
		done := h.Store.BeginWrite()
		defer done()
		defer h.persist(sessionID, r.URL.Path, session, time.Now())

		next.ServeHTTP(w, r)
	})
}

func (h *Hook) persist(sessionID, path string, session TraceSession, started time.Time) {
	logger := h.logger().With(zap.String("session", sessionID), zap.String("path", path))

	cov, err := session.Stop()
	if err != nil {
		logger.Warn("could not stop tracing", zap.Error(err))
		h.Metrics.failed("stop")
		return
	}
	fragment, err := h.Store.Write(sessionID, cov)
	if err != nil {
		logger.Warn("could not write coverage fragment", zap.Error(err))
		h.Metrics.failed("write")
		return
	}
	h.Metrics.fragmentWritten()
	logger.Debug("wrote coverage fragment",
		zap.String("fragment", fragment),
		zap.Int("files", len(cov)),
		zap.Duration("elapsed", time.Since(started)))
}

func (h *Hook) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func coverageRequested(r *http.Request) (string, bool) {
	if !flagEnabled(r.Header.Get(HeaderEnableCoverage)) {
		return "", false
	}
	sessionID := r.Header.Get(HeaderTestSessionID)
	if !ValidSessionID(sessionID) {
		return "", false
	}
	return sessionID, true
}

func flagEnabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}
