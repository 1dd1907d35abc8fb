package coverage

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracer struct {
	available bool
	startErr  error
	stopErr   error
	result    Coverage
	lock      sync.Mutex
	started   int
	stopped   int
}

func (f *fakeTracer) Available() bool { return f.available }

func (f *fakeTracer) Start() (TraceSession, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	return fakeTraceSession{f}, nil
}

type fakeTraceSession struct{ tracer *fakeTracer }

func (s fakeTraceSession) Stop() (Coverage, error) {
	s.tracer.lock.Lock()
	defer s.tracer.lock.Unlock()
	s.tracer.stopped++
	return s.tracer.result, s.tracer.stopErr
}

func coverageRequest(sessionID string) *http.Request {
	r := httptest.NewRequest("GET", "/page.html", nil)
	r.Header.Set(HeaderEnableCoverage, "1")
	r.Header.Set(HeaderTestSessionID, sessionID)
	return r
}

func newTestHook(t *testing.T, tracer *fakeTracer) (*Hook, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return &Hook{
		Store:   NewFragmentStore(t.TempDir()),
		Tracer:  tracer,
		Metrics: NewMetrics(reg),
	}, reg
}

func TestHookWritesFragmentForCoveredRequest(t *testing.T) {
	src := sourceFile(t, t.TempDir(), "handler.go")
	tracer := &fakeTracer{available: true, result: Coverage{src: {4: Executed, 5: NotExecuted}}}
	hook, _ := newTestHook(t, tracer)

	handler := hook.Middleware(httphelpers.HandlerWithStatus(200))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, coverageRequest("S1"))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 1, tracer.started)
	assert.Equal(t, 1, tracer.stopped)
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.Metrics.fragmentsWritten))

	result, stats, err := hook.Store.Aggregate("S1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Consumed)
	assert.Equal(t, tracer.result, result)
}

func TestHookIgnoresRequestsWithoutBothHeaders(t *testing.T) {
	tracer := &fakeTracer{available: true, result: Coverage{}}
	hook, _ := newTestHook(t, tracer)
	handler := hook.Middleware(httphelpers.HandlerWithStatus(204))

	noSession := httptest.NewRequest("GET", "/", nil)
	noSession.Header.Set(HeaderEnableCoverage, "1")

	noEnable := httptest.NewRequest("GET", "/", nil)
	noEnable.Header.Set(HeaderTestSessionID, "S1")

	disabled := coverageRequest("S1")
	disabled.Header.Set(HeaderEnableCoverage, "0")

	badSession := coverageRequest("../S1")

	for _, r := range []*http.Request{noSession, noEnable, disabled, badSession} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, 204, w.Code)
	}
	assert.Equal(t, 0, tracer.started)
	assert.Empty(t, fragmentNames(t, hook.Store.Dir))
}

func TestHookDoesNothingWhenTracerUnavailable(t *testing.T) {
	tracer := &fakeTracer{available: false}
	hook, _ := newTestHook(t, tracer)

	w := httptest.NewRecorder()
	hook.Middleware(httphelpers.HandlerWithStatus(200)).ServeHTTP(w, coverageRequest("S1"))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 0, tracer.started)
}

func TestHookWithoutTracerPassesThrough(t *testing.T) {
	hook := &Hook{Store: NewFragmentStore(t.TempDir())}
	w := httptest.NewRecorder()
	hook.Middleware(httphelpers.HandlerWithStatus(202)).ServeHTTP(w, coverageRequest("S1"))
	assert.Equal(t, 202, w.Code)
}

func TestHookPersistsWhenHandlerPanics(t *testing.T) {
	src := sourceFile(t, t.TempDir(), "handler.go")
	tracer := &fakeTracer{available: true, result: Coverage{src: {9: Executed}}}
	hook, _ := newTestHook(t, tracer)

	handler := hook.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler failed")
	}))
	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), coverageRequest("S1"))
	})

	assert.Equal(t, 1, tracer.stopped)
	result, _, err := hook.Store.Aggregate("S1")
	require.NoError(t, err)
	assert.Equal(t, tracer.result, result)
}

func TestHookSwallowsTracerFailures(t *testing.T) {
	for _, tracer := range []*fakeTracer{
		{available: true, startErr: errors.New("no tracing today")},
		{available: true, stopErr: errors.New("lost the counters")},
	} {
		hook, _ := newTestHook(t, tracer)
		w := httptest.NewRecorder()
		hook.Middleware(httphelpers.HandlerWithStatus(200)).ServeHTTP(w, coverageRequest("S1"))

		assert.Equal(t, 200, w.Code)
		assert.Empty(t, fragmentNames(t, hook.Store.Dir))
	}
}

func TestHookSwallowsFragmentWriteFailure(t *testing.T) {
	tracer := &fakeTracer{available: true, result: Coverage{}}
	hook, _ := newTestHook(t, tracer)
	blocker := sourceFile(t, t.TempDir(), "not-a-directory")
	hook.Store = NewFragmentStore(blocker)

	w := httptest.NewRecorder()
	hook.Middleware(httphelpers.HandlerWithStatus(200)).ServeHTTP(w, coverageRequest("S1"))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.Metrics.failures.WithLabelValues("write")))
}

func TestFlagEnabled(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "on"} {
		assert.True(t, flagEnabled(v), v)
	}
	for _, v := range []string{"", "0", "false", "FALSE", "off", "no"} {
		assert.False(t, flagEnabled(v), v)
	}
}
