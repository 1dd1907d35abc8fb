package smoketests

import (
	"net/http"
	"strings"

	"github.com/launchdarkly/devserver-acceptance-tests/coverage"

	"github.com/stretchr/testify/assert"
)

func DoSideChannelTests(t *T) {
	t.Run("collect requires POST", func(t *T) {
		resp := t.Get(coverage.CollectPath)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.Status)
		assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	})

	t.Run("collect requires a session ID", func(t *T) {
		resp := t.Request(http.MethodPost, coverage.CollectPath,
			http.Header{coverage.HeaderTestSessionID: {""}})
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("collect for an unknown session is empty", func(t *T) {
		resp := t.Request(http.MethodPost, coverage.CollectPath,
			http.Header{coverage.HeaderTestSessionID: {"smoke-test-unknown-session"}})
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, "{}", string(resp.Body))
	})

	t.Run("metrics", func(t *T) {
		resp := t.Get(coverage.MetricsPath)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.True(t, strings.Contains(string(resp.Body), "devserver_coverage_collections_total"),
			"metrics output did not include the coverage counters")
	})
}
