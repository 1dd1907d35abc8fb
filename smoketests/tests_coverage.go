package smoketests

import (
	"bufio"
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/launchdarkly/devserver-acceptance-tests/coverage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fragmentWriteTimeout = time.Second * 5

const (
	tracedRequestsMetric   = "devserver_coverage_traced_requests_total"
	fragmentsWrittenMetric = "devserver_coverage_fragments_written_total"
)

func DoCoverageTests(t *T) {
	if !t.Config().EnableCodeCoverage {
		t.Skip("code coverage is not enabled")
	}

	t.Run("requests are traced", func(t *T) {
		before := t.metrics()
		t.Get("/")
		after := t.metrics()
		if after[tracedRequestsMetric] == before[tracedRequestsMetric] {
			t.Skip("server is not recording coverage; build it with -cover -covermode=atomic")
		}
		assert.Equal(t, before[tracedRequestsMetric]+1, after[tracedRequestsMetric])

		// The fragment is written as the handler returns, which can be after the
		// response has reached us.
		deadline := time.Now().Add(fragmentWriteTimeout)
		for after[fragmentsWrittenMetric] == before[fragmentsWrittenMetric] && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond * 50)
			after = t.metrics()
		}
		assert.Equal(t, before[fragmentsWrittenMetric]+1, after[fragmentsWrittenMetric])
	})

	t.Run("requests without the coverage header are not traced", func(t *T) {
		before := t.metrics()
		t.Request(http.MethodGet, "/", http.Header{coverage.HeaderEnableCoverage: {"0"}})
		after := t.metrics()
		assert.Equal(t, before[tracedRequestsMetric], after[tracedRequestsMetric])
	})
}

// metrics returns the values of the unlabeled counters on the metrics endpoint.
func (t *T) metrics() map[string]float64 {
	resp := t.Get(coverage.MetricsPath)
	require.Equal(t, http.StatusOK, resp.Status)

	ret := make(map[string]float64)
	scanner := bufio.NewScanner(bytes.NewReader(resp.Body))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || strings.HasPrefix(fields[0], "#") || strings.Contains(fields[0], "{") {
			continue
		}
		if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
			ret[fields[0]] = v
		}
	}
	return ret
}
