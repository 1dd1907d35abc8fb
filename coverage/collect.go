package coverage

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// SideChannelPrefix is the path prefix reserved for coverage control endpoints.
	// Requests under it never reach the application and are never traced.
	SideChannelPrefix = "/__coverage"
	// CollectPath is where the harness POSTs to retrieve a session's merged coverage.
	CollectPath = SideChannelPrefix + "/collect"
	// MetricsPath serves the hook and collect metrics in Prometheus format.
	MetricsPath = SideChannelPrefix + "/metrics"

	pendingWritesTimeout = time.Second * 10
)

// CollectHandler merges and returns all fragments for the session named by
// HeaderTestSessionID. The response body is the JSON encoding of a Coverage. The
// fragments are deleted, so a second collect for the same session returns "{}".
// Fragments still being written by traced requests are waited for first.
func CollectHandler(store *FragmentStore, logger *zap.Logger, metrics *Metrics) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sessionID := r.Header.Get(HeaderTestSessionID)
		if !ValidSessionID(sessionID) {
			http.Error(w, "missing or invalid "+HeaderTestSessionID+" header", http.StatusBadRequest)
			return
		}

		if !store.WaitForWrites(pendingWritesTimeout) {
			logger.Warn("gave up waiting for coverage fragments still being written", zap.String("session", sessionID))
		}
		result, stats, err := store.Aggregate(sessionID)
		if err != nil {
			logger.Warn("coverage collection was incomplete", zap.String("session", sessionID), zap.Error(err))
		}
		metrics.collected(stats)
		logger.Info("collected coverage",
			zap.String("session", sessionID),
			zap.Int("fragments", stats.Consumed),
			zap.Int("skipped", stats.Skipped),
			zap.Int("files", len(result)))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	})
}
