package devserver

import (
	"net/http"
	"strings"

	"github.com/launchdarkly/devserver-acceptance-tests/coverage"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the handler returned by New.
type Options struct {
	// DocumentRoot is the directory static files are served from.
	DocumentRoot string
	// RouterFile is an optional router rules file; see Rules.
	RouterFile string
	// App, if set, handles requests that match no router rule instead of the static
	// file server.
	App http.Handler
	// FragmentDir is where coverage fragments are kept. Defaults to
	// coverage.DefaultFragmentDir().
	FragmentDir string
	// Tracer records coverage for requests that ask for it. If nil, requests are
	// never traced but the collect endpoint still works.
	Tracer coverage.Tracer
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Registry receives the coverage metrics. Defaults to a new registry.
	Registry *prometheus.Registry
}

// New builds the server's handler.
func New(opts Options) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	var rules *Rules
	if opts.RouterFile != "" {
		r, err := LoadRules(opts.RouterFile)
		if err != nil {
			return nil, err
		}
		rules = r
	}

	app := opts.App
	if app == nil {
		if opts.DocumentRoot == "" {
			return nil, errors.New("a document root or an application handler is required")
		}
		app = staticHandler(opts.DocumentRoot)
	}

	store := coverage.NewFragmentStore(opts.FragmentDir)
	metrics := coverage.NewMetrics(registry)
	hook := &coverage.Hook{
		Store:   store,
		Tracer:  opts.Tracer,
		Logger:  logger.Named("coverage"),
		Metrics: metrics,
	}

	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	side := router.PathPrefix(coverage.SideChannelPrefix).Subrouter()
	side.Handle("/collect", coverage.CollectHandler(store, logger.Named("coverage"), metrics))
	side.Handle("/metrics", allowMethods(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), http.MethodGet, http.MethodHead))
	// Nothing under the side channel prefix reaches the site routes or the tracer.
	side.PathPrefix("/").Handler(http.NotFoundHandler())

	site := router.PathPrefix("/").Subrouter()
	site.Use(hook.Middleware)
	site.PathPrefix("/").Handler(rules.Handler(opts.DocumentRoot, app))

	return router, nil
}

// allowMethods answers 405 for any method not listed instead of letting the router
// fall through to a later route.
func allowMethods(next http.Handler, methods ...string) http.Handler {
	allow := strings.Join(methods, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Int64("bytes", m.Written),
				zap.Duration("duration", m.Duration))
		})
	}
}
