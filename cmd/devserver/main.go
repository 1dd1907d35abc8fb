package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchdarkly/devserver-acceptance-tests/coverage"
	"github.com/launchdarkly/devserver-acceptance-tests/devserver"

	"go.uber.org/zap"
)

const shutdownTimeout = time.Second * 5

type serverParams struct {
	listen      string
	root        string
	router      string
	fragmentDir string
	modulePath  string
	moduleDir   string
	debug       bool
}

func (p *serverParams) Read(args []string) bool {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.StringVar(&p.listen, "listen", "localhost:8080", "host:port to listen on")
	fs.StringVar(&p.root, "root", ".", "document root")
	fs.StringVar(&p.router, "router", "", "optional router rules file (JSON)")
	fs.StringVar(&p.fragmentDir, "fragment-dir", coverage.DefaultFragmentDir(), "directory for coverage fragments")
	fs.StringVar(&p.modulePath, "module-path", "", "module path used in coverage profiles (default: the main module of this binary)")
	fs.StringVar(&p.moduleDir, "module-dir", "", "source directory of -module-path")
	fs.BoolVar(&p.debug, "debug", false, "log every request")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if p.moduleDir == "" {
		p.moduleDir, _ = os.Getwd()
	}
	return true
}

func main() {
	var params serverParams
	if !params.Read(os.Args) {
		os.Exit(2)
	}

	logger, err := newLogger(params.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create logger: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(params, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func run(params serverParams, logger *zap.Logger) error {
	tracer := &coverage.RuntimeTracer{
		ModulePath: params.modulePath,
		ModuleDir:  params.moduleDir,
	}
	handler, err := devserver.New(devserver.Options{
		DocumentRoot: params.root,
		RouterFile:   params.router,
		FragmentDir:  params.fragmentDir,
		Tracer:       tracer,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", params.listen)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second * 10}

	logger.Info("listening",
		zap.String("address", ln.Addr().String()),
		zap.String("root", params.root),
		zap.String("router", params.router),
		zap.Bool("coverage", tracer.Available()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
