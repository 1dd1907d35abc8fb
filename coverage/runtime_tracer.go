package coverage

import (
	"os"
	"os/exec"
	"path/filepath"
	rtcoverage "runtime/coverage"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/tools/cover"
)

const profileFileName = "coverage.profile"

// RuntimeTracer traces a Go server binary built with "-cover -covermode=atomic".
//
// Go coverage counters are global to the process, so only one request can be traced
// at a time: Start blocks until the previous TraceSession has been stopped. Requests
// that are not traced still run concurrently and may show up in a traced request's
// coverage.
//
// Stop converts the counters to a text profile with "go tool covdata textfmt" and
// turns profile blocks into line flags.
type RuntimeTracer struct {
	// ModulePath and ModuleDir map the import-path file names used in Go coverage
	// profiles back to files on disk. For example, with ModulePath "example.com/app"
	// and ModuleDir "/src/app", "example.com/app/web/h.go" becomes "/src/app/web/h.go".
	// ModulePath defaults to the main module of the running binary.
	ModulePath string
	ModuleDir  string
	// GoBinary is the go command used to run covdata. Defaults to "go".
	GoBinary string
	// TempDir is where counter snapshots are written. Defaults to os.TempDir().
	TempDir string

	lock           sync.Mutex
	availableOnce  sync.Once
	available      bool
	modulePathOnce sync.Once
	modulePath     string
}

func (t *RuntimeTracer) Available() bool {
	t.availableOnce.Do(func() {
		t.available = rtcoverage.ClearCounters() == nil
	})
	return t.available
}

func (t *RuntimeTracer) Start() (TraceSession, error) {
	t.lock.Lock()
	if err := rtcoverage.ClearCounters(); err != nil {
		t.lock.Unlock()
		return nil, errors.Wrap(err, "cannot reset coverage counters")
	}
	return &runtimeTraceSession{tracer: t}, nil
}

type runtimeTraceSession struct {
	tracer  *RuntimeTracer
	stopped bool
}

func (s *runtimeTraceSession) Stop() (Coverage, error) {
	if s.stopped {
		return nil, errors.New("trace session already stopped")
	}
	s.stopped = true
	defer s.tracer.lock.Unlock()
	return s.tracer.snapshot()
}

func (t *RuntimeTracer) snapshot() (Coverage, error) {
	dir, err := os.MkdirTemp(t.TempDir, "covdata-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := rtcoverage.WriteMetaDir(dir); err != nil {
		return nil, errors.Wrap(err, "cannot write coverage meta-data")
	}
	if err := rtcoverage.WriteCountersDir(dir); err != nil {
		return nil, errors.Wrap(err, "cannot write coverage counters")
	}

	goBinary := t.GoBinary
	if goBinary == "" {
		goBinary = "go"
	}
	profilePath := filepath.Join(dir, profileFileName)
	cmd := exec.Command(goBinary, "tool", "covdata", "textfmt", "-i="+dir, "-o="+profilePath) //nolint:gosec
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, errors.Wrapf(err, "covdata textfmt failed: %s", strings.TrimSpace(string(out)))
	}

	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse coverage profile")
	}
	return FromProfiles(profiles, t.resolve), nil
}

func (t *RuntimeTracer) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	modulePath := t.mainModulePath()
	if modulePath != "" && t.ModuleDir != "" && strings.HasPrefix(name, modulePath+"/") {
		return filepath.Join(t.ModuleDir, filepath.FromSlash(strings.TrimPrefix(name, modulePath+"/")))
	}
	return name
}

func (t *RuntimeTracer) mainModulePath() string {
	t.modulePathOnce.Do(func() {
		t.modulePath = t.ModulePath
		if t.modulePath == "" {
			t.modulePath = BinaryModulePath()
		}
	})
	return t.modulePath
}

// BinaryModulePath returns the path of the main module the running binary was built
// from, or "" if the binary carries no build information.
func BinaryModulePath() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return info.Main.Path
}

// FromProfiles converts Go coverage profiles to line coverage. Every line spanned by
// a block with statements is Executed if the block ran and NotExecuted otherwise;
// where blocks overlap on a line, Executed wins. If resolve is not nil it maps
// profile file names to the paths used as keys.
func FromProfiles(profiles []*cover.Profile, resolve func(string) string) Coverage {
	ret := make(Coverage)
	for _, p := range profiles {
		name := p.FileName
		if resolve != nil {
			name = resolve(name)
		}
		lines := make(LineCoverage)
		for _, b := range p.Blocks {
			if b.NumStmt == 0 {
				continue
			}
			flag := NotExecuted
			if b.Count > 0 {
				flag = Executed
			}
			for n := b.StartLine; n <= b.EndLine; n++ {
				if cur, ok := lines[n]; !ok || flag > cur {
					lines[n] = flag
				}
			}
		}
		ret.Merge(Coverage{name: lines})
	}
	return ret
}
