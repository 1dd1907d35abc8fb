package coverage

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// FragmentDirName is the directory under the system temp dir that holds fragments
	// when no other location is configured.
	FragmentDirName = "acceptance-coverage"

	fragmentExt     = ".cov"
	fragmentDirMode = 0o775
)

// DefaultFragmentDir returns the fragment directory used when none is configured.
func DefaultFragmentDir() string {
	return filepath.Join(os.TempDir(), FragmentDirName)
}

// ValidSessionID reports whether id can safely be used as part of a fragment file name.
func ValidSessionID(id string) bool {
	return id != "" &&
		!strings.ContainsAny(id, `/\`) &&
		!strings.Contains(id, "..") &&
		strings.TrimSpace(id) == id
}

// FragmentStore keeps per-request coverage as individual files named
// <random>.<sessionID>.cov, so that concurrent requests never write the same file
// and a session's fragments can be selected by suffix.
type FragmentStore struct {
	Dir string

	lock    sync.Mutex
	pending int
	idle    chan struct{}
}

// NewFragmentStore returns a store rooted at dir, or at DefaultFragmentDir if dir is
// empty. The directory is created on first use.
func NewFragmentStore(dir string) *FragmentStore {
	if dir == "" {
		dir = DefaultFragmentDir()
	}
	return &FragmentStore{Dir: dir}
}

// BeginWrite records that a fragment is about to be written, typically by a request
// whose response may already have reached the client. The returned function must be
// called once the write has finished or been abandoned; extra calls are ignored.
func (s *FragmentStore) BeginWrite() func() {
	s.lock.Lock()
	s.pending++
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	s.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			defer s.lock.Unlock()
			s.pending--
			if s.pending == 0 {
				close(s.idle)
				s.idle = nil
			}
		})
	}
}

// WaitForWrites blocks until no write begun with BeginWrite is outstanding, or until
// the timeout elapses. It returns false on timeout.
func (s *FragmentStore) WaitForWrites(timeout time.Duration) bool {
	s.lock.Lock()
	idle := s.idle
	s.lock.Unlock()
	if idle == nil {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

// AggregateStats describes what an Aggregate call did.
type AggregateStats struct {
	// Consumed is the number of fragments read and deleted.
	Consumed int
	// Skipped is the number of fragments that could not be read or decoded.
	Skipped int
}

func (s *FragmentStore) suffix(sessionID string) string {
	return "." + sessionID + fragmentExt
}

// Write stores one request's coverage for the session and returns the path of the
// new fragment. The fragment only appears under its final name once it has been
// completely written.
func (s *FragmentStore) Write(sessionID string, cov Coverage) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", errors.Errorf("invalid test session id %q", sessionID)
	}
	if err := os.MkdirAll(s.Dir, fragmentDirMode); err != nil {
		return "", errors.Wrap(err, "cannot create fragment directory")
	}
	data, err := json.Marshal(cov)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	name := hex.EncodeToString(id[:])
	tmp := filepath.Join(s.Dir, "."+name+".tmp")
	final := filepath.Join(s.Dir, name+s.suffix(sessionID))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.Wrap(err, "cannot write fragment")
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "cannot rename fragment")
	}
	return final, nil
}

// Aggregate reads, deletes, and merges every fragment belonging to the session.
// Fragments for other sessions are left alone. Coverage for source files that no
// longer exist is dropped, as are fragments that cannot be read or decoded.
//
// Calling Aggregate again for the same session returns an empty Coverage unless new
// fragments were written in between.
func (s *FragmentStore) Aggregate(sessionID string) (Coverage, AggregateStats, error) {
	var stats AggregateStats
	result := make(Coverage)
	if !ValidSessionID(sessionID) {
		return result, stats, errors.Errorf("invalid test session id %q", sessionID)
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, stats, errors.Wrap(os.MkdirAll(s.Dir, fragmentDirMode), "cannot create fragment directory")
		}
		return result, stats, errors.Wrap(err, "cannot list fragment directory")
	}

	suffix := s.suffix(sessionID)
	exists := make(map[string]bool)
	fileExists := func(path string) bool {
		e, ok := exists[path]
		if !ok {
			e = isRegularFile(path)
			exists[path] = e
		}
		return e
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		cov, err := readAndRemove(path)
		if err != nil {
			stats.Skipped++
			errs = append(errs, err)
			continue
		}
		stats.Consumed++
		result.Merge(cov.withoutMissingFiles(fileExists))
	}
	if len(errs) > 0 {
		return result, stats, errors.Wrapf(errs[0], "%d fragment(s) skipped, first error", len(errs))
	}
	return result, stats, nil
}

func readAndRemove(path string) (Coverage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read fragment %s", filepath.Base(path))
	}
	_ = os.Remove(path)
	var cov Coverage
	if err := json.Unmarshal(data, &cov); err != nil {
		return nil, errors.Wrapf(err, "malformed fragment %s", filepath.Base(path))
	}
	if cov == nil {
		cov = make(Coverage)
	}
	return cov, nil
}
