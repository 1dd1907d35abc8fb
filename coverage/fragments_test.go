package coverage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragmentNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID("acceptance-coverage-1234"))
	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("../escape"))
	assert.False(t, ValidSessionID("a/b"))
	assert.False(t, ValidSessionID(`a\b`))
	assert.False(t, ValidSessionID(" padded "))
}

func TestDefaultFragmentDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), FragmentDirName), NewFragmentStore("").Dir)
}

func TestWriteCreatesDirectoryAndNamesFragmentBySession(t *testing.T) {
	store := NewFragmentStore(filepath.Join(t.TempDir(), "nested", "fragments"))

	path, err := store.Write("S1", Coverage{"/a.go": {1: Executed}})
	require.NoError(t, err)

	assert.Equal(t, store.Dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".S1.cov"))
	prefix := strings.TrimSuffix(filepath.Base(path), ".S1.cov")
	assert.Len(t, prefix, 32)
	assert.Equal(t, []string{filepath.Base(path)}, fragmentNames(t, store.Dir))
}

func TestWriteUsesUniqueNames(t *testing.T) {
	store := NewFragmentStore(t.TempDir())
	p1, err := store.Write("S1", Coverage{})
	require.NoError(t, err)
	p2, err := store.Write("S1", Coverage{})
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
}

func TestWriteRejectsInvalidSessionID(t *testing.T) {
	store := NewFragmentStore(t.TempDir())
	_, err := store.Write("../x", Coverage{})
	assert.Error(t, err)
	assert.Empty(t, fragmentNames(t, store.Dir))
}

func TestAggregateWithNoFragmentsIsEmpty(t *testing.T) {
	store := NewFragmentStore(t.TempDir())
	result, stats, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Equal(t, AggregateStats{}, stats)
}

func TestAggregateCreatesMissingDirectory(t *testing.T) {
	store := NewFragmentStore(filepath.Join(t.TempDir(), "not-yet"))
	result, _, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.DirExists(t, store.Dir)
}

func TestAggregateTakesMaximumFlagRegardlessOfOrder(t *testing.T) {
	src := sourceFile(t, t.TempDir(), "app.go")

	for _, order := range [][]Flag{{NotExecuted, Executed}, {Executed, NotExecuted}} {
		store := NewFragmentStore(t.TempDir())
		for _, f := range order {
			_, err := store.Write("S1", Coverage{src: {10: f}})
			require.NoError(t, err)
		}

		result, stats, err := store.Aggregate("S1")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Consumed)
		assert.Equal(t, Coverage{src: {10: Executed}}, result)
	}
}

func TestAggregateConsumesFragments(t *testing.T) {
	src := sourceFile(t, t.TempDir(), "app.go")
	store := NewFragmentStore(t.TempDir())
	_, err := store.Write("S1", Coverage{src: {1: Executed}})
	require.NoError(t, err)

	first, _, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, stats, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 0, stats.Consumed)
	assert.Empty(t, fragmentNames(t, store.Dir))
}

func TestAggregateIsolatesSessions(t *testing.T) {
	dir := t.TempDir()
	s1File := sourceFile(t, dir, "one.go")
	s2File := sourceFile(t, dir, "two.go")
	store := NewFragmentStore(t.TempDir())

	_, err := store.Write("S1", Coverage{s1File: {1: Executed}})
	require.NoError(t, err)
	_, err = store.Write("XS1", Coverage{s1File: {2: Executed}})
	require.NoError(t, err)
	_, err = store.Write("S2", Coverage{s2File: {1: Executed}})
	require.NoError(t, err)

	result, stats, err := store.Aggregate("S2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Consumed)
	assert.Equal(t, Coverage{s2File: {1: Executed}}, result)

	result, _, err = store.Aggregate("S1")
	require.NoError(t, err)
	assert.Equal(t, Coverage{s1File: {1: Executed}}, result, "fragment for XS1 must not be merged into S1")
	assert.Len(t, fragmentNames(t, store.Dir), 1)
}

func TestAggregateDropsFilesMissingOnDisk(t *testing.T) {
	dir := t.TempDir()
	present := sourceFile(t, dir, "present.go")
	missing := filepath.Join(dir, "deleted.go")
	store := NewFragmentStore(t.TempDir())

	_, err := store.Write("S1", Coverage{present: {1: Executed}, missing: {1: Executed}})
	require.NoError(t, err)

	result, _, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Equal(t, Coverage{present: {1: Executed}}, result)
}

func TestAggregateSkipsMalformedFragments(t *testing.T) {
	src := sourceFile(t, t.TempDir(), "app.go")
	store := NewFragmentStore(t.TempDir())
	_, err := store.Write("S1", Coverage{src: {3: Executed}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, "broken.S1.cov"), []byte("not json"), 0o644))

	result, stats, err := store.Aggregate("S1")
	assert.Error(t, err)
	assert.Equal(t, AggregateStats{Consumed: 1, Skipped: 1}, stats)
	assert.Equal(t, Coverage{src: {3: Executed}}, result)
}

func TestAggregateIgnoresTemporaryFiles(t *testing.T) {
	store := NewFragmentStore(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir, ".abc.tmp"), []byte("{}"), 0o644))

	_, stats, err := store.Aggregate("S1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Consumed)
	assert.Equal(t, []string{".abc.tmp"}, fragmentNames(t, store.Dir))
}

func TestWaitForWrites(t *testing.T) {
	store := NewFragmentStore(t.TempDir())
	assert.True(t, store.WaitForWrites(0), "nothing outstanding")

	first := store.BeginWrite()
	second := store.BeginWrite()
	assert.False(t, store.WaitForWrites(time.Millisecond*10))

	first()
	first()
	assert.False(t, store.WaitForWrites(time.Millisecond*10), "a repeated call counts once")

	waited := make(chan bool, 1)
	go func() { waited <- store.WaitForWrites(time.Second * 5) }()
	second()
	assert.True(t, <-waited)
	assert.True(t, store.WaitForWrites(0))
}
