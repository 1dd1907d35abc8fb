package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeKeepsHigherFlag(t *testing.T) {
	a := Coverage{"/src/a.go": {10: NotExecuted, 11: DeadCode}}
	b := Coverage{"/src/a.go": {10: Executed, 11: NotExecuted}}

	ab := make(Coverage)
	ab.Merge(a)
	ab.Merge(b)

	ba := make(Coverage)
	ba.Merge(b)
	ba.Merge(a)

	expected := Coverage{"/src/a.go": {10: Executed, 11: NotExecuted}}
	assert.Equal(t, expected, ab)
	assert.Equal(t, expected, ba)
}

func TestMergeAddsNewFilesAndLines(t *testing.T) {
	c := Coverage{"/src/a.go": {1: Executed}}
	c.Merge(Coverage{"/src/a.go": {2: NotExecuted}, "/src/b.go": {5: Executed}})

	assert.Equal(t, Coverage{
		"/src/a.go": {1: Executed, 2: NotExecuted},
		"/src/b.go": {5: Executed},
	}, c)
}

func TestMergeDoesNotAliasSource(t *testing.T) {
	src := Coverage{"/src/a.go": {1: NotExecuted}}
	dest := make(Coverage)
	dest.Merge(src)
	dest["/src/a.go"][1] = Executed
	assert.Equal(t, NotExecuted, src["/src/a.go"][1])
}

func TestFilesAreSorted(t *testing.T) {
	c := Coverage{"/b": {}, "/a": {}, "/c": {}}
	assert.Equal(t, []string{"/a", "/b", "/c"}, c.Files())
}

func TestFilterByDirectory(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	c := Coverage{
		filepath.Join(src, "app.go"):             {1: Executed},
		filepath.Join(src, "sub", "util.go"):     {1: Executed},
		filepath.Join(root, "src-other", "x.go"): {1: Executed},
		filepath.Join(root, "vendor", "lib.go"):  {1: Executed},
	}

	filtered := c.Filter([]string{src + string(filepath.Separator)})
	assert.ElementsMatch(t, []string{
		filepath.Join(src, "app.go"),
		filepath.Join(src, "sub", "util.go"),
	}, filtered.Files())
}

func TestFilterWithoutDirectoriesKeepsEverything(t *testing.T) {
	c := Coverage{"/a.go": {1: Executed}}
	assert.Equal(t, c, c.Filter(nil))
}

func TestCounts(t *testing.T) {
	l := LineCoverage{1: Executed, 2: NotExecuted, 3: DeadCode, 4: Executed}
	executed, executable := l.Counts()
	assert.Equal(t, 2, executed)
	assert.Equal(t, 3, executable)
	assert.Equal(t, []int{1, 2, 3, 4}, l.Lines())
}

// sourceFile creates an empty file so that coverage referring to it survives
// aggregation.
func sourceFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
