package coverage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Flag describes what the tracer observed for one source line. Larger values are
// better: a line that any request executed is Executed in the merged result.
type Flag int

const (
	DeadCode    Flag = -2
	NotExecuted Flag = -1
	Executed    Flag = 1
)

// LineCoverage maps a line number to its flag.
type LineCoverage map[int]Flag

// Coverage maps an absolute source file path to its line coverage.
type Coverage map[string]LineCoverage

// Merge folds other into c, keeping the larger flag for every line present in both.
// The result does not depend on the order in which coverages are merged.
func (c Coverage) Merge(other Coverage) {
	for file, lines := range other {
		dest := c[file]
		if dest == nil {
			dest = make(LineCoverage, len(lines))
			c[file] = dest
		}
		for line, flag := range lines {
			if cur, ok := dest[line]; !ok || flag > cur {
				dest[line] = flag
			}
		}
	}
}

// Files returns the covered file paths in sorted order.
func (c Coverage) Files() []string {
	files := make([]string, 0, len(c))
	for f := range c {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Filter returns the subset of c whose files are inside one of dirs. An empty list
// keeps everything.
func (c Coverage) Filter(dirs []string) Coverage {
	if len(dirs) == 0 {
		return c
	}
	var prefixes []string
	for _, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		prefixes = append(prefixes, filepath.Clean(d))
	}
	ret := make(Coverage)
	for file, lines := range c {
		for _, p := range prefixes {
			if file == p || strings.HasPrefix(file, p+string(filepath.Separator)) {
				ret[file] = lines
				break
			}
		}
	}
	return ret
}

// withoutMissingFiles drops files that no longer exist on disk, such as paths left
// behind by an earlier build or deploy.
func (c Coverage) withoutMissingFiles(exists func(string) bool) Coverage {
	for file := range c {
		if !exists(file) {
			delete(c, file)
		}
	}
	return c
}

// Lines returns the line numbers in sorted order.
func (l LineCoverage) Lines() []int {
	lines := make([]int, 0, len(l))
	for n := range l {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}

// Counts returns the number of executed lines and the number of executable lines.
// Dead code is not executable.
func (l LineCoverage) Counts() (executed, executable int) {
	for _, f := range l {
		switch {
		case f >= Executed:
			executed++
			executable++
		case f == NotExecuted:
			executable++
		}
	}
	return
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
