package framework

import (
	"fmt"
	"io"
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Counts returns the number of tests that passed, failed, and were skipped. The root
// context, which has an empty ID, is not counted.
func (r Results) Counts() (passed, failed, skipped int) {
	for _, t := range r.Tests {
		if len(t.TestID.Path) == 0 {
			continue
		}
		switch {
		case t.Skipped:
			skipped++
		case len(t.Errors) > 0:
			failed++
		default:
			passed++
		}
	}
	return
}

// PrintResults writes a summary of the results, listing every failed test with its
// errors.
func PrintResults(dest io.Writer, r Results) {
	passed, failed, skipped := r.Counts()
	if r.OK() {
		fmt.Fprintf(dest, "All tests passed (%d passed, %d skipped)\n", passed, skipped)
		return
	}
	fmt.Fprintf(dest, "FAILED: %d failed, %d passed, %d skipped\n", failed, passed, skipped)
	for _, f := range r.Failures {
		fmt.Fprintf(dest, "  %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(dest, "    %s\n", line)
			}
		}
	}
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// Plus returns the ID of a subtest.
func (t TestID) Plus(name string) TestID {
	return TestID{Path: append(append([]string(nil), t.Path...), name)}
}
