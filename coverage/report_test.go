package coverage

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportInput = Coverage{
	"/src/b.go": {1: Executed, 2: NotExecuted, 3: DeadCode},
	"/src/a.go": {7: Executed},
}

func TestWriteLCOV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLCOV(&buf, reportInput, "acceptance-suite"))

	assert.Equal(t, strings.Join([]string{
		"TN:acceptance-suite",
		"SF:/src/a.go",
		"DA:7,1",
		"LF:1",
		"LH:1",
		"end_of_record",
		"TN:acceptance-suite",
		"SF:/src/b.go",
		"DA:1,1",
		"DA:2,0",
		"LF:2",
		"LH:1",
		"end_of_record",
		"",
	}, "\n"), buf.String())
}

func TestWriteClover(t *testing.T) {
	var buf bytes.Buffer
	generated := time.Unix(1700000000, 0)
	require.NoError(t, WriteClover(&buf, reportInput, generated))

	var doc cloverCoverage
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, int64(1700000000), doc.Generated)
	require.Len(t, doc.Project.File, 2)

	b := doc.Project.File[1]
	assert.Equal(t, "/src/b.go", b.Name)
	assert.Equal(t, []cloverLine{{Num: 1, Type: "stmt", Count: 1}, {Num: 2, Type: "stmt", Count: 0}}, b.Line)
	assert.Equal(t, cloverMetrics{Statements: 2, CoveredStatements: 1}, b.Metrics)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, reportInput, "my <suite>"))

	html := buf.String()
	assert.Contains(t, html, "my &lt;suite&gt;")
	assert.Contains(t, html, "2 of 3 executable lines covered (66.7%)")
	assert.Less(t, strings.Index(html, "/src/a.go"), strings.Index(html, "/src/b.go"))
}

func TestWriteReportsCreatesAllFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "report")
	require.NoError(t, WriteReports(reportInput, dir, "acceptance-suite"))

	for _, name := range []string{LCOVFileName, CloverFileName, HTMLFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestWriteReportsWithEmptyCoverage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteReports(Coverage{}, dir, "empty"))
	data, err := os.ReadFile(filepath.Join(dir, LCOVFileName))
	require.NoError(t, err)
	assert.Empty(t, data)
}
