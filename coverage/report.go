package coverage

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	LCOVFileName   = "lcov.info"
	CloverFileName = "clover.xml"
	HTMLFileName   = "index.html"
)

// WriteReports renders cov into dir as an LCOV tracefile, a Clover XML report, and an
// HTML summary page. testName labels the run in the LCOV and HTML output. All three
// are attempted even if one fails.
func WriteReports(cov Coverage, dir, testName string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cannot create coverage report directory")
	}
	var result error
	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{LCOVFileName, func(w io.Writer) error { return WriteLCOV(w, cov, testName) }},
		{CloverFileName, func(w io.Writer) error { return WriteClover(w, cov, time.Now()) }},
		{HTMLFileName, func(w io.Writer) error { return WriteHTML(w, cov, testName) }},
	}
	for _, wr := range writers {
		if err := writeFile(filepath.Join(dir, wr.name), wr.write); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "cannot write %s", wr.name))
		}
	}
	return result
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteLCOV writes cov in LCOV tracefile format. Dead code is omitted.
func WriteLCOV(w io.Writer, cov Coverage, testName string) error {
	for _, file := range cov.Files() {
		lines := cov[file]
		if _, err := fmt.Fprintf(w, "TN:%s\nSF:%s\n", testName, file); err != nil {
			return err
		}
		for _, n := range lines.Lines() {
			var hits int
			switch lines[n] {
			case DeadCode:
				continue
			case Executed:
				hits = 1
			}
			if _, err := fmt.Fprintf(w, "DA:%d,%d\n", n, hits); err != nil {
				return err
			}
		}
		executed, executable := lines.Counts()
		if _, err := fmt.Fprintf(w, "LF:%d\nLH:%d\nend_of_record\n", executable, executed); err != nil {
			return err
		}
	}
	return nil
}

type cloverCoverage struct {
	XMLName   xml.Name      `xml:"coverage"`
	Generated int64         `xml:"generated,attr"`
	Project   cloverProject `xml:"project"`
}

type cloverProject struct {
	Timestamp int64        `xml:"timestamp,attr"`
	File      []cloverFile `xml:"file"`
}

type cloverFile struct {
	Name    string        `xml:"name,attr"`
	Line    []cloverLine  `xml:"line"`
	Metrics cloverMetrics `xml:"metrics"`
}

type cloverLine struct {
	Num   int    `xml:"num,attr"`
	Type  string `xml:"type,attr"`
	Count int    `xml:"count,attr"`
}

type cloverMetrics struct {
	Statements        int `xml:"statements,attr"`
	CoveredStatements int `xml:"coveredstatements,attr"`
}

// WriteClover writes cov as a Clover XML report.
func WriteClover(w io.Writer, cov Coverage, generated time.Time) error {
	doc := cloverCoverage{
		Generated: generated.Unix(),
		Project:   cloverProject{Timestamp: generated.Unix()},
	}
	for _, file := range cov.Files() {
		lines := cov[file]
		cf := cloverFile{Name: file}
		for _, n := range lines.Lines() {
			switch lines[n] {
			case Executed:
				cf.Line = append(cf.Line, cloverLine{Num: n, Type: "stmt", Count: 1})
			case NotExecuted:
				cf.Line = append(cf.Line, cloverLine{Num: n, Type: "stmt", Count: 0})
			}
		}
		cf.Metrics.CoveredStatements, cf.Metrics.Statements = lines.Counts()
		doc.Project.File = append(doc.Project.File, cf)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Coverage: {{.TestName}}</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; }
td, th { padding: 2px 10px; text-align: left; }
td.num { text-align: right; }
tr.low td.pct { color: #b00; }
</style>
</head>
<body>
<h1>{{.TestName}}</h1>
<p>{{.Executed}} of {{.Executable}} executable lines covered ({{printf "%.1f" .Percent}}%)</p>
<table>
<tr><th>File</th><th>Covered</th><th>Executable</th><th>%</th></tr>
{{range .Files}}<tr{{if lt .Percent 50.0}} class="low"{{end}}><td>{{.Name}}</td><td class="num">{{.Executed}}</td><td class="num">{{.Executable}}</td><td class="num pct">{{printf "%.1f" .Percent}}</td></tr>
{{end}}</table>
</body>
</html>
`))

type htmlSummary struct {
	Name       string
	Executed   int
	Executable int
	Percent    float64
}

type htmlReport struct {
	TestName string
	htmlSummary
	Files []htmlSummary
}

func percent(executed, executable int) float64 {
	if executable == 0 {
		return 100
	}
	return float64(executed) * 100 / float64(executable)
}

// WriteHTML writes a one-page HTML summary of cov.
func WriteHTML(w io.Writer, cov Coverage, testName string) error {
	report := htmlReport{TestName: testName}
	for _, file := range cov.Files() {
		executed, executable := cov[file].Counts()
		report.Files = append(report.Files, htmlSummary{
			Name:       file,
			Executed:   executed,
			Executable: executable,
			Percent:    percent(executed, executable),
		})
		report.Executed += executed
		report.Executable += executable
	}
	report.Percent = percent(report.Executed, report.Executable)
	return htmlReportTemplate.Execute(w, report)
}
