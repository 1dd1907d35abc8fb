package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Rule is one entry of a router rules file. Exactly one of Path (exact match) or
// Prefix must be set. A matching request gets either the contents of File, resolved
// inside the document root, or Body. Status defaults to 200.
type Rule struct {
	Path    string              `json:"path,omitempty"`
	Prefix  string              `json:"prefix,omitempty"`
	Method  string              `json:"method,omitempty"`
	Status  ldvalue.OptionalInt `json:"status"`
	Headers map[string]string   `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"`
	File    string              `json:"file,omitempty"`
}

// Rules is the parsed router rules file. The first matching rule wins; requests that
// match no rule fall through to the next handler.
type Rules struct {
	Routes []Rule `json:"routes"`
}

// LoadRules reads and validates a router rules file.
func LoadRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read router rules")
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, errors.Wrapf(err, "malformed router rules in %s", filename)
	}
	if err := rules.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid router rules in %s", filename)
	}
	return &rules, nil
}

func (rs *Rules) Validate() error {
	for i, r := range rs.Routes {
		if (r.Path == "") == (r.Prefix == "") {
			return errors.Errorf("route %d: exactly one of path or prefix is required", i)
		}
		if r.File != "" && r.Body != "" {
			return errors.Errorf("route %d: file and body cannot both be set", i)
		}
		if r.File != "" && !localPath(r.File) {
			return errors.Errorf("route %d: file %q must be inside the document root", i, r.File)
		}
		if r.Status.IsDefined() && (r.Status.IntValue() < 100 || r.Status.IntValue() > 999) {
			return errors.Errorf("route %d: invalid status %d", i, r.Status.IntValue())
		}
	}
	return nil
}

func localPath(p string) bool {
	clean := path.Clean("/" + filepath.ToSlash(p))
	return !strings.Contains(filepath.ToSlash(p), "..") && clean != "/"
}

func (r Rule) matches(method, urlPath string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	if r.Path != "" {
		return urlPath == r.Path
	}
	return strings.HasPrefix(urlPath, r.Prefix)
}

// Match returns the first rule that applies to a request, if any.
func (rs *Rules) Match(method, urlPath string) (Rule, bool) {
	if rs == nil {
		return Rule{}, false
	}
	for _, rule := range rs.Routes {
		if rule.matches(method, urlPath) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Handler returns a handler that applies the rules, passing unmatched requests to next.
// A nil *Rules passes everything through.
func (rs *Rules) Handler(documentRoot string, next http.Handler) http.Handler {
	if rs == nil || len(rs.Routes) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if rule, ok := rs.Match(req.Method, req.URL.Path); ok {
			rule.serve(w, req, documentRoot)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r Rule) serve(w http.ResponseWriter, req *http.Request, documentRoot string) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	status := r.Status.OrElse(http.StatusOK)

	if r.File == "" {
		w.WriteHeader(status)
		if req.Method != http.MethodHead {
			_, _ = io.WriteString(w, r.Body)
		}
		return
	}

	filename := filepath.Join(documentRoot, filepath.FromSlash(path.Clean("/"+filepath.ToSlash(r.File))))
	f, err := os.Open(filename)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, req)
		return
	}
	if status == http.StatusOK {
		http.ServeContent(w, req, info.Name(), info.ModTime(), f)
		return
	}
	w.WriteHeader(status)
	if req.Method != http.MethodHead {
		_, _ = io.Copy(w, f)
	}
}
