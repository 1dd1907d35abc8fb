package smoketests

import (
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/launchdarkly/devserver-acceptance-tests/devserver"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexFile = "index.html"

func DoStaticFileTests(t *T) {
	t.Run("index page", func(t *T) {
		index := findIndex(t.Config().DocumentRoot)
		if index == "" {
			t.Skip("document root has no index page")
		}
		t.skipIfRouted(http.MethodGet, "/")
		want, err := ioutil.ReadFile(index)
		require.NoError(t, err)

		resp := t.Get("/")
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, string(want), string(resp.Body))
	})

	t.Run("file", func(t *T) {
		name := firstFile(t.Config().DocumentRoot)
		if name == "" {
			t.Skip("document root has no files")
		}
		t.skipIfRouted(http.MethodGet, "/"+name)
		want, err := ioutil.ReadFile(filepath.Join(t.Config().DocumentRoot, name))
		require.NoError(t, err)

		resp := t.Get("/" + name)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, string(want), string(resp.Body))
	})

	t.Run("HEAD request has no body", func(t *T) {
		get := t.Get("/")
		head := t.Request(http.MethodHead, "/", nil)
		assert.Equal(t, get.Status, head.Status)
		assert.Empty(t, head.Body)
	})

	t.Run("missing file returns 404", func(t *T) {
		path := "/" + uuid.NewString() + ".html"
		t.skipIfRouted(http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, t.Get(path).Status)
	})

	t.Run("directory without index is not listed", func(t *T) {
		dir := directoryWithoutIndex(t.Config().DocumentRoot)
		if dir == "" {
			t.Skip("document root has no subdirectory without an index page")
		}
		path := "/" + dir + "/"
		t.skipIfRouted(http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, t.Get(path).Status)
	})
}

// skipIfRouted skips the test if a router rule handles the request, since the rule
// decides what is returned rather than the static file server.
func (t *T) skipIfRouted(method, path string) {
	rules := t.rules()
	if _, ok := rules.Match(method, path); ok {
		t.Skip("%s %s is handled by a router rule", method, path)
	}
}

func (t *T) rules() *devserver.Rules {
	if t.Config().Router == "" {
		return nil
	}
	rules, err := devserver.LoadRules(t.Config().Router)
	require.NoError(t, err)
	return rules
}

func findIndex(dir string) string {
	path := filepath.Join(dir, indexFile)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path
	}
	return ""
}

func visibleEntries(dir string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var ret []os.DirEntry
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			ret = append(ret, e)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret
}

func firstFile(dir string) string {
	for _, e := range visibleEntries(dir) {
		if e.Type().IsRegular() {
			return e.Name()
		}
	}
	return ""
}

func directoryWithoutIndex(dir string) string {
	for _, e := range visibleEntries(dir) {
		if e.IsDir() && findIndex(filepath.Join(dir, e.Name())) == "" {
			return e.Name()
		}
	}
	return ""
}
