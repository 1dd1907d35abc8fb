package smoketests

import (
	"fmt"
	"net/http"

	"github.com/launchdarkly/devserver-acceptance-tests/devserver"

	"github.com/stretchr/testify/assert"
)

func DoRouterTests(t *T) {
	rules := t.rules()
	if rules == nil || len(rules.Routes) == 0 {
		t.Skip("no router rules are configured")
	}
	for i, rule := range rules.Routes {
		if rule.Path == "" {
			continue
		}
		method := rule.Method
		if method == "" {
			method = http.MethodGet
		}
		if first, _ := rules.Match(method, rule.Path); !sameRule(first, rule) {
			continue
		}
		rule := rule
		t.Run(fmt.Sprintf("rule %d: %s %s", i, method, rule.Path), func(t *T) {
			resp := t.Request(method, rule.Path, nil)
			assert.Equal(t, rule.Status.OrElse(http.StatusOK), resp.Status)
			for name, value := range rule.Headers {
				assert.Equal(t, value, resp.Header.Get(name), "header %s", name)
			}
			if rule.File == "" && method != http.MethodHead {
				assert.Equal(t, rule.Body, string(resp.Body))
			}
		})
	}
}

// sameRule reports whether a is b. Rules hold a map, so they cannot be compared with ==.
func sameRule(a, b devserver.Rule) bool {
	return a.Path == b.Path && a.Prefix == b.Prefix && a.Method == b.Method &&
		a.Status == b.Status && a.Body == b.Body && a.File == b.File
}
