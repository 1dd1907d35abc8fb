package smoketests

import (
	"net/http"

	"github.com/launchdarkly/devserver-acceptance-tests/framework"
	"github.com/launchdarkly/devserver-acceptance-tests/harness"
)

// RunSmokeTests runs all smoke tests against the server of a ready suite.
func RunSmokeTests(
	suite *harness.Suite,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	client := suite.Client()
	if client == nil {
		client = http.DefaultClient
	}
	env := &environment{
		config:  suite.Config(),
		client:  withTimeout(client),
		baseURL: suite.BaseURL(),
	}
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		t := &T{context: c, env: env}

		t.Run("static files", DoStaticFileTests)
		t.Run("router rules", DoRouterTests)
		t.Run("coverage side channel", DoSideChannelTests)
		t.Run("coverage", DoCoverageTests)
	})
}

func withTimeout(client *http.Client) *http.Client {
	if client.Timeout != 0 {
		return client
	}
	c := *client
	c.Timeout = requestTimeout
	return &c
}
