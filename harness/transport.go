package harness

import (
	"net/http"
)

// headerTransport adds default headers to every request that does not already set
// them.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for name, values := range t.headers {
		if _, ok := req.Header[name]; !ok {
			req.Header[name] = append([]string(nil), values...)
		}
	}
	return t.base.RoundTrip(req)
}

func newSessionClient(base *http.Client, headers http.Header) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client := *base
	client.Transport = &headerTransport{base: transport, headers: headers}
	return &client
}
