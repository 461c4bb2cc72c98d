package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient builds a Client from cfg (nil for defaults) and closes its
// idle connections with the test.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newTestServer starts an httptest server for handler and shuts it down with
// the test.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}
