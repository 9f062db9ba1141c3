package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus scrape endpoint for c's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// ServePrometheus starts a dedicated HTTP server exposing c on addr at
// /metrics only. cmd/vcsms-server does not use it: its --metrics-listen
// address is served by NewServer, which adds the health endpoints.
func ServePrometheus(addr string, c *Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := newHTTPServer(addr, mux)
	return server.ListenAndServe()
}
