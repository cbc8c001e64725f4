package gatewayhttp

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgprom "github.com/readmd/gateway/internal/pkg/prometheus"
)

// metricsHandler is a package-level singleton: promhttp.HandlerFor wraps
// the shared registry once, the same one-registry discipline
// internal/pkg/prometheus/registry.go establishes.
var metricsHandler = promhttp.HandlerFor(pkgprom.GetRegistry(), promhttp.HandlerOpts{})

func (s *Server) handleMetrics(_ context.Context, c *app.RequestContext) {
	w := &responseWriterAdapter{c: c}
	r, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	metricsHandler.ServeHTTP(w, r)
}

// responseWriterAdapter lets promhttp.Handler (a plain net/http.Handler)
// write into a Hertz app.RequestContext's response buffer without Hertz
// growing a net/http dependency of its own. header is buffered until the
// first WriteHeader/Write, matching net/http.ResponseWriter's contract
// that Header() mutations before that point take effect.
type responseWriterAdapter struct {
	c           *app.RequestContext
	header      http.Header
	wroteHeader bool
}

func (w *responseWriterAdapter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *responseWriterAdapter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.c.Response.AppendBody(b)
	return len(b), nil
}

func (w *responseWriterAdapter) WriteHeader(status int) {
	w.wroteHeader = true
	for k, vs := range w.header {
		for _, v := range vs {
			w.c.Response.Header.Set(k, v)
		}
	}
	w.c.SetStatusCode(status)
}
