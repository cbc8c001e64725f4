package gatewayhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	hzServer "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/config"
	"github.com/readmd/gateway/internal/convert/cachex"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/convert/jobs"
	"github.com/readmd/gateway/internal/convert/orchestrator"
	"github.com/readmd/gateway/internal/convert/ratelimit"
	"github.com/readmd/gateway/internal/pkg/logs"
)

const serviceName = "markdown-conversion-gateway"

// Version is stamped at build time; cmd/gatewayd overrides it via -ldflags
// the same way the teacher's cmd_update.go reports a build version.
var Version = "dev"

// Server bundles Hertz and every pipeline collaborator a handler may need.
// One Server is constructed per process in cmd/gatewayd.
type Server struct {
	hz      *hzServer.Hertz
	deps    orchestrator.Dependencies
	cache   *cachex.Cache
	limiter *ratelimit.Limiter
	jobs    *jobs.Store
	guard   *guard.Guard

	webhookClient *http.Client
	batchWorkers  int
}

// New constructs a Server and registers every route, mirroring the
// teacher's Gateway.initHTTPServer registration style.
func New(cfg config.GatewayConfig, deps orchestrator.Dependencies, cache *cachex.Cache, limiter *ratelimit.Limiter, jobStore *jobs.Store, g *guard.Guard) *Server {
	bind := cfg.Bind
	if bind == "" {
		bind = "0.0.0.0:8080"
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	hz := hzServer.Default(
		hzServer.WithHostPorts(bind),
		hzServer.WithReadTimeout(timeout),
		hzServer.WithWriteTimeout(timeout),
		hzServer.WithExitWaitTime(5*time.Second),
	)

	s := &Server{
		hz:            hz,
		deps:          deps,
		cache:         cache,
		limiter:       limiter,
		jobs:          jobStore,
		guard:         g,
		webhookClient: &http.Client{Timeout: 10 * time.Second},
		batchWorkers:  batchWorkerCount,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.hz.GET("/", s.handleRoot)
	s.hz.GET("/health", s.handleHealth)
	s.hz.GET("/metrics", s.handleMetrics)
	s.hz.POST("/extract", s.handleExtract)
	s.hz.POST("/batch", s.handleBatch)
	s.hz.POST("/async", s.handleAsync)
	s.hz.GET("/job/:id", s.handleJobStatus)
	s.hz.GET("/*target", s.handleConvert)
}

// Run starts Spin()ning in the background; callers stop it via Shutdown.
func (s *Server) Run() {
	go s.hz.Spin()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hz.Shutdown(ctx)
}

func (s *Server) handleRoot(ctx context.Context, c *app.RequestContext) {
	target := c.Query("url")
	if target != "" {
		s.handleConvert(ctx, c)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"service": serviceName, "version": Version})
}

func (s *Server) handleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func (s *Server) logWarn(ctx context.Context, format string, args ...any) {
	logs.CtxWarn(ctx, format, args...)
}
