package gatewayhttp

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/readmd/gateway/internal/convert/ratelimit"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/pkg/logs"
)

// withRequestScope installs a per-request log id, the way the teacher
// threads a log id through logrus.Entry.WithContext, and stamps
// x-request-id on every response.
func (s *Server) withRequestScope(ctx context.Context, c *app.RequestContext) context.Context {
	logID := logs.NewLogID()
	c.Response.Header.Set("x-request-id", logID)
	return logs.SetLogID(ctx, logID)
}

// rateLimited enforces the per-endpoint, per-client-IP fixed window and
// writes the x-ratelimit-* headers. It returns true (and has already
// written the 429 response) when the request should stop here.
func (s *Server) rateLimited(ctx context.Context, c *app.RequestContext, endpoint string) bool {
	clientIP := ratelimit.ClientIP(headerAdapter(c))
	decision, err := s.limiter.Allow(ctx, endpoint, clientIP)
	if err != nil {
		logs.CtxWarn(ctx, "[gatewayhttp] rate limiter unavailable: %v", err)
		return false
	}

	c.Response.Header.Set("x-ratelimit-limit", strconv.FormatInt(ratelimit.Limits[endpoint], 10))
	c.Response.Header.Set("x-ratelimit-remaining", strconv.FormatInt(decision.Remaining, 10))
	c.Response.Header.Set("x-ratelimit-reset", strconv.Itoa(rateLimitResetSeconds))

	if !decision.Allowed {
		writeError(c, errkind.New(errkind.RateLimited, "rate limit exceeded for "+endpoint), "")
		return true
	}
	return false
}

const rateLimitResetSeconds = 60

// headerAdapter builds a minimal *http.Request carrying only the headers
// ratelimit.ClientIP inspects, bridging Hertz's fasthttp-style
// app.RequestContext to the stdlib-shaped ClientIP helper shared with the
// rest of the pipeline's net/http-based collaborators.
func headerAdapter(c *app.RequestContext) *http.Request {
	h := http.Header{}
	h.Set("CF-Connecting-IP", string(c.GetHeader("CF-Connecting-IP")))
	h.Set("X-Real-IP", string(c.GetHeader("X-Real-IP")))
	h.Set("X-Forwarded-For", string(c.GetHeader("X-Forwarded-For")))
	return &http.Request{Header: h}
}
