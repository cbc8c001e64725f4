package gatewayhttp

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/cachex"
	"github.com/readmd/gateway/internal/convert/orchestrator"
)

// reservedQueryParams are the gateway's own recognised parameters; every
// other query parameter on GET /{target} belongs to the target URL and is
// forwarded onto it.
var reservedQueryParams = map[string]bool{
	"url": true, "mode": true, "links": true, "max_tokens": true,
}

func (s *Server) handleConvert(ctx context.Context, c *app.RequestContext) {
	ctx = s.withRequestScope(ctx, c)
	if s.rateLimited(ctx, c, "main") {
		return
	}

	targetURL, opts, err := parseConvertRequest(c)
	if err != nil {
		writeError(c, err, "")
		return
	}

	s.convertAndRespond(ctx, c, targetURL, opts)
}

func (s *Server) convertAndRespond(ctx context.Context, c *app.RequestContext, targetURL string, opts convert.Options) {
	res, source, err := s.convertCached(ctx, targetURL, opts)
	if err != nil {
		writeError(c, err, targetURL)
		return
	}
	writeResult(c, res, source)
}

// convertCached is the shared cache-then-orchestrate path used by every
// conversion-producing endpoint (GET /{target}, /batch, /async).
func (s *Server) convertCached(ctx context.Context, targetURL string, opts convert.Options) (*convert.Result, cachex.Source, error) {
	cacheKey := cachex.ConversionKey(targetURL, optionsSuffix(opts))

	var cached convert.Result
	if source, ok := s.cache.GetJSON(ctx, cacheKey, &cached); ok {
		return &cached, source, nil
	}

	res, err := orchestrator.Run(ctx, s.deps, targetURL, opts)
	if err != nil {
		return nil, cachex.SourceMiss, err
	}

	_ = s.cache.SetJSON(ctx, cacheKey, res, time.Duration(cachex.TTLForTier(res.Tier))*time.Second)
	return res, cachex.SourceMiss, nil
}

// convertForAPI is convertCached without the cache-source tag, for callers
// (batch, async) whose response shape has no x-cache header to carry it.
func (s *Server) convertForAPI(ctx context.Context, targetURL string, opts convert.Options) (*convert.Result, error) {
	res, _, err := s.convertCached(ctx, targetURL, opts)
	return res, err
}

// parseConvertRequest extracts the target URL and recognised options from
// a GET /{target} (or GET /?url=) request, forwarding every unrecognised
// query parameter onto the target URL per §6.
func parseConvertRequest(c *app.RequestContext) (string, convert.Options, error) {
	raw := c.Query("url")
	if raw == "" {
		raw = strings.TrimPrefix(string(c.Param("target")), "/")
	}
	decoded, err := url.PathUnescape(raw)
	if err == nil {
		raw = decoded
	}
	raw = strings.TrimSpace(raw)

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	opts := convert.Options{
		Mode: string(c.Query("mode")),
	}
	if c.Query("links") == string(convert.LinksCitations) {
		opts.Links = convert.LinksCitations
	}
	if mt := c.Query("max_tokens"); mt != "" {
		if n, err := strconv.Atoi(mt); err == nil {
			opts.MaxTokens = n
		}
	}

	forwarded := url.Values{}
	c.QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if reservedQueryParams[key] {
			return
		}
		forwarded.Add(key, string(v))
	})

	if len(forwarded) > 0 {
		parsed, err := url.Parse(raw)
		if err == nil {
			existing := parsed.Query()
			for k, vs := range forwarded {
				for _, v := range vs {
					existing.Add(k, v)
				}
			}
			parsed.RawQuery = existing.Encode()
			raw = parsed.String()
		}
	}

	return raw, opts, nil
}

// optionsSuffix canonicalises the client-controlled knobs that affect a
// conversion's output into the cache key's options component.
func optionsSuffix(opts convert.Options) string {
	var sb strings.Builder
	sb.WriteString(opts.Mode)
	sb.WriteByte('|')
	sb.WriteString(string(opts.Links))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(opts.MaxTokens))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(opts.ForceBrowser))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(opts.SkipFetch))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(opts.SkipBaas))
	return sb.String()
}
