// Package gatewayhttp wires the conversion pipeline onto Hertz: routes,
// content negotiation, conditional GET, status-code mapping from
// errkind.Kind, and the per-endpoint rate limiter / body-size guards.
// Grounded on the teacher's internal/channel/http.HTTP Hertz handler shape
// (internal/gateway/gateway.go registers routes the same way).
package gatewayhttp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/cachex"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/pkg/sanitize"
)

// jsonResult is the wire shape for a conversion result when the client
// negotiates JSON, matching §6's documented field list exactly.
type jsonResult struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Byline      string   `json:"byline,omitempty"`
	SiteName    string   `json:"siteName,omitempty"`
	Tokens      int      `json:"tokens"`
	Tier        string   `json:"tier"`
	Readability bool     `json:"readability"`
	Method      string   `json:"method"`
	Quality     quality  `json:"quality"`
	TimeMs      int64    `json:"time_ms"`
	FitMarkdown string   `json:"fit_markdown,omitempty"`
	FitTokens   int      `json:"fit_tokens,omitempty"`
	Escalation  []string `json:"escalation,omitempty"`
}

type quality struct {
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

func toJSONResult(res *convert.Result) jsonResult {
	out := jsonResult{
		Title:       res.Title,
		URL:         res.URL,
		Content:     res.Markdown,
		Excerpt:     res.Excerpt,
		Byline:      res.Byline,
		SiteName:    res.SiteName,
		Tokens:      res.Tokens,
		Tier:        res.Tier,
		Readability: res.Readability,
		Method:      res.Method,
		Quality:     quality{Score: res.Quality.Score, Grade: res.Quality.Grade},
		TimeMs:      res.TotalMs,
		FitMarkdown: res.FitMarkdown,
		FitTokens:   res.FitTokens,
		Escalation:  res.Escalation,
	}
	return out
}

// wantsJSON implements content negotiation: JSON iff Accept includes
// application/json, Markdown-with-header-block otherwise.
func wantsJSON(c *app.RequestContext) bool {
	return strings.Contains(string(c.GetHeader("Accept")), "application/json")
}

// markdownDocument renders the text/markdown representation: a small
// header block (Title/URL Source/Author/Description), a blank line, a
// "Markdown Content:" line, and then the Markdown body.
func markdownDocument(res *convert.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", res.Title)
	fmt.Fprintf(&sb, "URL Source: %s\n", res.URL)
	if res.Byline != "" {
		fmt.Fprintf(&sb, "Author: %s\n", res.Byline)
	}
	if res.Excerpt != "" {
		fmt.Fprintf(&sb, "Description: %s\n", res.Excerpt)
	}
	sb.WriteString("\nMarkdown Content:\n")
	sb.WriteString(res.Markdown)
	return sb.String()
}

// etagFor returns the weak ETag over a result's markdown body, reusing the
// key layer's truncated-SHA-256 idiom.
func etagFor(markdown string) string {
	return `W/"` + cachex.HashHex(markdown) + `"`
}

// writeResult writes a successful conversion result honouring content
// negotiation, the standard response headers, and the cache-tagged
// x-cache header.
func writeResult(c *app.RequestContext, res *convert.Result, cacheSource cachex.Source) {
	etag := etagFor(res.Markdown)
	notModified := func() bool {
		inm := string(c.GetHeader("If-None-Match"))
		return inm != "" && inm == etag
	}()

	c.Response.Header.Set("x-markdown-tokens", strconv.Itoa(res.Tokens))
	c.Response.Header.Set("x-conversion-tier", res.Tier)
	c.Response.Header.Set("x-conversion-time", strconv.FormatInt(res.TotalMs, 10))
	c.Response.Header.Set("x-readability", strconv.FormatBool(res.Readability))
	c.Response.Header.Set("x-extraction-method", res.Method)
	c.Response.Header.Set("x-quality-score", strconv.FormatFloat(res.Quality.Score, 'f', 2, 64))
	c.Response.Header.Set("x-quality-grade", res.Quality.Grade)
	c.Response.Header.Set("etag", etag)
	c.Response.Header.Set("vary", "accept, accept-encoding")
	c.Response.Header.Set("cache-control", fmt.Sprintf("public, max-age=%d", cachex.TTLForTier(res.Tier)))
	switch cacheSource {
	case cachex.SourcePrimary, cachex.SourceSecondary:
		c.Response.Header.Set("x-cache", "hit")
	default:
		c.Response.Header.Set("x-cache", "miss")
	}

	if notModified {
		c.SetStatusCode(consts.StatusNotModified)
		return
	}

	if wantsJSON(c) {
		c.SetStatusCode(consts.StatusOK)
		c.SetContentType("application/json")
		body, _ := sonic.Marshal(toJSONResult(res))
		c.Response.SetBody(body)
		return
	}

	c.SetStatusCode(consts.StatusOK)
	c.SetContentType("text/markdown; charset=utf-8")
	c.Response.SetBody([]byte(markdownDocument(res)))
}

// writeError maps err to a status code per §6's table and writes a
// sanitised JSON error body.
func writeError(c *app.RequestContext, err error, rawURL string) {
	status := statusForError(err)
	body := map[string]string{"error": sanitize.Error(err.Error())}
	if rawURL != "" {
		body["url"] = sanitize.URL(rawURL)
	}
	c.JSON(status, body)
}

// statusForError maps an errkind.Kind to the HTTP status it owns.
func statusForError(err error) int {
	kind := errkind.Of(err)
	switch kind {
	case errkind.BlockedUrl:
		return consts.StatusForbidden
	case errkind.PageTooLarge:
		return consts.StatusRequestEntityTooLarge
	case errkind.UnsupportedContentType:
		return consts.StatusUnsupportedMediaType
	case errkind.TooManyRedirects:
		return consts.StatusBadGateway
	case errkind.BrowserPoolExhausted:
		return consts.StatusServiceUnavailable
	case errkind.RateLimited:
		return consts.StatusTooManyRequests
	case errkind.SchemaInvalid, errkind.InvalidRequest:
		return consts.StatusBadRequest
	case errkind.JobNotFound:
		return consts.StatusNotFound
	case errkind.UpstreamHttp:
		if e, ok := err.(*errkind.Error); ok && e.Status > 0 {
			return e.Status
		}
		return consts.StatusBadGateway
	default:
		if status, ok := statusFromUpstreamMessage(err.Error()); ok {
			return status
		}
		return consts.StatusInternalServerError
	}
}

// statusFromUpstreamMessage extracts an "HTTP_<nnn>" marker an upstream
// error message may carry, per §6's status-code mapping table.
func statusFromUpstreamMessage(msg string) (int, bool) {
	idx := strings.Index(msg, "HTTP_")
	if idx < 0 {
		return 0, false
	}
	rest := msg[idx+len("HTTP_"):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(rest[:end])
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}
