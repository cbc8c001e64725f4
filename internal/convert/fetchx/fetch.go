// Package fetchx implements the safe fetcher: a manual-redirect HTTP GET
// with SSRF re-validation on every hop, size caps, and content-type based
// payload routing. Generalises the teacher's webx.NewFetchTool (same
// desktop user agent, same http.Client/CheckRedirect shape, same
// io.LimitReader body cap) from a single best-effort tool call into the
// gateway's primary ingestion path.
package fetchx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/errkind"
)

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7"

	maxRedirects = 5
	hopTimeout   = 15 * time.Second
	maxBodyBytes = 5 * 1024 * 1024
)

var docExtByMime = map[string]convert.DocFormat{
	"application/pdf":                 convert.DocPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": convert.DocDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       convert.DocXLSX,
	"application/vnd.ms-excel":                                                convert.DocXLSX,
	"text/csv":                                                                convert.DocCSV,
}

var docExtByExtension = map[string]convert.DocFormat{
	".pdf":  convert.DocPDF,
	".docx": convert.DocDOCX,
	".xlsx": convert.DocXLSX,
	".xls":  convert.DocXLSX,
	".csv":  convert.DocCSV,
}

var feedMimes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/feed+json": true,
	"application/json+feed": true,
}

// Fetcher performs safe, SSRF-guarded GET requests.
type Fetcher struct {
	client *http.Client
	guard  *guard.Guard
}

func New(g *guard.Guard) *Fetcher {
	return &Fetcher{
		guard: g,
		client: &http.Client{
			Timeout:   hopTimeout,
			Transport: &http.Transport{ForceAttemptHTTP2: true},
			// CheckRedirect stops the client from following redirects
			// itself: they are followed manually below so each hop can be
			// re-validated through the URL guard before it is re-issued.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch performs the guarded GET, following redirects manually, and
// returns a routed Fetched payload.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*convert.Fetched, error) {
	current := rawURL
	for hop := 0; ; hop++ {
		if hop > maxRedirects {
			return nil, errkind.New(errkind.TooManyRedirects, fmt.Sprintf("exceeded %d redirects", maxRedirects))
		}
		if err := f.guard.CheckURLFull(ctx, current); err != nil {
			return nil, err
		}

		hopCtx, cancel := context.WithTimeout(ctx, hopTimeout)
		resp, err := f.doGet(hopCtx, current)
		cancel()
		if err != nil {
			if isTimeoutErr(err) {
				return nil, errkind.Wrap(errkind.Timeout, "fetch timed out", err)
			}
			return nil, errkind.Wrap(errkind.NetworkError, "fetch failed", err)
		}

		if isRedirectStatus(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			resp.Body.Close()
			if loc == "" {
				return nil, errkind.New(errkind.NetworkError, "redirect with no Location header")
			}
			next, err := resolveURL(current, loc)
			if err != nil {
				return nil, errkind.Wrap(errkind.NetworkError, "invalid redirect location", err)
			}
			current = next
			continue
		}

		return f.route(resp, current)
	}
}

func (f *Fetcher) doGet(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	return f.client.Do(req)
}

func (f *Fetcher) route(resp *http.Response, finalURL string) (*convert.Fetched, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errkind.WithStatus(errkind.UpstreamHttp, fmt.Sprintf("HTTP_%d upstream error", resp.StatusCode), resp.StatusCode)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > maxBodyBytes {
			return nil, errkind.New(errkind.PageTooLarge, fmt.Sprintf("declared content-length %d exceeds cap", n))
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errkind.Wrap(errkind.NetworkError, "read response body", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errkind.New(errkind.PageTooLarge, fmt.Sprintf("body exceeds %d bytes", maxBodyBytes))
	}

	mime := bareMime(resp.Header.Get("Content-Type"))

	if feedMimes[mime] {
		return &convert.Fetched{Kind: convert.PayloadFeed, FinalURL: finalURL, FeedXML: body}, nil
	}

	if mime == "text/xml" || mime == "application/xml" {
		peek := body
		if len(peek) > 500 {
			peek = peek[:500]
		}
		lower := strings.ToLower(string(peek))
		if strings.Contains(lower, "<rss") || strings.Contains(lower, "<feed") || strings.Contains(lower, "<rdf:rdf") {
			return &convert.Fetched{Kind: convert.PayloadFeed, FinalURL: finalURL, FeedXML: body}, nil
		}
		return &convert.Fetched{Kind: convert.PayloadHTML, FinalURL: finalURL, HTML: body}, nil
	}

	if docFormat, ok := docExtByMime[mime]; ok {
		return &convert.Fetched{Kind: convert.PayloadDocument, FinalURL: finalURL, DocBytes: body, DocFormat: docFormat}, nil
	}

	if mime == "application/octet-stream" {
		if docFormat, ok := docFormatFromExtension(finalURL); ok {
			return &convert.Fetched{Kind: convert.PayloadDocument, FinalURL: finalURL, DocBytes: body, DocFormat: docFormat}, nil
		}
	}

	if isTextualMime(mime) {
		return &convert.Fetched{Kind: convert.PayloadHTML, FinalURL: finalURL, HTML: body}, nil
	}

	return nil, errkind.New(errkind.UnsupportedContentType, fmt.Sprintf("unsupported content type %q", mime))
}

func bareMime(ctype string) string {
	if idx := strings.IndexByte(ctype, ';'); idx >= 0 {
		ctype = ctype[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ctype))
}

func isTextualMime(mime string) bool {
	switch {
	case mime == "":
		return true // many servers omit Content-Type for plain HTML
	case strings.HasPrefix(mime, "text/"):
		return true
	case mime == "application/xhtml+xml":
		return true
	case mime == "application/json":
		return true
	}
	return false
}

func docFormatFromExtension(rawURL string) (convert.DocFormat, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	path := strings.ToLower(u.Path)
	for ext, format := range docExtByExtension {
		if strings.HasSuffix(path, ext) {
			return format, true
		}
	}
	return "", false
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	if te, ok := err.(timeouter); ok {
		t = te
		return t.Timeout()
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
