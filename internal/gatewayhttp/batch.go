package gatewayhttp

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/errkind"
)

const (
	maxBatchBodyBytes = 128 * 1024
	maxBatchURLs      = 50
	batchWorkerCount  = 10
	batchURLTimeout   = 60 * time.Second
)

type batchRequest struct {
	URLs    []string        `json:"urls"`
	Options convert.Options `json:"options,omitempty"`
}

type batchItemResult struct {
	URL    string          `json:"url"`
	Result *convert.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItemResult `json:"results"`
}

func (s *Server) handleBatch(ctx context.Context, c *app.RequestContext) {
	ctx = s.withRequestScope(ctx, c)
	if s.rateLimited(ctx, c, "batch") {
		return
	}

	body := c.GetRequest().Body()
	if len(body) > maxBatchBodyBytes {
		writeError(c, errkind.New(errkind.InvalidRequest, "request body exceeds 128 KiB"), "")
		return
	}

	var req batchRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(c, errkind.Wrap(errkind.InvalidRequest, "invalid request body", err), "")
		return
	}
	if len(req.URLs) == 0 || len(req.URLs) > maxBatchURLs {
		writeError(c, errkind.New(errkind.InvalidRequest, "urls must contain between 1 and 50 entries"), "")
		return
	}

	results := s.runBatch(ctx, req.URLs, req.Options)
	c.JSON(consts.StatusOK, batchResponse{Results: results})
}

// runBatch runs up to batchWorkerCount workers pulling from a shared
// index counter (a work-stealing queue over the URL list): whichever
// worker finishes first claims the next index, so a slow URL never stalls
// the rest of the batch.
func (s *Server) runBatch(ctx context.Context, urls []string, opts convert.Options) []batchItemResult {
	results := make([]batchItemResult, len(urls))
	var next atomic.Int64

	workers := batchWorkerCount
	if workers > len(urls) {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				idx := int(next.Add(1)) - 1
				if idx >= len(urls) {
					return
				}
				results[idx] = s.convertOneForBatch(ctx, urls[idx], opts)
			}
		}()
	}
	wg.Wait()
	return results
}

func (s *Server) convertOneForBatch(ctx context.Context, rawURL string, opts convert.Options) batchItemResult {
	if _, err := url.Parse(rawURL); err != nil || rawURL == "" {
		return batchItemResult{URL: rawURL, Error: "invalid url"}
	}

	itemCtx, cancel := context.WithTimeout(ctx, batchURLTimeout)
	defer cancel()

	res, err := s.convertForAPI(itemCtx, rawURL, opts)
	if err != nil {
		return batchItemResult{URL: rawURL, Error: err.Error()}
	}
	return batchItemResult{URL: rawURL, Result: res}
}
