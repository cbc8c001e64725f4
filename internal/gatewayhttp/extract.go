package gatewayhttp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/cachex"
	"github.com/readmd/gateway/internal/convert/escalate"
	"github.com/readmd/gateway/internal/convert/orchestrator"
	"github.com/readmd/gateway/internal/errkind"
)

const maxExtractBodyBytes = 64 * 1024

type extractRequest struct {
	URL    string         `json:"url"`
	Schema map[string]any `json:"schema"`
}

type extractResponse struct {
	Data   any      `json:"data"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	URL    string   `json:"url"`
	TimeMs int64    `json:"time_ms"`
}

func (s *Server) handleExtract(ctx context.Context, c *app.RequestContext) {
	ctx = s.withRequestScope(ctx, c)
	if s.rateLimited(ctx, c, "extract") {
		return
	}

	start := time.Now()

	body := c.GetRequest().Body()
	if len(body) > maxExtractBodyBytes {
		writeError(c, errkind.New(errkind.InvalidRequest, "request body exceeds 64 KiB"), "")
		return
	}

	var req extractRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(c, errkind.Wrap(errkind.InvalidRequest, "invalid request body", err), "")
		return
	}
	if req.URL == "" || req.Schema == nil {
		writeError(c, errkind.New(errkind.InvalidRequest, "url and schema are required"), "")
		return
	}

	if kw, ok := escalate.ValidateExtractionSchema(req.Schema); !ok {
		writeError(c, errkind.New(errkind.SchemaInvalid, "schema uses disallowed keyword: "+kw), req.URL)
		return
	}
	escalate.SanitizeProperties(req.Schema)

	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		writeError(c, errkind.Wrap(errkind.SchemaInvalid, "schema is not serialisable", err), req.URL)
		return
	}
	cacheKey := cachex.ExtractKey(req.URL, string(schemaJSON))

	var cached extractResponse
	if _, ok := s.cache.GetJSON(ctx, cacheKey, &cached); ok {
		c.JSON(consts.StatusOK, cached)
		return
	}

	conv, err := orchestrator.Run(ctx, s.deps, req.URL, convert.Options{})
	if err != nil {
		writeError(c, err, req.URL)
		return
	}

	result, err := escalate.ExtractSchema(ctx, s.deps.LLM, s.deps.LLMModel, conv.Markdown, req.Schema)
	if err != nil {
		writeError(c, errkind.Wrap(errkind.LlmFailure, "schema extraction failed", err), req.URL)
		return
	}

	resp := extractResponse{
		Data:   result.Data,
		Valid:  result.Valid,
		Errors: result.Errors,
		URL:    req.URL,
		TimeMs: time.Since(start).Milliseconds(),
	}

	if !escalate.IsEmptyData(result.Data) {
		_ = s.cache.SetJSON(ctx, cacheKey, resp, cachex.ExtractTTL*time.Second)
	}

	c.JSON(consts.StatusOK, resp)
}
