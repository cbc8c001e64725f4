package gatewayhttp

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/jobs"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/pkg/logs"
)

type asyncRequest struct {
	URL         string          `json:"url"`
	Options     convert.Options `json:"options,omitempty"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

type asyncResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	PollURL string `json:"poll_url"`
}

func (s *Server) handleAsync(ctx context.Context, c *app.RequestContext) {
	ctx = s.withRequestScope(ctx, c)
	if s.rateLimited(ctx, c, "async") {
		return
	}

	var req asyncRequest
	if err := sonic.Unmarshal(c.GetRequest().Body(), &req); err != nil {
		writeError(c, errkind.Wrap(errkind.InvalidRequest, "invalid request body", err), "")
		return
	}
	if req.URL == "" {
		writeError(c, errkind.New(errkind.InvalidRequest, "url is required"), "")
		return
	}
	if req.CallbackURL != "" {
		if err := jobs.ValidateCallbackURL(s.guard, req.CallbackURL); err != nil {
			writeError(c, err, req.URL)
			return
		}
	}

	job, err := s.jobs.Create(ctx, req.URL, req.Options, req.CallbackURL)
	if err != nil {
		writeError(c, err, req.URL)
		return
	}

	go s.runAsyncJob(job)

	c.JSON(consts.StatusAccepted, asyncResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		PollURL: "/job/" + job.ID,
	})
}

// runAsyncJob executes the conversion in the background, records the
// outcome, and schedules webhook delivery if a callback URL was given. It
// never blocks the caller's response nor the job's own status update.
func (s *Server) runAsyncJob(job *convert.Job) {
	ctx := context.Background()

	res, err := s.convertForAPI(ctx, job.URL, job.Options)
	var completed *convert.Job
	if err != nil {
		completed, err = s.jobs.Fail(ctx, job.ID, err)
	} else {
		completed, err = s.jobs.Complete(ctx, job.ID, res)
	}
	if err != nil {
		logs.CtxError(ctx, "[gatewayhttp] job %s status update failed: %v", job.ID, err)
		return
	}

	if completed.CallbackURL == "" {
		return
	}
	if err := jobs.DeliverWebhook(ctx, s.webhookClient, completed); err != nil {
		logs.CtxWarn(ctx, "[gatewayhttp] webhook delivery for job %s failed: %v", job.ID, err)
	}
}

func (s *Server) handleJobStatus(ctx context.Context, c *app.RequestContext) {
	ctx = s.withRequestScope(ctx, c)
	id := c.Param("id")

	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		writeError(c, err, "")
		return
	}

	c.JSON(consts.StatusOK, publicJobView(job))
}

// publicJobView strips callback_url and options before a job is echoed
// back to a poller, per §6's "never echoes callback_url/options" rule.
func publicJobView(job *convert.Job) map[string]any {
	view := map[string]any{
		"id":         job.ID,
		"url":        job.URL,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if job.CompletedAt != nil {
		view["completed_at"] = job.CompletedAt
	}
	if job.Result != nil {
		view["result"] = job.Result
	}
	if job.Error != "" {
		view["error"] = job.Error
	}
	return view
}
