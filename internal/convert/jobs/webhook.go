package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/errkind"
)

const (
	webhookAttemptTimeout = 10 * time.Second
	maxWebhookAttempts    = 3
)

// webhookDelays are the fixed exponential-backoff delays between
// attempts 1→2 and 2→3.
var webhookDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	25 * time.Second,
}

// ValidateCallbackURL enforces the submit-time callback URL contract:
// HTTPS only, host not private/metadata, using the same guard as every
// other outbound dereference.
func ValidateCallbackURL(g *guard.Guard, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errkind.Wrap(errkind.InvalidRequest, "invalid callback_url", err)
	}
	if u.Scheme != "https" {
		return errkind.New(errkind.InvalidRequest, "callback_url must be https")
	}
	if err := g.CheckURLFull(context.Background(), rawURL); err != nil {
		return err
	}
	return nil
}

type webhookPayload struct {
	JobID  string            `json:"job_id"`
	Status convert.JobStatus `json:"status"`
	Result *convert.Result   `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// DeliverWebhook POSTs the job's outcome to its callback URL with up to
// maxWebhookAttempts tries at the fixed backoff delays. It never blocks
// the caller's response to the submitter or the job's own status update
// — callers invoke it from a detached goroutine.
func DeliverWebhook(ctx context.Context, client *http.Client, job *convert.Job) error {
	if job.CallbackURL == "" {
		return nil
	}

	payload := webhookPayload{JobID: job.ID, Status: job.Status, Result: job.Result, Error: job.Error}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxWebhookAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(webhookDelays[attempt-1]):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, webhookAttemptTimeout)
		lastErr = attemptOnce(attemptCtx, client, job.CallbackURL, body)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxWebhookAttempts, lastErr)
}

func attemptOnce(ctx context.Context, client *http.Client, callbackURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}
