package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmd/gateway/internal/convert"
)

func TestDeliverWebhook_SucceedsOnFirstAttempt(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	job := &convert.Job{ID: "job_1", Status: convert.JobCompleted, CallbackURL: srv.URL, Result: &convert.Result{Title: "T"}}
	err := DeliverWebhook(t.Context(), srv.Client(), job)
	require.NoError(t, err)
	assert.Equal(t, "job_1", received.JobID)
	assert.Equal(t, convert.JobCompleted, received.Status)
}

func TestDeliverWebhook_NoCallbackURLIsNoop(t *testing.T) {
	job := &convert.Job{ID: "job_2", Status: convert.JobCompleted}
	err := DeliverWebhook(context.Background(), http.DefaultClient, job)
	require.NoError(t, err)
}

func TestDeliverWebhook_FailsAfterAllAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	job := &convert.Job{ID: "job_3", Status: convert.JobFailed, CallbackURL: srv.URL}

	ctx, cancel := context.WithTimeout(context.Background(), 40_000_000_000)
	defer cancel()
	err := DeliverWebhook(ctx, srv.Client(), job)
	assert.Error(t, err)
}
