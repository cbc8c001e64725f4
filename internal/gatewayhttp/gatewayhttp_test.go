package gatewayhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/errkind"
)

func TestStatusForError_MapsKindsToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errkind.New(errkind.BlockedUrl, "x"), consts.StatusForbidden},
		{errkind.New(errkind.PageTooLarge, "x"), consts.StatusRequestEntityTooLarge},
		{errkind.New(errkind.UnsupportedContentType, "x"), consts.StatusUnsupportedMediaType},
		{errkind.New(errkind.TooManyRedirects, "x"), consts.StatusBadGateway},
		{errkind.New(errkind.BrowserPoolExhausted, "x"), consts.StatusServiceUnavailable},
		{errkind.New(errkind.RateLimited, "x"), consts.StatusTooManyRequests},
		{errkind.New(errkind.SchemaInvalid, "x"), consts.StatusBadRequest},
		{errkind.New(errkind.InvalidRequest, "x"), consts.StatusBadRequest},
		{errkind.New(errkind.JobNotFound, "x"), consts.StatusNotFound},
		{errkind.New(errkind.Internal, "x"), consts.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err))
	}
}

func TestStatusForError_UpstreamHttpUsesCarriedStatus(t *testing.T) {
	err := errkind.WithStatus(errkind.UpstreamHttp, "x", 404)
	assert.Equal(t, 404, statusForError(err))
}

func TestStatusForError_FallsBackToMessagePattern(t *testing.T) {
	err := errkind.New(errkind.Internal, "upstream responded HTTP_503 unavailable")
	assert.Equal(t, 503, statusForError(err))
}

func TestStatusFromUpstreamMessage_RejectsOutOfRangeCode(t *testing.T) {
	_, ok := statusFromUpstreamMessage("something HTTP_9999 wrong")
	assert.False(t, ok)
}

func TestStatusFromUpstreamMessage_NoMarkerReturnsFalse(t *testing.T) {
	_, ok := statusFromUpstreamMessage("plain error")
	assert.False(t, ok)
}

func TestOptionsSuffix_DiffersByMode(t *testing.T) {
	a := optionsSuffix(convert.Options{Mode: "fit"})
	b := optionsSuffix(convert.Options{Mode: ""})
	assert.NotEqual(t, a, b)
}

func TestOptionsSuffix_DeterministicForSameOptions(t *testing.T) {
	opts := convert.Options{Mode: "fit", Links: convert.LinksCitations, MaxTokens: 500}
	assert.Equal(t, optionsSuffix(opts), optionsSuffix(opts))
}

func TestMarkdownDocument_IncludesHeaderBlock(t *testing.T) {
	res := &convert.Result{Title: "T", URL: "https://x", Byline: "Jo", Excerpt: "Exc", Markdown: "# Body"}
	doc := markdownDocument(res)
	assert.Contains(t, doc, "Title: T")
	assert.Contains(t, doc, "URL Source: https://x")
	assert.Contains(t, doc, "Author: Jo")
	assert.Contains(t, doc, "Description: Exc")
	assert.Contains(t, doc, "Markdown Content:\n# Body")
}

func TestEtagFor_StableForSameMarkdown(t *testing.T) {
	assert.Equal(t, etagFor("hello"), etagFor("hello"))
	assert.NotEqual(t, etagFor("hello"), etagFor("world"))
}

func TestPublicJobView_OmitsCallbackURLAndOptions(t *testing.T) {
	job := &convert.Job{
		ID:          "job_1",
		URL:         "https://x",
		CallbackURL: "https://hooks.example.com/cb",
		Options:     convert.Options{Mode: "fit"},
		Status:      convert.JobCompleted,
	}
	view := publicJobView(job)
	_, hasCallback := view["callback_url"]
	_, hasOptions := view["options"]
	assert.False(t, hasCallback)
	assert.False(t, hasOptions)
	assert.Equal(t, "job_1", view["id"])
}

func TestRunBatch_InvalidURLsDoNotConsumeWorkerSlot(t *testing.T) {
	s := &Server{}
	results := s.runBatch(t.Context(), []string{"", "", ""}, convert.Options{})
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "invalid url", r.Error)
	}
}
