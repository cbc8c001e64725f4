// Package convert holds the shared data model for the conversion pipeline:
// the request descriptor, the fetched-payload variants, the extracted view,
// and the final conversion result. Sub-packages (guard, fetchx, browser,
// extract, document, feed, youtube, markdownx, escalate, orchestrator,
// cachex, ratelimit, jobs) implement the pipeline stages that produce and
// consume these types.
package convert

import "time"

// LinksMode selects how the markdown pipeline renders hyperlinks.
type LinksMode string

const (
	LinksInline    LinksMode = "inline"
	LinksCitations LinksMode = "citations"
)

// Options carries the client-controlled knobs recognised on the conversion
// endpoints. /batch and /async decode every field from their JSON body;
// GET /{target} sets only Mode, Links, and MaxTokens from its query string.
type Options struct {
	Mode        string    `json:"mode,omitempty"` // "" or "fit"
	Links       LinksMode `json:"links,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	ForceBrowser bool     `json:"force_browser,omitempty"`
	SkipFetch   bool      `json:"skip_fetch,omitempty"`
	SkipBaas    bool      `json:"skip_baas,omitempty"`
}

func (o Options) Fit() bool { return o.Mode == "fit" }

// PayloadKind tags which variant of Fetched is populated.
type PayloadKind string

const (
	PayloadHTML      PayloadKind = "html"
	PayloadFeed      PayloadKind = "feed"
	PayloadDocument  PayloadKind = "document"
	PayloadChallenge PayloadKind = "challenge"
)

// DocFormat names a decodable document format.
type DocFormat string

const (
	DocPDF  DocFormat = "pdf"
	DocDOCX DocFormat = "docx"
	DocXLSX DocFormat = "xlsx"
	DocCSV  DocFormat = "csv"
)

// Fetched is a tagged union over the four payload variants a safe fetch (or
// a browser render) can produce. Exactly one of the Kind-matching fields is
// populated.
type Fetched struct {
	Kind     PayloadKind
	FinalURL string

	HTML []byte // PayloadHTML

	FeedXML []byte // PayloadFeed

	DocBytes  []byte    // PayloadDocument
	DocFormat DocFormat // PayloadDocument

	ChallengeHTML   string // PayloadChallenge
	ChallengeReason string // PayloadChallenge
}

// Extracted is the output of the multi-pass extractor (or any fast path
// that produces markdown directly): either raw content HTML for the
// markdown pipeline to convert, or already-built markdown.
type Extracted struct {
	ContentHTML      string
	PrebuiltMarkdown string
	Title            string
	Excerpt          string
	Byline           string
	SiteName         string
	Method           string
}

func (e Extracted) HasPrebuilt() bool { return e.PrebuiltMarkdown != "" }

// Quality is the deterministic markdown quality score described by the
// markdown pipeline's scorer.
type Quality struct {
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

// Result is the gateway's product: the fully assembled conversion outcome,
// cached and returned to clients.
type Result struct {
	Title       string   `json:"title"`
	Markdown    string   `json:"markdown"`
	FitMarkdown string   `json:"fit_markdown,omitempty"`
	Tokens      int      `json:"tokens"`
	FitTokens   int      `json:"fit_tokens,omitempty"`
	Tier        string   `json:"tier"`
	Method      string   `json:"method"`
	Quality     Quality  `json:"quality"`
	Readability bool     `json:"readability"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Byline      string   `json:"byline,omitempty"`
	SiteName    string   `json:"site_name,omitempty"`
	URL         string   `json:"url"`
	TotalMs     int64    `json:"total_ms"`
	CfChallenge bool     `json:"cf_challenge,omitempty"`
	Escalation  []string `json:"escalation,omitempty"`
}

// JobStatus enumerates the lifecycle states of an async job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the record tracked by the async job store.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Options     Options    `json:"options"`
	CallbackURL string     `json:"callback_url,omitempty"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}
