package orchestrator

import (
	"time"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/markdownx"
)

// finish applies the post-processing step to a fast-path result (YouTube,
// feed, document) that never went through the tier state machine and so
// carries no escalation log or cf_challenge flag.
func finish(res *convert.Result, opts convert.Options, start time.Time, escalation []string) *convert.Result {
	postProcess(res, opts)
	res.TotalMs = time.Since(start).Milliseconds()
	if len(escalation) > 0 {
		res.Escalation = escalation
	}
	return res
}

// finishState applies the post-processing step to the winning tier-chain
// candidate, stamping its quality, escalation log, and cf_challenge flag.
func finishState(res *convert.Result, q convert.Quality, s *tierState, opts convert.Options, start time.Time, cfChallenge bool) *convert.Result {
	res.Quality = q
	res.Readability = goodTier1Methods[res.Method]
	postProcess(res, opts)
	res.TotalMs = time.Since(start).Milliseconds()
	res.CfChallenge = cfChallenge
	if len(s.log) > 0 {
		res.Escalation = s.log
	}
	return res
}

// postProcess implements §4.10's fixed four-step sequence, applied exactly
// once per successful conversion after the final tier is chosen.
func postProcess(res *convert.Result, opts convert.Options) {
	if opts.Links == convert.LinksCitations {
		res.Markdown = markdownx.Citations(res.Markdown)
	}
	res.Tokens = markdownx.CountTokens(res.Markdown)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = res.Tokens
	}
	res.FitMarkdown = markdownx.PruneToFit(res.Markdown, maxTokens, charsPerToken)
	res.FitTokens = markdownx.CountTokens(res.FitMarkdown)

	if opts.Fit() {
		res.Markdown = res.FitMarkdown
		res.Tokens = res.FitTokens
	}
}
