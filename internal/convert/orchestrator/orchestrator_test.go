package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/extract"
)

func TestTierState_AdoptKeepsStrictlyBetterOnly(t *testing.T) {
	s := &tierState{}
	first := &convert.Result{Markdown: "a"}
	s.adopt(first, convert.Quality{Score: 0.5}, "")
	assert.Same(t, first, s.best)

	worse := &convert.Result{Markdown: "b"}
	s.adopt(worse, convert.Quality{Score: 0.5}, "")
	assert.Same(t, first, s.best, "equal score must not replace the current best")

	better := &convert.Result{Markdown: "c"}
	s.adopt(better, convert.Quality{Score: 0.51}, "")
	assert.Same(t, better, s.best)
}

func TestGoodTier1Methods_IncludesSpecifiedMethods(t *testing.T) {
	for _, m := range []string{extract.MethodReadability, extract.MethodReadabilityCleaned, extract.MethodArticleExtractor, extract.MethodDefuddle} {
		assert.True(t, goodTier1Methods[m], m)
	}
	assert.False(t, goodTier1Methods[extract.MethodTextDensity])
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, "llm", tierFor("llm"))
	assert.Equal(t, "baas:cloudflare", tierFor("cloudflare"))
}

func TestScoreStr(t *testing.T) {
	assert.Equal(t, "0.42", scoreStr(0.42))
	assert.Equal(t, "0.00", scoreStr(0))
}

func TestPostProcess_FitModeSwapsMarkdownAndTokens(t *testing.T) {
	res := &convert.Result{Markdown: "# Title\n\nSome real body content worth keeping around.\n"}
	opts := convert.Options{Mode: "fit", MaxTokens: 1000}
	postProcess(res, opts)
	assert.Equal(t, res.FitMarkdown, res.Markdown)
	assert.Equal(t, res.FitTokens, res.Tokens)
}

func TestPostProcess_CitationsAppliedBeforeTokenCount(t *testing.T) {
	res := &convert.Result{Markdown: "See [one](https://a.com) and [two](https://a.com)."}
	opts := convert.Options{Links: convert.LinksCitations}
	postProcess(res, opts)
	assert.Contains(t, res.Markdown, "References:")
	assert.Greater(t, res.Tokens, 0)
}

func TestResultFromView_CarriesMetadata(t *testing.T) {
	view := convert.Extracted{Title: "T", Excerpt: "E", Byline: "B", SiteName: "S", Method: extract.MethodReadability}
	res := resultFromView(view, "md", "fetch", view.Method, "https://x.com")
	assert.Equal(t, "T", res.Title)
	assert.Equal(t, "E", res.Excerpt)
	assert.Equal(t, "B", res.Byline)
	assert.Equal(t, "S", res.SiteName)
	assert.Equal(t, "fetch", res.Tier)
	assert.Equal(t, extract.MethodReadability, res.Method)
}
