package escalate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/readmd/gateway/internal/provider"
)

// Candidate is one outcome of the Tier 2.5/3 racing block: either the LLM
// content extractor's Markdown or a BaaS render's raw HTML, which the
// orchestrator still runs through extraction and the markdown pipeline
// before scoring it.
type Candidate struct {
	Source   string // "llm" or a BaasProvider.Name()
	Markdown string
	Title    string
	HTML     string // set when the candidate still needs extraction+conversion (BaaS)
	OK       bool
	Err      error
}

// RaceLLMAndBaas launches the LLM content extraction and the configured
// BaaS providers concurrently and collects every outcome without
// cancelling one because the other finished — per the racing rule, both
// candidates are scored and the strictly-better one wins.
func RaceLLMAndBaas(ctx context.Context, p provider.Provider, modelName string, rawHTML string, baasProviders []BaasProvider, targetURL string, needLLM, needBaas bool) []Candidate {
	candidates := make([]Candidate, 0, 2)
	var llmCand, baasCand Candidate

	g, gctx := errgroup.WithContext(ctx)

	if needLLM && p != nil {
		g.Go(func() error {
			md, ok, err := ExtractContent(gctx, p, modelName, rawHTML)
			llmCand = Candidate{Source: "llm", Markdown: md, OK: ok, Err: err}
			return nil
		})
	}

	if needBaas && len(baasProviders) > 0 {
		g.Go(func() error {
			name, title, html, err := RenderInOrder(gctx, baasProviders, targetURL)
			baasCand = Candidate{Source: name, Title: title, HTML: html, OK: err == nil, Err: err}
			if name == "" {
				baasCand.Source = "baas"
			}
			return nil
		})
	}

	// errgroup.Wait only ever returns an error here if a g.Go func itself
	// returns one, which none of these do — both outcomes are always
	// captured, successful or not, per the "collect all outcomes" rule.
	_ = g.Wait()

	if needLLM && p != nil {
		candidates = append(candidates, llmCand)
	}
	if needBaas && len(baasProviders) > 0 {
		candidates = append(candidates, baasCand)
	}
	return candidates
}
