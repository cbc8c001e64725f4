// Package orchestrator runs the tier state machine: YouTube/Feed/Document
// fast paths, then the Tier1 fetch+extract / Tier2 browser / Tier2.5+3
// LLM+BaaS escalation chain, each candidate scored by markdownx.Score and
// adopted only if strictly better than the current best. Grounded on the
// teacher's gateway.processMessage staged short-circuit pipeline: each
// stage either returns or falls through to the next, and its
// MessageQueue concurrency idiom generalises to the Tier2.5/3 racing
// block via golang.org/x/sync/errgroup.
package orchestrator

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/browser"
	"github.com/readmd/gateway/internal/convert/document"
	"github.com/readmd/gateway/internal/convert/escalate"
	"github.com/readmd/gateway/internal/convert/extract"
	"github.com/readmd/gateway/internal/convert/feed"
	"github.com/readmd/gateway/internal/convert/fetchx"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/convert/markdownx"
	"github.com/readmd/gateway/internal/convert/youtube"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/provider"
)

// goodTier1Methods are extraction methods considered reliable enough that
// Tier1 is accepted regardless of its numeric score.
var goodTier1Methods = map[string]bool{
	extract.MethodReadability:        true,
	extract.MethodReadabilityCleaned: true,
	extract.MethodArticleExtractor:   true,
	extract.MethodDefuddle:           true,
}

const (
	goodTier1ScoreFloor = 0.6
	llmScoreCeiling     = 0.6
	baasScoreCeiling    = 0.4
	charsPerToken       = 4.0
)

// Dependencies bundles the pipeline's stateful collaborators. Callers
// construct one per process (or per test) and pass it to Run.
type Dependencies struct {
	Guard     *guard.Guard
	Fetcher   *fetchx.Fetcher
	Browser   *browser.Pool
	LLM       provider.Provider
	LLMModel  string
	BaasChain []escalate.BaasProvider
}

// Run executes the full tier state machine for rawURL and returns the
// assembled result (post-processing already applied).
func Run(ctx context.Context, deps Dependencies, rawURL string, opts convert.Options) (*convert.Result, error) {
	start := time.Now()
	var escalationLog []string
	log := func(msg string) { escalationLog = append(escalationLog, msg) }

	if md, ok := youtube.ToMarkdown(ctx, rawURL); ok {
		res := &convert.Result{
			Markdown: md,
			Tier:     "youtube",
			Method:   "youtube",
			URL:      rawURL,
		}
		return finish(res, opts, start, nil), nil
	}

	if !opts.SkipFetch {
		fetched, err := deps.Fetcher.Fetch(ctx, rawURL)
		if err == nil {
			switch fetched.Kind {
			case convert.PayloadFeed:
				title, md, ferr := feed.ToMarkdown(fetched.FeedXML, fetched.FinalURL)
				if ferr == nil {
					res := &convert.Result{Title: title, Markdown: md, Tier: "feed", Method: "feed", URL: rawURL}
					return finish(res, opts, start, nil), nil
				}
				log("feed parse failed: " + ferr.Error())
			case convert.PayloadDocument:
				md, derr := document.Decode(ctx, fetched)
				if derr == nil {
					res := &convert.Result{Markdown: md, Tier: "document:" + string(fetched.DocFormat), Method: "document", URL: rawURL}
					return finish(res, opts, start, nil), nil
				}
				log("document decode failed: " + derr.Error())
			}
		}

		if err == nil && fetched.Kind == convert.PayloadHTML {
			return runHTMLChain(ctx, deps, rawURL, fetched, opts, start, escalationLog)
		}
		if err == nil && fetched.Kind == convert.PayloadChallenge {
			return runHTMLChainChallenge(ctx, deps, rawURL, fetched, opts, start, escalationLog)
		}
		if err != nil {
			log("fetch failed (" + err.Error() + ")")
			return runBrowserOnly(ctx, deps, rawURL, opts, start, escalationLog)
		}
	}

	return runBrowserOnly(ctx, deps, rawURL, opts, start, escalationLog)
}

type tierState struct {
	best        *convert.Result
	bestQuality convert.Quality
	cfChallenge bool
	log         []string
	// lastHTML holds the most recent raw page HTML seen (Tier1 fetch or
	// Tier2 browser render), the input the LLM content extractor cleans
	// and truncates — never the already-converted markdown.
	lastHTML string
}

func (s *tierState) logf(msg string) { s.log = append(s.log, msg) }

func (s *tierState) adopt(candidate *convert.Result, q convert.Quality, reason string) {
	if s.best == nil || q.Score > s.bestQuality.Score {
		s.best = candidate
		s.bestQuality = q
		if reason != "" {
			s.logf(reason)
		}
	}
}

func runHTMLChain(ctx context.Context, deps Dependencies, rawURL string, fetched *convert.Fetched, opts convert.Options, start time.Time, logSoFar []string) (*convert.Result, error) {
	s := &tierState{log: logSoFar, lastHTML: string(fetched.HTML)}
	base, _ := url.Parse(fetched.FinalURL)

	view, extractErr := extract.Extract(fetched.HTML, base)
	var challengeTitle bool
	if extractErr == nil {
		challengeTitle = markdownx.ChallengeTitleDetected(view.Title)
		if challengeTitle {
			s.cfChallenge = true
		}
		good := goodTier1Methods[view.Method]
		md, convErr := toMarkdown(view, fetched.FinalURL)
		if convErr == nil {
			q := markdownx.Score(md)
			if !good {
				good = q.Score >= goodTier1ScoreFloor
			}
			res := resultFromView(view, md, "fetch", view.Method, rawURL)
			if good && !challengeTitle {
				return finishState(res, q, s, opts, start, false), nil
			}
			s.adopt(res, q, "low quality "+scoreStr(q.Score)+" via "+view.Method)
		}
	} else {
		s.logf("extraction failed (" + extractErr.Error() + ")")
	}

	cfPoisoned := challengeTitle && !opts.SkipFetch && !opts.ForceBrowser
	s.cfChallenge = s.cfChallenge || cfPoisoned

	upstream4xx := false // Tier1 fetch succeeded here, so no 4xx short-circuit
	needsBrowser := !cfPoisoned && !upstream4xx && (extractErr != nil || challengeTitle || opts.ForceBrowser || s.best == nil || s.bestQuality.Score < goodTier1ScoreFloor)

	if needsBrowser && deps.Browser != nil {
		if br := tryBrowser(ctx, deps, rawURL, s); br != nil {
			q := markdownx.Score(br.Markdown)
			s.adopt(br, q, "")
		}
	} else if cfPoisoned {
		s.logf("CF challenge → trying BaaS")
	}

	return escalateAndFinish(ctx, deps, rawURL, s, opts, start)
}

func runHTMLChainChallenge(ctx context.Context, deps Dependencies, rawURL string, fetched *convert.Fetched, opts convert.Options, start time.Time, logSoFar []string) (*convert.Result, error) {
	s := &tierState{log: logSoFar, lastHTML: fetched.ChallengeHTML}
	s.cfChallenge = true
	s.logf("challenge page detected: " + fetched.ChallengeReason)

	cfPoisoned := !opts.SkipFetch && !opts.ForceBrowser
	if !cfPoisoned && deps.Browser != nil {
		if br := tryBrowser(ctx, deps, rawURL, s); br != nil {
			q := markdownx.Score(br.Markdown)
			s.adopt(br, q, "")
		}
	} else {
		s.logf("CF challenge → trying BaaS")
	}

	return escalateAndFinish(ctx, deps, rawURL, s, opts, start)
}

func runBrowserOnly(ctx context.Context, deps Dependencies, rawURL string, opts convert.Options, start time.Time, logSoFar []string) (*convert.Result, error) {
	s := &tierState{log: logSoFar}
	if deps.Browser != nil {
		if br := tryBrowser(ctx, deps, rawURL, s); br != nil {
			q := markdownx.Score(br.Markdown)
			s.adopt(br, q, "")
		}
	}
	return escalateAndFinish(ctx, deps, rawURL, s, opts, start)
}

func tryBrowser(ctx context.Context, deps Dependencies, rawURL string, s *tierState) *convert.Result {
	page, err := deps.Browser.AcquirePage(ctx)
	if err != nil {
		s.logf("browser unavailable: " + err.Error())
		return nil
	}
	defer page.Release()

	html, err := page.Navigate(ctx, rawURL)
	if err != nil {
		s.logf("browser navigation failed: " + err.Error())
		return nil
	}
	s.lastHTML = html

	base, _ := url.Parse(rawURL)
	view, err := extract.Extract([]byte(html), base)
	if err != nil {
		s.logf("browser extraction failed: " + err.Error())
		return nil
	}
	md, err := toMarkdown(view, rawURL)
	if err != nil {
		s.logf("browser markdown conversion failed: " + err.Error())
		return nil
	}
	return resultFromView(view, md, "browser", view.Method, rawURL)
}

func escalateAndFinish(ctx context.Context, deps Dependencies, rawURL string, s *tierState, opts convert.Options, start time.Time) (*convert.Result, error) {
	score := 0.0
	if s.best != nil {
		score = s.bestQuality.Score
	}

	needsLLM := s.lastHTML != "" && score < llmScoreCeiling && deps.LLM != nil
	needsBaas := len(deps.BaasChain) > 0 && (s.cfChallenge || score < baasScoreCeiling) && !opts.SkipBaas

	if needsLLM || needsBaas {
		s.logf("quality " + scoreStr(score) + " → racing LLM + BaaS")
		candidates := escalate.RaceLLMAndBaas(ctx, deps.LLM, deps.LLMModel, s.lastHTML, deps.BaasChain, rawURL, needsLLM, needsBaas)
		for _, c := range candidates {
			if !c.OK {
				if c.Err != nil {
					s.logf(c.Source + " failed: " + c.Err.Error())
				}
				continue
			}
			md := c.Markdown
			method := "llm"
			if c.HTML != "" {
				base, _ := url.Parse(rawURL)
				view, err := extract.Extract([]byte(c.HTML), base)
				if err != nil {
					s.logf(c.Source + " extraction failed: " + err.Error())
					continue
				}
				converted, err := toMarkdown(view, rawURL)
				if err != nil {
					s.logf(c.Source + " markdown conversion failed: " + err.Error())
					continue
				}
				md = converted
				method = c.Source
			}
			q := markdownx.Score(md)
			if s.best == nil || q.Score > s.bestQuality.Score {
				s.best = &convert.Result{Markdown: md, Tier: tierFor(method), Method: method, URL: rawURL}
				s.bestQuality = q
				if method != "llm" && s.cfChallenge {
					s.cfChallenge = false
				}
			}
		}
	}

	if s.best == nil {
		return nil, errkind.New(errkind.NotExtractable, "no tier produced usable content for "+rawURL)
	}

	return finishState(s.best, s.bestQuality, s, opts, start, s.cfChallenge), nil
}

func tierFor(method string) string {
	if method == "llm" {
		return "llm"
	}
	return "baas:" + method
}

func toMarkdown(view convert.Extracted, baseURL string) (string, error) {
	if view.HasPrebuilt() {
		return view.PrebuiltMarkdown, nil
	}
	return markdownx.FromHTML(view.ContentHTML, baseURL)
}

func resultFromView(view convert.Extracted, md, tier, method, rawURL string) *convert.Result {
	return &convert.Result{
		Title:    view.Title,
		Markdown: md,
		Tier:     tier,
		Method:   method,
		Excerpt:  view.Excerpt,
		Byline:   view.Byline,
		SiteName: view.SiteName,
		URL:      rawURL,
	}
}

func scoreStr(score float64) string {
	s := strconv.FormatFloat(score, 'f', 2, 64)
	return s
}
