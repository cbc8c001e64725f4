// Package extract implements the multi-pass content extractor: ten
// ordered strategies from a raw HTML payload down to an Extracted view,
// gated by a "usable" predicate and a ratio-gate against over-aggressive
// stripping. Strategy 1 and 4 are grounded on the teacher's
// webx.extractReadable (go-readability); strategy 3 follows the
// go-trafilatura usage seen in the pack's RSS ingestion code; strategies
// 2/5/6/7/8/9 are goquery-based, cascadia-backed DOM walks.
package extract

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/readmd/gateway/internal/convert"
)

const (
	minUsableTextHTML   = 200
	minUsableTextMeta   = 100
	ratioGateThreshold  = 0.15
	ratioGateAbsolute   = 1000
	ratioGateSkipBelow  = 500
)

var errorPhrases = []string{
	"just a moment", "please enable", "checking your browser", "access denied",
	"are you human", "enable javascript and cookies", "attention required",
	"ddos protection by", "unusual traffic",
}

var schemaTypes = map[string]bool{
	"Article": true, "NewsArticle": true, "BlogPosting": true, "WebPage": true,
	"VideoObject": true, "Product": true, "Recipe": true, "Review": true,
}

var ogFallbackSelectors = []string{"title"}

var cssProbeSelectors = []string{
	"article.markdown-body", "article", "main", "[role=main]",
	".post-content", ".entry-content", ".article-content", ".content-body",
	"#content", "#main-content",
}

// Strategy names reported on Extracted.Method and consulted by the
// orchestrator's "good Tier1" predicate.
const (
	MethodReadability        = "readability"
	MethodDefuddle           = "defuddle"
	MethodArticleExtractor   = "article-extractor"
	MethodReadabilityCleaned = "readability-cleaned"
	MethodCSSProbe           = "css-probe"
	MethodSchemaOrg          = "schema-org"
	MethodOpenGraph          = "opengraph"
	MethodTextDensity        = "text-density"
	MethodCleanedBody        = "cleaned-body"
	MethodRawFallback        = "raw-fallback"
)

// Extract runs the ten strategies in order, returning the first usable
// view. baseURL is used to resolve relative links inside go-readability.
func Extract(rawHTML []byte, baseURL *url.URL) (convert.Extracted, error) {
	rawTextLen := rawTextLength(rawHTML)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return convert.Extracted{ContentHTML: string(rawHTML), Method: MethodRawFallback}, nil
	}

	strategies := []func() (convert.Extracted, bool){
		func() (convert.Extracted, bool) { return tryReadability(rawHTML, baseURL) },
		func() (convert.Extracted, bool) { return tryDefuddle(goquery.CloneDocument(doc)) },
		func() (convert.Extracted, bool) { return tryTrafilatura(rawHTML, baseURL) },
		func() (convert.Extracted, bool) { return tryReadabilityCleaned(goquery.CloneDocument(doc), baseURL) },
		func() (convert.Extracted, bool) { return tryCSSProbe(goquery.CloneDocument(doc)) },
		func() (convert.Extracted, bool) { return trySchemaOrg(goquery.CloneDocument(doc)) },
		func() (convert.Extracted, bool) { return tryOpenGraph(goquery.CloneDocument(doc)) },
		func() (convert.Extracted, bool) { return tryTextDensity(goquery.CloneDocument(doc)) },
		func() (convert.Extracted, bool) { return tryCleanedBody(goquery.CloneDocument(doc)) },
	}

	for _, strategy := range strategies {
		view, ok := strategy()
		if !ok {
			continue
		}
		text := view.PrebuiltMarkdown
		if text == "" {
			text = textOf(view.ContentHTML)
		}
		minLen := minUsableTextHTML
		if view.Method == MethodSchemaOrg || view.Method == MethodOpenGraph {
			minLen = minUsableTextMeta
		}
		if !usable(text, minLen) {
			continue
		}
		if !passesRatioGate(len(text), rawTextLen) {
			continue
		}
		return view, nil
	}

	// Absolute fallback: raw body, never gated.
	body := doc.Find("body")
	html, _ := body.Html()
	if html == "" {
		html = string(rawHTML)
	}
	return convert.Extracted{ContentHTML: html, Method: MethodRawFallback}, nil
}

func tryReadability(rawHTML []byte, baseURL *url.URL) (convert.Extracted, bool) {
	article, err := readability.FromReader(bytes.NewReader(rawHTML), baseURL)
	if err != nil {
		return convert.Extracted{}, false
	}
	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		return convert.Extracted{}, false
	}
	return convert.Extracted{
		ContentHTML: buf.String(),
		Title:       article.Title(),
		Excerpt:     article.Excerpt(),
		Byline:      article.Byline(),
		SiteName:    article.SiteName(),
		Method:      MethodReadability,
	}, true
}

func tryReadabilityCleaned(doc *goquery.Document, baseURL *url.URL) (convert.Extracted, bool) {
	removeJunk(doc.Selection)
	cleaned, err := doc.Html()
	if err != nil {
		return convert.Extracted{}, false
	}
	article, err := readability.FromReader(strings.NewReader(cleaned), baseURL)
	if err != nil {
		return convert.Extracted{}, false
	}
	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		return convert.Extracted{}, false
	}
	return convert.Extracted{
		ContentHTML: buf.String(),
		Title:       article.Title(),
		Excerpt:     article.Excerpt(),
		Byline:      article.Byline(),
		Method:      MethodReadabilityCleaned,
	}, true
}

// tryDefuddle approximates Defuddle's heuristic: after stripping
// structural chrome, pick the subtree with the largest paragraph-text
// density among candidate content containers. No Go port of Defuddle
// exists; this is a from-scratch heuristic in its spirit, not a port.
func tryDefuddle(doc *goquery.Document) (convert.Extracted, bool) {
	removeJunk(doc.Selection)

	var best *goquery.Selection
	bestScore := 0.0
	doc.Find("div, section, article").Each(func(_ int, s *goquery.Selection) {
		paragraphs := s.Find("p")
		if paragraphs.Length() < 2 {
			return
		}
		text := strings.TrimSpace(s.Text())
		score := float64(len(text)) * float64(paragraphs.Length())
		if score > bestScore {
			bestScore = score
			best = s
		}
	})
	if best == nil {
		return convert.Extracted{}, false
	}
	html, err := best.Html()
	if err != nil {
		return convert.Extracted{}, false
	}
	return convert.Extracted{
		ContentHTML: html,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Method:      MethodDefuddle,
	}, true
}

func tryTrafilatura(rawHTML []byte, baseURL *url.URL) (convert.Extracted, bool) {
	opts := trafilatura.Options{
		Focus:          trafilatura.Balanced,
		EnableFallback: true,
	}
	if baseURL != nil {
		opts.OriginalURL = baseURL
	}
	result, err := trafilatura.Extract(bytes.NewReader(rawHTML), opts)
	if err != nil || result == nil || result.ContentNode == nil {
		return convert.Extracted{}, false
	}
	var buf bytes.Buffer
	if err := goquery.Render(&buf, goquery.NewDocumentFromNode(result.ContentNode).Selection); err != nil {
		return convert.Extracted{}, false
	}
	meta := result.Metadata
	return convert.Extracted{
		ContentHTML: buf.String(),
		Title:       meta.Title,
		Excerpt:     meta.Description,
		Byline:      meta.Author,
		SiteName:    meta.Sitename,
		Method:      MethodArticleExtractor,
	}, true
}

func tryCSSProbe(doc *goquery.Document) (convert.Extracted, bool) {
	removeJunk(doc.Selection)
	for _, sel := range cssProbeSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		html, err := node.Html()
		if err != nil || strings.TrimSpace(html) == "" {
			continue
		}
		return convert.Extracted{
			ContentHTML: html,
			Title:       strings.TrimSpace(doc.Find("title").First().Text()),
			Method:      MethodCSSProbe,
		}, true
	}
	return convert.Extracted{}, false
}

type jsonLDEntity struct {
	Type        any    `json:"@type"`
	Headline    string `json:"headline"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      any    `json:"author"`
}

func trySchemaOrg(doc *goquery.Document) (convert.Extracted, bool) {
	var found *jsonLDEntity
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		candidates := splitJSONLD(raw)
		for _, c := range candidates {
			var e jsonLDEntity
			if err := json.Unmarshal(c, &e); err != nil {
				continue
			}
			if typeMatches(e.Type) {
				found = &e
				return false
			}
		}
		return true
	})
	if found == nil {
		return convert.Extracted{}, false
	}
	title := found.Headline
	if title == "" {
		title = found.Name
	}
	md := "# " + title + "\n\n" + found.Description
	return convert.Extracted{
		PrebuiltMarkdown: md,
		Title:            title,
		Excerpt:          found.Description,
		Method:           MethodSchemaOrg,
	}, true
}

func splitJSONLD(raw json.RawMessage) []json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	var withGraph struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &withGraph); err == nil && len(withGraph.Graph) > 0 {
		return withGraph.Graph
	}
	return []json.RawMessage{raw}
}

func typeMatches(t any) bool {
	switch v := t.(type) {
	case string:
		return schemaTypes[v]
	case []any:
		for _, one := range v {
			if s, ok := one.(string); ok && schemaTypes[s] {
				return true
			}
		}
	}
	return false
}

func tryOpenGraph(doc *goquery.Document) (convert.Extracted, bool) {
	title := attrOrEmpty(doc, `meta[property="og:title"]`, "content")
	if title == "" {
		title = attrOrEmpty(doc, `meta[name="twitter:title"]`, "content")
	}
	desc := attrOrEmpty(doc, `meta[property="og:description"]`, "content")
	if desc == "" {
		desc = attrOrEmpty(doc, `meta[name="description"]`, "content")
	}
	if title == "" && desc == "" {
		return convert.Extracted{}, false
	}
	image := attrOrEmpty(doc, `meta[property="og:image"]`, "content")
	md := ""
	if title != "" {
		md += "# " + title + "\n\n"
	}
	if image != "" {
		md += "![](" + image + ")\n\n"
	}
	md += desc
	return convert.Extracted{PrebuiltMarkdown: md, Title: title, Excerpt: desc, Method: MethodOpenGraph}, true
}

func attrOrEmpty(doc *goquery.Document, sel, attr string) string {
	v, _ := doc.Find(sel).First().Attr(attr)
	return strings.TrimSpace(v)
}

func tryTextDensity(doc *goquery.Document) (convert.Extracted, bool) {
	removeJunk(doc.Selection)
	var best *goquery.Selection
	bestScore := 0.0
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err != nil || len(html) == 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		textLen := float64(len(text))
		htmlLen := float64(len(html))
		if htmlLen == 0 {
			return
		}
		score := (textLen / htmlLen) * math.Log(textLen+1)
		if score > bestScore {
			bestScore = score
			best = s
		}
	})
	if best == nil {
		return convert.Extracted{}, false
	}
	html, err := best.Html()
	if err != nil {
		return convert.Extracted{}, false
	}
	return convert.Extracted{ContentHTML: html, Method: MethodTextDensity}, true
}

func tryCleanedBody(doc *goquery.Document) (convert.Extracted, bool) {
	removeJunk(doc.Selection)
	html, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return convert.Extracted{}, false
	}
	return convert.Extracted{ContentHTML: html, Method: MethodCleanedBody}, true
}

// junkSelectors matches the elements the cleaner strips before any
// strategy that shares it (2, 4, 5, 8, 9). The markdown pipeline's
// pre-conversion pass does not run this cleaner.
var junkSelectors = []string{
	"script", "style", "noscript", "nav", "header", "footer", "aside",
	`[role="navigation"]`, `[role="banner"]`, `[role="contentinfo"]`, `[role="complementary"]`,
	`[aria-hidden="true"]`,
}

var junkClassSubstrings = []string{
	"cookie", "consent", "gdpr", "popup", "modal", "overlay", "sidebar", "widget",
	"ad-", "ads-", "advert", "social-share", "share-", "newsletter", "subscribe",
}

var hiddenStyleRe = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|font-size\s*:\s*0|position\s*:\s*absolute.*(left|top)\s*:\s*-\d{3,}`)

func removeJunk(root *goquery.Selection) {
	root.Find(strings.Join(junkSelectors, ", ")).Remove()

	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		haystack := strings.ToLower(class + " " + id)
		for _, needle := range junkClassSubstrings {
			if strings.Contains(haystack, needle) {
				s.Remove()
				return
			}
		}
		if style, ok := s.Attr("style"); ok && hiddenStyleRe.MatchString(style) {
			s.Remove()
		}
	})
}

func usable(text string, minLen int) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minLen {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range errorPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// passesRatioGate rejects a strategy whose extracted text is suspiciously
// small relative to the raw page, unless the raw page itself was tiny (the
// ratio gate doesn't apply below 500 raw chars) or the absolute extracted
// length already clears the 1000-char escape hatch.
func passesRatioGate(extractedLen, rawLen int) bool {
	if rawLen <= ratioGateSkipBelow {
		return true
	}
	if extractedLen >= ratioGateAbsolute {
		return true
	}
	ratio := float64(extractedLen) / float64(rawLen)
	return ratio >= ratioGateThreshold
}

func rawTextLength(rawHTML []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return len(rawHTML)
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.TrimSpace(doc.Text()))
}

func textOf(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
