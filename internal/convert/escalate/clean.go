package escalate

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxDocumentChars = 48_000

var htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

// junkSelectors is the element list stripped from LLM input before it is
// wrapped in <DOCUMENT>. It overlaps with, but is not the same as, the
// extractor's removeJunk list: the extractor's class/id substring and
// hidden-style rules are not applied here.
var junkSelectors = []string{
	"script", "style", "noscript", "svg", "iframe", "nav", "footer",
	"header", "aside", "[role=navigation]", "[role=banner]", "[role=contentinfo]",
	".advertisement", ".ads", ".ad-container", ".social-share", ".cookie-banner",
	".newsletter-signup", ".comments", "#comments",
}

// PrepareDocument cleans rawHTML (drops junk elements and HTML comments)
// and truncates it to maxDocumentChars without splitting a UTF-16 surrogate
// pair, matching the content-extraction prompt's input contract.
func PrepareDocument(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	cleaned := rawHTML
	if err == nil {
		for _, sel := range junkSelectors {
			doc.Find(sel).Remove()
		}
		if html, herr := doc.Html(); herr == nil {
			cleaned = html
		}
	}
	cleaned = htmlCommentRe.ReplaceAllString(cleaned, "")
	return truncateRunes(cleaned, maxDocumentChars)
}

// truncateRunes truncates s to at most maxRunes Unicode code points. Cutting
// on runes rather than bytes never splits a UTF-16 surrogate pair, since a
// Go rune always holds one full code point even above the BMP.
func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
