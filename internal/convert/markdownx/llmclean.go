package markdownx

import (
	"regexp"
	"strings"
)

var (
	thinkBalancedRe  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkUnbalancedRe = regexp.MustCompile(`(?s)<think>.*$`)
	fencedBlockRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*)\\n```\\s*$")
)

// CleanLLMOutput strips <think>...</think> reasoning blocks (balanced or
// left dangling) and unwraps a whole-output code fence, shared by both the
// LLM content extractor and the schema extractor.
func CleanLLMOutput(s string) string {
	s = thinkBalancedRe.ReplaceAllString(s, "")
	s = thinkUnbalancedRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(s)
}
