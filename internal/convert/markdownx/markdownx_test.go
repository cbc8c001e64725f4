package markdownx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostConvert_DropsEmptyLinksAndEditMarkers(t *testing.T) {
	in := "Hello [](http://x.com) world [edit](http://x.com/edit) [citation needed]"
	out := postConvert(in)
	assert.NotContains(t, out, "[](")
	assert.NotContains(t, out, "[edit]")
	assert.NotContains(t, out, "citation needed")
}

func TestPostConvert_TruncatesAtReferencesHeading(t *testing.T) {
	in := "# Title\n\nBody text.\n\n## References\n\n1. foo\n2. bar\n"
	out := postConvert(in)
	assert.NotContains(t, out, "References")
	assert.Contains(t, out, "Body text.")
}

func TestPostConvert_CollapsesNewlines(t *testing.T) {
	in := "a\n\n\n\n\nb"
	out := collapseWhitespace(in)
	assert.Equal(t, "a\n\nb", out)
}

func TestCitations_DeduplicatesSharedURL(t *testing.T) {
	in := "See [one](https://a.com) and [two](https://a.com) and [three](https://b.com)."
	out := Citations(in)
	assert.Contains(t, out, "one [1]")
	assert.Contains(t, out, "two [1]")
	assert.Contains(t, out, "three [2]")
	assert.Contains(t, out, "References:")
	assert.Equal(t, 2, strings.Count(out, "]: "))
}

func TestCitations_PreservesInlineSpecialLinks(t *testing.T) {
	in := "Jump to [top](#top) or [email us](mailto:a@b.com)."
	out := Citations(in)
	assert.Contains(t, out, "[top](#top)")
	assert.Contains(t, out, "[email us](mailto:a@b.com)")
	assert.NotContains(t, out, "References:")
}

func TestCitations_PreservesImages(t *testing.T) {
	in := "![alt text](https://img.com/a.png) and [a link](https://x.com)"
	out := Citations(in)
	assert.Contains(t, out, "![alt text](https://img.com/a.png)")
}

func TestScore_EmptyMarkdownIsLowGrade(t *testing.T) {
	q := Score("")
	assert.Equal(t, "F", q.Grade)
}

func TestScore_WellStructuredDocumentGradesHigh(t *testing.T) {
	body := "# Title\n\n" + strings.Repeat("This is a well written paragraph of real content. ", 30) +
		"\n\nAnother paragraph continues the story with more real text to read.\n\n- item one\n- item two\n"
	q := Score(body)
	assert.GreaterOrEqual(t, q.Score, 0.4)
}

func TestCleanLLMOutput_StripsThinkAndFence(t *testing.T) {
	in := "<think>reasoning here</think>```markdown\n# Hello\nworld\n```"
	out := CleanLLMOutput(in)
	assert.Equal(t, "# Hello\nworld", out)
}

func TestCleanLLMOutput_StripsUnbalancedThink(t *testing.T) {
	in := "<think>never closes"
	out := CleanLLMOutput(in)
	assert.Equal(t, "", out)
}

func TestPruneToFit_DropsBoilerplateSections(t *testing.T) {
	in := "# Intro\n\n" + strings.Repeat("Real article content here. ", 20) +
		"\n\n## Related Articles\n\nSponsored link spam.\n\n## Cookie Policy\n\nWe use cookies.\n"
	out := PruneToFit(in, 0, 0)
	assert.Contains(t, out, "Real article content")
	assert.NotContains(t, out, "Cookie Policy")
}

func TestPruneToFit_SafetyRuleReturnsOriginalWhenTooAggressive(t *testing.T) {
	in := "## Cookie Policy\n\nshort\n\n## Related\n\nshort\n"
	out := PruneToFit(in, 0, 0)
	assert.Equal(t, in, out)
}

func TestCountTokens_ApproximatesAboveCharLimit(t *testing.T) {
	big := strings.Repeat("a", exactTokenCountCharLimit+4)
	n := CountTokens(big)
	assert.Equal(t, (len(big)+3)/4, n)
}
