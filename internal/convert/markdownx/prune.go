package markdownx

import (
	"math"
	"regexp"
	"strings"
)

var (
	atxHeadingRe        = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
	boilerplateHeadingRe = regexp.MustCompile(`(?i)cookie|privacy|terms|disclaimer|advertisement|related|popular|trending|sidebar|footer|nav|menu|sign-up|log-in|subscribe|newsletter|share|social|comment|copyright`)
	mdPunctuationRe     = regexp.MustCompile(`[#*_` + "`" + `>\-]`)
)

type section struct {
	heading string
	level   int
	body    string
}

// PruneToFit implements the prune-to-fit transform: split by ATX heading,
// score each section, drop low-scoring boilerplate, and fall back to the
// original when pruning removed more than 80% of the content.
func PruneToFit(markdown string, maxTokens int, charsPerToken float64) string {
	sections := splitSections(markdown)
	if len(sections) == 0 {
		return markdown
	}

	var kept strings.Builder
	for _, sec := range sections {
		if sectionScore(sec) > 0.15 {
			if sec.heading != "" {
				kept.WriteString(sec.heading + "\n")
			}
			kept.WriteString(sec.body)
		}
	}

	result := strings.TrimSpace(kept.String())
	if len(markdown) > 0 && float64(len(result))/float64(len(markdown)) < 0.2 {
		result = markdown // pruning was too aggressive
	}

	if maxTokens > 0 && charsPerToken > 0 {
		budget := int(float64(maxTokens) * charsPerToken)
		if len(result) > budget {
			result = strings.TrimSpace(result[:budget]) + " …"
		}
	}

	return result
}

func splitSections(markdown string) []section {
	matches := atxHeadingRe.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return []section{{body: markdown}}
	}

	var sections []section
	if matches[0][0] > 0 {
		sections = append(sections, section{body: markdown[:matches[0][0]]})
	}
	for i, m := range matches {
		headingStart, headingEnd := m[0], m[1]
		level := len(markdown[m[2]:m[3]])
		heading := markdown[headingStart:headingEnd]

		bodyStart := headingEnd
		bodyEnd := len(markdown)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		sections = append(sections, section{
			heading: heading,
			level:   level,
			body:    markdown[bodyStart:bodyEnd],
		})
	}
	return sections
}

func sectionScore(sec section) float64 {
	if boilerplateHeadingRe.MatchString(sec.heading) {
		return 0
	}

	textLen := printableTextLen(sec.body)
	density := linkTextDensity(sec.body)

	if density > 0.6 {
		return 0.1
	}
	if sec.level >= 3 && textLen < 50 {
		return 0.2
	}

	score := math.Min(1, float64(textLen)/200) * (1 - density*0.5)
	return score
}

func printableTextLen(s string) int {
	stripped := mdPunctuationRe.ReplaceAllString(s, "")
	return len(strings.TrimSpace(stripped))
}

// linkTextDensity is the fraction of printable characters that fall
// inside link/image text, approximating the spec's linkTextChars/mdLen.
func linkTextDensity(s string) float64 {
	total := printableTextLen(s)
	if total == 0 {
		return 0
	}
	linkChars := 0
	for _, m := range linkURLRe.FindAllStringSubmatch(s, -1) {
		linkChars += len(m[1])
	}
	return math.Min(1, float64(linkChars)/float64(total))
}
