package markdownx

import "regexp"

var (
	emptyLinkRe      = regexp.MustCompile(`\[\]\([^)]*\)`)
	citeBackrefRe    = regexp.MustCompile(`\[\[?[^\]]*\]?\]\(#cite[^)]*\)`)
	editLinkRe       = regexp.MustCompile(`\[edit\]\([^)]*\)`)
	bracketMarkerRe  = regexp.MustCompile(`\\?\[(citation needed|better source needed|clarification needed)\\?\]`)
	referenceHeadRe  = regexp.MustCompile(`(?im)^#{1,6}\s*(references|notes|citations|footnotes|bibliography|external links|see also)\s*$`)
	trailingRefListRe = regexp.MustCompile(`(?m)^(?:\d+\.\s+.*\n?){3,}\z`)
	threeNewlinesRe  = regexp.MustCompile(`\n{3,}`)
	whitespaceLineRe = regexp.MustCompile(`(?m)^[ \t]+$`)
	trailingSpaceRe  = regexp.MustCompile(`(?m)[ \t]+$`)
	orphanBracketsRe = regexp.MustCompile(`\[\s*\]|\(\s*\)`)
)

// postConvert applies the post-conversion cleanup steps in order.
func postConvert(s string) string {
	s = emptyLinkRe.ReplaceAllString(s, "")
	s = citeBackrefRe.ReplaceAllString(s, "")
	s = editLinkRe.ReplaceAllString(s, "")
	s = bracketMarkerRe.ReplaceAllString(s, "")

	if loc := referenceHeadRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = trailingRefListRe.ReplaceAllString(s, "")

	s = collapseWhitespace(s)
	return s
}

func collapseWhitespace(s string) string {
	s = threeNewlinesRe.ReplaceAllString(s, "\n\n")
	s = whitespaceLineRe.ReplaceAllString(s, "")
	s = trailingSpaceRe.ReplaceAllString(s, "")
	s = orphanBracketsRe.ReplaceAllString(s, "")
	s = threeNewlinesRe.ReplaceAllString(s, "\n\n")
	return trimSpace(s)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
