package markdownx

import (
	"math"
	"regexp"
	"strings"

	"github.com/readmd/gateway/internal/convert"
)

var challengePhrases = []string{
	"just a moment", "please enable", "checking your browser", "access denied",
	"are you human", "enable javascript and cookies", "attention required",
	"ddos protection by", "unusual traffic",
}

var spaPayloadPatterns = []string{
	"self.__next_f =", "__nuxt__", "window.__remixcontext", "ng-version=",
	"___gatsby", "q:container", "ember-application", "astro-island",
	"webpackchunk", "window.__initial_state__",
}

var boilerplatePhrases = []string{
	"cookie policy", "privacy policy", "terms of service", "all rights reserved",
	"subscribe to our newsletter", "sign up for our newsletter", "accept cookies",
}

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
var listItemRe = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s+\S`)
var blankSeparatedParaRe = regexp.MustCompile(`\S\n\n\S`)

// Score computes the deterministic quality score and letter grade for a
// markdown string, per the pipeline's scoring formula.
func Score(markdown string) convert.Quality {
	textLen := printableTextLen(markdown)
	mdLen := len(markdown)
	lower := strings.ToLower(markdown)

	length := math.Min(float64(textLen)/1000, 1)

	textDensity := 0.0
	if mdLen > 0 {
		textDensity = math.Min(float64(textLen)/float64(mdLen), 1)
	}

	structure := structureScore(markdown)
	boilerplate := boilerplateScore(lower)
	linkDensity := math.Max(0, 1-2*linkTextDensity(markdown))

	challenge := 1.0
	for _, p := range challengePhrases {
		if strings.Contains(lower, p) {
			challenge = 0.1
			break
		}
	}

	framework := 1.0
	for _, p := range spaPayloadPatterns {
		if strings.Contains(lower, p) {
			framework = 0.1
			break
		}
	}

	thin := 1.0
	switch {
	case textLen < 300:
		thin = 0.4
	case textLen < 500:
		thin = 0.7
	}

	raw := (0.15*length + 0.25*textDensity + 0.2*structure + 0.2*boilerplate + 0.2*linkDensity) * challenge * framework * thin
	raw = math.Max(0, math.Min(1, raw))
	raw = math.Round(raw*100) / 100

	return convert.Quality{Score: raw, Grade: grade(raw)}
}

func structureScore(markdown string) float64 {
	count := 0
	if headingRe.MatchString(markdown) {
		count++
	}
	if blankSeparatedParaRe.MatchString(markdown) {
		count++
	}
	if listItemRe.MatchString(markdown) {
		count++
	}
	switch count {
	case 3:
		return 1
	case 2:
		return 0.7
	case 1:
		return 0.4
	default:
		return 0.1
	}
}

func boilerplateScore(lowerMarkdown string) float64 {
	hits := 0
	for _, p := range boilerplatePhrases {
		if strings.Contains(lowerMarkdown, p) {
			hits++
		}
	}
	return math.Max(0, 1-0.15*float64(hits))
}

func grade(score float64) string {
	switch {
	case score >= 0.8:
		return "A"
	case score >= 0.6:
		return "B"
	case score >= 0.4:
		return "C"
	case score >= 0.2:
		return "D"
	default:
		return "F"
	}
}

// ChallengeTitleDetected reports whether title contains any error/challenge
// pattern, used by the orchestrator's cf_poisoned / challenge_title
// predicates.
func ChallengeTitleDetected(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range challengePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
