// Package sanitize scrubs user-influenced strings before they reach a
// client response or a log line, following the same regexp-scrub idiom
// the teacher uses to strip ANSI codes from log output
// (internal/pkg/logs/default.go's stripANSI).
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// errorBudget is the maximum length of a sanitised error string
	// returned to a client.
	errorBudget = 300
	// logBudget is the maximum length of a user-supplied string allowed
	// to reach a log line.
	logBudget = 500
	// urlBudget is the maximum length of a URL echoed in an error response.
	urlBudget = 2048
)

var (
	// windowsPath matches "C:\..." / "D:/..." drive-letter paths.
	windowsPath = regexp.MustCompile(`[A-Za-z]:[\\/][^\s"']+`)
	// unixPath matches absolute unix-style paths with at least two segments.
	unixPath = regexp.MustCompile(`(?:/[\w.\-]+){2,}`)
	// stackFrame matches "at foo.bar(file.go:12:34)"-shaped fragments.
	stackFrame = regexp.MustCompile(`\s*at\s+[\w./$-]+\([^)]*:\d+(?::\d+)?\)`)
	// controlChars matches ASCII control characters other than tab.
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)
)

// Error rewrites an error string for safe client exposure: filesystem
// paths become "[internal]", stack-trace fragments are dropped, and the
// result is trimmed to a short budget.
func Error(msg string) string {
	msg = stackFrame.ReplaceAllString(msg, "")
	msg = windowsPath.ReplaceAllString(msg, "[internal]")
	msg = unixPath.ReplaceAllString(msg, "[internal]")
	msg = strings.TrimSpace(msg)
	return truncate(msg, errorBudget)
}

// LogLine escapes control characters out of a user-supplied string and
// truncates it before it is interpolated into a log line, preventing log
// injection via embedded newlines/escape sequences.
func LogLine(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	return truncate(s, logBudget)
}

// URL strips the query string and fragment from u and caps its length,
// for safe inclusion in an error response.
func URL(raw string) string {
	if parsed, err := url.Parse(raw); err == nil {
		parsed.RawQuery = ""
		parsed.Fragment = ""
		raw = parsed.String()
	}
	return truncate(raw, urlBudget)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
