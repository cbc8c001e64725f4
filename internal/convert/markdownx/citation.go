package markdownx

import (
	"strconv"
	"strings"
)

// Citations walks markdown with a bracket-matching parser, turning
// [text](url) links into "text [n]" with a shared References footer, while
// leaving images and anchor/mailto/tel/javascript/data links untouched.
func Citations(markdown string) string {
	var out strings.Builder
	urlIndex := map[string]int{}
	var refs []string

	i := 0
	for i < len(markdown) {
		if markdown[i] == '!' && i+1 < len(markdown) && markdown[i+1] == '[' {
			// Image: preserve verbatim.
			end := findLinkEnd(markdown, i+1)
			if end < 0 {
				out.WriteByte(markdown[i])
				i++
				continue
			}
			out.WriteString(markdown[i:end])
			i = end
			continue
		}
		if markdown[i] == '[' {
			end := findLinkEnd(markdown, i)
			if end < 0 {
				out.WriteByte(markdown[i])
				i++
				continue
			}
			text, linkURL, ok := parseLink(markdown[i:end])
			if !ok {
				out.WriteString(markdown[i:end])
				i = end
				continue
			}
			if isPreservedInline(linkURL) {
				out.WriteString(markdown[i:end])
				i = end
				continue
			}
			n, exists := urlIndex[linkURL]
			if !exists {
				refs = append(refs, linkURL)
				n = len(refs)
				urlIndex[linkURL] = n
			}
			out.WriteString(text)
			out.WriteString(" [")
			out.WriteString(strconv.Itoa(n))
			out.WriteString("]")
			i = end
			continue
		}
		out.WriteByte(markdown[i])
		i++
	}

	if len(refs) == 0 {
		return out.String()
	}

	out.WriteString("\n\nReferences:\n")
	for idx, u := range refs {
		out.WriteString("[")
		out.WriteString(strconv.Itoa(idx + 1))
		out.WriteString("]: ")
		out.WriteString(u)
		out.WriteString("\n")
	}
	return out.String()
}

// findLinkEnd finds the index just past a `[...](...)`  construct starting
// at start (which must be '['), honouring bracket-depth and backslash
// escapes, bounded to 2000 lookahead characters per the spec's bound.
func findLinkEnd(s string, start int) int {
	const maxLookahead = 2000
	limit := start + maxLookahead
	if limit > len(s) {
		limit = len(s)
	}

	depth := 0
	j := start
	for ; j < limit; j++ {
		if s[j] == '\\' {
			j++
			continue
		}
		if s[j] == '[' {
			depth++
		} else if s[j] == ']' {
			depth--
			if depth == 0 {
				break
			}
		}
	}
	if depth != 0 || j >= limit {
		return -1
	}
	// j at matching ']'; must be followed by '('.
	if j+1 >= len(s) || s[j+1] != '(' {
		return -1
	}
	closeParen := -1
	parenDepth := 0
	k := j + 1
	for ; k < limit && k < len(s); k++ {
		if s[k] == '\\' {
			k++
			continue
		}
		if s[k] == '(' {
			parenDepth++
		} else if s[k] == ')' {
			parenDepth--
			if parenDepth == 0 {
				closeParen = k
				break
			}
		}
	}
	if closeParen < 0 {
		return -1
	}
	return closeParen + 1
}

func parseLink(link string) (text, url string, ok bool) {
	if len(link) < 4 || link[0] != '[' {
		return "", "", false
	}
	closeBracket := strings.LastIndex(link, "](")
	if closeBracket < 0 {
		return "", "", false
	}
	if !strings.HasSuffix(link, ")") {
		return "", "", false
	}
	text = link[1:closeBracket]
	url = link[closeBracket+2 : len(link)-1]
	return text, url, true
}

func isPreservedInline(u string) bool {
	for _, prefix := range []string{"#", "mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}

