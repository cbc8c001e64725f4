// Package feed parses RSS/Atom/JSON-Feed payloads into a fixed Markdown
// structure, using github.com/mmcdole/gofeed the same way the pack's
// ingestion code (dovidio-colino, hoanghai1803-apricot) does.
package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/readmd/gateway/internal/convert/markdownx"
	"github.com/readmd/gateway/internal/errkind"
)

// ToMarkdown parses xml (RSS/Atom/JSON-Feed, gofeed auto-detects) and
// renders the spec's fixed per-feed/per-item Markdown layout.
func ToMarkdown(xml []byte, sourceURL string) (title, markdown string, err error) {
	parser := gofeed.NewParser()
	f, err := parser.Parse(bytes.NewReader(xml))
	if err != nil {
		return "", "", errkind.Wrap(errkind.ParseError, "parse feed failed", err)
	}

	var out strings.Builder
	out.WriteString("# " + f.Title + "\n\n")
	if f.Description != "" {
		out.WriteString("> " + strings.ReplaceAll(f.Description, "\n", "\n> ") + "\n\n")
	}
	if f.Link != "" {
		out.WriteString("Source: " + f.Link + "\n\n")
	}
	out.WriteString(fmt.Sprintf("%d items\n\n---\n\n", len(f.Items)))

	for _, item := range f.Items {
		out.WriteString("## " + item.Title + "\n\n")

		meta := []string{}
		if item.PublishedParsed != nil {
			meta = append(meta, item.PublishedParsed.UTC().Format(time.RFC3339))
		} else if item.Published != "" {
			meta = append(meta, item.Published)
		}
		if author := authorName(item); author != "" {
			meta = append(meta, author)
		}
		if len(meta) > 0 {
			out.WriteString(strings.Join(meta, " · ") + "\n\n")
		}

		content := contentOf(item)
		if content != "" {
			body, _ := markdownx.FromHTML(content, sourceURL)
			out.WriteString(body + "\n\n")
		}

		if item.Link != "" {
			out.WriteString("[Read more](" + item.Link + ")\n\n")
		}
		out.WriteString("---\n\n")
	}

	return f.Title, strings.TrimSpace(out.String()), nil
}

func contentOf(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Description != "" {
		return item.Description
	}
	return ""
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return ""
}
