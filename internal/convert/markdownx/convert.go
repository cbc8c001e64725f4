// Package markdownx is the DOM-to-Markdown pipeline: conversion rules,
// pre/post-processing passes, URL resolution, the citation transform,
// prune-to-fit, token counting, and the quality scorer. Built on
// github.com/JohannesKaufmann/html-to-markdown/v2 (the same converter the
// teacher's webx.extractReadable uses), customised via the converter's
// Register.RendererFor hooks for <div>-as-block spacing, <svg> dropping,
// fenced code blocks with a dynamic-length backtick fence, and noisy-image
// dropping. golang.org/x/net/html supplies the low-level node walks the
// pre-conversion spacing pass and the custom renderers both need.
package markdownx

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
)

var cardSiblingClassRe = regexp.MustCompile(`(?i)topic|card|item|post|entry|video|product|result|listing`)

var conv = newConverter()

func newConverter() *converter.Converter {
	c := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	c.Register.RendererFor("svg", converter.TagTypeRemove, dropNode, converter.PriorityStandard)
	c.Register.RendererFor("div", converter.TagTypeBlock, renderDivBlock, converter.PriorityStandard)
	c.Register.RendererFor("pre", converter.TagTypeBlock, renderFencedCode, converter.PriorityStandard)
	c.Register.RendererFor("img", converter.TagTypeInline, renderImage, converter.PriorityStandard)

	return c
}

// dropNode renders nothing and recurses into nothing, removing the node and
// its entire subtree (<svg> icon sprites, inline decoration) from output.
func dropNode(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	return converter.RenderSuccess
}

// renderDivBlock forces block spacing around a <div>'s children, rather
// than letting it fall through as an anonymous inline run.
func renderDivBlock(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	w.WriteString("\n\n")
	ctx.RenderChildNodes(ctx, w, n)
	w.WriteString("\n\n")
	return converter.RenderSuccess
}

var codeNoiseClassRe = regexp.MustCompile(`(?i)line-?number|gutter|copy-?(button|code)|toolbar`)

// renderFencedCode emits a fenced code block for <pre>[<code class="language-x">],
// detecting the language from the code element's class and sizing the
// fence's backtick run longer than any backtick run already present in the
// code text. Nested <button>/gutter/line-number/copy-button elements (code
// block chrome, not code) are excluded from the collected text.
func renderFencedCode(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	codeNode := findCodeChild(n)
	lang := ""
	var buf strings.Builder
	if codeNode != nil {
		lang = languageFromClass(attrOf(codeNode, "class"))
		collectCodeText(codeNode, &buf)
	} else {
		collectCodeText(n, &buf)
	}

	content := strings.TrimRight(buf.String(), "\n")
	fence := fenceFor(content)

	w.WriteString("\n\n")
	w.WriteString(fence)
	w.WriteString(lang)
	w.WriteString("\n")
	w.WriteString(content)
	w.WriteString("\n")
	w.WriteString(fence)
	w.WriteString("\n\n")
	return converter.RenderSuccess
}

func findCodeChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			return c
		}
	}
	return nil
}

func languageFromClass(class string) string {
	for _, tok := range strings.Fields(class) {
		switch {
		case strings.HasPrefix(tok, "language-"):
			return strings.TrimPrefix(tok, "language-")
		case strings.HasPrefix(tok, "lang-"):
			return strings.TrimPrefix(tok, "lang-")
		}
	}
	return ""
}

func collectCodeText(n *html.Node, buf *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if c.Data == "button" || codeNoiseClassRe.MatchString(attrOf(c, "class")) {
				continue
			}
			collectCodeText(c, buf)
			continue
		}
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
	}
}

var backtickRunRe = regexp.MustCompile("`+")

// fenceFor returns a backtick fence at least 3 long, and long enough to
// not be closed early by any backtick run already present in content.
func fenceFor(content string) string {
	longest := 3
	for _, run := range backtickRunRe.FindAllString(content, -1) {
		if len(run) >= longest {
			longest = len(run) + 1
		}
	}
	return strings.Repeat("`", longest)
}

var imageNoiseRe = regexp.MustCompile(`(?i)avatar|gravatar|spinner|loading|placeholder|tracking-pixel|1x1|badge|icon-|sprite`)

const noisyImageMaxDimension = 24

// renderImage drops images whose alt/src/class matches a known noise
// pattern, or whose explicit width and height are both tiny (tracking
// pixels, spacer gifs, UI chrome icons), deferring everything else to the
// commonmark plugin's default image rendering.
func renderImage(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
	if isNoisyImage(n) {
		return converter.RenderSuccess
	}
	return converter.RenderTryNext
}

func isNoisyImage(n *html.Node) bool {
	if imageNoiseRe.MatchString(attrOf(n, "alt")) ||
		imageNoiseRe.MatchString(attrOf(n, "src")) ||
		imageNoiseRe.MatchString(attrOf(n, "class")) {
		return true
	}
	if w, h, ok := dimensionsOf(n); ok && w <= noisyImageMaxDimension && h <= noisyImageMaxDimension {
		return true
	}
	return false
}

func dimensionsOf(n *html.Node) (int, int, bool) {
	w, wok := parseIntAttr(n, "width")
	h, hok := parseIntAttr(n, "height")
	if wok && hok {
		return w, h, true
	}
	return 0, 0, false
}

func parseIntAttr(n *html.Node, key string) (int, bool) {
	v := strings.TrimSuffix(attrOf(n, key), "px")
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// FromHTML converts contentHTML to Markdown, applying the pre-conversion
// spacing pass first and the post-conversion cleanup + URL resolution
// after. baseURL (may be empty) resolves relative links.
func FromHTML(contentHTML, baseURL string) (string, error) {
	prepared := preConvert(contentHTML)

	var opts []converter.ConvertOptionFunc
	if baseURL != "" {
		opts = append(opts, converter.WithDomain(baseURL))
	}
	out, err := conv.ConvertString(prepared, opts...)
	if err != nil {
		// html-to-markdown can fail on malformed fragments; fall back to a
		// plain-text rendering rather than losing the content entirely.
		out = plainTextFallback(prepared)
	}

	out = postConvert(out)
	if baseURL != "" {
		out = resolveRelativeURLs(out, baseURL)
	}
	return out, nil
}

// preConvert runs the spacing pass: inject a space between adjacent
// inline-like siblings that would otherwise visually run together, and an
// <hr> between repeating sibling "cards".
func preConvert(contentHTML string) string {
	doc, err := html.Parse(strings.NewReader(wrapFragment(contentHTML)))
	if err != nil {
		return contentHTML
	}

	body := findBody(doc)
	if body == nil {
		return contentHTML
	}

	injectSpacing(body)
	insertCardSeparators(body)

	var buf strings.Builder
	_ = html.Render(&buf, body)
	return buf.String()
}

func wrapFragment(inner string) string {
	return "<html><body>" + inner + "</body></html>"
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

var inlineTags = map[string]bool{
	"a": true, "span": true, "b": true, "i": true, "em": true, "strong": true, "code": true,
}

func injectSpacing(n *html.Node) {
	var prevInline *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.CommentNode {
			continue
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		if c.Type == html.ElementNode && inlineTags[c.Data] {
			if prevInline != nil {
				space := &html.Node{Type: html.TextNode, Data: " "}
				n.InsertBefore(space, c)
			}
			prevInline = c
		} else {
			prevInline = nil
		}
		if c.Type == html.ElementNode {
			injectSpacing(c)
		}
	}
}

// insertCardSeparators inserts <hr> between ≥2 sibling elements sharing a
// class matching cardSiblingClassRe.
func insertCardSeparators(n *html.Node) {
	groups := map[string][]*html.Node{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		class := attrOf(c, "class")
		if class == "" || !cardSiblingClassRe.MatchString(class) {
			continue
		}
		groups[class] = append(groups[class], c)
	}
	for _, nodes := range groups {
		if len(nodes) < 2 {
			continue
		}
		for _, node := range nodes[1:] {
			hr := &html.Node{Type: html.ElementNode, Data: "hr", DataAtom: 0}
			n.InsertBefore(hr, node)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			insertCardSeparators(c)
		}
	}
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func plainTextFallback(contentHTML string) string {
	doc, err := html.Parse(strings.NewReader(wrapFragment(contentHTML)))
	if err != nil {
		return contentHTML
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String()
}

func resolveRelativeURLs(markdown, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return markdown
	}
	return linkURLRe.ReplaceAllStringFunc(markdown, func(match string) string {
		parts := linkURLRe.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		text, ref := parts[1], parts[2]
		if shouldSkipResolve(ref) {
			return match
		}
		resolved, err := baseURL.Parse(ref)
		if err != nil {
			return match
		}
		return "[" + text + "](" + resolved.String() + ")"
	})
}

var linkURLRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

func shouldSkipResolve(ref string) bool {
	for _, prefix := range []string{"data:", "#", "mailto:", "tel:", "javascript:", "http://", "https://"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}
