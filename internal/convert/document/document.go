// Package document decodes PDF, DOCX, XLSX/XLS, and CSV payloads into
// Markdown. No document decoder exists in the teacher or pack, so the
// underlying libraries are named out-of-pack dependencies (see DESIGN.md);
// the DOCX path follows the spec's own "convert to HTML via a library,
// then run through the Markdown pipeline" instruction literally, reusing
// markdownx the same way an HTML payload would.
package document

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/markdownx"
	"github.com/readmd/gateway/internal/errkind"
)

const (
	pdfTimeout   = 30 * time.Second
	pdfMinChars  = 20
	maxRowsPerSheet = 1000
)

// Decode routes a DocumentPayload to the matching format decoder and
// returns ready-to-serve Markdown (the caller still runs it through the
// same post-processing as any other tier, per the orchestrator).
func Decode(ctx context.Context, payload *convert.Fetched) (string, error) {
	switch payload.DocFormat {
	case convert.DocPDF:
		return decodePDF(ctx, payload.DocBytes)
	case convert.DocDOCX:
		return decodeDOCX(payload.DocBytes)
	case convert.DocXLSX:
		return decodeSpreadsheet(payload.DocBytes)
	case convert.DocCSV:
		return decodeCSV(payload.DocBytes)
	default:
		return "", errkind.New(errkind.UnsupportedContentType, "unknown document format")
	}
}

func decodePDF(ctx context.Context, data []byte) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			done <- result{err: errkind.Wrap(errkind.DocumentConversionFailed, "open pdf failed", err)}
			return
		}

		var buf strings.Builder
		pageCount := reader.NumPage()
		for i := 1; i <= pageCount; i++ {
			page := reader.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			buf.WriteString(text)
			buf.WriteString("\n\n")
		}

		trimmed := strings.TrimSpace(buf.String())
		if len(trimmed) < pdfMinChars {
			done <- result{err: errkind.New(errkind.NotExtractable, "pdf has no extractable text")}
			return
		}
		md := fmt.Sprintf("**Pages:** %d\n\n---\n\n%s", pageCount, trimmed)
		done <- result{text: md}
	}()

	select {
	case <-ctx.Done():
		return "", errkind.New(errkind.Timeout, "pdf decode timed out")
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return r.text, nil
	case <-time.After(pdfTimeout):
		return "", errkind.New(errkind.Timeout, "pdf decode timed out")
	}
}

func decodeDOCX(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errkind.Wrap(errkind.DocumentConversionFailed, "open docx failed", err)
	}

	var html strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch el := item.(type) {
		case *docx.Paragraph:
			html.WriteString("<p>")
			for _, run := range el.Children {
				if r, ok := run.(*docx.Run); ok {
					text := r.Text()
					if r.RunProperty != nil && r.RunProperty.Bold != nil {
						text = "<strong>" + text + "</strong>"
					}
					if r.RunProperty != nil && r.RunProperty.Italic != nil {
						text = "<em>" + text + "</em>"
					}
					html.WriteString(text)
				}
			}
			html.WriteString("</p>\n")
		case *docx.Table:
			html.WriteString("<table>\n")
			for _, row := range el.TableRows {
				html.WriteString("<tr>")
				for _, cell := range row.TableCells {
					html.WriteString("<td>")
					for _, p := range cell.Paragraphs {
						html.WriteString(p.String())
					}
					html.WriteString("</td>")
				}
				html.WriteString("</tr>\n")
			}
			html.WriteString("</table>\n")
		}
	}

	return markdownx.FromHTML(html.String(), "")
}

func decodeSpreadsheet(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", errkind.Wrap(errkind.DocumentConversionFailed, "open spreadsheet failed", err)
	}
	defer f.Close()

	var out strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		out.WriteString("## " + sanitizeHeading(sheetName) + "\n\n")
		writeMarkdownTable(&out, rows)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func decodeCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", errkind.Wrap(errkind.DocumentConversionFailed, "parse csv failed", err)
	}
	var out strings.Builder
	writeMarkdownTable(&out, rows)
	return out.String(), nil
}

func writeMarkdownTable(out *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		out.WriteString("_(empty sheet)_\n")
		return
	}

	truncated := len(rows) > maxRowsPerSheet+1 // +1 header row
	if truncated {
		rows = rows[:maxRowsPerSheet+1]
	}

	header := rows[0]
	out.WriteString("| ")
	for _, c := range header {
		out.WriteString(sanitizeCell(c) + " | ")
	}
	out.WriteString("\n|")
	for range header {
		out.WriteString(" --- |")
	}
	out.WriteString("\n")

	for _, row := range rows[1:] {
		out.WriteString("| ")
		for _, c := range row {
			out.WriteString(sanitizeCell(c) + " | ")
		}
		out.WriteString("\n")
	}

	if truncated {
		out.WriteString("\n_(truncated at 1000 rows)_\n")
	}
}

func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = stripMarkdownLinks(s)
	return s
}

func stripMarkdownLinks(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '[' {
			end := strings.IndexByte(s[i:], ']')
			if end >= 0 && i+end+1 < len(s) && s[i+end+1] == '(' {
				closeParen := strings.IndexByte(s[i+end+1:], ')')
				if closeParen >= 0 {
					out.WriteString(s[i+1 : i+end])
					i = i + end + 1 + closeParen + 1
					continue
				}
			}
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

func sanitizeHeading(s string) string {
	s = strings.ReplaceAll(s, "|", "-")
	s = strings.ReplaceAll(s, "#", "")
	return strings.TrimSpace(s)
}
