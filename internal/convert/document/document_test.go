package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCSV(t *testing.T) {
	csv := "name,age\nAda,36\n\"Pipe|Name\",40\n"
	md, err := decodeCSV([]byte(csv))
	assert.NoError(t, err)
	assert.Contains(t, md, "name")
	assert.Contains(t, md, "Pipe\\|Name")
}

func TestStripMarkdownLinks(t *testing.T) {
	assert.Equal(t, "see docs", stripMarkdownLinks("see [docs](https://example.com/docs)"))
	assert.Equal(t, "plain text", stripMarkdownLinks("plain text"))
}

func TestSanitizeCell(t *testing.T) {
	assert.Equal(t, "a\\|b", sanitizeCell("a|b"))
	assert.Equal(t, "bold", sanitizeCell("<b>bold</b>"))
}

func TestWriteMarkdownTable_Truncates(t *testing.T) {
	rows := make([][]string, maxRowsPerSheet+5)
	rows[0] = []string{"col"}
	for i := 1; i < len(rows); i++ {
		rows[i] = []string{"v"}
	}
	var out strings.Builder
	writeMarkdownTable(&out, rows)
	assert.Contains(t, out.String(), "truncated at 1000 rows")
}
