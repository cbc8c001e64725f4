package escalate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareDocument_StripsJunkAndComments(t *testing.T) {
	in := `<html><body><script>evil()</script><!-- a comment --><nav>menu</nav><p>Real content</p></body></html>`
	out := PrepareDocument(in)
	assert.NotContains(t, out, "evil()")
	assert.NotContains(t, out, "a comment")
	assert.NotContains(t, out, "menu")
	assert.Contains(t, out, "Real content")
}

func TestPrepareDocument_TruncatesToCharLimit(t *testing.T) {
	big := make([]byte, maxDocumentChars+500)
	for i := range big {
		big[i] = 'a'
	}
	out := PrepareDocument(string(big))
	assert.LessOrEqual(t, len([]rune(out)), maxDocumentChars)
}

func TestAcceptContentOutput_RejectsShortAndMarkerAndInjection(t *testing.T) {
	assert.False(t, acceptContentOutput("short"))
	assert.False(t, acceptContentOutput(noContentMarker))
	assert.False(t, acceptContentOutput("I'm sorry, I cannot process this document at all for you today"))
	assert.True(t, acceptContentOutput("# A Real Article\n\nThis is a sufficiently long body of extracted markdown content."))
}

func TestValidateExtractionSchema_RejectsRef(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"$ref": "#/defs/x"},
		},
	}
	kw, ok := ValidateExtractionSchema(raw)
	assert.False(t, ok)
	assert.Equal(t, "$ref", kw)
}

func TestValidateExtractionSchema_AllowsPlainSchema(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "maxLength": 200},
		},
	}
	_, ok := ValidateExtractionSchema(raw)
	assert.True(t, ok)
}

func TestSanitizeProperties_DropsNonWhitelistedKeywords(t *testing.T) {
	schemaDoc := map[string]any{
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "pattern": "^[A-Z]"},
		},
	}
	SanitizeProperties(schemaDoc)
	props := schemaDoc["properties"].(map[string]any)
	title := props["title"].(map[string]any)
	assert.Equal(t, "string", title["type"])
	_, hasPattern := title["pattern"]
	assert.False(t, hasPattern)
}

func TestProviders_SkipsUnconfigured(t *testing.T) {
	providers := Providers(BaasConfig{})
	assert.Empty(t, providers)
}

func TestProviders_IncludesConfiguredOnly(t *testing.T) {
	providers := Providers(BaasConfig{
		Cloudflare: CloudflareConfig{AccountID: "acct", APIToken: "tok"},
	})
	assert.Len(t, providers, 1)
	assert.Equal(t, "cloudflare", providers[0].Name())
}
