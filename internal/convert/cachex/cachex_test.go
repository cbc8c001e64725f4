package cachex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_StripsTrackingParamsAndSortsRest(t *testing.T) {
	in := "https://example.com/a?utm_source=x&b=2&fbclid=abc&a=1#frag"
	out := NormalizeURL(in)
	assert.NotContains(t, out, "utm_source")
	assert.NotContains(t, out, "fbclid")
	assert.NotContains(t, out, "#frag")
	assert.Contains(t, out, "a=1")
	assert.Contains(t, out, "b=2")
}

func TestConversionKey_Deterministic(t *testing.T) {
	k1 := ConversionKey("https://example.com/?utm_source=x&a=1", "links=inline")
	k2 := ConversionKey("https://example.com/?a=1&utm_source=y", "links=inline")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, len("cache:")+32)
}

func TestExtractKey_DiffersBySchema(t *testing.T) {
	k1 := ExtractKey("https://example.com", `{"type":"object"}`)
	k2 := ExtractKey("https://example.com", `{"type":"array"}`)
	assert.NotEqual(t, k1, k2)
}

func TestTTLForTier(t *testing.T) {
	assert.Equal(t, 3600, TTLForTier("youtube"))
	assert.Equal(t, 7200, TTLForTier("document:pdf"))
	assert.Equal(t, 600, TTLForTier("browser"))
	assert.Equal(t, 300, TTLForTier("feed"))
	assert.Equal(t, 300, TTLForTier("llm"))
}

func TestCache_SecondaryServesWhenPrimaryNil(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), time.Minute)

	data, source := c.Get(ctx, "k1")
	assert.Equal(t, SourceSecondary, source)
	assert.Equal(t, []byte("v1"), data)
}

func TestCache_MissReturnsEmptySource(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	_, source := c.Get(context.Background(), "missing")
	assert.Equal(t, SourceMiss, source)
}

func TestCache_JSONRoundTrip(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	type payload struct {
		Title string `json:"title"`
	}
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "k", payload{Title: "hello"}, time.Minute))

	var out payload
	source, ok := c.GetJSON(ctx, "k", &out)
	assert.True(t, ok)
	assert.Equal(t, SourceSecondary, source)
	assert.Equal(t, "hello", out.Title)
}
