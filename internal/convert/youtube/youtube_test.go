package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID_RecognisedShapes(t *testing.T) {
	cases := []struct {
		url     string
		wantID  string
		wantOk  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/not-youtube", "", false},
	}
	for _, c := range cases {
		id, ok := ExtractVideoID(c.url)
		assert.Equal(t, c.wantOk, ok, c.url)
		assert.Equal(t, c.wantID, id, c.url)
	}
}

func TestPickTrack_PrefersEnglish(t *testing.T) {
	tracks := []captionTrack{
		{LanguageCode: "fr", BaseURL: "fr-url"},
		{LanguageCode: "en", BaseURL: "en-url"},
	}
	track := pickTrack(tracks)
	assert.NotNil(t, track)
	assert.Equal(t, "en-url", track.BaseURL)
}

func TestPickTrack_FallsBackToFirst(t *testing.T) {
	tracks := []captionTrack{
		{LanguageCode: "fr", BaseURL: "fr-url"},
		{LanguageCode: "de", BaseURL: "de-url"},
	}
	track := pickTrack(tracks)
	assert.NotNil(t, track)
	assert.Equal(t, "fr-url", track.BaseURL)
}

func TestPickTrack_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, pickTrack(nil))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "[0:05]", formatTimestamp(5000))
	assert.Equal(t, "[1:05]", formatTimestamp(65000))
	assert.Equal(t, "[1:00:00]", formatTimestamp(3600000))
}

func TestFetchTimedText_RejectsNonYouTubeHost(t *testing.T) {
	_, err := fetchTimedText(t.Context(), "https://evil.example.com/timedtext")
	assert.Error(t, err)
}
