// Package youtube implements the transcript fast path: video-id
// extraction, an Android-client Innertube player request, host-whitelisted
// timed-text fetch, and Markdown emission. Grounded directly on
// other_examples' anatolykoptev-go_job YouTube Innertube client — same
// endpoint constant, request shape, and timed-text struct layout — adapted
// from its WEB client variant to the Android client this path uses.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	androidClientName  = "ANDROID"
	androidVersion     = "20.10.38"
	androidUserAgent   = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"

	requestTimeout = 15 * time.Second
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// ExtractVideoID returns the 11-character video id if rawURL matches one of
// the recognised YouTube URL shapes.
func ExtractVideoID(rawURL string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

type innertubeRequest struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type innertubePlayerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails *struct {
		Title string `json:"title"`
	} `json:"videoDetails"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// ToMarkdown fetches the transcript for videoURL and renders it as
// Markdown. Any failure returns ("", false) rather than an error, so the
// orchestrator can fall through to the generic HTML tiers.
func ToMarkdown(ctx context.Context, videoURL string) (markdown string, ok bool) {
	videoID, found := ExtractVideoID(videoURL)
	if !found {
		return "", false
	}

	player, err := fetchPlayerResponse(ctx, videoID)
	if err != nil || player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		return "", false
	}

	track := pickTrack(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks)
	if track == nil {
		return "", false
	}

	segments, err := fetchTimedText(ctx, track.BaseURL)
	if err != nil || len(segments) == 0 {
		return "", false
	}

	title := oEmbedTitle(ctx, videoURL)
	if title == "" && player.VideoDetails != nil {
		title = player.VideoDetails.Title
	}

	var out strings.Builder
	out.WriteString("# " + title + "\n\n")
	out.WriteString("**Video:** " + videoURL + "\n\n")
	out.WriteString("## Transcript\n\n")
	for _, seg := range segments {
		out.WriteString(formatTimestamp(seg.startMs) + " " + seg.text + "\n")
	}

	return strings.TrimSpace(out.String()), true
}

func fetchPlayerResponse(ctx context.Context, videoID string) (*innertubePlayerResponse, error) {
	reqBody := innertubeRequest{
		VideoID: videoID,
		Context: innertubeCtx{Client: innertubeClient{
			ClientName:        androidClientName,
			ClientVersion:     androidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, innertubePlayerURL+"?prettyPrint=false", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUserAgent)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", androidVersion)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("innertube player HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
	if err != nil {
		return nil, err
	}

	var player innertubePlayerResponse
	if err := json.Unmarshal(body, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func pickTrack(tracks []captionTrack) *captionTrack {
	for i := range tracks {
		if tracks[i].LanguageCode == "en" {
			return &tracks[i]
		}
	}
	if len(tracks) > 0 {
		return &tracks[0]
	}
	return nil
}

type segment struct {
	startMs int64
	text    string
}

// timedTextModern matches YouTube's modern <p t=… d=…> caption format.
type timedTextModern struct {
	XMLName xml.Name   `xml:"timedtext"`
	Body    modernBody `xml:"body"`
}

type modernBody struct {
	Paragraphs []modernParagraph `xml:"p"`
}

type modernParagraph struct {
	T    int64  `xml:"t,attr"`
	Text string `xml:",chardata"`
}

// timedTextLegacy matches the legacy <text start=… dur=…> format.
type timedTextLegacy struct {
	XMLName xml.Name     `xml:"transcript"`
	Lines   []legacyLine `xml:"text"`
}

type legacyLine struct {
	Start float64 `xml:"start,attr"`
	Text  string  `xml:",chardata"`
}

var timedTextAllowedHosts = map[string]bool{
	"www.youtube.com": true,
	"youtube.com":     true,
}

func fetchTimedText(ctx context.Context, rawURL string) ([]segment, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !timedTextAllowedHosts[u.Hostname()] {
		return nil, fmt.Errorf("timed-text host not whitelisted")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
	if err != nil {
		return nil, err
	}

	var modern timedTextModern
	if err := xml.Unmarshal(body, &modern); err == nil && len(modern.Body.Paragraphs) > 0 {
		segs := make([]segment, 0, len(modern.Body.Paragraphs))
		for _, p := range modern.Body.Paragraphs {
			text := strings.TrimSpace(html.UnescapeString(p.Text))
			if text == "" {
				continue
			}
			segs = append(segs, segment{startMs: p.T, text: text})
		}
		if len(segs) > 0 {
			return segs, nil
		}
	}

	var legacy timedTextLegacy
	if err := xml.Unmarshal(body, &legacy); err == nil && len(legacy.Lines) > 0 {
		segs := make([]segment, 0, len(legacy.Lines))
		for _, l := range legacy.Lines {
			text := strings.TrimSpace(html.UnescapeString(l.Text))
			if text == "" {
				continue
			}
			segs = append(segs, segment{startMs: int64(l.Start * 1000), text: text})
		}
		return segs, nil
	}

	return nil, fmt.Errorf("no timed-text segments parsed")
}

func formatTimestamp(ms int64) string {
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("[%d:%02d:%02d]", hours, minutes, seconds)
	}
	return fmt.Sprintf("[%d:%02d]", minutes, seconds)
}

type oEmbedResponse struct {
	Title string `json:"title"`
}

func oEmbedTitle(ctx context.Context, videoURL string) string {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := "https://www.youtube.com/oembed?url=" + videoURL + "&format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return ""
	}
	var out oEmbedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	return out.Title
}
