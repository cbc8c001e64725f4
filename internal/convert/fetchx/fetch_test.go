package fetchx

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmd/gateway/internal/convert"
	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/errkind"
)

// testURL uses a reserved .test host so the URL guard neither blocks it by
// syntax nor finds a private address for it; newTestFetcher dials every
// request to the loopback httptest server, which the guard itself would
// block as a private address.
const testURL = "http://upstream.test/"

func newTestFetcher(srv *httptest.Server) *Fetcher {
	f := New(guard.New())
	addr := srv.Listener.Addr().String()
	f.client.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	return f
}

func TestFetch_HTMLRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	fetched, err := f.Fetch(t.Context(), testURL)
	require.NoError(t, err)
	assert.Equal(t, convert.PayloadHTML, fetched.Kind)
	assert.Contains(t, string(fetched.HTML), "hi")
}

func TestFetch_UnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	_, err := f.Fetch(t.Context(), testURL)
	require.Error(t, err)
	assert.Equal(t, errkind.UnsupportedContentType, errkind.Of(err))
}

func TestFetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	_, err := f.Fetch(t.Context(), testURL)
	require.Error(t, err)
	assert.Equal(t, errkind.UpstreamHttp, errkind.Of(err))
}

func TestFetch_TooManyRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	_, err := f.Fetch(t.Context(), testURL)
	require.Error(t, err)
	assert.Equal(t, errkind.TooManyRedirects, errkind.Of(err))
}

func TestFetch_FeedMimeRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?><rss></rss>`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	fetched, err := f.Fetch(t.Context(), testURL)
	require.NoError(t, err)
	assert.Equal(t, convert.PayloadFeed, fetched.Kind)
}
