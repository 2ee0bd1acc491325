package linkpreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soapbox-pub/ditto-sub000/cache/lru"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="Soapbox &amp; <b>friends</b>">
<meta name="description" content="A place to talk">
<meta property="og:image" content="/img/card.png">
<meta property="og:site_name" content="Soapbox">
</head><body><meta property="og:title" content="ignored"></body></html>`

func TestFirstURL(t *testing.T) {
	for _, tc := range []struct {
		content string
		url     string
	}{
		{"check https://soapbox.pub/blog/post, it's good", "https://soapbox.pub/blog/post"},
		{"(see http://example.com/a?b=c).", "http://example.com/a?b=c"},
		{"nothing here", ""},
		{"nostr:npub1xyz and https://a.com https://b.com", "https://a.com"},
	} {
		url, ok := FirstURL(tc.content)
		require.Equal(t, tc.url != "", ok, tc.content)
		require.Equal(t, tc.url, url)
	}
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/post", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New()
	f.Cache = lru.New[string, Preview](10, time.Hour)
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, Preview{
		URL:         srv.URL + "/old",
		Title:       "Soapbox & friends",
		Description: "A place to talk",
		Image:       srv.URL + "/img/card.png",
		SiteName:    "Soapbox",
		MimeType:    "text/html",
	}, p)

	require.NoError(t, f.Prewarm(ctx, srv.URL+"/old"))
	require.Equal(t, int32(1), hits.Load())

	p, err = f.Fetch(ctx, srv.URL+"/file")
	require.NoError(t, err)
	require.Equal(t, "image/png", p.MimeType)
	require.Empty(t, p.Title)

	_, err = f.Fetch(ctx, srv.URL+"/gone")
	require.Error(t, err)
}
