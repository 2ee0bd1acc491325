// Package linkpreview fetches the OpenGraph card of links found in notes so the first reader
// does not have to wait for it.
package linkpreview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/liamg/magic"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/soapbox-pub/ditto-sub000/cache"
	cache_memory "github.com/soapbox-pub/ditto-sub000/cache/memory"
	"github.com/valyala/fasthttp"
	"golang.org/x/net/html"
)

const maxRedirects = 3

var urlRegex = regexp.MustCompile(`https?://[^\s<>"']+`)

type Preview struct {
	URL         string
	Title       string
	Description string
	Image       string
	SiteName    string
	MimeType    string
}

type Fetcher struct {
	Client  *fasthttp.Client
	Cache   cache.Cache[string, Preview]
	TTL     time.Duration
	Timeout time.Duration
	Logger  *zerolog.Logger

	sanitizer *bluemonday.Policy
}

func New() *Fetcher {
	nop := zerolog.Nop()
	return &Fetcher{
		Client: &fasthttp.Client{
			Name:                "ditto-linkpreview",
			MaxResponseBodySize: 2 << 20,
			ReadTimeout:         10 * time.Second,
		},
		Cache:   cache_memory.New[string, Preview](5000),
		TTL:     12 * time.Hour,
		Timeout: 5 * time.Second,
		Logger:  &nop,
	}
}

// FirstURL returns the first http(s) link in a text, without trailing punctuation.
func FirstURL(content string) (string, bool) {
	match := urlRegex.FindString(content)
	if match == "" {
		return "", false
	}
	match = strings.TrimRight(match, ".,;:!?)]}")
	u, err := url.Parse(match)
	if err != nil || u.Host == "" {
		return "", false
	}
	return match, true
}

// Prewarm fetches the preview of a link so it is cached.
func (f *Fetcher) Prewarm(ctx context.Context, link string) error {
	_, err := f.Fetch(ctx, link)
	return err
}

func (f *Fetcher) Fetch(ctx context.Context, link string) (Preview, error) {
	if f.Cache != nil {
		if p, ok := f.Cache.Get(link); ok {
			return p, nil
		}
	}

	deadline := time.Now().Add(f.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	contentType, body, err := f.get(link, deadline)
	if err != nil {
		return Preview{}, err
	}

	p := f.parse(link, contentType, body)
	if f.Cache != nil {
		f.Cache.SetWithTTL(link, p, f.TTL)
	}
	return p, nil
}

func (f *Fetcher) get(link string, deadline time.Time) (string, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	current := link
	for range maxRedirects + 1 {
		req.Reset()
		resp.Reset()
		req.SetRequestURI(current)
		req.Header.Set("Accept", "text/html,*/*;q=0.8")

		if err := f.Client.DoDeadline(req, resp, deadline); err != nil {
			return "", nil, fmt.Errorf("failed to fetch %s: %w", current, err)
		}

		switch code := resp.StatusCode(); {
		case code >= 300 && code < 400:
			location := string(resp.Header.Peek("Location"))
			base, _ := url.Parse(current)
			next, err := base.Parse(location)
			if location == "" || err != nil {
				return "", nil, fmt.Errorf("bad redirect from %s", current)
			}
			current = next.String()
			continue
		case code != fasthttp.StatusOK:
			return "", nil, fmt.Errorf("got status %d from %s", code, current)
		}

		return string(resp.Header.ContentType()), append([]byte(nil), resp.Body()...), nil
	}

	return "", nil, errors.New("too many redirects")
}

func (f *Fetcher) parse(link string, contentType string, body []byte) Preview {
	p := Preview{URL: link}

	mimeType, _, _ := mime.ParseMediaType(contentType)
	if mimeType == "" {
		if ft, _ := magic.Lookup(body); ft != nil {
			mimeType, _, _ = mime.ParseMediaType(mime.TypeByExtension("." + ft.Extension))
		}
	}
	p.MimeType = mimeType
	if mimeType != "" && mimeType != "text/html" {
		return p
	}

	meta := readHead(body)
	p.Title = f.clean(first(meta["og:title"], meta["twitter:title"], meta["title"]))
	p.Description = f.clean(first(meta["og:description"], meta["twitter:description"], meta["description"]))
	p.SiteName = f.clean(meta["og:site_name"])
	if image := first(meta["og:image"], meta["twitter:image"]); image != "" {
		if base, err := url.Parse(link); err == nil {
			if abs, err := base.Parse(image); err == nil {
				p.Image = abs.String()
			}
		}
	}
	if p.MimeType == "" {
		p.MimeType = "text/html"
	}
	return p
}

func (f *Fetcher) clean(s string) string {
	if f.sanitizer == nil {
		f.sanitizer = bluemonday.StrictPolicy()
	}
	return strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(s)))
}

// readHead collects <meta> properties and the <title> until the body starts.
func readHead(body []byte) map[string]string {
	meta := make(map[string]string)
	z := html.NewTokenizer(bytes.NewReader(body))

	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				return meta
			case "title":
				inTitle = true
			case "meta":
				var key, content string
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					switch string(k) {
					case "property", "name":
						key = strings.ToLower(string(v))
					case "content":
						content = string(v)
					}
				}
				if key != "" && content != "" {
					if _, exists := meta[key]; !exists {
						meta[key] = content
					}
				}
			}
		case html.TextToken:
			if inTitle {
				if _, exists := meta["title"]; !exists {
					meta["title"] = string(z.Text())
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "title":
				inTitle = false
			case "head":
				return meta
			}
		}
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
