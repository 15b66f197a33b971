package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

// Some government sites reject requests that do not look like a browser.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml"
	DefaultAcceptLanguage = "fr-FR,fr;q=0.9"
	DefaultMaxBodyBytes   = 5 * 1024 * 1024
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int64
	// HostRate limits requests per second to a single host. Zero disables it.
	HostRate rate.Limit
}

// HTTPFetcher implements PageFetcher with one attempt per call.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Accept == "" {
		opts.Accept = DefaultAccept
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.HostRate <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = rate.NewLimiter(f.opts.HostRate, 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

// Fetch downloads rawURL and returns its plain text.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "fetch: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", f.opts.Accept)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := decodeBody(io.LimitReader(resp.Body, f.opts.MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", eris.Wrapf(err, "fetch: decode %s", rawURL)
	}

	text := Text(body)
	zap.L().Debug("fetch: page retrieved",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("text_len", len(text)),
	)
	return text, nil
}

// decodeBody reads r and converts it to UTF-8 using the Content-Type charset.
func decodeBody(r io.Reader, contentType string) (string, error) {
	if cs := charsetOf(contentType); cs != "" && !strings.EqualFold(cs, "utf-8") {
		enc, err := htmlindex.Get(cs)
		if err != nil {
			return "", eris.Wrapf(err, "unsupported charset %q", cs)
		}
		r = enc.NewDecoder().Reader(r)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "read body")
	}
	return string(b), nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
