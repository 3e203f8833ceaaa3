// Package render fetches a URL and exposes it as a queryable document.
// The Renderer interface keeps browser/network mechanics out of the scanner
// and extractor so they can run against static fixture documents.
package render

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/newswire/internal/resilience"
)

// Renderer fetches the rendered DOM of a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (*goquery.Document, error)
}

// Options tunes the HTTP renderer.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	RequestsPerSec float64
}

// HTTPRenderer implements Renderer over net/http with a polite rate limit
// toward the source site.
type HTTPRenderer struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewHTTPRenderer creates an HTTPRenderer with the given options.
func NewHTTPRenderer(opts Options) *HTTPRenderer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; NewswireBot/1.0)"
	}

	return &HTTPRenderer{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Render fetches targetURL and parses it into a goquery document. Network
// failures, timeouts, and retryable status codes come back wrapped as
// transient so the orchestrator's retry decorator can act on them.
func (r *HTTPRenderer) Render(ctx context.Context, targetURL string) (*goquery.Document, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "render: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "render: create request")
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "render: fetch"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		err := eris.Errorf("render: status %d for %s", resp.StatusCode, targetURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "render: parse document")
	}
	return doc, nil
}
