// Package fetch retrieves a page's rendered HTML and its stylesheets.
// Pages are fetched directly over HTTP. The package declares a
// BrowserRenderer interface for pages that need a rendering pass
// (client-side frameworks) but does not call one itself, and it never
// embeds a browser.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

// Page is everything the Fingerprinter needs from one fetched page.
type Page struct {
	URL         string
	Path        string
	HTML        string
	Stylesheets []string // bodies of linked .css files, one per source; inline <style> text stays in HTML
}

// BrowserRenderer is the injected collaborator for pages that need
// JavaScript execution before their DOM settles. The engine never
// implements this itself.
type BrowserRenderer interface {
	Render(ctx context.Context, pageURL string) (html string, err error)
}

// Client fetches static pages with bounded retry. Its timeout and retry
// settings are fixed by NewClient rather than read from internal/config,
// keeping fetch free of a dependency on the config package's YAML/viper
// concerns.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryWait  time.Duration
}

// NewClient builds a fetch client with sane per-request timeouts. Templates
// are fetched from arbitrary third-party hosts, so a generous but bounded
// timeout protects the fetcher from a single slow host stalling a whole
// backfill batch.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger:     logger,
		maxRetries: 2,
		retryWait:  500 * time.Millisecond,
	}
}

// FetchStatic retrieves pageURL's HTML directly, then follows any linked
// stylesheet <link> tags it contains and collects their bodies. Inline
// <style> blocks are left in the HTML and are not copied into Stylesheets.
//
// This does not execute JavaScript. Callers decide whether a URL needs
// BrowserRenderer instead based on signals outside this package's scope.
func (c *Client) FetchStatic(ctx context.Context, pageURL string) (Page, error) {
	htmlBody, err := c.getWithRetry(ctx, pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}

	stylesheetURLs := extractStylesheetLinks(htmlBody, pageURL)
	var sheets []string
	for _, sheetURL := range stylesheetURLs {
		body, err := c.getWithRetry(ctx, sheetURL)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("stylesheet fetch failed, continuing without it",
					zap.String("url", sheetURL), zap.Error(err))
			}
			continue
		}
		sheets = append(sheets, body)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("%w: invalid page url: %v", models.ErrFetchFailed, err)
	}

	return Page{
		URL:         pageURL,
		Path:        parsed.Path,
		HTML:        htmlBody,
		Stylesheets: sheets,
	}, nil
}

func (c *Client) getWithRetry(ctx context.Context, target string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryWait * time.Duration(attempt)):
			}
		}

		body, err := c.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", models.ErrFetchTimeout, ctx.Err())
		}
	}
	return "", lastErr
}

func (c *Client) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "simengine-fetcher/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MiB cap per resource
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractStylesheetLinks does a light scan for <link rel="stylesheet"
// href="..."> tags, resolving relative hrefs against the page URL. It
// intentionally does not use the streaming tokenizer from internal/fingerprint
// (that package's job is structural extraction, not link discovery) — this
// is a narrow, single-purpose scan kept local to the fetcher.
func extractStylesheetLinks(htmlBody, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	lower := strings.ToLower(htmlBody)
	idx := 0
	for {
		linkIdx := strings.Index(lower[idx:], "<link")
		if linkIdx == -1 {
			break
		}
		start := idx + linkIdx
		end := strings.Index(lower[start:], ">")
		if end == -1 {
			break
		}
		tag := htmlBody[start : start+end]
		lowerTag := strings.ToLower(tag)

		if strings.Contains(lowerTag, `rel="stylesheet"`) || strings.Contains(lowerTag, `rel='stylesheet'`) {
			if href := extractAttr(tag, "href"); href != "" {
				if resolved, err := base.Parse(href); err == nil {
					links = append(links, resolved.String())
				}
			}
		}
		idx = start + end + 1
	}
	return links
}

func extractAttr(tag, attr string) string {
	lower := strings.ToLower(tag)
	key := attr + "="
	idx := strings.Index(lower, key)
	if idx == -1 {
		return ""
	}
	rest := tag[idx+len(key):]
	if len(rest) == 0 {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(rest[1:], quote)
	if end == -1 {
		return ""
	}
	return rest[1 : 1+end]
}

// NormalizeURL canonicalizes a template or page URL so the same resource
// fetched via differing but equivalent URLs (trailing slash, default port,
// fragment) maps to one record.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimSuffix(u.Host, ":80")
	u.Host = strings.TrimSuffix(u.Host, ":443")
	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}

// LabelForPath derives the trailing path segment used as a human-readable
// page label, falling back to "home" for the root path.
func LabelForPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "home"
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}
