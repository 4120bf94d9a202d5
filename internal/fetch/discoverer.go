package fetch

import "context"

// PageDiscoverer enumerates the page URLs belonging to a template site.
// Crawling and sitemap discovery are outside this engine's scope — callers supply a PageDiscoverer implementation and the
// Fetcher only consumes whatever URLs it returns.
type PageDiscoverer interface {
	Discover(ctx context.Context, templateURL string) ([]string, error)
}
