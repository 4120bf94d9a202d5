package fetch

import "testing"

func TestNormalizeURLStripsFragmentAndTrailingSlash(t *testing.T) {
	got, err := NormalizeURL("HTTPS://Example.com:443/foo/bar/#section")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/foo/bar"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeURLRootPathKeptAsSlash(t *testing.T) {
	got, err := NormalizeURL("http://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://example.com/" {
		t.Fatalf("got %q", got)
	}
}

func TestLabelForPathRoot(t *testing.T) {
	if got := LabelForPath("/"); got != "home" {
		t.Fatalf("got %q, want home", got)
	}
}

func TestLabelForPathNested(t *testing.T) {
	if got := LabelForPath("/blog/my-post"); got != "my-post" {
		t.Fatalf("got %q, want my-post", got)
	}
}

func TestExtractStylesheetLinksResolvesRelative(t *testing.T) {
	htmlBody := `<html><head><link rel="stylesheet" href="/css/site.css"></head></html>`
	links := extractStylesheetLinks(htmlBody, "https://example.com/about")
	if len(links) != 1 {
		t.Fatalf("expected 1 stylesheet link, got %d: %v", len(links), links)
	}
	if links[0] != "https://example.com/css/site.css" {
		t.Fatalf("unexpected resolved link: %s", links[0])
	}
}

func TestExtractAttrMissingAttribute(t *testing.T) {
	if got := extractAttr(`<link rel="stylesheet">`, "href"); got != "" {
		t.Fatalf("expected empty href, got %q", got)
	}
}
