package fingerprint

import (
	"strings"
	"testing"
)

const sampleHTML = `
<html>
<body>
<header class="w-header hero-banner">
  <nav class="w-nav"><a class="w-nav-link">Home</a><a class="w-nav-link">About</a></nav>
</header>
<main>
  <section class="hero">
    <h1>Welcome</h1>
    <p style="color: red;">Intro text</p>
  </section>
</main>
<style>
.hero { color: blue; font-size: 2rem; }
</style>
</body>
</html>
`

func TestExtractStructuralPatternsCollectsClassesAndCSS(t *testing.T) {
	patterns, classAttrs, inlineCSS, err := ExtractStructuralPatterns(strings.NewReader(sampleHTML), 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) == 0 {
		t.Fatal("expected at least one structural pattern")
	}
	if len(classAttrs) == 0 {
		t.Fatal("expected class attributes to be collected")
	}
	if len(inlineCSS) < 2 {
		t.Fatalf("expected inline style attr and <style> block both collected, got %d blobs", len(inlineCSS))
	}

	foundNav := false
	for _, p := range patterns {
		if p.ParentTag == "nav" {
			foundNav = true
		}
	}
	if !foundNav {
		t.Error("expected a structural pattern rooted at <nav>")
	}
}

func TestExtractStructuralPatternsFiltersGenericPattern(t *testing.T) {
	html := `<div><div>a</div><div>b</div></div>`
	generic := []string{"div[div,div]"}

	patterns, _, _, err := ExtractStructuralPatterns(strings.NewReader(html), 10, generic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range patterns {
		if p.ParentTag == "div" && p.ChildSignature == "div,div" {
			t.Fatal("generic pattern should have been filtered")
		}
	}
}
