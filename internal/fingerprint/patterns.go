package fingerprint

import "strings"

// Framework/Reset/Generic-Pattern Filtering
//
// Template scrapers generate HTML and CSS on top of shared foundations:
// utility-first frameworks (Tailwind, Bootstrap), builder-platform runtime
// classes (Webflow's w-/is-/has- prefixes), and CSS resets. Two unrelated
// templates built on the same foundation will share a baseline of classes,
// selectors, and DOM shapes that has nothing to do with copying. Comparing
// sketches that include this baseline inflates every similarity score by a
// roughly constant amount, burying the signal that actually indicates
// copying.
//
// This file filters that baseline out using a versioned table (see
// internal/config.PatternTable) instead of literals compiled into source,
// so operators can update the deny-lists without a redeploy.

// IsFrameworkClass reports whether class begins with one of the known
// utility/framework prefixes and should be excluded from class shingling.
func IsFrameworkClass(class string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}

// IsResetSelector reports whether selector is a universal/element reset
// selector that carries near-zero distinguishing signal.
func IsResetSelector(selector string, resetSelectors []string) bool {
	trimmed := strings.TrimSpace(selector)
	for _, r := range resetSelectors {
		if trimmed == r {
			return true
		}
	}
	return false
}

// IsGenericStructuralPattern reports whether a (parent, child-signature)
// pattern string (e.g. "div[div,div]") is common enough across arbitrary
// HTML that matching it contributes no evidence of copying.
func IsGenericStructuralPattern(pattern string, genericPatterns []string) bool {
	for _, g := range genericPatterns {
		if pattern == g {
			return true
		}
	}
	return false
}

// FilterFrameworkClasses removes framework-prefixed classes from a raw class
// attribute list before CSSClassShingles builds its shingle set.
func FilterFrameworkClasses(classAttrs []string, prefixes []string) []string {
	out := make([]string, 0, len(classAttrs))
	for _, attr := range classAttrs {
		var kept []string
		for _, class := range classSplitRe.Split(strings.TrimSpace(attr), -1) {
			if class == "" || IsFrameworkClass(class, prefixes) {
				continue
			}
			kept = append(kept, class)
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, " "))
		}
	}
	return out
}
