// Package fingerprint turns a fetched page's CSS and HTML into the shingle
// sets, MinHash sketches, LSH band hashes, CSS rule maps, depth-weighted
// structural patterns, and page-type label the rest of the engine compares.
package fingerprint

import (
	"regexp"
	"strings"

	"github.com/templateguard/simengine/pkg/models"
)

// ShingleSet is a deduplicated bag of string shingles. Order never matters;
// only set membership does.
type ShingleSet map[string]struct{}

// Add inserts s into the set.
func (ss ShingleSet) Add(s string) {
	ss[s] = struct{}{}
}

// Len reports the shingle cardinality used for confidence banding.
func (ss ShingleSet) Len() int {
	return len(ss)
}

var classSplitRe = regexp.MustCompile(`\s+`)

// CSSClassShingles extracts the set of distinct class tokens used across an
// HTML document. classAttrs is every class
// attribute value found on the page, in document order; duplicates collapse
// naturally since the result is a set.
func CSSClassShingles(classAttrs []string) ShingleSet {
	set := make(ShingleSet)
	for _, attr := range classAttrs {
		for _, class := range classSplitRe.Split(strings.TrimSpace(attr), -1) {
			if class == "" {
				continue
			}
			set.Add(class)
		}
	}
	return set
}

// CSSDeclarationShingles builds the normalized "property:value" shingle set
// from a parsed CSS rule map. Property and
// value are both lower-cased and whitespace-collapsed so that formatting
// differences between two otherwise identical stylesheets don't fragment
// the shingle space.
func CSSDeclarationShingles(rules models.RuleMap) ShingleSet {
	set := make(ShingleSet)
	for _, decls := range rules {
		for _, d := range decls {
			set.Add(normalizeDecl(d.Property) + ":" + normalizeDecl(d.Value))
		}
	}
	return set
}

func normalizeDecl(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CharacterKGramShingles slides a window of size k over text and collects
// every substring it produces. Text shorter than
// k produces a single shingle of the whole string so very small documents
// still yield a non-empty set.
func CharacterKGramShingles(text string, k int) ShingleSet {
	set := make(ShingleSet)
	runes := []rune(text)
	if len(runes) == 0 {
		return set
	}
	if len(runes) < k {
		set.Add(string(runes))
		return set
	}
	for i := 0; i+k <= len(runes); i++ {
		set.Add(string(runes[i : i+k]))
	}
	return set
}

// Union merges shingle sets without mutating any input, used to build the
// "combined" variant from CSS and HTML k-gram sets.
func Union(sets ...ShingleSet) ShingleSet {
	out := make(ShingleSet)
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}
