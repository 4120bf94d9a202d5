package fingerprint

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/templateguard/simengine/pkg/models"
)

// tagLevels assigns a coarse DOM role to each HTML tag; levelBaseWeight gives
// the base weight for each role. Tags not listed default to LevelElement.
var tagLevels = map[string]models.StructuralLevel{
	"body": models.LevelPage,
	"main": models.LevelPage,

	"header":  models.LevelSection,
	"footer":  models.LevelSection,
	"nav":     models.LevelSection,
	"section": models.LevelSection,
	"article": models.LevelSection,
	"aside":   models.LevelSection,

	"div":    models.LevelComponent,
	"form":   models.LevelComponent,
	"ul":     models.LevelComponent,
	"ol":     models.LevelComponent,
	"table":  models.LevelComponent,
	"figure": models.LevelComponent,
}

var levelBaseWeight = map[models.StructuralLevel]float64{
	models.LevelPage:      10,
	models.LevelSection:   7,
	models.LevelComponent: 4,
	models.LevelElement:   1,
}

func levelFor(tag string) models.StructuralLevel {
	if l, ok := tagLevels[tag]; ok {
		return l
	}
	return models.LevelElement
}

// domNode is the tag-stack frame kept while streaming the tokenizer; it
// accumulates the tags of its direct element children in document order.
type domNode struct {
	tag      string
	depth    int
	children []string
}

// ExtractStructuralPatterns walks the document with x/net/html's streaming
// tokenizer and returns one
// StructuralPattern per distinct (parent tag, child signature) pair, along
// with every raw class attribute value encountered (for CSSClassShingles)
// and every inline/style-tag CSS text blob found.
//
// arityCap bounds how many children are folded into a single child
// signature; beyond the cap, patterns are unlikely to recur verbatim across
// documents anyway and folding keeps the signature space bounded.
func ExtractStructuralPatterns(r io.Reader, arityCap int, genericPatterns []string) (patterns []models.StructuralPattern, classAttrs []string, inlineCSS []string, err error) {
	z := html.NewTokenizer(r)
	var stack []*domNode
	counts := make(map[string]*models.StructuralPattern)

	var inStyleTag bool
	var styleBuf strings.Builder

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}
			return nil, nil, nil, z.Err()
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := tok.Data

			for _, a := range tok.Attr {
				if a.Key == "class" {
					classAttrs = append(classAttrs, a.Val)
				}
				if a.Key == "style" && a.Val != "" {
					inlineCSS = append(inlineCSS, inlineStyleAsRule(a.Val))
				}
			}

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, tag)
			}

			if tag == "style" {
				inStyleTag = true
				styleBuf.Reset()
			}

			if tt == html.StartTagToken {
				stack = append(stack, &domNode{tag: tag, depth: len(stack) + 1})
			}

		case html.TextToken:
			if inStyleTag {
				styleBuf.WriteString(z.Token().Data)
			}

		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "style" && inStyleTag {
				inStyleTag = false
				if styleBuf.Len() > 0 {
					inlineCSS = append(inlineCSS, styleBuf.String())
				}
			}
			if len(stack) == 0 {
				continue
			}
			node := stack[len(stack)-1]
			if node.tag != tok.Data {
				// Tolerate malformed/unbalanced markup: pop until we find
				// the matching open tag, or give up and leave the stack
				// alone if none exists.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].tag == tok.Data {
						node = stack[i]
						stack = stack[:i]
						recordPattern(counts, node, arityCap, genericPatterns)
						break
					}
				}
				continue
			}
			stack = stack[:len(stack)-1]
			recordPattern(counts, node, arityCap, genericPatterns)
		}
	}

	// Flush any still-open nodes (malformed/truncated documents).
	for i := len(stack) - 1; i >= 0; i-- {
		recordPattern(counts, stack[i], arityCap, genericPatterns)
	}

	patterns = make([]models.StructuralPattern, 0, len(counts))
	for _, p := range counts {
		patterns = append(patterns, *p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Weight*float64(patterns[i].Count) > patterns[j].Weight*float64(patterns[j].Count)
	})
	return patterns, classAttrs, inlineCSS, nil
}

func recordPattern(counts map[string]*models.StructuralPattern, node *domNode, arityCap int, genericPatterns []string) {
	if len(node.children) == 0 {
		return
	}
	children := node.children
	if len(children) > arityCap {
		children = children[:arityCap]
	}
	signature := strings.Join(children, ",")
	patternKey := node.tag + "[" + signature + "]"

	if IsGenericStructuralPattern(patternKey, genericPatterns) {
		return
	}

	level := levelFor(node.tag)
	weight := levelBaseWeight[level]
	if node.depth > 1 {
		weight = weight / float64(node.depth)
	}

	if existing, ok := counts[patternKey]; ok {
		existing.Count++
		return
	}
	counts[patternKey] = &models.StructuralPattern{
		ParentTag:      node.tag,
		ChildSignature: signature,
		Level:          level,
		Weight:         weight,
		Count:          1,
	}
}

func inlineStyleAsRule(styleAttr string) string {
	return "[style] { " + styleAttr + " }"
}
