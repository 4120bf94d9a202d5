package fingerprint

import (
	"strings"

	"github.com/gorilla/css/scanner"

	"github.com/templateguard/simengine/pkg/models"
)

// ParseCSSRules tokenizes a stylesheet with gorilla/css's scanner and groups
// declarations by selector. At-rule bodies
// (@media, @supports, @font-face, @keyframes...) are parsed for their
// nested rules but the at-rule's own prelude is not treated as a selector,
// since it names a condition rather than a document element.
//
// This is a rule-level parser, not a full CSS grammar: it is tolerant of
// malformed input (mismatched braces stop the current rule rather than
// aborting the whole document) because scraped stylesheets are not
// guaranteed to be well-formed.
func ParseCSSRules(css string) models.RuleMap {
	s := scanner.New(css)
	rules := make(models.RuleMap)

	var selectorBuf strings.Builder
	depth := 0

	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}

		switch tok.Type {
		case scanner.TokenAtKeyword:
			// Skip the at-rule's prelude up to its opening brace or
			// terminating semicolon; only rules nested inside (e.g. the
			// individual rules inside @media) are collected.
			skipAtRulePrelude(s)
			selectorBuf.Reset()
			continue
		case scanner.TokenChar:
			switch tok.Value {
			case "{":
				depth++
				selector := strings.TrimSpace(selectorBuf.String())
				selectorBuf.Reset()
				if selector != "" {
					decls := parseDeclarationBlock(s)
					for _, sel := range splitSelectorList(selector) {
						rules[sel] = append(rules[sel], decls...)
					}
				} else {
					// Declaration block with no selector captured (e.g.
					// inside an at-rule prelude we didn't fully skip);
					// consume it so brace tracking stays correct.
					parseDeclarationBlock(s)
				}
				depth--
				continue
			case "}":
				continue
			}
		}

		switch tok.Type {
		case scanner.TokenS:
			selectorBuf.WriteString(" ")
		case scanner.TokenComment:
		default:
			selectorBuf.WriteString(tok.Value)
		}
	}

	return rules
}

// parseDeclarationBlock consumes tokens up to and including the matching
// closing brace, collecting property:value declarations along the way.
func parseDeclarationBlock(s *scanner.Scanner) []models.CSSDeclaration {
	var decls []models.CSSDeclaration
	var property strings.Builder
	var value strings.Builder
	inValue := false
	depth := 1

	flush := func() {
		p := strings.TrimSpace(property.String())
		v := strings.TrimSpace(value.String())
		if p != "" && v != "" {
			decls = append(decls, models.CSSDeclaration{Property: p, Value: v})
		}
		property.Reset()
		value.Reset()
		inValue = false
	}

	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		if tok.Type == scanner.TokenChar {
			switch tok.Value {
			case "{":
				depth++
				continue
			case "}":
				depth--
				if depth == 0 {
					flush()
					return decls
				}
				continue
			case ":":
				if !inValue {
					inValue = true
					continue
				}
			case ";":
				flush()
				continue
			}
		}
		if tok.Type == scanner.TokenS || tok.Type == scanner.TokenComment {
			continue
		}
		if inValue {
			value.WriteString(tok.Value)
		} else {
			property.WriteString(tok.Value)
		}
	}
	flush()
	return decls
}

// skipAtRulePrelude advances past an @-rule's header. If the prelude opens a
// block ("{"), the block is left for the caller's main loop to descend into
// so nested rules (as in @media) are still collected; if it ends in ";" the
// whole at-rule (e.g. @import) is discarded.
func skipAtRulePrelude(s *scanner.Scanner) {
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			return
		}
		if tok.Type == scanner.TokenChar {
			switch tok.Value {
			case "{":
				return
			case ";":
				return
			}
		}
	}
}

func splitSelectorList(selector string) []string {
	parts := strings.Split(selector, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
