// Package symbols extracts the top-level names a Python module defines.
package symbols

import (
	"context"
	"regexp"
	"strings"
)

// SourceExtractor turns module source text into the names it defines at
// top level. Implementations never fail; unparseable input yields what
// could be found.
type SourceExtractor interface {
	ExtractSource(ctx context.Context, source []byte) []string
}

// Extractor kinds accepted by NewSourceExtractor.
const (
	KindText   = "text"
	KindParser = "parser"
)

// word matches Python identifier characters, including non-ASCII letters.
const word = `[\p{L}\p{M}\p{N}_]+`

var (
	defPattern    = regexp.MustCompile(`(?m)^def (` + word + `)`)
	classPattern  = regexp.MustCompile(`(?m)^class (` + word + `)`)
	assignPattern = regexp.MustCompile(`(?m)^(` + word + `) =`)
)

// TextExtractor finds definitions with three line-anchored patterns:
// functions, classes, and simple assignments, in that order.
//
// It misses indented or decorated-only forms and tuple targets, and it
// reports names that appear inside multi-line strings.
type TextExtractor struct{}

// ExtractSource implements SourceExtractor.
func (TextExtractor) ExtractSource(_ context.Context, source []byte) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, re := range []*regexp.Regexp{defPattern, classPattern, assignPattern} {
		for _, m := range re.FindAllSubmatch(source, -1) {
			name := string(m[1])
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// NewSourceExtractor returns the extractor for kind. The parser extractor
// falls back to text when tree-sitter is not compiled in.
func NewSourceExtractor(kind string) SourceExtractor {
	if strings.EqualFold(kind, KindParser) && ParserAvailable() {
		return NewParserExtractor()
	}
	return TextExtractor{}
}

// KindOf names the extractor actually in use.
func KindOf(e SourceExtractor) string {
	switch e.(type) {
	case *ParserExtractor:
		return KindParser
	default:
		return KindText
	}
}
