//go:build !cgo

package symbols

import "context"

// ParserExtractor is unavailable without cgo.
type ParserExtractor struct{}

// NewParserExtractor returns nil when cgo is not available.
func NewParserExtractor() *ParserExtractor {
	return nil
}

// ParserAvailable reports whether tree-sitter is compiled in.
func ParserAvailable() bool {
	return false
}

// ExtractSource returns nothing when cgo is not available.
func (e *ParserExtractor) ExtractSource(context.Context, []byte) []string {
	return nil
}
