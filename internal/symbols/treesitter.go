//go:build cgo

package symbols

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParserExtractor reads module-level definitions from a tree-sitter parse.
// It catches decorated, async, and annotated forms the text patterns miss.
// Safe for concurrent use.
type ParserExtractor struct {
	parsers sync.Pool
}

// NewParserExtractor creates a tree-sitter backed extractor.
func NewParserExtractor() *ParserExtractor {
	return &ParserExtractor{
		parsers: sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(python.GetLanguage())
				return p
			},
		},
	}
}

// ParserAvailable reports whether tree-sitter is compiled in.
func ParserAvailable() bool {
	return true
}

// ExtractSource implements SourceExtractor.
func (e *ParserExtractor) ExtractSource(ctx context.Context, source []byte) []string {
	parser := e.parsers.Get().(*sitter.Parser)
	defer e.parsers.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		for _, name := range definedNames(root.NamedChild(i), source) {
			add(name)
		}
	}
	return names
}

// definedNames returns the names a module-level statement binds.
func definedNames(node *sitter.Node, source []byte) []string {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "function_definition", "class_definition":
		if name := node.ChildByFieldName("name"); name != nil {
			return []string{name.Content(source)}
		}
	case "decorated_definition":
		return definedNames(node.ChildByFieldName("definition"), source)
	case "expression_statement":
		var out []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child != nil && child.Type() == "assignment" {
				out = append(out, assignmentTargets(child, source)...)
			}
		}
		return out
	}
	return nil
}

// assignmentTargets handles `a = 1`, `a: int = 1`, and chained `a = b = 1`.
func assignmentTargets(node *sitter.Node, source []byte) []string {
	var out []string
	if left := node.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		out = append(out, left.Content(source))
	}
	if right := node.ChildByFieldName("right"); right != nil && right.Type() == "assignment" {
		out = append(out, assignmentTargets(right, source)...)
	}
	return out
}
