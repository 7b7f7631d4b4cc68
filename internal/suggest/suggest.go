// Package suggest matches unresolved identifiers against the symbol index.
package suggest

import (
	"encoding/json"
	"fmt"
	"slices"

	"iresolve/internal/index"
)

// Position is one occurrence of an identifier. Line is 1-based, Col is
// 0-based. It encodes as a two-element array, [line, col].
type Position struct {
	Line int
	Col  int
}

// MarshalJSON implements json.Marshaler.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Line, p.Col})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("position must be [line, col], got %d values", len(pair))
	}
	p.Line, p.Col = pair[0], pair[1]
	return nil
}

// MarshalYAML encodes as a flow sequence-friendly pair.
func (p Position) MarshalYAML() (any, error) {
	return []int{p.Line, p.Col}, nil
}

// Report maps each unresolved identifier to where it occurs.
type Report map[string][]Position

// Identifiers returns the report's names, sorted.
func (r Report) Identifiers() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Suggestion lists where an identifier can be imported from and where it
// is used.
type Suggestion struct {
	Paths  []string   `json:"paths" yaml:"paths"`
	Lineno []Position `json:"lineno" yaml:"lineno"`
}

// Result holds a suggestion for every identifier the index knows.
type Result map[string]Suggestion

// Identifiers returns the result's names, sorted.
func (r Result) Identifiers() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type options struct {
	sortPaths bool
}

// Option adjusts matching.
type Option func(*options)

// WithSortedPaths orders each candidate list lexicographically instead of
// by discovery.
func WithSortedPaths() Option {
	return func(o *options) { o.sortPaths = true }
}

// Match looks up each unresolved identifier by exact, case-sensitive name.
// Identifiers the index does not know, or knows with no modules, are left
// out. Neither input is modified.
func Match(idx *index.Index, report Report, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	result := make(Result)
	for name, positions := range report {
		modules := idx.Modules(name)
		if len(modules) == 0 {
			continue
		}
		paths := slices.Clone(modules)
		if o.sortPaths {
			slices.Sort(paths)
		}
		lineno := slices.Clone(positions)
		if lineno == nil {
			lineno = []Position{}
		}
		result[name] = Suggestion{Paths: paths, Lineno: lineno}
	}
	return result
}
