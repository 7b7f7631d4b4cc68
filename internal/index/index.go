// Package index holds the symbol index, its builder, and the metadata and
// locking that surround a persisted index.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Index maps a symbol name to the modules that define it.
//
// Symbols keep insertion order, and each module list keeps
// first-discovered-first order with no repeats. The zero value is not
// usable; call New.
type Index struct {
	order   []string
	modules map[string][]string
	seen    map[string]map[string]struct{}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		modules: make(map[string][]string),
		seen:    make(map[string]map[string]struct{}),
	}
}

// FromMap builds an index from a plain map. Symbols are taken in sorted
// order since map iteration has none; module lists keep their order and
// drop repeats.
func FromMap(m map[string][]string) *Index {
	idx := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		idx.AddAll(k, m[k])
	}
	return idx
}

// Add records that module defines symbol. It reports whether the pair was new.
func (idx *Index) Add(symbol, module string) bool {
	set, ok := idx.seen[symbol]
	if !ok {
		set = make(map[string]struct{})
		idx.seen[symbol] = set
		idx.order = append(idx.order, symbol)
	}
	if _, dup := set[module]; dup {
		return false
	}
	set[module] = struct{}{}
	idx.modules[symbol] = append(idx.modules[symbol], module)
	return true
}

// AddAll adds each module for symbol in order. A symbol with an empty
// list is still recorded.
func (idx *Index) AddAll(symbol string, modules []string) {
	if _, ok := idx.seen[symbol]; !ok {
		idx.seen[symbol] = make(map[string]struct{})
		idx.order = append(idx.order, symbol)
	}
	for _, m := range modules {
		idx.Add(symbol, m)
	}
}

// Modules returns the candidate modules for symbol. The slice is shared;
// callers that keep or modify it must copy.
func (idx *Index) Modules(symbol string) []string {
	if idx == nil {
		return nil
	}
	return idx.modules[symbol]
}

// Has reports whether symbol has at least one module.
func (idx *Index) Has(symbol string) bool {
	return len(idx.Modules(symbol)) > 0
}

// Symbols returns symbols in insertion order.
func (idx *Index) Symbols() []string {
	if idx == nil {
		return nil
	}
	return slices.Clone(idx.order)
}

// Len returns the number of symbols.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

// ModuleCount returns the number of distinct modules across all symbols.
func (idx *Index) ModuleCount() int {
	if idx == nil {
		return 0
	}
	distinct := make(map[string]struct{})
	for _, mods := range idx.modules {
		for _, m := range mods {
			distinct[m] = struct{}{}
		}
	}
	return len(distinct)
}

// Clone returns a deep copy.
func (idx *Index) Clone() *Index {
	out := New()
	if idx == nil {
		return out
	}
	for _, s := range idx.order {
		out.AddAll(s, idx.modules[s])
	}
	return out
}

// Equal reports whether both indexes hold the same symbols with the same
// module lists in the same order. Symbol order is not compared.
func (idx *Index) Equal(other *Index) bool {
	if idx.Len() != other.Len() {
		return false
	}
	for _, s := range idx.Symbols() {
		if _, ok := other.seen[s]; !ok {
			return false
		}
		if !slices.Equal(idx.modules[s], other.modules[s]) {
			return false
		}
	}
	return true
}

// Range calls fn for each symbol in insertion order until fn returns false.
func (idx *Index) Range(fn func(symbol string, modules []string) bool) {
	if idx == nil {
		return
	}
	for _, s := range idx.order {
		if !fn(s, idx.modules[s]) {
			return
		}
	}
}

// MarshalJSON writes the flat {"symbol": ["module", ...]} document with
// symbols in insertion order.
func (idx *Index) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range idx.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		mods := idx.modules[s]
		if mods == nil {
			mods = []string{}
		}
		val, err := json.Marshal(mods)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat document, keeping the order of keys as
// they appear in the input.
func (idx *Index) UnmarshalJSON(data []byte) error {
	*idx = *New()

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("index: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		symbol, ok := tok.(string)
		if !ok {
			return fmt.Errorf("index: expected symbol name, got %v", tok)
		}
		var modules []string
		if err := dec.Decode(&modules); err != nil {
			return fmt.Errorf("index: symbol %q: %w", symbol, err)
		}
		idx.AddAll(symbol, modules)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
