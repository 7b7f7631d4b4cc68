// Package modules enumerates the Python modules reachable from a list of
// search roots.
package modules

import (
	"fmt"
	"regexp"
	"strings"
)

// Descriptor is one discovered module. It lives for a single enumeration
// pass and is never persisted.
type Descriptor struct {
	// Name is the fully qualified dotted module name.
	Name string `json:"name"`

	// SourcePath is the module's .py file, or the package's __init__.py.
	// Empty when no source exists (extension modules, bytecode-only).
	SourcePath string `json:"sourcePath,omitempty"`

	// Origin is the directory entry the module was discovered from.
	Origin string `json:"origin"`

	// IsPackage is true for directories with an __init__ file.
	IsPackage bool `json:"isPackage"`
}

// HasSource reports whether the module can be read as text.
func (d Descriptor) HasSource() bool {
	return d.SourcePath != ""
}

// DefaultDenylist excludes GUI bindings whose import is slow or has side effects.
var DefaultDenylist = []string{"^PyQt5"}

// CompileDenylist joins patterns into one expression. An empty list
// returns nil, which denies nothing.
func CompileDenylist(patterns []string) (*regexp.Regexp, error) {
	var parts []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, "(?:"+p+")")
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return nil, fmt.Errorf("invalid denylist pattern: %w", err)
	}
	return re, nil
}

// Denied reports whether name matches the denylist. A nil denylist denies nothing.
func Denied(denylist *regexp.Regexp, name string) bool {
	return denylist != nil && denylist.MatchString(name)
}
