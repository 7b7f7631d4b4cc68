package modules

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// sourceSuffixes and extensionSuffixes are the file suffixes the
// interpreter can import. Extension modules may carry an ABI tag between
// the name and the suffix (foo.cpython-312-x86_64-linux-gnu.so).
var (
	sourceSuffixes    = []string{".py", ".pyc"}
	extensionSuffixes = []string{".so", ".pyd"}
)

// Enumerator walks search roots and yields every module it can find.
type Enumerator struct {
	// Roots are walked in order. Earlier roots shadow later ones for
	// top-level names, as they do at import time.
	Roots []string

	// Denylist names are skipped without touching the filesystem, and
	// their packages are not descended into.
	Denylist *regexp.Regexp

	Logger *slog.Logger
}

// NewEnumerator creates an enumerator over roots.
func NewEnumerator(roots []string, denylist *regexp.Regexp, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enumerator{Roots: roots, Denylist: denylist, Logger: logger}
}

// Enumerate returns a lazy sequence of modules. Each root is walked once,
// depth first: a package is yielded before its children. The walk stops
// as soon as the consumer stops ranging or ctx is done. Unreadable roots,
// archives, and unreadable packages are skipped.
func (e *Enumerator) Enumerate(ctx context.Context) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		topLevel := make(map[string]struct{})
		for _, root := range e.Roots {
			if root == "" {
				continue
			}
			if !e.walk(ctx, root, "", topLevel, yield) {
				return
			}
		}
	}
}

// walk yields the modules in dir. It returns false once the consumer has
// stopped or ctx is done.
func (e *Enumerator) walk(ctx context.Context, dir, prefix string, topLevel map[string]struct{}, yield func(Descriptor) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.Logger.Debug("skipping search root", "dir", dir, "error", err)
		return true
	}

	local := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}

		name, isDir, ok := candidateName(dir, entry)
		if !ok {
			continue
		}
		if _, dup := local[name]; dup {
			continue
		}
		if prefix == "" {
			if _, dup := topLevel[name]; dup {
				continue
			}
		}

		full := prefix + name
		denied := Denied(e.Denylist, full)
		origin := filepath.Join(dir, entry.Name())

		// A directory without __init__ is not a module and leaves the
		// name free for a later file or root.
		var init string
		if isDir && !denied {
			if init, ok = findInit(origin); !ok {
				continue
			}
		}

		local[name] = struct{}{}
		if prefix == "" {
			topLevel[name] = struct{}{}
		}
		if denied {
			e.Logger.Debug("skipping denylisted module", "module", full)
			continue
		}

		if isDir {
			d := Descriptor{Name: full, Origin: origin, IsPackage: true}
			if strings.HasSuffix(init, ".py") {
				d.SourcePath = init
			}
			if !yield(d) {
				return false
			}
			if !e.walk(ctx, origin, full+".", nil, yield) {
				return false
			}
			continue
		}

		d := Descriptor{Name: full, Origin: origin}
		if src := filepath.Join(dir, name+".py"); isFile(src) {
			d.SourcePath = src
		}
		if !yield(d) {
			return false
		}
	}
	return true
}

// candidateName returns the module name an entry would import as. Dotted
// directory names and dotted module names are not importable.
func candidateName(dir string, entry fs.DirEntry) (name string, isDir bool, ok bool) {
	fileName := entry.Name()

	isDir = entry.IsDir()
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(filepath.Join(dir, fileName))
		if err != nil {
			return "", false, false
		}
		isDir = info.IsDir()
	}

	if isDir {
		if strings.Contains(fileName, ".") || fileName == "__pycache__" {
			return "", false, false
		}
		return fileName, true, true
	}

	name = moduleName(fileName)
	if name == "" || name == "__init__" || strings.Contains(name, ".") {
		return "", false, false
	}
	return name, false, true
}

// moduleName strips an importable suffix, returning "" for other files.
func moduleName(fileName string) string {
	for _, s := range sourceSuffixes {
		if strings.HasSuffix(fileName, s) {
			return strings.TrimSuffix(fileName, s)
		}
	}
	for _, s := range extensionSuffixes {
		if strings.HasSuffix(fileName, s) {
			base, _, _ := strings.Cut(fileName, ".")
			return base
		}
	}
	return ""
}

// findInit returns the package's __init__ file, preferring source.
func findInit(pkgDir string) (string, bool) {
	if p := filepath.Join(pkgDir, "__init__.py"); isFile(p) {
		return p, true
	}
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if moduleName(entry.Name()) == "__init__" {
			return filepath.Join(pkgDir, entry.Name()), true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
