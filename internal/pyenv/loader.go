package pyenv

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AttributeLoader is satisfied by Interpreter.
type AttributeLoader interface {
	Attributes(ctx context.Context, module string) ([]string, error)
}

type loadResult struct {
	names []string
	err   error
}

// CachedLoader memoizes Attributes results, failures included, so a
// module is imported at most once per process.
type CachedLoader struct {
	loader AttributeLoader
	cache  *lru.Cache[string, loadResult]
}

// NewCachedLoader wraps loader with an LRU of the given size.
func NewCachedLoader(loader AttributeLoader, size int) (*CachedLoader, error) {
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, loadResult](size)
	if err != nil {
		return nil, err
	}
	return &CachedLoader{loader: loader, cache: cache}, nil
}

// Attributes implements AttributeLoader. Context errors are not cached.
func (c *CachedLoader) Attributes(ctx context.Context, module string) ([]string, error) {
	if r, ok := c.cache.Get(module); ok {
		return r.names, r.err
	}
	names, err := c.loader.Attributes(ctx, module)
	if ctx.Err() != nil {
		return names, err
	}
	c.cache.Add(module, loadResult{names: names, err: err})
	return names, err
}

// Len returns the number of memoized modules.
func (c *CachedLoader) Len() int {
	return c.cache.Len()
}
