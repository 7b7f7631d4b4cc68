package index

// Merge folds incoming into base and returns base.
//
// Each incoming symbol's modules are appended to base's list when absent;
// symbols new to base take incoming's whole list. A nil base returns
// incoming unchanged. Merging the same incoming twice has no further effect.
func Merge(base, incoming *Index) *Index {
	if base == nil {
		return incoming
	}
	incoming.Range(func(symbol string, modules []string) bool {
		base.AddAll(symbol, modules)
		return true
	})
	return base
}
