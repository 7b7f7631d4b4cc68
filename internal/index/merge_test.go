package index

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

// randomIndex builds an index over a small alphabet so that random
// indexes overlap often.
func randomIndex(r *rand.Rand) *Index {
	idx := New()
	for i := 0; i < r.Intn(8); i++ {
		sym := fmt.Sprintf("sym%d", r.Intn(5))
		for j := 0; j < 1+r.Intn(3); j++ {
			idx.Add(sym, fmt.Sprintf("mod%d", r.Intn(6)))
		}
	}
	return idx
}

func assertDuplicateFree(t *testing.T, idx *Index) {
	t.Helper()
	idx.Range(func(symbol string, modules []string) bool {
		seen := make(map[string]bool)
		for _, m := range modules {
			if seen[m] {
				t.Errorf("symbol %q lists %q twice: %v", symbol, m, modules)
			}
			seen[m] = true
		}
		return true
	})
}

func TestMerge_Scenario(t *testing.T) {
	base := FromMap(map[string][]string{"Foo": {"pkgA"}, "bar": {"pkgB"}})
	incoming := FromMap(map[string][]string{"bar": {"pkgC", "pkgB"}, "baz": {"pkgD"}})

	got := Merge(base, incoming)

	if got != base {
		t.Error("Merge should return base")
	}
	if m := got.Modules("bar"); !reflect.DeepEqual(m, []string{"pkgB", "pkgC"}) {
		t.Errorf("bar = %v, want [pkgB pkgC]", m)
	}
	if m := got.Modules("baz"); !reflect.DeepEqual(m, []string{"pkgD"}) {
		t.Errorf("baz = %v, want [pkgD]", m)
	}
	if m := got.Modules("Foo"); !reflect.DeepEqual(m, []string{"pkgA"}) {
		t.Errorf("Foo = %v", m)
	}
}

func TestMerge_NilBase(t *testing.T) {
	incoming := FromMap(map[string][]string{"x": {"m"}})
	if got := Merge(nil, incoming); got != incoming {
		t.Error("Merge(nil, B) should return B")
	}
}

func TestMerge_NilIncoming(t *testing.T) {
	base := FromMap(map[string][]string{"x": {"m"}})
	want := base.Clone()
	if got := Merge(base, nil); !got.Equal(want) {
		t.Error("Merge(A, nil) should leave A unchanged")
	}
}

func TestMerge_DoesNotAliasIncoming(t *testing.T) {
	base := New()
	incoming := FromMap(map[string][]string{"x": {"m1"}})
	Merge(base, incoming)
	base.Add("x", "m2")

	if len(incoming.Modules("x")) != 1 {
		t.Error("growing base should not change incoming")
	}
}

func TestMerge_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		a, b, c := randomIndex(r), randomIndex(r), randomIndex(r)

		// Idempotence: merge(merge(A,B),B) == merge(A,B)
		once := Merge(a.Clone(), b)
		twice := Merge(Merge(a.Clone(), b), b)
		if !once.Equal(twice) {
			t.Fatalf("idempotence failed for A=%v B=%v", a.Symbols(), b.Symbols())
		}

		// Associativity: merge(merge(A,B),C) == merge(A,merge(B,C))
		left := Merge(Merge(a.Clone(), b), c)
		right := Merge(a.Clone(), Merge(b.Clone(), c))
		if !left.Equal(right) {
			t.Fatalf("associativity failed on iteration %d", i)
		}

		assertDuplicateFree(t, left)
		assertDuplicateFree(t, twice)
	}
}
