package index

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAdd_DuplicateFree(t *testing.T) {
	idx := New()

	if !idx.Add("Widget", "ui.widgets") {
		t.Error("first Add should report new")
	}
	if idx.Add("Widget", "ui.widgets") {
		t.Error("repeated Add should report duplicate")
	}
	idx.Add("Widget", "tk.widgets")
	idx.Add("helper", "util")

	if got := idx.Modules("Widget"); !reflect.DeepEqual(got, []string{"ui.widgets", "tk.widgets"}) {
		t.Errorf("Modules(Widget) = %v", got)
	}
	if got := idx.Symbols(); !reflect.DeepEqual(got, []string{"Widget", "helper"}) {
		t.Errorf("Symbols() = %v", got)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
	if idx.ModuleCount() != 3 {
		t.Errorf("ModuleCount() = %d, want 3", idx.ModuleCount())
	}
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	if idx.Len() != 0 || idx.Modules("x") != nil || idx.Symbols() != nil || idx.Has("x") {
		t.Error("nil index should behave as empty")
	}
	if idx.Clone().Len() != 0 {
		t.Error("Clone of nil should be empty")
	}
}

func TestFromMap(t *testing.T) {
	idx := FromMap(map[string][]string{
		"bar": {"pkgB", "pkgC", "pkgB"},
		"Foo": {"pkgA"},
	})

	if got := idx.Symbols(); !reflect.DeepEqual(got, []string{"Foo", "bar"}) {
		t.Errorf("Symbols() = %v", got)
	}
	if got := idx.Modules("bar"); !reflect.DeepEqual(got, []string{"pkgB", "pkgC"}) {
		t.Errorf("Modules(bar) = %v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	idx := FromMap(map[string][]string{"a": {"m1"}})
	c := idx.Clone()
	c.Add("a", "m2")

	if len(idx.Modules("a")) != 1 {
		t.Error("modifying the clone changed the original")
	}
}

func TestEqual(t *testing.T) {
	a := FromMap(map[string][]string{"x": {"m1", "m2"}})
	b := FromMap(map[string][]string{"x": {"m1", "m2"}})
	c := FromMap(map[string][]string{"x": {"m2", "m1"}})

	if !a.Equal(b) {
		t.Error("identical indexes should be equal")
	}
	if a.Equal(c) {
		t.Error("module order is significant")
	}
	if a.Equal(New()) {
		t.Error("different sizes should not be equal")
	}
}

func TestJSON_PreservesOrder(t *testing.T) {
	idx := New()
	idx.Add("zeta", "pkg.z")
	idx.Add("alpha", "pkg.b")
	idx.Add("alpha", "pkg.a")
	idx.AddAll("empty", nil)

	data, err := json.Marshal(idx)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"zeta":["pkg.z"],"alpha":["pkg.b","pkg.a"],"empty":[]}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var back Index
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Equal(idx) {
		t.Error("round trip changed contents")
	}
	if !reflect.DeepEqual(back.Symbols(), idx.Symbols()) {
		t.Errorf("round trip symbol order = %v, want %v", back.Symbols(), idx.Symbols())
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []string{
		`[]`,
		`{"a": "not-a-list"}`,
		`{"a": [1, 2]}`,
		`{"a": ["m"]`,
	}
	for _, in := range tests {
		var idx Index
		if err := json.Unmarshal([]byte(in), &idx); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

func TestUnmarshal_DropsRepeatedModules(t *testing.T) {
	var idx Index
	if err := json.Unmarshal([]byte(`{"a":["m","n","m"]}`), &idx); err != nil {
		t.Fatal(err)
	}
	if got := idx.Modules("a"); !reflect.DeepEqual(got, []string{"m", "n"}) {
		t.Errorf("Modules(a) = %v", got)
	}
}
