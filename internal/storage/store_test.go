package storage

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"iresolve/internal/errors"
	"iresolve/internal/index"
)

func sampleIndex() *index.Index {
	idx := index.New()
	idx.Add("zeta", "pkg.z")
	idx.Add("Widget", "ui.widgets")
	idx.Add("Widget", "tk.widgets")
	idx.Add("helper", "util")
	idx.AddAll("orphan", nil)
	idx.Add("größe", "units")
	return idx
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		location string
		want     Format
	}{
		{"/c/modules.json", FormatJSON},
		{"/c/modules.json.zst", FormatJSONZstd},
		{"/c/modules.zst", FormatJSONZstd},
		{"/c/modules.db", FormatSQLite},
		{"/c/modules.SQLITE", FormatSQLite},
		{"/c/modules", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatOf(tt.location); got != tt.want {
			t.Errorf("FormatOf(%q) = %s, want %s", tt.location, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"modules.json", "modules.json.zst", "modules.db"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "cache", name)

			store, err := Open(path, nil)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			want := sampleIndex()
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !got.Equal(want) {
				t.Error("round trip changed contents")
			}
			if !reflect.DeepEqual(got.Symbols(), want.Symbols()) {
				t.Errorf("symbol order = %v, want %v", got.Symbols(), want.Symbols())
			}
			if !got.Has("orphan") || len(got.Modules("orphan")) != 0 {
				t.Error("symbol with empty list should survive")
			}

			// Overwrite with a smaller index.
			smaller := index.FromMap(map[string][]string{"only": {"m"}})
			if err := store.Save(ctx, smaller); err != nil {
				t.Fatalf("second Save failed: %v", err)
			}
			got, err = store.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(smaller) {
				t.Errorf("after overwrite got %v", got.Symbols())
			}

			if _, err := os.Stat(index.LockPath(path)); !os.IsNotExist(err) {
				t.Error("lock file should be released after Save")
			}
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	for _, name := range []string{"modules.json", "modules.json.zst", "modules.db"} {
		store, _ := Open(filepath.Join(t.TempDir(), name), nil)
		_, err := store.Load(context.Background())
		if !stderrors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
		if !errors.HasCode(err, errors.IndexMissing) {
			t.Errorf("%s: err = %v, want INDEX_MISSING", name, err)
		}
	}
}

func TestLoad_EmptyIsNotMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := Open(filepath.Join(t.TempDir(), "modules.json"), nil)
	if err := store.Save(ctx, index.New()); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("empty index should load: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Len = %d", got.Len())
	}
}

func TestLoad_Corrupt(t *testing.T) {
	for _, name := range []string{"modules.json", "modules.json.zst"} {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(`{"a": [`), 0644); err != nil {
			t.Fatal(err)
		}
		store, _ := Open(path, nil)
		_, err := store.Load(context.Background())
		if !errors.HasCode(err, errors.IndexCorrupt) {
			t.Errorf("%s: err = %v, want INDEX_CORRUPT", name, err)
		}
		if stderrors.Is(err, ErrNotFound) {
			t.Errorf("%s: corrupt index should not be reported as missing", name)
		}
	}
}

func TestSave_Locked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.json")
	lock, err := index.AcquireLock(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	store, _ := Open(path, nil)
	err = store.Save(context.Background(), sampleIndex())
	if !errors.HasCode(err, errors.IndexLocked) {
		t.Errorf("err = %v, want INDEX_LOCKED", err)
	}
	if Exists(path) {
		t.Error("locked Save should not write the index")
	}
}

func TestJSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.json")
	store, _ := Open(path, nil)
	idx := index.New()
	idx.Add("bar", "pkgB")
	idx.Add("bar", "pkgC")
	idx.Add("Foo", "pkgA")
	if err := store.Save(context.Background(), idx); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"bar":["pkgB","pkgC"],"Foo":["pkgA"]}`; string(data) != want {
		t.Errorf("file = %s, want %s", data, want)
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(filepath.Join(dir, "modules.json.zst"), nil)
	if err := store.Save(context.Background(), sampleIndex()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only the index", names)
	}
}
