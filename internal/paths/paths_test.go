package paths

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCacheDir_XDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmp)

	dir, err := CacheDir()
	if err != nil {
		t.Fatalf("CacheDir failed: %v", err)
	}
	if want := filepath.Join(tmp, "iresolve"); dir != want {
		t.Errorf("CacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDir_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", home)

	dir, err := CacheDir()
	if err != nil {
		t.Fatalf("CacheDir failed: %v", err)
	}
	if want := filepath.Join(home, ".cache", "iresolve"); dir != want {
		t.Errorf("CacheDir() = %q, want %q", dir, want)
	}
}

func TestIndexFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmp)

	tests := []struct {
		name  string
		cache string
		want  string
	}{
		{"default", "", filepath.Join(tmp, "iresolve", IndexFileName)},
		{"directory", filepath.Join(tmp, "c"), filepath.Join(tmp, "c", IndexFileName)},
		{"json file", filepath.Join(tmp, "idx.json"), filepath.Join(tmp, "idx.json")},
		{"zstd file", filepath.Join(tmp, "idx.json.zst"), filepath.Join(tmp, "idx.json.zst")},
		{"sqlite file", filepath.Join(tmp, "idx.db"), filepath.Join(tmp, "idx.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IndexFile(tt.cache)
			if err != nil {
				t.Fatalf("IndexFile(%q) failed: %v", tt.cache, err)
			}
			if got != tt.want {
				t.Errorf("IndexFile(%q) = %q, want %q", tt.cache, got, tt.want)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandHome(~/x/y) = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("ExpandHome(~user/x) = %q", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ,", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := SplitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveAgainst(t *testing.T) {
	base := string(os.PathSeparator) + filepath.Join("proj", "sub")

	tests := []struct {
		in   string
		want string
	}{
		{"lib", filepath.Join(base, "lib")},
		{"../vendor", filepath.Join(string(os.PathSeparator)+"proj", "vendor")},
		{"/opt/site", "/opt/site"},
		{`\\server\share`, `\\server\share`},
	}
	for _, tt := range tests {
		if got := ResolveAgainst(base, tt.in); got != tt.want {
			t.Errorf("ResolveAgainst(%q, %q) = %q, want %q", base, tt.in, got, tt.want)
		}
	}
}
