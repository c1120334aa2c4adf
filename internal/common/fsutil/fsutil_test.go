package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if p, err := ExpandHome("~"); err != nil || p != home {
		t.Fatalf("expected %q, got %q err=%v", home, p, err)
	}
	exp, err := ExpandHome("~/hub")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if filepath.Base(exp) != "hub" || filepath.Dir(exp) != home {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestSubdirsWithPrefix(t *testing.T) {
	home := setHome(t)
	cache := filepath.Join(home, "cache")
	for _, d := range []string{"models--org--a", "models--org--b", "datasets--x"} {
		if err := os.MkdirAll(filepath.Join(cache, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(cache, "models--file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := SubdirsWithPrefix("~/cache", "models--")
	if err != nil {
		t.Fatalf("SubdirsWithPrefix: %v", err)
	}
	if len(got) != 2 || !got["models--org--a"] || !got["models--org--b"] {
		t.Fatalf("unexpected entries: %v", got)
	}

	missing, err := SubdirsWithPrefix(filepath.Join(home, "nope"), "models--")
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing dir: %v err=%v", missing, err)
	}
	if !PathExists(cache) || PathExists(filepath.Join(home, "nope")) {
		t.Fatalf("PathExists mismatch")
	}
}
