package pattern

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestBanks(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if names, err := ListBanks(); err != nil || len(names) != 0 {
		t.Fatalf("empty bank dir: %v, %v", names, err)
	}

	dir := filepath.Join(home, ".config", "ham", "patterns")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"intro.yaml", "bass.json", "bass.yml", "notes.txt"} {
		os.WriteFile(filepath.Join(dir, f), []byte("name: x\n"), 0644)
	}

	names, err := ListBanks()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"bass", "intro"}; !slices.Equal(names, want) {
		t.Fatalf("banks = %v, want %v", names, want)
	}

	path, err := Resolve("intro")
	if err != nil || path != filepath.Join(dir, "intro.yaml") {
		t.Fatalf("Resolve(intro) = %q, %v", path, err)
	}
	local := filepath.Join(t.TempDir(), "local.yaml")
	os.WriteFile(local, []byte("name: y\n"), 0644)
	if path, err := Resolve(local); err != nil || path != local {
		t.Fatalf("Resolve(local) = %q, %v", path, err)
	}
	if _, err := Resolve("missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Resolve(missing) err = %v", err)
	}
	if _, err := Resolve("sub"); err == nil {
		t.Fatal("resolved a directory")
	}
}
