package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var bankExts = []string{".yaml", ".yml", ".json"}

// BankDir returns the directory holding named pattern files.
func BankDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ham", "patterns"), nil
}

// ListBanks returns the names of the pattern files in BankDir, without
// extension, sorted.
func ListBanks() ([]string, error) {
	dir, err := BankDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if slices.Contains(bankExts, strings.ToLower(ext)) {
			names = append(names, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Resolve turns name into a file path. An existing file is returned as is;
// otherwise name is looked up in BankDir with any pattern extension.
func Resolve(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	dir, err := BankDir()
	if err != nil {
		return "", err
	}
	for _, ext := range append([]string{""}, bankExts...) {
		path := filepath.Join(dir, name+ext)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("pattern %q: %w", name, os.ErrNotExist)
}
