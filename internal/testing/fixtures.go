package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// LottieJSON returns a minimal animation document of the given size.
func LottieJSON(width, height int) []byte {
	return []byte(fmt.Sprintf(`{"v":"5.7","w":%d,"h":%d,"layers":[]}`, width, height))
}

// NewProject writes a widget configuration and its side files into a fresh
// directory. files maps slash-separated paths, relative to the directory,
// to their contents. Returns the directory and the configuration path.
func NewProject(t *testing.T, config string, files map[string][]byte) (string, string) {
	t.Helper()

	dir := t.TempDir()
	for name, data := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), data)
	}
	path := filepath.Join(dir, "lvgl.yaml")
	WriteFile(t, path, []byte(config))
	return dir, path
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}
