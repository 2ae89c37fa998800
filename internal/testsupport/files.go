package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WritePhoto writes a small fake capture file whose bytes are derived from
// its name, so distinct names always produce distinct content hashes.
func WritePhoto(t testing.TB, dir, name string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	content := append([]byte("fake-photo:"), []byte(name)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
