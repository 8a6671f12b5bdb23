package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size bytes of a non-repeating-per-block pattern so range
// reads can be checked against exact offsets.
func Pattern(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return buf
}

// WriteFile writes Pattern(size) to path, creating parent directories, and
// returns the written content.
func WriteFile(t testing.TB, path string, size int) []byte {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content := Pattern(size)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return content
}
