package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePut(t *testing.T) {
	root := t.TempDir()
	ls, err := NewLocalStore(root, "http://localhost:8000")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	body := strings.NewReader("fake png bytes")
	path, url, err := ls.Put(context.Background(), "screenshots/u1/shot.png", body, int64(body.Len()), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(path, root) {
		t.Fatalf("expected path under %s, got %s", root, path)
	}
	if url != "http://localhost:8000/uploads/screenshots/u1/shot.png" {
		t.Fatalf("unexpected url %s", url)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "fake png bytes" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestLocalStorePutSanitizesPath(t *testing.T) {
	root := t.TempDir()
	ls, err := NewLocalStore(root, "http://localhost:8000")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	path, _, err := ls.Put(context.Background(), "../../etc/passwd", strings.NewReader("nope"), 4, "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("object escaped root: %s", path)
	}
}
