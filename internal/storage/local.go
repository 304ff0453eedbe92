package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects under a root directory on the service host.
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStore) Put(_ context.Context, objectName string, r io.Reader, _ int64, _ string) (string, string, error) {
	clean := filepath.Clean("/" + objectName)
	dest := filepath.Join(l.Root, clean)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", "", fmt.Errorf("create object directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", "", fmt.Errorf("create object file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(dest)
		return "", "", fmt.Errorf("write object: %w", err)
	}
	url := l.BaseURL + "/uploads" + strings.ReplaceAll(clean, string(filepath.Separator), "/")
	return dest, url, nil
}
