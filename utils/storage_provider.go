package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"

	// LocalDocumentURLPrefix is where the API serves LocalStore documents.
	LocalDocumentURLPrefix = "/api/invoices/documents"
)

// DocumentStore persists a generated document and returns the reference handed back to clients.
type DocumentStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderLocal
	}
	return provider
}

// NewDocumentStoreFromEnv picks the store named by STORAGE_PROVIDER.
func NewDocumentStoreFromEnv() (DocumentStore, error) {
	switch p := GetStorageProvider(); p {
	case StorageProviderGCS:
		return NewGCSStoreFromEnv()
	case StorageProviderLocal:
		dir := strings.TrimSpace(os.Getenv("INVOICE_DOCUMENT_DIR"))
		if dir == "" {
			dir = "invoices"
		}
		return &LocalStore{Dir: dir, URLPrefix: LocalDocumentURLPrefix}, nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", p)
	}
}

// LocalStore writes documents under Dir; the returned reference is URLPrefix/name.
// Names are slash separated keys such as "<business>/<file>".
type LocalStore struct {
	Dir       string
	URLPrefix string
}

// Path resolves a document key under Dir and rejects keys that escape it.
func (s *LocalStore) Path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(s.Dir, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(s.URLPrefix, "/") + "/" + name, nil
}
