package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage archives the raw media a receipt was extracted from
type Storage interface {
	// Save writes data and returns the archived file name
	Save(filename string, data []byte) (string, error)

	// Get retrieves an archived file by name
	Get(name string) ([]byte, error)

	// Delete removes an archived file
	Delete(name string) error
}

// MediaName builds the archive name for a receipt's source media, e.g.
// "42_audio.wav".
func MediaName(receiptID int64, kind, ext string) string {
	return fmt.Sprintf("%d_%s.%s", receiptID, kind, strings.TrimPrefix(ext, "."))
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// resolve keeps every name inside basePath.
func (l *LocalStorage) resolve(name string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || clean != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.basePath, clean), nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
