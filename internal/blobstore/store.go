// Package blobstore is the object store for raw upload bytes and derived
// parse output. Keys are slash-separated relative paths under a configured
// root directory.
package blobstore

import (
	"io"
	"os"
	"path/filepath"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// Save streams r into the blob at key, creating parent directories as needed,
// and returns the absolute path of the stored file.
func (s *Store) Save(key string, r io.Reader) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

// WriteFile stores data at key and returns the absolute path.
func (s *Store) WriteFile(key string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}

// ReadFile returns the contents of the blob stored at path. Paths are the
// absolute values previously returned by Save or WriteFile and persisted on
// the document row.
func (s *Store) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove deletes the blob at path. Missing blobs are not an error.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
