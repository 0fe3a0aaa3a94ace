package db

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// JSONStore keeps the seen set in a single JSON array file.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store backed by the file at path. The file is not
// touched until Load or Save is called.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the seen set. A missing file is an empty seen set; a file that
// is not a valid JSON array of opinions is an error.
func (s *JSONStore) Load() ([]Opinion, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Opinion{}, nil
		}
		return nil, fmt.Errorf("failed to read seen set: %w", err)
	}

	var opinions []Opinion
	if err := json.Unmarshal(data, &opinions); err != nil {
		return nil, fmt.Errorf("failed to parse seen set %s: %w", s.path, err)
	}
	if opinions == nil {
		opinions = []Opinion{}
	}
	return opinions, nil
}

// Save overwrites the seen set with opinions. The file is replaced through a
// rename so readers never observe a partial write.
func (s *JSONStore) Save(opinions []Opinion) error {
	if opinions == nil {
		opinions = []Opinion{}
	}
	// Court URLs carry query strings, so '&' and friends stay literal.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(opinions); err != nil {
		return fmt.Errorf("failed to encode seen set: %w", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write seen set: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set seen set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace seen set: %w", err)
	}
	return nil
}

// Close is a no-op; JSONStore holds no open handles.
func (s *JSONStore) Close() error {
	return nil
}
