package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every key in one JSON document on disk
type File struct {
	filePath string
	data     map[string]json.RawMessage
	mu       sync.RWMutex
}

// NewFile creates a file-backed store, loading any existing document
func NewFile(filePath string) (*File, error) {
	f := &File{
		filePath: filePath,
		data:     make(map[string]json.RawMessage),
	}

	if err := f.load(); err != nil {
		// A missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load state file: %w", err)
		}
	}

	return f, nil
}

func (f *File) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	raw, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

// Save stores data under key. Data that is not valid JSON is kept as a JSON
// string so a corrupt blob never breaks the whole document.
func (f *File) Save(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := json.RawMessage(append([]byte(nil), data...))
	if !json.Valid(raw) {
		quoted, err := json.Marshal(string(data))
		if err != nil {
			return err
		}
		raw = quoted
	}
	f.data[key] = raw

	return f.save()
}

func (f *File) load() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &f.data)
}

func (f *File) save() error {
	data, err := json.Marshal(f.data)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(f.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// Write then rename so a crash never leaves a half-written document
	tmp := f.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.filePath)
}
