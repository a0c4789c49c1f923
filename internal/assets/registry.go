// Package assets stores uploaded images and resolves image references to bytes
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RefPrefix marks references that point into the registry
const RefPrefix = "asset:"

// ErrNotFound is returned for unknown asset ids
var ErrNotFound = errors.New("asset not found")

// Registry keeps uploaded image bytes on disk, indexed by a generated id
type Registry struct {
	dir       string
	indexPath string
	data      map[string]*Entry
	mu        sync.RWMutex
}

// Entry stores persistent information about one asset
type Entry struct {
	ID          string    `json:"id"`
	File        string    `json:"file"`
	Name        string    `json:"name,omitempty"` // original upload name
	ContentType string    `json:"content_type,omitempty"`
	Size        int       `json:"size"`
	Source      string    `json:"source"` // upload, bg-removal
	CreatedAt   time.Time `json:"created_at"`
}

// Ref returns the image reference for the entry
func (e *Entry) Ref() string {
	return RefPrefix + e.ID
}

// NewRegistry creates a registry rooted at dir
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	r := &Registry{
		dir:       dir,
		indexPath: filepath.Join(dir, "index.json"),
		data:      make(map[string]*Entry),
	}

	if err := r.load(); err != nil {
		// A missing index is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load asset index: %w", err)
		}
	}

	return r, nil
}

// Add stores data as a new asset and returns its entry
func (r *Registry) Add(name, contentType, source string, data []byte) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}

	entry := &Entry{
		ID:          id,
		File:        id + ext,
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		Source:      source,
		CreatedAt:   time.Now(),
	}

	if err := os.WriteFile(filepath.Join(r.dir, entry.File), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write asset: %w", err)
	}

	r.data[id] = entry

	if err := r.save(); err != nil {
		// The bytes are on disk; the index is rewritten on the next Add
		log.Printf("⚠️  failed to save asset index: %v", err)
	}

	return entry, nil
}

// Get returns a copy of the entry for id
func (r *Registry) Get(id string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.data[id]
	if !ok {
		return nil
	}
	entryCopy := *entry
	return &entryCopy
}

// Read returns the stored bytes for id
func (r *Registry) Read(id string) ([]byte, error) {
	entry := r.Get(id)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return os.ReadFile(filepath.Join(r.dir, entry.File))
}

// GetAll returns all registered assets, oldest first
func (r *Registry) GetAll() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Entry, 0, len(r.data))
	for _, v := range r.data {
		entryCopy := *v
		result = append(result, &entryCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.indexPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &r.data)
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.indexPath, data, 0644)
}
