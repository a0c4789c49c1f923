package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestMemory_SaveLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := m.Save(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Load = %s", data)
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "karcard.json")

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("Failed to create file storage: %v", err)
	}

	if err := f.Save(ctx, "karcard-state", []byte(`{"version":2}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen file storage: %v", err)
	}

	data, err := reopened.Load(ctx, "karcard-state")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `{"version":2}` {
		t.Errorf("Load = %s", data)
	}
}

func TestFile_InvalidJSONStoredAsString(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "karcard.json")

	f, _ := NewFile(path)
	if err := f.Save(ctx, "k", []byte("not json")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := f.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `"not json"` {
		t.Errorf("Load = %s", data)
	}
}
