package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/karcash/karcard/internal/assets"
	"github.com/karcash/karcard/internal/bgremoval"
)

var (
	// ErrBusy is returned while a background removal is already running
	ErrBusy = errors.New("background removal already in progress")
	// ErrNoImage is returned when there is no subject image to process
	ErrNoImage = errors.New("no subject image")
	// ErrImageChanged is returned when the subject image was replaced while
	// its background was being removed
	ErrImageChanged = errors.New("subject image changed during background removal")
)

// ImageSource resolves an image reference to encoded bytes
type ImageSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// AssetSink stores new image bytes
type AssetSink interface {
	Add(name, contentType, source string, data []byte) (*assets.Entry, error)
}

// RemoveBackground replaces the subject image with its extracted foreground.
// Status.Processing is set for the duration of the call. On failure the
// error is recorded in Status and the image reference stays as it was.
// A result whose source image was replaced in the meantime is dropped.
func (s *Store) RemoveBackground(ctx context.Context, remover bgremoval.Remover, src ImageSource, sink AssetSink) error {
	ref, err := s.beginRemoval()
	if err != nil {
		return err
	}

	newRef, err := extractForeground(ctx, ref, remover, src, sink)
	if err == nil {
		err = s.Apply(ReplaceImage{From: ref, To: newRef})
	}
	if err != nil {
		log.Printf("❌ Background removal failed for %s: %v", ref, err)
		s.setStatus(Status{Error: err.Error()})
		return err
	}

	s.setStatus(Status{})
	log.Printf("✅ Background removed: %s -> %s", ref, newRef)
	return nil
}

// beginRemoval marks the store as processing and returns the image to work on
func (s *Store) beginRemoval() (string, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if s.status.Processing {
		s.mu.Unlock()
		return "", ErrBusy
	}
	if s.state.Image == nil {
		s.mu.Unlock()
		return "", ErrNoImage
	}
	ref := *s.state.Image
	s.status = Status{Processing: true}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return ref, nil
}

func extractForeground(ctx context.Context, ref string, remover bgremoval.Remover, src ImageSource, sink AssetSink) (string, error) {
	original, err := src.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to read subject image: %w", err)
	}

	foreground, err := remover.RemoveBackground(ctx, original)
	if err != nil {
		return "", err
	}

	entry, err := sink.Add("foreground.png", "image/png", "bg-removal", foreground)
	if err != nil {
		return "", fmt.Errorf("failed to store foreground image: %w", err)
	}

	return entry.Ref(), nil
}
