// Package renderer composites a KarCard snapshot onto a raster surface
package renderer

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/karcash/karcard/internal/export"
	"github.com/karcash/karcard/internal/store"
	"github.com/karcash/karcard/pkg/karcard"
)

// DefaultFrameInterval is the paint cadence of Run
const DefaultFrameInterval = 16 * time.Millisecond

// ErrNotRendered is returned when reading the surface before the first pass
var ErrNotRendered = errors.New("no render pass has completed yet")

// Snapshot is everything a pass reads
type Snapshot struct {
	Revision   uint64
	Image      *string
	Data       karcard.VehicleData
	Config     karcard.CanvasConfig
	Background karcard.BackgroundConfig
	Format     karcard.Format
	Discount   int
}

// SnapshotFrom resolves the active layout of a store snapshot
func SnapshotFrom(s store.Snapshot) Snapshot {
	l := s.State.Layouts.Get(s.State.Format)
	return Snapshot{
		Revision:   s.Revision,
		Image:      s.State.Image,
		Data:       s.State.Data,
		Config:     l.Config,
		Background: l.Background,
		Format:     s.State.Format,
		Discount:   s.DiscountPercentage,
	}
}

// PassInfo describes a completed pass
type PassInfo struct {
	Pass     uint64         `json:"pass"`
	Revision uint64         `json:"revision"`
	Format   karcard.Format `json:"format"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Duration time.Duration  `json:"duration"`
}

// Options configures an Engine
type Options struct {
	Fonts         *Fonts
	Loader        Loader
	LogoRef       string
	FrameInterval time.Duration
	NewSurface    func(w, h int) Surface
}

// Engine owns the surface, the image cache and the dirty flag. A new
// snapshot marks the engine dirty; the next frame runs one pass with the
// latest snapshot.
type Engine struct {
	fonts      *Fonts
	cache      *ImageCache
	logoRef    string
	interval   time.Duration
	newSurface func(w, h int) Surface

	mu       sync.Mutex
	snap     *Snapshot
	dirty    bool
	handlers []func(PassInfo)

	// passMu serializes passes and guards the fields below
	passMu   sync.Mutex
	surface  Surface
	rendered bool
	passes   uint64
	lastData karcard.VehicleData
	filtered struct {
		key filterKey
		img image.Image
	}
}

// New creates an engine
func New(opts Options) *Engine {
	e := &Engine{
		fonts:      opts.Fonts,
		logoRef:    opts.LogoRef,
		interval:   opts.FrameInterval,
		newSurface: opts.NewSurface,
	}
	if e.fonts == nil {
		e.fonts = NewFonts("")
	}
	if e.interval <= 0 {
		e.interval = DefaultFrameInterval
	}
	if e.newSurface == nil {
		e.newSurface = NewGGSurface
	}
	e.cache = NewImageCache(opts.Loader, func(string) { e.markDirty() })

	return e
}

// Cache returns the engine's image cache
func (e *Engine) Cache() *ImageCache {
	return e.cache
}

// Invalidate stores snap as the latest snapshot and marks the engine dirty.
// A snapshot older than the one already held is ignored.
func (e *Engine) Invalidate(snap Snapshot) {
	e.mu.Lock()
	if e.snap != nil && snap.Revision < e.snap.Revision {
		e.mu.Unlock()
		return
	}
	e.snap = &snap
	e.dirty = true
	e.mu.Unlock()
}

func (e *Engine) markDirty() {
	e.mu.Lock()
	if e.snap != nil {
		e.dirty = true
	}
	e.mu.Unlock()
}

// Dirty reports whether a pass is pending
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// OnRendered registers fn to run after every pass
func (e *Engine) OnRendered(fn func(PassInfo)) {
	e.mu.Lock()
	e.handlers = append(e.handlers, fn)
	e.mu.Unlock()
}

// Run paints once per frame while dirty, until ctx is cancelled
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Flush()
		}
	}
}

// Flush runs the pending pass now. It reports whether a pass ran.
func (e *Engine) Flush() bool {
	e.passMu.Lock()

	e.mu.Lock()
	if !e.dirty || e.snap == nil {
		e.mu.Unlock()
		e.passMu.Unlock()
		return false
	}
	snap := *e.snap
	e.dirty = false
	e.mu.Unlock()

	start := time.Now()
	w, h := snap.Format.Size()
	if e.surface == nil {
		e.surface = e.newSurface(w, h)
	} else if sw, sh := e.surface.Size(); sw != w || sh != h {
		e.surface = e.newSurface(w, h)
	}

	e.render(e.surface, &snap)
	e.rendered = true
	e.passes++
	e.lastData = snap.Data

	info := PassInfo{
		Pass:     e.passes,
		Revision: snap.Revision,
		Format:   snap.Format,
		Width:    w,
		Height:   h,
		Duration: time.Since(start),
	}
	e.passMu.Unlock()

	e.mu.Lock()
	handlers := make([]func(PassInfo), len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(info)
	}
	return true
}

// Export encodes the surface as PNG. A pending pass is flushed first.
func (e *Engine) Export(w io.Writer) error {
	e.Flush()

	e.passMu.Lock()
	defer e.passMu.Unlock()

	if !e.rendered {
		return ErrNotRendered
	}
	return export.WritePNG(w, e.surface.Image())
}

// SaveTo writes the surface into dir, named after the vehicle
func (e *Engine) SaveTo(dir string) (string, error) {
	e.Flush()

	e.passMu.Lock()
	defer e.passMu.Unlock()

	if !e.rendered {
		return "", ErrNotRendered
	}

	name := export.Filename(e.lastData.Brand, e.lastData.Model)
	path, err := export.Save(dir, name, e.surface.Image())
	if err != nil {
		return "", err
	}
	log.Printf("💾 Exported %s", path)
	return path, nil
}
