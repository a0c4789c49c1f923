package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/karcash/karcard/internal/layout"
)

// loadTimeout bounds a single fetch and decode
const loadTimeout = 30 * time.Second

// ErrImageFailed is returned by Preload for references that could not be decoded
var ErrImageFailed = errors.New("image failed to load")

// Loader resolves an image reference to encoded bytes
type Loader interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type loadState int

const (
	statePending loadState = iota
	stateReady
	stateFailed
)

type imageEntry struct {
	state loadState
	img   image.Image
	done  chan struct{}
}

// ImageCache is an append-only map from reference to decoded image. Entries
// are never evicted and failed loads are not retried.
type ImageCache struct {
	loader  Loader
	onReady func(ref string)

	mu      sync.Mutex
	entries map[string]*imageEntry
}

// NewImageCache creates a cache. onReady is called once for every entry
// that finishes decoding successfully.
func NewImageCache(loader Loader, onReady func(ref string)) *ImageCache {
	return &ImageCache{
		loader:  loader,
		onReady: onReady,
		entries: make(map[string]*imageEntry),
	}
}

// Get returns the decoded image for ref when it is ready. Unseen references
// start loading in the background and report not ready.
func (c *ImageCache) Get(ref string) (image.Image, bool) {
	e := c.entry(ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.state != stateReady {
		return nil, false
	}
	return e.img, true
}

// entry returns the entry for ref, starting its load on first sight
func (c *ImageCache) entry(ref string) *imageEntry {
	c.mu.Lock()
	e, ok := c.entries[ref]
	if !ok {
		e = &imageEntry{state: statePending, done: make(chan struct{})}
		c.entries[ref] = e
	}
	c.mu.Unlock()

	if !ok {
		go c.load(ref, e)
	}
	return e
}

func (c *ImageCache) load(ref string, e *imageEntry) {
	defer close(e.done)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	img, err := c.decode(ctx, ref)

	c.mu.Lock()
	if err != nil {
		e.state = stateFailed
		c.mu.Unlock()
		log.Printf("⚠️  Failed to load image %s: %v", shortRef(ref), err)
		return
	}
	e.state = stateReady
	e.img = img
	c.mu.Unlock()

	if c.onReady != nil {
		c.onReady(ref)
	}
}

func (c *ImageCache) decode(ctx context.Context, ref string) (image.Image, error) {
	if c.loader == nil {
		return nil, fmt.Errorf("no image loader")
	}

	data, err := c.loader.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Preload starts loading refs and waits until every one of them has settled
func (c *ImageCache) Preload(ctx context.Context, refs ...string) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		ref := ref
		e := c.entry(ref)
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.done:
			}

			c.mu.Lock()
			failed := e.state == stateFailed
			c.mu.Unlock()

			if failed {
				return fmt.Errorf("%w: %s", ErrImageFailed, shortRef(ref))
			}
			return nil
		})
	}

	return g.Wait()
}

// shortRef keeps data URIs out of log lines
func shortRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}

// filterKey identifies one filtered rendition of a subject image
type filterKey struct {
	ref        string
	brightness float64
	contrast   float64
	saturation float64
}

// applyFilters emulates the CSS brightness, contrast and saturate filters,
// in that order. All three take percentages where 100 is the identity.
func applyFilters(img image.Image, brightness, contrast, saturation float64) image.Image {
	if brightness == 100 && contrast == 100 && saturation == 100 {
		return img
	}

	b := max(brightness, 0) / 100
	k := max(contrast, 0) / 100

	out := imaging.AdjustFunc(img, func(px color.NRGBA) color.NRGBA {
		px.R = filterChannel(px.R, b, k)
		px.G = filterChannel(px.G, b, k)
		px.B = filterChannel(px.B, b, k)
		return px
	})

	if saturation != 100 {
		out = imaging.AdjustSaturation(out, layout.Clamp(saturation-100, -100, 500))
	}
	return out
}

func filterChannel(v uint8, brightness, contrast float64) uint8 {
	f := float64(v) / 255 * brightness
	f = (f-0.5)*contrast + 0.5
	return uint8(layout.Clamp(f, 0, 1)*255 + 0.5)
}
