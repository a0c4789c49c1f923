package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxRemoteSize caps downloads of remote references
const maxRemoteSize = 32 << 20

// ErrRefNotAllowed is returned for file paths and URLs outside the fetch policy
var ErrRefNotAllowed = errors.New("image reference not allowed")

// Fetcher turns an image reference into raw bytes. Supported references:
// "asset:<id>", "data:<mime>;base64,<payload>", http(s) URLs and file paths.
// Asset and data references always resolve. File paths resolve only under
// a configured root and URLs only when remote fetching is enabled, unless
// the exact reference was allowed with WithRefs.
type Fetcher struct {
	registry *Registry
	client   *http.Client
	roots    []string
	remote   bool
	allowed  map[string]bool
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithRoots allows file references inside the given directories
func WithRoots(dirs ...string) Option {
	return func(f *Fetcher) {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			if root, err := resolvePath(dir); err == nil {
				f.roots = append(f.roots, root)
			}
		}
	}
}

// WithRemote enables http(s) references
func WithRemote(enabled bool) Option {
	return func(f *Fetcher) { f.remote = enabled }
}

// WithRefs allows these exact references regardless of the other rules
func WithRefs(refs ...string) Option {
	return func(f *Fetcher) {
		for _, ref := range refs {
			if ref != "" {
				f.allowed[ref] = true
			}
		}
	}
}

// NewFetcher creates a fetcher. registry may be nil when asset references
// are not in use.
func NewFetcher(registry *Registry, opts ...Option) *Fetcher {
	f := &Fetcher{
		registry: registry,
		client:   &http.Client{Timeout: 10 * time.Second},
		allowed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the bytes behind ref
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, RefPrefix):
		if f.registry == nil {
			return nil, fmt.Errorf("%w: no asset registry for %s", ErrNotFound, ref)
		}
		return f.registry.Read(strings.TrimPrefix(ref, RefPrefix))

	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		if !f.remote && !f.allowed[ref] {
			return nil, fmt.Errorf("%w: remote fetching is disabled", ErrRefNotAllowed)
		}
		return f.download(ctx, ref)

	case ref == "":
		return nil, fmt.Errorf("empty image reference")

	default:
		if !f.allowed[ref] && !f.underRoot(ref) {
			return nil, fmt.Errorf("%w: %s", ErrRefNotAllowed, ref)
		}
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read image file: %w", err)
		}
		return data, nil
	}
}

// underRoot reports whether path resolves inside one of the roots
func (f *Fetcher) underRoot(path string) bool {
	if len(f.roots) == 0 {
		return false
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return false
	}
	for _, root := range f.roots {
		rel, err := filepath.Rel(root, resolved)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePath returns the absolute path with symlinks followed
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func decodeDataURI(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}

	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URI: %w", err)
	}
	return data, nil
}
