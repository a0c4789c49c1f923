// Package bgremoval talks to a foreground-extraction service
package bgremoval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no service endpoint is set
var ErrNotConfigured = errors.New("background removal is not configured")

// maxResultSize caps the response body
const maxResultSize = 32 << 20

// Remover extracts the foreground of an encoded image and returns it as an
// encoded PNG with a transparent background.
type Remover interface {
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}

// HTTPRemover posts the image to a remove.bg compatible endpoint
type HTTPRemover struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPRemover creates a client for endpoint
func NewHTTPRemover(endpoint, apiKey string) *HTTPRemover {
	return &HTTPRemover{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *HTTPRemover) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	if r.endpoint == "" {
		return nil, ErrNotConfigured
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image_file", "image")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := form.WriteField("size", "auto"); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "image/png")
	if r.apiKey != "" {
		req.Header.Set("X-Api-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("background removal request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read background removal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("background removal failed: HTTP %d: %s", resp.StatusCode, msg)
	}

	return data, nil
}
