package bgremoval

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPRemover_NotConfigured(t *testing.T) {
	_, err := NewHTTPRemover("", "key").RemoveBackground(context.Background(), []byte("img"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestHTTPRemover_PostsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("X-Api-Key = %q", r.Header.Get("X-Api-Key"))
		}
		file, _, err := r.FormFile("image_file")
		if err != nil {
			t.Errorf("image_file missing: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" {
			t.Errorf("image_file = %q", data)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	out, err := NewHTTPRemover(srv.URL, "secret").RemoveBackground(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "png-bytes" {
		t.Errorf("result = %q", out)
	}
}

func TestHTTPRemover_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "credits exhausted", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	_, err := NewHTTPRemover(srv.URL, "").RemoveBackground(context.Background(), []byte("img"))
	if err == nil || !strings.Contains(err.Error(), "402") || !strings.Contains(err.Error(), "credits exhausted") {
		t.Errorf("err = %v", err)
	}
}
