package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/karcash/karcard/internal/assets"
	"github.com/karcash/karcard/internal/bgremoval"
	"github.com/karcash/karcard/internal/renderer"
	"github.com/karcash/karcard/internal/storage"
	"github.com/karcash/karcard/internal/store"
	"github.com/karcash/karcard/pkg/karcard"
)

type testEnv struct {
	server *Server
	store  *store.Store
	engine *renderer.Engine
	assets *assets.Registry
}

func newTestEnv(t *testing.T, remover bgremoval.Remover) *testEnv {
	t.Helper()

	reg, err := assets.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := assets.NewFetcher(reg)

	s := store.New(context.Background(), storage.NewMemory())
	engine := renderer.New(renderer.Options{Loader: fetcher})
	s.Subscribe(func(snap store.Snapshot) {
		engine.Invalidate(renderer.SnapshotFrom(snap))
	})

	server := NewServer(Deps{
		Store:     s,
		Engine:    engine,
		Assets:    reg,
		Images:    fetcher,
		Remover:   remover,
		ExportDir: t.TempDir(),
	})

	return &testEnv{server: server, store: s, engine: engine, assets: reg}
}

func (env *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) store.Snapshot {
	t.Helper()
	var snap store.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Invalid snapshot %q: %v", w.Body.String(), err)
	}
	return snap
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Set(0, 0, color.NRGBA{R: 0x10, A: 0xFF})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("GET", "/health", nil)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateData(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do("POST", "/data", map[string]interface{}{"field": "fipePrice", "value": 120000})
	w := env.do("POST", "/data", map[string]interface{}{"field": "salePrice", "value": "99.000"})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	snap := decodeSnapshot(t, w)
	if snap.State.Data.EconomyPrice != 21000 || snap.DiscountPercentage != 18 {
		t.Errorf("economy=%v discount=%d", snap.State.Data.EconomyPrice, snap.DiscountPercentage)
	}

	w = env.do("POST", "/data", map[string]interface{}{"field": "economyPrice", "value": 1})
	if w.Code != 400 {
		t.Errorf("derived field status = %d", w.Code)
	}

	w = env.do("POST", "/data", map[string]interface{}{"value": "x"})
	if w.Code != 400 {
		t.Errorf("missing field status = %d", w.Code)
	}
}

func TestUpdateConfigAndFormat(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/config", map[string]interface{}{"field": "brand", "value": map[string]interface{}{"fontSize": 60}})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decodeSnapshot(t, w).State.Layouts.Story.Config.Brand.FontSize; got != 60 {
		t.Errorf("brand.fontSize = %v", got)
	}

	if w := env.do("POST", "/config", map[string]interface{}{"field": "wheels", "value": 4}); w.Code != 400 {
		t.Errorf("unknown field status = %d", w.Code)
	}

	w = env.do("POST", "/format", map[string]interface{}{"format": "poster"})
	if w.Code != 200 || decodeSnapshot(t, w).State.Format != karcard.FormatPoster {
		t.Errorf("format = %d %s", w.Code, w.Body.String())
	}
	if w := env.do("POST", "/format", map[string]interface{}{"format": "feed"}); w.Code != 400 {
		t.Errorf("unknown format status = %d", w.Code)
	}

	env.do("POST", "/config", map[string]interface{}{"field": "zoom", "value": 2})
	w = env.do("POST", "/defaults", nil)
	if got := decodeSnapshot(t, w).State.Layouts.Poster.Config.Zoom; got != karcard.DefaultPosterLayout().Config.Zoom {
		t.Errorf("zoom after defaults = %v", got)
	}
}

func TestSetBackground(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/background", map[string]interface{}{"type": "solid", "value": "#101010"})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if bg := decodeSnapshot(t, w).State.Layouts.Story.Background; bg.Type != karcard.BackgroundSolid || bg.Value != "#101010" {
		t.Errorf("background = %+v", bg)
	}

	if w := env.do("POST", "/background", map[string]interface{}{"type": "video"}); w.Code != 400 {
		t.Errorf("invalid type status = %d", w.Code)
	}
}

func TestSetImage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/image", map[string]interface{}{"ref": "https://example.com/car.jpg"})
	if ref := decodeSnapshot(t, w).State.Image; ref == nil || *ref != "https://example.com/car.jpg" {
		t.Errorf("image = %v", ref)
	}

	w = env.do("POST", "/image", map[string]interface{}{"ref": nil})
	if decodeSnapshot(t, w).State.Image != nil {
		t.Error("image not cleared")
	}
}

func upload(t *testing.T, env *testEnv, data []byte, target string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "car.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	if target != "" {
		form.WriteField("target", target)
	}
	form.Close()

	req := httptest.NewRequest("POST", "/image/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t, nil)
	data := pngBytes(t)

	w := upload(t, env, data, "")
	if w.Code != 200 {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Ref string `json:"ref"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Ref, assets.RefPrefix) {
		t.Fatalf("ref = %q", resp.Ref)
	}
	if ref := env.store.Snapshot().State.Image; ref == nil || *ref != resp.Ref {
		t.Errorf("subject image = %v", ref)
	}

	w = env.do("GET", "/assets/"+strings.TrimPrefix(resp.Ref, assets.RefPrefix), nil)
	if w.Code != 200 || !bytes.Equal(w.Body.Bytes(), data) {
		t.Errorf("asset = %d, %d bytes", w.Code, w.Body.Len())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	if w := env.do("GET", "/assets/missing", nil); w.Code != 404 {
		t.Errorf("missing asset status = %d", w.Code)
	}

	w = upload(t, env, data, "background")
	if bg := env.store.Snapshot().State.Layouts.Story.Background; w.Code != 200 || bg.Type != karcard.BackgroundImage {
		t.Errorf("background upload = %d %+v", w.Code, bg)
	}

	if w := upload(t, env, []byte("plain text, not an image"), ""); w.Code != 400 {
		t.Errorf("text upload status = %d", w.Code)
	}

	w = env.do("GET", "/assets", nil)
	var list struct {
		Assets []assets.Entry `json:"assets"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || w.Code != 200 {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
	if list.Count != 2 || len(list.Assets) != 2 {
		t.Fatalf("Unexpected asset list %+v", list)
	}
	if list.Assets[0].ID != strings.TrimPrefix(resp.Ref, assets.RefPrefix) && list.Assets[1].ID != strings.TrimPrefix(resp.Ref, assets.RefPrefix) {
		t.Errorf("uploaded asset %s missing from list", resp.Ref)
	}
}

type stubRemover struct{ out []byte }

func (r stubRemover) RemoveBackground(_ context.Context, _ []byte) ([]byte, error) {
	return r.out, nil
}

func TestRemoveBackground(t *testing.T) {
	unconfigured := newTestEnv(t, bgremoval.NewHTTPRemover("", ""))
	upload(t, unconfigured, pngBytes(t), "")
	if w := unconfigured.do("POST", "/image/remove-background", nil); w.Code != 503 {
		t.Errorf("unconfigured status = %d", w.Code)
	}

	env := newTestEnv(t, stubRemover{out: pngBytes(t)})
	if w := env.do("POST", "/image/remove-background", nil); w.Code != 400 {
		t.Errorf("no image status = %d", w.Code)
	}

	upload(t, env, pngBytes(t), "")
	before := *env.store.Snapshot().State.Image

	w := env.do("POST", "/image/remove-background", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	snap := decodeSnapshot(t, w)
	if snap.State.Image == nil || *snap.State.Image == before || snap.Status.Processing {
		t.Errorf("after removal image=%v status=%+v", snap.State.Image, snap.Status)
	}
}

func TestRenderPNG(t *testing.T) {
	reg, _ := assets.NewRegistry(t.TempDir())
	s := store.New(context.Background(), nil)
	server := NewServer(Deps{Store: s, Engine: renderer.New(renderer.Options{}), Assets: reg})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/render.png", nil))
	if w.Code != 503 {
		t.Errorf("status before any pass = %d", w.Code)
	}

	env := newTestEnv(t, nil)
	env.do("POST", "/data", map[string]interface{}{"field": "brand", "value": "Honda"})
	env.do("POST", "/data", map[string]interface{}{"field": "model", "value": "Civic Touring"})

	w = env.do("GET", "/render.png", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "karcash-honda-civic-touring.png") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1920 {
		t.Errorf("size = %v", b)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do("POST", "/data", map[string]interface{}{"field": "brand", "value": "Fiat"})
	env.do("POST", "/data", map[string]interface{}{"field": "model", "value": "Uno"})

	w := env.do("POST", "/export", nil)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "karcash-fiat-uno.png") {
		t.Errorf("export = %d %s", w.Code, w.Body.String())
	}
}

func TestCommand(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do("POST", "/command", map[string]string{"command": "data brand Honda"})
	if w.Code != 200 || env.store.Snapshot().State.Data.Brand != "Honda" {
		t.Errorf("command = %d %s", w.Code, w.Body.String())
	}

	w = env.do("POST", "/command", map[string]string{"command": "print"})
	if w.Code != 400 {
		t.Errorf("unknown command status = %d", w.Code)
	}
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Event != EventState {
		t.Fatalf("first event = %q", first.Event)
	}

	err = conn.WriteJSON(WSMessage{Event: EventCommand, Data: map[string]string{"command": "data model Corolla"}})
	if err != nil {
		t.Fatal(err)
	}

	// The state broadcast for the change may arrive before the response
	sawState := false
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Event == EventState {
			sawState = true
			continue
		}
		if msg.Event != EventResponse {
			continue
		}
		data, _ := msg.Data.(map[string]interface{})
		if data["success"] != true {
			t.Errorf("response = %v", msg.Data)
		}
		break
	}
	if !sawState {
		t.Error("No state broadcast before the response")
	}

	env.engine.Flush()
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Event == EventRendered {
			break
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		store.ErrBusy:              409,
		store.ErrImageChanged:      409,
		assets.ErrRefNotAllowed:    403,
		store.ErrNoImage:           400,
		store.ErrUnknownField:      400,
		bgremoval.ErrNotConfigured: 503,
		renderer.ErrNotRendered:    503,
		assets.ErrNotFound:         404,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
