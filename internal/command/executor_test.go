package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/karcash/karcard/internal/assets"
	"github.com/karcash/karcard/internal/storage"
	"github.com/karcash/karcard/internal/store"
	"github.com/karcash/karcard/pkg/karcard"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"data brand Honda", []string{"data", "brand", "Honda"}},
		{`data model "Civic Touring 1.5"`, []string{"data", "model", "Civic Touring 1.5"}},
		{`config pan '{"x":40}'`, []string{"config", "pan", `{"x":40}`}},
		{`data brand ""`, []string{"data", "brand", ""}},
		{"   ", []string{}},
	}

	for _, c := range cases {
		got := parseCommand(c.in)
		if strings.Join(got, "|") != strings.Join(c.want, "|") || len(got) != len(c.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func newTestExecutor(t *testing.T) (*Executor, *store.Store) {
	t.Helper()
	s := store.New(context.Background(), storage.NewMemory())
	return NewExecutor(Deps{Store: s}), s
}

func TestExecute_Data(t *testing.T) {
	e, s := newTestExecutor(t)

	for _, cmd := range []string{
		"data brand Honda",
		`data model "Civic Touring 1.5 Turbo"`,
		"data fipePrice 120000",
		"data salePrice 99.000,00",
	} {
		if res := e.Execute(cmd); !res.Success {
			t.Fatalf("%s: %s", cmd, res.Error)
		}
	}

	snap := s.Snapshot()
	if snap.State.Data.Model != "Civic Touring 1.5 Turbo" {
		t.Errorf("Model = %q", snap.State.Data.Model)
	}
	if snap.State.Data.EconomyPrice != 21000 || snap.DiscountPercentage != 18 {
		t.Errorf("economy=%v discount=%d", snap.State.Data.EconomyPrice, snap.DiscountPercentage)
	}

	res := e.Execute("data economyPrice 5")
	if res.Success {
		t.Error("Setting economyPrice should fail")
	}
}

func TestExecute_DetailsLineBreaks(t *testing.T) {
	e, s := newTestExecutor(t)

	e.Execute(`data detailsText "Teto solar\nCouro"`)
	if got := s.Snapshot().State.Data.DetailsText; got != "Teto solar\nCouro" {
		t.Errorf("DetailsText = %q", got)
	}
}

func TestExecute_Config(t *testing.T) {
	e, s := newTestExecutor(t)

	for _, cmd := range []string{
		"config brand.fontSize 60",
		"config brand.textColor #FFFFFF",
		"config zoom 1.25",
		"config pan.y -40",
		"config model.fontWeight 700",
		"config year.fontWeight normal",
	} {
		if res := e.Execute(cmd); !res.Success {
			t.Fatalf("%s: %s", cmd, res.Error)
		}
	}

	cfg := s.Snapshot().State.Layouts.Story.Config
	if cfg.Brand.FontSize != 60 || cfg.Brand.TextColor != "#FFFFFF" {
		t.Errorf("brand = %+v", cfg.Brand)
	}
	if cfg.Brand.BackgroundColor != karcard.ColorNeon {
		t.Error("Merge dropped brand.backgroundColor")
	}
	if cfg.Model.FontWeight != "700" || cfg.Year.FontWeight != "normal" {
		t.Errorf("fontWeight model=%q year=%q", cfg.Model.FontWeight, cfg.Year.FontWeight)
	}
	if cfg.Zoom != 1.25 || cfg.Pan.Y != -40 {
		t.Errorf("zoom=%v pan=%+v", cfg.Zoom, cfg.Pan)
	}

	if res := e.Execute("config zoom abc"); res.Success {
		t.Error("Non-numeric zoom should fail")
	}
	if res := e.Execute("config wheels 4"); res.Success {
		t.Error("Unknown field should fail")
	}
}

func TestExecute_FormatAndDefaults(t *testing.T) {
	e, s := newTestExecutor(t)

	e.Execute("config model.fontSize 130")
	story := s.Snapshot().State.Layouts.Story

	if res := e.Execute("format poster"); !res.Success {
		t.Fatal(res.Error)
	}
	e.Execute("config model.fontSize 70")
	if res := e.Execute("defaults"); !res.Success {
		t.Fatal(res.Error)
	}

	snap := s.Snapshot()
	if snap.State.Layouts.Poster.Config.Model != karcard.DefaultPosterLayout().Config.Model {
		t.Error("Poster model not restored")
	}
	if snap.State.Layouts.Story.Config.Model != story.Config.Model {
		t.Error("Story layout changed")
	}

	if res := e.Execute("format feed"); res.Success {
		t.Error("Unknown format should fail")
	}
}

func TestExecute_Background(t *testing.T) {
	e, s := newTestExecutor(t)

	if res := e.Execute("background gradient #111111 #222222 -90"); !res.Success {
		t.Fatal(res.Error)
	}
	bg := s.Snapshot().State.Layouts.Story.Background
	if bg.Type != karcard.BackgroundGradient || bg.Gradient.Direction != 270 || bg.Gradient.Colors[1] != "#222222" {
		t.Errorf("gradient background = %+v %+v", bg, bg.Gradient)
	}

	if res := e.Execute("background overlay #000000 0.4"); !res.Success {
		t.Fatal(res.Error)
	}
	if got := s.Snapshot().State.Layouts.Story.Background.Overlay.Opacity; got != 0.4 {
		t.Errorf("overlay opacity = %v", got)
	}

	if res := e.Execute("background image bg.png 90"); res.Success {
		t.Error("Rotation 90 should be rejected")
	}
	if res := e.Execute("background overlay #000000 2"); res.Success {
		t.Error("Opacity above 1 should be rejected")
	}
}

type fakeRemover struct{ err error }

func (f fakeRemover) RemoveBackground(_ context.Context, image []byte) ([]byte, error) {
	return []byte("png"), f.err
}

type fakeImages struct{}

func (fakeImages) Fetch(_ context.Context, ref string) ([]byte, error) {
	return []byte("jpg"), nil
}

func TestExecute_Image(t *testing.T) {
	s := store.New(context.Background(), storage.NewMemory())
	reg, err := assets.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	e := NewExecutor(Deps{Store: s, Remover: fakeRemover{}, Images: fakeImages{}, Assets: reg})

	if res := e.Execute("image remove-bg"); res.Success {
		t.Error("Removal without an image should fail")
	}

	e.Execute("image car.jpg")
	if res := e.Execute("image remove-bg"); !res.Success {
		t.Fatalf("remove-bg: %s", res.Error)
	}
	if ref := s.Snapshot().State.Image; ref == nil || !strings.HasPrefix(*ref, assets.RefPrefix) {
		t.Errorf("Image not replaced by an asset: %v", ref)
	}

	e.Execute("image clear")
	if s.Snapshot().State.Image != nil {
		t.Error("Image not cleared")
	}

	failing := NewExecutor(Deps{Store: s, Remover: fakeRemover{err: errors.New("down")}, Images: fakeImages{}, Assets: reg})
	e.Execute("image car.jpg")
	if res := failing.Execute("image remove-bg"); res.Success || !strings.Contains(res.Error, "down") {
		t.Errorf("Expected failure, got %+v", res)
	}
}

type fakeExporter struct{ dir string }

func (f *fakeExporter) SaveTo(dir string) (string, error) {
	f.dir = dir
	return dir + "/karcash-honda-civic.png", nil
}

func TestExecute_Export(t *testing.T) {
	s := store.New(context.Background(), nil)
	exp := &fakeExporter{}
	e := NewExecutor(Deps{Store: s, Exporter: exp, ExportDir: "out"})

	res := e.Execute("export")
	if !res.Success || exp.dir != "out" {
		t.Errorf("export = %+v, dir %q", res, exp.dir)
	}

	if res := NewExecutor(Deps{Store: s}).Execute("export"); res.Success {
		t.Error("Export without an exporter should fail")
	}
}

func TestExecute_Unknown(t *testing.T) {
	e, _ := newTestExecutor(t)

	if res := e.Execute("print"); res.Success || !strings.Contains(res.Error, "unknown command") {
		t.Errorf("Unexpected result %+v", res)
	}
	if res := e.Execute(""); res.Success {
		t.Error("Empty command should fail")
	}
	if res := e.Execute("help"); !res.Success || !strings.Contains(res.Message, "defaults") {
		t.Error("help should list commands")
	}
}

func TestExecute_BoxResizeSuggestsMetrics(t *testing.T) {
	e, s := newTestExecutor(t)

	if res := e.Execute("config fipe.width 160"); !res.Success {
		t.Fatal(res.Error)
	}
	fipe := s.Snapshot().State.Layouts.Story.Config.Fipe
	if fipe.Width != 160 || fipe.FontSize != 33 || fipe.Gap != 20 {
		t.Errorf("fipe = %+v", fipe)
	}

	// growing only one side keeps the tighter ratio
	e.Execute("config economy.width 640")
	economy := s.Snapshot().State.Layouts.Story.Config.Economy
	if economy.FontSize != 65 || economy.Gap != 40 {
		t.Errorf("economy = %+v", economy)
	}

	e.Execute("config brand.width 500")
	if got := s.Snapshot().State.Layouts.Story.Config.Brand.FontSize; got != 50 {
		t.Errorf("brand.fontSize changed to %v", got)
	}
}

func TestExecute_ConfigObjectMerges(t *testing.T) {
	e, s := newTestExecutor(t)

	e.Execute("config pan.y -40")
	if res := e.Execute(`config pan '{"x":40}'`); !res.Success {
		t.Fatalf("config pan: %s", res.Error)
	}
	if res := e.Execute(`config brand '{"fontSize":60}'`); !res.Success {
		t.Fatalf("config brand: %s", res.Error)
	}

	cfg := s.Snapshot().State.Layouts.Story.Config
	if cfg.Pan.X != 40 || cfg.Pan.Y != -40 {
		t.Errorf("pan = %+v, want x=40 with y kept at -40", cfg.Pan)
	}
	if cfg.Brand.BackgroundColor != karcard.ColorNeon || cfg.Brand.FontSize != 60 {
		t.Errorf("brand = %+v", cfg.Brand)
	}

	help := e.Execute("help").Message
	if !strings.Contains(help, "merge a JSON object") || strings.Contains(help, "replace pan") {
		t.Error("help text does not describe the merge")
	}
}
