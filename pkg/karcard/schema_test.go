package karcard

import (
	"reflect"
	"testing"
)

func TestValidate_DefaultState(t *testing.T) {
	state := DefaultState()

	if err := Validate(&state); err != nil {
		t.Errorf("Expected default state to be valid, got error: %v", err)
	}
}

func TestValidate_InvalidVersion(t *testing.T) {
	state := DefaultState()
	state.Version = 1

	if err := Validate(&state); err == nil {
		t.Error("Expected error for old schema version")
	}
}

func TestValidate_InvalidFormat(t *testing.T) {
	state := DefaultState()
	state.Format = "feed"

	if err := Validate(&state); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestValidate_InvalidBackground(t *testing.T) {
	cases := []BackgroundConfig{
		{Type: "video", Value: "x"},
		{Type: BackgroundImage},
		{Type: BackgroundGradient},
		{Type: BackgroundSolid, Value: "#000", Rotation: 90},
		{Type: BackgroundSolid, Value: "#000", Overlay: &Overlay{Color: "#000", Opacity: 1.5}},
	}

	for i, bg := range cases {
		if err := ValidateBackground(&bg); err == nil {
			t.Errorf("case %d: expected error for background %+v", i, bg)
		}
	}
}

func TestFormatSize(t *testing.T) {
	w, h := FormatStory.Size()
	if w != 1080 || h != 1920 {
		t.Errorf("story size = %dx%d, want 1080x1920", w, h)
	}

	w, h = FormatPoster.Size()
	if w != 1080 || h != 1350 {
		t.Errorf("poster size = %dx%d, want 1080x1350", w, h)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	ref := "asset:1234"
	state := DefaultState()
	state.Image = &ref
	state.Format = FormatPoster
	state.Data = VehicleData{
		Brand:        "Honda",
		Model:        "Civic Touring 1.5 Turbo",
		Year:         "2022",
		FipePrice:    120000,
		SalePrice:    99000,
		EconomyPrice: 21000,
		DetailsText:  "Teto solar\nCouro",
	}
	state.Layouts.Story.Config.Brand.FontSize = 60
	state.Layouts.Poster.Background = BackgroundConfig{Type: BackgroundImage, Value: "bg.png", Rotation: 180}

	data, err := state.ToJSON()
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if !reflect.DeepEqual(*parsed, state) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", *parsed, state)
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"image":null,"data":{},"config":{},"format":"story"}`,
		`{"version":2,"format":"story"}`,
	}

	for _, in := range inputs {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Expected error for %s", in)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	state := DefaultState()
	clone := state.Clone()

	clone.Layouts.Story.Background.Gradient.Colors[0] = "#FF0000"
	clone.Layouts.Poster.Background.Overlay.Opacity = 0.5

	if state.Layouts.Story.Background.Gradient.Colors[0] == "#FF0000" {
		t.Error("Clone shares gradient with original")
	}
	if state.Layouts.Poster.Background.Overlay.Opacity != 0 {
		t.Error("Clone shares overlay with original")
	}
}

func TestDefaultLayouts_Independent(t *testing.T) {
	a := DefaultStoryLayout()
	b := DefaultStoryLayout()

	a.Background.Gradient.Direction = 45
	if b.Background.Gradient.Direction != 180 {
		t.Error("Default layouts share background state")
	}

	if reflect.DeepEqual(DefaultStoryLayout(), DefaultPosterLayout()) {
		t.Error("Story and poster defaults should differ")
	}
}

func TestDiscountPercentage(t *testing.T) {
	cases := []struct {
		fipe, sale float64
		want       int
	}{
		{120000, 99000, 18},
		{100000, 100000, 0},
		{100000, 120000, 0},
		{0, 50000, 0},
		{-10, 5, 0},
		{80000, 0, 100},
		{200000, 150500, 25},
	}

	for _, c := range cases {
		got := DiscountPercentage(VehicleData{FipePrice: c.fipe, SalePrice: c.sale})
		if got != c.want {
			t.Errorf("DiscountPercentage(%v, %v) = %d, want %d", c.fipe, c.sale, got, c.want)
		}
	}
}

func TestMargin(t *testing.T) {
	if got := Margin(VehicleData{FipePrice: 120000, SalePrice: 99000}); got != 21000 {
		t.Errorf("Margin = %v, want 21000", got)
	}
	if got := Margin(VehicleData{FipePrice: 50000, SalePrice: 60000}); got != -10000 {
		t.Errorf("Margin = %v, want -10000", got)
	}
}

func TestElement_Unknown(t *testing.T) {
	cfg := DefaultStoryLayout().Config
	if cfg.Element("wheels") != nil {
		t.Error("Expected nil for unknown element")
	}
	for _, name := range Elements {
		if cfg.Element(name) == nil {
			t.Errorf("Element(%q) returned nil", name)
		}
	}
}
