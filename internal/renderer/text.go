package renderer

import (
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFontFamily is used when an element names no family or an unknown one
const DefaultFontFamily = "Ubuntu"

// FontFamilies is the fixed set of families an element may ask for
var FontFamilies = []string{"Ubuntu", "Montserrat", "Inter", "Roboto", "Oswald"}

type faceKey struct {
	family string
	weight string
	size   float64
}

// Fonts resolves (family, weight, size) to a font face. Font files are looked
// up as <dir>/<Family>-<Weight>.ttf or .otf; anything missing falls back to
// the embedded Go fonts.
type Fonts struct {
	dir string

	mu     sync.Mutex
	parsed map[string]*opentype.Font
	faces  map[faceKey]font.Face
}

// NewFonts creates a resolver reading font files from dir. An empty dir
// uses the embedded fonts only.
func NewFonts(dir string) *Fonts {
	return &Fonts{
		dir:    dir,
		parsed: make(map[string]*opentype.Font),
		faces:  make(map[faceKey]font.Face),
	}
}

// Face returns a cached face for the given family, CSS weight and pixel size
func (f *Fonts) Face(family, weight string, size float64) font.Face {
	family = normalizeFamily(family)
	weight = weightName(weight)
	if size < 1 || math.IsNaN(size) {
		size = 1
	}

	key := faceKey{family: family, weight: weight, size: size}

	f.mu.Lock()
	defer f.mu.Unlock()

	if face, ok := f.faces[key]; ok {
		return face
	}

	face, err := opentype.NewFace(f.fontLocked(family, weight), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create font face %s-%s: %v", family, weight, err)
		face, _ = opentype.NewFace(embeddedFont(weight), &opentype.FaceOptions{Size: size, DPI: 72})
	}

	f.faces[key] = face
	return face
}

func (f *Fonts) fontLocked(family, weight string) *opentype.Font {
	name := family + "-" + weight
	if fnt, ok := f.parsed[name]; ok {
		return fnt
	}

	fnt := f.loadFile(family, weight)
	if fnt == nil && weight == "Black" {
		fnt = f.loadFile(family, "Bold")
	}
	if fnt == nil {
		fnt = embeddedFont(weight)
	}

	f.parsed[name] = fnt
	return fnt
}

func (f *Fonts) loadFile(family, weight string) *opentype.Font {
	if f.dir == "" {
		return nil
	}

	for _, ext := range []string{".ttf", ".otf"} {
		path := filepath.Join(f.dir, family+"-"+weight+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fnt, err := opentype.Parse(data)
		if err != nil {
			log.Printf("⚠️  Failed to parse font %s: %v", path, err)
			continue
		}
		return fnt
	}

	return nil
}

var (
	embeddedOnce  sync.Once
	embeddedFonts map[string]*opentype.Font
)

func embeddedFont(weight string) *opentype.Font {
	embeddedOnce.Do(func() {
		embeddedFonts = map[string]*opentype.Font{
			"Regular": mustParse(goregular.TTF),
			"Medium":  mustParse(gomedium.TTF),
			"Bold":    mustParse(gobold.TTF),
		}
	})

	if weight == "Black" {
		weight = "Bold"
	}
	if fnt, ok := embeddedFonts[weight]; ok {
		return fnt
	}
	return embeddedFonts["Regular"]
}

func mustParse(ttf []byte) *opentype.Font {
	fnt, err := opentype.Parse(ttf)
	if err != nil {
		panic(fmt.Sprintf("embedded font: %v", err))
	}
	return fnt
}

func normalizeFamily(family string) string {
	for _, known := range FontFamilies {
		if strings.EqualFold(family, known) {
			return known
		}
	}
	return DefaultFontFamily
}

// weightName maps a CSS font-weight onto a font file suffix
func weightName(weight string) string {
	switch strings.ToLower(strings.TrimSpace(weight)) {
	case "900", "black", "heavy":
		return "Black"
	case "bold", "bolder", "700", "800":
		return "Bold"
	case "500", "600", "medium", "semibold":
		return "Medium"
	default:
		return "Regular"
	}
}

// drawText sets up the element's face and color and draws s anchored at (x, y)
func drawText(s Surface, face font.Face, c color.Color, str string, x, y, ax, ay float64) {
	s.SetFontFace(face)
	s.SetColor(c)
	s.DrawString(str, x, y, ax, ay)
}

// measureWith returns a width measure for face, as used by layout.Wrap
func measureWith(s Surface, face font.Face) func(string) float64 {
	s.SetFontFace(face)
	return func(str string) float64 {
		w, _ := s.MeasureString(str)
		return w
	}
}
