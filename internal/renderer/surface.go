package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Surface is the raster target a pass draws on
type Surface interface {
	Size() (width, height int)

	Push()
	Pop()
	Translate(x, y float64)
	Rotate(degrees float64)

	SetColor(c color.Color)
	SetLinearGradient(x0, y0, x1, y1 float64, from, to color.Color)
	FillRect(x, y, w, h float64)
	DrawImage(img image.Image, x, y, w, h float64)

	SetFontFace(face font.Face)
	MeasureString(s string) (w, h float64)
	// DrawString anchors s at (x, y): ax 0/0.5/1 is left/center/right,
	// ay 0/0.5/1 puts y on the baseline/middle/top of the text.
	DrawString(s string, x, y, ax, ay float64)

	Image() image.Image
}

// GGSurface implements Surface on a gg context
type GGSurface struct {
	dc *gg.Context
}

// NewGGSurface creates a w x h surface
func NewGGSurface(w, h int) Surface {
	return &GGSurface{dc: gg.NewContext(w, h)}
}

func (s *GGSurface) Size() (int, int) {
	return s.dc.Width(), s.dc.Height()
}

func (s *GGSurface) Push() { s.dc.Push() }
func (s *GGSurface) Pop()  { s.dc.Pop() }

func (s *GGSurface) Translate(x, y float64) { s.dc.Translate(x, y) }

func (s *GGSurface) Rotate(degrees float64) { s.dc.Rotate(gg.Radians(degrees)) }

func (s *GGSurface) SetColor(c color.Color) {
	s.dc.SetColor(c)
}

func (s *GGSurface) SetLinearGradient(x0, y0, x1, y1 float64, from, to color.Color) {
	grad := gg.NewLinearGradient(x0, y0, x1, y1)
	grad.AddColorStop(0, from)
	grad.AddColorStop(1, to)
	s.dc.SetFillStyle(grad)
}

func (s *GGSurface) FillRect(x, y, w, h float64) {
	s.dc.DrawRectangle(x, y, math.Max(0, w), math.Max(0, h))
	s.dc.Fill()
}

// DrawImage scales img into the w x h rectangle at (x, y) under the
// current transform.
func (s *GGSurface) DrawImage(img image.Image, x, y, w, h float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || w <= 0 || h <= 0 {
		return
	}

	s.dc.Push()
	s.dc.Translate(x, y)
	s.dc.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
	s.dc.DrawImage(img, -b.Min.X, -b.Min.Y)
	s.dc.Pop()
}

func (s *GGSurface) SetFontFace(face font.Face) {
	s.dc.SetFontFace(face)
}

func (s *GGSurface) MeasureString(str string) (float64, float64) {
	return s.dc.MeasureString(str)
}

func (s *GGSurface) DrawString(str string, x, y, ax, ay float64) {
	s.dc.DrawStringAnchored(str, x, y, ax, ay)
}

func (s *GGSurface) Image() image.Image {
	return s.dc.Image()
}
