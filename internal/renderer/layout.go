package renderer

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/karcash/karcard/internal/layout"
	"github.com/karcash/karcard/pkg/karcard"
)

// Column anchors shared by both formats
const (
	leftX        = 80.0
	rightX       = 1000.0
	modelWrapW   = 550.0
	modelTopGap  = 100.0 // brand badge top to model top
	blockGap     = 10.0  // model to details, details to year
	badgePadX    = 60.0
	badgePadY    = 30.0
	logoTop      = 60.0
	karcashGap   = 150.0 // right top to KARCASH label
	salePriceGap = 43.0  // KARCASH label to sale price
	economyGap   = 330.0 // right top to the margin box
)

// Price box defaults and proportions
const (
	boxWidth     = 320.0
	boxHeight    = 110.0
	boxValueFont = 65.0
	boxLabelTop  = 25.0
	labelRatio   = 22.0 / 65.0
	boxSymRatio  = 30.0 / 65.0
	saleSymRatio = 0.42
	defaultLogoW = 260.0
	minZoom      = 0.01
)

// Fixed captions and the placeholders drawn for empty fields
const (
	labelFipe    = "TABELA FIPE:"
	labelEconomy = "ABAIXO DA FIPE:"
	labelKarcash = "KARCASH:"

	brandPlaceholder = "MARCA"
	modelPlaceholder = "MODELO"
	yearPlaceholder  = "ANO"
)

// anchors returns the left column top and the right column top
func anchors(f karcard.Format) (top, rightTop float64) {
	if f == karcard.FormatPoster {
		return 400, 320
	}
	return 575, 470
}

// render runs one full pass: clear, background, subject, overlays
func (e *Engine) render(s Surface, snap *Snapshot) {
	w, h := s.Size()

	s.SetColor(colorBlack)
	s.FillRect(0, 0, float64(w), float64(h))

	e.drawBackground(s, &snap.Background)
	e.drawSubject(s, snap)
	e.drawOverlays(s, snap)
}

func (e *Engine) drawBackground(s Surface, bg *karcard.BackgroundConfig) {
	w, h := s.Size()
	fw, fh := float64(w), float64(h)

	switch bg.Type {
	case karcard.BackgroundImage:
		img, ok := e.cache.Get(bg.Value)
		if !ok {
			break
		}
		s.Push()
		if bg.Rotation == 180 {
			s.Translate(fw/2, fh/2)
			s.Rotate(180)
			s.Translate(-fw/2, -fh/2)
		}
		s.DrawImage(img, 0, 0, fw, fh)
		s.Pop()

	case karcard.BackgroundSolid:
		s.SetColor(parseColor(bg.Value, colorBlack))
		s.FillRect(0, 0, fw, fh)

	case karcard.BackgroundGradient:
		if bg.Gradient == nil {
			break
		}
		x0, y0, x1, y1 := layout.GradientEndpoints(bg.Gradient.Direction, fw, fh)
		s.SetLinearGradient(x0, y0, x1, y1,
			parseColor(bg.Gradient.Colors[0], colorBlack),
			parseColor(bg.Gradient.Colors[1], colorBlack))
		s.FillRect(0, 0, fw, fh)
	}

	if bg.Overlay != nil && bg.Overlay.Opacity > 0 {
		s.SetColor(withOpacity(parseColor(bg.Overlay.Color, colorBlack), bg.Overlay.Opacity))
		s.FillRect(0, 0, fw, fh)
	}
}

func (e *Engine) drawSubject(s Surface, snap *Snapshot) {
	if snap.Image == nil || *snap.Image == "" {
		return
	}
	ref := *snap.Image

	img, ok := e.cache.Get(ref)
	if !ok {
		return
	}

	cfg := &snap.Config
	img = e.filteredSubject(ref, img, cfg)

	w, h := s.Size()
	b := img.Bounds()
	iw, ih := float64(b.Dx()), float64(b.Dy())
	zoom := cfg.Zoom
	if zoom <= 0 || math.IsNaN(zoom) {
		zoom = minZoom
	}
	scale := layout.CoverScale(float64(w), float64(h), iw, ih, zoom)
	dw, dh := iw*scale, ih*scale

	s.Push()
	s.Translate(float64(w)/2+cfg.Pan.X, float64(h)/2+cfg.Pan.Y)
	s.Rotate(cfg.Rotation)
	s.DrawImage(img, -dw/2, -dh/2, dw, dh)
	s.Pop()
}

// filteredSubject reuses the last filtered rendition while the subject and
// its adjustments are unchanged. Exposure adds to brightness.
func (e *Engine) filteredSubject(ref string, img image.Image, cfg *karcard.CanvasConfig) image.Image {
	key := filterKey{
		ref:        ref,
		brightness: cfg.Brightness + cfg.Exposure,
		contrast:   cfg.Contrast,
		saturation: cfg.Saturation,
	}
	if e.filtered.img != nil && e.filtered.key == key {
		return e.filtered.img
	}

	out := applyFilters(img, key.brightness, key.contrast, key.saturation)
	e.filtered.key = key
	e.filtered.img = out
	return out
}

func (e *Engine) drawOverlays(s Surface, snap *Snapshot) {
	top, rightTop := anchors(snap.Format)
	cfg := &snap.Config
	data := &snap.Data

	// left column
	e.drawBrand(s, &cfg.Brand, textOr(data.Brand, brandPlaceholder), top)
	modelBottom := e.drawModel(s, &cfg.Model, textOr(data.Model, modelPlaceholder), top+modelTopGap)
	detailsBottom := e.drawDetails(s, &cfg.Details, data.DetailsText, modelBottom+blockGap)
	e.drawYear(s, &cfg.Year, textOr(data.Year, yearPlaceholder), detailsBottom+blockGap)

	// right column
	e.drawPriceBox(s, &cfg.Fipe, labelFipe, data.FipePrice, rightTop, colorWhite)
	e.drawKarcashLabel(s, &cfg.KarcashLogo, rightTop+karcashGap)
	e.drawSalePrice(s, &cfg.Price, data.SalePrice, rightTop+karcashGap+salePriceGap)
	e.drawPriceBox(s, &cfg.Economy, labelEconomy, karcard.Margin(*data), rightTop+economyGap, colorNeon)

	e.drawLogo(s, &cfg.LogoImage)
}

func (e *Engine) drawBrand(s Surface, item *karcard.ItemConfig, text string, top float64) {
	size := fontSize(item, 50)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "bold"), size)
	text = strings.ToUpper(text)

	tw := measureWith(s, face)(text)
	bw, bh := tw+badgePadX, size+badgePadY
	x, y := leftX+item.OffsetX, top+item.OffsetY

	s.SetColor(parseColor(item.BackgroundColor, colorNeon))
	s.FillRect(x, y, bw, bh)
	drawText(s, face, parseColor(item.TextColor, colorBlack), text, x+bw/2, y+bh/2, 0.5, 0.5)
}

// drawModel returns the bottom of the rendered block
func (e *Engine) drawModel(s Surface, item *karcard.ItemConfig, text string, top float64) float64 {
	size := fontSize(item, 110)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "900"), size)

	lines := layout.Wrap(strings.ToUpper(text), modelWrapW, measureWith(s, face))
	x, y := leftX+item.OffsetX, top+item.OffsetY
	c := parseColor(item.TextColor, colorNeon)

	for i, line := range lines {
		drawText(s, face, c, line, x, y+float64(i)*size*layout.HeadlineLineHeight, 0, 1)
	}
	return y + layout.BlockHeight(len(lines), size, layout.HeadlineLineHeight)
}

// drawDetails returns the bottom of the rendered block
func (e *Engine) drawDetails(s Surface, item *karcard.ItemConfig, text string, top float64) float64 {
	size := fontSize(item, 50)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "normal"), size)

	lines := layout.SplitLines(text)
	x, y := leftX+item.OffsetX, top+item.OffsetY
	c := parseColor(item.TextColor, colorWhite)

	for i, line := range lines {
		drawText(s, face, c, line, x, y+float64(i)*size*layout.SecondaryLineHeight, 0, 1)
	}
	return y + layout.BlockHeight(len(lines), size, layout.SecondaryLineHeight)
}

func (e *Engine) drawYear(s Surface, item *karcard.ItemConfig, text string, top float64) {
	size := fontSize(item, 50)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "bold"), size)
	drawText(s, face, parseColor(item.TextColor, colorNeon), text, leftX+item.OffsetX, top+item.OffsetY, 0, 1)
}

// drawPriceBox draws a filled box with a small label and a right-aligned
// value prefixed by the currency symbol.
func (e *Engine) drawPriceBox(s Surface, item *karcard.ItemConfig, label string, value, top float64, bgDefault color.Color) {
	size := fontSize(item, boxValueFont)
	bw := positiveOr(item.Width, boxWidth)
	bh := positiveOr(item.Height, boxHeight)
	gap := math.Max(item.Gap, 0)

	right := rightX + item.OffsetX
	y := top + item.OffsetY

	s.SetColor(parseColor(item.BackgroundColor, bgDefault))
	s.FillRect(right-bw, y, bw, bh)

	c := parseColor(item.TextColor, colorBlack)

	labelFace := e.fonts.Face(item.FontFamily, "bold", math.Round(size*labelRatio))
	labelY := y + boxLabelTop
	drawText(s, labelFace, c, label, right-25, labelY, 1, 0.5)

	valueFace := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "900"), size)
	valueText := layout.FormatPrice(value)
	valueX, valueY := right-20, labelY+gap
	valueW := measureWith(s, valueFace)(valueText)
	drawText(s, valueFace, c, valueText, valueX, valueY, 1, 0.5)

	symFace := e.fonts.Face(item.FontFamily, "bold", math.Round(size*boxSymRatio))
	drawText(s, symFace, c, layout.CurrencySymbol, valueX-valueW-10, valueY+2, 1, 0.5)
}

func (e *Engine) drawKarcashLabel(s Surface, item *karcard.ItemConfig, top float64) {
	size := fontSize(item, 30)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "bold"), size)
	drawText(s, face, parseColor(item.TextColor, colorWhite), labelKarcash, rightX+item.OffsetX, top+item.OffsetY, 1, 1)
}

func (e *Engine) drawSalePrice(s Surface, item *karcard.ItemConfig, value, top float64) {
	size := fontSize(item, 92)
	face := e.fonts.Face(item.FontFamily, weightOr(item.FontWeight, "900"), size)
	c := parseColor(item.TextColor, colorNeon)

	text := layout.FormatPrice(value)
	x, y := rightX+item.OffsetX, top+item.OffsetY
	valueW := measureWith(s, face)(text)
	drawText(s, face, c, text, x, y, 1, 1)

	symFace := e.fonts.Face(item.FontFamily, "bold", math.Round(size*saleSymRatio))
	drawText(s, symFace, c, layout.CurrencySymbol, x-valueW-15, y+size*saleSymRatio, 1, 1)
}

// drawLogo draws the badge logo once it has decoded; until then it is skipped
func (e *Engine) drawLogo(s Surface, item *karcard.ItemConfig) {
	if e.logoRef == "" {
		return
	}
	img, ok := e.cache.Get(e.logoRef)
	if !ok {
		return
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}

	w, _ := s.Size()
	lw := positiveOr(item.Width, defaultLogoW)
	lh := lw * float64(b.Dy()) / float64(b.Dx())
	x := (float64(w)-lw)/2 + item.OffsetX
	y := logoTop + item.OffsetY

	s.DrawImage(img, x, y, lw, lh)
}

// fontSize falls back to the element default for unset or non-positive sizes
func fontSize(item *karcard.ItemConfig, fallback float64) float64 {
	return positiveOr(item.FontSize, fallback)
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func weightOr(weight, fallback string) string {
	if weight == "" {
		return fallback
	}
	return weight
}

func textOr(text, placeholder string) string {
	if strings.TrimSpace(text) == "" {
		return placeholder
	}
	return text
}
