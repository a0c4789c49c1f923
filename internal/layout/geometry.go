package layout

import (
	"math"
)

// GradientEndpoints returns the start and end points of a linear gradient
// drawn at angleDeg across a w x h canvas. 0 degrees points up and angles
// turn clockwise; both endpoints sit half a diagonal from the center so the
// gradient spans the whole canvas at any angle.
func GradientEndpoints(angleDeg, w, h float64) (x0, y0, x1, y1 float64) {
	theta := (angleDeg - 90) * math.Pi / 180
	dx, dy := math.Cos(theta), math.Sin(theta)

	cx, cy := w/2, h/2
	half := math.Hypot(w, h) / 2

	return cx - dx*half, cy - dy*half, cx + dx*half, cy + dy*half
}

// NormalizeAngle maps any angle into [0, 360)
func NormalizeAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// SuggestBoxMetrics scales a price box's font size and label gap by the
// tighter of the two resize ratios. Callers may ignore the suggestion.
func SuggestBoxMetrics(newWidth, newHeight, baseWidth, baseHeight, baseFont, baseGap float64) (font, gap float64) {
	if baseWidth <= 0 || baseHeight <= 0 {
		return baseFont, baseGap
	}
	factor := math.Min(newWidth/baseWidth, newHeight/baseHeight)
	if factor < 0 {
		factor = 0
	}
	return math.Round(baseFont * factor), math.Round(baseGap * factor)
}

// CoverScale returns the factor that makes an image fully cover the canvas,
// multiplied by zoom.
func CoverScale(canvasW, canvasH, imgW, imgH, zoom float64) float64 {
	if imgW <= 0 || imgH <= 0 {
		return 0
	}
	return math.Max(canvasW/imgW, canvasH/imgH) * zoom
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
