package renderer

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/karcash/karcard/internal/layout"
)

// parseColor reads a #rgb or #rrggbb color, returning fallback for anything else
func parseColor(value string, fallback color.Color) color.Color {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	c, err := colorful.Hex(value)
	if err != nil {
		return fallback
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// withOpacity returns c with its alpha replaced by opacity in [0,1]
func withOpacity(c color.Color, opacity float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(layout.Clamp(opacity, 0, 1)*255 + 0.5)
	return n
}

var (
	colorBlack = color.NRGBA{A: 0xff}
	colorWhite = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorNeon  = color.NRGBA{R: 0xcc, G: 0xff, B: 0x00, A: 0xff}
)
