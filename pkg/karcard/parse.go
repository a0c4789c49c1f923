package karcard

import (
	"encoding/json"
	"fmt"
	"math"
)

// Parse parses a persisted state blob
func Parse(data []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	if err := Validate(&state); err != nil {
		return nil, err
	}

	return &state, nil
}

// ToJSON converts a State to JSON bytes
func (s *State) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// Clone returns a deep copy; the pointer fields are never shared
func (s State) Clone() State {
	out := s
	if s.Image != nil {
		ref := *s.Image
		out.Image = &ref
	}
	out.Layouts.Story = s.Layouts.Story.Clone()
	out.Layouts.Poster = s.Layouts.Poster.Clone()
	return out
}

// Clone returns a deep copy of the layout
func (l LayoutConfig) Clone() LayoutConfig {
	out := l
	out.Background = l.Background.Clone()
	return out
}

// Clone returns a deep copy of the background
func (b BackgroundConfig) Clone() BackgroundConfig {
	out := b
	if b.Gradient != nil {
		g := *b.Gradient
		out.Gradient = &g
	}
	if b.Overlay != nil {
		o := *b.Overlay
		out.Overlay = &o
	}
	return out
}

// Margin returns fipePrice - salePrice, treating NaN prices as zero
func Margin(d VehicleData) float64 {
	return price(d.FipePrice) - price(d.SalePrice)
}

// DiscountPercentage returns the whole-number discount of the sale price
// against the Fipe reference, never negative.
func DiscountPercentage(d VehicleData) int {
	fipe := price(d.FipePrice)
	if fipe <= 0 {
		return 0
	}
	discount := (fipe - price(d.SalePrice)) / fipe * 100
	return int(math.Max(0, math.Round(discount)))
}

func price(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
