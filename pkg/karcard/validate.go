package karcard

import (
	"fmt"
)

// Validate checks that a State has the shape the editor expects
func Validate(s *State) error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", s.Version, SchemaVersion)
	}

	if !s.Format.Valid() {
		return fmt.Errorf("invalid format: %q (must be story or poster)", s.Format)
	}

	if s.Data.FipePrice < 0 {
		return fmt.Errorf("data: fipePrice must not be negative")
	}
	if s.Data.SalePrice < 0 {
		return fmt.Errorf("data: salePrice must not be negative")
	}

	for _, f := range []Format{FormatStory, FormatPoster} {
		layout := s.Layouts.Get(f)
		if err := validateLayout(&layout); err != nil {
			return fmt.Errorf("layouts.%s: %w", f, err)
		}
	}

	return nil
}

func validateLayout(l *LayoutConfig) error {
	if l.Config.Zoom <= 0 {
		return fmt.Errorf("config.zoom must be positive")
	}

	for _, name := range Elements {
		item := l.Config.Element(name)
		if item.FontSize < 0 {
			return fmt.Errorf("config.%s.fontSize must not be negative", name)
		}
		if item.Width < 0 || item.Height < 0 {
			return fmt.Errorf("config.%s: width and height must not be negative", name)
		}
	}

	return ValidateBackground(&l.Background)
}

// ValidateBackground checks a background description
func ValidateBackground(b *BackgroundConfig) error {
	switch b.Type {
	case BackgroundImage:
		if b.Value == "" {
			return fmt.Errorf("background: image requires a value")
		}
	case BackgroundSolid:
		if b.Value == "" {
			return fmt.Errorf("background: solid requires a color value")
		}
	case BackgroundGradient:
		if b.Gradient == nil {
			return fmt.Errorf("background: gradient requires gradient colors")
		}
		if b.Gradient.Colors[0] == "" || b.Gradient.Colors[1] == "" {
			return fmt.Errorf("background: gradient requires two colors")
		}
	default:
		return fmt.Errorf("background: invalid type '%s' (must be image, solid, or gradient)", b.Type)
	}

	if b.Rotation != 0 && b.Rotation != 180 {
		return fmt.Errorf("background: rotation must be 0 or 180, got %v", b.Rotation)
	}

	if b.Overlay != nil && (b.Overlay.Opacity < 0 || b.Overlay.Opacity > 1) {
		return fmt.Errorf("background: overlay opacity must be within [0,1], got %v", b.Overlay.Opacity)
	}

	return nil
}
