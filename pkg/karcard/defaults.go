package karcard

import (
	"strconv"
	"time"
)

// Brand palette
const (
	ColorNeon  = "#CCFF00"
	ColorWhite = "#FFFFFF"
	ColorBlack = "#000000"
)

// DefaultDetailsText is the secondary line shown until the user edits it
const DefaultDetailsText = "Configurações"

// DefaultData returns the initial vehicle data
func DefaultData() VehicleData {
	return VehicleData{
		Year:        strconv.Itoa(time.Now().Year()),
		DetailsText: DefaultDetailsText,
	}
}

func defaultBackground() BackgroundConfig {
	return BackgroundConfig{
		Type:  BackgroundGradient,
		Value: "#080A09",
		Gradient: &Gradient{
			Colors:    [2]string{"#DBFC1D", "#080A09"},
			Direction: 180,
		},
		Overlay: &Overlay{Color: ColorBlack, Opacity: 0},
	}
}

// DefaultStoryLayout returns a fresh copy of the 1080x1920 layout
func DefaultStoryLayout() LayoutConfig {
	return LayoutConfig{
		Config: CanvasConfig{
			Zoom:       1,
			Brightness: 100,
			Contrast:   100,
			Saturation: 100,

			Brand:       ItemConfig{FontSize: 50, FontWeight: "bold", TextColor: ColorBlack, BackgroundColor: ColorNeon},
			Model:       ItemConfig{FontSize: 110, FontWeight: "900", TextColor: ColorNeon},
			Details:     ItemConfig{FontSize: 50, FontWeight: "normal", TextColor: ColorWhite},
			Year:        ItemConfig{FontSize: 50, FontWeight: "bold", TextColor: ColorNeon},
			Price:       ItemConfig{FontSize: 92, FontWeight: "900", TextColor: ColorNeon},
			Fipe:        ItemConfig{FontSize: 65, FontWeight: "900", TextColor: ColorBlack, Width: 320, Height: 110, BackgroundColor: ColorWhite, Gap: 40},
			Economy:     ItemConfig{FontSize: 65, FontWeight: "900", TextColor: ColorBlack, Width: 320, Height: 110, BackgroundColor: ColorNeon, Gap: 40},
			KarcashLogo: ItemConfig{FontSize: 30, FontWeight: "bold", TextColor: ColorWhite},
			LogoImage:   ItemConfig{Width: 260},
		},
		Background: defaultBackground(),
	}
}

// DefaultPosterLayout returns a fresh copy of the 1080x1350 layout.
// Several offsets are negative to pull content up on the shorter canvas.
func DefaultPosterLayout() LayoutConfig {
	return LayoutConfig{
		Config: CanvasConfig{
			Zoom:       1,
			Brightness: 100,
			Contrast:   100,
			Saturation: 100,

			Brand:       ItemConfig{FontSize: 44, OffsetY: -20, FontWeight: "bold", TextColor: ColorBlack, BackgroundColor: ColorNeon},
			Model:       ItemConfig{FontSize: 96, OffsetY: -30, FontWeight: "900", TextColor: ColorNeon},
			Details:     ItemConfig{FontSize: 42, OffsetY: -20, FontWeight: "normal", TextColor: ColorWhite},
			Year:        ItemConfig{FontSize: 42, OffsetY: -20, FontWeight: "bold", TextColor: ColorNeon},
			Price:       ItemConfig{FontSize: 84, OffsetY: -10, FontWeight: "900", TextColor: ColorNeon},
			Fipe:        ItemConfig{FontSize: 58, OffsetY: -10, FontWeight: "900", TextColor: ColorBlack, Width: 300, Height: 100, BackgroundColor: ColorWhite, Gap: 36},
			Economy:     ItemConfig{FontSize: 58, OffsetY: -30, FontWeight: "900", TextColor: ColorBlack, Width: 300, Height: 100, BackgroundColor: ColorNeon, Gap: 36},
			KarcashLogo: ItemConfig{FontSize: 28, OffsetY: -10, FontWeight: "bold", TextColor: ColorWhite},
			LogoImage:   ItemConfig{Width: 220, OffsetY: -20},
		},
		Background: defaultBackground(),
	}
}

// DefaultLayout returns the hard-coded layout for a format
func DefaultLayout(f Format) LayoutConfig {
	if f == FormatPoster {
		return DefaultPosterLayout()
	}
	return DefaultStoryLayout()
}

// DefaultState returns the root state used when nothing valid is persisted
func DefaultState() State {
	return State{
		Version: SchemaVersion,
		Data:    DefaultData(),
		Format:  FormatStory,
		Layouts: Layouts{
			Story:  DefaultStoryLayout(),
			Poster: DefaultPosterLayout(),
		},
	}
}
