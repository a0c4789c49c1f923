// Package karcard defines the types for the persisted KarCard editor state
package karcard

// SchemaVersion is written into every persisted state. Blobs carrying any
// other version are discarded on load.
const SchemaVersion = 2

// Format selects the output aspect-ratio preset
type Format string

const (
	FormatStory  Format = "story"  // 1080x1920
	FormatPoster Format = "poster" // 1080x1350
)

// Size returns the canvas dimensions in pixels for the format
func (f Format) Size() (width, height int) {
	switch f {
	case FormatPoster:
		return 1080, 1350
	default:
		return 1080, 1920
	}
}

// Valid reports whether f is one of the known formats
func (f Format) Valid() bool {
	return f == FormatStory || f == FormatPoster
}

// State is the root object persisted between sessions
type State struct {
	Version int         `json:"version"`
	Image   *string     `json:"image"`
	Data    VehicleData `json:"data"`
	Format  Format      `json:"format"`
	Layouts Layouts     `json:"layouts"`
}

// Layouts holds one independent layout per format
type Layouts struct {
	Story  LayoutConfig `json:"story"`
	Poster LayoutConfig `json:"poster"`
}

// Get returns the layout for a format
func (l *Layouts) Get(f Format) LayoutConfig {
	if f == FormatPoster {
		return l.Poster
	}
	return l.Story
}

// Set replaces the layout for a format
func (l *Layouts) Set(f Format, layout LayoutConfig) {
	if f == FormatPoster {
		l.Poster = layout
		return
	}
	l.Story = layout
}

// VehicleData is the listing shown on the card
type VehicleData struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Year         string  `json:"year"`
	FipePrice    float64 `json:"fipePrice"`
	SalePrice    float64 `json:"salePrice"`
	EconomyPrice float64 `json:"economyPrice"` // always fipePrice - salePrice once settled
	DetailsText  string  `json:"detailsText"`
}

// ItemConfig places and styles one overlay element.
// Width, Height, BackgroundColor and Gap only apply to box elements.
type ItemConfig struct {
	FontSize        float64 `json:"fontSize"`
	OffsetX         float64 `json:"offsetX"`
	OffsetY         float64 `json:"offsetY"`
	FontFamily      string  `json:"fontFamily,omitempty"`
	FontWeight      string  `json:"fontWeight,omitempty"`
	TextColor       string  `json:"textColor,omitempty"`
	Width           float64 `json:"width,omitempty"`
	Height          float64 `json:"height,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	Gap             float64 `json:"gap,omitempty"`
}

// Point is a 2D pixel offset
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CanvasConfig holds the subject transform plus one ItemConfig per element
type CanvasConfig struct {
	Zoom       float64 `json:"zoom"`
	Pan        Point   `json:"pan"`
	Rotation   float64 `json:"rotation"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	Exposure   float64 `json:"exposure"`

	Brand       ItemConfig `json:"brand"`
	Model       ItemConfig `json:"model"`
	Details     ItemConfig `json:"details"`
	Year        ItemConfig `json:"year"`
	Price       ItemConfig `json:"price"`
	Fipe        ItemConfig `json:"fipe"`
	Economy     ItemConfig `json:"economy"`
	KarcashLogo ItemConfig `json:"karcashLogo"`
	LogoImage   ItemConfig `json:"logoImage"` // width, offsetX, offsetY
}

// Element names accepted by CanvasConfig.Element
const (
	ElementBrand       = "brand"
	ElementModel       = "model"
	ElementDetails     = "details"
	ElementYear        = "year"
	ElementPrice       = "price"
	ElementFipe        = "fipe"
	ElementEconomy     = "economy"
	ElementKarcashLogo = "karcashLogo"
	ElementLogoImage   = "logoImage"
)

// Elements lists every element name in render order
var Elements = []string{
	ElementBrand, ElementModel, ElementDetails, ElementYear,
	ElementFipe, ElementKarcashLogo, ElementPrice, ElementEconomy, ElementLogoImage,
}

// Element returns a pointer to the named element, or nil for unknown names
func (c *CanvasConfig) Element(name string) *ItemConfig {
	switch name {
	case ElementBrand:
		return &c.Brand
	case ElementModel:
		return &c.Model
	case ElementDetails:
		return &c.Details
	case ElementYear:
		return &c.Year
	case ElementPrice:
		return &c.Price
	case ElementFipe:
		return &c.Fipe
	case ElementEconomy:
		return &c.Economy
	case ElementKarcashLogo:
		return &c.KarcashLogo
	case ElementLogoImage:
		return &c.LogoImage
	}
	return nil
}

// Background types
const (
	BackgroundImage    = "image"
	BackgroundSolid    = "solid"
	BackgroundGradient = "gradient"
)

// BackgroundConfig describes what is painted before the subject image
type BackgroundConfig struct {
	Type     string    `json:"type"`
	Value    string    `json:"value"`
	Gradient *Gradient `json:"gradient,omitempty"`
	Rotation float64   `json:"rotation,omitempty"` // 0 or 180, image backgrounds only
	Overlay  *Overlay  `json:"overlay,omitempty"`
}

// Gradient is a two-stop linear gradient
type Gradient struct {
	Colors    [2]string `json:"colors"`
	Direction float64   `json:"direction"` // degrees
}

// Overlay is a translucent mask painted over the background
type Overlay struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// LayoutConfig pairs a canvas config with its background for one format
type LayoutConfig struct {
	Config     CanvasConfig     `json:"config"`
	Background BackgroundConfig `json:"background"`
}
