package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/karcash/karcard/internal/layout"
	"github.com/karcash/karcard/pkg/karcard"
)

var (
	// ErrUnknownField is returned for field or element names the state does not have
	ErrUnknownField = errors.New("unknown field")
	// ErrDerivedField is returned when writing a value that is always computed
	ErrDerivedField = errors.New("field is derived and cannot be set")
	// ErrInvalidValue is returned when a value has the wrong shape for its field
	ErrInvalidValue = errors.New("invalid value")
)

// Op is one state transition. apply receives a private copy of the current
// root and returns the next root.
type Op interface {
	apply(s karcard.State) (karcard.State, error)
}

// SetImage replaces the subject image reference; nil clears it
type SetImage struct {
	Ref *string
}

func (o SetImage) apply(s karcard.State) (karcard.State, error) {
	if o.Ref == nil || *o.Ref == "" {
		s.Image = nil
		return s, nil
	}
	ref := *o.Ref
	s.Image = &ref
	return s, nil
}

// ReplaceImage swaps the subject image only while it still equals From
type ReplaceImage struct {
	From string
	To   string
}

func (o ReplaceImage) apply(s karcard.State) (karcard.State, error) {
	if s.Image == nil || *s.Image != o.From {
		return s, ErrImageChanged
	}
	to := o.To
	s.Image = &to
	return s, nil
}

// SetFormat switches the active format. Neither layout is touched.
type SetFormat struct {
	Format karcard.Format
}

func (o SetFormat) apply(s karcard.State) (karcard.State, error) {
	if !o.Format.Valid() {
		return s, fmt.Errorf("%w: format %q", ErrInvalidValue, o.Format)
	}
	s.Format = o.Format
	return s, nil
}

// UpdateData replaces one vehicle data field. Prices are parsed leniently;
// input that does not parse is stored as zero.
type UpdateData struct {
	Field string
	Value string
}

func (o UpdateData) apply(s karcard.State) (karcard.State, error) {
	switch o.Field {
	case "brand":
		s.Data.Brand = o.Value
	case "model":
		s.Data.Model = o.Value
	case "year":
		s.Data.Year = o.Value
	case "detailsText":
		s.Data.DetailsText = o.Value
	case "fipePrice":
		s.Data.FipePrice = parsePrice(o.Value)
	case "salePrice":
		s.Data.SalePrice = parsePrice(o.Value)
	case "economyPrice":
		return s, fmt.Errorf("%w: %s", ErrDerivedField, o.Field)
	default:
		return s, fmt.Errorf("%w: data.%s", ErrUnknownField, o.Field)
	}
	return s, nil
}

// groupedThousands matches pt-BR integers written with dot separators
var groupedThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// parsePrice accepts "99000", "99000.50", "99.000" and "99.000,50"
func parsePrice(value string) float64 {
	v := strings.TrimSpace(value)
	v = strings.TrimPrefix(v, layout.CurrencySymbol)
	v = strings.TrimSpace(v)
	switch {
	case strings.Contains(v, ","):
		v = strings.ReplaceAll(v, ".", "")
		v = strings.ReplaceAll(v, ",", ".")
	case groupedThousands.MatchString(v):
		v = strings.ReplaceAll(v, ".", "")
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Scalar canvas fields accepted by ReplaceField
const (
	FieldZoom       = "zoom"
	FieldPan        = "pan"
	FieldRotation   = "rotation"
	FieldBrightness = "brightness"
	FieldContrast   = "contrast"
	FieldSaturation = "saturation"
	FieldExposure   = "exposure"
)

// ReplaceField replaces one field of the active layout's CanvasConfig
// wholesale. Value must be a float64 for scalar fields, a karcard.Point for
// pan and a karcard.ItemConfig for elements.
type ReplaceField struct {
	Field string
	Value any
}

func (o ReplaceField) apply(s karcard.State) (karcard.State, error) {
	l := s.Layouts.Get(s.Format)
	cfg := &l.Config

	if item := cfg.Element(o.Field); item != nil {
		v, ok := o.Value.(karcard.ItemConfig)
		if !ok {
			return s, fmt.Errorf("%w: %s expects an item config, got %T", ErrInvalidValue, o.Field, o.Value)
		}
		*item = v
		s.Layouts.Set(s.Format, l)
		return s, nil
	}

	if o.Field == FieldPan {
		v, ok := o.Value.(karcard.Point)
		if !ok {
			return s, fmt.Errorf("%w: pan expects a point, got %T", ErrInvalidValue, o.Value)
		}
		cfg.Pan = v
		s.Layouts.Set(s.Format, l)
		return s, nil
	}

	target := scalarField(cfg, o.Field)
	if target == nil {
		return s, fmt.Errorf("%w: config.%s", ErrUnknownField, o.Field)
	}
	v, ok := toFloat(o.Value)
	if !ok {
		return s, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidValue, o.Field, o.Value)
	}
	if o.Field == FieldZoom && v <= 0 {
		return s, fmt.Errorf("%w: zoom must be positive", ErrInvalidValue)
	}
	*target = v
	s.Layouts.Set(s.Format, l)
	return s, nil
}

func scalarField(cfg *karcard.CanvasConfig, field string) *float64 {
	switch field {
	case FieldZoom:
		return &cfg.Zoom
	case FieldRotation:
		return &cfg.Rotation
	case FieldBrightness:
		return &cfg.Brightness
	case FieldContrast:
		return &cfg.Contrast
	case FieldSaturation:
		return &cfg.Saturation
	case FieldExposure:
		return &cfg.Exposure
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ItemPatch carries the sub-properties of an element to change. Nil fields
// are left as they are.
type ItemPatch struct {
	FontSize        *float64 `json:"fontSize,omitempty"`
	OffsetX         *float64 `json:"offsetX,omitempty"`
	OffsetY         *float64 `json:"offsetY,omitempty"`
	FontFamily      *string  `json:"fontFamily,omitempty"`
	FontWeight      *Weight  `json:"fontWeight,omitempty"`
	TextColor       *string  `json:"textColor,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	Gap             *float64 `json:"gap,omitempty"`
}

// Merge returns item with the patch applied
func (p ItemPatch) Merge(item karcard.ItemConfig) karcard.ItemConfig {
	setFloat(&item.FontSize, p.FontSize)
	setFloat(&item.OffsetX, p.OffsetX)
	setFloat(&item.OffsetY, p.OffsetY)
	setString(&item.FontFamily, p.FontFamily)
	if p.FontWeight != nil {
		item.FontWeight = string(*p.FontWeight)
	}
	setString(&item.TextColor, p.TextColor)
	setFloat(&item.Width, p.Width)
	setFloat(&item.Height, p.Height)
	setString(&item.BackgroundColor, p.BackgroundColor)
	setFloat(&item.Gap, p.Gap)
	return item
}

// Weight is a CSS font-weight as sent by a client: either a keyword
// ("bold") or a number (700)
type Weight string

// UnmarshalJSON accepts a JSON string or number
func (w *Weight) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*w = Weight(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("fontWeight must be a string or a number")
	}
	*w = Weight(n.String())
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// MergeElement shallow-merges a patch into one element of the active layout
type MergeElement struct {
	Element string
	Patch   ItemPatch
}

func (o MergeElement) apply(s karcard.State) (karcard.State, error) {
	l := s.Layouts.Get(s.Format)
	item := l.Config.Element(o.Element)
	if item == nil {
		return s, fmt.Errorf("%w: config.%s", ErrUnknownField, o.Element)
	}
	*item = o.Patch.Merge(*item)
	s.Layouts.Set(s.Format, l)
	return s, nil
}

// MergePan updates one or both pan coordinates of the active layout
type MergePan struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

func (o MergePan) apply(s karcard.State) (karcard.State, error) {
	l := s.Layouts.Get(s.Format)
	setFloat(&l.Config.Pan.X, o.X)
	setFloat(&l.Config.Pan.Y, o.Y)
	s.Layouts.Set(s.Format, l)
	return s, nil
}

// SetBackground replaces the active layout's background wholesale
type SetBackground struct {
	Background karcard.BackgroundConfig
}

func (o SetBackground) apply(s karcard.State) (karcard.State, error) {
	bg := o.Background.Clone()
	if bg.Gradient != nil {
		bg.Gradient.Direction = layout.NormalizeAngle(bg.Gradient.Direction)
	}
	if err := karcard.ValidateBackground(&bg); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	l := s.Layouts.Get(s.Format)
	l.Background = bg
	s.Layouts.Set(s.Format, l)
	return s, nil
}

// RestoreDefaults replaces the active layout with its hard-coded defaults.
// The other format's layout is untouched.
type RestoreDefaults struct{}

func (RestoreDefaults) apply(s karcard.State) (karcard.State, error) {
	s.Layouts.Set(s.Format, karcard.DefaultLayout(s.Format))
	return s, nil
}

// ConfigUpdate maps a loosely typed update, as sent by a form, onto a tagged
// operation: a JSON object sent to an element or to pan is merged into it,
// anything else replaces the field.
func ConfigUpdate(field string, raw json.RawMessage) (Op, error) {
	raw = bytes.TrimSpace(raw)
	isObject := len(raw) > 0 && raw[0] == '{'

	if (&karcard.CanvasConfig{}).Element(field) != nil {
		if !isObject {
			return nil, fmt.Errorf("%w: %s expects an object", ErrInvalidValue, field)
		}
		var patch ItemPatch
		if err := decodeStrict(raw, &patch); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
		}
		return MergeElement{Element: field, Patch: patch}, nil
	}

	if field == FieldPan {
		if !isObject {
			return nil, fmt.Errorf("%w: pan expects an object", ErrInvalidValue)
		}
		var patch MergePan
		if err := decodeStrict(raw, &patch); err != nil {
			return nil, fmt.Errorf("%w: pan: %v", ErrInvalidValue, err)
		}
		return patch, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		// Sliders sometimes send numbers as strings
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return nil, fmt.Errorf("%w: %s expects a number", ErrInvalidValue, field)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a number", ErrInvalidValue, field)
		}
		v = parsed
	}
	return ReplaceField{Field: field, Value: v}, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
