package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/karcash/karcard/internal/layout"
	"github.com/karcash/karcard/pkg/karcard"
)

// removalTimeout bounds a background removal started from a command
const removalTimeout = 2 * time.Minute

// handleData handles data commands
// Usage: data <field> <value...>
func (e *Executor) handleData(args []string) *Result {
	if len(args) < 1 {
		return failure("usage: data <brand|model|year|detailsText|fipePrice|salePrice> <value>")
	}

	field := args[0]
	value := strings.Join(args[1:], " ")
	// literal "\n" in a command line becomes a manual break
	value = strings.ReplaceAll(value, `\n`, "\n")

	if err := e.deps.Store.UpdateData(field, value); err != nil {
		return failure("failed to update %s: %v", field, err)
	}

	snap := e.deps.Store.Snapshot()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Updated %s", field),
		Data: map[string]interface{}{
			"data":               snap.State.Data,
			"discountPercentage": snap.DiscountPercentage,
		},
	}
}

// handleConfig handles config commands
// Usage: config <field> <value> | config <element>.<property> <value>
func (e *Executor) handleConfig(args []string) *Result {
	if len(args) < 2 {
		return failure("usage: config <field> <value> or config <element>.<property> <value>")
	}

	field := args[0]
	raw := json.RawMessage(args[1])

	if element, prop, ok := strings.Cut(field, "."); ok {
		props := map[string]json.RawMessage{prop: literal(args[1])}
		if prop == "width" || prop == "height" {
			e.suggestBoxMetrics(element, prop, args[1], props)
		}
		patch, err := json.Marshal(props)
		if err != nil {
			return failure("invalid value: %v", err)
		}
		field, raw = element, patch
	} else if !json.Valid(raw) {
		raw = literal(args[1])
	}

	if err := e.deps.Store.UpdateConfig(field, raw); err != nil {
		return failure("failed to update %s: %v", args[0], err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Updated %s", args[0]),
	}
}

// suggestBoxMetrics adds a proportional fontSize and gap to a price box
// resize, scaled from the format's default box
func (e *Executor) suggestBoxMetrics(element, prop, value string, props map[string]json.RawMessage) {
	if element != karcard.ElementFipe && element != karcard.ElementEconomy {
		return
	}
	size, err := strconv.ParseFloat(value, 64)
	if err != nil || size <= 0 {
		return
	}

	snap := e.deps.Store.Snapshot()
	format := snap.State.Format
	active := snap.State.Layouts.Get(format)
	current := *active.Config.Element(element)
	defaults := karcard.DefaultLayout(format)
	base := *defaults.Config.Element(element)

	w, h := current.Width, current.Height
	if w <= 0 {
		w = base.Width
	}
	if h <= 0 {
		h = base.Height
	}
	if prop == "width" {
		w = size
	} else {
		h = size
	}

	font, gap := layout.SuggestBoxMetrics(w, h, base.Width, base.Height, base.FontSize, base.Gap)
	if font > 0 {
		props["fontSize"] = json.RawMessage(strconv.FormatFloat(font, 'f', -1, 64))
	}
	if gap > 0 {
		props["gap"] = json.RawMessage(strconv.FormatFloat(gap, 'f', -1, 64))
	}
}

// literal turns a command argument into JSON: numbers stay numbers,
// anything else becomes a string
func literal(arg string) json.RawMessage {
	if _, err := strconv.ParseFloat(arg, 64); err == nil {
		return json.RawMessage(arg)
	}
	quoted, _ := json.Marshal(arg)
	return quoted
}

// handleFormat handles format commands
// Usage: format <story|poster>
func (e *Executor) handleFormat(args []string) *Result {
	if len(args) != 1 {
		return failure("usage: format <story|poster>")
	}

	if err := e.deps.Store.SetFormat(karcard.Format(args[0])); err != nil {
		return failure("failed to set format: %v", err)
	}

	w, h := karcard.Format(args[0]).Size()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Format set to %s (%dx%d)", args[0], w, h),
	}
}

// handleBackground handles background commands
// Usage: background solid <color> | gradient <from> <to> [direction] |
// image <ref> [rotation] | overlay <color> <opacity>
func (e *Executor) handleBackground(args []string) *Result {
	if len(args) < 2 {
		return failure("usage: background <solid|gradient|image|overlay> <args...>")
	}

	snap := e.deps.Store.Snapshot()
	bg := snap.State.Layouts.Get(snap.State.Format).Background

	switch args[0] {
	case "solid":
		bg = karcard.BackgroundConfig{Type: karcard.BackgroundSolid, Value: args[1], Overlay: bg.Overlay}

	case "gradient":
		if len(args) < 3 {
			return failure("usage: background gradient <from> <to> [direction]")
		}
		direction := 180.0
		if len(args) >= 4 {
			d, err := strconv.ParseFloat(args[3], 64)
			if err != nil {
				return failure("invalid direction: %s", args[3])
			}
			direction = d
		}
		bg = karcard.BackgroundConfig{
			Type:     karcard.BackgroundGradient,
			Value:    args[2],
			Gradient: &karcard.Gradient{Colors: [2]string{args[1], args[2]}, Direction: direction},
			Overlay:  bg.Overlay,
		}

	case "image":
		rotation := 0.0
		if len(args) >= 3 {
			r, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return failure("invalid rotation: %s", args[2])
			}
			rotation = r
		}
		bg = karcard.BackgroundConfig{Type: karcard.BackgroundImage, Value: args[1], Rotation: rotation, Overlay: bg.Overlay}

	case "overlay":
		if len(args) < 3 {
			return failure("usage: background overlay <color> <opacity>")
		}
		opacity, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return failure("invalid opacity: %s", args[2])
		}
		bg.Overlay = &karcard.Overlay{Color: args[1], Opacity: opacity}

	default:
		return failure("unknown background type: %s. Use: solid, gradient, image, overlay", args[0])
	}

	if err := e.deps.Store.SetBackground(bg); err != nil {
		return failure("failed to set background: %v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Background updated (%s)", args[0]),
	}
}

// handleDefaults handles the defaults command
// Usage: defaults
func (e *Executor) handleDefaults(args []string) *Result {
	if err := e.deps.Store.RestoreDefaults(); err != nil {
		return failure("failed to restore defaults: %v", err)
	}

	format := e.deps.Store.Snapshot().State.Format
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Restored default %s layout", format),
	}
}

// handleImage handles image commands
// Usage: image <ref> | image clear | image remove-bg
func (e *Executor) handleImage(args []string) *Result {
	if len(args) != 1 {
		return failure("usage: image <ref|clear|remove-bg>")
	}

	switch args[0] {
	case "clear":
		if err := e.deps.Store.SetImage(nil); err != nil {
			return failure("failed to clear image: %v", err)
		}
		return &Result{Success: true, Message: "Image cleared"}

	case "remove-bg":
		if e.deps.Remover == nil || e.deps.Images == nil || e.deps.Assets == nil {
			return failure("background removal is not available")
		}
		ctx, cancel := context.WithTimeout(context.Background(), removalTimeout)
		defer cancel()

		if err := e.deps.Store.RemoveBackground(ctx, e.deps.Remover, e.deps.Images, e.deps.Assets); err != nil {
			return failure("background removal failed: %v", err)
		}
		snap := e.deps.Store.Snapshot()
		return &Result{
			Success: true,
			Message: "Background removed",
			Data:    map[string]interface{}{"image": snap.State.Image},
		}

	default:
		ref := args[0]
		if err := e.deps.Store.SetImage(&ref); err != nil {
			return failure("failed to set image: %v", err)
		}
		return &Result{Success: true, Message: fmt.Sprintf("Image set to %s", ref)}
	}
}

// handleState handles the state command
// Usage: state
func (e *Executor) handleState(args []string) *Result {
	snap := e.deps.Store.Snapshot()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Revision %d, %s format", snap.Revision, snap.State.Format),
		Data: map[string]interface{}{
			"state":              snap.State,
			"discountPercentage": snap.DiscountPercentage,
			"status":             snap.Status,
		},
	}
}

// handleExport handles the export command
// Usage: export
func (e *Executor) handleExport(args []string) *Result {
	if e.deps.Exporter == nil {
		return failure("export is not available")
	}

	path, err := e.deps.Exporter.SaveTo(e.deps.ExportDir)
	if err != nil {
		return failure("export failed: %v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Exported %s", path),
		Data:    map[string]interface{}{"path": path},
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	helpText := `Available Commands:

  data <field> <value>
    Set brand, model, year, detailsText, fipePrice or salePrice
    economyPrice is always fipePrice - salePrice

  config <field> <value>
    Set zoom, rotation, brightness, contrast, saturation or exposure,
    or merge a JSON object into pan or an element; properties the
    object leaves out keep their values

  config <element>.<property> <value>
    Change one property of an element, e.g. brand.fontSize 60

  format <story|poster>
    Switch the active format

  background solid <color>
  background gradient <from> <to> [direction]
  background image <ref> [0|180]
  background overlay <color> <opacity>
    Change the active format's background

  defaults
    Restore the active format's default layout

  image <ref> | image clear | image remove-bg
    Set, clear or cut out the vehicle photo

  state
    Show the current state

  export
    Save the card as PNG

  help
    Show this help message

Examples:
  data brand Honda
  data model "Civic Touring 1.5 Turbo"
  data fipePrice 120000
  config model.fontSize 96
  config pan '{"x":40}'
  background gradient #DBFC1D #080A09 180
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}
