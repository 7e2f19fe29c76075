package diagram

import (
	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// ShapeSpec describes one shape or standalone text to create. Nil numeric
// fields and empty strings take the documented defaults.
type ShapeSpec struct {
	Type            string   `json:"type,omitempty"`
	Label           string   `json:"label,omitempty"`
	X               *float64 `json:"x,omitempty"`
	Y               *float64 `json:"y,omitempty"`
	Width           *float64 `json:"width,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	StrokeColor     string   `json:"strokeColor,omitempty"`
	StrokeWidth     *float64 `json:"strokeWidth,omitempty"`
	FillStyle       string   `json:"fillStyle,omitempty"`
	StrokeStyle     string   `json:"strokeStyle,omitempty"`
	Roughness       *float64 `json:"roughness,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	TextAlign       string   `json:"textAlign,omitempty"`
}

// ShapeResult is the output of Shapes. Primaries holds one element per spec;
// Labels holds the container-bound texts created for labelled shapes.
type ShapeResult struct {
	Primaries []canvas.Element
	Labels    []canvas.Element
}

// Elements returns primaries followed by labels, the order they are stored in.
func (r ShapeResult) Elements() []canvas.Element {
	out := make([]canvas.Element, 0, len(r.Primaries)+len(r.Labels))
	out = append(out, r.Primaries...)
	return append(out, r.Labels...)
}

// Shapes builds the elements for specs and appends them to scene:
// all primaries first, then all label texts.
func (b *Builder) Shapes(scene *canvas.Scene, specs []ShapeSpec) ShapeResult {
	ids := b.allocator(scene)
	updated := b.updated()
	result := ShapeResult{
		Primaries: make([]canvas.Element, 0, len(specs)),
	}

	for _, spec := range specs {
		if spec.Type == string(canvas.TypeText) {
			result.Primaries = append(result.Primaries, b.standaloneText(ids.fresh(), spec, updated))
			continue
		}

		shape := b.shape(ids.fresh(), spec, updated)
		if spec.Label != "" {
			label := labelFor(ids.fresh(), shape, spec.Label, updated)
			shape.AddBoundElement(label.ID, string(canvas.TypeText))
			result.Labels = append(result.Labels, label)
		}
		result.Primaries = append(result.Primaries, shape)
	}

	if scene != nil {
		scene.Merge(result.Elements())
	}
	return result
}

func (b *Builder) shape(id string, spec ShapeSpec, updated int64) canvas.Element {
	kind := canvas.TypeRectangle
	if spec.Type != "" {
		kind = canvas.ElementType(spec.Type)
	}
	el := baseElement(id, kind, updated)
	el.X = orDefault(spec.X, 100)
	el.Y = orDefault(spec.Y, 100)
	el.Width = orDefault(spec.Width, 150)
	el.Height = orDefault(spec.Height, 100)
	el.StrokeColor = orString(spec.StrokeColor, DefaultStrokeColor)
	el.BackgroundColor = orString(spec.BackgroundColor, DefaultBackgroundColor)
	el.FillStyle = orString(spec.FillStyle, "solid")
	el.StrokeWidth = orDefault(spec.StrokeWidth, 1)
	el.StrokeStyle = orString(spec.StrokeStyle, "solid")
	el.Roughness = orDefault(spec.Roughness, 1)
	el.Opacity = orDefault(spec.Opacity, 100)
	el.BoundElements = []canvas.BoundElement{}
	return el
}

func (b *Builder) standaloneText(id string, spec ShapeSpec, updated int64) canvas.Element {
	fontSize := orDefault(spec.FontSize, labelFontSize)
	el := baseElement(id, canvas.TypeText, updated)
	el.X = orDefault(spec.X, 100)
	el.Y = orDefault(spec.Y, 100)
	el.Width = textWidth(spec.Label, fontSize)
	el.Height = textHeight(fontSize)
	el.Roughness = 0
	el.Text = &canvas.TextPayload{
		Content:       spec.Label,
		FontSize:      fontSize,
		FontFamily:    DefaultFontFamily,
		TextAlign:     orString(spec.TextAlign, "center"),
		VerticalAlign: "top",
		Baseline:      fontSize,
		OriginalText:  spec.Label,
	}
	return el
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
