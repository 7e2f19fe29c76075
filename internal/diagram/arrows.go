package diagram

import (
	"github.com/haasonsaas/whiteboard/internal/canvas"
)

// Binding defaults: anchor on the centerline with a fixed clearance.
const (
	bindingFocus = 0
	bindingGap   = 10
)

// ArrowSpec describes one connector by its absolute endpoints. Endpoint
// element ids are optional; unresolvable ids leave the arrow floating.
type ArrowSpec struct {
	StartX         float64  `json:"startX"`
	StartY         float64  `json:"startY"`
	EndX           float64  `json:"endX"`
	EndY           float64  `json:"endY"`
	StartElementID string   `json:"startElementId,omitempty"`
	EndElementID   string   `json:"endElementId,omitempty"`
	Label          string   `json:"label,omitempty"`
	StrokeColor    string   `json:"strokeColor,omitempty"`
	StrokeWidth    *float64 `json:"strokeWidth,omitempty"`
}

// Arrows builds one arrow per spec, records the back-references on every
// bound element present in scene, and appends the arrows after them.
func (b *Builder) Arrows(scene *canvas.Scene, specs []ArrowSpec) []canvas.Element {
	ids := b.allocator(scene)
	updated := b.updated()

	arrows := make([]canvas.Element, 0, len(specs))
	for _, spec := range specs {
		arrows = append(arrows, b.arrow(ids.fresh(), spec, updated))
	}

	if scene != nil {
		AttachArrows(scene, arrows)
		scene.Merge(arrows)
	}
	return arrows
}

func (b *Builder) arrow(id string, spec ArrowSpec, updated int64) canvas.Element {
	el := connector(id, spec.StartX, spec.StartY, spec.EndX, spec.EndY, updated)
	el.StrokeColor = orString(spec.StrokeColor, DefaultStrokeColor)
	el.StrokeWidth = orDefault(spec.StrokeWidth, 1)
	if spec.StartElementID != "" {
		el.Arrow.StartBinding = &canvas.Binding{ElementID: spec.StartElementID, Focus: bindingFocus, Gap: bindingGap}
	}
	if spec.EndElementID != "" {
		el.Arrow.EndBinding = &canvas.Binding{ElementID: spec.EndElementID, Focus: bindingFocus, Gap: bindingGap}
	}
	if spec.Label != "" {
		el.Arrow.Label = arrowLabel(spec.Label)
	}
	return el
}

// connector is a two-point arrow from (x1, y1) to (x2, y2) with an arrowhead
// at the end. The frame starts at the first point.
func connector(id string, x1, y1, x2, y2 float64, updated int64) canvas.Element {
	w := x2 - x1
	h := y2 - y1
	el := baseElement(id, canvas.TypeArrow, updated)
	el.X = x1
	el.Y = y1
	el.Width = w
	el.Height = h
	head := "arrow"
	el.Arrow = &canvas.ArrowPayload{
		Points:       []canvas.Point{{0, 0}, {w, h}},
		EndArrowhead: &head,
	}
	return el
}

func arrowLabel(text string) *canvas.ArrowLabel {
	return &canvas.ArrowLabel{
		Text:       text,
		FontSize:   arrowLabelFontSize,
		FontFamily: DefaultFontFamily,
		TextAlign:  "center",
	}
}
